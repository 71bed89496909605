package sandbox

import (
	"time"

	"github.com/wasmerio/wasmer-go/wasmer"
)

// hostNamespace is the wasm import module the guest links against.
const hostNamespace = "env"

// maxLogBytes bounds how much guest memory a single log call may read.
const maxLogBytes = 256

// Capabilities is the complete host-call surface granted to a control
// program. Each capability closes over exactly the state it needs; the
// guest never receives networking or hardware handles. Sleep is provided
// by the engine itself so that a host-issued stop can interrupt it.
type Capabilities struct {
	// ProcessVariable backs get_process_variable.
	ProcessVariable func() float64
	// SetActuator backs set_actuator. The bridge clamps the value.
	SetActuator func(v float64)
	// Log backs log. Best effort; failures are swallowed.
	Log func(msg string)
}

// importObject binds the four host operations for a fresh instantiation.
func (e *Engine) importObject() *wasmer.ImportObject {
	imports := wasmer.NewImportObject()
	imports.Register(hostNamespace, map[string]wasmer.IntoExtern{
		"get_process_variable": wasmer.NewFunction(
			e.store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(), wasmer.NewValueTypes(wasmer.F32)),
			e.hostGetProcessVariable,
		),
		"set_actuator": wasmer.NewFunction(
			e.store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.F32), wasmer.NewValueTypes()),
			e.hostSetActuator,
		),
		"sleep": wasmer.NewFunction(
			e.store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32), wasmer.NewValueTypes()),
			e.hostSleep,
		),
		"log": wasmer.NewFunction(
			e.store,
			wasmer.NewFunctionType(wasmer.NewValueTypes(wasmer.I32), wasmer.NewValueTypes()),
			e.hostLog,
		),
	})
	return imports
}

func (e *Engine) hostGetProcessVariable(_ []wasmer.Value) ([]wasmer.Value, error) {
	if e.stopRequested() {
		return nil, errStopRequested
	}
	v := 0.0
	if e.caps.ProcessVariable != nil {
		v = e.caps.ProcessVariable()
	}
	return []wasmer.Value{wasmer.NewF32(float32(v))}, nil
}

func (e *Engine) hostSetActuator(args []wasmer.Value) ([]wasmer.Value, error) {
	if e.stopRequested() {
		return nil, errStopRequested
	}
	if e.caps.SetActuator != nil {
		e.caps.SetActuator(float64(args[0].F32()))
	}
	return []wasmer.Value{}, nil
}

// hostSleep suspends the guest's execution context for at least the
// requested duration. The node's other loops keep running; a host stop
// resumes immediately and unwinds the guest.
func (e *Engine) hostSleep(args []wasmer.Value) ([]wasmer.Value, error) {
	stop := e.stopChannel()
	if stop == nil {
		return nil, errStopRequested
	}
	ms := args[0].I32()
	if ms < 0 {
		ms = 0
	}
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return []wasmer.Value{}, nil
	case <-stop:
		return nil, errStopRequested
	}
}

func (e *Engine) hostLog(args []wasmer.Value) ([]wasmer.Value, error) {
	if e.stopRequested() {
		return nil, errStopRequested
	}
	msg := e.readGuestString(args[0].I32())
	if msg != "" && e.caps.Log != nil {
		e.caps.Log(msg)
	}
	return []wasmer.Value{}, nil
}

// readGuestString copies a NUL-terminated string out of the guest's
// exported memory. Anything invalid yields "", never an error: log is
// best effort by contract.
func (e *Engine) readGuestString(ptr int32) string {
	mem := e.memory()
	if mem == nil || ptr <= 0 {
		return ""
	}
	data := mem.Data()
	if int64(ptr) >= int64(len(data)) {
		return ""
	}
	end := int(ptr) + maxLogBytes
	if end > len(data) {
		end = len(data)
	}
	segment := data[ptr:end]
	for i, c := range segment {
		if c == 0 {
			return string(segment[:i])
		}
	}
	return string(segment)
}
