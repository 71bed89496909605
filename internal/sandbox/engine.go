package sandbox

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/wasmerio/wasmer-go/wasmer"
)

// Engine holds at most one loaded module and at most one live instance
// of it. Loading while an instance is active tears the old one down
// first; teardown after a run always proceeds host environment, then
// instance, then (on Close or the next Load) module.
type Engine struct {
	logger zerolog.Logger
	caps   Capabilities

	engine *wasmer.Engine
	store  *wasmer.Store

	mu       sync.Mutex
	module   *wasmer.Module
	instance *wasmer.Instance
	mem      *wasmer.Memory
	stopCh   chan struct{}
	stopped  bool
}

func New(caps Capabilities, logger zerolog.Logger) *Engine {
	we := wasmer.NewEngine()
	return &Engine{
		logger: logger,
		caps:   caps,
		engine: we,
		store:  wasmer.NewStore(we),
	}
}

// Load validates buf as a module and makes it current. Any previous
// instance and module are released first; the stop scope resets so a
// stale Stop cannot bleed into the fresh program.
func (e *Engine) Load(buf []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.releaseInstanceLocked()
	e.releaseModuleLocked()
	e.stopCh = nil
	e.stopped = false

	module, err := wasmer.NewModule(e.store, buf)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrLoad, err)
	}
	e.module = module
	return nil
}

// Instantiate builds one live instance of the loaded module with the
// host-call surface bound. Budgets are fixed configuration constants;
// a module whose exported linear memory already exceeds the heap budget
// is rejected and released.
func (e *Engine) Instantiate(stackBytes, heapBytes int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.module == nil {
		return ErrNoModule
	}
	if stackBytes <= 0 || heapBytes <= 0 {
		return fmt.Errorf("%w: budgets must be positive", ErrInstantiate)
	}

	e.releaseInstanceLocked()
	e.stopCh = make(chan struct{})
	e.stopped = false

	instance, err := wasmer.NewInstance(e.module, e.importObject())
	if err != nil {
		e.stopCh = nil
		return fmt.Errorf("%w: %s", ErrInstantiate, err)
	}
	e.instance = instance

	if mem, err := instance.Exports.GetMemory("memory"); err == nil {
		e.mem = mem
		if len(mem.Data()) > heapBytes {
			size := len(mem.Data())
			e.releaseInstanceLocked()
			e.stopCh = nil
			return fmt.Errorf("%w: %d bytes declared, %d allowed", ErrBudget, size, heapBytes)
		}
	}

	e.logger.Debug().
		Int("stack_bytes", stackBytes).
		Int("heap_bytes", heapBytes).
		Msg("control program instantiated")
	return nil
}

// Run executes the named entry point and classifies the result. On every
// exit path the host environment and the instance are released, exactly
// once; the module stays loaded for a possible rerun.
func (e *Engine) Run(entry string) (rep Report) {
	rep.Entry = entry

	e.mu.Lock()
	instance := e.instance
	e.mu.Unlock()
	if instance == nil {
		rep.Outcome = OutcomeException
		rep.Err = ErrNoInstance
		return rep
	}

	defer e.releaseInstance()
	defer func() {
		if r := recover(); r != nil {
			rep.Outcome = OutcomeException
			rep.Detail = fmt.Sprintf("panic: %v", r)
		}
	}()

	fn, err := instance.Exports.GetRawFunction(entry)
	if err != nil || fn == nil {
		rep.Outcome = OutcomeNotFound
		rep.Err = err
		return rep
	}

	// Conventional entry points take (argc, argv); pass zeros for
	// whatever arity the module declares.
	args := make([]interface{}, fn.ParameterArity())
	for i := range args {
		args[i] = int32(0)
	}

	_, callErr := fn.Call(args...)
	switch {
	case callErr == nil:
		rep.Outcome = OutcomeCompleted
	case e.stopRequested():
		rep.Outcome = OutcomeTerminated
		rep.Detail = callErr.Error()
	default:
		rep.Outcome = OutcomeTrapped
		rep.Err = callErr
		rep.Detail = callErr.Error()
	}
	return rep
}

// Stop requests a cooperative termination. The guest is not preempted;
// it unwinds at its next host call, and the run reports terminated
// rather than trapped.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopCh == nil || e.stopped {
		return
	}
	e.stopped = true
	close(e.stopCh)
}

// Close releases the live instance, then the module.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.releaseInstanceLocked()
	e.releaseModuleLocked()
}

func (e *Engine) stopRequested() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

func (e *Engine) stopChannel() chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return nil
	}
	return e.stopCh
}

func (e *Engine) memory() *wasmer.Memory {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mem
}

func (e *Engine) releaseInstance() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.releaseInstanceLocked()
}

// releaseInstanceLocked detaches the host environment before dropping
// the instance so no host call can land on a dead instantiation.
func (e *Engine) releaseInstanceLocked() {
	e.mem = nil
	if e.instance != nil {
		e.instance.Close()
		e.instance = nil
	}
}

func (e *Engine) releaseModuleLocked() {
	if e.module != nil {
		e.module.Close()
		e.module = nil
	}
}
