package sandbox

// Hand-assembled wasm fixtures. The builder keeps section and vector
// sizes honest so the fixtures stay valid as they grow.

const (
	valI32 = 0x7f
	valF32 = 0x7d

	secType   = 1
	secImport = 2
	secFunc   = 3
	secMemory = 5
	secExport = 7
	secCode   = 10
	secData   = 11

	kindFunc   = 0x00
	kindMemory = 0x02
)

func uleb(n int) []byte {
	if n < 0 {
		panic("uleb: negative")
	}
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if n == 0 {
			return out
		}
	}
}

func wasmName(s string) []byte {
	return append(uleb(len(s)), s...)
}

func wasmVec(items ...[]byte) []byte {
	out := uleb(len(items))
	for _, item := range items {
		out = append(out, item...)
	}
	return out
}

func wasmSection(id byte, payload []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(len(payload))...)
	return append(out, payload...)
}

func wasmModule(sections ...[]byte) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	for _, s := range sections {
		out = append(out, s...)
	}
	return out
}

func funcType(params, results []byte) []byte {
	out := []byte{0x60}
	out = append(out, uleb(len(params))...)
	out = append(out, params...)
	out = append(out, uleb(len(results))...)
	return append(out, results...)
}

func funcImport(module, field string, typeIdx byte) []byte {
	out := wasmName(module)
	out = append(out, wasmName(field)...)
	return append(out, kindFunc, typeIdx)
}

func funcExport(field string, funcIdx byte) []byte {
	return append(wasmName(field), kindFunc, funcIdx)
}

func memExport(field string, memIdx byte) []byte {
	return append(wasmName(field), kindMemory, memIdx)
}

func funcBody(code []byte) []byte {
	body := append(uleb(0), code...) // no local declarations
	return append(uleb(len(body)), body...)
}

// moduleCompletes exports main() that returns immediately.
func moduleCompletes() []byte {
	return wasmModule(
		wasmSection(secType, wasmVec(funcType(nil, nil))),
		wasmSection(secFunc, wasmVec([]byte{0x00})),
		wasmSection(secExport, wasmVec(funcExport("main", 0))),
		wasmSection(secCode, wasmVec(funcBody([]byte{0x0b}))),
	)
}

// moduleTraps exports main() whose body is a single unreachable.
func moduleTraps() []byte {
	return wasmModule(
		wasmSection(secType, wasmVec(funcType(nil, nil))),
		wasmSection(secFunc, wasmVec([]byte{0x00})),
		wasmSection(secExport, wasmVec(funcExport("main", 0))),
		wasmSection(secCode, wasmVec(funcBody([]byte{0x00, 0x0b}))),
	)
}

// moduleNoMain exports its only function under a different name.
func moduleNoMain() []byte {
	return wasmModule(
		wasmSection(secType, wasmVec(funcType(nil, nil))),
		wasmSection(secFunc, wasmVec([]byte{0x00})),
		wasmSection(secExport, wasmVec(funcExport("loop", 0))),
		wasmSection(secCode, wasmVec(funcBody([]byte{0x0b}))),
	)
}

// moduleHostRoundTrip imports get_process_variable and set_actuator and
// pipes one into the other: main() { set_actuator(get_process_variable()) }.
func moduleHostRoundTrip() []byte {
	return wasmModule(
		wasmSection(secType, wasmVec(
			funcType(nil, []byte{valF32}),   // t0: () -> f32
			funcType([]byte{valF32}, nil),   // t1: (f32) -> ()
			funcType(nil, nil),              // t2: () -> ()
		)),
		wasmSection(secImport, wasmVec(
			funcImport("env", "get_process_variable", 0), // func 0
			funcImport("env", "set_actuator", 1),         // func 1
		)),
		wasmSection(secFunc, wasmVec([]byte{0x02})), // main is func 2
		wasmSection(secExport, wasmVec(funcExport("main", 2))),
		wasmSection(secCode, wasmVec(funcBody([]byte{
			0x10, 0x00, // call get_process_variable
			0x10, 0x01, // call set_actuator
			0x0b,
		}))),
	)
}

// moduleSleepLoop imports sleep and calls it forever; only a host stop
// can end it.
func moduleSleepLoop() []byte {
	return wasmModule(
		wasmSection(secType, wasmVec(
			funcType([]byte{valI32}, nil), // t0: (i32) -> ()
			funcType(nil, nil),            // t1: () -> ()
		)),
		wasmSection(secImport, wasmVec(
			funcImport("env", "sleep", 0), // func 0
		)),
		wasmSection(secFunc, wasmVec([]byte{0x01})), // main is func 1
		wasmSection(secExport, wasmVec(funcExport("main", 1))),
		wasmSection(secCode, wasmVec(funcBody([]byte{
			0x03, 0x40, // loop (void)
			0x41, 0x05, // i32.const 5
			0x10, 0x00, // call sleep
			0x0c, 0x00, // br 0
			0x0b, // end loop
			0x0b,
		}))),
	)
}

// moduleLogs exports one page of memory holding a NUL-terminated string
// at offset 8 and logs it from main.
func moduleLogs(msg string) []byte {
	data := append([]byte(msg), 0)
	segment := []byte{0x00}                            // memory index 0
	segment = append(segment, 0x41, 0x08, 0x0b)        // offset: i32.const 8
	segment = append(segment, uleb(len(data))...)
	segment = append(segment, data...)

	return wasmModule(
		wasmSection(secType, wasmVec(
			funcType([]byte{valI32}, nil), // t0: (i32) -> ()
			funcType(nil, nil),            // t1: () -> ()
		)),
		wasmSection(secImport, wasmVec(
			funcImport("env", "log", 0), // func 0
		)),
		wasmSection(secFunc, wasmVec([]byte{0x01})), // main is func 1
		wasmSection(secMemory, wasmVec([]byte{0x00, 0x01})), // min 1 page
		wasmSection(secExport, wasmVec(
			funcExport("main", 1),
			memExport("memory", 0),
		)),
		wasmSection(secCode, wasmVec(funcBody([]byte{
			0x41, 0x08, // i32.const 8
			0x10, 0x00, // call log
			0x0b,
		}))),
		wasmSection(secData, wasmVec(segment)),
	)
}

// moduleWideMemory exports main plus a two-page memory, enough to trip
// a one-page heap budget.
func moduleWideMemory() []byte {
	return wasmModule(
		wasmSection(secType, wasmVec(funcType(nil, nil))),
		wasmSection(secFunc, wasmVec([]byte{0x00})),
		wasmSection(secMemory, wasmVec([]byte{0x00, 0x02})), // min 2 pages
		wasmSection(secExport, wasmVec(
			funcExport("main", 0),
			memExport("memory", 0),
		)),
		wasmSection(secCode, wasmVec(funcBody([]byte{0x0b}))),
	)
}
