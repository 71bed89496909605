// Package sandbox runs an externally supplied control program in an
// isolated WebAssembly instance. The guest sees exactly four host
// operations and nothing else: it reads the process variable and writes
// the actuator through the state bridge capabilities bound at
// instantiation, never touching hardware or the network directly.
//
// Guest faults are contained: every run outcome tears the instance down
// deterministically and leaves the engine ready for a fresh load.
package sandbox
