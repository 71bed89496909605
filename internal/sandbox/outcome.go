package sandbox

// Outcome classifies how one run of a control program ended. A
// host-issued termination is an expected control path and is reported
// apart from guest faults.
type Outcome int

const (
	// OutcomeCompleted: the entry point returned normally.
	OutcomeCompleted Outcome = iota
	// OutcomeNotFound: the module exports no such entry point.
	OutcomeNotFound
	// OutcomeTerminated: the host asked the program to stop and it
	// unwound at a host-call boundary. A clean stop, not a fault.
	OutcomeTerminated
	// OutcomeTrapped: the guest raised a runtime fault.
	OutcomeTrapped
	// OutcomeException: any other failure, including a recovered panic
	// crossing the runtime boundary.
	OutcomeException
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeTerminated:
		return "terminated"
	case OutcomeTrapped:
		return "trapped"
	case OutcomeException:
		return "exception"
	default:
		return "unknown"
	}
}

// Report describes one run of a control program.
type Report struct {
	Outcome Outcome
	Entry   string
	Detail  string
	Err     error
}
