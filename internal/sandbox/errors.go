package sandbox

import "errors"

var (
	ErrLoad        = errors.New("sandbox: module load failed")
	ErrInstantiate = errors.New("sandbox: instantiation failed")
	ErrBudget      = errors.New("sandbox: linear memory exceeds heap budget")
	ErrNoModule    = errors.New("sandbox: no module loaded")
	ErrNoInstance  = errors.New("sandbox: no live instance")

	// errStopRequested unwinds the guest at its next host-call boundary
	// after a host-issued Stop.
	errStopRequested = errors.New("sandbox: stop requested")
)
