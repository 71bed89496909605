package protocol

import "errors"

var (
	ErrBadLength = errors.New("protocol: buffer length does not match packet size")
)
