package tfevent

import "errors"

// Sentinel errors for event encoding and log I/O.
var (
	ErrMalformed   = errors.New("malformed protobuf message")
	ErrCorrupt     = errors.New("corrupt record")
	ErrWriterClose = errors.New("event writer is closed")
	ErrChannels    = errors.New("unsupported channel count")
)
