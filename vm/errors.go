package vm

import "errors"

// Sentinel errors returned by the Go-facing APIs (PrepareCall, Bytes,
// CString, Environment.Register, ...). These are distinct from Status,
// which is the bitmask the guest-visible interpreter accumulates. Bytes,
// CString and PrepareCall set OUT_OF_BOUNDS before returning
// errOutOfBounds; errNotInitialized, errBadSyscallIndex and Call's
// entry-point errOutOfBounds come with no Status bit set.
var (
	errOutOfBounds     = errors.New("vm: out of bounds")
	errNotInitialized  = errors.New("vm: not initialized")
	errBadSyscallIndex = errors.New("vm: syscall number must be negative and in range")
)
