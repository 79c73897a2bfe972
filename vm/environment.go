package vm

import (
	"github.com/pkg/errors"
)

// SyscallFunc is a host-supplied trap. It receives the VM instance that
// invoked it and may call Arg, Pop, PopFloat, Push, PushFloat, CString,
// Abort, Yield, GetExtra and SetExtra on it. Returning a non-nil error
// is reported to the guest as BAD_SYSCALL.
type SyscallFunc func(vm *VM) error

// Environment is a shared, read-only (once registration is complete)
// table mapping negative syscall numbers to host callables. One
// Environment may back many VM instances; per the concurrency model, it
// is safe for those instances to run on independent goroutines as long as
// registration has already finished.
type Environment struct {
	slots []SyscallFunc
}

// NewEnvironment allocates an environment with nr syscall slots, all
// initially unbound.
func NewEnvironment(nr int) *Environment {
	return &Environment{slots: make([]SyscallFunc, nr)}
}

// Register binds fn to negative syscall number num. num must be negative
// and its corresponding slot (-1-num) must be within range, or an error is
// returned.
func (e *Environment) Register(num int32, fn SyscallFunc) error {
	if num >= 0 {
		return errors.Wrapf(errBadSyscallIndex, "syscall %d is not negative", num)
	}
	idx := -1 - num
	if idx < 0 || int(idx) >= len(e.slots) {
		return errors.Wrapf(errBadSyscallIndex, "syscall %d (slot %d) out of range [0,%d)", num, idx, len(e.slots))
	}
	e.slots[idx] = fn
	return nil
}

// resolve looks up the callable bound to syscall number num, returning ok
// = false if num is out of range or no callable was ever registered there.
func (e *Environment) resolve(num int32) (SyscallFunc, bool) {
	if e == nil || num >= 0 {
		return nil, false
	}
	idx := -1 - num
	if idx < 0 || int(idx) >= len(e.slots) {
		return nil, false
	}
	fn := e.slots[idx]
	return fn, fn != nil
}

// Len reports how many syscall slots this environment has.
func (e *Environment) Len() int {
	return len(e.slots)
}
