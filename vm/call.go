package vm

import "github.com/pkg/errors"

// Arg reads the i-th (0-based) syscall argument, written by the guest's
// ARG instructions before the CALL that invoked the current syscall.
func (vm *VM) Arg(i int) uint32 {
	return vm.LoadWord(vm.PSP + argBase + uint32(i)*4)
}

// ArgString reads the i-th syscall argument as a heap address and borrows
// the null-terminated string stored there, per CString's semantics.
func (vm *VM) ArgString(i int) ([]byte, error) {
	return vm.CString(vm.Arg(i))
}

// ArgBytes reads two consecutive arguments as (pointer, length) and
// borrows that heap range.
func (vm *VM) ArgBytes(i int) ([]byte, error) {
	return vm.Bytes(vm.Arg(i), vm.Arg(i+1))
}

// CallArray runs entryPC with the given arguments placed at the
// prepare_call argument offsets PrepareCall reserves (spec §4.6), driving
// RunSlice to completion. It is a convenience wrapper for hosts that
// don't need to straddle a yield across their own event loop; hosts that
// do should call PrepareCall/RunSlice directly instead.
func (vm *VM) CallArray(entryPC uint32, args ...uint32) (Outcome, error) {
	if err := vm.PrepareCall(entryPC, args...); err != nil {
		return OutcomeError, err
	}
	for {
		outcome, err := vm.RunSlice()
		if err != nil || outcome != OutcomeNotFinished {
			return outcome, err
		}
	}
}

// Call lets a syscall recursively re-enter the same VM instance at
// entryPC before returning control to its own caller (the "re-entrant
// syscall" pattern). The nested call is driven to completion or error;
// it may not itself yield across this boundary — a syscall that needs to
// suspend must not call back into the guest first. PC and PSP are saved
// and restored around the nested invocation.
func (vm *VM) Call(entryPC uint32) (Outcome, error) {
	if !vm.codeBound(entryPC) {
		return OutcomeError, errOutOfBounds
	}
	savedPC, savedPSP := vm.PC, vm.PSP
	vm.PSP -= 4
	vm.StoreWord(vm.PSP, finishedReturnPC)
	vm.PC = entryPC

	outcome := vm.runLoop()
	if outcome == OutcomeNotFinished {
		vm.PC, vm.PSP = savedPC, savedPSP
		return outcome, errors.New("vm: re-entrant call yielded, which is not supported")
	}
	vm.PC, vm.PSP = savedPC, savedPSP
	return outcome, nil
}
