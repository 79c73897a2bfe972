package vm

// argBase is the byte offset, relative to PSP, where call arguments begin.
// A CALL into a syscall leaves PSP unchanged, so the syscall's Arg reads
// the same slots its caller's ARG instructions wrote. ARG's immediate
// operand is treated as a 0-based argument slot index rather than a raw
// byte offset (the spec text left ARG's exact parameter encoding
// unspecified; this is the documented resolution — see DESIGN.md).
const argBase = 8

// finishedReturnPC is the sentinel return address PrepareCall seeds the
// top frame with. When LEAVE pops this value the slice is finished and
// Status is left exactly as it was (per the "finish contract").
const finishedReturnPC uint32 = 0xFFFFFFFF

// codeBound reports whether pc addresses a legal slot in the (power of
// two, BREAK-padded) code array.
func (vm *VM) codeBound(pc uint32) bool {
	return pc&^vm.codeMask == 0
}

func (vm *VM) fetch() (Instruction, bool) {
	if !vm.codeBound(vm.PC) {
		return Instruction{}, false
	}
	ins := vm.Code[vm.PC]
	vm.PC++
	return ins, true
}

func (vm *VM) branchTo(target uint32) {
	if !vm.codeBound(target) {
		vm.Status |= StatusOutOfBounds
		return
	}
	vm.PC = target
}

// PrepareCall arms the VM to begin executing at entryPC, per the "Primed"
// state (spec §4.7) and the prepare_call frame layout of spec §4.6: PSP is
// set 8 + 4·len(args) bytes below the initial PSP (heap_len-4), the
// sentinel return address
// goes at [psp], and args land at [psp+8 .. psp+8+4·len(args)) — the same
// offsets OpArg and Arg read and write. RunSlice then drives execution
// until Finished, Yielded or Errored.
func (vm *VM) PrepareCall(entryPC uint32, args ...uint32) error {
	if vm.state != StateLoaded && vm.state != StateFinished && vm.state != StateErrored {
		return errNotInitialized
	}
	if !vm.codeBound(entryPC) {
		vm.Status |= StatusOutOfBounds
		return errOutOfBounds
	}
	vm.Status = 0
	vm.yielded = false
	vm.stack.depth = 0
	vm.PSP = uint32(len(vm.Heap)) - 4 - (argBase + uint32(len(args))*4)
	vm.StoreWord(vm.PSP, finishedReturnPC)
	for i, a := range args {
		vm.StoreWord(vm.PSP+argBase+uint32(i)*4, a)
	}
	vm.PC = entryPC
	vm.state = StatePrimed
	return nil
}

// RunSlice drives the interpreter until the guest returns from its top
// frame (Finished), a syscall calls Yield (NotFinished), or a Status bit
// is set (Error). It must only be called from Primed or Yielded.
func (vm *VM) RunSlice() (Outcome, error) {
	if vm.state != StatePrimed && vm.state != StateYielded {
		return OutcomeError, errNotInitialized
	}
	vm.state = StateRunning
	outcome := vm.runLoop()
	switch outcome {
	case OutcomeFinished:
		vm.state = StateFinished
	case OutcomeNotFinished:
		vm.state = StateYielded
	case OutcomeError:
		vm.state = StateErrored
	}
	return outcome, nil
}

// runLoop is the shared dispatch loop used by both the top-level RunSlice
// and syscall-initiated re-entrant calls (see call.go).
func (vm *VM) runLoop() Outcome {
	for {
		if vm.Status != 0 {
			return OutcomeError
		}
		ins, ok := vm.fetch()
		if !ok {
			vm.Status |= StatusOutOfBounds
			return OutcomeError
		}
		done, outcome := vm.dispatch(ins)
		if done {
			return outcome
		}
	}
}

// dispatch executes one decoded instruction. done is true when the loop
// must stop (finished, yielded or errored); outcome is only meaningful
// when done is true.
func (vm *VM) dispatch(ins Instruction) (bool, Outcome) {
	switch ins.Op {
	case OpIgnore, OpUndef:
		// no-op

	case OpBreak:
		vm.logger().Debug().Uint32("pc", vm.PC-1).Msg("vm: BREAK trap")

	case OpEnter:
		vm.PSP -= uint32(ins.Param)
		if vm.PSP < vm.StackBottom || vm.PSP > vm.StackBottom+ProgramStackSize {
			vm.Status |= StatusStackOverflow
		}

	case OpLeave:
		vm.PSP += uint32(ins.Param)
		retPC := vm.LoadWord(vm.PSP)
		vm.PSP += 4
		if vm.Status != 0 {
			return true, OutcomeError
		}
		if retPC == finishedReturnPC {
			return true, OutcomeFinished
		}
		vm.branchTo(retPC)

	case OpCall:
		target := int32(vm.Pop())
		if target < 0 {
			if done, outcome := vm.doSyscall(target); done {
				return true, outcome
			}
		} else {
			vm.PSP -= 4
			vm.StoreWord(vm.PSP, vm.PC)
			vm.branchTo(uint32(target))
		}

	case OpPush:
		vm.Push(0)

	case OpPop:
		vm.Pop()

	case OpConst:
		vm.Push(uint32(ins.Param))

	case OpLocal:
		vm.Push(vm.PSP + uint32(ins.Param))

	case OpJump:
		target := vm.Pop()
		vm.branchTo(target)

	case OpEq, OpNe, OpLti, OpLei, OpGti, OpGei, OpLtu, OpLeu, OpGtu, OpGeu:
		b := int32(vm.Pop())
		a := int32(vm.Pop())
		if vm.intBranchTaken(ins.Op, a, b) {
			vm.branchTo(uint32(ins.Param))
		}

	case OpEqf, OpNef, OpLtf, OpLef, OpGtf, OpGef:
		b := vm.PopFloat()
		a := vm.PopFloat()
		if vm.floatBranchTaken(ins.Op, a, b) {
			vm.branchTo(uint32(ins.Param))
		}

	case OpLoad1:
		addr := vm.Pop()
		vm.Push(vm.LoadByte(addr))
	case OpLoad2:
		addr := vm.Pop()
		vm.Push(vm.LoadHalf(addr))
	case OpLoad4:
		addr := vm.Pop()
		vm.Push(vm.LoadWord(addr))

	case OpStore1:
		v := vm.Pop()
		addr := vm.Pop()
		vm.StoreByte(addr, v)
	case OpStore2:
		v := vm.Pop()
		addr := vm.Pop()
		vm.StoreHalf(addr, v)
	case OpStore4:
		v := vm.Pop()
		addr := vm.Pop()
		vm.StoreWord(addr, v)

	case OpArg:
		v := vm.Pop()
		vm.StoreWord(vm.PSP+argBase+uint32(ins.Param)*4, v)

	case OpBlockCopy:
		src := vm.Pop()
		dest := vm.Pop()
		vm.BlockCopy(dest, src, uint32(ins.Param))

	case OpSex8:
		vm.Push(uint32(int32(int8(vm.Pop()))))
	case OpSex16:
		vm.Push(uint32(int32(int16(vm.Pop()))))

	case OpNegi:
		vm.Push(uint32(-int32(vm.Pop())))
	case OpAdd:
		b := vm.Pop()
		a := vm.Pop()
		vm.Push(a + b)
	case OpSub:
		b := vm.Pop()
		a := vm.Pop()
		vm.Push(a - b)
	case OpDivi:
		b := int32(vm.Pop())
		a := int32(vm.Pop())
		if b == 0 {
			vm.Status |= StatusMathError
			break
		}
		vm.Push(uint32(a / b))
	case OpDivu:
		b := vm.Pop()
		a := vm.Pop()
		if b == 0 {
			vm.Status |= StatusMathError
			break
		}
		vm.Push(a / b)
	case OpModi:
		b := int32(vm.Pop())
		a := int32(vm.Pop())
		if b == 0 {
			vm.Status |= StatusMathError
			break
		}
		vm.Push(uint32(a % b))
	case OpModu:
		b := vm.Pop()
		a := vm.Pop()
		if b == 0 {
			vm.Status |= StatusMathError
			break
		}
		vm.Push(a % b)
	case OpMuli, OpMulu:
		// Signed and unsigned 32-bit multiplication wrap identically in
		// two's complement; overflow is silent, matching the decision that
		// MULI carries no overflow status bit.
		b := vm.Pop()
		a := vm.Pop()
		vm.Push(a * b)

	case OpBand:
		b := vm.Pop()
		a := vm.Pop()
		vm.Push(a & b)
	case OpBor:
		b := vm.Pop()
		a := vm.Pop()
		vm.Push(a | b)
	case OpBxor:
		b := vm.Pop()
		a := vm.Pop()
		vm.Push(a ^ b)
	case OpBcom:
		vm.Push(^vm.Pop())

	case OpLsh:
		b := vm.Pop() & 0x1F
		a := vm.Pop()
		vm.Push(a << b)
	case OpRshi:
		b := vm.Pop() & 0x1F
		a := int32(vm.Pop())
		vm.Push(uint32(a >> b))
	case OpRshu:
		b := vm.Pop() & 0x1F
		a := vm.Pop()
		vm.Push(a >> b)

	case OpNegf:
		vm.PushFloat(-vm.PopFloat())
	case OpAddf:
		b := vm.PopFloat()
		a := vm.PopFloat()
		vm.PushFloat(a + b)
	case OpSubf:
		b := vm.PopFloat()
		a := vm.PopFloat()
		vm.PushFloat(a - b)
	case OpDivf:
		b := vm.PopFloat()
		a := vm.PopFloat()
		vm.PushFloat(a / b)
	case OpMulf:
		b := vm.PopFloat()
		a := vm.PopFloat()
		vm.PushFloat(a * b)

	case OpCvif:
		vm.PushFloat(float32(int32(vm.Pop())))
	case OpCvfi:
		vm.Push(uint32(int32(vm.PopFloat())))

	default:
		vm.Status |= StatusInvalidOpcode
	}

	if vm.Status != 0 {
		return true, OutcomeError
	}
	return false, OutcomeFinished
}

func (vm *VM) intBranchTaken(op Op, a, b int32) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpLti:
		return a < b
	case OpLei:
		return a <= b
	case OpGti:
		return a > b
	case OpGei:
		return a >= b
	case OpLtu:
		return uint32(a) < uint32(b)
	case OpLeu:
		return uint32(a) <= uint32(b)
	case OpGtu:
		return uint32(a) > uint32(b)
	case OpGeu:
		return uint32(a) >= uint32(b)
	default:
		return false
	}
}

func (vm *VM) floatBranchTaken(op Op, a, b float32) bool {
	switch op {
	case OpEqf:
		return a == b
	case OpNef:
		return a != b
	case OpLtf:
		return a < b
	case OpLef:
		return a <= b
	case OpGtf:
		return a > b
	case OpGef:
		return a >= b
	default:
		return false
	}
}

// doSyscall resolves and invokes the host callable bound to a negative
// CALL target. Returns done=true if the slice must stop immediately
// (yielded or a resolution/invocation error).
func (vm *VM) doSyscall(target int32) (bool, Outcome) {
	if vm.Env == nil {
		vm.Status |= StatusBadEnvironment
		return true, OutcomeError
	}
	fn, ok := vm.Env.resolve(target)
	if !ok {
		vm.Status |= StatusBadSyscall
		return true, OutcomeError
	}
	vm.yielded = false
	if err := fn(vm); err != nil {
		vm.logger().Debug().Err(err).Int32("syscall", target).Msg("vm: syscall returned error")
		vm.Status |= StatusBadSyscall
		return true, OutcomeError
	}
	if vm.Status != 0 {
		return true, OutcomeError
	}
	if vm.yielded {
		return true, OutcomeNotFinished
	}
	return false, OutcomeFinished
}
