package vm

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is the lifecycle stage of a VM instance, per spec §4.7:
//
//	Uninit -> Loaded -> Primed -> Running -> {Finished, Yielded, Errored}
//
// From Yielded, another RunSlice call returns to Running. From Finished
// or Errored, the host may free the VM or PrepareCall again, which
// transitions back to Primed.
type State int

const (
	StateUninit State = iota
	StateLoaded
	StatePrimed
	StateRunning
	StateFinished
	StateYielded
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateUninit:
		return "uninit"
	case StateLoaded:
		return "loaded"
	case StatePrimed:
		return "primed"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateYielded:
		return "yielded"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Outcome is the result of one RunSlice invocation.
type Outcome int

const (
	// OutcomeFinished means the guest returned from its top frame; the
	// result is on top of the operand stack and Status is exactly 0.
	OutcomeFinished Outcome = iota
	// OutcomeNotFinished means a syscall yielded; the host should call
	// RunSlice again later to resume.
	OutcomeNotFinished
	// OutcomeError means Status is non-zero; read Status for
	// classification.
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFinished:
		return "finished"
	case OutcomeNotFinished:
		return "not_finished"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// VM is one instance of the embeddable stack machine: a reference to a
// shared Environment, a decoded code array, a heap, a fixed-size operand
// stack, and the PC/PSP/status registers the interpreter drives. A VM is
// not goroutine-safe; per the concurrency model (spec §5) exactly one
// host thread drives a given instance at a time.
type VM struct {
	Env  *Environment
	Code []Instruction
	Heap []byte

	// PC indexes into Code (not a byte offset). PSP is a byte offset into
	// Heap, growing downward, pointing at the top of the in-heap call
	// stack. StackBottom is the lowest legal PSP value.
	PC          uint32
	PSP         uint32
	StackBottom uint32
	Status      Status

	stack opStack

	codeMask uint32
	heapMask uint32

	filename string
	state    State
	yielded  bool

	// extra is an opaque host-owned value; the VM only stores and
	// returns it (spec §5, "Shared resources").
	extra any

	log *zerolog.Logger
}

// Filename returns the path the module was loaded from.
func (vm *VM) Filename() string {
	return vm.filename
}

// State returns the VM's current lifecycle state.
func (vm *VM) State() State {
	return vm.state
}

// GetExtra returns the opaque host-extra value previously stored with
// SetExtra, or nil if none has been set.
func (vm *VM) GetExtra() any {
	return vm.extra
}

// SetExtra stores an opaque host-owned value on the VM, for syscalls to
// retrieve later via GetExtra.
func (vm *VM) SetExtra(v any) {
	vm.extra = v
}

// SetLogger attaches a logger used for BREAK traps, syscall error reports
// and Abort. If never called, the package-level zerolog default logger is
// used.
func (vm *VM) SetLogger(l *zerolog.Logger) {
	vm.log = l
}

func (vm *VM) logger() *zerolog.Logger {
	if vm.log != nil {
		return vm.log
	}
	return &log.Logger
}

// Yield cooperatively suspends the current slice. Only meaningful when
// called from inside a syscall (spec §5, "Suspension points"); the
// interpreter checks this flag immediately after the syscall returns.
func (vm *VM) Yield() {
	vm.yielded = true
}

// Abort cancels the VM from a syscall or from the host. The next
// instruction fetch observes the ABORT status bit and exits the slice
// with OutcomeError. There is no timeout mechanism in the core; a host
// that wants preemption must call Abort itself based on its own budget.
func (vm *VM) Abort(reason string) {
	vm.logger().Warn().Str("filename", vm.filename).Str("reason", reason).Msg("vm: abort requested")
	vm.Status |= StatusAbort
}
