package vm

import (
	"os"

	"github.com/pkg/errors"
)

// Module magic numbers and header sizes (little-endian throughout).
const (
	magicV1 uint32 = 0x12721444
	magicV2 uint32 = 0x12721445

	headerSizeV1 = 32
	headerSizeV2 = 36

	// ProgramStackSize is the fixed in-heap program/call stack reservation
	// carved out of the high end of the heap.
	ProgramStackSize uint32 = 0x10000
)

// header is the decoded, version-normalized module header. jtrgLength is
// only meaningful for v2 modules; it is validated (must be non-negative)
// but this implementation has no further use for it, matching the fact
// that nothing in this spec assigns it runtime semantics beyond the v2
// header's bookkeeping.
type header struct {
	version          int
	magic            uint32
	instructionCount int32
	codeOffset       uint32
	codeLength       int32
	dataOffset       uint32
	dataLength       int32
	litLength        int32
	bssLength        int32
	jtrgLength       int32
}

func parseHeader(data []byte) (header, error) {
	var h header
	if len(data) >= headerSizeV2 {
		magic := leUint32(data[0:4])
		if magic == magicV2 {
			h.version = 2
			h.magic = magic
			h.instructionCount = leInt32(data[4:8])
			h.codeOffset = leUint32(data[8:12])
			h.codeLength = leInt32(data[12:16])
			h.dataOffset = leUint32(data[16:20])
			h.dataLength = leInt32(data[20:24])
			h.litLength = leInt32(data[24:28])
			h.bssLength = leInt32(data[28:32])
			h.jtrgLength = leInt32(data[32:36])
			return h, validateHeader(h)
		}
	}
	if len(data) >= headerSizeV1 {
		magic := leUint32(data[0:4])
		if magic == magicV1 {
			h.version = 1
			h.magic = magic
			h.instructionCount = leInt32(data[4:8])
			h.codeOffset = leUint32(data[8:12])
			h.codeLength = leInt32(data[12:16])
			h.dataOffset = leUint32(data[16:20])
			h.dataLength = leInt32(data[20:24])
			h.litLength = leInt32(data[24:28])
			h.bssLength = leInt32(data[28:32])
			return h, validateHeader(h)
		}
	}
	return header{}, errors.New("vm: bad module magic or header too short")
}

func validateHeader(h header) error {
	if h.codeLength < 0 {
		return errors.New("vm: negative code_length")
	}
	if h.dataLength < 0 {
		return errors.New("vm: negative data_length")
	}
	if h.litLength < 0 {
		return errors.New("vm: negative lit_length")
	}
	if h.bssLength < 0 {
		return errors.New("vm: negative bss_length")
	}
	if uint32(h.bssLength) < ProgramStackSize {
		return errors.Errorf("vm: bss_length %d smaller than program stack reservation %d", h.bssLength, ProgramStackSize)
	}
	if h.version == 2 && h.jtrgLength < 0 {
		return errors.New("vm: negative jtrg_length")
	}
	return nil
}

// decodeCode decodes a code section into a flat instruction stream, using
// the opcode-length table from opcode.go. Illegal opcodes or a truncated
// final instruction are load failures.
func decodeCode(code []byte) ([]Instruction, error) {
	var out []Instruction
	i := 0
	for i < len(code) {
		op := code[i]
		n, ok := instrLen(op)
		if !ok {
			return nil, errors.Errorf("vm: illegal opcode 0x%02x at code offset %d", op, i)
		}
		if i+n > len(code) {
			return nil, errors.Errorf("vm: truncated instruction at code offset %d", i)
		}
		var param int32
		switch n {
		case 2:
			param = int32(int8(code[i+1]))
		case 5:
			param = leInt32(code[i+1 : i+5])
		}
		out = append(out, Instruction{Op: Op(op), Param: param})
		i += n
	}
	return out, nil
}

// LoadBytes parses module bytes already read into memory (the v1/v2
// header, code section and data/lit/bss layout from spec §4.1/§6) and
// returns a freshly initialized VM. env may be nil if the module makes no
// syscalls; filename is stored for diagnostics only.
func LoadBytes(data []byte, env *Environment, filename string) (*VM, error) {
	h, err := parseHeader(data)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", filename)
	}

	codeEnd := uint64(h.codeOffset) + uint64(h.codeLength)
	if codeEnd > uint64(len(data)) {
		return nil, errors.Errorf("vm: code section [%d,%d) exceeds file length %d", h.codeOffset, codeEnd, len(data))
	}
	dataLitEnd := uint64(h.dataOffset) + uint64(h.dataLength) + uint64(h.litLength)
	if dataLitEnd > uint64(len(data)) {
		return nil, errors.Errorf("vm: data+lit section [%d,%d) exceeds file length %d", h.dataOffset, dataLitEnd, len(data))
	}

	instrs, err := decodeCode(data[h.codeOffset:codeEnd])
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", filename)
	}

	heapContentLen := uint32(h.dataLength) + uint32(h.litLength) + uint32(h.bssLength)
	heapLen := roundupPow2(heapContentLen)
	heap := make([]byte, heapLen)
	copy(heap, data[h.dataOffset:h.dataOffset+uint32(h.dataLength)+uint32(h.litLength)])

	codeCap := roundupPow2(uint32(len(instrs)))
	code := make([]Instruction, codeCap)
	for i := range code {
		code[i] = Instruction{Op: OpBreak}
	}
	copy(code, instrs)

	vm := &VM{
		Env:      env,
		Code:     code,
		codeMask: codeCap - 1,
		Heap:     heap,
		heapMask: heapLen - 1,
		filename: filename,
		state:    StateLoaded,
	}
	vm.setInitialRegisters()
	return vm, nil
}

// Load reads path from disk and returns a new VM in the Loaded state. On
// failure it returns a nil VM and the error; no partially loaded VM is
// produced.
func Load(path string, env *Environment) (*VM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return LoadBytes(data, env, path)
}

func (vm *VM) setInitialRegisters() {
	heapLen := uint32(len(vm.Heap))
	vm.PC = 0
	vm.PSP = heapLen - 4
	vm.StackBottom = vm.PSP - ProgramStackSize
	vm.Status = 0
	vm.stack.depth = 0
}
