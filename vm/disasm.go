package vm

import (
	"fmt"
	"strings"
)

// Disassemble renders a VM's decoded code array as one mnemonic line per
// instruction, in the style of a listing: "    42: ADD" or
// "    43: ENTER 16". It never fails; unknown opcodes print as "?unknown?".
func Disassemble(vm *VM) string {
	var b strings.Builder
	for pc, ins := range vm.Code {
		fmt.Fprintf(&b, "%6d: %s", pc, ins.Op.String())
		if n, _ := instrLen(byte(ins.Op)); n > 1 {
			fmt.Fprintf(&b, " %d", ins.Param)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// DisassembleBytes is a convenience for disassembling a module file
// without first constructing a runnable VM (no Environment or heap
// initialization needed beyond what decoding requires).
func DisassembleBytes(data []byte) (string, error) {
	h, err := parseHeader(data)
	if err != nil {
		return "", err
	}
	codeEnd := uint64(h.codeOffset) + uint64(h.codeLength)
	if codeEnd > uint64(len(data)) {
		return "", errOutOfBounds
	}
	instrs, err := decodeCode(data[h.codeOffset:codeEnd])
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for pc, ins := range instrs {
		fmt.Fprintf(&b, "%6d: %s", pc, ins.Op.String())
		if n, _ := instrLen(byte(ins.Op)); n > 1 {
			fmt.Fprintf(&b, " %d", ins.Param)
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}
