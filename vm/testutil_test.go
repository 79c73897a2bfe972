package vm

import "encoding/binary"

// buildModuleV1 assembles a minimal v1 module (header + code + data) for
// tests, mirroring the on-disk layout LoadBytes expects.
func buildModuleV1(instrs []Instruction, data []byte, bssLength int32) []byte {
	var code []byte
	for _, ins := range instrs {
		code = append(code, ins.Encode()...)
	}

	header := make([]byte, headerSizeV1)
	binary.LittleEndian.PutUint32(header[0:4], magicV1)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(instrs)))
	binary.LittleEndian.PutUint32(header[8:12], headerSizeV1)
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(code)))
	binary.LittleEndian.PutUint32(header[16:20], headerSizeV1+uint32(len(code)))
	binary.LittleEndian.PutUint32(header[20:24], uint32(len(data)))
	binary.LittleEndian.PutUint32(header[24:28], 0)
	binary.LittleEndian.PutUint32(header[28:32], uint32(bssLength))

	out := append(header, code...)
	out = append(out, data...)
	return out
}

func enc(op Op, param int32) Instruction {
	return Instruction{Op: op, Param: param}
}
