package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstructionEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Instruction{
		{Op: OpBreak},
		{Op: OpArg, Param: 3},
		{Op: OpArg, Param: -1},
		{Op: OpEnter, Param: 64},
		{Op: OpConst, Param: -12345},
		{Op: OpBlockCopy, Param: 256},
	}
	for _, want := range cases {
		raw := want.Encode()
		got, err := decodeCode(raw)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, want, got[0])
	}
}

func TestInstrLenCoversFullOpcodeRange(t *testing.T) {
	for op := 0; op <= int(opMax); op++ {
		n, ok := instrLen(byte(op))
		assert.True(t, ok, "opcode 0x%02x should be legal", op)
		assert.Contains(t, []int{1, 2, 5}, n)
	}
	_, ok := instrLen(0x3C)
	assert.False(t, ok, "opcode past opMax must be illegal")
}

func TestOpStringUnknown(t *testing.T) {
	assert.Equal(t, "?unknown?", Op(0xFF).String())
	assert.Equal(t, "ADD", OpAdd.String())
}

func TestDecodeCodeRejectsIllegalOpcode(t *testing.T) {
	_, err := decodeCode([]byte{0x3C})
	assert.Error(t, err)
}

func TestDecodeCodeRejectsTruncatedInstruction(t *testing.T) {
	_, err := decodeCode([]byte{byte(OpEnter), 0x01, 0x02})
	assert.Error(t, err)
}
