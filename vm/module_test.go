package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytesMinimalModule(t *testing.T) {
	data := buildModuleV1([]Instruction{
		enc(OpEnter, 0),
		enc(OpConst, 7),
		enc(OpLeave, 0),
	}, nil, int32(ProgramStackSize))

	m, err := LoadBytes(data, nil, "test.vm")
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, m.state)
	assert.Zero(t, m.PC)
	assert.Zero(t, m.Status)
	// Code array is padded to a power of two with BREAK.
	assert.True(t, len(m.Code) >= 3)
	for i := 3; i < len(m.Code); i++ {
		assert.Equal(t, OpBreak, m.Code[i].Op)
	}
}

func TestLoadBytesRejectsBadMagic(t *testing.T) {
	_, err := LoadBytes([]byte{0, 1, 2, 3}, nil, "bad.vm")
	assert.Error(t, err)
}

func TestLoadBytesRejectsShortBssLength(t *testing.T) {
	data := buildModuleV1([]Instruction{enc(OpBreak, 0)}, nil, 16)
	_, err := LoadBytes(data, nil, "bad.vm")
	assert.Error(t, err)
}

func TestLoadBytesRejectsTruncatedCodeSection(t *testing.T) {
	data := buildModuleV1([]Instruction{enc(OpEnter, 0)}, nil, int32(ProgramStackSize))
	data = data[:len(data)-3]
	_, err := LoadBytes(data, nil, "truncated.vm")
	assert.Error(t, err)
}
