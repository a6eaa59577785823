package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockCountsBySection(t *testing.T) {
	b := NewBlock(Options{OptLevel: OptO2})
	lines := []string{
		".text",
		"addiu $sp, $sp, -0x10",
		"jr $ra",
		".rodata",
		".float 1.0",
		".data",
		".word 1",
	}
	for _, l := range lines {
		require.NoError(t, b.ProcessLine(l))
	}
	counts := b.Counts()
	assert.Equal(t, 8, counts.text)
	assert.Equal(t, 4, counts.rodata)
	assert.Equal(t, 4, counts.data)
}

func TestBlockLateRodataAlignmentFromDouble(t *testing.T) {
	b := NewBlock(Options{})
	require.NoError(t, b.ProcessLine(".late_rodata"))
	require.NoError(t, b.ProcessLine(".double 1.5"))
	assert.Equal(t, 8, b.LateRodataAlignment())
}

func TestBlockLateRodataAlignmentConflict(t *testing.T) {
	b := NewBlock(Options{})
	require.NoError(t, b.ProcessLine(".late_rodata_alignment 4"))
	err := b.ProcessLine(".late_rodata_alignment 8")
	require.Error(t, err)
}

func TestBlockNeedsLateRodataDummy(t *testing.T) {
	b := NewBlock(Options{OptLevel: OptO2}) // min=2 for O2 default config
	for i := 0; i < 3; i++ {
		require.NoError(t, b.ProcessLine("nop"))
	}
	require.NoError(t, b.ProcessLine(".late_rodata"))
	require.NoError(t, b.ProcessLine(".float 1.0"))
	assert.True(t, b.NeedsLateRodataDummy())
}

func TestBlockNoLateRodataNoDummy(t *testing.T) {
	b := NewBlock(Options{OptLevel: OptO2})
	require.NoError(t, b.ProcessLine("nop"))
	assert.False(t, b.NeedsLateRodataDummy())
}
