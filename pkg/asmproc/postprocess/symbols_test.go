package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manu343726/asmproc/pkg/asmproc/elfobj"
)

func TestReorderSymbolsLocalsFirstGpDispLast(t *testing.T) {
	symtab := &elfobj.Section{
		Symbols: []*elfobj.Symbol{
			{Name: []byte("global_a"), Bind: elfobj.StbGlobal, Shndx: 1},
			{Name: []byte("_gp_disp"), Bind: elfobj.StbGlobal, Shndx: 0},
			{Name: []byte("local_b"), Bind: elfobj.StbLocal, Shndx: 2},
			{Name: []byte("local_a"), Bind: elfobj.StbLocal, Shndx: 1},
		},
	}

	_, err := reorderSymbols(symtab)
	require.NoError(t, err)

	require.Len(t, symtab.Symbols, 4)
	assert.Equal(t, "local_a", string(symtab.Symbols[0].Name))
	assert.Equal(t, "local_b", string(symtab.Symbols[1].Name))
	assert.Equal(t, "global_a", string(symtab.Symbols[2].Name))
	assert.Equal(t, "_gp_disp", string(symtab.Symbols[3].Name))
}

func TestLateRodataSpliceFindsPattern(t *testing.T) {
	rodata := append(append(make([]byte, 4), []byte{0xde, 0xad, 0xbe, 0xef}...), make([]byte, 4)...)
	idx, ok := lateRodataSplice(rodata, []byte{0xde, 0xad, 0xbe, 0xef}, 0)
	require.True(t, ok)
	assert.Equal(t, 4, idx)
}

func TestLateRodataSpliceToleratesLeadingZeroPad(t *testing.T) {
	pattern := []byte{1, 2, 3, 4}
	rodata := append(append(make([]byte, 4), pattern...), make([]byte, 2)...)
	idx, ok := lateRodataSplice(rodata, pattern, 0)
	require.True(t, ok)
	assert.Equal(t, 4, idx)
}
