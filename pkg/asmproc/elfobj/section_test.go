package elfobj

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSectionLookupAndAddStr(t *testing.T) {
	s := &Section{Data: []byte("\x00foo\x00bar\x00")}
	assert.Equal(t, "foo", string(s.lookupStr(1)))
	assert.Equal(t, "bar", string(s.lookupStr(5)))

	idx := s.addStr([]byte("baz"))
	assert.Equal(t, "baz", string(s.lookupStr(int(idx))))
}

func TestSectionFindSymbol(t *testing.T) {
	s := &Section{
		Symbols: []*Symbol{
			{Name: []byte("a"), Shndx: 1, Value: 0x10},
			{Name: []byte("b"), Shndx: 2, Value: 0x20},
		},
	}
	shndx, value, ok := s.FindSymbol([]byte("b"))
	require.True(t, ok)
	assert.Equal(t, 2, shndx)
	assert.EqualValues(t, 0x20, value)

	_, _, ok = s.FindSymbol([]byte("missing"))
	assert.False(t, ok)
}

func TestSectionFindSymbolInSectionMismatch(t *testing.T) {
	s := &Section{Symbols: []*Symbol{{Name: []byte("a"), Shndx: 1, Value: 4}}}
	wrongSection := &Section{Index: 2, Name: ".data"}
	_, err := s.FindSymbolInSection([]byte("a"), wrongSection)
	require.Error(t, err)
}

func TestOutputSectionFromName(t *testing.T) {
	sec, ok := SectionFromName(".late_rodata")
	require.True(t, ok)
	assert.Equal(t, SectionLateRodata, sec)
	assert.Equal(t, ".late_rodata", sec.String())

	_, ok = SectionFromName(".nonexistent")
	assert.False(t, ok)
}
