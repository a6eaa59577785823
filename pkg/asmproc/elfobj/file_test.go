package elfobj

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildMinimalObject assembles a tiny valid ELF32 MIPS relocatable object
// by hand: a null section, .text, .shstrtab, .symtab and .strtab, the way
// a real assembler's output would be laid out.
func buildMinimalObject(t *testing.T) []byte {
	t.Helper()
	order := binary.LittleEndian

	shstrtab := []byte("\x00.text\x00.shstrtab\x00.symtab\x00.strtab\x00")
	nameOf := func(name string) uint32 {
		idx := indexOfSubstring(string(shstrtab), name+"\x00")
		require.GreaterOrEqual(t, idx, 0)
		return uint32(idx)
	}

	strtab := []byte("\x00my_func\x00")
	textData := []byte{0, 0, 0, 0, 0, 0, 0, 0} // two dummy instructions

	sym := Symbol{NameIndex: 1, Value: 0, Size: 8, Shndx: 1, Type: SttFunc, Bind: StbGlobal}
	symtabData := append(make([]byte, symbolEntrySize), sym.bytes(order)...) // null sym + my_func

	sections := []struct {
		name string
		hdr  SectionHeader
		data []byte
	}{
		{"", SectionHeader{}, nil},
		{".text", SectionHeader{Type: ShtProgbits, Addralign: 4}, textData},
		{".shstrtab", SectionHeader{Type: ShtStrtab}, shstrtab},
		{".symtab", SectionHeader{Type: ShtSymtab, Link: 4, Entsize: symbolEntrySize}, symtabData},
		{".strtab", SectionHeader{Type: ShtStrtab}, strtab},
	}

	var blob []byte
	blob = append(blob, make([]byte, elfHeaderSize)...)
	offsets := make([]uint32, len(sections))
	for i, s := range sections {
		offsets[i] = uint32(len(blob))
		blob = append(blob, s.data...)
	}

	shoff := uint32(len(blob))
	for i, s := range sections {
		hdr := s.hdr
		hdr.Offset = offsets[i]
		hdr.Size = uint32(len(s.data))
		if s.name != "" {
			hdr.NameIndex = nameOf(s.name)
		}
		blob = append(blob, hdr.bytes(order)...)
	}

	var ident [eiNIdent]byte
	ident[0], ident[1], ident[2], ident[3] = 0x7f, 'E', 'L', 'F'
	ident[eiClass] = elfClass
	ident[eiData] = elfData2L
	header := Header{
		Ident:     ident,
		Type:      etREL,
		Machine:   emMIPS,
		Version:   1,
		Shoff:     shoff,
		Ehsize:    elfHeaderSize,
		Shentsize: sectionHdrSize,
		Shnum:     uint16(len(sections)),
		Shstrndx:  2,
	}
	copy(blob[:elfHeaderSize], header.bytes(order))

	return blob
}

func indexOfSubstring(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func TestParseMinimalObject(t *testing.T) {
	data := buildMinimalObject(t)

	f, err := Parse(data)
	require.NoError(t, err)

	text := f.FindSection(".text")
	require.NotNil(t, text)
	assert.Len(t, text.Data, 8)

	symtab := f.Symtab()
	require.Len(t, symtab.Symbols, 2)
	assert.Equal(t, "my_func", string(symtab.Symbols[1].Name))
	assert.EqualValues(t, 8, symtab.Symbols[1].Size)
}

func TestFileWriteRoundTrip(t *testing.T) {
	data := buildMinimalObject(t)
	f, err := Parse(data)
	require.NoError(t, err)

	out, err := f.Write()
	require.NoError(t, err)

	f2, err := Parse(out)
	require.NoError(t, err)

	assert.Equal(t, f.FindSection(".text").Data, f2.FindSection(".text").Data)
	require.Len(t, f2.Symtab().Symbols, 2)
	assert.Equal(t, "my_func", string(f2.Symtab().Symbols[1].Name))
}
