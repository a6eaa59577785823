package elfobj

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleIdent() [eiNIdent]byte {
	var ident [eiNIdent]byte
	ident[0], ident[1], ident[2], ident[3] = 0x7f, 'E', 'L', 'F'
	ident[eiClass] = elfClass
	ident[eiData] = elfData2L
	return ident
}

func TestReadHeaderRoundTrip(t *testing.T) {
	h := Header{
		Ident:     sampleIdent(),
		Type:      etREL,
		Machine:   emMIPS,
		Version:   1,
		Shoff:     200,
		Ehsize:    elfHeaderSize,
		Shentsize: sectionHdrSize,
		Shnum:     4,
		Shstrndx:  1,
	}

	data := h.bytes(binary.LittleEndian)
	require.Len(t, data, elfHeaderSize)

	got, err := readHeader(data, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestReadHeaderRejectsNon32Bit(t *testing.T) {
	h := Header{Ident: sampleIdent(), Type: etREL, Machine: emMIPS, Shoff: 1, Shstrndx: 1}
	h.Ident[eiClass] = 2 // ELFCLASS64
	_, err := readHeader(h.bytes(binary.LittleEndian), binary.LittleEndian)
	require.Error(t, err)
	var invalid *InvalidElfError
	assert.ErrorAs(t, err, &invalid)
}

func TestReadHeaderRejectsNonRelocatable(t *testing.T) {
	h := Header{Ident: sampleIdent(), Type: 2, Machine: emMIPS, Shoff: 1, Shstrndx: 1}
	_, err := readHeader(h.bytes(binary.LittleEndian), binary.LittleEndian)
	require.Error(t, err)
}

func TestReadHeaderRejectsNonMIPS(t *testing.T) {
	h := Header{Ident: sampleIdent(), Type: etREL, Machine: 3, Shoff: 1, Shstrndx: 1}
	_, err := readHeader(h.bytes(binary.LittleEndian), binary.LittleEndian)
	require.Error(t, err)
}

func TestReadHeaderRejectsMissingSectionHeaders(t *testing.T) {
	h := Header{Ident: sampleIdent(), Type: etREL, Machine: emMIPS, Shoff: 0, Shstrndx: 1}
	_, err := readHeader(h.bytes(binary.LittleEndian), binary.LittleEndian)
	require.Error(t, err)
}

func TestSectionHeaderRoundTrip(t *testing.T) {
	sh := SectionHeader{
		NameIndex: 5,
		Type:      ShtProgbits,
		Flags:     3,
		Addr:      0,
		Offset:    128,
		Size:      64,
		Link:      0,
		Info:      0,
		Addralign: 4,
		Entsize:   0,
	}
	data := sh.bytes(binary.BigEndian)
	got, err := readSectionHeader(data, binary.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, sh, got)
}
