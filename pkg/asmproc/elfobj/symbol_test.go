package elfobj

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolRoundTrip(t *testing.T) {
	strtab := &Section{Data: []byte("\x00my_func\x00")}

	raw := make([]byte, symbolEntrySize)
	binary.LittleEndian.PutUint32(raw[0:4], 1) // "my_func"
	binary.LittleEndian.PutUint32(raw[4:8], 0x400)
	binary.LittleEndian.PutUint32(raw[8:12], 16)
	raw[12] = byte(StbGlobal<<4 | SttFunc)
	raw[13] = StvDefault
	binary.LittleEndian.PutUint16(raw[14:16], 1)

	sym, err := readSymbol(raw, strtab, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, "my_func", string(sym.Name))
	assert.EqualValues(t, SttFunc, sym.Type)
	assert.EqualValues(t, StbGlobal, sym.Bind)
	assert.EqualValues(t, 0x400, sym.Value)
	assert.EqualValues(t, 16, sym.Size)

	out := sym.bytes(binary.LittleEndian)
	assert.Equal(t, raw, out)
}

func TestReadSymbolRejectsXindex(t *testing.T) {
	strtab := &Section{Data: []byte("\x00")}
	raw := make([]byte, symbolEntrySize)
	binary.LittleEndian.PutUint16(raw[14:16], ShnXindex)
	_, err := readSymbol(raw, strtab, binary.LittleEndian)
	require.Error(t, err)
	var unsupported *UnsupportedFeatureError
	assert.ErrorAs(t, err, &unsupported)
}

func TestRelocationRoundTripREL(t *testing.T) {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint32(raw[0:4], 0x1000)
	binary.BigEndian.PutUint32(raw[4:8], uint32(5)<<8|2)

	rel, err := readRelocation(raw, ShtRel, binary.BigEndian)
	require.NoError(t, err)
	assert.Nil(t, rel.Addend)
	assert.Equal(t, 5, rel.SymIndex)
	assert.EqualValues(t, 2, rel.Type)
	assert.Equal(t, raw, rel.bytes(binary.BigEndian))
}

func TestRelocationRoundTripRELA(t *testing.T) {
	raw := make([]byte, 12)
	binary.LittleEndian.PutUint32(raw[0:4], 0x2000)
	binary.LittleEndian.PutUint32(raw[4:8], uint32(9)<<8|4)
	binary.LittleEndian.PutUint32(raw[8:12], 0xffffffff)

	rel, err := readRelocation(raw, ShtRela, binary.LittleEndian)
	require.NoError(t, err)
	require.NotNil(t, rel.Addend)
	assert.EqualValues(t, 0xffffffff, *rel.Addend)
	assert.Equal(t, raw, rel.bytes(binary.LittleEndian))
}
