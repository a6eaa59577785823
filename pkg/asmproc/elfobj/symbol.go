package elfobj

import (
	"encoding/binary"

	"github.com/Manu343726/asmproc/pkg/utils"
)

// Symbol is a parsed ELF32 symbol table entry. Sections and relocations
// refer to symbols by index into the owning File's symbol slice; when the
// symbol table is rebuilt, a translation map from old to new index is
// built in one pass rather than mutating shared references.
type Symbol struct {
	NameIndex  uint32
	Value      uint32
	Size       uint32
	Shndx      int
	Type       uint8
	Bind       uint8
	Visibility uint8
	Name       []byte
}

func readSymbol(data []byte, strtab *Section, order binary.ByteOrder) (Symbol, error) {
	if len(data) < symbolEntrySize {
		return Symbol{}, invalidElf("truncated symbol entry")
	}
	stName := order.Uint32(data[0:4])
	stValue := order.Uint32(data[4:8])
	stSize := order.Uint32(data[8:12])
	stInfo := data[12]
	stOther := data[13]
	stShndx := order.Uint16(data[14:16])

	if stShndx == ShnXindex {
		return Symbol{}, unsupportedFeature("SHN_XINDEX extended section indices")
	}

	infoView := utils.CreateBitView(&stInfo)
	return Symbol{
		NameIndex:  stName,
		Value:      stValue,
		Size:       stSize,
		Shndx:      int(stShndx),
		Type:       infoView.Read(0, 4),
		Bind:       infoView.Read(4, 4),
		Visibility: stOther & 0x3,
		Name:       strtab.lookupStr(int(stName)),
	}, nil
}

func (s Symbol) bytes(order binary.ByteOrder) []byte {
	out := make([]byte, symbolEntrySize)
	order.PutUint32(out[0:4], s.NameIndex)
	order.PutUint32(out[4:8], s.Value)
	order.PutUint32(out[8:12], s.Size)
	out[12] = s.Bind<<4 | s.Type
	out[13] = s.Visibility
	order.PutUint16(out[14:16], uint16(s.Shndx))
	return out
}

// Relocation is a parsed ELF32 REL/RELA entry.
type Relocation struct {
	Offset   uint32
	SymIndex int
	Type     uint32
	Addend   *uint32 // non-nil iff the containing section is SHT_RELA
}

func readRelocation(data []byte, shType uint32, order binary.ByteOrder) (Relocation, error) {
	if len(data) < 8 {
		return Relocation{}, invalidElf("truncated relocation entry")
	}
	offset := order.Uint32(data[0:4])
	info := order.Uint32(data[4:8])
	infoView := utils.CreateBitView(&info)
	var addend *uint32
	if shType == ShtRela {
		if len(data) < 12 {
			return Relocation{}, invalidElf("truncated RELA entry")
		}
		v := order.Uint32(data[8:12])
		addend = &v
	}
	return Relocation{
		Offset:   offset,
		SymIndex: int(infoView.Read(8, 24)),
		Type:     infoView.Read(0, 8),
		Addend:   addend,
	}, nil
}

func (r Relocation) bytes(order binary.ByteOrder) []byte {
	size := 8
	if r.Addend != nil {
		size = 12
	}
	out := make([]byte, size)
	order.PutUint32(out[0:4], r.Offset)
	order.PutUint32(out[4:8], uint32(r.SymIndex)<<8|r.Type)
	if r.Addend != nil {
		order.PutUint32(out[8:12], *r.Addend)
	}
	return out
}
