package elfobj

import (
	"bytes"
	"encoding/binary"
)

// Section is an ELF section together with whatever the File parsed out of
// its payload: symbol entries (SYMTAB only) and relocation entries
// (REL/RELA only). A section exclusively owns its payload and parsed
// entries; nothing else in the object aliases a section's byte slice.
type Section struct {
	Header SectionHeader
	Data   []byte
	Index  int
	Name   string

	// RelocatedBy holds the indices of relocation sections that target
	// this section (i.e. whose sh_info == this section's index).
	RelocatedBy []int

	// Symbols is populated only for the SHT_SYMTAB section.
	Symbols []*Symbol
	// Relocations is populated only for REL/RELA sections.
	Relocations []Relocation
}

func newSection(raw []byte, fileData []byte, index int, order binary.ByteOrder) (*Section, error) {
	hdr, err := readSectionHeader(raw, order)
	if err != nil {
		return nil, err
	}
	if hdr.Flags&ShfLinkOrder != 0 {
		return nil, unsupportedFeature("SHF_LINK_ORDER section")
	}
	if hdr.Entsize != 0 && hdr.Size%hdr.Entsize != 0 {
		return nil, invalidElf("section size %d is not a multiple of entsize %d", hdr.Size, hdr.Entsize)
	}

	var data []byte
	if hdr.Type == ShtNobits {
		data = nil
	} else {
		end := hdr.Offset + hdr.Size
		if int(end) > len(fileData) || hdr.Offset > end {
			return nil, invalidElf("section payload out of bounds")
		}
		data = append([]byte(nil), fileData[hdr.Offset:end]...)
	}

	return &Section{
		Header: hdr,
		Data:   data,
		Index:  index,
	}, nil
}

// fromParts builds a brand-new section (used by AddSection) from header
// fields and a fully-formed payload.
func fromParts(nameIndex uint32, fields HeaderFields, data []byte, index int) *Section {
	hdr := SectionHeader{
		NameIndex: nameIndex,
		Type:      fields.Type,
		Flags:     fields.Flags,
		Addr:      0,
		Offset:    0,
		Size:      uint32(len(data)),
		Link:      fields.Link,
		Info:      fields.Info,
		Addralign: fields.Addralign,
		Entsize:   fields.Entsize,
	}
	return &Section{
		Header: hdr,
		Data:   append([]byte(nil), data...),
		Index:  index,
	}
}

// HeaderFields are the section-header fields a caller of AddSection picks;
// NameIndex/Offset/Size are derived automatically.
type HeaderFields struct {
	Type      uint32
	Flags     uint32
	Link      uint32
	Info      uint32
	Addralign uint32
	Entsize   uint32
}

func (s *Section) isRel() bool {
	return s.Header.Type == ShtRel || s.Header.Type == ShtRela
}

// IsRelocationSection reports whether s holds REL/RELA entries.
func (s *Section) IsRelocationSection() bool {
	return s.isRel()
}

// lookupStr reads a NUL-terminated string starting at index out of a
// string-table section's payload.
func (s *Section) lookupStr(index int) []byte {
	if index < 0 || index > len(s.Data) {
		return nil
	}
	end := bytes.IndexByte(s.Data[index:], 0)
	if end < 0 {
		return append([]byte(nil), s.Data[index:]...)
	}
	return append([]byte(nil), s.Data[index:index+end]...)
}

// addStr appends a string (plus terminating NUL) to a string-table section
// and returns the byte offset it was written at.
func (s *Section) addStr(str []byte) uint32 {
	index := uint32(len(s.Data))
	s.Data = append(s.Data, str...)
	s.Data = append(s.Data, 0)
	return index
}

func (s *Section) initSymbols(strtab *Section, order binary.ByteOrder) error {
	if s.Header.Entsize != symbolEntrySize {
		return invalidElf("symbol table entsize must be %d, got %d", symbolEntrySize, s.Header.Entsize)
	}
	n := len(s.Data) / symbolEntrySize
	s.Symbols = make([]*Symbol, 0, n)
	for i := 0; i < n; i++ {
		sym, err := readSymbol(s.Data[i*symbolEntrySize:(i+1)*symbolEntrySize], strtab, order)
		if err != nil {
			return err
		}
		s.Symbols = append(s.Symbols, &sym)
	}
	return nil
}

func (s *Section) initRelocs(order binary.ByteOrder) error {
	entsize := int(s.Header.Entsize)
	if entsize == 0 {
		return nil
	}
	for off := 0; off+entsize <= len(s.Data); off += entsize {
		rel, err := readRelocation(s.Data[off:off+entsize], s.Header.Type, order)
		if err != nil {
			return err
		}
		s.Relocations = append(s.Relocations, rel)
	}
	return nil
}

// FindSymbol returns the (section index, value) of the first symbol with
// the given name, or ok=false. Mirrors Section::find_symbol.
func (s *Section) FindSymbol(name []byte) (shndx int, value uint32, ok bool) {
	for _, sym := range s.Symbols {
		if bytes.Equal(sym.Name, name) {
			return sym.Shndx, sym.Value, true
		}
	}
	return 0, 0, false
}

// FindSymbolInSection returns the value of a symbol named `name` that must
// live in `section`, panicking the caller's error path if it lives
// elsewhere (mirrors the reference tool's assert).
func (s *Section) FindSymbolInSection(name []byte, section *Section) (uint32, error) {
	shndx, value, ok := s.FindSymbol(name)
	if !ok {
		return 0, invalidElf("symbol %q not found", name)
	}
	if shndx != section.Index {
		return 0, invalidElf("symbol %q expected in section %q but found in section index %d", name, section.Name, shndx)
	}
	return value, nil
}

func (s *Section) headerBytes(order binary.ByteOrder) []byte {
	if s.Header.Type != ShtNobits {
		s.Header.Size = uint32(len(s.Data))
	}
	return s.Header.bytes(order)
}
