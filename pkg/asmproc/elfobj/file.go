package elfobj

import (
	"encoding/binary"

	"github.com/Manu343726/asmproc/pkg/utils"
)

// File is a fully parsed, in-memory, mutable MIPS32 relocatable object. It
// owns every section's bytes, so the postprocessor can splice
// assembled code in, renumber symbols, rewrite relocations and serialize a
// brand new object without ever touching an external linker.
type File struct {
	Header       Header
	Order        binary.ByteOrder
	Sections     []*Section
	shstrtabIdx  int
	symtabIdx    int
	strtabIdx    int
}

func orderFor(ident [eiNIdent]byte) (binary.ByteOrder, error) {
	switch ident[eiData] {
	case elfData2L:
		return binary.LittleEndian, nil
	case elfData2M:
		return binary.BigEndian, nil
	default:
		return nil, invalidElf("unknown EI_DATA %d", ident[eiData])
	}
}

// Parse reads a complete ELF32 MIPS relocatable object out of data.
func Parse(data []byte) (*File, error) {
	if len(data) < eiNIdent {
		return nil, invalidElf("file too short for e_ident")
	}
	var ident [eiNIdent]byte
	copy(ident[:], data[:eiNIdent])
	order, err := orderFor(ident)
	if err != nil {
		return nil, err
	}

	header, err := readHeader(data, order)
	if err != nil {
		return nil, err
	}

	if int(header.Shnum) == 0 {
		return nil, invalidElf("ELF has no section headers")
	}

	f := &File{
		Header:      header,
		Order:       order,
		shstrtabIdx: int(header.Shstrndx),
	}

	for i := 0; i < int(header.Shnum); i++ {
		off := int(header.Shoff) + i*sectionHdrSize
		if off+sectionHdrSize > len(data) {
			return nil, invalidElf("section header %d out of bounds", i)
		}
		sec, err := newSection(data[off:off+sectionHdrSize], data, i, order)
		if err != nil {
			return nil, utils.MakeError(err, "section %d", i)
		}
		f.Sections = append(f.Sections, sec)
	}

	shstrtab := f.Sections[f.shstrtabIdx]
	for _, sec := range f.Sections {
		sec.Name = string(shstrtab.lookupStr(int(sec.Header.NameIndex)))
	}

	for i, sec := range f.Sections {
		switch sec.Header.Type {
		case ShtSymtab:
			f.symtabIdx = i
			f.strtabIdx = int(sec.Header.Link)
		}
	}
	if f.symtabIdx == 0 && f.Sections[0].Header.Type != ShtSymtab {
		return nil, invalidElf("object has no SHT_SYMTAB section")
	}

	strtab := f.Sections[f.strtabIdx]
	if err := f.Sections[f.symtabIdx].initSymbols(strtab, order); err != nil {
		return nil, utils.MakeError(err, "symtab")
	}

	for _, sec := range f.Sections {
		if sec.isRel() {
			if err := sec.initRelocs(order); err != nil {
				return nil, utils.MakeError(err, "section %q", sec.Name)
			}
			target := int(sec.Header.Info)
			if target >= 0 && target < len(f.Sections) {
				f.Sections[target].RelocatedBy = append(f.Sections[target].RelocatedBy, sec.Index)
			}
		}
	}

	return f, nil
}

// Symtab returns the object's single SHT_SYMTAB section.
func (f *File) Symtab() *Section { return f.Sections[f.symtabIdx] }

// Strtab returns the string table backing Symtab.
func (f *File) Strtab() *Section { return f.Sections[f.strtabIdx] }

// FindSection returns the first section with the given name, or nil.
func (f *File) FindSection(name string) *Section {
	for _, sec := range f.Sections {
		if sec.Name == name {
			return sec
		}
	}
	return nil
}

// FindSymbolSection returns the section a symbol named `name` resolves
// into, along with its value, mirroring ElfFile::find_section_for_symbol.
func (f *File) FindSymbolSection(name []byte) (*Section, uint32, bool) {
	shndx, value, ok := f.Symtab().FindSymbol(name)
	if !ok || shndx <= 0 || shndx >= len(f.Sections) {
		return nil, 0, false
	}
	return f.Sections[shndx], value, true
}

// AddSection appends a brand new section (used for a relocation section
// created for a section that had none) and returns it. The section header string table gains the new
// name automatically.
func (f *File) AddSection(name string, fields HeaderFields, data []byte) *Section {
	shstrtab := f.Sections[f.shstrtabIdx]
	nameIndex := shstrtab.addStr([]byte(name))
	sec := fromParts(nameIndex, fields, data, len(f.Sections))
	sec.Name = name
	f.Sections = append(f.Sections, sec)
	return sec
}

// DropSection removes sections (by name) from the object entirely, used to
// drop the stub's .late_rodata and its relocation section after splicing,
// and .mdebug/.gptab under the reference tool's drop_mdebug_gptab option.
func (f *File) DropSection(name string) {
	kept := f.Sections[:0]
	removedBefore := map[int]int{}
	removed := 0
	for i, sec := range f.Sections {
		if sec.Name == name {
			removed++
			removedBefore[i] = removed
			continue
		}
		removedBefore[i] = removed
		kept = append(kept, sec)
	}
	if removed == 0 {
		return
	}
	for i, sec := range kept {
		sec.Index = i
	}
	remap := func(old int) int {
		if old == 0 {
			return 0
		}
		return old - removedBefore[old]
	}
	for _, sec := range kept {
		sec.Header.Link = uint32(remap(int(sec.Header.Link)))
		if sec.isRel() {
			sec.Header.Info = uint32(remap(int(sec.Header.Info)))
		}
	}
	f.Sections = kept
	f.shstrtabIdx = remap(f.shstrtabIdx)
	f.symtabIdx = remap(f.symtabIdx)
	f.strtabIdx = remap(f.strtabIdx)
}

// Write serializes the object back to bytes: section payloads first (each
// rounded up to its alignment), then the section header table, with every
// offset/size/link/info field recomputed from current in-memory state.
func (f *File) Write() ([]byte, error) {
	order := f.Order

	// Rebuild symtab and every rel/rela payload from their parsed entries
	// before anything else, since payload length feeds layout.
	symtab := f.Sections[f.symtabIdx]
	symtab.Data = make([]byte, 0, len(symtab.Symbols)*symbolEntrySize)
	for _, sym := range symtab.Symbols {
		symtab.Data = append(symtab.Data, sym.bytes(order)...)
	}
	symtab.Header.Entsize = symbolEntrySize
	symtab.Header.Info = uint32(firstGlobalSymbolIndex(symtab.Symbols))

	for _, sec := range f.Sections {
		if !sec.isRel() || sec.Relocations == nil {
			continue
		}
		sec.Data = sec.Data[:0]
		for _, rel := range sec.Relocations {
			sec.Data = append(sec.Data, rel.bytes(order)...)
		}
		if sec.Header.Type == ShtRela {
			sec.Header.Entsize = 12
		} else {
			sec.Header.Entsize = 8
		}
	}

	out := make([]byte, elfHeaderSize)
	offset := uint32(elfHeaderSize)

	for _, sec := range f.Sections {
		if sec.Header.Type == ShtNull {
			sec.Header.Offset = 0
			continue
		}
		if sec.Header.Addralign > 1 {
			offset = alignUp(offset, sec.Header.Addralign)
		}
		sec.Header.Offset = offset
		if sec.Header.Type != ShtNobits {
			sec.Header.Size = uint32(len(sec.Data))
			out = append(out, padTo(len(out), int(sec.Header.Addralign))...)
			out = append(out, sec.Data...)
			offset += sec.Header.Size
		}
	}

	shoff := alignUp(uint32(len(out)), 4)
	out = append(out, make([]byte, int(shoff)-len(out))...)
	for _, sec := range f.Sections {
		out = append(out, sec.headerBytes(order)...)
	}

	f.Header.Shoff = shoff
	f.Header.Shnum = uint16(len(f.Sections))
	f.Header.Shstrndx = uint16(f.shstrtabIdx)
	copy(out[:elfHeaderSize], f.Header.bytes(order))

	return out, nil
}

func firstGlobalSymbolIndex(syms []*Symbol) int {
	for i, s := range syms {
		if s.Bind != StbLocal {
			return i
		}
	}
	return len(syms)
}

func alignUp(v, align uint32) uint32 {
	if align == 0 {
		return v
	}
	rem := v % align
	if rem == 0 {
		return v
	}
	return v + (align - rem)
}

func padTo(curLen, align int) []byte {
	if align <= 1 {
		return nil
	}
	rem := curLen % align
	if rem == 0 {
		return nil
	}
	return make([]byte, align-rem)
}
