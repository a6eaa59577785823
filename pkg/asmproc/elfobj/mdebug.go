package elfobj

import (
	"encoding/binary"

	"github.com/Manu343726/asmproc/pkg/utils"
)

// Hdrr is the 96-byte ECOFF symbolic header (HDRR) found at the start of
// a MIPS .mdebug section. It is a table of (count, offset) pairs pointing
// at the line-number, procedure-descriptor, symbol, auxiliary, string,
// file-descriptor, related-file-descriptor and external-symbol tables that
// follow it in the section. The postprocessor never needs to understand
// those tables' internal layout beyond locating the local (static) symbol
// records living between LineOffset and the end of the section, so this
// type only tracks the offsets that can shift when sections move.
type Hdrr struct {
	Magic   uint16
	VStamp  uint16
	_       uint32 // reserved/padding to keep the header a round 96 bytes
	LineMax uint32
	CbLine  uint32
	LineOff uint32
	DnMax   uint32
	DnOff   uint32
	PdMax   uint32
	PdOff   uint32
	SymMax  uint32
	SymOff  uint32
	OptMax  uint32
	OptOff  uint32
	AuxMax  uint32
	AuxOff  uint32
	IssMax  uint32
	IssOff  uint32
	FdMax   uint32
	FdOff   uint32
	RfdMax  uint32
	RfdOff  uint32
	ExtMax  uint32
	ExtOff  uint32
}

// ReadHdrr parses the HDRR symbolic header at the start of a .mdebug
// section's payload.
func ReadHdrr(data []byte, order binary.ByteOrder) (Hdrr, error) {
	return readHdrr(data, order)
}

func readHdrr(data []byte, order binary.ByteOrder) (Hdrr, error) {
	if len(data) < hdrrSize {
		return Hdrr{}, invalidElf(".mdebug section shorter than HDRR header")
	}
	var h Hdrr
	h.Magic = order.Uint16(data[0:2])
	h.VStamp = order.Uint16(data[2:4])
	if h.Magic != hdrrMagic {
		return Hdrr{}, invalidElf(".mdebug HDRR has wrong magic 0x%x", h.Magic)
	}
	fields := []*uint32{
		&h.LineMax, &h.CbLine, &h.LineOff,
		&h.DnMax, &h.DnOff,
		&h.PdMax, &h.PdOff,
		&h.SymMax, &h.SymOff,
		&h.OptMax, &h.OptOff,
		&h.AuxMax, &h.AuxOff,
		&h.IssMax, &h.IssOff,
		&h.FdMax, &h.FdOff,
		&h.RfdMax, &h.RfdOff,
		&h.ExtMax, &h.ExtOff,
	}
	off := 8
	for _, f := range fields {
		*f = order.Uint32(data[off : off+4])
		off += 4
	}
	return h, nil
}

func (h Hdrr) bytes(order binary.ByteOrder) []byte {
	out := make([]byte, hdrrSize)
	order.PutUint16(out[0:2], h.Magic)
	order.PutUint16(out[2:4], h.VStamp)
	fields := []uint32{
		h.LineMax, h.CbLine, h.LineOff,
		h.DnMax, h.DnOff,
		h.PdMax, h.PdOff,
		h.SymMax, h.SymOff,
		h.OptMax, h.OptOff,
		h.AuxMax, h.AuxOff,
		h.IssMax, h.IssOff,
		h.FdMax, h.FdOff,
		h.RfdMax, h.RfdOff,
		h.ExtMax, h.ExtOff,
	}
	off := 8
	for _, v := range fields {
		order.PutUint32(out[off:off+4], v)
		off += 4
	}
	return out
}

// Fdr is a simplified view of the 72-byte MIPS ECOFF file-descriptor
// record: the real record carries line-number and auxiliary-table bounds
// this tool never reads, so only the three fields the static-symbol walk
// needs (the base of its string data, the base of this file's
// local-symbol range, and how many local symbols it owns) are modeled, read
// at their offsets in that record. Nothing in this tool writes an FDR back.
type Fdr struct {
	IssBase  uint32 // offset into .mdebug's string area where this file's names start
	IsymBase uint32 // index of this file's first local symbol in the SYM table
	Csym     uint32 // number of local symbols this file owns
}

const fdrSize = 72
const (
	fdrIssBaseOff  = 8
	fdrIsymBaseOff = 16
	fdrCsymOff     = 20
)

func readFdr(data []byte, order binary.ByteOrder) Fdr {
	return Fdr{
		IssBase:  order.Uint32(data[fdrIssBaseOff : fdrIssBaseOff+4]),
		IsymBase: order.Uint32(data[fdrIsymBaseOff : fdrIsymBaseOff+4]),
		Csym:     order.Uint32(data[fdrCsymOff : fdrCsymOff+4]),
	}
}

// ConvertStatics controls whether and how file-local (static) C symbols
// recovered from .mdebug are imported into the merged symbol table.
type ConvertStatics int

const (
	// ConvertStaticsNo leaves file-local statics out of the merged object
	// entirely; only the globally visible symbols already in .symtab
	// survive.
	ConvertStaticsNo ConvertStatics = iota
	// ConvertStaticsLocal imports statics as STB_LOCAL symbols under
	// their original name.
	ConvertStaticsLocal
	// ConvertStaticsGlobal imports statics as STB_GLOBAL so other
	// translation units can link against them directly.
	ConvertStaticsGlobal
	// ConvertStaticsGlobalWithFilename is like Global but prefixes the
	// name with "<path>:" to avoid clashing with another file's static of
	// the same name once both are global.
	ConvertStaticsGlobalWithFilename
)

// ImportStaticSymbols is the exported entry point postprocess uses to
// recover file-local symbols from a parsed .mdebug section.
func ImportStaticSymbols(mdebug *Section, hdrr Hdrr, order binary.ByteOrder, convert ConvertStatics, objfilePath string) ([]StaticSymbol, error) {
	return importStaticSymbols(mdebug, hdrr, order, convert, objfilePath)
}

// StaticSymbol is a local symbol recovered from the stub's .mdebug section
// that has no corresponding ELF symbol table entry (PROC/STATIC/STATIC_PROC
// records describe file-local functions and data the assembler never
// exports to .symtab). These are synthesized into proper STT_FUNC/STT_OBJECT
// ELF symbols so relocations generated against the spliced-in object can
// resolve them.
type StaticSymbol struct {
	Name        string
	Value       uint32
	Type        uint8
	Bind        uint8
	SectionName string
}

// importStaticSymbols walks the stub's .mdebug file-descriptor table (one
// FDR per translation unit folded into the object, though a stub built
// from a single C file normally has exactly one) and, within each file,
// its local SYMR records in order, tracking FILE/STRUCT/UNION/ENUM/BLOCK/
// PROC/STATIC_PROC scope pushes and matching END pops so nested statics
// can be told apart; a file whose scope depth does not return to zero is
// a malformed .mdebug section and rejected. A static's C storage class
// selects which output section it belongs to, mirroring the legacy
// compiler's sc_to_section table: 1 (text) -> .text, 2 (data) -> .data,
// 3 (bss) -> .bss, 15 (rdata) -> .rodata; anything else is not a section
// this tool can place a symbol into.
//
// The FDR/SYMR record layouts are not modeled field-by-field here beyond
// the handful of offsets this walk needs, the same deliberate
// simplification Hdrr/Fdr above already make.
func importStaticSymbols(mdebug *Section, hdrr Hdrr, order binary.ByteOrder, convert ConvertStatics, objfilePath string) ([]StaticSymbol, error) {
	if convert == ConvertStaticsNo {
		return nil, nil
	}

	const symrSize = 12 // iss(4) value(4) type/sc/index packed(4), per MIPS SYMR
	data := mdebug.Data
	fdBase := int(hdrr.FdOff)
	fdCount := int(hdrr.FdMax)
	issBase := int(hdrr.IssOff)
	symBase := int(hdrr.SymOff)

	var out []StaticSymbol
	for fi := 0; fi < fdCount; fi++ {
		fdOff := fdBase + fi*fdrSize
		if fdOff+fdrSize > len(data) {
			return nil, invalidElf(".mdebug FD table entry %d out of bounds", fi)
		}
		fdr := readFdr(data[fdOff:fdOff+fdrSize], order)

		scopeLevel := 0
		disambig := map[string]int{}

		for i := 0; i < int(fdr.Csym); i++ {
			off := symBase + (int(fdr.IsymBase)+i)*symrSize
			if off+symrSize > len(data) {
				return nil, invalidElf(".mdebug SYM table entry out of bounds in file %d", fi)
			}
			issOffset := order.Uint32(data[off : off+4])
			value := order.Uint32(data[off+4 : off+8])
			packed := order.Uint32(data[off+8 : off+12])
			view := utils.CreateBitView(&packed)
			symType := uint8(view.Read(26, 6))
			sc := uint8(view.Read(21, 5))

			switch symType {
			case mdebugStFile, mdebugStStruct, mdebugStUnion, mdebugStEnum, mdebugStBlock, mdebugStProc, mdebugStStaticProc:
				scopeLevel++
			case mdebugStEnd:
				scopeLevel--
				continue
			}

			if symType != mdebugStStatic && symType != mdebugStProc && symType != mdebugStStaticProc {
				continue
			}

			nameOff := issBase + int(fdr.IssBase) + int(issOffset)
			name := cStringAt(data, nameOff)
			if len(name) == 0 {
				continue
			}

			// A PROC/STATIC_PROC record has already pushed its own scope
			// above, so it sits one level below scopeLevel.
			level := scopeLevel
			if symType == mdebugStProc || symType == mdebugStStaticProc {
				level--
			}
			if level > 1 {
				// A static local to a function body: disambiguate repeats
				// of the same name across sibling scopes with a ":N"
				// suffix, the same convention the reference tool uses.
				n := disambig[name]
				disambig[name] = n + 1
				if n > 0 {
					name = name + ":" + itoa(n)
				}
			}

			sectionName, err := sectionForStorageClass(sc)
			if err != nil {
				return nil, err
			}

			elfType := uint8(SttObject)
			if symType == mdebugStProc || symType == mdebugStStaticProc {
				elfType = SttFunc
			}

			bind := uint8(StbLocal)
			finalName := name
			if convert == ConvertStaticsGlobal {
				bind = StbGlobal
			} else if convert == ConvertStaticsGlobalWithFilename {
				bind = StbGlobal
				finalName = objfilePath + ":" + name
			}

			out = append(out, StaticSymbol{
				Name:        finalName,
				Value:       value,
				Type:        elfType,
				Bind:        bind,
				SectionName: sectionName,
			})
		}

		if scopeLevel != 0 {
			return nil, invalidElf(".mdebug file %d scope unbalanced (depth %d at end)", fi, scopeLevel)
		}
	}
	return out, nil
}

func sectionForStorageClass(sc uint8) (string, error) {
	switch sc {
	case 1:
		return ".text", nil
	case 2:
		return ".data", nil
	case 3:
		return ".bss", nil
	case 15:
		return ".rodata", nil
	default:
		return "", unsupportedFeature("mdebug storage class %d", sc)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func cStringAt(data []byte, off int) string {
	if off < 0 || off >= len(data) {
		return ""
	}
	end := off
	for end < len(data) && data[end] != 0 {
		end++
	}
	return string(data[off:end])
}

// relocateMdebug rewrites every offset in the HDRR header by delta. This is
// needed whenever the .mdebug section's own start-of-file offset changes
// across a rewrite, since every sub-table offset in HDRR is file-relative
// rather than section-relative.
func relocateMdebug(data []byte, order binary.ByteOrder, delta int64) error {
	hdrr, err := readHdrr(data, order)
	if err != nil {
		return err
	}
	shift := func(v uint32) uint32 { return uint32(int64(v) + delta) }
	hdrr.LineOff = shift(hdrr.LineOff)
	hdrr.DnOff = shift(hdrr.DnOff)
	hdrr.PdOff = shift(hdrr.PdOff)
	hdrr.SymOff = shift(hdrr.SymOff)
	hdrr.OptOff = shift(hdrr.OptOff)
	hdrr.AuxOff = shift(hdrr.AuxOff)
	hdrr.IssOff = shift(hdrr.IssOff)
	hdrr.FdOff = shift(hdrr.FdOff)
	hdrr.RfdOff = shift(hdrr.RfdOff)
	hdrr.ExtOff = shift(hdrr.ExtOff)
	copy(data[:hdrrSize], hdrr.bytes(order))
	return nil
}
