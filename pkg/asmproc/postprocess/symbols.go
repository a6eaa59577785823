package postprocess

import (
	"sort"
	"strings"

	"github.com/Manu343726/asmproc/pkg/asmproc/elfobj"
)

// mergeSymbols folds the real assembled object's symbol table into stub's:
// the stub's own dummy symbols (the "_asmpp_"-prefixed functions/locals the
// synth package generated to reserve space) are dropped outright, since
// they describe code that no longer exists once splicing overwrites their
// bytes, while every symbol the real assembly defines is carried over
// under its own name. Symbols that already exist in the stub (an external
// declaration the real assembly also references, for instance) are
// deduplicated in favor of whichever definition is not SHN_UNDEF, and the
// result is finally reordered so every local symbol precedes every global
// one with "_gp_disp" forced last — the MIPS ABI's gp-relative addressing
// relies on that exact position for the linker to compute its offset
// correctly.
func mergeSymbols(stub *elfobj.File, asm *elfobj.File) (map[int]int, error) {
	symtab := stub.Symtab()

	kept := symtab.Symbols[:0]
	for _, s := range symtab.Symbols {
		if strings.HasPrefix(string(s.Name), "_asmpp_") {
			continue
		}
		kept = append(kept, s)
	}
	symtab.Symbols = kept

	byName := map[string]int{}
	for i, s := range symtab.Symbols {
		byName[string(s.Name)] = i
	}

	for _, asmSym := range asm.Symtab().Symbols {
		name := string(asmSym.Name)
		if name == "" {
			continue
		}
		resolved := *asmSym

		if existingIdx, ok := byName[name]; ok {
			existing := symtab.Symbols[existingIdx]
			if existing.Shndx == 0 && resolved.Shndx != 0 {
				symtab.Symbols[existingIdx] = &resolved
			} else if existing.Shndx != 0 && resolved.Shndx != 0 && existing.Value != resolved.Value {
				return nil, &elfobj.DuplicateSymbolError{Name: name}
			}
			continue
		}

		byName[name] = len(symtab.Symbols)
		symtab.Symbols = append(symtab.Symbols, &resolved)
	}

	return reorderSymbols(symtab)
}

// reorderSymbols partitions the merged symbol table into locals (stable
// sorted by section index) followed by globals, with "_gp_disp" forced
// last, and returns a map from each symbol's pre-reorder index to its new
// one so relocations elsewhere in the object can be retargeted.
func reorderSymbols(symtab *elfobj.Section) (map[int]int, error) {
	type indexed struct {
		sym    *elfobj.Symbol
		oldIdx int
	}

	all := make([]indexed, len(symtab.Symbols))
	for i, s := range symtab.Symbols {
		all[i] = indexed{s, i}
	}

	var locals, globals []indexed
	var gpDisp *indexed

	for i := range all {
		e := all[i]
		if string(e.sym.Name) == "_gp_disp" {
			e.sym.Type = uint8(elfobj.SttObject)
			gpDisp = &e
			continue
		}
		if e.sym.Bind == elfobj.StbLocal {
			if e.sym.Shndx == 0 && e.oldIdx != 0 {
				return nil, &elfobj.UndefinedLocalSymbolError{Name: string(e.sym.Name)}
			}
			locals = append(locals, e)
		} else {
			if string(e.sym.Name) == "" && e.oldIdx != 0 {
				return nil, &elfobj.AnonymousGlobalSymbolError{Index: e.oldIdx}
			}
			globals = append(globals, e)
		}
	}

	sort.SliceStable(locals, func(i, j int) bool { return locals[i].sym.Shndx < locals[j].sym.Shndx })

	out := make([]indexed, 0, len(all))
	out = append(out, locals...)
	out = append(out, globals...)
	if gpDisp != nil {
		out = append(out, *gpDisp)
	}

	oldToNew := make(map[int]int, len(out))
	symtab.Symbols = make([]*elfobj.Symbol, len(out))
	for newIdx, e := range out {
		symtab.Symbols[newIdx] = e.sym
		oldToNew[e.oldIdx] = newIdx
	}
	return oldToNew, nil
}

// rewriteRelocations retargets every relocation in the merged object onto
// the new symbol table layout mergeSymbols/reorderSymbols produced: the
// stub's own pre-existing relocations (against, say, an external function
// the legacy compiler called directly) are remapped through oldToNew and
// dropped if they fall inside a byte range splicing has already
// overwritten, while the real assembled object's own relocations are
// translated by name into the merged table and appended, creating a
// .rel<target>/.rela<target> section if the stub had none.
func rewriteRelocations(stub, asm *elfobj.File, oldToNew map[int]int, modifiedRanges map[string][][2]uint32) error {
	for _, sec := range stub.Sections {
		if !sec.IsRelocationSection() {
			continue
		}
		ranges := modifiedRanges[targetSectionName(sec.Name)]
		kept := sec.Relocations[:0]
		for _, rel := range sec.Relocations {
			if inRanges(rel.Offset, ranges) {
				continue
			}
			newIdx, ok := oldToNew[rel.SymIndex]
			if !ok {
				continue
			}
			rel.SymIndex = newIdx
			kept = append(kept, rel)
		}
		sec.Relocations = kept
	}

	nameToIndex := map[string]int{}
	for i, s := range stub.Symtab().Symbols {
		nameToIndex[string(s.Name)] = i
	}

	for _, asmSec := range asm.Sections {
		if !asmSec.IsRelocationSection() {
			continue
		}
		outName := targetSectionName(asmSec.Name)
		if outName == ".late_rodata" {
			outName = ".rodata"
		}

		stubRelName := relocationSectionName(asmSec.Name, outName)
		stubRelSec := stub.FindSection(stubRelName)
		if stubRelSec == nil {
			stubRelSec = stub.AddSection(stubRelName, elfobj.HeaderFields{
				Type:      asmSec.Header.Type,
				Info:      uint32(mustSectionIndex(stub, outName)),
				Addralign: 4,
			}, nil)
		}

		asmSymtab := asm.Symtab()
		for _, rel := range asmSec.Relocations {
			if rel.SymIndex < 0 || rel.SymIndex >= len(asmSymtab.Symbols) {
				continue
			}
			asmSym := asmSymtab.Symbols[rel.SymIndex]
			name := string(asmSym.Name)
			newIdx, ok := nameToIndex[name]
			if !ok {
				continue
			}
			rewritten := rel
			rewritten.SymIndex = newIdx
			stubRelSec.Relocations = append(stubRelSec.Relocations, rewritten)
		}
	}
	return nil
}

func targetSectionName(relSectionName string) string {
	return strings.TrimPrefix(strings.TrimPrefix(relSectionName, ".rela"), ".rel")
}

func relocationSectionName(asmRelName, outName string) string {
	if strings.HasPrefix(asmRelName, ".rela") {
		return ".rela" + outName
	}
	return ".rel" + outName
}

func mustSectionIndex(f *elfobj.File, name string) int {
	if sec := f.FindSection(name); sec != nil {
		return sec.Index
	}
	return 0
}

func inRanges(offset uint32, ranges [][2]uint32) bool {
	for _, r := range ranges {
		if offset >= r[0] && offset < r[1] {
			return true
		}
	}
	return false
}
