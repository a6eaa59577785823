package postprocess

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Manu343726/asmproc/pkg/asmproc/elfobj"
	"github.com/Manu343726/asmproc/pkg/asmproc/preprocess"
)

// SynthesizeRealAsm builds the single combined assembly file every
// GLOBAL_ASM/INCLUDE_ASM function in a translation unit is assembled from,
// using the already-compiled stub object's symbol table to find the exact
// byte offset ("loc") the legacy compiler reserved for each function's
// dummy stand-in. Gaps between functions (the compiler's own code, in
// .text; ordinary padding, elsewhere) are filled with nop or .space so
// that once assembled, every function lands at the same relative position
// within its section that the merge step will need to locate it at.
// Functions out of order (a later function's loc preceding an earlier
// one's end) can only mean the preprocessor mis-measured a block's size,
// surfaced as InternalComputationBugError rather than silently producing
// a corrupt splice.
func SynthesizeRealAsm(stub *elfobj.File, funcs []preprocess.AsmFunction) (string, error) {
	var out strings.Builder

	if err := synthesizeSection(&out, stub, funcs, ".text", true); err != nil {
		return "", err
	}
	for _, sec := range []string{"data", "rodata", "bss"} {
		if err := synthesizeDataSection(&out, stub, funcs, sec); err != nil {
			return "", err
		}
	}

	return out.String(), nil
}

type locatedFunc struct {
	fn   preprocess.AsmFunction
	loc  uint32
	size uint32
}

func synthesizeSection(out *strings.Builder, stub *elfobj.File, funcs []preprocess.AsmFunction, sectionName string, isText bool) error {
	var located []locatedFunc
	for _, fn := range funcs {
		if fn.TempSymbolName == "" {
			continue
		}
		sym, ok := findSymbol(stub, fn.TempSymbolName)
		if !ok {
			continue
		}
		located = append(located, locatedFunc{fn: fn, loc: sym.Value, size: sym.Size})
	}
	sort.Slice(located, func(i, j int) bool { return located[i].loc < located[j].loc })

	if len(located) == 0 {
		return nil
	}

	fmt.Fprintf(out, "%s\n", sectionName)
	var prevLoc uint32
	for _, lf := range located {
		if lf.loc < prevLoc {
			return &elfobj.InternalComputationBugError{
				FunctionName: lf.fn.TempSymbolName,
				Section:      sectionName,
				Loc:          lf.loc,
				PrevLoc:      prevLoc,
			}
		}
		if gap := lf.loc - prevLoc; gap > 0 {
			emitPadding(out, gap, isText)
		}
		for _, l := range lf.fn.TextGlabels {
			fmt.Fprintf(out, "\t.globl %s\n%s:\n", l, l)
		}
		for _, l := range lf.fn.AsmLines {
			out.WriteString(l)
			out.WriteString("\n")
		}
		prevLoc = lf.loc + lf.size
	}
	return nil
}

func synthesizeDataSection(out *strings.Builder, stub *elfobj.File, funcs []preprocess.AsmFunction, section string) error {
	var located []locatedFunc
	for _, fn := range funcs {
		extent, ok := fn.Data[section]
		if !ok || extent.TempSymbolName == "" {
			continue
		}
		sym, ok := findSymbol(stub, extent.TempSymbolName)
		if !ok {
			continue
		}
		located = append(located, locatedFunc{fn: fn, loc: sym.Value, size: sym.Size})
	}
	sort.Slice(located, func(i, j int) bool { return located[i].loc < located[j].loc })
	if len(located) == 0 {
		return nil
	}

	fmt.Fprintf(out, ".%s\n", section)
	var prevLoc uint32
	for _, lf := range located {
		if lf.loc < prevLoc {
			return &elfobj.InternalComputationBugError{
				FunctionName: lf.fn.Data[section].TempSymbolName,
				Section:      "." + section,
				Loc:          lf.loc,
				PrevLoc:      prevLoc,
			}
		}
		if gap := lf.loc - prevLoc; gap > 0 {
			fmt.Fprintf(out, "\t.space %d\n", gap)
		}
		for _, l := range lf.fn.LateRodataAsmLines {
			out.WriteString(l)
			out.WriteString("\n")
		}
		prevLoc = lf.loc + lf.size
	}
	return nil
}

func emitPadding(out *strings.Builder, gap uint32, isText bool) {
	if isText {
		for i := uint32(0); i < gap/4; i++ {
			out.WriteString("\tnop\n")
		}
		return
	}
	fmt.Fprintf(out, "\t.space %d\n", gap)
}

func findSymbol(f *elfobj.File, name string) (*elfobj.Symbol, bool) {
	for _, s := range f.Symtab().Symbols {
		if string(s.Name) == name {
			return s, true
		}
	}
	return nil, false
}
