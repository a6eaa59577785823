// Package postprocess implements the second pass of the assembly-splicing
// pipeline: given the stub object the legacy compiler produced and the one
// real object the external assembler produced from the combined real.s
// SynthesizeRealAsm built for every GLOBAL_ASM/INCLUDE_ASM function in a
// translation unit, it splices the assembled bytes into the stub, merges
// symbol tables and relocations, and rewrites .mdebug so the result links
// exactly as if the legacy compiler had assembled the real code itself.
package postprocess

import (
	"bytes"
	"fmt"

	"github.com/Manu343726/asmproc/pkg/asmproc/diag"
	"github.com/Manu343726/asmproc/pkg/asmproc/elfobj"
	"github.com/Manu343726/asmproc/pkg/asmproc/preprocess"
)

// ConvertStatics re-exports elfobj.ConvertStatics so callers configuring a
// Merge don't need to import elfobj just for this one enum.
type ConvertStatics = elfobj.ConvertStatics

const (
	ConvertStaticsNo                = elfobj.ConvertStaticsNo
	ConvertStaticsLocal             = elfobj.ConvertStaticsLocal
	ConvertStaticsGlobal            = elfobj.ConvertStaticsGlobal
	ConvertStaticsGlobalWithFilename = elfobj.ConvertStaticsGlobalWithFilename
)

// MergeOptions carries the configuration-table knobs that affect the merge
// step specifically: whether and how file-local statics get imported from
// .mdebug, whether the now-redundant .mdebug/.gptab are dropped from the
// final object, and the object's own path (needed to build
// "<path>:<name>" names under ConvertStaticsGlobalWithFilename).
type MergeOptions struct {
	ConvertStatics  ConvertStatics
	DropMdebugGptab bool
	ObjfilePath     string
}

// Result is the spliced object plus a list of warnings, surfaced to the
// diag package for colorized reporting. Merge itself adds no warnings, so
// the list it returns is always empty.
type Result struct {
	Object   *elfobj.File
	Warnings []string
}

// Merge splices asm's bytes into stub and returns the fixed-up object,
// mirroring fixup_objfile from the reference tool: each output section is
// rebuilt by concatenating, in order, either asm's bytes (where the stub's
// dummy code stood in for a GLOBAL_ASM/INCLUDE_ASM function) or the stub's
// own bytes (everywhere else), followed by a full symbol table and
// relocation rebuild against the new layout.
func Merge(stub, asm *elfobj.File, funcs []preprocess.AsmFunction, opts MergeOptions) (*Result, error) {
	res := &Result{Object: stub}

	// .mdebug must be captured before any splicing touches the object, and
	// static import must happen after splicing overwrites the stub's dummy
	// code but before symbol dedup runs, so imported statics can be
	// deduplicated against symbols the real assembly itself defines.
	var stubMdebugData []byte
	if mdebug := stub.FindSection(".mdebug"); mdebug != nil {
		stubMdebugData = append([]byte(nil), mdebug.Data...)
	}

	modifiedRanges := map[string][][2]uint32{}

	for _, outSec := range elfobj.OutputSections {
		ranges, err := spliceSection(stub, asm, outSec, funcs, res)
		if err != nil {
			return nil, fmt.Errorf("splicing %s: %w", outSec, err)
		}
		modifiedRanges[outSec.String()] = ranges
	}

	if err := importMdebugStatics(stub, stubMdebugData, opts); err != nil {
		return nil, fmt.Errorf("importing .mdebug statics: %w", err)
	}

	oldToNew, err := mergeSymbols(stub, asm)
	if err != nil {
		return nil, fmt.Errorf("merging symbols: %w", err)
	}

	if err := rewriteRelocations(stub, asm, oldToNew, modifiedRanges); err != nil {
		return nil, fmt.Errorf("rewriting relocations: %w", err)
	}

	// .late_rodata only ever existed to give the stub compiler somewhere
	// to spill dummy filler; its bytes have already been folded into
	// .rodata by spliceSection, and its relocation section's entries were
	// retargeted onto .rel.rodata by rewriteRelocations, so both can be
	// dropped from the final object.
	stub.DropSection(".late_rodata")
	stub.DropSection(".rel.late_rodata")
	stub.DropSection(".rela.late_rodata")

	if opts.DropMdebugGptab {
		stub.DropSection(".mdebug")
		stub.DropSection(".gptab")
	}

	return res, nil
}

// spliceSection rebuilds one output section (.text/.data/.rodata/.bss) of
// stub by replacing each spliced function's dummy byte range with the
// matching bytes from asm, verified against the stub symbol table's
// recorded size for that function so a length mismatch is caught
// immediately rather than silently corrupting layout. It returns the
// byte ranges it overwrote, so relocation rewriting knows which stub
// relocations no longer apply.
func spliceSection(stub, asm *elfobj.File, outSec elfobj.OutputSection, funcs []preprocess.AsmFunction, res *Result) ([][2]uint32, error) {
	sec := stub.FindSection(outSec.String())
	if sec == nil {
		return nil, nil
	}

	type splice struct {
		name string
		loc  uint32
		size uint32
	}
	var splices []splice
	for _, fn := range funcs {
		if outSec == elfobj.SectionText {
			if fn.TempSymbolName != "" {
				splices = append(splices, splice{name: fn.TempSymbolName})
			}
			continue
		}
		key := outSec.String()[1:] // "data"/"rodata"/"bss" from ".data" etc.
		if extent, ok := fn.Data[key]; ok && extent.TempSymbolName != "" {
			splices = append(splices, splice{name: extent.TempSymbolName})
		}
	}

	newData := make([]byte, 0, len(sec.Data))
	cursor := uint32(0)
	var ranges [][2]uint32

	for _, sp := range splices {
		stubVal, stubSize, ok := symbolExtent(stub, sp.name)
		if !ok {
			continue
		}
		if stubVal < cursor {
			return nil, fmt.Errorf("function %q at %s out of order in stub %s", sp.name, diag.FormatAddr(stubVal), outSec)
		}
		newData = append(newData, sec.Data[cursor:stubVal]...)
		cursor = stubVal

		asmVal, asmSize, ok := symbolExtent(asm, sp.name)
		if !ok {
			return nil, fmt.Errorf("assembled object missing symbol %q", sp.name)
		}
		if asmSize != stubSize {
			return nil, &elfobj.SizeMismatchError{FunctionName: sp.name, Section: outSec.String(), StubSize: stubSize, RealSize: asmSize}
		}
		asmSec := asm.FindSection(outSec.String())
		if asmSec == nil {
			return nil, fmt.Errorf("assembled object has no %s section for function %q", outSec, sp.name)
		}
		newData = append(newData, asmSec.Data[asmVal:asmVal+asmSize]...)
		ranges = append(ranges, [2]uint32{stubVal, stubVal + stubSize})
		cursor += stubSize
	}
	if cursor < uint32(len(sec.Data)) {
		newData = append(newData, sec.Data[cursor:]...)
	}
	sec.Data = newData
	return ranges, nil
}

func symbolExtent(f *elfobj.File, name string) (value, size uint32, ok bool) {
	for _, sym := range f.Symtab().Symbols {
		if string(sym.Name) == name {
			return sym.Value, sym.Size, true
		}
	}
	return 0, 0, false
}

// lateRodataSplice finds the byte offset in stub's .rodata where a
// function's dummy late-rodata filler sits by searching for the filler's
// known byte pattern (the nonzero dummy float/double bit patterns synth
// generated), mirroring the reference tool's rodata byte-pattern search.
// Any bytes, zero padding included, may precede the match. When the search
// from searchFrom fails, it is repeated once from searchFrom+4, which
// covers a suffix of the first search's range.
func lateRodataSplice(rodata []byte, pattern []byte, searchFrom int) (int, bool) {
	idx := bytes.Index(rodata[searchFrom:], pattern)
	if idx >= 0 {
		return searchFrom + idx, true
	}
	if len(rodata) >= searchFrom+4+len(pattern) {
		if alt := bytes.Index(rodata[searchFrom+4:], pattern); alt >= 0 {
			return searchFrom + 4 + alt, true
		}
	}
	return 0, false
}
