package postprocess

import (
	"github.com/Manu343726/asmproc/pkg/asmproc/elfobj"
)

// importMdebugStatics imports the static (file-local) C symbols recorded in
// the stub's own preserved .mdebug section into the merged symbol table.
// These are the legacy compiler's real file-local globals and functions:
// the assembler never sees them (they never appear in GLOBAL_ASM text),
// and the stub compiler never exports them to .symtab either, so without
// this step any relocation the real assembly makes against one of its own
// file's statics would have nothing to resolve against. Gated by
// opts.ConvertStatics: callers that never intend to link across the
// resulting statics can skip this entirely.
func importMdebugStatics(stub *elfobj.File, stubMdebugData []byte, opts MergeOptions) error {
	if opts.ConvertStatics == elfobj.ConvertStaticsNo {
		return nil
	}
	symtab := stub.Symtab()
	existing := map[string]bool{}
	for _, s := range symtab.Symbols {
		existing[string(s.Name)] = true
	}

	mdebugSection := &elfobj.Section{Data: stubMdebugData}
	hdrr, err := elfobj.ReadHdrr(stubMdebugData, stub.Order)
	if err != nil {
		return err
	}
	statics, err := elfobj.ImportStaticSymbols(mdebugSection, hdrr, stub.Order, opts.ConvertStatics, opts.ObjfilePath)
	if err != nil {
		return err
	}

	for _, st := range statics {
		if existing[st.Name] {
			continue
		}
		existing[st.Name] = true
		shndx := 0
		if sec := stub.FindSection(st.SectionName); sec != nil {
			shndx = sec.Index
		}
		symtab.Symbols = append(symtab.Symbols, &elfobj.Symbol{
			Name:  []byte(st.Name),
			Value: st.Value,
			Type:  st.Type,
			Bind:  st.Bind,
			Shndx: shndx,
		})
	}
	return nil
}
