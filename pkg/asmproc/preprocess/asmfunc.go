package preprocess

// DataExtent records one non-.text output section a function's assembly
// touches: an optional temp symbol name the stub emitted for it and the
// byte size the preprocessor measured there. Only INCLUDE_RODATA sets a
// name; GLOBAL_ASM/INCLUDE_ASM blocks record sizes with an empty name,
// since the stub emits no filler symbol for their .data/.rodata/.bss.
type DataExtent struct {
	TempSymbolName string
	Size           int
}

// AsmFunction is the record the preprocessor hands the postprocessor for
// one GLOBAL_ASM/INCLUDE_ASM block: everything needed to locate the
// block's dummy stub code, recover its real assembly, and splice the two
// together byte-for-byte.
type AsmFunction struct {
	// TempSymbolName is the name of the dummy .text symbol the stub
	// compiler emitted in place of this block's real code.
	TempSymbolName string
	// TextGlabels is every globally-visible label this block's real
	// assembly defines in .text.
	TextGlabels []string
	// AsmLines is the block's real assembly source, stripped of any
	// section directives the synthesizer itself needs to emit.
	AsmLines []string
	// LateRodataAsmLines is the real .late_rodata assembly this block
	// emitted, to be placed into the stub's spliced .rodata.
	LateRodataAsmLines []string
	// LateRodataDummyBytes is the sequence of 4-byte dummy patterns the
	// synthesizer generated for this block's late-rodata filler, used to
	// locate each dummy's position in the stub's .rodata via byte-pattern
	// search.
	LateRodataDummyBytes [][4]byte
	// JtblRodataSize is how many bytes of .rodata this block's dummy jump
	// table reserved, 0 if none was needed.
	JtblRodataSize int
	// Data maps each non-.text output section name ("data", "rodata",
	// "bss") this function touches to its DataExtent.
	Data map[string]DataExtent
}
