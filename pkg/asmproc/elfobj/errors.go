package elfobj

import "fmt"

// InvalidElfError reports a malformed ELF header or section that fails the
// validation checks before any further parsing is attempted.
type InvalidElfError struct {
	Reason string
}

func (e *InvalidElfError) Error() string {
	return fmt.Sprintf("invalid ELF: %s", e.Reason)
}

// UnsupportedFeatureError reports a structurally valid ELF that uses a
// feature this tool deliberately does not implement: SHN_XINDEX,
// SHF_LINK_ORDER, a non-4 .balign/non-2 .align argument, or an
// unrecognized .mdebug storage class.
type UnsupportedFeatureError struct {
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("unsupported ELF feature: %s", e.Feature)
}

// UnsupportedOptLevelError reports a (opt, g3, framepointer) combination
// the late-rodata instruction-count table has no entry for.
type UnsupportedOptLevelError struct {
	Detail string
}

func (e *UnsupportedOptLevelError) Error() string {
	return fmt.Sprintf("unsupported optimization level combination: %s", e.Detail)
}

// PreprocessorError carries the offending source line alongside a
// preprocessing failure: an unterminated string, an unknown directive, an
// instruction outside .text, or a conflicting .late_rodata_alignment, for
// instance.
type PreprocessorError struct {
	Line   string
	LineNo int
	Reason string
}

func (e *PreprocessorError) Error() string {
	return fmt.Sprintf("line %d: %s\n%s", e.LineNo, e.Reason, e.Line)
}

// SizeMismatchError reports that the assembled object and the stub object
// disagree on a section's per-function extent, which means the
// preprocessor under- or over-counted its dummy statements.
type SizeMismatchError struct {
	FunctionName string
	Section      string
	StubSize     uint32
	RealSize     uint32
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("%s: function %q size mismatch in %s: stub has %d bytes, real assembly has %d",
		"size mismatch", e.FunctionName, e.Section, e.StubSize, e.RealSize)
}

// InternalComputationBugError reports that a stub symbol's location
// precedes the previous function's end in the same section — a violation
// that can only mean the preprocessor under-counted a block's size.
type InternalComputationBugError struct {
	FunctionName string
	Section      string
	Loc          uint32
	PrevLoc      uint32
}

func (e *InternalComputationBugError) Error() string {
	return fmt.Sprintf("internal computation bug: function %q in %s at offset %d precedes previous function end %d",
		e.FunctionName, e.Section, e.Loc, e.PrevLoc)
}

// LateRodataRatioTooHighError reports that a block's late-rodata filler
// would cost more than one third of its available text instructions.
type LateRodataRatioTooHighError struct {
	LateRodataInstrs int
	TextInstrs       int
}

func (e *LateRodataRatioTooHighError) Error() string {
	return fmt.Sprintf("late-rodata filler needs %d instructions but only %d text instructions are available (try adding .late_rodata_alignment)",
		e.LateRodataInstrs, e.TextInstrs)
}

// DuplicateSymbolError reports two non-UNDEF definitions of the same
// symbol name disagreeing on section or value during merge.
type DuplicateSymbolError struct {
	Name string
}

func (e *DuplicateSymbolError) Error() string {
	return fmt.Sprintf("duplicate symbol %q: conflicting non-UNDEF definitions", e.Name)
}

// UndefinedLocalSymbolError reports a local symbol left in SHN_UNDEF after
// merge, which the ABI never permits.
type UndefinedLocalSymbolError struct {
	Name string
}

func (e *UndefinedLocalSymbolError) Error() string {
	return fmt.Sprintf("local symbol %q is undefined", e.Name)
}

// AnonymousGlobalSymbolError reports a global symbol with an empty name.
type AnonymousGlobalSymbolError struct {
	Index int
}

func (e *AnonymousGlobalSymbolError) Error() string {
	return fmt.Sprintf("global symbol at index %d has no name", e.Index)
}

// UnmappableSectionError reports an imported symbol whose section name
// has no equivalent in the stub object, or falls outside
// {.text,.data,.rodata,.late_rodata,.bss}.
type UnmappableSectionError struct {
	Name string
}

func (e *UnmappableSectionError) Error() string {
	return fmt.Sprintf("cannot map section %q into the stub object", e.Name)
}

// AssemblerFailedError reports a non-zero exit from the external assembler.
type AssemblerFailedError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *AssemblerFailedError) Error() string {
	return fmt.Sprintf("assembler failed (exit %d): %s\n%s", e.ExitCode, e.Command, e.Output)
}

// IoErrorError reports a failure performing a file operation, wrapping the
// underlying error for %w-based inspection.
type IoErrorError struct {
	Op   string
	Path string
	Err  error
}

func (e *IoErrorError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Err)
}

func (e *IoErrorError) Unwrap() error { return e.Err }

func invalidElf(format string, args ...any) error {
	return &InvalidElfError{Reason: fmt.Sprintf(format, args...)}
}

func unsupportedFeature(format string, args ...any) error {
	return &UnsupportedFeatureError{Feature: fmt.Sprintf(format, args...)}
}
