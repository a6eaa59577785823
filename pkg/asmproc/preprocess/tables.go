package preprocess

import "github.com/Manu343726/asmproc/pkg/asmproc/elfobj"

// instrCounts holds, for a given (opt level, -g3, -framepointer) codegen
// configuration, the minimum number of text instructions the legacy
// compiler must see before it starts spilling jump-table/float constants
// into .rodata ahead of where the programmer's own rodata begins, and how
// many of those leading instructions to skip past before late-rodata
// dummy data may be safely placed. Both numbers come from measuring the
// reference compiler's behavior across optimization levels; they cannot be
// derived analytically.
type instrCounts struct {
	min  int
	skip int
}

// instrCountTable only has entries for the (opt, g3) combinations the
// legacy compiler actually supports; g3 only has entries at -O2, so g3
// combined with -O0, -O1 or -g has no entry.
var instrCountTable = map[instrKey]instrCounts{
	{OptO0, false, false}: {4, 4},
	{OptO0, false, true}:  {8, 8},
	{OptO1, false, false}: {2, 1},
	{OptO1, false, true}:  {6, 5},
	{OptO2, false, false}: {2, 1},
	{OptO2, false, true}:  {6, 5},
	{OptG, false, false}:  {4, 4},
	{OptG, false, true}:   {7, 7},
	{OptO2, true, false}:  {2, 2},
	{OptO2, true, true}:   {4, 4},
}

type instrKey struct {
	opt          OptLevel
	g3           bool
	framepointer bool
}

// lookupInstrCounts returns the min/skip instruction counts the late-rodata
// heuristic uses for this codegen configuration, applying the kpic
// adjustment (kpic always costs 3 extra instructions, except at -O2/-g3
// where it instead forces a 3-instruction late-rodata prelude) on top of
// the base table. Combinations the legacy compiler never supports (any g3
// at -O1, for instance) report UnsupportedOptLevelError.
func lookupInstrCounts(o Options) (instrCounts, error) {
	c, ok := instrCountTable[instrKey{o.OptLevel, o.G3, o.FramePointer}]
	if !ok {
		return instrCounts{}, &elfobj.UnsupportedOptLevelError{
			Detail: optLevelDetail(o),
		}
	}
	if o.Kpic {
		if o.OptLevel == OptO2 || o.G3 {
			// prelude_if_late_rodata is handled by the caller; the base
			// min/skip counts are unaffected at -O2/-g3.
			return c, nil
		}
		c.min += 3
		c.skip += 3
	}
	return c, nil
}

func optLevelDetail(o Options) string {
	opt := [...]string{"O0", "O1", "O2", "g"}[o.OptLevel]
	if o.G3 {
		return opt + " with -g3"
	}
	return opt
}

// useJtblForRodata reports whether the legacy compiler, at this codegen
// configuration, spills its jump tables into .rodata at all: only true at
// -O2 (or -g3) without a frame pointer and without kpic.
func useJtblForRodata(o Options) bool {
	return (o.OptLevel == OptO2 || o.G3) && !o.FramePointer && !o.Kpic
}

// preludeIfLateRodata is the number of leading instructions kpic reserves
// ahead of a .late_rodata dummy at -O2/-g3, where the base min/skip table
// entry is otherwise unaffected by kpic.
func preludeIfLateRodata(o Options) int {
	if o.Kpic && (o.OptLevel == OptO2 || o.G3) {
		return 3
	}
	return 0
}

// jtblCost holds the per-entry cost, in text instructions, of a jump table
// the compiler might emit into .rodata, and the minimum .rodata byte
// budget (in words) that must be present before the compiler bothers
// emitting one at all, keyed by (pascal, mips1): Pascal's case-statement
// codegen and the MIPS I instruction set both change how many instructions
// a jump dispatch costs and how small a table the compiler still emits.
type jtblCost struct {
	size         int // instructions a jump table costs
	minRodataSize int // minimum .rodata words required to trigger one
}

var jtblCostTable = map[jtblKey]jtblCost{
	{false, false}: {9, 5},
	{false, true}:  {11, 5},
	{true, false}:  {8, 2},
	{true, true}:   {9, 2},
}

type jtblKey struct {
	pascal bool
	mips1  bool
}

func jumpTableCost(o Options) jtblCost {
	return jtblCostTable[jtblKey{o.Pascal, o.Mips1}]
}
