package synth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitDummyFunctionSingle(t *testing.T) {
	var b strings.Builder
	EmitDummyFunction(&b, Func{Name: "foo", TextBytes: 8}, Params{MaxFnSize: 100})
	out := b.String()
	assert.Contains(t, out, "void foo(void)")
	assert.Equal(t, 2, strings.Count(out, "*(volatile int*)0 = 0;"))
}

func TestEmitDummyFunctionSplitsAtMaxSize(t *testing.T) {
	var b strings.Builder
	// 250 instructions at 4 bytes each, MaxFnSize 100 -> 3 parts (100,100,50)
	EmitDummyFunction(&b, Func{Name: "big", TextBytes: 250 * 4}, Params{MaxFnSize: 100})
	out := b.String()
	assert.Contains(t, out, "big_asmpp_part0")
	assert.Contains(t, out, "big_asmpp_part1")
	assert.Contains(t, out, "big_asmpp_part2")
	assert.Equal(t, 250, strings.Count(out, "*(volatile int*)0 = 0;"))
}

func TestEmitDummyFunctionStaticLinkage(t *testing.T) {
	var b strings.Builder
	EmitDummyFunction(&b, Func{Name: "helper", TextBytes: 4, IsStatic: true}, Params{MaxFnSize: 100})
	assert.Contains(t, b.String(), "static void helper(void)")
}

func TestEmitLateRodataDummyAlignment(t *testing.T) {
	var b strings.Builder
	EmitLateRodataDummy(&b, 16, 8, false, 0)
	out := b.String()
	assert.Equal(t, 2, strings.Count(out, "asm_pp_dummy_double"))
}

func TestEmitLateRodataDummyWithJumpTable(t *testing.T) {
	var b strings.Builder
	EmitLateRodataDummy(&b, 40, 4, true, 9)
	out := b.String()
	assert.Contains(t, out, "switch (*(volatile int*)0)")
}

func TestSizeRatioWithinTolerance(t *testing.T) {
	assert.True(t, SizeRatioWithinTolerance(100, 120))
	assert.False(t, SizeRatioWithinTolerance(100, 10))
	assert.True(t, SizeRatioWithinTolerance(0, 0))
}
