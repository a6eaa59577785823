package preprocess

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAsm(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestParseSourceExpandsGlobalAsm(t *testing.T) {
	dir := t.TempDir()
	writeAsm(t, dir, "func_foo.s", ".text\naddiu $sp, $sp, -0x10\njr $ra\n")

	src := `void before(void) {}
GLOBAL_ASM("func_foo");
void after(void) {}
`
	result, err := ParseSource(Options{OptLevel: OptO2}, strings.NewReader(src), dir)
	require.NoError(t, err)
	require.Len(t, result.Blocks, 1)
	assert.Contains(t, result.Output, "*(volatile int*)0 = 0;")
	assert.Contains(t, result.Output, "void before(void) {}")
	assert.Contains(t, result.Output, "void after(void) {}")
}

func TestParseSourceExpandsGlobalAsmPragmaForm(t *testing.T) {
	dir := t.TempDir()
	writeAsm(t, dir, "func_bar.s", ".text\nnop\n")

	src := `#pragma GLOBAL_ASM("func_bar")
`
	result, err := ParseSource(Options{}, strings.NewReader(src), dir)
	require.NoError(t, err)
	require.Len(t, result.Blocks, 1)
}

func TestParseSourceExpandsGlobalAsmBlockForm(t *testing.T) {
	dir := t.TempDir()
	writeAsm(t, dir, "func_baz.s", ".text\nnop\n")

	src := "GLOBAL_ASM(\n\"func_baz\"\n)\n"
	result, err := ParseSource(Options{}, strings.NewReader(src), dir)
	require.NoError(t, err)
	require.Len(t, result.Blocks, 1)
}

func TestParseSourceIncludeAsmUsesGivenName(t *testing.T) {
	dir := t.TempDir()
	writeAsm(t, dir, "real_func.s", ".text\nnop\n")

	src := `INCLUDE_ASM("real_func", my_function);`
	result, err := ParseSource(Options{}, strings.NewReader(src), dir)
	require.NoError(t, err)
	require.Len(t, result.Blocks, 1)
	assert.Equal(t, "my_function", result.Blocks[0].TempSymbolName)
	assert.Contains(t, result.Output, "void my_function(void)")
}

func TestParseSourceGlobalAsmMissingFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := ParseSource(Options{}, strings.NewReader(`GLOBAL_ASM("missing");`), dir)
	require.Error(t, err)
}

func TestParseSourceIncludeRodataMissingFileDeferred(t *testing.T) {
	dir := t.TempDir()
	src := `INCLUDE_RODATA("missing_table", jump_table);`
	result, err := ParseSource(Options{}, strings.NewReader(src), dir)
	require.NoError(t, err)
	assert.Contains(t, result.Output, "INCLUDE_RODATA")
}

func TestParseSourceRewritesCutsceneFloat(t *testing.T) {
	src := "CutsceneData foo[] = {\n1.5f,\n};\n"
	result, err := ParseSource(Options{EncodeCutsceneDataFloatEncoding: true}, strings.NewReader(src), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, result.Output, "0x3FC00000")
	assert.NotContains(t, result.Output, "1.5f")
}

func TestParseSourceCutsceneFloatOutsideScopeUntouched(t *testing.T) {
	src := "float x = 1.5f;\n"
	result, err := ParseSource(Options{EncodeCutsceneDataFloatEncoding: true}, strings.NewReader(src), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, result.Output, "1.5f")
}

func TestParseSourcePragmaRecurseExpandsInclude(t *testing.T) {
	dir := t.TempDir()
	childPath := filepath.Join(dir, "child.c")
	require.NoError(t, os.WriteFile(childPath, []byte("int child_var;\n"), 0o644))

	src := "a();\n#pragma asmproc recurse\n#include \"child.c\"\nb();\n"
	result, err := parseSource(Options{}, strings.NewReader(src), dir, filepath.Join(dir, "main.c"), 0)
	require.NoError(t, err)
	assert.Contains(t, result.Output, "int child_var;")
	assert.Contains(t, result.Output, "#line 4")
}
