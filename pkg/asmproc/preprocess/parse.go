package preprocess

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/Manu343726/asmproc/pkg/asmproc/synth"
)

var (
	reGlobalAsmStart  = regexp.MustCompile(`^\s*GLOBAL_ASM\s*\(\s*"([^"]+)"\s*\)\s*;?\s*$`)
	reGlobalAsmEmpty  = regexp.MustCompile(`^\s*GLOBAL_ASM\s*\(\s*\)\s*;?\s*$`)
	reGlobalAsmOpen   = regexp.MustCompile(`^\s*GLOBAL_ASM\s*\(\s*$`)
	reGlobalAsmClose  = regexp.MustCompile(`^\s*\)\s*;?\s*$`)
	rePragmaGlobalAsm = regexp.MustCompile(`^\s*#pragma\s+GLOBAL_ASM\s*\(\s*"([^"]+)"\s*\)\s*$`)
	reIncludeAsm      = regexp.MustCompile(`^\s*INCLUDE_ASM\s*\(\s*"([^"]+)"\s*,\s*([A-Za-z_][A-Za-z0-9_]*)\s*\)\s*;?\s*$`)
	reIncludeRodata   = regexp.MustCompile(`^\s*INCLUDE_RODATA\s*\(\s*"([^"]+)"\s*,\s*([A-Za-z_][A-Za-z0-9_]*)\s*\)\s*;?\s*$`)
	rePragmaRecurse   = regexp.MustCompile(`^\s*#pragma\s+asmproc\s+recurse\s*$`)
	reInclude         = regexp.MustCompile(`^\s*#include\s+"([^"]+)"\s*$`)
	reQuotedString    = regexp.MustCompile(`"([^"]+)"`)
	reCutsceneStart   = regexp.MustCompile(`CutsceneData\b.*\[\]\s*=\s*\{`)
	reCutsceneEnd     = regexp.MustCompile(`\};\s*$`)
	reFloatLiteral    = regexp.MustCompile(`[-+]?[0-9]*\.?[0-9]+([eE][-+]?[0-9]+)?f\b`)
)

// Result is what ParseSource produces: the rewritten C/Pascal source ready
// to hand to the legacy compiler, plus the list of functions the
// postprocessor will need to splice real assembly into.
type Result struct {
	Output string
	Blocks []AsmFunction
}

// ParseSource scans src line by line, replacing every GLOBAL_ASM,
// INCLUDE_ASM and INCLUDE_RODATA invocation with synthesized dummy C code
// sized from the referenced assembly file, recursively expanding any
// `#pragma asmproc recurse` / `#include` pair in place, and rewriting
// CutsceneData[] = { ... } float literals into bit-exact hex so the legacy
// compiler never has to fold a floating point constant itself.
func ParseSource(opts Options, src io.Reader, asmDir string) (*Result, error) {
	return parseSource(opts, src, asmDir, "", 0)
}

func parseSource(opts Options, src io.Reader, asmDir, sourcePath string, depth int) (*Result, error) {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out strings.Builder
	var blocks []AsmFunction
	lineNo := 0
	inCutscene := false

	nextLine := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		lineNo++
		return scanner.Text(), true
	}

	for {
		line, ok := nextLine()
		if !ok {
			break
		}

		if rePragmaRecurse.MatchString(line) {
			incLine, ok := nextLine()
			if !ok {
				return nil, fmt.Errorf("%s:%d: #pragma asmproc recurse must be followed by an #include", sourcePath, lineNo)
			}
			m := reInclude.FindStringSubmatch(incLine)
			if m == nil {
				return nil, fmt.Errorf("%s:%d: #pragma asmproc recurse must be followed by an #include, got %q", sourcePath, lineNo, incLine)
			}
			childPath := resolveIncludePath(m[1], sourcePath, asmDir)
			childData, err := os.ReadFile(childPath)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: recursing into missing include %q: %w", sourcePath, lineNo, childPath, err)
			}
			childResult, err := parseSource(opts, strings.NewReader(string(childData)), asmDir, childPath, depth+1)
			if err != nil {
				return nil, err
			}
			out.WriteString(childResult.Output)
			blocks = append(blocks, childResult.Blocks...)
			// Resume numbering relative to the parent file so later
			// compiler diagnostics still point at it, not the child.
			fmt.Fprintf(&out, "#line %d \"%s\"\n", lineNo+1, sourcePath)
			continue
		}

		if m := rePragmaGlobalAsm.FindStringSubmatch(line); m != nil {
			fn, dummy, err := expandAsmBlock(opts, asmDir, m[1], "", lineNo)
			if err != nil {
				return nil, err
			}
			out.WriteString(dummy)
			blocks = append(blocks, fn)
			continue
		}

		if reGlobalAsmEmpty.MatchString(line) {
			// An empty GLOBAL_ASM() references the conventional
			// per-function file name derived from the current source,
			// rather than an explicit path argument.
			inferred := syntheticName(sourcePath) + fmt.Sprintf("_%d", lineNo)
			fn, dummy, err := expandAsmBlock(opts, asmDir, inferred+".s", "", lineNo)
			if err != nil {
				return nil, err
			}
			out.WriteString(dummy)
			blocks = append(blocks, fn)
			continue
		}

		if reGlobalAsmOpen.MatchString(line) {
			// Block-mode GLOBAL_ASM(\n ... \n) spans until a bare closing
			// paren; any quoted path found inside names the asm file.
			var path string
			for {
				inner, ok := nextLine()
				if !ok {
					return nil, fmt.Errorf("%s:%d: unterminated GLOBAL_ASM(...) block", sourcePath, lineNo)
				}
				if reGlobalAsmClose.MatchString(inner) {
					break
				}
				if m := reQuotedString.FindStringSubmatch(inner); m != nil && path == "" {
					path = m[1]
				}
			}
			if path == "" {
				return nil, fmt.Errorf("%s:%d: GLOBAL_ASM(...) block names no file", sourcePath, lineNo)
			}
			fn, dummy, err := expandAsmBlock(opts, asmDir, path, "", lineNo)
			if err != nil {
				return nil, err
			}
			out.WriteString(dummy)
			blocks = append(blocks, fn)
			continue
		}

		if m := reGlobalAsmStart.FindStringSubmatch(line); m != nil {
			fn, dummy, err := expandAsmBlock(opts, asmDir, m[1], "", lineNo)
			if err != nil {
				return nil, err
			}
			out.WriteString(dummy)
			blocks = append(blocks, fn)
			continue
		}

		if m := reIncludeAsm.FindStringSubmatch(line); m != nil {
			fn, dummy, err := expandAsmBlock(opts, asmDir, m[1], m[2], lineNo)
			if err != nil {
				return nil, err
			}
			out.WriteString(dummy)
			blocks = append(blocks, fn)
			continue
		}

		if m := reIncludeRodata.FindStringSubmatch(line); m != nil {
			path := filepath.Join(asmDir, m[1]+".s")
			data, err := os.ReadFile(path)
			if err != nil {
				// A missing rodata file is deferred to the compiler: it
				// will fail later with a clearer "file not found" error
				// from its own include mechanism than this tool could
				// produce without knowing the compiler's search path.
				out.WriteString(line + "\n")
				continue
			}
			bytesLen := countDataBytes(string(data))
			var dummy strings.Builder
			fmt.Fprintf(&dummy, "static const char %s[%d] = {0};\n", m[2], max(bytesLen, 1))
			out.WriteString(dummy.String())
			blocks = append(blocks, AsmFunction{
				Data: map[string]DataExtent{"rodata": {TempSymbolName: m[2], Size: bytesLen}},
			})
			continue
		}

		if reCutsceneStart.MatchString(line) {
			inCutscene = true
		}
		emitted := line
		if inCutscene && opts.EncodeCutsceneDataFloatEncoding {
			emitted = rewriteCutsceneFloats(line)
		}
		if inCutscene && reCutsceneEnd.MatchString(line) {
			inCutscene = false
		}

		out.WriteString(emitted)
		out.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}

	return &Result{Output: out.String(), Blocks: blocks}, nil
}

func resolveIncludePath(rel, currentSource, asmDir string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	if currentSource != "" {
		return filepath.Join(filepath.Dir(currentSource), rel)
	}
	return filepath.Join(asmDir, rel)
}

func expandAsmBlock(opts Options, asmDir, asmFile, fnName string, lineNo int) (AsmFunction, string, error) {
	path := asmFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(asmDir, asmFile)
	}
	if filepath.Ext(path) == "" {
		path += ".s"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return AsmFunction{}, "", fmt.Errorf("%s:%d: GLOBAL_ASM references missing file %q: %w", asmFile, lineNo, path, err)
	}

	block := NewBlock(opts)
	asmLines := strings.Split(string(data), "\n")
	for _, l := range asmLines {
		if err := block.ProcessLine(l); err != nil {
			return AsmFunction{}, "", fmt.Errorf("%s: %w", path, err)
		}
	}

	counts := block.Counts()
	var buf strings.Builder
	name := fnName
	if name == "" {
		name = syntheticName(path)
	}
	skip := block.SkipInstrCount()
	if counts.lateRodata > 0 {
		skip += preludeIfLateRodata(opts)
	}
	synth.EmitDummyFunction(&buf, synth.Func{Name: name, TextBytes: counts.text}, synth.Params{
		MaxFnSize:     MaxFnSize,
		SkipInstrs:    skip,
		JumpTableCost: jumpTableCost(opts).size,
	})

	fn := AsmFunction{
		TempSymbolName:     name,
		TextGlabels:        []string{name},
		AsmLines:           asmLines,
		LateRodataAsmLines: block.lateRodataLines,
		Data:               map[string]DataExtent{},
	}

	if counts.data > 0 {
		fn.Data["data"] = DataExtent{Size: counts.data}
	}
	if counts.bss > 0 {
		fn.Data["bss"] = DataExtent{Size: counts.bss}
	}
	if counts.rodata > 0 {
		fn.Data["rodata"] = DataExtent{Size: counts.rodata}
	}

	if block.NeedsLateRodataDummy() {
		align := block.LateRodataAlignment()
		if align == 0 {
			align = 4
		}
		cost := jumpTableCost(opts)
		needsJtbl := useJtblForRodata(opts) && counts.lateRodata >= cost.minRodataSize*4
		patterns := synth.EmitLateRodataDummy(&buf, counts.lateRodata, align, needsJtbl, cost.size)
		fn.LateRodataDummyBytes = patterns
		if needsJtbl {
			fn.JtblRodataSize = min(cost.size*4, counts.lateRodata)
		}
	}

	return fn, buf.String(), nil
}

func syntheticName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return "asmpp_" + base
}

func countDataBytes(asm string) int {
	n := 0
	for _, line := range strings.Split(asm, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, ".word"), strings.HasPrefix(trimmed, ".float"):
			n += 4 * (strings.Count(trimmed, ",") + 1)
		case strings.HasPrefix(trimmed, ".double"):
			n += 8 * (strings.Count(trimmed, ",") + 1)
		case strings.HasPrefix(trimmed, ".byte"):
			n += strings.Count(trimmed, ",") + 1
		}
	}
	return n
}

// rewriteCutsceneFloats rewrites every trailing-f float literal on a line
// inside a CutsceneData[] = { ... } initializer into its exact IEEE-754
// big-endian 32-bit hex representation, mirroring the N64 SDK's own
// cutscene-data format which stores floats pre-folded so the compiler
// never has to perform the conversion itself.
func rewriteCutsceneFloats(line string) string {
	return reFloatLiteral.ReplaceAllStringFunc(line, func(lit string) string {
		numPart := strings.TrimSuffix(lit, "f")
		numPart = strings.TrimSuffix(numPart, "F")
		f, err := strconv.ParseFloat(numPart, 32)
		if err != nil {
			return lit
		}
		bits := math.Float32bits(float32(f))
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], bits)
		return fmt.Sprintf("0x%02X%02X%02X%02X", b[0], b[1], b[2], b[3])
	})
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
