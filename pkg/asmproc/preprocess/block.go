package preprocess

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Manu343726/asmproc/pkg/asmproc/elfobj"
)

// sectionCounts tracks how many bytes of each output section a GLOBAL_ASM
// block has emitted so far, used both to size the dummy replacement code
// and to size-check the final splice against the stub object's symbols.
type sectionCounts struct {
	text       int
	data       int
	rodata     int
	lateRodata int
	bss        int
}

// Block accumulates one GLOBAL_ASM/INCLUDE_ASM region's source lines,
// classifying each into its target section and, for .late_rodata,
// buffering enough to infer required alignment and a dummy-data budget.
// It mirrors GlobalAsmBlock from the reference preprocessor.
type Block struct {
	opts Options

	curSection      string
	counts          sectionCounts
	textInstrs      int
	fnStack         []string
	lateRodataAlign int // 0 = unknown, 4 or 8 once seen
	lineNo          int

	lateRodataLines []string
	lines           []string
}

// NewBlock starts a fresh asm-block scan.
func NewBlock(opts Options) *Block {
	return &Block{opts: opts, curSection: ".text"}
}

// ProcessLine classifies one line of the assembly block, updating section
// byte/instruction accounting. It never emits output itself; expandAsmBlock
// builds the replacement from Counts once the whole block has been seen, so
// the late-rodata heuristic can see the block's total shape.
func (b *Block) ProcessLine(line string) error {
	b.lineNo++
	b.lines = append(b.lines, line)
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "/*") {
		return nil
	}

	if directive, ok := strings.CutPrefix(trimmed, "."); ok {
		return b.processDirective("."+directive, line)
	}

	if strings.HasSuffix(trimmed, ":") {
		// label; doesn't change section accounting
		return nil
	}

	if b.curSection != ".text" {
		return b.fail(line, "instruction outside .text is not allowed (section is %s)", b.curSection)
	}

	b.textInstrs++
	b.addToCurSection(4)
	return nil
}

func (b *Block) fail(line, format string, args ...any) error {
	return &elfobj.PreprocessorError{
		Line:   line,
		LineNo: b.lineNo,
		Reason: fmt.Sprintf(format, args...),
	}
}

// addToCurSection adds n bytes to whichever section counter is active.
func (b *Block) addToCurSection(n int) {
	switch b.curSection {
	case ".text":
		b.counts.text += n
	case ".data":
		b.counts.data += n
	case ".rodata":
		b.counts.rodata += n
	case ".late_rodata":
		b.counts.lateRodata += n
	case ".bss":
		b.counts.bss += n
	}
}

// commaCount returns how many comma-separated operands follow a directive
// name in fields, used to size .word/.float/.double/.byte/.half which each
// accept a comma-separated list rather than a single operand.
func commaCount(line, directive string) int {
	rest := line
	if idx := strings.Index(line, directive); idx >= 0 {
		rest = line[idx+len(directive):]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return 1
	}
	return strings.Count(rest, ",") + 1
}

func (b *Block) processDirective(d, line string) error {
	fields := strings.Fields(d)
	name := fields[0]

	switch name {
	case ".text", ".data", ".bss":
		b.curSection = name
		return nil
	case ".rodata", ".rdata":
		b.curSection = ".rodata"
		return nil
	case ".late_rodata":
		b.curSection = ".late_rodata"
		return nil
	case ".section":
		if len(fields) > 1 {
			b.curSection = strings.TrimSuffix(fields[1], ",")
		}
		return nil
	case ".late_rodata_alignment":
		if len(fields) < 2 {
			return b.fail(line, ".late_rodata_alignment requires an argument")
		}
		align, err := strconv.Atoi(fields[1])
		if err != nil || (align != 4 && align != 8) {
			return b.fail(line, "bad .late_rodata_alignment argument %q: must be 4 or 8", fields[1])
		}
		if b.lateRodataAlign != 0 && b.lateRodataAlign != align {
			return b.fail(line, "conflicting .late_rodata_alignment: had %d, saw %d", b.lateRodataAlign, align)
		}
		b.lateRodataAlign = align
		return nil
	case ".incbin":
		if len(fields) < 2 {
			return b.fail(line, ".incbin requires path,size")
		}
		arg := strings.TrimSuffix(strings.Join(fields[1:], " "), "")
		parts := strings.SplitN(arg, ",", 2)
		if len(parts) != 2 {
			return b.fail(line, ".incbin requires an explicit size argument")
		}
		size, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return b.fail(line, "bad .incbin size %q: %v", parts[1], err)
		}
		b.addToCurSection(size)
		if b.curSection == ".text" {
			b.textInstrs += size / 4
		}
		if b.curSection == ".late_rodata" {
			b.lateRodataLines = append(b.lateRodataLines, strings.TrimSpace(line))
		}
		return nil
	case ".space":
		if len(fields) < 2 {
			return b.fail(line, ".space requires an argument")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return b.fail(line, "bad .space argument %q: %v", fields[1], err)
		}
		b.addToCurSection(n)
		return nil
	case ".double":
		// A bare .double in late rodata without an explicit alignment
		// directive implies 8-byte alignment, mirroring the reference
		// tool's inference so generated dummy doubles land correctly.
		if b.curSection == ".late_rodata" && b.lateRodataAlign == 0 {
			b.lateRodataAlign = 8
		}
		b.addToCurSection(8 * commaCount(line, ".double"))
		if b.curSection == ".late_rodata" {
			b.lateRodataLines = append(b.lateRodataLines, strings.TrimSpace(line))
		}
		return nil
	case ".float", ".word", ".4byte", ".gpword":
		b.addToCurSection(4 * commaCount(line, name))
		if b.curSection == ".late_rodata" {
			b.lateRodataLines = append(b.lateRodataLines, strings.TrimSpace(line))
		}
		return nil
	case ".half", ".hword", ".short":
		b.addToCurSection(2 * commaCount(line, name))
		return nil
	case ".byte":
		b.addToCurSection(commaCount(line, ".byte"))
		return nil
	case ".ascii", ".asciz", ".asciiz":
		n, err := asciiByteCount(line, name == ".asciz" || name == ".asciiz")
		if err != nil {
			return b.fail(line, "%s", err)
		}
		b.addToCurSection(n)
		return nil
	case ".align":
		if len(fields) > 1 && fields[1] != "2" {
			return &elfobj.UnsupportedFeatureError{Feature: fmt.Sprintf(".align %s (only .align 2 is supported)", fields[1])}
		}
		return nil
	case ".balign":
		if len(fields) > 1 && fields[1] != "4" {
			return &elfobj.UnsupportedFeatureError{Feature: fmt.Sprintf(".balign %s (only .balign 4 is supported)", fields[1])}
		}
		return nil
	case ".size":
		return nil
	case ".ent", ".func":
		if len(fields) > 1 {
			b.fnStack = append(b.fnStack, strings.TrimSuffix(fields[1], ","))
		}
		return nil
	case ".end", ".endfunc":
		if len(b.fnStack) > 0 {
			b.fnStack = b.fnStack[:len(b.fnStack)-1]
		}
		return nil
	default:
		return b.fail(line, "unsupported directive %q", name)
	}
}

// asciiByteCount counts the bytes a .ascii/.asciz/.asciiz directive's
// comma-separated, C-escape-aware string literals contribute, adding one
// extra terminating byte per string for the z variants.
func asciiByteCount(line string, nulTerminated bool) (int, error) {
	idx := strings.IndexByte(line, '"')
	if idx < 0 {
		return 0, fmt.Errorf("expected a string literal")
	}
	rest := line[idx:]

	total := 0
	for len(rest) > 0 {
		if rest[0] != '"' {
			break
		}
		rest = rest[1:]
		n := 0
		closed := false
		for i := 0; i < len(rest); i++ {
			switch rest[i] {
			case '\\':
				i++
				n++
			case '"':
				rest = rest[i+1:]
				closed = true
			default:
				n++
				continue
			}
			if closed {
				break
			}
		}
		if !closed {
			return 0, fmt.Errorf("unterminated string literal")
		}
		if nulTerminated {
			n++
		}
		total += n

		rest = strings.TrimLeft(rest, " \t")
		if strings.HasPrefix(rest, ",") {
			rest = strings.TrimLeft(rest[1:], " \t")
			continue
		}
		break
	}
	return total, nil
}

// Counts exposes the accumulated per-section byte counts.
func (b *Block) Counts() sectionCounts { return b.counts }

// LateRodataAlignment returns the alignment (0, 4 or 8) this block's
// .late_rodata content requires.
func (b *Block) LateRodataAlignment() int { return b.lateRodataAlign }

// NeedsLateRodataDummy reports whether the text in this block is long
// enough that the legacy compiler, left to its own devices, would start
// spilling jump tables/float constants into .rodata before the
// programmer-authored rodata begins — meaning dummy filler must be
// synthesized to push that spillage into .late_rodata instead.
func (b *Block) NeedsLateRodataDummy() bool {
	if b.counts.lateRodata == 0 {
		return false
	}
	counts, err := lookupInstrCounts(b.opts)
	if err != nil {
		return false
	}
	return b.textInstrs >= counts.min
}

// SkipInstrCount is how many leading text instructions of this block the
// late-rodata dummy budget must discount, since the compiler's own
// prologue code already accounts for some of the spill room.
func (b *Block) SkipInstrCount() int {
	counts, err := lookupInstrCounts(b.opts)
	if err != nil {
		return 0
	}
	return counts.skip
}
