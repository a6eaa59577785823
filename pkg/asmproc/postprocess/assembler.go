package postprocess

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Manu343726/asmproc/pkg/asmproc/elfobj"
)

// AssemblerConfig locates and configures the external MIPS assembler the
// combined real source of a translation unit's GLOBAL_ASM/INCLUDE_ASM
// blocks gets handed to. Splicing
// always targets a real, separately-assembled object — there is no
// in-process MIPS assembler here — so this tool only ever shells out
// to one, the same way the rest of the toolchain shells out to clang.
type AssemblerConfig struct {
	// Path is the explicit path to the assembler executable.
	Path string
	// ExtraFlags is appended to every invocation (e.g. -EB/-EL, -mips2).
	ExtraFlags []string
	// Verbose streams the assembler's command line and output to stderr.
	Verbose bool
	// KeepTempFiles skips cleanup of the per-invocation temp directory.
	KeepTempFiles bool
}

// DiscoverAssembler finds an assembler executable, preferring an explicit
// Path, then well-known N64-toolchain binary names on PATH.
func DiscoverAssembler(cfg *AssemblerConfig) (string, error) {
	if cfg != nil && cfg.Path != "" {
		if _, err := os.Stat(cfg.Path); err != nil {
			return "", fmt.Errorf("specified assembler path not found: %s", cfg.Path)
		}
		return cfg.Path, nil
	}
	for _, name := range []string{"mips-linux-gnu-as", "mips64-elf-as", "as"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("could not find a MIPS assembler on PATH; set AssemblerConfig.Path explicitly")
}

// AssembleResult is one invocation's output object plus bookkeeping for
// cleanup.
type AssembleResult struct {
	Object   *elfobj.File
	TempDir  string
	Command  string
}

// Cleanup removes the scratch directory an Assemble call created, unless
// the config asked to keep it.
func (r *AssembleResult) Cleanup(cfg *AssemblerConfig) {
	if cfg != nil && cfg.KeepTempFiles {
		return
	}
	if r.TempDir != "" {
		os.RemoveAll(r.TempDir)
	}
}

// Assemble runs the external assembler over asmSource: the single
// combined real.s the AsmFileSynthesizer produces for every
// GLOBAL_ASM/INCLUDE_ASM function in a translation unit, padded so each
// function lands at the exact byte offset the stub object's symbol table
// recorded for it. Each call gets its own scratch directory so concurrent
// translation units never collide on a shared temp file name.
func Assemble(asmSource string, cfg *AssemblerConfig) (*AssembleResult, error) {
	assemblerPath, err := DiscoverAssembler(cfg)
	if err != nil {
		return nil, err
	}

	tempDir, err := os.MkdirTemp("", "asm_processor_*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}

	asmPath := filepath.Join(tempDir, "real.s")
	if err := os.WriteFile(asmPath, []byte(asmSource), 0o644); err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("writing %s: %w", asmPath, err)
	}
	outPath := filepath.Join(tempDir, "real.o")

	args := []string{"-o", outPath}
	if cfg != nil {
		args = append(args, cfg.ExtraFlags...)
	}
	args = append(args, asmPath)

	cmd := exec.Command(assemblerPath, args...)
	commandStr := fmt.Sprintf("%s %s", assemblerPath, strings.Join(args, " "))

	if cfg != nil && cfg.Verbose {
		fmt.Fprintf(os.Stderr, "Running: %s\n", commandStr)
	}

	output, err := cmd.CombinedOutput()
	if cfg != nil && cfg.Verbose {
		os.Stderr.Write(output)
	}
	if err != nil {
		exitCode := -1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		os.RemoveAll(tempDir)
		return nil, &elfobj.AssemblerFailedError{Command: commandStr, ExitCode: exitCode, Output: string(output)}
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, &elfobj.IoErrorError{Op: "read", Path: outPath, Err: err}
	}

	obj, err := elfobj.Parse(data)
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("parsing assembled object %s: %w", outPath, err)
	}

	return &AssembleResult{Object: obj, TempDir: tempDir, Command: commandStr}, nil
}
