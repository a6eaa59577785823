package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Manu343726/asmproc/pkg/asmproc/diag"
	"github.com/Manu343726/asmproc/pkg/asmproc/preprocess"
)

var processAsmDir string
var processOutput string
var processManifest string

var processCmd = &cobra.Command{
	Use:   "process <source>",
	Short: "Run the preprocessor pass over a C/Pascal source file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := args[0]

		f, err := os.Open(src)
		if err != nil {
			return fmt.Errorf("opening %s: %w", src, err)
		}
		defer f.Close()

		asmDir := processAsmDir
		if asmDir == "" {
			asmDir = opts.AsmDir
		}

		result, err := preprocess.ParseSource(opts.PreprocessOptions(), f, asmDir)
		if err != nil {
			diag.Error(src, err)
			return err
		}

		out := os.Stdout
		if processOutput != "" {
			w, err := os.Create(processOutput)
			if err != nil {
				return fmt.Errorf("creating %s: %w", processOutput, err)
			}
			defer w.Close()
			out = w
		}
		if _, err := out.WriteString(result.Output); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}

		manifestPath := processManifest
		if manifestPath == "" && processOutput != "" {
			manifestPath = processOutput + ".asmfuncs.json"
		}
		if manifestPath != "" {
			data, err := json.Marshal(result.Blocks)
			if err != nil {
				return fmt.Errorf("serializing asm function manifest: %w", err)
			}
			if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", manifestPath, err)
			}
		}

		if opts.Verbose {
			diag.Success("expanded %d asm block(s) from %s", len(result.Blocks), src)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().StringVar(&processAsmDir, "asm-dir", "", "directory containing referenced .s files (default from config)")
	processCmd.Flags().StringVarP(&processOutput, "output", "o", "", "output file (default stdout)")
	processCmd.Flags().StringVar(&processManifest, "manifest", "", "path to write the AsmFunction JSON manifest (default: <output>.asmfuncs.json)")
}
