package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Manu343726/asmproc/pkg/asmproc/diag"
	"github.com/Manu343726/asmproc/pkg/asmproc/elfobj"
	"github.com/Manu343726/asmproc/pkg/asmproc/postprocess"
	"github.com/Manu343726/asmproc/pkg/asmproc/preprocess"
)

var spliceManifest string
var spliceOutput string

var spliceCmd = &cobra.Command{
	Use:   "splice <stub.o>",
	Short: "Splice real assembled code into a compiler-generated stub object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stubPath := args[0]

		stubData, err := os.ReadFile(stubPath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", stubPath, err)
		}
		stub, err := elfobj.Parse(stubData)
		if err != nil {
			diag.Error(stubPath, err)
			return err
		}

		manifestPath := spliceManifest
		if manifestPath == "" {
			manifestPath = stubPath + ".asmfuncs.json"
		}
		manifestData, err := os.ReadFile(manifestPath)
		if err != nil {
			return fmt.Errorf("reading asm function manifest %s: %w", manifestPath, err)
		}
		var funcs []preprocess.AsmFunction
		if err := json.Unmarshal(manifestData, &funcs); err != nil {
			return fmt.Errorf("parsing asm function manifest %s: %w", manifestPath, err)
		}

		realAsm, err := postprocess.SynthesizeRealAsm(stub, funcs)
		if err != nil {
			diag.Error(stubPath, err)
			return err
		}

		asmCfg := opts.AssemblerConfig()
		asmResult, err := postprocess.Assemble(realAsm, asmCfg)
		if err != nil {
			diag.Error(stubPath, err)
			return err
		}
		defer asmResult.Cleanup(asmCfg)

		mergeOpts := opts.MergeOptions()
		if mergeOpts.ObjfilePath == "" {
			mergeOpts.ObjfilePath = stubPath
		}

		result, err := postprocess.Merge(stub, asmResult.Object, funcs, mergeOpts)
		if err != nil {
			diag.Error(stubPath, err)
			return err
		}
		for _, w := range result.Warnings {
			diag.Warning("%s", w)
		}

		out, err := result.Object.Write()
		if err != nil {
			return fmt.Errorf("serializing spliced object: %w", err)
		}

		outPath := spliceOutput
		if outPath == "" {
			outPath = stubPath
		}
		if err := os.WriteFile(outPath, out, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}

		if opts.Verbose {
			diag.Success("spliced %d function(s) into %s", len(funcs), outPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(spliceCmd)
	spliceCmd.Flags().StringVar(&spliceManifest, "manifest", "", "path to the AsmFunction JSON manifest produced by `process` (default: <stub>.asmfuncs.json)")
	spliceCmd.Flags().StringVarP(&spliceOutput, "output", "o", "", "output object path (default: overwrite the stub)")
}
