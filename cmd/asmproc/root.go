// Command asmproc is a two-pass tool for splicing real MIPS assembly into
// C/Pascal translation units during an N64 decompilation build: the
// "process" subcommand runs the preprocessor pass over a source file, and
// "splice" runs the postprocessor pass over the stub object the legacy
// compiler produced from it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Manu343726/asmproc/pkg/asmproc/config"
)

var cfgFile string
var opts config.Options

var rootCmd = &cobra.Command{
	Use:   "asmproc",
	Short: "Splice hand-assembled MIPS code into decompilation build stubs",
	Long: `asmproc drives a two-pass pipeline used to decompile MIPS N64 code one
function at a time. The preprocess pass rewrites GLOBAL_ASM/INCLUDE_ASM
blocks in a C or Pascal source file into dummy C statements sized to match
the real assembly, so the legacy compiler can build a "stub" object file
around it. The splice pass then takes that stub plus a real, separately
assembled object for the same blocks and merges the two, including symbol
tables, relocations, and the MIPS .mdebug section.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .asmproc.yaml)")
}

func initConfig() {
	v := viper.GetViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	loaded, err := config.Load(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "asmproc: %v\n", err)
		os.Exit(1)
	}
	opts = loaded
}
