// Package config holds the option types shared across the preprocess and
// postprocess passes, loaded through viper from a ".asmproc.yaml" file (or
// the file named by --config), with an ASMPROC_ environment prefix as a
// fallback. No option has a CLI flag of its own.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/Manu343726/asmproc/pkg/asmproc/postprocess"
	"github.com/Manu343726/asmproc/pkg/asmproc/preprocess"
)

// Options is the full set of knobs the asmproc CLI exposes, bound once at
// startup and threaded through both passes.
type Options struct {
	OptLevel     string `mapstructure:"opt"`
	G3           bool   `mapstructure:"g3"`
	FramePointer bool   `mapstructure:"framepointer"`
	Kpic         bool   `mapstructure:"kpic"`
	Pascal       bool   `mapstructure:"pascal"`
	Mips1        bool   `mapstructure:"mips1"`

	EncodeCutsceneDataFloatEncoding bool   `mapstructure:"encode_cutscene_data_float_encoding"`
	OutputEnc                       string `mapstructure:"output_enc"`

	AsmDir         string   `mapstructure:"asm_dir"`
	AssemblerPath  string   `mapstructure:"assembler"`
	AssemblerFlags []string `mapstructure:"assembler_flags"`
	Verbose        bool     `mapstructure:"verbose"`
	KeepTemp       bool     `mapstructure:"keep_temp"`

	DropMdebugGptab bool   `mapstructure:"drop_mdebug_gptab"`
	ConvertStatics  string `mapstructure:"convert_statics"` // "no", "local", "global", "global-with-filename"
	ObjfilePath     string `mapstructure:"objfile_path"`
}

// Load reads ".asmproc.yaml" (current directory, then $HOME) and
// environment variables prefixed ASMPROC_, then unmarshals into Options.
// Missing config is not an error: every field has a sensible zero value.
func Load(v *viper.Viper) (Options, error) {
	if v == nil {
		v = viper.GetViper()
	}
	v.SetConfigName(".asmproc")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.SetEnvPrefix("ASMPROC")
	v.AutomaticEnv()

	v.SetDefault("opt", "O2")
	v.SetDefault("asm_dir", "asm")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Options{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return Options{}, fmt.Errorf("parsing config: %w", err)
	}
	return opts, nil
}

// PreprocessOptions translates the flat config into preprocess.Options.
func (o Options) PreprocessOptions() preprocess.Options {
	return preprocess.Options{
		OptLevel:                        parseOptLevel(o.OptLevel),
		G3:                               o.G3,
		FramePointer:                     o.FramePointer,
		Kpic:                             o.Kpic,
		Pascal:                           o.Pascal,
		Mips1:                            o.Mips1,
		AsmDir:                           o.AsmDir,
		EncodeCutsceneDataFloatEncoding:  o.EncodeCutsceneDataFloatEncoding,
		OutputEnc:                        o.OutputEnc,
	}
}

// AssemblerConfig translates the flat config into postprocess.AssemblerConfig.
func (o Options) AssemblerConfig() *postprocess.AssemblerConfig {
	return &postprocess.AssemblerConfig{
		Path:          o.AssemblerPath,
		ExtraFlags:    o.AssemblerFlags,
		Verbose:       o.Verbose,
		KeepTempFiles: o.KeepTemp,
	}
}

// MergeOptions translates the flat config into postprocess.MergeOptions.
func (o Options) MergeOptions() postprocess.MergeOptions {
	return postprocess.MergeOptions{
		ConvertStatics:  parseConvertStatics(o.ConvertStatics),
		DropMdebugGptab: o.DropMdebugGptab,
		ObjfilePath:     o.ObjfilePath,
	}
}

func parseConvertStatics(s string) postprocess.ConvertStatics {
	switch s {
	case "local":
		return postprocess.ConvertStaticsLocal
	case "global":
		return postprocess.ConvertStaticsGlobal
	case "global-with-filename":
		return postprocess.ConvertStaticsGlobalWithFilename
	default:
		return postprocess.ConvertStaticsNo
	}
}

func parseOptLevel(s string) preprocess.OptLevel {
	switch s {
	case "O0":
		return preprocess.OptO0
	case "O1":
		return preprocess.OptO1
	case "O2":
		return preprocess.OptO2
	case "g", "G":
		return preprocess.OptG
	default:
		return preprocess.OptO2
	}
}
