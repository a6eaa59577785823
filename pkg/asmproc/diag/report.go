package diag

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/Manu343726/asmproc/pkg/utils"
)

var (
	colorError   = color.New(color.FgRed, color.Bold)
	colorWarning = color.New(color.FgYellow)
	colorSuccess = color.New(color.FgGreen)
	colorFile    = color.New(color.FgHiBlue)
)

// Error prints a fatal diagnostic to stderr, tagging it with the source
// file it came from when known.
func Error(file string, err error) {
	if file != "" {
		fmt.Fprintf(os.Stderr, "%s %s: %v\n", colorError.Sprint("error:"), colorFile.Sprint(file), err)
		return
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", colorError.Sprint("error:"), err)
}

// Warning prints a non-fatal diagnostic, used by the splice command for
// each entry of a merge result's Warnings.
func Warning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", colorWarning.Sprint("warning:"), fmt.Sprintf(format, args...))
}

// Success prints a short confirmation, used after a splice completes.
func Success(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", colorSuccess.Sprint("ok:"), fmt.Sprintf(format, args...))
}

// FormatAddr renders a section/symbol address the same fixed-width hex
// form asmproc's splice diagnostics use throughout.
func FormatAddr(value uint32) string {
	return utils.FormatUintHex(uint64(value), 8)
}
