package main

import (
	"fmt"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"

	"github.com/Manu343726/asmproc/pkg/asmproc/elfobj"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <object.o>",
	Short: "Browse a MIPS ELF object's sections and symbols in a terminal UI",
	Long: `inspect opens a read-only terminal browser over a parsed ELF object: a
section list on the left, and on the right the selected section's symbols
(for a symbol table), relocations (for a relocation section), or a hex dump
of its first 512 bytes (for any other section). It never mutates the object —
it exists purely to make the splice pipeline's intermediate objects easy
to eyeball while debugging a failed merge.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		obj, err := elfobj.Parse(data)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", args[0], err)
		}
		return runInspector(obj)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspector(obj *elfobj.File) error {
	sectionList := tview.NewList().ShowSecondaryText(false)
	detail := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	detail.SetBorder(true).SetTitle("details")
	sectionList.SetBorder(true).SetTitle("sections")

	for _, sec := range obj.Sections {
		name := sec.Name
		if name == "" {
			name = "(null)"
		}
		sectionList.AddItem(name, "", 0, nil)
	}

	render := func(index int) {
		if index < 0 || index >= len(obj.Sections) {
			return
		}
		sec := obj.Sections[index]
		detail.Clear()
		fmt.Fprintf(detail, "[yellow]%s[-]  size=%d  offset=0x%x  addr=0x%x\n\n", sec.Name, sec.Header.Size, sec.Header.Offset, sec.Header.Addr)
		if sec.Symbols != nil {
			fmt.Fprintf(detail, "[green]%-6s %-10s %-6s %s[-]\n", "value", "size", "type", "name")
			for _, sym := range sec.Symbols {
				fmt.Fprintf(detail, "%06x %-10d %-6d %s\n", sym.Value, sym.Size, sym.Type, string(sym.Name))
			}
			return
		}
		if sec.Relocations != nil {
			fmt.Fprintf(detail, "[green]%-8s %-6s %s[-]\n", "offset", "type", "symidx")
			for _, rel := range sec.Relocations {
				fmt.Fprintf(detail, "%08x %-6d %d\n", rel.Offset, rel.Type, rel.SymIndex)
			}
			return
		}
		n := len(sec.Data)
		if n > 512 {
			n = 512
		}
		for i := 0; i < n; i += 16 {
			end := i + 16
			if end > n {
				end = n
			}
			fmt.Fprintf(detail, "%06x  % x\n", i, sec.Data[i:end])
		}
		if len(sec.Data) > 512 {
			fmt.Fprintf(detail, "... %d more bytes\n", len(sec.Data)-512)
		}
	}

	sectionList.SetChangedFunc(func(index int, _ string, _ string, _ rune) {
		render(index)
	})
	if len(obj.Sections) > 0 {
		render(0)
	}

	flex := tview.NewFlex().
		AddItem(sectionList, 30, 1, true).
		AddItem(detail, 0, 3, false)

	app := tview.NewApplication().SetRoot(flex, true).SetFocus(sectionList)
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == 'q' {
			app.Stop()
			return nil
		}
		return event
	})
	return app.Run()
}
