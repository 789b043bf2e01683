package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/davidthor/smartcfg/pkg/config"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func newInspectCmd() *cobra.Command {
	var only string

	cmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "Show the contents of a config document",
		Long: `Show the version, platforms, languages, categories and entries of a
config document. With --only-platform only the global entries and that
platform's block are listed.

Examples:
  smartcfg inspect
  smartcfg inspect ./RemoteConfig.json --only-platform Android`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := documentPath(args)
			doc, err := config.ParseFile(path)
			if err != nil {
				return err
			}
			renderDocument(cmd.OutOrStdout(), path, doc, config.Platform(only))
			return nil
		},
	}

	cmd.Flags().StringVar(&only, "only-platform", "", "Only list this platform's block")

	return cmd
}

func renderDocument(w io.Writer, path string, doc *config.Document, only config.Platform) {
	fmt.Fprintln(w, headingStyle.Render(path))
	fmt.Fprintf(w, "  Version:    %d\n", doc.Version)
	fmt.Fprintf(w, "  Languages:  %s\n", joinOrNone(doc.Languages))
	fmt.Fprintf(w, "  Categories: %s\n", joinOrNone(doc.Categories))

	platforms := make([]string, 0, len(doc.Platforms))
	for _, b := range doc.Platforms {
		platforms = append(platforms, fmt.Sprintf("%s (%d)", b.Platform, len(b.Entries)))
	}
	fmt.Fprintf(w, "  Platforms:  %s\n", joinOrNone(platforms))

	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf("Global entries (%d)", len(doc.Entries))))
	renderEntries(w, doc.Entries)

	for _, b := range doc.Platforms {
		if only != "" && b.Platform != only {
			continue
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf("%s entries (%d)", b.Platform, len(b.Entries))))
		renderEntries(w, b.Entries)
	}

	if len(doc.Diagnostics) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf("Diagnostics (%d)", len(doc.Diagnostics))))
		for _, d := range doc.Diagnostics {
			style := warnStyle
			if d.Severity == config.SeverityError {
				style = errorStyle
			}
			fmt.Fprintf(w, "  %s\n", style.Render(d.String()))
		}
	}
}

func renderEntries(w io.Writer, entries []config.Entry) {
	if len(entries) == 0 {
		fmt.Fprintf(w, "  %s\n", dimStyle.Render("(none)"))
		return
	}

	width := 0
	for _, e := range entries {
		width = max(width, len(e.Key))
	}
	for _, e := range entries {
		line := fmt.Sprintf("  %-*s  %-12s %s", width, e.Key, e.Type(), formatValue(e.Value))
		if e.Category != "" {
			line += " " + dimStyle.Render("["+e.Category+"]")
		}
		fmt.Fprintln(w, line)
	}
}

func formatValue(v config.Value) string {
	switch v := v.(type) {
	case config.StringValue:
		return fmt.Sprintf("%q", string(v))
	case config.TranslatableValue:
		parts := make([]string, 0, len(v))
		for _, lang := range v.Languages() {
			parts = append(parts, fmt.Sprintf("%s=%q", lang, v[lang]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(v)
	}
}

func joinOrNone[T ~string](items []T) string {
	if len(items) == 0 {
		return dimStyle.Render("(none)")
	}
	s := make([]string, len(items))
	for i, item := range items {
		s[i] = string(item)
	}
	return strings.Join(s, ", ")
}
