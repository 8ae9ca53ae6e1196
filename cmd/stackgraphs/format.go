package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jward/stackgraphs"
)

// validateFormat checks that the --format flag value is valid.
func validateFormat(format string) error {
	switch format {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("invalid --format %q: must be json or text", format)
	}
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatDefinitionsText formats definitions as "file:line:col symbol" lines.
func formatDefinitionsText(w io.Writer, defs []stackgraphs.Definition) {
	for _, d := range defs {
		fmt.Fprintf(w, "%s:%d:%d\t%s\n", d.Position.Path, d.Position.Line, d.Position.Column, d.Symbol)
	}
}

// formatSymbolsText formats symbols as aligned columns.
func formatSymbolsText(w io.Writer, syms []stackgraphs.Symbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLINE\tCOL")
	for _, s := range syms {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", s.Name, s.Position.Line, s.Position.Column)
	}
	tw.Flush()
}

// formatRecordsText formats file records as aligned columns.
func formatRecordsText(w io.Writer, records []*stackgraphs.FileRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tLANGUAGE\tSTATUS\tNODES\tPATHS\tERROR")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.Path, r.Language, r.Status, r.Nodes, r.Paths, r.Error)
	}
	tw.Flush()
}
