package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"mc-resource-manager/importer"
	"mc-resource-manager/resource"
	"mc-resource-manager/ui"
)

const shortHashLen = 12

func shortHash(hash string) string {
	if len(hash) > shortHashLen {
		return hash[:shortHashLen]
	}
	return hash
}

// summarize renders the counters of an import result on one line.
func summarize(res *importer.Result) string {
	return fmt.Sprintf("%d imported, %d updated, %d unrecognized, %d failed, %d duplicates",
		len(res.Imported), len(res.Updated), len(res.Unrecognized), len(res.Failed), len(res.Duplicates))
}

// printResult writes every path of an import result grouped by outcome.
func printResult(w io.Writer, res *importer.Result) {
	for _, r := range res.Imported {
		fmt.Fprintf(w, "%s %s %s (%s)\n", ui.Success.Render("+"), ui.Domain(r.Domain), r.Name, r.Path)
	}
	for _, r := range res.Updated {
		fmt.Fprintf(w, "%s %s %s (%s)\n", ui.Success.Render("~"), ui.Domain(r.Domain), r.Name, r.Path)
	}
	for _, r := range res.Replaced {
		fmt.Fprintf(w, "%s %s %s (content at %s changed)\n", ui.Muted.Render("- replaced"), ui.Domain(r.Domain), r.Name, r.Path)
	}
	for _, p := range res.Unrecognized {
		fmt.Fprintf(w, "%s %s\n", ui.Muted.Render("? unrecognized"), p)
	}
	for _, d := range res.Duplicates {
		fmt.Fprintf(w, "%s %s (same content as %s)\n", ui.Muted.Render("= duplicate"), d.Path, d.Of)
	}
	for _, f := range res.Failed {
		fmt.Fprintf(w, "%s %s: %v\n", ui.Failure.Render("! failed"), f.Path, f.Err)
	}
	fmt.Fprintln(w, ui.Bold.Render(summarize(res)))
}

// resourceTable renders resources as a bordered table.
func resourceTable(rs []resource.Resource) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("HASH", "DOMAIN", "TYPE", "NAME", "ENABLED", "PATH")
	for _, r := range rs {
		enabled := "yes"
		if !r.Enabled {
			enabled = "no"
		}
		t.Row(shortHash(r.Hash), string(r.Domain), string(r.Type), r.Name, enabled, r.Path)
	}
	return t.String()
}

// describe renders the details of one resource.
func describe(w io.Writer, r resource.Resource) {
	field := func(k, v string) {
		if v != "" {
			fmt.Fprintf(w, "%-10s %s\n", k+":", v)
		}
	}
	field("Name", r.Name)
	field("Hash", r.Hash)
	field("Domain", ui.Domain(r.Domain))
	field("Type", string(r.Type))
	field("Path", r.Path)
	field("Size", fmt.Sprintf("%d bytes", r.Size))
	field("Enabled", fmt.Sprintf("%t", r.Enabled))
	field("Icons", fmt.Sprintf("%d", len(r.Icons)))
	if !r.Source.ImportedAt.IsZero() {
		field("Imported", r.Source.ImportedAt.Format("2006-01-02 15:04:05"))
	}
	if uris := r.Source.URIs(); len(uris) > 0 {
		field("Source", strings.Join(uris, ", "))
	}
	if len(r.URIs) > 0 {
		field("URIs", strings.Join(r.URIs, ", "))
	}
	if len(r.Metadata) > 0 {
		field("Metadata", string(r.Metadata))
	}
}
