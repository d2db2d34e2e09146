package main

import (
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/mitchellh/colorstring"
	"golang.org/x/term"
)

// RenderOptions selects the human-readable layout.
type RenderOptions struct {
	Flat  bool
	Sort  bool
	Color bool
	Depth int // Ignored when Flat is set
}

// Renderer formats root reports as trees or flat lists.
type Renderer struct {
	opts     RenderOptions
	colorize colorstring.Colorize
}

func newRenderer(opts RenderOptions) *Renderer {
	return &Renderer{
		opts: opts,
		colorize: colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Disable: !opts.Color,
		},
	}
}

// useColor reports whether ANSI styling should be emitted on stdout.
// NO_COLOR disables it whatever its value.
func useColor(noColorFlag bool) bool {
	if noColorFlag {
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func (r *Renderer) style(code, s string) string {
	if !r.opts.Color {
		return s
	}
	// s is not passed through Color: bracketed markers would be read as codes.
	return r.colorize.Color("["+code+"]") + s + r.colorize.Color("[reset]")
}

// formatNumber formats n with thousands separators.
func formatNumber(n int) string {
	return humanize.Comma(int64(n))
}

// formatRange prints "min – max", or a single number when they are equal.
func formatRange(rg CountRange) string {
	if rg.Min == rg.Max {
		return formatNumber(rg.Min)
	}
	return formatNumber(rg.Min) + " – " + formatNumber(rg.Max)
}

// marker returns the bracketed label shown in place of counts, or "" for a
// text file that has counts to show.
func (r *Renderer) marker(f AggregatedFile) string {
	switch f.Class {
	case ClassBinary:
		return r.style("dim", "[binary]")
	case ClassTooLarge:
		return r.style("dim", "[too large]")
	case ClassUnreadable:
		return r.style("dim", "[error]")
	}
	if f.Failed {
		return r.style("dim", "[error]")
	}
	return ""
}

// fileValue is the single-column value for single and range modes.
func (r *Renderer) fileValue(f AggregatedFile, mode CountMode) string {
	if m := r.marker(f); m != "" {
		return m
	}
	if mode == ModeRange && f.Range != nil {
		return "[" + formatRange(*f.Range) + "]"
	}
	for _, c := range f.Cells {
		if c.OK {
			return "[" + formatNumber(c.Count) + "]"
		}
	}
	return r.style("dim", "[error]")
}

func totalValue(t AggregatedTotal, mode CountMode) string {
	if mode == ModeRange && t.Range != nil {
		return formatRange(*t.Range)
	}
	if len(t.Cells) > 0 {
		return formatNumber(t.Cells[0].Count)
	}
	return "0"
}

func cellText(c TokenCell) string {
	if !c.OK {
		return "error"
	}
	return formatNumber(c.Count)
}

// columnWidths sizes each named column to fit its header, every file cell
// and the total.
func columnWidths(rep RootReport) []int {
	widths := make([]int, len(rep.Names))
	for i, name := range rep.Names {
		widths[i] = runewidth.StringWidth(strings.ToUpper(name))
	}
	for _, f := range rep.Files {
		for i, c := range f.Cells {
			widths[i] = max(widths[i], runewidth.StringWidth(cellText(c)))
		}
	}
	for i, c := range rep.Total.Cells {
		widths[i] = max(widths[i], runewidth.StringWidth(cellText(c)))
	}
	return widths
}

func namedColumns(cells []TokenCell, widths []int) string {
	var b strings.Builder
	for i, c := range cells {
		b.WriteString("  ")
		b.WriteString(runewidth.FillLeft(cellText(c), widths[i]))
	}
	return b.String()
}

func namedHeader(names []string, widths []int) string {
	var b strings.Builder
	for i, name := range names {
		b.WriteString("  ")
		b.WriteString(runewidth.FillLeft(strings.ToUpper(name), widths[i]))
	}
	return b.String()
}

func hasText(files []AggregatedFile) bool {
	for _, f := range files {
		if f.Class.Counted() {
			return true
		}
	}
	return false
}

// Render returns the text form of one root.
func (r *Renderer) Render(rep RootReport, rootIsDir bool) string {
	if r.opts.Flat || !rootIsDir {
		return r.renderFlat(rep)
	}
	return r.renderTree(rep)
}

func (r *Renderer) renderTree(rep RootReport) string {
	t := buildTree(rep.Files, r.opts.Depth)
	t.finish(rep.Files)
	if r.opts.Sort {
		t.sortByWeight()
	}
	rows := t.rows()

	nameCol := len("TOTAL")
	for _, row := range rows {
		n := &t.nodes[row.node]
		if !n.isDir() {
			nameCol = max(nameCol, prefixWidth(row.prefix)+runewidth.StringWidth(n.name))
		}
	}
	nameCol += 2

	var b strings.Builder
	var widths []int
	if rep.Mode == ModeNamed {
		widths = columnWidths(rep)
		b.WriteString(strings.Repeat(" ", nameCol-2))
		b.WriteString(namedHeader(rep.Names, widths))
		b.WriteString("\n")
	}

	b.WriteString(r.dirLabel(rep.Label))
	b.WriteString("\n")
	for _, row := range rows {
		n := &t.nodes[row.node]
		b.WriteString(row.prefix)
		if n.isDir() {
			b.WriteString(r.dirLabel(n.name))
			b.WriteString("\n")
			continue
		}
		f := rep.Files[n.file]
		pad := nameCol - prefixWidth(row.prefix) - runewidth.StringWidth(n.name)
		b.WriteString(n.name)
		if rep.Mode == ModeNamed && r.marker(f) == "" {
			b.WriteString(strings.Repeat(" ", pad-2))
			b.WriteString(namedColumns(f.Cells, widths))
		} else {
			b.WriteString(strings.Repeat(" ", pad))
			b.WriteString(r.fileValue(f, rep.Mode))
		}
		b.WriteString("\n")
	}

	r.writeTotal(&b, rep, nameCol, widths)
	return b.String()
}

// prefixWidth is the display width of tree connectors: one column per rune.
func prefixWidth(prefix string) int {
	return utf8.RuneCountInString(prefix)
}

func (r *Renderer) dirLabel(name string) string {
	if !strings.HasSuffix(name, "/") {
		name += "/"
	}
	return r.style("bold", name)
}

func (r *Renderer) renderFlat(rep RootReport) string {
	order := make([]int, len(rep.Files))
	for i := range order {
		order[i] = i
	}
	if r.opts.Sort {
		sort.SliceStable(order, func(a, b int) bool {
			fa, fb := rep.Files[order[a]], rep.Files[order[b]]
			if fa.MaxCount() != fb.MaxCount() {
				return fa.MaxCount() > fb.MaxCount()
			}
			return fa.RelPath < fb.RelPath
		})
	}

	pathW := len("TOTAL")
	for _, f := range rep.Files {
		pathW = max(pathW, runewidth.StringWidth(f.RelPath))
	}

	var b strings.Builder
	var widths []int
	if rep.Mode == ModeNamed {
		widths = columnWidths(rep)
		b.WriteString(runewidth.FillRight("PATH", pathW))
		b.WriteString(namedHeader(rep.Names, widths))
		b.WriteString("\n")
	}
	for _, i := range order {
		f := rep.Files[i]
		b.WriteString(runewidth.FillRight(f.RelPath, pathW))
		if rep.Mode == ModeNamed && r.marker(f) == "" {
			b.WriteString(namedColumns(f.Cells, widths))
		} else {
			b.WriteString("  ")
			b.WriteString(r.fileValue(f, rep.Mode))
		}
		b.WriteString("\n")
	}

	r.writeTotal(&b, rep, pathW+2, widths)
	return b.String()
}

// writeTotal appends the grand total: a TOTAL row aligned with the named
// columns, or a "Total: [...]" line.
func (r *Renderer) writeTotal(b *strings.Builder, rep RootReport, labelCol int, widths []int) {
	if !hasText(rep.Files) {
		return
	}
	b.WriteString("\n")
	if rep.Mode == ModeNamed {
		b.WriteString(runewidth.FillRight("TOTAL", labelCol-2))
		b.WriteString(namedColumns(rep.Total.Cells, widths))
		b.WriteString("\n")
		return
	}
	b.WriteString("Total: [" + totalValue(rep.Total, rep.Mode) + "]\n")
}
