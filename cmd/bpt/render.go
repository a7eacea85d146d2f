package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/KilimcininKorOglu/bpt/internal/loader"
	"github.com/KilimcininKorOglu/bpt/internal/storage/btree"
	"github.com/KilimcininKorOglu/bpt/internal/storage/engine"
)

// Color palette
var (
	primaryColor = lipgloss.AdaptiveColor{Light: "#5A4FCF", Dark: "#B4A7FF"}
	successColor = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#A6E3A1"}
	errorColor   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#F38BA8"}
	mutedColor   = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#6C7086"}
	valueColor   = lipgloss.AdaptiveColor{Light: "#00695C", Dark: "#94E2D5"}
)

// styles renders output for one writer. Colors are dropped automatically
// when the writer is not a terminal.
type styles struct {
	title  lipgloss.Style
	label  lipgloss.Style
	value  lipgloss.Style
	leaf   lipgloss.Style
	sep    lipgloss.Style
	prompt lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:  r.NewStyle().Foreground(primaryColor).Bold(true),
		label:  r.NewStyle().Foreground(primaryColor).Width(16),
		value:  r.NewStyle().Foreground(valueColor),
		leaf:   r.NewStyle().Foreground(successColor),
		sep:    r.NewStyle().Foreground(mutedColor),
		prompt: r.NewStyle().Foreground(primaryColor).Bold(true),
		ok:     r.NewStyle().Foreground(successColor),
		err:    r.NewStyle().Foreground(errorColor).Bold(true),
	}
}

func (st styles) printOK(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, st.ok.Render(fmt.Sprintf(format, args...)))
}

func (st styles) printErr(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, st.err.Render(fmt.Sprintf(format, args...)))
}

func joinKeys(keys []int64) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strconv.FormatInt(k, 10)
	}
	return strings.Join(parts, " ")
}

// renderNodes prints the keys of each node, nodes separated by "|".
func (st styles) renderNodes(nodes []btree.NodeView) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		keys := joinKeys(n.Keys)
		if n.Leaf {
			keys = st.leaf.Render(keys)
		}
		parts[i] = keys
	}
	return strings.Join(parts, " "+st.sep.Render("|")+" ")
}

func isEmpty(levels [][]btree.NodeView) bool {
	return len(levels) == 0 || (len(levels) == 1 && len(levels[0]) == 1 && len(levels[0][0].Keys) == 0)
}

// renderTree prints one line per level, root first.
func (st styles) renderTree(levels [][]btree.NodeView) string {
	if isEmpty(levels) {
		return "Empty tree.\n"
	}
	var b strings.Builder
	for _, level := range levels {
		b.WriteString(st.renderNodes(level))
		b.WriteByte('\n')
	}
	return b.String()
}

// renderLeaves prints the bottom row of the tree on one line.
func (st styles) renderLeaves(leaves []btree.NodeView) string {
	if len(leaves) == 0 || (len(leaves) == 1 && len(leaves[0].Keys) == 0) {
		return "Empty tree.\n"
	}
	return st.renderNodes(leaves) + "\n"
}

// renderPath prints the nodes visited by a descent. Internal nodes show the
// index of the child followed.
func (st styles) renderPath(path []btree.NodeView) string {
	var b strings.Builder
	for i, n := range path {
		if n.Leaf {
			fmt.Fprintf(&b, "Leaf [%s] ->\n", st.leaf.Render(joinKeys(n.Keys)))
			continue
		}
		next := -1
		if i+1 < len(path) {
			next = slices.Index(n.Children, path[i+1].ID)
		}
		fmt.Fprintf(&b, "[%s] %d ->\n", joinKeys(n.Keys), next)
	}
	return b.String()
}

func (st styles) row(b *strings.Builder, label string, value interface{}) {
	fmt.Fprintf(b, "%s%v\n", st.label.Render(label), value)
}

func (st styles) renderStats(s engine.Stats) string {
	t := s.Tree
	c := t.Storage.Cache

	var b strings.Builder
	b.WriteString(st.title.Render("Tree") + "\n")
	st.row(&b, "Height", t.Height)
	st.row(&b, "Keys", t.Keys)
	st.row(&b, "Leaf nodes", t.LeafNodes)
	st.row(&b, "Internal nodes", t.InternalNodes)
	st.row(&b, "Leaf order", t.LeafOrder)
	st.row(&b, "Internal order", t.InternalOrder)

	b.WriteString("\n" + st.title.Render("File") + "\n")
	st.row(&b, "Path", t.Storage.Path)
	st.row(&b, "Page size", t.Storage.PageSize)
	st.row(&b, "Total pages", t.Storage.TotalPages)
	st.row(&b, "Node pages", t.Storage.NodePages)
	st.row(&b, "Free pages", t.Storage.FreePages)
	st.row(&b, "File size", t.Storage.FileSize)

	b.WriteString("\n" + st.title.Render("Cache") + "\n")
	st.row(&b, "Capacity", c.Capacity)
	st.row(&b, "Resident", c.Size)
	st.row(&b, "Hits", c.Hits)
	st.row(&b, "Misses", c.Misses)
	return b.String()
}

func printLoadResult(w io.Writer, st styles, res loader.Result) {
	st.printOK(w, "Loaded %d records: %d inserted, %d duplicates skipped.",
		res.Records, res.Inserted, res.Duplicates)
}

func printBanner(w io.Writer, st styles) {
	fmt.Fprintln(w, st.title.Render("Disk-Based B+ Tree "+version))
	fmt.Fprintf(w, "B+ Tree of Internal Order %d and Leaf Order %d.\n",
		btree.DefaultInternalOrder, btree.DefaultLeafOrder)
	fmt.Fprint(w, `To start with input from a file of "i <key> <value>" lines,
start again and enter the input filename after the data filename:
% bpt <datafile> <inputfile>
`)
	printShellHelp(w)
}
