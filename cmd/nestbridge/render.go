package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"
	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"github.com/germanamz/nestbridge/pkg/handles"
	"github.com/germanamz/nestbridge/pkg/sli"
	"github.com/germanamz/nestbridge/pkg/status"
)

const (
	formatTable = "table"
	formatYAML  = "yaml"

	maxCellWidth = 32
	handleColumn = "handle"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	handleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// handleLabel renders the handle at index i the way ParseList accepts it.
func handleLabel(h handles.Sequence, i int) string {
	switch seq := h.(type) {
	case handles.Nodes:
		return strconv.FormatInt(seq[i], 10)
	case handles.Connections:
		c := seq[i]
		return fmt.Sprintf("%d-%d:%d:%d:%d", c.Source, c.Target, c.TargetThread, c.SynapseModelID, c.Port)
	default:
		return strconv.Itoa(i)
	}
}

// statusRows flattens a reply into one ordered row of named columns per
// handle. The column set depends on the key selection.
func statusRows(reply status.Reply) ([]string, []map[string]any) {
	var columns []string
	rows := make([]map[string]any, len(reply.Values))

	switch k := reply.Keys.(type) {
	case status.OneKey:
		columns = []string{k.Name}
		for i, v := range reply.Values {
			rows[i] = map[string]any{k.Name: v}
		}
	case status.KeyList:
		columns = slices.Clone(k)
		for i, v := range reply.Values {
			tuple, _ := v.(sli.Array)
			row := make(map[string]any, len(k))
			for j, name := range k {
				if j < len(tuple) {
					row[name] = tuple[j]
				}
			}
			rows[i] = row
		}
	default:
		seen := map[string]bool{}
		for i, v := range reply.Values {
			d, _ := v.(sli.Dict)
			rows[i] = d
			for name := range d {
				seen[name] = true
			}
		}
		columns = slices.Sorted(maps.Keys(seen))
	}
	return columns, rows
}

// formatCell renders a status value for display. Strings and literals are
// shown bare, everything else in interpreter syntax.
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case sli.Literal:
		return string(x)
	}
	s, err := sli.Encode(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

func truncateCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) <= maxCellWidth {
		return s
	}
	return runewidth.Truncate(s, maxCellWidth, "…")
}

func renderTable(reply status.Reply) string {
	columns, rows := statusRows(reply)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(append([]string{handleColumn}, columns...)...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return handleStyle
			default:
				return cellStyle
			}
		})

	for i, row := range rows {
		cells := make([]string, 0, len(columns)+1)
		cells = append(cells, handleLabel(reply.Handles, i))
		for _, name := range columns {
			cells = append(cells, truncateCell(formatCell(row[name])))
		}
		t.Row(cells...)
	}
	return t.String()
}

// yamlValue converts interpreter values into plain values yaml renders
// naturally.
func yamlValue(v any) any {
	switch x := v.(type) {
	case sli.Literal:
		return "/" + string(x)
	case sli.Array:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = yamlValue(e)
		}
		return out
	case sli.Dict:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = yamlValue(e)
		}
		return out
	default:
		return v
	}
}

// statusDocument builds the yaml document for a reply: a mapping from
// handle label to its status.
func statusDocument(reply status.Reply) *yaml.Node {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for i, v := range reply.Values {
		var value yaml.Node
		if err := value.Encode(yamlValue(v)); err != nil {
			value = yaml.Node{Kind: yaml.ScalarNode, Value: formatCell(v)}
		}
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: handleLabel(reply.Handles, i), Style: yaml.DoubleQuotedStyle},
			&value,
		)
	}
	return doc
}

func renderYAML(reply status.Reply) (string, error) {
	if reply.Len() == 0 {
		return "{}\n", nil
	}
	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(statusDocument(reply)); err != nil {
		return "", fmt.Errorf("render yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("render yaml: %w", err)
	}
	return b.String(), nil
}

func writeReply(w io.Writer, reply status.Reply, format string) error {
	switch format {
	case formatYAML:
		out, err := renderYAML(reply)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	case formatTable, "":
		_, err := fmt.Fprintln(w, renderTable(reply))
		return err
	default:
		return fmt.Errorf("unknown format %q (want %s or %s)", format, formatTable, formatYAML)
	}
}

// statusDiff returns a unified diff between two yaml renderings of the same
// handles' status. An empty string means nothing changed.
func statusDiff(before, after status.Reply) (string, error) {
	a, err := renderYAML(before)
	if err != nil {
		return "", err
	}
	b, err := renderYAML(after)
	if err != nil {
		return "", err
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "before",
		ToFile:   "after",
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}
