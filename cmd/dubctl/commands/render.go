package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/itchyny/gojq"
)

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	tableBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
)

// renderTable formats headers/rows as a box-drawn, lipgloss-styled table,
// used by the `phases` and `bless` commands for their default (non --jq)
// output.
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	var b strings.Builder
	rule := func(left, mid, right string) {
		b.WriteString(tableBorderStyle.Render(left))
		for i, w := range widths {
			b.WriteString(tableBorderStyle.Render(strings.Repeat("─", w+2)))
			if i < len(widths)-1 {
				b.WriteString(tableBorderStyle.Render(mid))
			}
		}
		b.WriteString(tableBorderStyle.Render(right) + "\n")
	}
	row := func(cells []string, style lipgloss.Style) {
		b.WriteString(tableBorderStyle.Render("│"))
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			padded := cell + strings.Repeat(" ", w-lipgloss.Width(cell))
			b.WriteString(" " + style.Render(padded) + " ")
			b.WriteString(tableBorderStyle.Render("│"))
		}
		b.WriteString("\n")
	}

	rule("┌", "┬", "┐")
	row(headers, tableHeaderStyle)
	rule("├", "┼", "┤")
	for _, r := range rows {
		row(r, lipgloss.NewStyle())
	}
	rule("└", "┴", "┘")
	return b.String()
}

// filterJQ parses expr and runs it against rows (typically the same data the
// table would have shown, as a JSON array), printing one JSON-encoded result
// per emitted value. Backs the `--jq` flag on `phases` and `bless`.
func filterJQ(expr string, rows []map[string]any) error {
	query, err := gojq.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}

	input := make([]any, len(rows))
	for i, r := range rows {
		input[i] = r
	}

	iter := query.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if e, ok := v.(error); ok {
			return fmt.Errorf("jq: %w", e)
		}
		out, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	}
	return nil
}
