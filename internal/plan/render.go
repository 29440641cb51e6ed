package plan

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1).Align(lipgloss.Center)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// cellOverhead is the padding plus border each column costs on a line.
const cellOverhead = 3

// minFit is the width below which columns are no longer shrunk.
const minFit = 4

// Render writes the table, truncating cells so each line fits lineLimit
// columns. A lineLimit of zero or less disables truncation.
func (t *Table) Render(w io.Writer, lineLimit int) error {
	headers, rows := fit(t.Headers(), t.Cells(), lineLimit)

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	_, err := fmt.Fprintln(w, tbl.String())
	return err
}

// fit shrinks the widest column one cell at a time until the line fits or
// every column is down to minFit, then truncates overlong cells with "...".
func fit(headers []string, rows [][]string, lineLimit int) ([]string, [][]string) {
	if lineLimit <= 0 || len(headers) == 0 {
		return headers, rows
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, r := range rows {
		for i, c := range r {
			if i < len(widths) {
				widths[i] = max(widths[i], runewidth.StringWidth(c))
			}
		}
	}

	for {
		total, widest := 0, 0
		for i, w := range widths {
			total += w + cellOverhead
			if w > widths[widest] {
				widest = i
			}
		}
		if total <= lineLimit || widths[widest] <= minFit {
			break
		}
		widths[widest]--
	}

	trunc := func(s string, w int) string {
		if runewidth.StringWidth(s) <= w {
			return s
		}
		return runewidth.Truncate(s, w, "...")
	}

	outHeaders := make([]string, len(headers))
	for i, h := range headers {
		outHeaders[i] = trunc(h, widths[i])
	}
	outRows := make([][]string, len(rows))
	for r, row := range rows {
		outRows[r] = make([]string, len(row))
		for i, c := range row {
			if i < len(widths) {
				c = trunc(c, widths[i])
			}
			outRows[r][i] = c
		}
	}
	return outHeaders, outRows
}
