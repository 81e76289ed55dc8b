package termui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/sir_venger/chunkload/pkg/uploadproto"
)

var headerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#ffffff")).
	Bold(true).
	Padding(0, 1)

var (
	cellStyle  = lipgloss.NewStyle().Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7571f9"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#feca57"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff6b6b")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func newTable(accent string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(accent))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// PreviewTable рисует превью CSV: типы колонок, первые maxRows строк и замечания.
func PreviewTable(p uploadproto.Preview, maxRows int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Preview: %d rows × %d columns",
		p.Stats.PreviewRows, p.Stats.PreviewColumns)))
	b.WriteByte('\n')

	if len(p.Columns) > 0 {
		headers := make([]string, len(p.Columns))
		for i, c := range p.Columns {
			headers[i] = fmt.Sprintf("%s (%s)", c, p.Types[c])
		}

		t := newTable("#00d2d3").Headers(headers...)
		for i, row := range p.Rows {
			if maxRows > 0 && i >= maxRows {
				break
			}
			cells := make([]string, len(p.Columns))
			for j, c := range p.Columns {
				cells[j] = row[c]
			}
			t.Row(cells...)
		}
		b.WriteString(t.Render())
		b.WriteByte('\n')
		if maxRows > 0 && len(p.Rows) > maxRows {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("… %d more rows in preview", len(p.Rows)-maxRows)))
			b.WriteByte('\n')
		}
	}

	for _, is := range p.Issues {
		style := warnStyle
		if is.Severity == uploadproto.SeverityError {
			style = errorStyle
		}
		b.WriteString(style.Render(fmt.Sprintf("[%s] %s", is.Severity, is.Message)))
		b.WriteByte('\n')
	}

	return b.String()
}

// SessionsTable рисует листинг сессий; lastID помечается звёздочкой.
func SessionsTable(sessions []uploadproto.SessionInfo, lastID string) string {
	if len(sessions) == 0 {
		return mutedStyle.Render("no upload sessions") + "\n"
	}

	t := newTable("#7571f9").Headers("", "SESSION", "UPDATED", "CHUNKS", "ASSEMBLED")
	for _, s := range sessions {
		mark := ""
		if s.SessionID == lastID {
			mark = "*"
		}
		assembled := "no"
		if s.HasArtifact {
			assembled = "yes"
		}
		t.Row(mark, s.SessionID, s.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
			fmt.Sprint(s.ChunkCount), assembled)
	}
	return t.Render() + "\n"
}
