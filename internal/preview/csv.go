// Package preview строит лёгкое превью CSV по первым строкам собранного файла.
package preview

import (
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"

	"github.com/sir_venger/chunkload/pkg/uploadproto"
)

const (
	typeSampleSize   = 50
	maxExampleValues = 3
	maxDuplicateList = 5
)

var (
	numberRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	boolRe   = regexp.MustCompile(`(?i)^(true|false)$`)
)

// Parse разбирает текст CSV и возвращает превью не более чем из maxRows строк данных.
func Parse(text string, maxRows int) uploadproto.Preview {
	var issues []uploadproto.Issue

	lines := splitLines(text)
	header := ""
	if len(lines) > 0 {
		header = lines[0]
	}

	rawColumns := splitLine(header)
	columns := make([]string, len(rawColumns))
	for i, c := range rawColumns {
		c = strings.TrimSpace(c)
		if c == "" {
			c = fmt.Sprintf("Column %d", i+1)
		}
		columns[i] = c
	}
	if header == "" {
		columns = nil
	}

	if dups := duplicates(columns); len(dups) > 0 {
		shown := dups
		suffix := ""
		if len(shown) > maxDuplicateList {
			shown = shown[:maxDuplicateList]
			suffix = "…"
		}
		issues = append(issues, uploadproto.Issue{
			Severity: uploadproto.SeverityWarning,
			Message:  fmt.Sprintf("Duplicate column names detected: %s%s", strings.Join(shown, ", "), suffix),
		})
	}

	rows := make([]map[string]string, 0, min(maxRows, max(len(lines)-1, 0)))
	badRows := 0
	for i := 1; i < len(lines) && i <= maxRows; i++ {
		vals := splitLine(lines[i])
		if len(vals) != len(columns) {
			badRows++
		}
		row := make(map[string]string, len(columns))
		for c, col := range columns {
			if c < len(vals) {
				row[col] = vals[c]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	if badRows > 0 {
		issues = append(issues, uploadproto.Issue{
			Severity: uploadproto.SeverityWarning,
			Message: fmt.Sprintf("Some rows in the preview have a different number of values than the header (%d of %d). "+
				"This can indicate extra commas, missing values, or quoting issues.", badRows, len(rows)),
		})
	}

	types := make(map[string]string, len(columns))
	stats := make(map[string]uploadproto.ColumnStat, len(columns))
	for _, col := range columns {
		var nonEmpty []string
		empty := 0
		for _, r := range rows {
			v := strings.TrimSpace(r[col])
			if v == "" {
				empty++
				continue
			}
			nonEmpty = append(nonEmpty, v)
		}

		sample := nonEmpty
		if len(sample) > typeSampleSize {
			sample = sample[:typeSampleSize]
		}
		types[col] = inferType(sample)

		examples := make([]string, 0, maxExampleValues)
		for _, v := range nonEmpty {
			if !contains(examples, v) {
				examples = append(examples, v)
			}
			if len(examples) >= maxExampleValues {
				break
			}
		}
		stats[col] = uploadproto.ColumnStat{EmptyCount: empty, ExampleValues: examples}
	}

	if len(columns) == 0 {
		issues = append(issues, uploadproto.Issue{
			Severity: uploadproto.SeverityError,
			Message:  "No columns found in the header row.",
		})
	}

	if issues == nil {
		issues = []uploadproto.Issue{}
	}

	return uploadproto.Preview{
		Columns:     columns,
		Types:       types,
		Rows:        rows,
		Issues:      issues,
		Stats:       uploadproto.Stats{PreviewRows: len(rows), PreviewColumns: len(columns)},
		ColumnStats: stats,
	}
}

// splitLines режет текст по \n или \r\n и отбрасывает пустые строки.
func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSuffix(l, "\r")
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// splitLine разбирает одну физическую строку. Строка может быть обрезана
// посередине поля или содержать иное число полей, чем заголовок: LazyQuotes и
// FieldsPerRecord = -1 принимают и то и другое.
func splitLine(line string) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rec, err := r.Read()
	if err != nil {
		return []string{line}
	}
	return rec
}

func inferType(sample []string) string {
	if len(sample) == 0 {
		return "unknown"
	}
	if all(sample, numberRe.MatchString) {
		return "number"
	}
	if all(sample, boolRe.MatchString) {
		return "boolean"
	}
	return "string"
}

func all(values []string, pred func(string) bool) bool {
	for _, v := range values {
		if !pred(v) {
			return false
		}
	}
	return true
}

func duplicates(columns []string) []string {
	seen := make(map[string]int, len(columns))
	var out []string
	for _, c := range columns {
		seen[c]++
		if seen[c] == 2 {
			out = append(out, c)
		}
	}
	return out
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
