package uploadproto

// Severity уровня проблемы, найденной в превью.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Preview — структурированное превью первых строк собранного CSV.
type Preview struct {
	Columns     []string              `json:"columns"`
	Types       map[string]string     `json:"types"`
	Rows        []map[string]string   `json:"rows"`
	Issues      []Issue               `json:"issues"`
	Stats       Stats                 `json:"stats"`
	ColumnStats map[string]ColumnStat `json:"columnStats"`
}

type Issue struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type Stats struct {
	PreviewRows    int `json:"previewRows"`
	PreviewColumns int `json:"previewColumns"`
}

type ColumnStat struct {
	EmptyCount    int      `json:"emptyCount"`
	ExampleValues []string `json:"exampleValues"`
}
