package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset is one renderable score report: ordered columns, one row per
// subject and an optional summary row appended last.
type Dataset struct {
	Title   string
	Columns []string
	Rows    []map[string]string
	Summary map[string]string
}

// CSVExporter renders a dataset as CSV.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV bytes. Column order is taken from Columns; cells
// missing from a row are left empty.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Columns) == 0 {
		return nil, fmt.Errorf("csv report requires at least one column")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range data.Rows {
		if err := writer.Write(recordFor(data.Columns, row)); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	if len(data.Summary) > 0 {
		if err := writer.Write(recordFor(data.Columns, data.Summary)); err != nil {
			return nil, fmt.Errorf("write csv summary: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func recordFor(columns []string, row map[string]string) []string {
	record := make([]string, len(columns))
	for i, column := range columns {
		record[i] = row[column]
	}
	return record
}
