// Package export renders tabular API responses into CSV bytes.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
)

// Dataset is tabular content ready for CSV rendering.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// RenderCSV produces CSV bytes for the dataset, one column per header.
// Cells missing from a row are written empty.
func RenderCSV(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)

	if err := w.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, h := range data.Headers {
			record[i] = row[h]
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("writing csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}

// FromRecords builds a Dataset from loosely typed API records. The header
// set is the sorted union of keys across all records; values are rendered
// with %v so numeric and boolean fields survive as strings.
func FromRecords(records []map[string]any) Dataset {
	seen := make(map[string]bool)
	var headers []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				headers = append(headers, k)
			}
		}
	}
	sort.Strings(headers)

	rows := make([]map[string]string, len(records))
	for i, rec := range records {
		row := make(map[string]string, len(rec))
		for k, v := range rec {
			if v == nil {
				row[k] = ""
				continue
			}
			row[k] = fmt.Sprintf("%v", v)
		}
		rows[i] = row
	}
	return Dataset{Headers: headers, Rows: rows}
}
