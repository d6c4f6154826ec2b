// Package lists covers call-list export and bulk deletion of
// deactivated lists.
package lists

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kalambet/cxops/internal/cxone"
	"github.com/kalambet/cxops/internal/export"
)

// Fetch returns all calling lists for the tenant as loosely typed
// records; the API's column set varies by tenant so rows are kept raw
// for the full CSV export.
func Fetch(ctx context.Context, c *cxone.Client) ([]map[string]any, error) {
	var out struct {
		CallingLists []map[string]any `json:"callingLists"`
	}
	status, err := c.GetJSON(ctx, "/lists/call-lists", &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetching call lists: status %d", status)
	}
	return out.CallingLists, nil
}

// FullCSV renders every list with the union of all columns.
func FullCSV(records []map[string]any) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no call lists to export")
	}
	return export.RenderCSV(export.FromRecords(records))
}

// DeactivatedCSV renders a listId-only CSV of lists whose status is
// Deactivated, the input format the bulk deleter consumes.
func DeactivatedCSV(records []map[string]any) ([]byte, int, error) {
	var rows []map[string]string
	for _, rec := range records {
		if rec["status"] != "Deactivated" {
			continue
		}
		rows = append(rows, map[string]string{"listId": fmt.Sprintf("%v", rec["listId"])})
	}
	if len(rows) == 0 {
		return nil, 0, nil
	}
	data, err := export.RenderCSV(export.Dataset{Headers: []string{"listId"}, Rows: rows})
	if err != nil {
		return nil, 0, err
	}
	return data, len(rows), nil
}

// ExportFileName builds the dated export file name, e.g.
// full_call_lists_2026-08-31.csv.
func ExportFileName(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%s.csv", prefix, now.Format("2006-01-02"))
}

// ReadIDs extracts the listId column from a CSV of lists to delete.
func ReadIDs(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	col := -1
	for i, h := range header {
		if h == "listId" {
			col = i
			break
		}
	}
	if col == -1 {
		return nil, fmt.Errorf("csv has no listId column")
	}

	var ids []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv row: %w", err)
		}
		if col < len(rec) && rec[col] != "" {
			ids = append(ids, rec[col])
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("csv contains no list ids")
	}
	return ids, nil
}
