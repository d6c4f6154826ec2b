// Package contacts fetches completed-contact records with offset-based
// pagination.
package contacts

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/cxops/internal/cxone"
	"github.com/kalambet/cxops/internal/export"
)

// DefaultTop matches the API's maximum page size.
const DefaultTop = 10000

// DefaultPagePause is the wait between page fetches; the API rate-limits
// aggressive pagination.
const DefaultPagePause = time.Second

// Params select the contact window and pagination behaviour.
type Params struct {
	Start time.Time
	End   time.Time
	// Top is the page size (1000-10000 per the API).
	Top int
	// FetchAll keeps paging until an empty page; otherwise only the
	// first page is returned.
	FetchAll bool
}

// Fetcher runs the page loop against the tenant API.
type Fetcher struct {
	client *cxone.Client
	pause  time.Duration
	logger *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher builds a Fetcher; pause <= 0 takes the default.
func NewFetcher(client *cxone.Client, pause time.Duration) *Fetcher {
	if pause <= 0 {
		pause = DefaultPagePause
	}
	return &Fetcher{
		client: client,
		pause:  pause,
		logger: slog.Default(),
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
}

// dateParam renders the API's "MM/DD/YYYY HH:MM" timestamp with the
// space percent-encoded the way the API expects.
func dateParam(t time.Time) string {
	return strings.Replace(t.Format("01/02/2006 15:04"), " ", "%20", 1)
}

// Fetch returns completed contacts in the window, paging with top/skip
// until an empty page when FetchAll is set.
func (f *Fetcher) Fetch(ctx context.Context, p Params) ([]map[string]any, error) {
	if p.Top <= 0 {
		p.Top = DefaultTop
	}

	var all []map[string]any
	skip := 0
	for {
		path := fmt.Sprintf("/contacts/completed?startDate=%s&endDate=%s&top=%d&skip=%d",
			dateParam(p.Start), dateParam(p.End), p.Top, skip)

		var out struct {
			CompletedContacts []map[string]any `json:"completedContacts"`
		}
		status, err := f.client.GetJSON(ctx, path, &out)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("fetching completed contacts: status %d", status)
		}

		f.logger.Debug("contacts page fetched", "skip", skip, "records", len(out.CompletedContacts))
		if len(out.CompletedContacts) == 0 {
			break
		}
		all = append(all, out.CompletedContacts...)
		if !p.FetchAll {
			break
		}

		skip += p.Top
		if err := f.sleep(ctx, f.pause); err != nil {
			return nil, err
		}
	}
	return all, nil
}

// CSV renders the records with a union header set.
func CSV(records []map[string]any) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no completed contacts in the window")
	}
	return export.RenderCSV(export.FromRecords(records))
}
