// Package schedule runs the automated daily completed-contacts exports.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/kalambet/cxops/internal/contacts"
)

// Window is one daily export: the report covers midnight to EndHour and
// fires at At, shortly after the window closes.
type Window struct {
	At       string
	EndHour  int
	FileName string
}

// DefaultWindows mirror the operations team's standing reports.
var DefaultWindows = []Window{
	{At: "02:15", EndHour: 2, FileName: "completed_contacts_12AM-2AM.csv"},
	{At: "08:15", EndHour: 8, FileName: "completed_contacts_12AM-8AM.csv"},
}

// Scheduler owns the gocron loop and the export directory.
type Scheduler struct {
	fetcher *contacts.Fetcher
	outDir  string
	windows []Window
	logger  *slog.Logger

	now func() time.Time
}

// New builds a Scheduler exporting into outDir using the default
// windows.
func New(fetcher *contacts.Fetcher, outDir string) *Scheduler {
	return &Scheduler{
		fetcher: fetcher,
		outDir:  outDir,
		windows: DefaultWindows,
		logger:  slog.Default(),
		now:     time.Now,
	}
}

// RunWindow fetches today's contacts from midnight to the window's end
// hour and writes the CSV. Also used by the manual "run now" commands.
func (s *Scheduler) RunWindow(ctx context.Context, w Window) error {
	now := s.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.Add(time.Duration(w.EndHour) * time.Hour)

	records, err := s.fetcher.Fetch(ctx, contacts.Params{Start: start, End: end, FetchAll: true})
	if err != nil {
		return fmt.Errorf("fetching window ending %02d:00: %w", w.EndHour, err)
	}
	if len(records) == 0 {
		s.logger.Info("no contacts in window", "file", w.FileName)
		return nil
	}

	data, err := contacts.CSV(records)
	if err != nil {
		return err
	}

	path := filepath.Join(s.outDir, w.FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	s.logger.Info("scheduled report written", "file", path, "records", len(records))
	return nil
}

// Start registers the daily jobs and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	sch := gocron.NewScheduler(time.Local)

	for _, w := range s.windows {
		w := w
		if _, err := sch.Every(1).Day().At(w.At).Do(func() {
			if err := s.RunWindow(ctx, w); err != nil {
				s.logger.Error("scheduled report failed", "file", w.FileName, "error", err)
			}
		}); err != nil {
			return fmt.Errorf("scheduling %s at %s: %w", w.FileName, w.At, err)
		}
		s.logger.Info("report scheduled", "file", w.FileName, "at", w.At)
	}

	sch.StartAsync()
	<-ctx.Done()
	sch.Stop()
	return ctx.Err()
}
