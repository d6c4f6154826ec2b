package lists

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/kalambet/cxops/internal/cxone"
)

// ItemResult records the outcome of one deletion attempt.
type ItemResult struct {
	ListID string
	Status int
	Note   string
}

// Summary tallies a bulk-delete run. Aborted is set when the loop
// stopped early on an expired token.
type Summary struct {
	Deleted int
	Failed  int
	Skipped int
	Aborted bool
	Results []ItemResult
}

// ResumeLog is a flat file of processed list ids, one per line, so an
// interrupted run can be resumed without re-deleting.
type ResumeLog struct {
	path string
}

// NewResumeLog points at the log file; the file need not exist yet.
func NewResumeLog(path string) *ResumeLog {
	return &ResumeLog{path: path}
}

// Load returns the set of already-processed ids. A missing file is an
// empty set.
func (l *ResumeLog) Load() (map[string]bool, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, fmt.Errorf("opening resume log: %w", err)
	}
	defer f.Close()

	processed := map[string]bool{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		id := strings.TrimSpace(sc.Text())
		if id != "" {
			processed[id] = true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading resume log: %w", err)
	}
	return processed, nil
}

// Append records one processed id.
func (l *ResumeLog) Append(id string) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening resume log: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, id); err != nil {
		return fmt.Errorf("appending to resume log: %w", err)
	}
	return nil
}

// Remove deletes the log file once every input id is accounted for.
func (l *ResumeLog) Remove() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Deleter runs the linear delete loop over a set of list ids with a
// per-item outcome tally and resumable progress.
type Deleter struct {
	client *cxone.Client
	log    *ResumeLog
	logger *slog.Logger

	// Progress, when set, is called after each processed id.
	Progress func(done, total int, listID string)
}

// NewDeleter builds a Deleter writing progress to the given resume log.
func NewDeleter(client *cxone.Client, log *ResumeLog) *Deleter {
	return &Deleter{client: client, log: log, logger: slog.Default()}
}

func deleteQuery() url.Values {
	q := url.Values{}
	q.Set("forceInactive", "true")
	q.Set("forceDelete", "true")
	return q
}

// Run deletes each id in order, skipping ids already in the resume log.
// A 401 aborts the whole run (the token is gone, nothing further can
// succeed); every other status is tallied per item and the loop
// continues. The resume log is removed when every input id has been
// accounted for.
func (d *Deleter) Run(ctx context.Context, ids []string) (*Summary, error) {
	processed, err := d.log.Load()
	if err != nil {
		return nil, err
	}

	sum := &Summary{}
	total := len(ids)

	for i, id := range ids {
		if processed[id] {
			sum.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		status, err := d.client.Delete(ctx, "/lists/call-lists/"+id, deleteQuery())
		if err != nil {
			return sum, fmt.Errorf("deleting list %s: %w", id, err)
		}

		res := ItemResult{ListID: id, Status: status}
		switch status {
		case http.StatusOK:
			sum.Deleted++
			res.Note = "deleted"
		case http.StatusBadRequest:
			sum.Failed++
			res.Note = "invalid parameter"
		case http.StatusUnauthorized:
			// Token invalid or expired; the id is not logged so the run
			// can be resumed after re-authentication.
			sum.Aborted = true
			res.Note = "invalid or expired token"
			sum.Results = append(sum.Results, res)
			d.logger.Warn("bulk delete aborted", "list", id, "status", status)
			return sum, nil
		case http.StatusForbidden:
			sum.Failed++
			res.Note = "forbidden, check security profile permissions"
		case http.StatusNotFound:
			sum.Failed++
			res.Note = "invalid list id"
		case http.StatusConflict:
			sum.Failed++
			res.Note = "list cannot be modified"
		default:
			sum.Failed++
			res.Note = fmt.Sprintf("unexpected status %d", status)
		}
		sum.Results = append(sum.Results, res)

		if err := d.log.Append(id); err != nil {
			return sum, err
		}
		d.logger.Debug("list processed", "list", id, "status", status)
		if d.Progress != nil {
			d.Progress(i+1, total, id)
		}
	}

	if sum.Deleted+sum.Failed+sum.Skipped == total {
		if err := d.log.Remove(); err != nil {
			return sum, fmt.Errorf("removing resume log: %w", err)
		}
	}
	return sum, nil
}
