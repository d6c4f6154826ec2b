package report

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Default poll cadence. Report generation routinely takes minutes; a
// coarse interval avoids hammering the API, and 20 polls bounds the wait
// at roughly ten minutes.
const (
	DefaultPollInterval = 30 * time.Second
	DefaultMaxPolls     = 20
)

// Client is the slice of the HTTP adapter the runner needs.
type Client interface {
	PostJSON(ctx context.Context, path string, query url.Values, body, out any) (int, error)
	GetJSON(ctx context.Context, path string, out any) (int, error)
	GetURLJSON(ctx context.Context, rawURL string, out any) (int, error)
}

// Options configure the poll loop. Zero values take the defaults.
type Options struct {
	PollInterval time.Duration
	MaxPolls     int
}

// Runner converts one "start report X" request into a completed,
// retrievable file behind a single blocking call with a bounded wait.
// A Runner holds no state across runs; concurrent Run calls with
// distinct jobs are safe but not coordinated.
type Runner struct {
	client   Client
	interval time.Duration
	maxPolls int
	logger   *slog.Logger

	// sleep is the inter-poll wait, overridable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner builds a Runner over the given client.
func NewRunner(client Client, opts Options) *Runner {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = DefaultMaxPolls
	}
	return &Runner{
		client:   client,
		interval: opts.PollInterval,
		maxPolls: opts.MaxPolls,
		logger:   slog.Default(),
		sleep:    ctxSleep,
	}
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type submitResponse struct {
	JobID string `json:"jobId"`
}

type pollResponse struct {
	JobResult struct {
		JobID         string `json:"jobId"`
		ReportName    string `json:"reportName"`
		FileName      string `json:"fileName"`
		State         string `json:"state"`
		ResultFileURL string `json:"resultFileURL"`
	} `json:"jobResult"`
}

type fileResponse struct {
	Files struct {
		File     string `json:"file"`
		FileName string `json:"fileName"`
	} `json:"files"`
}

// Run submits the report job, polls until Finished or the poll budget is
// exhausted, and fetches and decodes the result file. Every failure is a
// terminal *JobError; the runner never retries.
func (r *Runner) Run(ctx context.Context, req Request) (*FilePayload, error) {
	if req.TemplateID == "" {
		return nil, fmt.Errorf("report template id is required")
	}

	handle, err := r.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	r.logger.Info("report job submitted", "template", req.TemplateID, "job", handle.JobID)

	resultURL, err := r.pollUntilFinished(ctx, handle.JobID)
	if err != nil {
		return nil, err
	}

	return r.FetchFile(ctx, resultURL)
}

// Submit starts the job. Only HTTP 202 is a successful ack; anything else
// means the request was rejected, not merely delayed, so there is no
// retry.
func (r *Runner) Submit(ctx context.Context, req Request) (*Handle, error) {
	body := map[string]string{"additionalParam": req.AdditionalParam}

	var out submitResponse
	status, err := r.client.PostJSON(ctx, "/report-jobs/"+req.TemplateID, fixedQuery(), body, &out)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &JobError{Kind: KindSubmissionFailed, Status: status, Detail: err.Error()}
	}
	if status != http.StatusAccepted {
		return nil, &JobError{Kind: KindSubmissionFailed, Status: status}
	}
	if out.JobID == "" {
		return nil, &JobError{Kind: KindSubmissionFailed, Status: status, Detail: "response missing jobId"}
	}
	return &Handle{JobID: out.JobID}, nil
}

func (r *Runner) pollUntilFinished(ctx context.Context, jobID string) (string, error) {
	for polls := 0; polls < r.maxPolls; polls++ {
		if polls > 0 {
			if err := r.sleep(ctx, r.interval); err != nil {
				return "", err
			}
		}

		st, status, err := r.poll(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", &JobError{Kind: KindPollFailed, Detail: err.Error()}
		}
		if status != http.StatusOK {
			// Fail fast on transport-level errors; bounded local retry
			// is left to the caller.
			return "", &JobError{Kind: KindPollFailed, Status: status}
		}

		r.logger.Debug("report job polled", "job", jobID, "state", st.State, "poll", polls)
		if st.State == StateFinished {
			if st.ResultFileURL == "" {
				return "", &JobError{Kind: KindMissingResultURL}
			}
			return st.ResultFileURL, nil
		}
		// Any non-Finished state, including ones this client has never
		// heard of, just means keep waiting.
	}
	return "", &JobError{Kind: KindTimeout, Detail: fmt.Sprintf("after %d polls", r.maxPolls)}
}

// poll fetches one status snapshot. A 200 body that fails to decode or
// carries no state is reported as StateUnknown.
func (r *Runner) poll(ctx context.Context, jobID string) (Status, int, error) {
	var out pollResponse
	status, err := r.client.GetJSON(ctx, "/report-jobs/"+jobID, &out)
	if err != nil && status == 0 {
		return Status{}, 0, err
	}
	jr := out.JobResult
	return Status{
		JobID:         jr.JobID,
		ReportName:    jr.ReportName,
		FileName:      jr.FileName,
		State:         ParseState(jr.State),
		ResultFileURL: jr.ResultFileURL,
	}, status, nil
}

// CheckStatus is the one-shot status view used by `report status`.
// Unlike the poll loop it surfaces any non-200 as PollFailed immediately.
func (r *Runner) CheckStatus(ctx context.Context, jobID string) (*Status, error) {
	st, status, err := r.poll(ctx, jobID)
	if err != nil {
		return nil, &JobError{Kind: KindPollFailed, Detail: err.Error()}
	}
	if status != http.StatusOK {
		return nil, &JobError{Kind: KindPollFailed, Status: status}
	}
	return &st, nil
}

// FetchFile downloads and decodes a result file by its absolute URL.
// Fetch and decode happen exactly once; a malformed payload is terminal.
func (r *Runner) FetchFile(ctx context.Context, resultURL string) (*FilePayload, error) {
	var out fileResponse
	status, err := r.client.GetURLJSON(ctx, resultURL, &out)
	if err != nil && status == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &JobError{Kind: KindFileFetchFailed, Detail: err.Error()}
	}
	if status != http.StatusOK {
		return nil, &JobError{Kind: KindFileFetchFailed, Status: status}
	}
	if err != nil {
		return nil, &JobError{Kind: KindMalformedFilePayload, Detail: err.Error()}
	}
	if out.Files.File == "" || out.Files.FileName == "" {
		return nil, &JobError{Kind: KindMalformedFilePayload, Detail: "missing files.file or files.fileName"}
	}

	content, err := base64.StdEncoding.DecodeString(out.Files.File)
	if err != nil {
		return nil, &JobError{Kind: KindMalformedFilePayload, Detail: fmt.Sprintf("invalid base64: %v", err)}
	}
	return &FilePayload{FileName: out.Files.FileName, Content: content}, nil
}
