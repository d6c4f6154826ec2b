// Package report drives the asynchronous report-job workflow: submit a
// job, poll its status until completion or timeout, then fetch and decode
// the result file.
package report

import (
	"fmt"
	"net/url"
)

// State is the job state reported by the API. Polls never assume
// monotonic progress; every snapshot is taken at face value.
type State int

const (
	StateUnknown State = iota
	StateQueued
	StateRunning
	StateFinished
	StateFailed
)

// ParseState maps the wire state string onto the known set. Anything
// unrecognized is StateUnknown, which the poll loop treats as "not
// finished yet" so new intermediate states don't break the client.
func ParseState(s string) State {
	switch s {
	case "Queued":
		return StateQueued
	case "Running":
		return StateRunning
	case "Finished":
		return StateFinished
	case "Failed":
		return StateFailed
	}
	return StateUnknown
}

func (s State) String() string {
	switch s {
	case StateQueued:
		return "Queued"
	case StateRunning:
		return "Running"
	case StateFinished:
		return "Finished"
	case StateFailed:
		return "Failed"
	}
	return "Unknown"
}

// Request describes one report-job submission. File flags are fixed by
// the console: CSV output with headers, dated file name, overwrite.
type Request struct {
	TemplateID      string
	AdditionalParam string
}

// fixedQuery returns the submission query flags.
func fixedQuery() url.Values {
	q := url.Values{}
	q.Set("fileType", "CSV")
	q.Set("includeHeaders", "true")
	q.Set("appendDate", "true")
	q.Set("overwrite", "true")
	return q
}

// Handle identifies a submitted job. Opaque; uniqueness and lifetime are
// owned by the API.
type Handle struct {
	JobID string
}

// Status is one poll snapshot of a job.
type Status struct {
	JobID         string
	ReportName    string
	FileName      string
	State         State
	ResultFileURL string
}

// FilePayload is the decoded result file.
type FilePayload struct {
	FileName string
	Content  []byte
}

// ErrKind classifies terminal job failures. None of these are retried by
// the runner; a retry is a fresh invocation by the caller.
type ErrKind int

const (
	KindSubmissionFailed ErrKind = iota
	KindPollFailed
	KindTimeout
	KindMissingResultURL
	KindFileFetchFailed
	KindMalformedFilePayload
)

func (k ErrKind) String() string {
	switch k {
	case KindSubmissionFailed:
		return "submission failed"
	case KindPollFailed:
		return "poll failed"
	case KindTimeout:
		return "timed out waiting for completion"
	case KindMissingResultURL:
		return "finished without a result file URL"
	case KindFileFetchFailed:
		return "result file fetch failed"
	case KindMalformedFilePayload:
		return "malformed result file payload"
	}
	return "unknown failure"
}

// JobError is a terminal orchestration failure. Status carries the HTTP
// status of the triggering call when one was received.
type JobError struct {
	Kind   ErrKind
	Status int
	Detail string
}

func (e *JobError) Error() string {
	msg := "report job: " + e.Kind.String()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}
