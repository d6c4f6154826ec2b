// Package api exposes the operator console over HTTP and MCP so that
// dashboards and agent tooling can drive the same operations as the
// CLI.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/cxops/internal/contacts"
	"github.com/kalambet/cxops/internal/cxone"
	"github.com/kalambet/cxops/internal/dashboard"
	"github.com/kalambet/cxops/internal/lists"
	"github.com/kalambet/cxops/internal/report"
)

const maxRequestBodySize = 1 << 20 // 1MB

type AppDeps struct {
	Client    *cxone.Client
	Runner    *report.Runner
	Fetcher   *contacts.Fetcher
	Dashboard *dashboard.Aggregator
	Token     string
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/report-jobs", handleSubmitReport(deps))
		r.Get("/report-jobs/{jobID}", handleReportStatus(deps))
		r.Get("/report-files", handleReportFile(deps))
		r.Post("/reports/run", handleRunReport(deps))
		r.Get("/call-lists", handleCallLists(deps))
		r.Get("/call-lists/export", handleCallListsExport(deps))
		r.Get("/contacts/completed", handleCompletedContacts(deps))
		r.Get("/dashboard", handleDashboard(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type reportRequest struct {
	TemplateID      string `json:"template_id"`
	AdditionalParam string `json:"additional_param"`
}

func decodeReportRequest(w http.ResponseWriter, r *http.Request) (report.Request, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return report.Request{}, false
	}
	if req.TemplateID == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "template_id is required")
		return report.Request{}, false
	}
	return report.Request{TemplateID: req.TemplateID, AdditionalParam: req.AdditionalParam}, true
}

func handleSubmitReport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeReportRequest(w, r)
		if !ok {
			return
		}

		handle, err := deps.Runner.Submit(r.Context(), req)
		if err != nil {
			jobError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"job_id": handle.JobID})
	}
}

func handleReportStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")

		status, err := deps.Runner.CheckStatus(r.Context(), jobID)
		if err != nil {
			jobError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"state":           status.State.String(),
			"result_file_url": status.ResultFileURL,
		})
	}
}

func handleReportFile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawURL := r.URL.Query().Get("url")
		if rawURL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url is required")
			return
		}

		payload, err := deps.Runner.FetchFile(r.Context(), rawURL)
		if err != nil {
			jobError(w, err)
			return
		}

		writeReportPayload(w, payload)
	}
}

// handleRunReport drives the whole submit, poll, fetch cycle in one
// request. Long-running by design: the client waits while the platform
// generates the report.
func handleRunReport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeReportRequest(w, r)
		if !ok {
			return
		}

		payload, err := deps.Runner.Run(r.Context(), req)
		if err != nil {
			jobError(w, err)
			return
		}

		writeReportPayload(w, payload)
	}
}

func writeReportPayload(w http.ResponseWriter, payload *report.FilePayload) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"file_name": payload.FileName,
		"content":   string(payload.Content),
	})
}

func handleCallLists(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := lists.Fetch(r.Context(), deps.Client)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "failed to fetch call lists: %v", err)
			return
		}

		if records == nil {
			records = []map[string]any{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(records)
	}
}

func handleCallListsExport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := lists.Fetch(r.Context(), deps.Client)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "failed to fetch call lists: %v", err)
			return
		}

		var data []byte
		var name string
		if r.URL.Query().Get("deactivated") == "true" {
			var count int
			data, count, err = lists.DeactivatedCSV(records)
			if err == nil && count == 0 {
				httpError(w, http.StatusNotFound, "not_found", "no deactivated call lists")
				return
			}
			name = lists.ExportFileName("deactivated_call_lists", time.Now())
		} else {
			data, err = lists.FullCSV(records)
			name = lists.ExportFileName("call_lists", time.Now())
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to render csv: %v", err)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.Write(data)
	}
}

// Completed-contact windows accept either a local timestamp or RFC 3339.
const timeParamLayout = "2006-01-02T15:04"

func parseTimeParam(s string) (time.Time, error) {
	if t, err := time.Parse(timeParamLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func handleCompletedContacts(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		start, err := parseTimeParam(q.Get("start"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid start: %v", err)
			return
		}
		end, err := parseTimeParam(q.Get("end"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid end: %v", err)
			return
		}
		if !end.After(start) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "end must be after start")
			return
		}

		params := contacts.Params{
			Start:    start,
			End:      end,
			Top:      parseIntParam(r, "top", contacts.DefaultTop, contacts.DefaultTop),
			FetchAll: q.Get("all") == "true",
		}

		records, err := deps.Fetcher.Fetch(r.Context(), params)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "failed to fetch contacts: %v", err)
			return
		}

		if q.Get("format") == "csv" {
			data, err := contacts.CSV(records)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to render csv: %v", err)
				return
			}
			w.Header().Set("Content-Type", "text/csv")
			w.Write(data)
			return
		}

		if records == nil {
			records = []map[string]any{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(records)
	}
}

func handleDashboard(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := deps.Dashboard.Snapshot(r.Context())
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "failed to take snapshot: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snap)
	}
}

// jobError translates the report error taxonomy into HTTP responses.
// Everything here is terminal; the caller decides whether to resubmit.
func jobError(w http.ResponseWriter, err error) {
	var je *report.JobError
	if !errors.As(err, &je) {
		httpError(w, http.StatusBadGateway, "api_error", "%v", err)
		return
	}

	code := http.StatusBadGateway
	if je.Kind == report.KindTimeout {
		code = http.StatusGatewayTimeout
	}
	httpError(w, code, "report_job_error", "%s", je.Error())
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
