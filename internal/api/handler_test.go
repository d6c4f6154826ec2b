package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/cxops/internal/auth"
	"github.com/kalambet/cxops/internal/contacts"
	"github.com/kalambet/cxops/internal/cxone"
	"github.com/kalambet/cxops/internal/dashboard"
	"github.com/kalambet/cxops/internal/report"
)

const testToken = "test-token"

// newUpstream simulates the tenant API for the console endpoints.
func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var upstreamURL string

	mux.HandleFunc("POST /report-jobs/tpl-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"jobId":"job-9"}`))
	})
	mux.HandleFunc("POST /report-jobs/tpl-broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("GET /report-jobs/job-9", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"jobResult": map[string]any{
			"jobId":         "job-9",
			"state":         "Finished",
			"resultFileURL": upstreamURL + "/report-files/9",
		}}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("GET /report-files/9", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"files": map[string]any{
			"file":     base64.StdEncoding.EncodeToString([]byte("id,calls\n1,7\n")),
			"fileName": "agent_summary.csv",
		}}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("GET /lists/call-lists", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"callingLists":[
			{"listId":11,"listName":"spring","status":"Active"},
			{"listId":12,"listName":"stale","status":"Deactivated"}
		]}`))
	})
	mux.HandleFunc("GET /contacts/completed", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"completedContacts":[{"contactId":301,"skillName":"support"}]}`))
	})
	mux.HandleFunc("GET /skills/activity", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"skillActivity":[
			{"queueCount":3,"activeContactCount":5,"agentsAvailable":2}
		]}`))
	})
	mux.HandleFunc("GET /agents/states", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"agentStates":[
			{"agentStateName":"Available"},
			{"agentStateName":"Unavailable"}
		]}`))
	})

	srv := httptest.NewServer(mux)
	upstreamURL = srv.URL
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T) *httptest.Server {
	t.Helper()

	upstream := newUpstream(t)
	client := cxone.New(&auth.Context{Token: "upstream-token", BaseURL: upstream.URL}, upstream.Client())

	deps := AppDeps{
		Client:    client,
		Runner:    report.NewRunner(client, report.Options{PollInterval: time.Millisecond, MaxPolls: 3}),
		Fetcher:   contacts.NewFetcher(client, 0),
		Dashboard: dashboard.NewAggregator(client),
		Token:     testToken,
	}

	app := httptest.NewServer(NewAppHandler(deps))
	t.Cleanup(app.Close)
	return app
}

func doRequest(t *testing.T, method, url, token string, body string) (*http.Response, []byte) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func TestHealthSkipsAuth(t *testing.T) {
	app := newTestApp(t)

	resp, body := doRequest(t, http.MethodGet, app.URL+"/health", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), `"ok"`) {
		t.Errorf("body = %s", body)
	}
}

func TestBearerAuthRejections(t *testing.T) {
	app := newTestApp(t)

	for name, token := range map[string]string{
		"missing": "",
		"wrong":   "other-token",
	} {
		t.Run(name, func(t *testing.T) {
			resp, _ := doRequest(t, http.MethodGet, app.URL+"/call-lists", token, "")
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
		})
	}
}

func TestRunReportEndToEnd(t *testing.T) {
	app := newTestApp(t)

	resp, body := doRequest(t, http.MethodPost, app.URL+"/reports/run", testToken,
		`{"template_id":"tpl-1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}

	var got map[string]string
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if got["file_name"] != "agent_summary.csv" {
		t.Errorf("file_name = %q", got["file_name"])
	}
	if got["content"] != "id,calls\n1,7\n" {
		t.Errorf("content = %q", got["content"])
	}
}

func TestSubmitStatusFetchCycle(t *testing.T) {
	app := newTestApp(t)

	resp, body := doRequest(t, http.MethodPost, app.URL+"/report-jobs", testToken,
		`{"template_id":"tpl-1"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit status = %d, body %s", resp.StatusCode, body)
	}
	var submit map[string]string
	if err := json.Unmarshal(body, &submit); err != nil {
		t.Fatal(err)
	}
	if submit["job_id"] != "job-9" {
		t.Fatalf("job_id = %q", submit["job_id"])
	}

	resp, body = doRequest(t, http.MethodGet, app.URL+"/report-jobs/job-9", testToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status status = %d, body %s", resp.StatusCode, body)
	}
	var status map[string]string
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatal(err)
	}
	if status["state"] != "Finished" {
		t.Errorf("state = %q", status["state"])
	}
	if status["result_file_url"] == "" {
		t.Fatal("result_file_url is empty")
	}

	resp, body = doRequest(t, http.MethodGet,
		app.URL+"/report-files?url="+status["result_file_url"], testToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fetch status = %d, body %s", resp.StatusCode, body)
	}
	var file map[string]string
	if err := json.Unmarshal(body, &file); err != nil {
		t.Fatal(err)
	}
	if file["content"] != "id,calls\n1,7\n" {
		t.Errorf("content = %q", file["content"])
	}
}

func TestSubmitRejectionMapsToGatewayError(t *testing.T) {
	app := newTestApp(t)

	resp, body := doRequest(t, http.MethodPost, app.URL+"/report-jobs", testToken,
		`{"template_id":"tpl-broken"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	if !strings.Contains(string(body), "submission failed") {
		t.Errorf("body = %s", body)
	}
	if !strings.Contains(string(body), "report_job_error") {
		t.Errorf("body = %s", body)
	}
}

func TestSubmitValidation(t *testing.T) {
	app := newTestApp(t)

	resp, _ := doRequest(t, http.MethodPost, app.URL+"/report-jobs", testToken, `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty template_id: status = %d, want 400", resp.StatusCode)
	}

	resp, _ = doRequest(t, http.MethodPost, app.URL+"/report-jobs", testToken, `not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad body: status = %d, want 400", resp.StatusCode)
	}
}

func TestCallListsJSON(t *testing.T) {
	app := newTestApp(t)

	resp, body := doRequest(t, http.MethodGet, app.URL+"/call-lists", testToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var records []map[string]any
	if err := json.Unmarshal(body, &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
}

func TestCallListsExportDeactivated(t *testing.T) {
	app := newTestApp(t)

	resp, body := doRequest(t, http.MethodGet,
		app.URL+"/call-lists/export?deactivated=true", testToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	csv := string(body)
	if !strings.Contains(csv, "12") {
		t.Errorf("csv missing deactivated id: %s", csv)
	}
	if strings.Contains(csv, "11") {
		t.Errorf("csv contains active id: %s", csv)
	}
}

func TestCompletedContacts(t *testing.T) {
	app := newTestApp(t)

	resp, body := doRequest(t, http.MethodGet,
		app.URL+"/contacts/completed?start=2026-08-30T00:00&end=2026-08-31T00:00", testToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}

	var records []map[string]any
	if err := json.Unmarshal(body, &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0]["skillName"] != "support" {
		t.Errorf("skillName = %v", records[0]["skillName"])
	}
}

func TestCompletedContactsValidation(t *testing.T) {
	app := newTestApp(t)

	cases := map[string]string{
		"missing start":    "end=2026-08-31T00:00",
		"bad start":        "start=yesterday&end=2026-08-31T00:00",
		"end before start": "start=2026-08-31T00:00&end=2026-08-30T00:00",
	}
	for name, query := range cases {
		t.Run(name, func(t *testing.T) {
			resp, _ := doRequest(t, http.MethodGet,
				app.URL+"/contacts/completed?"+query, testToken, "")
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestDashboardSnapshot(t *testing.T) {
	app := newTestApp(t)

	resp, body := doRequest(t, http.MethodGet, app.URL+"/dashboard", testToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}

	var snap dashboard.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.ContactsInQueue != 3 {
		t.Errorf("ContactsInQueue = %d, want 3", snap.ContactsInQueue)
	}
	if snap.AgentStates["Available"] != 1 {
		t.Errorf("AgentStates = %v", snap.AgentStates)
	}
}
