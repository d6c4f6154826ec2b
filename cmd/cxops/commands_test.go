package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalambet/cxops/internal/auth"
	"github.com/kalambet/cxops/internal/config"
	"github.com/kalambet/cxops/internal/cxone"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			if r.Method == "POST" && strings.HasPrefix(r.URL.Path, "/report-jobs/") {
				w.WriteHeader(http.StatusAccepted)
			}
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":"not found"}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

// installFakeTenant points tenantClient at a recorded fake backend and
// routes exports into a temp dir.
func installFakeTenant(t *testing.T, ts *testServer) string {
	t.Helper()

	outDir := t.TempDir()
	orig := tenantClient
	tenantClient = func(ctx context.Context) (*cxone.Client, config.Config, error) {
		client := cxone.New(&auth.Context{Token: "test-token", BaseURL: ts.server.URL}, ts.server.Client())
		cfg := config.Config{
			Output:   config.OutputConfig{Dir: outDir},
			Report:   config.ReportConfig{PollInterval: "1ms", MaxPolls: 3},
			Contacts: config.ContactsConfig{Top: 100, PagePause: "1ms"},
		}
		return client, cfg, nil
	}
	t.Cleanup(func() { tenantClient = orig })
	return outDir
}

func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestReportRunCommand(t *testing.T) {
	csvContent := "agent,calls\nana,12\n"
	responses := map[string]string{
		"POST /report-jobs/tpl-7": `{"jobId":"job-1"}`,
		"GET /result": `{"files":{"file":"` + base64.StdEncoding.EncodeToString([]byte(csvContent)) +
			`","fileName":"agents.csv"}}`,
	}
	ts := newTestServer(t, responses)
	// The poll response carries an absolute URL, so it can only be
	// registered once the server address is known.
	responses["GET /report-jobs/job-1"] = `{"jobResult":{"state":"Finished","resultFileURL":"` +
		ts.server.URL + `/result"}}`
	outDir := installFakeTenant(t, ts)

	if err := runCommand(t, "report", "run", "tpl-7", "--interval", "1ms"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	submit := ts.requests[0]
	if submit.Method != "POST" {
		t.Errorf("method = %q, want POST", submit.Method)
	}
	if !strings.Contains(submit.Path, "fileType=CSV") || !strings.Contains(submit.Path, "includeHeaders=true") {
		t.Errorf("submit path missing fixed query: %q", submit.Path)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "agents.csv"))
	if err != nil {
		t.Fatalf("report file missing: %v", err)
	}
	if string(data) != csvContent {
		t.Errorf("content = %q, want %q", data, csvContent)
	}
}

func TestListsExportDeactivatedCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /lists/call-lists": `{"callingLists":[
			{"listId":21,"status":"Active"},
			{"listId":22,"status":"Deactivated"},
			{"listId":23,"status":"Deactivated"}
		]}`,
	})
	outDir := installFakeTenant(t, ts)

	if err := runCommand(t, "lists", "export", "--deactivated"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(outDir, "deactivated_call_lists_*.csv"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one export file, got %v (err %v)", files, err)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	csv := string(data)
	if !strings.Contains(csv, "22") || !strings.Contains(csv, "23") {
		t.Errorf("csv missing deactivated ids: %s", csv)
	}
	if strings.Contains(csv, "21") {
		t.Errorf("csv contains active id: %s", csv)
	}
}

func TestContactsExportCommandValidation(t *testing.T) {
	ts := newTestServer(t, nil)
	installFakeTenant(t, ts)

	err := runCommand(t, "contacts", "export", "--start", "nope", "--end", "2026-08-31T00:00")
	if err == nil || !strings.Contains(err.Error(), "--start") {
		t.Errorf("expected --start parse error, got %v", err)
	}

	err = runCommand(t, "contacts", "export",
		"--start", "2026-08-31T00:00", "--end", "2026-08-30T00:00")
	if err == nil || !strings.Contains(err.Error(), "after") {
		t.Errorf("expected window order error, got %v", err)
	}

	if len(ts.requests) != 0 {
		t.Errorf("no requests should reach the API on validation errors, got %d", len(ts.requests))
	}
}

func TestContactsExportCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /contacts/completed": `{"completedContacts":[{"contactId":1,"skillName":"sales"}]}`,
	})
	outDir := installFakeTenant(t, ts)

	err := runCommand(t, "contacts", "export",
		"--start", "2026-08-30T00:00", "--end", "2026-08-31T00:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if got := ts.requests[0].Auth; got != "Bearer test-token" {
		t.Errorf("auth = %q", got)
	}
	if !strings.Contains(ts.requests[0].Path, "startDate=08/30/2026%2000:00") {
		t.Errorf("path = %q", ts.requests[0].Path)
	}

	files, _ := filepath.Glob(filepath.Join(outDir, "completed_contacts_*.csv"))
	if len(files) != 1 {
		t.Fatalf("expected one export file, got %v", files)
	}
	data, _ := os.ReadFile(files[0])
	if !strings.Contains(string(data), "sales") {
		t.Errorf("csv = %s", data)
	}
}

func TestRecordingsDownloadCommandRequiresIDs(t *testing.T) {
	ts := newTestServer(t, nil)
	installFakeTenant(t, ts)

	err := runCommand(t, "recordings", "download")
	if err == nil || !strings.Contains(err.Error(), "call IDs") {
		t.Errorf("expected missing ids error, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	if err := runCommand(t, "version"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
