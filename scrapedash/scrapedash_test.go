package scrapedash

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/scrapedash/dbopen"
	"github.com/hazyhaar/scrapedash/internal/store"
	_ "modernc.org/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	return New(db, nil, slog.New(slog.DiscardHandler))
}

const testPage = `<html><head><title>Test Page</title></head><body>
	<p>Some page text here.</p>
	<a href="https://other.test/link">link</a>
	<a href="/relative">relative</a>
	<img src="/pic.png">
</body></html>`

func TestCreateTaskRunsScrape(t *testing.T) {
	// WHAT: CreateTask returns a pending task, and the background run takes
	// it to completed with a stored result and an INFO log trail.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testPage)
	}))
	defer srv.Close()

	svc := newTestService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, srv.URL, "", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Status != store.StatusPending {
		t.Errorf("initial status: got %q", task.Status)
	}
	svc.Wait()

	got, err := svc.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != store.StatusCompleted {
		t.Fatalf("final status: got %q (error %q)", got.Status, got.ErrorMessage)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not set")
	}

	results, err := svc.TaskResults(ctx, task.ID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	res := results[0]
	if res.Title != "Test Page" {
		t.Errorf("title: got %q", res.Title)
	}
	if !strings.Contains(res.Content, "Some page text here.") {
		t.Errorf("content: got %q", res.Content)
	}
	if res.StatusCode != 200 {
		t.Errorf("status code: got %d", res.StatusCode)
	}
	var links []string
	if err := json.Unmarshal([]byte(res.LinksJSON), &links); err != nil || len(links) != 2 {
		t.Errorf("links: %q (%v)", res.LinksJSON, err)
	}

	logs, err := svc.TaskLogs(ctx, task.ID)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("got %d log entries: %+v", len(logs), logs)
	}
	// Newest first: success entry, then the start entry.
	if !strings.HasPrefix(logs[0].Message, "Successfully scraped") {
		t.Errorf("log[0]: %q", logs[0].Message)
	}
	if !strings.HasPrefix(logs[1].Message, "Starting scrape of") {
		t.Errorf("log[1]: %q", logs[1].Message)
	}
}

func TestCreateTaskDefaultName(t *testing.T) {
	// WHAT: Omitting the name derives "Scrape <host>" from the URL.
	svc := newTestService(t)
	task, err := svc.CreateTask(context.Background(), "http://127.0.0.1:1/path", "", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	svc.Wait()
	if task.Name != "Scrape 127.0.0.1:1" {
		t.Errorf("name: got %q", task.Name)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	// WHAT: Missing or non-http URLs are rejected before any task exists.
	svc := newTestService(t)
	ctx := context.Background()

	for _, u := range []string{"", "ftp://x.test", "not a url at all", "file:///etc/passwd"} {
		if _, err := svc.CreateTask(ctx, u, "", nil); err == nil {
			t.Errorf("url %q: expected error", u)
		}
	}
	tasks, _ := svc.ListTasks(ctx)
	if len(tasks) != 0 {
		t.Errorf("%d tasks persisted from invalid input", len(tasks))
	}
}

func TestCreateTaskInvalidConfig(t *testing.T) {
	// WHAT: A config that is not valid JSON is rejected.
	svc := newTestService(t)
	_, err := svc.CreateTask(context.Background(), "http://example.com", "", json.RawMessage(`{not json`))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestScrapeFailureMarksTaskFailed(t *testing.T) {
	// WHAT: A 500 from the target moves the task to failed with an error
	// message and an ERROR log entry, and stores no result.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := newTestService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, srv.URL, "will fail", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	svc.Wait()

	got, _ := svc.GetTask(ctx, task.ID)
	if got.Status != store.StatusFailed {
		t.Fatalf("status: got %q", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "http 500") {
		t.Errorf("error_message: got %q", got.ErrorMessage)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not set on failure")
	}

	results, _ := svc.TaskResults(ctx, task.ID)
	if len(results) != 0 {
		t.Errorf("failed task has %d results", len(results))
	}
	logs, _ := svc.TaskLogs(ctx, task.ID)
	if len(logs) != 2 || logs[0].Level != store.LevelError {
		t.Errorf("logs: %+v", logs)
	}
}

func TestScrapeTimeoutStillReachesTerminalState(t *testing.T) {
	// WHAT: When the overall scrape deadline expires mid-fetch, the task
	// still ends up failed with an error message and an ERROR log entry.
	// WHY: The terminal-state writes must not run on the expired context,
	// or a timed-out task would be stuck in running forever.
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema))
	cfg := &Config{ScrapeTimeout: 100 * time.Millisecond}
	cfg.Fetch.Timeout = 10 * time.Second
	svc := New(db, cfg, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, slow.URL, "", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	svc.Wait()

	got, err := svc.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != store.StatusFailed {
		t.Fatalf("status: got %q, want failed", got.Status)
	}
	if got.ErrorMessage == "" || got.CompletedAt == nil {
		t.Errorf("failure not recorded: error=%q completed_at=%v", got.ErrorMessage, got.CompletedAt)
	}

	logs, err := svc.TaskLogs(ctx, task.ID)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if len(logs) != 2 || logs[0].Level != store.LevelError {
		t.Errorf("logs: %+v", logs)
	}
}

func TestConfigScrapeTimeoutTracksFetchTimeout(t *testing.T) {
	// WHAT: The default run deadline stays above a configured fetch timeout.
	cfg := &Config{}
	cfg.Fetch.Timeout = 60 * time.Second
	cfg.defaults()
	if cfg.ScrapeTimeout <= cfg.Fetch.Timeout {
		t.Errorf("ScrapeTimeout %v <= Fetch.Timeout %v", cfg.ScrapeTimeout, cfg.Fetch.Timeout)
	}

	cfg = &Config{}
	cfg.defaults()
	if cfg.ScrapeTimeout <= 10*time.Second {
		t.Errorf("default ScrapeTimeout %v does not cover the default fetch timeout", cfg.ScrapeTimeout)
	}
}

func TestScrapeUnreachableHost(t *testing.T) {
	// WHAT: A connection error fails the task rather than hanging it.
	svc := newTestService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, "http://127.0.0.1:1/nothing-listens-here", "", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	svc.Wait()

	got, _ := svc.GetTask(ctx, task.ID)
	if got.Status != store.StatusFailed {
		t.Errorf("status: got %q", got.Status)
	}
	if !strings.HasPrefix(got.ErrorMessage, "Failed to scrape") {
		t.Errorf("error_message: got %q", got.ErrorMessage)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	// WHAT: Unknown IDs surface ErrTaskNotFound, and the results/logs
	// accessors propagate it.
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.GetTask(ctx, "ghost"); !strings.Contains(err.Error(), "task not found") {
		t.Errorf("get: %v", err)
	}
	if _, err := svc.TaskResults(ctx, "ghost"); err == nil {
		t.Error("results: expected error")
	}
	if _, err := svc.TaskLogs(ctx, "ghost"); err == nil {
		t.Error("logs: expected error")
	}
}

func TestDeleteTaskRemovesEverything(t *testing.T) {
	// WHAT: Deleting a finished task also drops its results and logs.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testPage)
	}))
	defer srv.Close()

	svc := newTestService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, srv.URL, "", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	svc.Wait()

	if err := svc.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetTask(ctx, task.ID); err == nil {
		t.Error("task survived deletion")
	}
}

func TestStatsAggregation(t *testing.T) {
	// WHAT: Stats reflect the tasks created in this test, and the per-status
	// counts sum to the total.
	okSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testPage)
	}))
	defer okSrv.Close()
	badSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer badSrv.Close()

	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateTask(ctx, okSrv.URL, "", nil); err != nil {
		t.Fatalf("create ok: %v", err)
	}
	if _, err := svc.CreateTask(ctx, badSrv.URL, "", nil); err != nil {
		t.Fatalf("create bad: %v", err)
	}
	svc.Wait()

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalTasks != 2 || stats.TotalResults != 1 {
		t.Errorf("totals: tasks=%d results=%d", stats.TotalTasks, stats.TotalResults)
	}
	if stats.StatusCounts[store.StatusCompleted] != 1 || stats.StatusCounts[store.StatusFailed] != 1 {
		t.Errorf("status counts: %+v", stats.StatusCounts)
	}
}
