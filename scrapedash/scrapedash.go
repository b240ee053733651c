// Package scrapedash is the scraping dashboard orchestrator: it accepts
// tasks, runs each scrape in its own background goroutine, and serves the
// stored tasks, results, logs, and stats.
package scrapedash

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/hazyhaar/scrapedash/idgen"
	"github.com/hazyhaar/scrapedash/internal/extract"
	"github.com/hazyhaar/scrapedash/internal/fetch"
	"github.com/hazyhaar/scrapedash/internal/store"
)

// Service is the main scrapedash orchestrator.
type Service struct {
	store   *store.Store
	fetcher *fetch.Fetcher
	logger  *slog.Logger
	config  *Config
	newID   idgen.Generator

	// wg tracks in-flight scrape goroutines so tests and shutdown can
	// wait for them.
	wg sync.WaitGroup
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithIDGenerator overrides the task/result ID generator.
func WithIDGenerator(gen idgen.Generator) ServiceOption {
	return func(s *Service) { s.newID = gen }
}

// WithFetcher overrides the HTTP fetcher.
func WithFetcher(f *fetch.Fetcher) ServiceOption {
	return func(s *Service) { s.fetcher = f }
}

// New creates a scrapedash Service on top of an opened database.
func New(db *sql.DB, cfg *Config, logger *slog.Logger, opts ...ServiceOption) *Service {
	if cfg == nil {
		cfg = defaultConfig()
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{
		store:   store.New(db),
		fetcher: fetch.New(cfg.Fetch),
		logger:  logger,
		config:  cfg,
		newID:   idgen.Default,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CreateTask validates the URL, persists a pending task, and kicks off its
// scrape in the background. The returned task is the pending row; poll
// GetTask for progress.
func (s *Service) CreateTask(ctx context.Context, rawURL, name string, config json.RawMessage) (*store.Task, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	if err := fetch.ValidateURL(rawURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if name == "" {
		u, _ := url.Parse(rawURL)
		name = "Scrape " + u.Host
	}
	configJSON := "{}"
	if len(config) > 0 {
		if !json.Valid(config) {
			return nil, fmt.Errorf("%w: config must be a JSON object", ErrInvalidInput)
		}
		configJSON = string(config)
	}

	task := &store.Task{
		ID:         s.newID(),
		URL:        rawURL,
		Name:       name,
		ConfigJSON: configJSON,
	}
	if err := s.store.InsertTask(ctx, task); err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	s.logger.Info("task created", "task_id", task.ID, "url", task.URL)

	// Fire and forget. The run outlives the HTTP request, so it gets its
	// own context bounded by ScrapeTimeout rather than the request's.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		runCtx, cancel := context.WithTimeout(context.Background(), s.config.ScrapeTimeout)
		defer cancel()
		s.runTask(runCtx, task.ID, task.URL)
	}()

	return task, nil
}

// runTask executes one scrape end to end and records the outcome. It never
// returns an error: every failure path lands in the task's status and log
// trail instead.
func (s *Service) runTask(ctx context.Context, taskID, rawURL string) {
	// Store writes go through a context that survives the scrape deadline.
	// Otherwise a timed-out run could not record its own failure and the
	// task would sit in running forever.
	writeCtx := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scrape panicked", "task_id", taskID, "panic", r)
			s.failTask(writeCtx, taskID, fmt.Sprintf("Unexpected error: %v", r))
		}
	}()

	if err := s.store.UpdateTaskStatus(writeCtx, taskID, store.StatusRunning, nil, ""); err != nil {
		s.logger.Error("mark running", "task_id", taskID, "error", err)
	}
	s.appendLog(writeCtx, taskID, store.LevelInfo, "Starting scrape of "+rawURL)

	res, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		s.failTask(writeCtx, taskID, fmt.Sprintf("Failed to scrape %s: %v", rawURL, err))
		return
	}

	ext, err := extract.Page(res.Body, rawURL)
	if err != nil {
		s.failTask(writeCtx, taskID, fmt.Sprintf("Failed to scrape %s: %v", rawURL, err))
		return
	}

	links, _ := json.Marshal(ext.Links)
	images, _ := json.Marshal(ext.Images)
	result := &store.Result{
		ID:         s.newID(),
		TaskID:     taskID,
		URL:        rawURL,
		Title:      ext.Title,
		Content:    ext.Content,
		LinksJSON:  string(links),
		ImagesJSON: string(images),
		StatusCode: res.StatusCode,
	}
	if err := s.store.InsertResult(writeCtx, result); err != nil {
		s.failTask(writeCtx, taskID, fmt.Sprintf("Unexpected error: %v", err))
		return
	}

	now := time.Now().UnixMilli()
	if err := s.store.UpdateTaskStatus(writeCtx, taskID, store.StatusCompleted, &now, ""); err != nil {
		s.logger.Error("mark completed", "task_id", taskID, "error", err)
	}
	s.appendLog(writeCtx, taskID, store.LevelInfo, "Successfully scraped "+rawURL)
	s.logger.Info("scrape completed", "task_id", taskID, "url", rawURL,
		"title", ext.Title, "links", len(ext.Links), "images", len(ext.Images))
}

func (s *Service) failTask(ctx context.Context, taskID, msg string) {
	now := time.Now().UnixMilli()
	if err := s.store.UpdateTaskStatus(ctx, taskID, store.StatusFailed, &now, msg); err != nil {
		s.logger.Error("mark failed", "task_id", taskID, "error", err)
	}
	s.appendLog(ctx, taskID, store.LevelError, msg)
	s.logger.Warn("scrape failed", "task_id", taskID, "reason", msg)
}

// appendLog writes to the task trail; a storage hiccup here must not abort
// the scrape, so it only logs.
func (s *Service) appendLog(ctx context.Context, taskID string, level store.LogLevel, msg string) {
	if err := s.store.AppendLog(ctx, taskID, level, msg); err != nil {
		s.logger.Error("append task log", "task_id", taskID, "error", err)
	}
}

// GetTask returns one task by ID.
func (s *Service) GetTask(ctx context.Context, id string) (*store.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return task, nil
}

// ListTasks returns all tasks, newest first.
func (s *Service) ListTasks(ctx context.Context) ([]*store.Task, error) {
	return s.store.ListTasks(ctx)
}

// DeleteTask removes a task and everything attached to it. Unknown IDs
// delete cleanly.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	return s.store.DeleteTask(ctx, id)
}

// TaskResults returns a task's results, newest first. The task must exist.
func (s *Service) TaskResults(ctx context.Context, taskID string) ([]*store.Result, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.store.ListResults(ctx, taskID)
}

// TaskLogs returns a task's log trail, newest first. The task must exist.
func (s *Service) TaskLogs(ctx context.Context, taskID string) ([]*store.LogEntry, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.store.ListLogs(ctx, taskID)
}

// Stats returns the dashboard aggregate.
func (s *Service) Stats(ctx context.Context) (*store.Stats, error) {
	return s.store.Stats(ctx)
}

// Wait blocks until all in-flight scrapes finish. Used on shutdown and in
// tests.
func (s *Service) Wait() {
	s.wg.Wait()
}
