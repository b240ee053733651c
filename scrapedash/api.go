package scrapedash

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/hazyhaar/scrapedash/internal/store"
)

// taskView is the API shape of a task: config_json rendered as an object.
type taskView struct {
	ID           string          `json:"id"`
	URL          string          `json:"url"`
	Name         string          `json:"name"`
	Status       string          `json:"status"`
	CreatedAt    int64           `json:"created_at"`
	CompletedAt  *int64          `json:"completed_at"`
	Config       json.RawMessage `json:"config"`
	ErrorMessage string          `json:"error_message"`
}

// resultView renders links_json/images_json as arrays.
type resultView struct {
	ID         string          `json:"id"`
	TaskID     string          `json:"task_id"`
	URL        string          `json:"url"`
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	Links      json.RawMessage `json:"links"`
	Images     json.RawMessage `json:"images"`
	StatusCode int             `json:"status_code"`
	ScrapedAt  int64           `json:"scraped_at"`
}

// Routes returns the HTTP API router. rps > 0 enables a global rate
// limiter. Callers may register further routes (static assets, the
// dashboard page) on the returned router.
func (s *Service) Routes(rps float64, burst int) chi.Router {
	var limiter *rate.Limiter
	if rps > 0 && burst > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}

	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(rateLimit(limiter))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/tasks", s.handleListTasks)
		r.Post("/tasks", s.handleCreateTask)
		r.Get("/tasks/{taskID}", s.handleGetTask)
		r.Delete("/tasks/{taskID}", s.handleDeleteTask)
		r.Get("/tasks/{taskID}/results", s.handleTaskResults)
		r.Get("/tasks/{taskID}/logs", s.handleTaskLogs)
		r.Get("/stats", s.handleStats)
	})

	return r
}

func (s *Service) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.ListTasks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, taskView{
			ID: t.ID, URL: t.URL, Name: t.Name, Status: string(t.Status),
			CreatedAt: t.CreatedAt, CompletedAt: t.CompletedAt,
			Config:       json.RawMessage(t.ConfigJSON),
			ErrorMessage: t.ErrorMessage,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Service) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL    string          `json:"url"`
		Name   string          `json:"name"`
		Config json.RawMessage `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	task, err := s.CreateTask(r.Context(), req.URL, req.Name, req.Config)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"task_id": task.ID,
		"status":  "created",
	})
}

func (s *Service) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.GetTask(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskView{
		ID: task.ID, URL: task.URL, Name: task.Name, Status: string(task.Status),
		CreatedAt: task.CreatedAt, CompletedAt: task.CompletedAt,
		Config:       json.RawMessage(task.ConfigJSON),
		ErrorMessage: task.ErrorMessage,
	})
}

func (s *Service) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.DeleteTask(r.Context(), chi.URLParam(r, "taskID")); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Service) handleTaskResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.TaskResults(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	views := make([]resultView, 0, len(results))
	for _, res := range results {
		views = append(views, resultView{
			ID: res.ID, TaskID: res.TaskID, URL: res.URL,
			Title: res.Title, Content: res.Content,
			Links:      json.RawMessage(res.LinksJSON),
			Images:     json.RawMessage(res.ImagesJSON),
			StatusCode: res.StatusCode, ScrapedAt: res.ScrapedAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Service) handleTaskLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.TaskLogs(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []*store.LogEntry{} // never encode null
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// --- Middleware ---

func (s *Service) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lw, r)
		s.logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", lw.statusCode,
			"latency_ms", time.Since(start).Milliseconds(),
		)
	})
}

func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, errors.New("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lw *loggingResponseWriter) WriteHeader(code int) {
	lw.statusCode = code
	lw.ResponseWriter.WriteHeader(code)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTaskNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
