package store

// TaskStatus is the closed set of task lifecycle states.
// pending → running → {completed, failed}; terminal states never transition.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// LogLevel is the severity of a task log entry.
type LogLevel string

const (
	LevelInfo  LogLevel = "INFO"
	LevelError LogLevel = "ERROR"
)

// Task is one user-submitted request to scrape a single URL.
type Task struct {
	ID           string     `json:"id"`
	URL          string     `json:"url"`
	Name         string     `json:"name"`
	Status       TaskStatus `json:"status"`
	CreatedAt    int64      `json:"created_at"`
	CompletedAt  *int64     `json:"completed_at"`
	ConfigJSON   string     `json:"-"`
	ErrorMessage string     `json:"error_message"`
}

// Result is the structured extraction produced by one successful task run.
type Result struct {
	ID         string `json:"id"`
	TaskID     string `json:"task_id"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	LinksJSON  string `json:"-"`
	ImagesJSON string `json:"-"`
	StatusCode int    `json:"status_code"`
	ScrapedAt  int64  `json:"scraped_at"`
}

// LogEntry is one timestamped event in a task's trail.
type LogEntry struct {
	ID       int64    `json:"id"`
	TaskID   string   `json:"task_id"`
	Level    LogLevel `json:"level"`
	Message  string   `json:"message"`
	LoggedAt int64    `json:"logged_at"`
}

// Stats is the dashboard aggregate, recomputed fully on every call.
type Stats struct {
	TotalTasks     int                `json:"total_tasks"`
	TotalResults   int                `json:"total_results"`
	StatusCounts   map[TaskStatus]int `json:"status_counts"`
	RecentActivity []ActivityDay      `json:"recent_activity"`
}

// ActivityDay is the task creation count for one calendar date.
type ActivityDay struct {
	Date  string `json:"date"` // YYYY-MM-DD (UTC)
	Count int    `json:"count"`
}
