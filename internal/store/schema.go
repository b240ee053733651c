package store

// Schema is the complete scrapedash schema. All timestamps are Unix
// milliseconds. ON DELETE CASCADE backs up the transactional delete in
// DeleteTask; both exist so neither path can strand child rows.
const Schema = `
-- Scraping tasks
CREATE TABLE IF NOT EXISTS tasks (
    id            TEXT PRIMARY KEY,
    url           TEXT NOT NULL,
    name          TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'pending',
    created_at    INTEGER NOT NULL,
    completed_at  INTEGER,
    config_json   TEXT NOT NULL DEFAULT '{}',
    error_message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

-- Extraction results, one per successful task run
CREATE TABLE IF NOT EXISTS results (
    id          TEXT PRIMARY KEY,
    task_id     TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
    url         TEXT NOT NULL,
    title       TEXT NOT NULL DEFAULT '',
    content     TEXT NOT NULL DEFAULT '',
    links_json  TEXT NOT NULL DEFAULT '[]',
    images_json TEXT NOT NULL DEFAULT '[]',
    status_code INTEGER NOT NULL DEFAULT 0,
    scraped_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_task ON results(task_id, scraped_at DESC);

-- Per-task event trail, append-only
CREATE TABLE IF NOT EXISTS task_log (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    task_id   TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
    level     TEXT NOT NULL,
    message   TEXT NOT NULL,
    logged_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_log_task ON task_log(task_id, logged_at DESC);
`
