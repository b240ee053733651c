// Entry point for the scrapedash HTTP service.
package main

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hazyhaar/scrapedash/dbopen"
	"github.com/hazyhaar/scrapedash/scrapedash"
	"github.com/hazyhaar/scrapedash/internal/fetch"
	"github.com/hazyhaar/scrapedash/internal/store"
	_ "modernc.org/sqlite"
)

//go:embed static
var staticFS embed.FS

func main() {
	port := env("PORT", "8080")
	dbPath := env("DB_PATH", "db/scrapedash.db")
	logLevel := env("LOG_LEVEL", "info")
	rps := envFloat("RATE_LIMIT_RPS", 0)
	burst := envInt("RATE_LIMIT_BURST", 0)
	fetchTimeout := envInt("FETCH_TIMEOUT_SECONDS", 0)
	userAgent := env("USER_AGENT", "")

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := dbopen.Open(dbPath, dbopen.WithMkdirAll(), dbopen.WithSchema(store.Schema))
	if err != nil {
		slog.Error("open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cfg := &scrapedash.Config{
		Fetch: fetch.Config{
			Timeout:   time.Duration(fetchTimeout) * time.Second,
			UserAgent: userAgent,
		},
	}
	svc := scrapedash.New(db, cfg, logger)

	r := svc.Routes(rps, burst)

	// Dashboard SPA.
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		slog.Error("static fs", "error", err)
		os.Exit(1)
	}
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, static, "index.html")
	})
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("scrapedash starting", "addr", srv.Addr, "db", dbPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}

	// Let in-flight scrapes write their final status before the DB closes.
	svc.Wait()
	slog.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}
