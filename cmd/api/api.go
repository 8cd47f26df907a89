package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"gradcafe_scraper/internal/app"
	"gradcafe_scraper/internal/config"
	"gradcafe_scraper/internal/logger"
	"gradcafe_scraper/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// ingester runs one incremental ingestion.
type ingester interface {
	RunIngestion(ctx context.Context) (*service.IngestionResult, error)
}

// analyzer answers the dashboard questions.
type analyzer interface {
	Analyze(ctx context.Context) (*service.Analysis, error)
	Refresh(ctx context.Context) (*service.Analysis, error)
	Latest(ctx context.Context) (*service.Analysis, error)
}

// Dashboard serves the analysis page and the ingestion triggers. The job
// tracker gates ingestion and refresh so only one runs at a time.
type Dashboard struct {
	pipeline ingester
	analysis analyzer // nil without a database
	jobs     *service.JobTracker
	cache    *service.AnalysisCache
	pages    *template.Template
	logger   *slog.Logger
	// baseCtx outlives single requests so a client disconnect does not cancel a run.
	baseCtx context.Context
}

func NewDashboard(baseCtx context.Context, pipeline ingester, analysis analyzer, logger *slog.Logger) (*Dashboard, error) {
	pages, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Dashboard{
		pipeline: pipeline,
		analysis: analysis,
		jobs:     service.NewJobTracker(),
		cache:    &service.AnalysisCache{},
		pages:    pages,
		logger:   logger,
		baseCtx:  baseCtx,
	}, nil
}

// Routes registers every handler.
func (d *Dashboard) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", d.indexHandler)
	mux.HandleFunc("GET /analysis", d.indexHandler)
	mux.HandleFunc("GET /api/analysis", d.analysisHandler)
	mux.HandleFunc("GET /api/status", d.statusHandler)
	mux.HandleFunc("POST /pull-data", d.pullDataHandler)
	mux.HandleFunc("POST /update-analysis", d.updateAnalysisHandler)
	return mux
}

type pageData struct {
	Analysis  *service.Analysis
	UpdatedAt time.Time
	Status    service.JobStatus
	Message   string
}

// currentAnalysis prefers the in-memory cell, then the stored snapshot, then
// a live computation.
func (d *Dashboard) currentAnalysis(ctx context.Context) (*service.Analysis, time.Time, error) {
	if a, at, ok := d.cache.Get(); ok {
		return a, at, nil
	}
	if d.analysis == nil {
		return nil, time.Time{}, app.ErrNoDatabase
	}

	a, err := d.analysis.Latest(ctx)
	if err != nil {
		d.logger.Warn("could not read stored analysis", "err", err)
	}
	if a == nil {
		a, err = d.analysis.Analyze(ctx)
		if a == nil {
			return nil, time.Time{}, err
		}
		if err != nil {
			d.logger.Warn("analysis finished with errors", "err", err)
		}
	}
	d.cache.Set(a)
	_, at, _ := d.cache.Get()
	return a, at, nil
}

// indexHandler serves the main page.
func (d *Dashboard) indexHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	data := pageData{Status: d.jobs.Status()}
	a, at, err := d.currentAnalysis(ctx)
	if err != nil {
		data.Message = err.Error()
	}
	data.Analysis, data.UpdatedAt = a, at

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := d.pages.ExecuteTemplate(w, "index.html", data); err != nil {
		d.logger.Error("render index", "err", err)
	}
}

func (d *Dashboard) analysisHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	a, _, err := d.currentAnalysis(ctx)
	if err != nil {
		d.writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
		return
	}
	d.writeJSON(w, http.StatusOK, a)
}

func (d *Dashboard) statusHandler(w http.ResponseWriter, r *http.Request) {
	d.writeJSON(w, http.StatusOK, d.jobs.Status())
}

// pullDataHandler runs one ingestion synchronously. 409 while another job runs.
func (d *Dashboard) pullDataHandler(w http.ResponseWriter, r *http.Request) {
	if err := d.jobs.TryStart("pull-data"); err != nil {
		d.writeJSON(w, http.StatusConflict, map[string]any{"busy": true, "error": err.Error()})
		return
	}

	res, err := d.pipeline.RunIngestion(d.baseCtx)
	d.jobs.Finish(err)
	d.cache.Invalidate()
	if err != nil {
		d.logger.Error("ingestion failed", "err", err)
		d.writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	if res.Analysis != nil {
		d.cache.Set(res.Analysis)
	}

	body := map[string]any{"ok": true}
	if res.Scrape != nil {
		body["stopReason"] = res.Scrape.StopReason
		body["newEntries"] = len(res.Scrape.New)
	}
	if res.Merge != nil {
		body["added"] = res.Merge.Added
		body["total"] = res.Merge.Total
	}
	d.writeJSON(w, http.StatusOK, body)
}

// updateAnalysisHandler recomputes and stores the analysis. 409 while busy.
func (d *Dashboard) updateAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	if d.analysis == nil {
		d.writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": app.ErrNoDatabase.Error()})
		return
	}
	if err := d.jobs.TryStart("update-analysis"); err != nil {
		d.writeJSON(w, http.StatusConflict, map[string]any{"busy": true, "error": err.Error()})
		return
	}

	a, err := d.analysis.Refresh(d.baseCtx)
	d.jobs.Finish(err)
	if err != nil {
		d.logger.Error("analysis refresh failed", "err", err)
		d.writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	d.cache.Set(a)
	d.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "analysis": a})
}

func (d *Dashboard) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		d.logger.Error("encode response", "err", err)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Configuration and logging
	var level *slog.LevelVar
	conf, err := config.Init(func(c *config.Config) {
		if level != nil {
			level.Set(logger.ParseLevel(c.LogLevel))
		}
	})
	if err != nil {
		slog.Error("could not load configuration", "err", err)
		os.Exit(1)
	}
	if err := conf.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log, lvl := logger.New(conf.LogLevel)
	level = lvl
	slog.SetDefault(log)

	// 2. Dependencies
	a, err := app.New(ctx, conf, log)
	if err != nil {
		log.Error("could not build application", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	var an analyzer
	if a.Analyzer != nil {
		an = a.Analyzer
		seeded, err := a.Loader.SeedIfEmpty(ctx, a.Cleaned.Load())
		if err != nil {
			log.Warn("seeding applicants failed", "err", err)
		} else if seeded > 0 {
			log.Info("seeded applicants from cleaned corpus", "rows", seeded)
		}
	} else {
		log.Warn("no database configured, analysis is disabled")
	}

	dashboard, err := NewDashboard(ctx, a.Pipeline, an, log)
	if err != nil {
		log.Error("could not build dashboard", "err", err)
		os.Exit(1)
	}

	// 3. Serve until interrupted
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", conf.API.Port),
		Handler:           dashboard.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", "addr", "http://localhost"+srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
