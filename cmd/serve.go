package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/chapter-cli/internal/archive"
	"github.com/sells-group/chapter-cli/internal/model"
	"github.com/sells-group/chapter-cli/internal/store"
	"github.com/sells-group/chapter-cli/internal/version"
)

const shutdownTimeout = 10 * time.Second

var servePort int

// searcher is the archive surface used by the API.
type searcher interface {
	Search(ctx context.Context, query string, limit int) ([]archive.Hit, error)
}

// apiDeps are the read-only sources behind the HTTP API. Archive and Store
// may be nil.
type apiDeps struct {
	VersionsDir    string
	Archive        searcher
	Store          store.Store
	AllowedOrigins []string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve records, archive search and attempts over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		deps := apiDeps{VersionsDir: cfg.Data.VersionsDir, AllowedOrigins: cfg.Server.AllowedOrigins}

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			zap.L().Warn("attempt store unavailable, /api/attempts disabled", zap.Error(err))
		} else {
			defer st.Close() //nolint:errcheck
			deps.Store = st
		}
		if cfg.Archive.Enabled {
			a, err := archive.Open(ctx, cfg.Archive)
			if err != nil {
				zap.L().Warn("archive unavailable, /api/archive disabled", zap.Error(err))
			} else {
				defer a.Close() //nolint:errcheck
				deps.Archive = a
			}
		}

		port := resolvePort(servePort, cfg.Server.Port)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(deps),
			ReadHeaderTimeout: 10 * time.Second,
		}
		zap.L().Info("starting server", zap.Int("port", port))
		return runServer(ctx, srv)
	},
}

// resolvePort prefers the flag value over the configured port.
func resolvePort(flag, configured int) int {
	if flag != 0 {
		return flag
	}
	if configured != 0 {
		return configured
	}
	return 8080
}

// runServer serves until ctx is done, then shuts down gracefully.
func runServer(ctx context.Context, srv *http.Server) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func buildRouter(deps apiDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/records", deps.listRecords)
		r.Get("/records/{name}", deps.getRecord)
		r.Get("/archive/search", deps.searchArchive)
		r.Get("/attempts", deps.listAttempts)
		r.Get("/attempts/{id}", deps.getAttempt)
	})
	return r
}

func (d apiDeps) listRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := version.List(d.VersionsDir, version.Filter{ChapterID: q.Get("chapter_id"), Status: q.Get("status")})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []version.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (d apiDeps) getRecord(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		writeError(w, http.StatusBadRequest, eris.New("invalid record name"))
		return
	}
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}
	doc, err := version.Verify(filepath.Join(d.VersionsDir, name))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, doc)
	case errors.Is(err, version.ErrDigestMismatch):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, fs.ErrNotExist):
		writeError(w, http.StatusNotFound, eris.Errorf("record %s not found", name))
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (d apiDeps) searchArchive(w http.ResponseWriter, r *http.Request) {
	if d.Archive == nil {
		writeError(w, http.StatusServiceUnavailable, eris.New("archive is not available"))
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, eris.New("q is required"))
		return
	}
	limit := archive.DefaultSearchLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, eris.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	hits, err := d.Archive.Search(r.Context(), query, limit)
	if err != nil {
		status := http.StatusInternalServerError
		if model.IsKind(err, model.KindArchiveUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err)
		return
	}
	if hits == nil {
		hits = []archive.Hit{}
	}
	writeJSON(w, http.StatusOK, hits)
}

func (d apiDeps) listAttempts(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeError(w, http.StatusServiceUnavailable, eris.New("attempt store is not available"))
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	runs, err := d.Store.ListRuns(r.Context(), store.RunFilter{
		Status:  model.RunStatus(q.Get("status")),
		Locator: q.Get("locator"),
		Limit:   limit,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (d apiDeps) getAttempt(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeError(w, http.StatusServiceUnavailable, eris.New("attempt store is not available"))
		return
	}
	run, err := d.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	stages, err := d.Store.ListStages(r.Context(), run.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, attemptDetail{Run: run, Stages: stages})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("serve: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
