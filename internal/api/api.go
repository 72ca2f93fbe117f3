// Package api serves the loaded warehouse as read-only JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/musicdw/internal/config"
	"github.com/sells-group/musicdw/internal/monitoring"
	"github.com/sells-group/musicdw/internal/warehouse"
)

// WarehouseReader is the query surface the API needs. *warehouse.Reader
// satisfies it.
type WarehouseReader interface {
	Genres(ctx context.Context) ([]warehouse.GenreSummary, error)
	Genre(ctx context.Context, genre string) (*warehouse.GenreSummary, error)
	Facts(ctx context.Context, genre string) ([]warehouse.Fact, error)
}

// Options configures the handler.
type Options struct {
	Reader WarehouseReader
	// Runs, when set, adds run history health to /health.
	Runs        monitoring.RunLister
	Alerts      config.AlertsConfig
	CORSOrigins []string
}

// GenreDetail is the body of GET /genres/{genre}.
type GenreDetail struct {
	warehouse.GenreSummary
	Facts []warehouse.Fact `json:"facts"`
}

type server struct {
	opts Options
	log  *zap.Logger
}

// NewHandler builds the router.
func NewHandler(opts Options) http.Handler {
	s := &server{opts: opts, log: zap.L().With(zap.String("component", "api"))}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Get("/genres", s.listGenres)
	r.Get("/genres/{genre}", s.getGenre)
	return r
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.opts.Runs != nil {
		snap, err := monitoring.NewCollector(s.opts.Runs).Collect(r.Context(), 20)
		if err != nil {
			s.log.Warn("api: collect run health", zap.Error(err))
			body["status"] = "unknown"
		} else {
			body["runs"] = snap
			if alerts := monitoring.Evaluate(s.opts.Alerts, snap); len(alerts) > 0 {
				body["status"] = "degraded"
				body["alerts"] = alerts
			}
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *server) listGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := s.opts.Reader.Genres(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	if genres == nil {
		genres = []warehouse.GenreSummary{}
	}
	writeJSON(w, http.StatusOK, genres)
}

func (s *server) getGenre(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "genre")
	summary, err := s.opts.Reader.Genre(r.Context(), name)
	if errors.Is(err, warehouse.ErrGenreNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "genre not found"})
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	facts, err := s.opts.Reader.Facts(r.Context(), name)
	if err != nil {
		s.fail(w, err)
		return
	}
	if facts == nil {
		facts = []warehouse.Fact{}
	}
	writeJSON(w, http.StatusOK, GenreDetail{GenreSummary: *summary, Facts: facts})
}

func (s *server) fail(w http.ResponseWriter, err error) {
	s.log.Error("api: query failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
