// Package server serves the live map, its GeoJSON layer and a small JSON API
// over the sync engine.
package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rostermap/internal/model"
	"github.com/sells-group/rostermap/internal/scheduler"
	"github.com/sells-group/rostermap/pkg/geocode"
)

//go:embed web/index.html
var webFS embed.FS

// Syncer runs and reports sync cycles.
type Syncer interface {
	RunOnce(ctx context.Context) (scheduler.Report, error)
	State() scheduler.State
	LastReport() (scheduler.Report, bool)
	Skipped() int64
}

// Entities is the read side of the entity store plus invalidation.
type Entities interface {
	Snapshot() []model.Entity
	Get(id string) (model.Entity, bool)
	Invalidate(id string) bool
}

// Layer is the rendered marker layer.
type Layer interface {
	GeoJSON() ([]byte, error)
	Version() uint64
}

// GeocodeStats reports resolver cache counters.
type GeocodeStats interface {
	Stats() geocode.Stats
}

// Deps are the collaborators the server reads from.
type Deps struct {
	Syncer   Syncer
	Entities Entities
	Layer    Layer
	// Geocoder is optional.
	Geocoder GeocodeStats
}

// MapOptions configure the map page.
type MapOptions struct {
	Title     string
	TileURL   string
	CenterLat float64
	CenterLon float64
	Zoom      int
	// Refresh is how often the page polls the layer.
	Refresh time.Duration
}

// Options configure the Server.
type Options struct {
	Port        int
	CORSOrigins []string
	Map         MapOptions
}

// Server wraps the HTTP server.
type Server struct {
	deps       Deps
	opts       Options
	page       *template.Template
	httpServer *http.Server
}

// New builds the router and HTTP server.
func New(deps Deps, opts Options) (*Server, error) {
	if deps.Syncer == nil || deps.Entities == nil || deps.Layer == nil {
		return nil, eris.New("server: syncer, entities and layer are required")
	}
	if opts.Map.Refresh <= 0 {
		opts.Map.Refresh = 30 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	page, err := template.ParseFS(webFS, "web/index.html")
	if err != nil {
		return nil, eris.Wrap(err, "server: parse map page")
	}

	s := &Server{deps: deps, opts: opts, page: page}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Routes returns the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "If-None-Match"},
		ExposedHeaders: []string{"ETag"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleIndex)
	r.Get("/markers.geojson", s.handleMarkers)
	r.Get("/status", s.handleStatus)
	r.Post("/sync", s.handleSync)
	r.Route("/entities", func(r chi.Router) {
		r.Get("/", s.handleListEntities)
		r.Get("/{id}", s.handleGetEntity)
		r.Post("/{id}/invalidate", s.handleInvalidate)
	})
	return r
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	zap.L().Info("server: listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	zap.L().Info("server: shutting down")
	return eris.Wrap(s.httpServer.Shutdown(ctx), "server: shutdown")
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			zap.L().Debug("server: request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
