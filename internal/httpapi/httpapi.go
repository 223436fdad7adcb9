// Package httpapi is the external HTTP surface driving the tile-request
// coordinator (C18): a tile endpoint, a minimal EDR point-query
// endpoint, and a health check, wired with the teacher's chi middleware
// stack (internal/middleware) and CORS configuration.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/jcom-dev/weathergrid/internal/coordinator"
	custommw "github.com/jcom-dev/weathergrid/internal/middleware"
	"github.com/jcom-dev/weathergrid/internal/query"
	"github.com/jcom-dev/weathergrid/internal/ratelimit"
	"github.com/jcom-dev/weathergrid/internal/wmserr"
)

// PointReader is the subset of *grid.Reader the EDR position handler
// calls, resolved per-request from the catalog entry the EDR model
// query names.
type PointReader interface {
	ReadPoint(ctx context.Context, lon, lat float64) (float32, bool, error)
}

// EDRResolver opens a point reader for a resolved catalog entry's
// storage path. Kept as an interface so tests can stub it without a
// store/chunk-cache pair.
type EDRResolver interface {
	Resolve(ctx context.Context, model, parameter string, ts query.TimeSpec) (PointReader, error)
}

// Server wires the coordinator and EDR resolver into chi handlers.
type Server struct {
	Coordinator    *coordinator.Coordinator
	EDR            EDRResolver
	AllowedOrigins []string
	RateLimiter    *ratelimit.Limiter // nil disables rate limiting (e.g. no Redis configured)
}

// rateLimiterAdapter bridges ratelimit.Limiter to
// middleware.RateLimiterService, following the teacher's
// rateLimiterAdapter in cmd/api/main.go (avoids an import cycle between
// middleware and ratelimit).
type rateLimiterAdapter struct{ l *ratelimit.Limiter }

func (a *rateLimiterAdapter) Check(ctx context.Context, clientID string) (*custommw.RateLimitResult, error) {
	r, err := a.l.Check(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return &custommw.RateLimitResult{
		Allowed: r.Allowed, MinuteRemaining: r.MinuteRemaining, HourRemaining: r.HourRemaining,
		MinuteReset: r.MinuteReset, HourReset: r.HourReset, RetryAfter: r.RetryAfter,
	}, nil
}

// NewLimiterFromRedis is a convenience constructor mirroring the
// teacher's direct redis.Client wiring in cmd/api/main.go.
func NewLimiterFromRedis(client *redis.Client) *ratelimit.Limiter {
	return ratelimit.New(client)
}

// Router builds the chi router: middleware stack, health check, tile
// endpoint, and EDR position endpoint.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)
	r.Use(custommw.Logger)
	r.Use(custommw.Recoverer)
	r.Use(custommw.Timeout(30 * time.Second))
	r.Use(custommw.SecurityHeaders)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	tiles := chi.NewRouter()
	tiles.Use(custommw.ContentType("image/png"))
	if s.RateLimiter != nil {
		ext := custommw.NewExternalRateLimiter(&rateLimiterAdapter{s.RateLimiter})
		tiles.Use(ext.Middleware)
	}
	tiles.Get("/{layer}/{style}/{z}/{x}/{y}.png", s.handleTile)
	r.Mount("/tiles", tiles)

	r.Get("/edr/collections/{model}/position", s.handleEDRPosition)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	z, errZ := strconv.Atoi(chi.URLParam(r, "z"))
	x, errX := strconv.Atoi(chi.URLParam(r, "x"))
	y, errY := strconv.Atoi(chi.URLParam(r, "y"))
	if errZ != nil || errX != nil || errY != nil {
		wmserr.WriteHTTP(w, wmserr.New(wmserr.KindBadRequest, "z/x/y must be integers"))
		return
	}

	ts, err := parseTimeSpec(r.URL.Query())
	if err != nil {
		wmserr.WriteHTTP(w, err)
		return
	}

	req := coordinator.Request{
		Layer: chi.URLParam(r, "layer"), Style: chi.URLParam(r, "style"),
		Z: z, X: x, Y: y, TimeSpec: ts,
	}

	png, err := s.Coordinator.Serve(r.Context(), req)
	if err != nil {
		wmserr.WriteHTTP(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) handleEDRPosition(w http.ResponseWriter, r *http.Request) {
	model := chi.URLParam(r, "model")
	parameter := r.URL.Query().Get("parameter-name")
	if parameter == "" {
		wmserr.WriteHTTP(w, wmserr.New(wmserr.KindBadRequest, "parameter-name is required"))
		return
	}

	lon, lat, err := parseCoords(r.URL.Query().Get("coords"))
	if err != nil {
		wmserr.WriteHTTP(w, err)
		return
	}

	ts, err := parseTimeSpec(r.URL.Query())
	if err != nil {
		wmserr.WriteHTTP(w, err)
		return
	}

	reader, err := s.EDR.Resolve(r.Context(), model, parameter, ts)
	if err != nil {
		wmserr.WriteHTTP(w, err)
		return
	}

	value, ok, err := reader.ReadPoint(r.Context(), lon, lat)
	if err != nil {
		wmserr.WriteHTTP(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"value":null}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"value":` + strconv.FormatFloat(float64(value), 'g', -1, 32) + `}`))
}
