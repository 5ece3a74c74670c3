package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/camden-git/dopplerindex/logging"
	"github.com/camden-git/dopplerindex/metrics"
	"github.com/camden-git/dopplerindex/realtime"
)

// RouterConfig carries everything the HTTP API serves.
type RouterConfig struct {
	Catalog     *CatalogHandler
	Scans       *ScanHandler
	Hub         *realtime.Hub
	Metrics     *metrics.Metrics
	CORSOrigins []string
	Log         *logging.Logger
}

// requestLogger logs one line per request at info level.
func requestLogger(log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(cfg.Log.Tag(logging.TagHTTP)))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(corsOptions).Handler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", cfg.Catalog.ListCatalog)
		r.Get("/stats", cfg.Catalog.Stats)

		r.Route("/acquisitions", func(r chi.Router) {
			r.Get("/unprocessed", cfg.Catalog.ListUnprocessed)
			r.Get("/{acquisition_id}", cfg.Catalog.GetAcquisition)
		})
		r.Get("/intermediates/latest", cfg.Catalog.LatestIntermediates)
		r.Get("/finals/incomplete", cfg.Catalog.ListIncompleteFinals)

		if cfg.Scans != nil {
			r.Route("/scans", func(r chi.Router) {
				r.Post("/", cfg.Scans.StartScan)
				r.Get("/latest", cfg.Scans.LatestScan)
			})
		}
	})

	if cfg.Hub != nil {
		r.Get("/ws", cfg.Hub.ServeWS)
	}
	r.Handle("/metrics", cfg.Metrics.Handler())

	return r
}
