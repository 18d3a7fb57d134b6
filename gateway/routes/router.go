package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rentpool/gateway/middleware"
	"rentpool/native/rental"
)

// Config assembles the gateway surface: the JSON-RPC endpoint, read-only REST
// views over the pool, and the Prometheus scrape handler.
type Config struct {
	Engine      *rental.Engine
	RPCHandler  http.Handler
	RateLimiter *middleware.RateLimiter
	CORS        middleware.CORSConfig
}

func New(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.CORS))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	if cfg.RPCHandler != nil {
		r.Route("/rpc", func(sr chi.Router) {
			if cfg.RateLimiter != nil {
				sr.Use(cfg.RateLimiter.Middleware("rpc"))
			}
			sr.Handle("/", cfg.RPCHandler)
		})
	}

	if cfg.Engine != nil {
		views := &rentalViews{engine: cfg.Engine}
		r.Route("/v1", func(sr chi.Router) {
			if cfg.RateLimiter != nil {
				sr.Use(cfg.RateLimiter.Middleware("views"))
			}
			views.mount(sr)
		})
	}

	return r
}
