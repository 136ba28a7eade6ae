package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/rl1809/gift-market/internal/logger"
	"github.com/rl1809/gift-market/internal/metrics"
)

type RouterConfig struct {
	Handler  *HTTPHandler
	Logger   *logger.Logger
	AdminIDs []int64

	// ArtworkDir is served read-only under ArtworkPrefix.
	ArtworkDir    string
	ArtworkPrefix string
}

func NewRouter(cfg RouterConfig) *chi.Mux {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()

	r.Use(Recovery(log))
	r.Use(RequestID(log))
	r.Use(Logging(log))
	r.Use(metrics.InstrumentHandler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", headerRequestID, headerUserID},
		ExposedHeaders: []string{headerRequestID},
		MaxAge:         300,
	}))

	r.Get("/health", cfg.Handler.HealthCheck)
	r.Handle("/metrics", metrics.Handler())

	if cfg.ArtworkDir != "" && cfg.ArtworkPrefix != "" {
		prefix := "/" + strings.Trim(cfg.ArtworkPrefix, "/")
		fileServer := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(cfg.ArtworkDir)))
		r.Handle(prefix+"/*", fileServer)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/", cfg.Handler.EnsureUser)
			r.Get("/", cfg.Handler.GetProfile)
		})

		r.Get("/items", cfg.Handler.ListItems)
		r.Get("/items/{itemID}", cfg.Handler.GetItem)

		r.Post("/purchase", cfg.Handler.Purchase)

		r.Group(func(r chi.Router) {
			r.Use(LimitBody(cfg.Handler.uploadLimit()))
			r.Use(AdminOnly(cfg.AdminIDs))
			r.Post("/admin/items", cfg.Handler.AddItem)
		})
	})

	return r
}
