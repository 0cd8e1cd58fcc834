package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/podforge/podforge/internal/api/handlers"
	"github.com/podforge/podforge/internal/api/middleware"
	"github.com/podforge/podforge/internal/auth"
	"github.com/podforge/podforge/internal/config"
	"github.com/podforge/podforge/internal/episode"
	"github.com/podforge/podforge/internal/jobs"
	"github.com/podforge/podforge/internal/queue"
	"github.com/podforge/podforge/internal/storage"
	"github.com/podforge/podforge/internal/vectorstore"
)

type Router struct {
	mux    *chi.Mux
	db     *pgxpool.Pool
	redis  *redis.Client
	cfg    *config.Config
	jwt    *auth.JWTMiddleware
	logger *slog.Logger
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config, logger *slog.Logger) *Router {
	return &Router{
		mux:    chi.NewRouter(),
		db:     db,
		redis:  rdb,
		cfg:    cfg,
		jwt:    auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
		logger: logger,
	}
}

func (rt *Router) Setup() (http.Handler, error) {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Services
	store, err := storage.New(rt.cfg.Storage)
	if err != nil {
		return nil, err
	}
	episodeStore := episode.NewStore(rt.db)
	queueClient := queue.NewClient(rt.cfg.Redis)
	tracker := jobs.NewTracker(rt.redis)

	vectorStore := vectorstore.NewPgVectorStore(rt.db)

	episodeH := handlers.NewEpisodeHandler(episodeStore, queueClient, tracker, vectorStore, rt.logger)
	jobH := handlers.NewJobHandler(tracker)
	exportH := handlers.NewExportHandler(episodeH, store, rt.logger)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		r.Route("/episodes", func(r chi.Router) {
			r.Post("/", episodeH.Create)
			r.Get("/", episodeH.List)
			r.Get("/{id}", episodeH.Get)
			r.Get("/{id}/status", episodeH.Status)
			r.Delete("/{id}", episodeH.Delete)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/{id}", jobH.Get)
		})

		r.Route("/export", func(r chi.Router) {
			r.Get("/{id}", exportH.Summary)
			r.Get("/{id}/audio", exportH.Audio)
			r.Get("/{id}/cover", exportH.Cover)
			r.Get("/{id}/transcript", exportH.Transcript)
		})
	})

	return r, nil
}
