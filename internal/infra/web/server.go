package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-gpt-bot/internal/domain/ports/repository"
	"telegram-gpt-bot/internal/infra/db/postgres"
)

// StatsProvider serves the aggregate admin snapshot.
type StatsProvider interface {
	Totals(ctx context.Context) (*postgres.Stats, error)
}

// Server is the admin HTTP surface: health, metrics and a small JSON API
// behind JWT auth.
type Server struct {
	auth   *AuthManager
	secret string
	stats  StatsProvider
	tarifs repository.TarifRepository
	codes  repository.CodeRepository
	log    zerolog.Logger

	httpSrv *http.Server
}

func NewServer(addr, secret string, stats StatsProvider, tarifs repository.TarifRepository, codes repository.CodeRepository, logger *zerolog.Logger) *Server {
	s := &Server{
		auth:   NewAuthManager(secret, 30*time.Minute),
		secret: secret,
		stats:  stats,
		tarifs: tarifs,
		codes:  codes,
		log:    logger.With().Str("component", "web").Logger(),
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.loginHandler())

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/stats", s.statsHandler())
			r.Get("/tarifs", s.tarifsHandler())
			r.Post("/codes", s.codesCreateHandler())
		})
	})
	return r
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.secret == "" {
			s.log.Error().Msg("admin secret is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("admin server listening")
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
