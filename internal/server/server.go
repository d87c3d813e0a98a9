package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/marquee/apiserver/config"
	"github.com/marquee/apiserver/internal/auth"
	"github.com/marquee/apiserver/internal/db"
	"github.com/marquee/apiserver/internal/handlers"
	"github.com/marquee/apiserver/internal/logging"
	"github.com/marquee/apiserver/internal/mq"
	"github.com/marquee/apiserver/internal/services"
	"github.com/marquee/apiserver/internal/storage"
	"github.com/marquee/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
	logger     *slog.Logger
}

// New constructs a Server: it opens the database, the optional poster store
// and broker, builds the auth core and mounts every route.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Log, cfg.Env)

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open mq: %w", err)
	}

	// Leave the interfaces nil when a backend is disabled so services skip it.
	var events services.EventPublisher
	if broker != nil {
		events = mq.NewEventPublisher(broker, cfg.MQ.EventsChannel)
	}
	var posters services.PosterStore
	if objects != nil {
		posters = objects
	}

	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:    []byte(cfg.Auth.JWTSecret),
		Algorithm: cfg.Auth.JWTAlgorithm,
		Lifetime:  cfg.Auth.JWTTTL,
		Issuer:    cfg.Auth.JWTIssuer,
	})
	if err != nil {
		closeAll(dbConn, broker)
		return nil, fmt.Errorf("token service: %w", err)
	}

	userService := services.NewUserService(store.NewUserRepository(dbConn), hasher, events)
	movieService := services.NewMovieService(store.NewMovieRepository(dbConn), posters, events)

	authn, err := auth.NewAuthenticator(hasher, tokens, auth.NewEngine(auth.DefaultPermissionModel()), userService,
		auth.WithLogger(logger))
	if err != nil {
		closeAll(dbConn, broker)
		return nil, err
	}

	guard := handlers.NewGuard(authn)
	authHandler := handlers.NewAuthHandler(authn, userService,
		handlers.NewLoginLimiter(cfg.Auth.LoginRequests, cfg.Auth.LoginWindow))

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		logging.HTTPMiddleware(logger),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/token", func(r chi.Router) {
		handlers.TokenRouter(r, authHandler)
	})
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler, guard)
	})
	router.Route("/movies", func(r chi.Router) {
		handlers.MovieRouter(r, movieService, guard)
	})
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r, userService, authn, guard)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server configured",
		"port", port,
		"storage", cfg.Storage.Backend,
		"mq", cfg.MQ.Backend,
		"jwt_alg", cfg.Auth.JWTAlgorithm,
		"jwt_ttl", cfg.Auth.JWTTTL.String(),
	)

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil once Shutdown has been called.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the database and broker.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	closeAll(s.db, s.broker)
	return err
}

func closeAll(dbConn *sql.DB, broker *mq.MQ) {
	if dbConn != nil {
		_ = dbConn.Close()
	}
	if broker != nil {
		_ = broker.Close()
	}
}
