// Package server is the composition root: it assembles the store, the
// view-state services, and the HTTP handlers, and owns startup/shutdown.
//
// DEPENDENCY FLOW:
//
//	sqlite.DB → (UserRepository, StudySpotRepository)
//	          → SessionService / CatalogService / ContactsService
//	          → handlers → chi routes
//
// Each layer receives interfaces, not concretions — services never import
// the sqlite package, handlers never see SQL.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/studyspot-app/studyspot/internal/auth"
	"github.com/studyspot-app/studyspot/internal/handler"
	"github.com/studyspot-app/studyspot/internal/middleware"
	sqliteRepo "github.com/studyspot-app/studyspot/internal/repository/sqlite"
	"github.com/studyspot-app/studyspot/internal/service"
)

// Config holds server configuration, loaded from the environment in main.
type Config struct {
	Port      int
	DBPath    string
	JWTSecret string
}

// Server owns the router, the database handle, and the catalog's live
// subscription. Everything it owns is torn down in Start's shutdown path.
type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	catalog *service.CatalogService
}

// New wires the full dependency graph and seeds the spot catalog.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	passwords := auth.NewPasswordService()

	db, err := sqliteRepo.New(cfg.DBPath, passwords, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// The catalog is reference data; populate it before anything reads.
	if err := db.Spots().Seed(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding study spots: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	session := service.NewSessionService(db.Users(), db.Spots(), passwords, logger)
	catalog := service.NewCatalogService(db.Spots(), logger)
	contacts := service.NewContactsService(db.Users(), logger)

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		catalog: catalog,
	}

	s.setupRoutes(tokens, session, catalog, contacts)
	return s, nil
}

// setupRoutes registers middleware and routes.
//
// ROUTE MAP:
//
//	POST   /api/auth/register      → create account, start session
//	POST   /api/auth/login         → authenticate, start session
//	POST   /api/auth/logout        → end session
//	GET    /api/spots              → list/search catalog (?q=&free=)
//	GET    /api/spots/events       → SSE stream of catalog snapshots
//	GET    /api/spots/{id}         → point lookup
//	GET    /api/me                 → current profile           (auth)
//	PUT    /api/me                 → update profile            (auth)
//	GET    /api/me/favorites       → resolved favorite spots   (auth)
//	PUT    /api/me/favorites/{id}  → add favorite              (auth)
//	DELETE /api/me/favorites/{id}  → remove favorite           (auth)
//	GET    /api/me/contacts        → resolved contacts         (auth)
//	POST   /api/me/contacts        → add contact               (auth)
func (s *Server) setupRoutes(
	tokens *auth.TokenService,
	session *service.SessionService,
	catalog *service.CatalogService,
	contacts *service.ContactsService,
) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	authHandler := handler.NewAuthHandler(session, tokens, s.logger)
	spotHandler := handler.NewSpotHandler(catalog, s.db.Spots(), s.logger)
	favHandler := handler.NewFavoriteHandler(session, s.db.Spots(), s.logger)
	contactHandler := handler.NewContactHandler(contacts, session, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/logout", authHandler.HandleLogout)

		r.Get("/spots", spotHandler.HandleList)
		r.Get("/spots/events", spotHandler.HandleEvents)
		r.Get("/spots/{id}", spotHandler.HandleGetByID)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/me", authHandler.HandleMe)
			r.Put("/me", authHandler.HandleUpdateProfile)

			r.Get("/me/favorites", favHandler.HandleList)
			r.Put("/me/favorites/{id}", favHandler.HandleAdd)
			r.Delete("/me/favorites/{id}", favHandler.HandleRemove)

			r.Get("/me/contacts", contactHandler.HandleList)
			r.Post("/me/contacts", contactHandler.HandleAdd)
		})
	})
}

// Start runs the HTTP server until SIGINT/SIGTERM and shuts down
// gracefully: stop accepting connections, drain in-flight requests, stop
// the catalog watch, close the database.
func (s *Server) Start() error {
	defer s.db.Close()
	defer s.catalog.Close()

	// Follow the live spot sequence for the server's lifetime; the SSE
	// endpoint and the search filter both read from the cell this feeds.
	if err := s.catalog.Refresh(context.Background()); err != nil {
		return fmt.Errorf("starting catalog watch: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE responses stay open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
