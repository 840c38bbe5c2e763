package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/sarthi/internal/config"
	"github.com/npezzotti/sarthi/internal/database"
	"github.com/npezzotti/sarthi/internal/server"
)

type SarthiApp struct {
	log            *log.Logger
	db             database.SarthiRepository
	mux            *http.Server
	cs             *server.ChatServer
	signingKey     []byte
	allowedOrigins []string
	storeTimeout   time.Duration
}

func NewSarthiApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.SarthiRepository, cfg *config.Config) *SarthiApp {
	s := &SarthiApp{
		log:            logger,
		db:             db,
		cs:             cs,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
		storeTimeout:   cfg.StoreTimeout,
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = config.DefaultStoreTimeout
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.register)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("/api/profile", s.authMiddleware(s.profile))
	mux.Handle("/api/traits", s.authMiddleware(s.traits))
	mux.Handle("/api/preferences", s.authMiddleware(s.preferences))
	mux.Handle("GET /api/match", s.authMiddleware(s.match))
	mux.Handle("POST /api/feedback", s.authMiddleware(s.feedback))
	mux.Handle("GET /api/messages/{receiverId}", s.authMiddleware(s.getMessages))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)
	if logger != nil {
		h = handlers.CombinedLoggingHandler(logger.Writer(), h)
	}

	s.mux = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *SarthiApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *SarthiApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
