package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashboard/hashboard/internal/auth"
	"github.com/hashboard/hashboard/internal/billing"
	billingstripe "github.com/hashboard/hashboard/internal/billing/stripe"
	"github.com/hashboard/hashboard/internal/dataset"
	"github.com/hashboard/hashboard/internal/email"
	"github.com/hashboard/hashboard/internal/handler"
	"github.com/hashboard/hashboard/internal/middleware"
	"github.com/hashboard/hashboard/internal/reset"
	"github.com/hashboard/hashboard/internal/store"
)

type Config struct {
	BaseURL     string
	TokenSecret []byte
	Stripe      billingstripe.Config
	EmailClient *email.Client
	Dataset     dataset.Config
}

type Server struct {
	db          *sql.DB
	accounts    *store.AccountStore
	sessions    *store.SessionStore
	resetTokens *store.ResetTokenStore
	tokens      *auth.TokenAuthority
	authH       *handler.AuthHandler
	checkoutH   *handler.CheckoutHandler
	resetH      *handler.ResetHandler
	datasetH    *handler.DatasetHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

// New constructs the full dependency graph once; everything downstream takes
// its collaborators explicitly.
func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	accounts := store.NewAccountStore(db)
	sessions := store.NewSessionStore(db)
	resetTokens := store.NewResetTokenStore(db)

	verifier := auth.NewVerifier(accounts)

	var tokens *auth.TokenAuthority
	if len(cfg.TokenSecret) > 0 {
		tokens = auth.NewTokenAuthority(cfg.TokenSecret)
	}

	var provider billing.Provider
	if cfg.Stripe.SecretKey != "" {
		provider = billingstripe.NewClient(cfg.Stripe)
	}
	orchestrator := billing.NewOrchestrator(provider, accounts, logger.With("component", "billing"))

	var sender reset.Sender
	if cfg.EmailClient != nil {
		sender = cfg.EmailClient
	}
	resetService := reset.NewService(accounts, resetTokens, sessions, sender, logger.With("component", "reset"))
	datasets := dataset.NewService(cfg.Dataset)

	return &Server{
		db:          db,
		accounts:    accounts,
		sessions:    sessions,
		resetTokens: resetTokens,
		tokens:      tokens,
		authH:       handler.NewAuthHandler(accounts, sessions, verifier, tokens, logger.With("component", "auth")),
		checkoutH:   handler.NewCheckoutHandler(orchestrator, logger.With("component", "checkout")),
		resetH:      handler.NewResetHandler(resetService),
		datasetH:    handler.NewDatasetHandler(datasets, logger.With("component", "dataset")),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessions
}

// ResetTokenStore returns the reset token store for cleanup tasks.
func (s *Server) ResetTokenStore() *store.ResetTokenStore {
	return s.resetTokens
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes, credential-adjacent ones rate-limited.
	mux.HandleFunc("GET /health", s.healthCheck)
	mux.HandleFunc("POST /api/register", s.rateLimited(s.authH.Register))
	mux.HandleFunc("POST /api/login", s.rateLimited(s.authH.Login))
	mux.HandleFunc("POST /api/reset/request", s.rateLimited(s.resetH.Request))
	mux.HandleFunc("POST /api/reset/redeem", s.rateLimited(s.resetH.Redeem))

	// Protected routes.
	authMw := middleware.RequireAuth(s.sessions, s.accounts, s.tokens)
	mux.Handle("POST /api/logout", authMw(http.HandlerFunc(s.authH.Logout)))
	mux.Handle("GET /api/session", authMw(http.HandlerFunc(s.authH.Session)))
	mux.Handle("POST /api/checkout", authMw(http.HandlerFunc(s.checkoutH.Create)))
	mux.Handle("GET /billing/return", authMw(http.HandlerFunc(s.checkoutH.Return)))
	mux.Handle("GET /api/datasets/{series}", authMw(http.HandlerFunc(s.datasetH.Get)))

	return middleware.RequestLogger(s.logger)(mux)
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
