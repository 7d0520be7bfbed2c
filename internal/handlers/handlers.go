package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"

	"sports-analytics/internal/alerts"
	"sports-analytics/internal/api"
	"sports-analytics/internal/bets"
	"sports-analytics/internal/logger"
	"sports-analytics/internal/metrics"
	"sports-analytics/internal/session"
)

const maxBodyBytes = 1 << 20

// Session is the part of the session controller the API exposes.
type Session interface {
	Snapshot() session.Snapshot
	Admit(path string) session.Decision
	Login(ctx context.Context, username, password string) (session.Snapshot, error)
	Logout(ctx context.Context) string
	Refresh(ctx context.Context) (session.Snapshot, error)
}

// DataFetcher reads the analytics backend with the session's credentials.
type DataFetcher interface {
	FetchJSON(ctx context.Context, endpoint string, params url.Values, out interface{}) error
	CheckSubscription(ctx context.Context) (string, error)
}

// Accounts manages backend accounts: signup, email verification, password
// resets and subscription cancellation.
type Accounts interface {
	Register(ctx context.Context, reg api.Registration) (string, error)
	VerifyEmail(ctx context.Context, uid, token string) (string, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ConfirmPasswordReset(ctx context.Context, uid, token, password string) (string, error)
	CancelSubscription(ctx context.Context) (string, error)
}

// BetStore persists tracked bets.
type BetStore interface {
	AddBet(ctx context.Context, b bets.Bet) (bets.Bet, error)
	GetBet(ctx context.Context, id string) (bets.Bet, error)
	ListBets(ctx context.Context) ([]bets.Bet, error)
	ListActiveBets(ctx context.Context) ([]bets.Bet, error)
	ListBetsByGame(ctx context.Context, gameID string) ([]bets.Bet, error)
	DeleteBet(ctx context.Context, id string) error
	UpdateStake(ctx context.Context, id string, stake decimal.Decimal) error
	SetActive(ctx context.Context, id string, active bool) error
}

// Config holds request defaults and server settings for the API.
type Config struct {
	DefaultBankroll float64
	KellyFraction   float64 // Applied to Kelly stakes when the request omits one
	MinArbProfitPct float64
	CORSOrigins     []string
	Timeout         time.Duration // Per-request deadline; 0 = 30s
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	session  Session
	data     DataFetcher
	accounts Accounts
	bets     BetStore
	notifier *alerts.Notifier
	metrics  *metrics.Metrics
	cfg      Config
}

// NewHandler creates a new handler with dependencies. A nil notifier gets a
// default one; a nil metrics set disables /metrics.
func NewHandler(sess Session, data DataFetcher, accounts Accounts, store BetStore, notifier *alerts.Notifier, m *metrics.Metrics, cfg Config) *Handler {
	if notifier == nil {
		notifier = alerts.NewNotifier(5 * time.Minute)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Handler{
		session:  sess,
		data:     data,
		accounts: accounts,
		bets:     store,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
	}
}

// Routes builds the API router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.cfg.Timeout))

	if len(h.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", h.HealthCheck)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/calculators", func(r chi.Router) {
			r.Post("/convert", h.Convert)
			r.Post("/implied", h.Implied)
			r.Post("/ev", h.ExpectedValue)
			r.Post("/arbitrage", h.Arbitrage)
			r.Post("/kelly", h.Kelly)
			r.Post("/hedge", h.Hedge)
			r.Post("/parlay", h.Parlay)
			r.Post("/no-vig", h.NoVig)
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Get("/admit", h.Admit)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Post("/refresh", h.Refresh)
			r.Get("/subscription", h.Subscription)
			r.Post("/cancel-subscription", h.CancelSubscription)
			r.Post("/register", h.Register)
			r.Post("/verify-email", h.VerifyEmail)
			r.Post("/password-reset", h.RequestPasswordReset)
			r.Post("/password-reset/confirm", h.ConfirmPasswordReset)
		})

		// Everything below needs an active subscription.
		r.Group(func(r chi.Router) {
			r.Use(h.requireSubscription)

			r.Post("/scan/arbitrage", h.ScanArbitrage)
			r.Post("/scan/value", h.ScanValue)

			r.Route("/bets", func(r chi.Router) {
				r.Get("/", h.ListBets)
				r.Post("/", h.CreateBet)
				r.Post("/scan", h.ScanBets)
				r.Get("/{id}", h.GetBet)
				r.Patch("/{id}", h.UpdateBet)
				r.Delete("/{id}", h.DeleteBet)
				r.Post("/{id}/hedge", h.HedgeBet)
			})

			r.Get("/data/{endpoint}", h.FetchData)
		})
	})

	return r
}

// HealthCheck returns service health along with the session state.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "sports-analytics",
		"session":   h.session.Snapshot().State,
		"timestamp": time.Now().UTC(),
	})
}

// requireSubscription maps the session state onto an HTTP answer for gated
// endpoints: loading 503, anonymous 401, lapsed subscription 402.
func (h *Handler) requireSubscription(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch h.session.Snapshot().State {
		case session.AuthenticatedActive:
			next.ServeHTTP(w, r)
		case session.Loading:
			w.Header().Set("Retry-After", "1")
			respondError(w, http.StatusServiceUnavailable, "session is still loading")
		case session.AuthenticatedInactive:
			respondError(w, http.StatusPaymentRequired, "an active subscription is required")
		default:
			respondError(w, http.StatusUnauthorized, "login required")
		}
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("encoding response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
