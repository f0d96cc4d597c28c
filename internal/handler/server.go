// Package handler exposes the rewards services over a JSON HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"rewardhub/internal/metrics"
	"rewardhub/internal/model"
	"rewardhub/internal/service"
)

// Accounts is the sign-up, sign-in and referral surface.
type Accounts interface {
	Register(ctx context.Context, in service.Registration) (*service.SignIn, error)
	Login(ctx context.Context, email, password string) (*service.SignIn, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*model.User, error)
	Eligibility(ctx context.Context, userID string) (*service.Eligibility, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

// Tasks is the task completion surface.
type Tasks interface {
	ListForUser(ctx context.Context, userID string, now time.Time) ([]*model.TaskStatus, error)
	CanComplete(ctx context.Context, userID, taskID string, now time.Time) (*model.TaskStatus, error)
	Complete(ctx context.Context, userID, taskID string, now time.Time) (*service.CompletionResult, error)
}

// Withdrawals is the withdrawal workflow surface.
type Withdrawals interface {
	Request(ctx context.Context, userID, rewardID string, meta model.RedemptionMetadata) (*model.WithdrawalRequest, error)
	SetStatus(ctx context.Context, actor model.Actor, requestID string, status model.WithdrawalStatus) (*model.WithdrawalRequest, error)
	Get(ctx context.Context, actor model.Actor, requestID string) (*model.WithdrawalRequest, error)
	ListMine(ctx context.Context, userID string, limit int) ([]*model.WithdrawalRequest, error)
	ListAll(ctx context.Context, actor model.Actor, status model.WithdrawalStatus, limit int) ([]*model.WithdrawalRequest, error)
}

// Ledger is the balance adjustment and journal surface.
type Ledger interface {
	AdminCredit(ctx context.Context, actor model.Actor, userID string, amount int64, reason string) (*model.User, error)
	AdminDebit(ctx context.Context, actor model.Actor, userID string, amount int64, reason string) (*model.User, error)
	History(ctx context.Context, userID string, limit int) ([]*model.Transaction, error)
}

// Catalog is the tasks, rewards, settings and admin reporting surface.
type Catalog interface {
	ListRewards(ctx context.Context, all bool) ([]*model.Reward, error)
	GetReward(ctx context.Context, id string) (*model.Reward, error)
	ListTasks(ctx context.Context) ([]*model.Task, error)
	CreateTask(ctx context.Context, actor model.Actor, in service.TaskInput) (*model.Task, error)
	UpdateTask(ctx context.Context, actor model.Actor, id string, in service.TaskInput) (*model.Task, error)
	DeleteTask(ctx context.Context, actor model.Actor, id string) error
	CreateReward(ctx context.Context, actor model.Actor, in service.RewardInput) (*model.Reward, error)
	UpdateReward(ctx context.Context, actor model.Actor, id string, in service.RewardInput) (*model.Reward, error)
	DeleteReward(ctx context.Context, actor model.Actor, id string) error
	Settings(ctx context.Context) (*model.Settings, error)
	UpdateSettings(ctx context.Context, actor model.Actor, in model.Settings) (*model.Settings, error)
	ListUsers(ctx context.Context, actor model.Actor, limit, offset int) ([]*model.User, error)
	Analytics(ctx context.Context, actor model.Actor) (*model.Analytics, error)
}

// Ads is the popup ad surface.
type Ads interface {
	ListActive(ctx context.Context) ([]*model.PopupAd, error)
	StartView(ctx context.Context, userID, adID string, now time.Time) (*model.AdView, error)
	ClaimView(ctx context.Context, userID, viewID string, now time.Time) (*service.ClaimResult, error)
	CreateAd(ctx context.Context, actor model.Actor, in service.AdInput) (*model.PopupAd, error)
	SetAdActive(ctx context.Context, actor model.Actor, id string, active bool) error
}

// Dependencies holds everything the API needs.
type Dependencies struct {
	Accounts    Accounts
	Tasks       Tasks
	Withdrawals Withdrawals
	Ledger      Ledger
	Catalog     Catalog
	Ads         Ads
	Metrics     *metrics.Metrics

	// Gatherer serves /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Health reports database reachability on /health.
	Health   func(ctx context.Context) error

	RequestTimeout time.Duration
	RateLimit      *RateLimiter
}

// Server is the HTTP API.
type Server struct {
	deps Dependencies
	now  func() time.Time
}

// NewServer creates a new Server.
func NewServer(deps Dependencies) *Server {
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 15 * time.Second
	}
	return &Server{deps: deps, now: time.Now}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(s.deps.Metrics.Instrument(routePattern))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.deps.RequestTimeout))

	r.Get("/health", s.handleHealth)
	if s.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.deps.RateLimit.Handler)
			r.Post("/auth/register", s.handleRegister)
			r.Post("/auth/login", s.handleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Use(s.deps.RateLimit.Handler)

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/me", s.handleMe)
			r.Get("/me/eligibility", s.handleEligibility)
			r.Get("/me/transactions", s.handleTransactions)

			r.Get("/tasks", s.handleListTasks)
			r.Get("/tasks/{id}/status", s.handleTaskStatus)
			r.Post("/tasks/{id}/complete", s.handleCompleteTask)

			r.Get("/rewards", s.handleListRewards)
			r.Get("/rewards/{id}", s.handleGetReward)
			r.Get("/settings", s.handleSettings)

			r.Post("/withdrawals", s.handleRequestWithdrawal)
			r.Get("/withdrawals", s.handleListMyWithdrawals)
			r.Get("/withdrawals/{id}", s.handleGetWithdrawal)

			r.Get("/ads", s.handleListAds)
			r.Post("/ads/{id}/views", s.handleStartAdView)
			r.Post("/ads/views/{id}/claim", s.handleClaimAdView)

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireAdmin)

				r.Get("/withdrawals", s.handleAdminListWithdrawals)
				r.Post("/withdrawals/{id}/status", s.handleSetWithdrawalStatus)

				r.Get("/users", s.handleAdminListUsers)
				r.Get("/users/{id}", s.handleAdminGetUser)
				r.Post("/users/{id}/credit", s.handleAdminCredit)
				r.Post("/users/{id}/debit", s.handleAdminDebit)
				r.Get("/users/{id}/transactions", s.handleAdminUserTransactions)

				r.Get("/tasks", s.handleAdminListTasks)
				r.Post("/tasks", s.handleCreateTask)
				r.Put("/tasks/{id}", s.handleUpdateTask)
				r.Delete("/tasks/{id}", s.handleDeleteTask)

				r.Get("/rewards", s.handleAdminListRewards)
				r.Post("/rewards", s.handleCreateReward)
				r.Put("/rewards/{id}", s.handleUpdateReward)
				r.Delete("/rewards/{id}", s.handleDeleteReward)

				r.Put("/settings", s.handleUpdateSettings)
				r.Get("/analytics", s.handleAnalytics)

				r.Post("/ads", s.handleCreateAd)
				r.Put("/ads/{id}/active", s.handleSetAdActive)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health(r.Context()); err != nil {
			log.Warn().Err(err).Msg("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// routePattern labels metrics with the matched chi pattern.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

const maxBodyBytes = 1 << 20

// decode reads a JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &service.ValidationError{Reason: "malformed request body"}
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
