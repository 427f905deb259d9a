// Package devserver is an in-process MovieZone backend. It speaks the same
// REST contract as the production API, which makes it the counterpart the
// client packages are tested against and what cmd/devserver runs locally.
package devserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-moviezone-client/internal/config"
	"github.com/jrsteele09/go-moviezone-client/token"
	"github.com/jrsteele09/go-moviezone-client/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-moviezone-client/token/refresh/repofake"
	"github.com/jrsteele09/go-moviezone-client/users"
	userrepofake "github.com/jrsteele09/go-moviezone-client/users/repofake"
)

// APIPrefix is where the REST API is mounted.
const APIPrefix = "/api"

// Config is the part of the application configuration the backend reads.
type Config interface {
	config.EnvConfig
	config.TokenConfig
	config.CorsConfig
	config.DevServerConfig
}

// ResetNotifier delivers a password reset link. The backend has no mail
// transport; the default notifier logs the link.
type ResetNotifier func(user *users.User, uid, resetToken string)

type Server struct {
	env        string
	router     chi.Router
	routes     []string
	logger     zerolog.Logger
	cors       config.CorsConfig
	nowFunc    func() time.Time
	revocation token.RevokedTokenCache

	userRepo users.UserRepo
	tokens   *token.Manager
	catalog  *Catalog
	media    *mediaStore
	resets   *resetTokens
	notify   ResetNotifier

	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithNowFunc replaces the clock used for token expiry, reset links and
// timestamps.
func WithNowFunc(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = nowFunc
	}
}

// WithRevokedTokenCache shares access token revocations, e.g. through Redis.
func WithRevokedTokenCache(cache token.RevokedTokenCache) Option {
	return func(s *Server) {
		s.revocation = cache
	}
}

func WithUserRepo(repo users.UserRepo) Option {
	return func(s *Server) {
		s.userRepo = repo
	}
}

func WithResetNotifier(notify ResetNotifier) Option {
	return func(s *Server) {
		s.notify = notify
	}
}

// New builds the backend and seeds the demo account, plus the sample catalog
// when the configuration asks for it.
func New(cfg Config, options ...Option) (*Server, error) {
	s := &Server{
		env:     cfg.GetEnv(),
		logger:  zerolog.Nop(),
		cors:    cfg,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.userRepo == nil {
		s.userRepo = userrepofake.NewFakeUserRepo()
	}
	if s.notify == nil {
		s.notify = s.logResetLink
	}

	signer, err := token.NewHMACSigner(cfg.GetJWTSecret())
	if err != nil {
		return nil, fmt.Errorf("[devserver.New] signer: %w", err)
	}

	refreshManager := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), cfg.GetRefreshTokenExpiry(),
		refresh.WithNowFunc(s.now),
		refresh.WithTokenLength(cfg.GetRefreshTokenLength()),
	)
	tokenOptions := []token.ManagerOption{
		token.WithAccessTokenExpiry(cfg.GetAccessTokenExpiry()),
		token.WithNowFunc(s.now),
		token.WithRefreshRotation(cfg.GetRotateRefreshTokens()),
	}
	if s.revocation != nil {
		tokenOptions = append(tokenOptions, token.WithRevokedTokenCache(s.revocation))
	}
	s.tokens = token.New(refreshManager, s.userRepo, signer, tokenOptions...)

	s.catalog = NewCatalog(s.now)
	s.media = newMediaStore()
	s.resets = newResetTokens(s.now, time.Hour)

	s.registry = prometheus.NewRegistry()
	s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviezone_devserver",
		Name:      "http_requests_total",
		Help:      "Requests served, by route and status code.",
	}, []string{"method", "route", "code"})
	s.registry.MustRegister(s.requests)

	if err := s.seed(cfg); err != nil {
		return nil, fmt.Errorf("[devserver.New] seed: %w", err)
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Catalog returns the movie catalog so tests and tools can inspect or seed it.
func (s *Server) Catalog() *Catalog {
	return s.catalog
}

// Users returns the account repository.
func (s *Server) Users() users.UserRepo {
	return s.userRepo
}

// Registry holds the backend's metrics, served on /metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Server) now() time.Time {
	return s.nowFunc()
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		s.logger.Debug().Str("route", route).Msg("registered")
	}
}

func (s *Server) logResetLink(user *users.User, uid, resetToken string) {
	s.logger.Info().
		Str("user", user.Username).
		Str("link", fmt.Sprintf("/reset-password/%s/%s", uid, resetToken)).
		Msg("password reset requested")
}

type contextKey string

const contextKeyClaims contextKey = "claims"

func withClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, contextKeyClaims, claims)
}

// claimsFrom returns the claims of the authenticated caller, nil for anonymous requests.
func claimsFrom(ctx context.Context) *token.Claims {
	claims, _ := ctx.Value(contextKeyClaims).(*token.Claims)
	return claims
}
