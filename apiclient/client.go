// Package apiclient is the HTTP core every MovieZone backend call goes through.
//
// A Client owns the bearer credential used for outgoing requests and the
// persisted credential pair. When the backend answers 401 it refreshes the
// access token once, coalescing concurrent refreshes, and re-issues the
// request. When the session cannot be recovered it clears the credentials and
// notifies the listeners registered with OnSessionExpired.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/go-moviezone-client/credentials"
)

const (
	DefaultBaseURL     = "http://localhost:8000/api/"
	DefaultRefreshPath = "users/token/refresh/"
	defaultTimeout     = 15 * time.Second

	HeaderRequestID = "X-Request-Id"
)

// Client is the shared HTTP client context. Construct it once and pass it to
// every collaborator that talks to the backend.
type Client struct {
	baseURL         *url.URL
	httpClient      *http.Client
	store           credentials.Store
	logger          zerolog.Logger
	metrics         *Metrics
	refreshPath     string
	proactiveLeeway time.Duration
	nowFunc         func() time.Time

	// credential and generation change together. generation is bumped on
	// every credential change so a 401 can tell whether it was answered to
	// the credential that is current now.
	mu         sync.Mutex
	credential string
	generation uint64

	refreshGroup singleflight.Group

	listenersMu  sync.Mutex
	listeners    map[uint64]func(error)
	nextListener uint64
}

type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithRefreshPath overrides the token refresh endpoint, relative to the base URL.
func WithRefreshPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.refreshPath = path
		}
	}
}

// WithProactiveRefresh refreshes the access token before a request when its
// exp claim falls within leeway. Zero disables it.
func WithProactiveRefresh(leeway time.Duration) Option {
	return func(c *Client) {
		c.proactiveLeeway = leeway
	}
}

// WithNowFunc sets the clock (primarily for testing)
func WithNowFunc(nowFunc func() time.Time) Option {
	return func(c *Client) {
		c.nowFunc = nowFunc
	}
}

// New creates a Client for the backend rooted at baseURL, persisting
// credentials in store.
func New(baseURL string, store credentials.Store, options ...Option) (*Client, error) {
	if store == nil {
		return nil, errors.New("[apiclient.New] credential store is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("[apiclient.New] invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("[apiclient.New] base URL %q must be http or https", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{
		baseURL:     u,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		store:       store,
		logger:      zerolog.Nop(),
		refreshPath: DefaultRefreshPath,
		nowFunc:     time.Now,
		listeners:   make(map[uint64]func(error)),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the root every request path is resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SetCredential sets the bearer token attached to every subsequent request.
// An empty token removes the Authorization header.
func (c *Client) SetCredential(token string) {
	c.mu.Lock()
	c.credential = token
	c.generation++
	c.mu.Unlock()
}

// Credential returns the current bearer token, empty when none is set.
func (c *Client) Credential() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credential
}

func (c *Client) snapshot() (string, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credential, c.generation
}

// Restore loads the persisted access token into the credential. It makes no
// network call and returns the token, or "" when nothing was persisted.
func (c *Client) Restore(ctx context.Context) (string, error) {
	token, err := c.store.Get(ctx, credentials.KeyAccessToken)
	if errors.Is(err, credentials.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("[Client.Restore] read access token: %w", err)
	}
	c.SetCredential(token)
	return token, nil
}

// StoreCredentials persists pair and makes its access token the credential.
// If persisting fails the credential is left unchanged.
func (c *Client) StoreCredentials(ctx context.Context, pair credentials.Pair) error {
	if pair.Access == "" {
		return errors.New("[Client.StoreCredentials] access token is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Put(ctx, pair.Entries()); err != nil {
		return fmt.Errorf("[Client.StoreCredentials] persist: %w", err)
	}
	c.credential = pair.Access
	c.generation++
	return nil
}

// ClearCredentials removes the persisted pair and the credential. The
// in-memory credential is cleared even when the store fails; that failure is
// returned. Clearing an empty session is a no-op.
func (c *Client) ClearCredentials(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearLocked(ctx)
}

func (c *Client) clearLocked(ctx context.Context) error {
	err := c.store.Delete(ctx, credentials.KeyAccessToken, credentials.KeyRefreshToken)
	c.credential = ""
	c.generation++
	if err != nil {
		return fmt.Errorf("[Client.ClearCredentials] delete: %w", err)
	}
	return nil
}

// OnSessionExpired registers fn to run when the session becomes
// irrecoverable, which for a UI means "redirect to login". It returns a
// function removing the registration.
func (c *Client) OnSessionExpired(fn func(error)) (remove func()) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

// expire clears the session if it is still at generation gen and notifies the
// listeners. It reports whether it did anything, which keeps the
// notification to one per failure when several requests observe it.
func (c *Client) expire(ctx context.Context, gen uint64, cause error) bool {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return false
	}
	if err := c.clearLocked(ctx); err != nil {
		c.logger.Error().Err(err).Msg("failed to clear persisted credentials")
	}
	c.mu.Unlock()

	c.metrics.sessionExpired()
	c.logger.Info().Err(cause).Msg("session expired")

	c.listenersMu.Lock()
	listeners := make([]func(error), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(cause)
	}
	return true
}
