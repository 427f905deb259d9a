// Package session tracks who is logged in and drives the login, logout and
// registration flows over an apiclient.Client.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-moviezone-client/apiclient"
	"github.com/jrsteele09/go-moviezone-client/credentials"
	"github.com/jrsteele09/go-moviezone-client/users"
)

// Backend endpoints, relative to the client's base URL
const (
	PathLogin                = "users/login/"
	PathLogout               = "users/logout/"
	PathRegister             = "users/register/"
	PathProfile              = "users/user/"
	PathPasswordReset        = "users/password-reset/"
	PathPasswordResetConfirm = "users/password-reset-confirm/"
)

var (
	ErrAlreadyInitialized = errors.New("session already initialized")
	ErrNotInitialized     = errors.New("session not initialized")
	ErrNotAuthenticated   = errors.New("not logged in")

	ErrLoginFailed         = errors.New("Login failed")
	ErrRegistrationFailed  = errors.New("Registration failed")
	ErrPasswordResetFailed = errors.New("Password reset failed")
)

type State int

const (
	StateUninitialized State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "uninitialized"
	}
}

// Snapshot is a consistent view of the session. Version grows with every
// transition so consumers can discard snapshots older than one already seen.
type Snapshot struct {
	State    State
	User     *users.User // nil unless authenticated
	Hydrated bool        // User came from users/user/ rather than token claims
	Expired  bool        // the last transition was an expired session, not a logout
	Version  uint64
}

func (s Snapshot) IsAuthenticated() bool {
	return s.State == StateAuthenticated
}

// Session holds the authentication state of one client.
type Session struct {
	client         *apiclient.Client
	logger         zerolog.Logger
	hydrateOnLogin bool
	serverLogout   bool

	mu       sync.Mutex
	state    State
	user     *users.User
	hydrated bool
	expired  bool
	version  uint64

	listenersMu  sync.Mutex
	listeners    map[uint64]func(Snapshot)
	nextListener uint64

	removeExpiryHook func()
}

type Option func(*Session)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithProfileHydration fetches the full profile after a successful login.
func WithProfileHydration() Option {
	return func(s *Session) {
		s.hydrateOnLogin = true
	}
}

// WithServerLogout asks the backend to revoke the tokens on Logout before
// they are cleared locally. The local clear happens whatever the backend says.
func WithServerLogout() Option {
	return func(s *Session) {
		s.serverLogout = true
	}
}

// New creates a Session over client. It subscribes to the client's
// session-expired notification; Close releases it.
func New(client *apiclient.Client, options ...Option) (*Session, error) {
	if client == nil {
		return nil, errors.New("[session.New] client is required")
	}
	s := &Session{
		client:    client,
		logger:    zerolog.Nop(),
		listeners: make(map[uint64]func(Snapshot)),
	}
	for _, opt := range options {
		opt(s)
	}
	s.removeExpiryHook = client.OnSessionExpired(s.onExpired)
	return s, nil
}

// Close detaches the session from its client.
func (s *Session) Close() {
	if s.removeExpiryHook != nil {
		s.removeExpiryHook()
	}
}

// Initialize restores the persisted session. A persisted access token is
// trusted without asking the backend; the first request that fails with it
// goes through the client's refresh handling. It makes no network call.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUninitialized {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}

	accessToken, err := s.client.Restore(ctx)
	if err != nil || accessToken == "" {
		s.state = StateAnonymous
	} else {
		s.state = StateAuthenticated
		s.user = userFromToken(accessToken)
	}
	snap := s.transitionLocked()
	s.mu.Unlock()

	s.logger.Debug().Stringer("state", snap.State).Msg("session initialized")
	s.notify(snap)
	return err
}

// Login authenticates with a username or email address. On failure the
// session is unchanged and the error is an *apiclient.Error whose Message is
// fit to show to the user.
func (s *Session) Login(ctx context.Context, login, password string) error {
	const op = "Session.Login"

	if err := s.requireInitialized(); err != nil {
		return err
	}
	body := users.Login{Login: login, Password: password}
	if err := body.Validate(); err != nil {
		return validationError(op, err, ErrLoginFailed)
	}

	resp, err := s.client.Post(ctx, PathLogin, body, apiclient.WithoutAuth())
	if err != nil {
		return rejectionError(op, err, ErrLoginFailed)
	}

	var pair struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	if err := resp.Decode(&pair); err != nil || pair.Access == "" {
		return &apiclient.Error{Op: op, Kind: apiclient.KindApplication, Status: resp.Status, Err: ErrLoginFailed}
	}

	s.mu.Lock()
	if err := s.client.StoreCredentials(ctx, credentials.Pair{Access: pair.Access, Refresh: pair.Refresh}); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = StateAuthenticated
	s.user = userFromToken(pair.Access)
	s.hydrated = false
	s.expired = false
	snap := s.transitionLocked()
	s.mu.Unlock()

	s.logger.Info().Str("user", snap.User.Username).Msg("logged in")
	s.notify(snap)

	if s.hydrateOnLogin {
		if err := s.Hydrate(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to load profile after login")
		}
	}
	return nil
}

// Register creates an account. It does not log in.
func (s *Session) Register(ctx context.Context, registration users.Registration) error {
	const op = "Session.Register"

	if err := registration.Validate(); err != nil {
		return validationError(op, err, ErrRegistrationFailed)
	}
	if _, err := s.client.Post(ctx, PathRegister, registration, apiclient.WithoutAuth()); err != nil {
		return rejectionError(op, err, ErrRegistrationFailed)
	}
	s.logger.Info().Str("user", registration.Username).Msg("registered")
	return nil
}

// Logout clears the persisted credentials, the client credential and the
// user. Logging out an anonymous session is a no-op, and an uninitialized
// session stays uninitialized.
func (s *Session) Logout(ctx context.Context) error {
	if s.serverLogout {
		s.revokeOnServer(ctx)
	}

	s.mu.Lock()
	err := s.client.ClearCredentials(ctx)
	changed := s.state == StateAuthenticated
	if s.state != StateUninitialized {
		s.state = StateAnonymous
	}
	s.user = nil
	s.hydrated = false
	s.expired = false
	var snap Snapshot
	if changed {
		snap = s.transitionLocked()
	}
	s.mu.Unlock()

	if changed {
		s.logger.Info().Msg("logged out")
		s.notify(snap)
	}
	return err
}

func (s *Session) revokeOnServer(ctx context.Context) {
	credential := s.client.Credential()
	if credential == "" {
		return
	}
	_, err := s.client.Post(ctx, PathLogout, nil,
		apiclient.WithoutAuth(),
		apiclient.WithHeader("Authorization", "Bearer "+credential),
	)
	if err != nil {
		s.logger.Debug().Err(err).Msg("server logout failed")
	}
}

// Hydrate replaces the optimistic user with the profile from the backend.
func (s *Session) Hydrate(ctx context.Context) error {
	if !s.IsAuthenticated() {
		return ErrNotAuthenticated
	}

	resp, err := s.client.Get(ctx, PathProfile)
	if err != nil {
		return err
	}
	var profile users.User
	if err := resp.Decode(&profile); err != nil {
		return &apiclient.Error{Op: "Session.Hydrate", Kind: apiclient.KindApplication, Status: resp.Status, Err: err}
	}

	s.mu.Lock()
	if s.state != StateAuthenticated {
		// logged out while the profile was loading
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	s.user = &profile
	s.hydrated = true
	snap := s.transitionLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// RequestPasswordReset asks the backend to email a reset link. It answers
// the same whether or not the address is known and returns its message.
func (s *Session) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	const op = "Session.RequestPasswordReset"

	body := users.PasswordResetRequest{Email: email}
	if err := body.Validate(); err != nil {
		return "", validationError(op, err, ErrPasswordResetFailed)
	}
	resp, err := s.client.Post(ctx, PathPasswordReset, body, apiclient.WithoutAuth())
	if err != nil {
		return "", rejectionError(op, err, ErrPasswordResetFailed)
	}
	return responseMessage(resp), nil
}

// ConfirmPasswordReset sets a new password with the uid and token of a reset link.
func (s *Session) ConfirmPasswordReset(ctx context.Context, confirm users.PasswordResetConfirm) (string, error) {
	const op = "Session.ConfirmPasswordReset"

	if err := confirm.Validate(); err != nil {
		return "", validationError(op, err, ErrPasswordResetFailed)
	}
	resp, err := s.client.Post(ctx, PathPasswordResetConfirm, confirm, apiclient.WithoutAuth())
	if err != nil {
		return "", rejectionError(op, err, ErrPasswordResetFailed)
	}
	return responseMessage(resp), nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns a copy of the current user, nil when not authenticated.
func (s *Session) User() *users.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyUser(s.user)
}

func (s *Session) IsAuthenticated() bool {
	return s.State() == StateAuthenticated
}

func (s *Session) IsStaff() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAuthenticated && s.user != nil && s.user.IsStaff
}

// Subscribe registers fn to receive a Snapshot after every transition. fn
// runs on the goroutine that caused the transition, never under the
// session's lock, so it may call back into the Session.
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// onExpired runs when the client gave up on the session.
func (s *Session) onExpired(cause error) {
	s.mu.Lock()
	// A credential present here was installed by a login that ran after the
	// client cleared the expired one.
	if s.state != StateAuthenticated || s.client.Credential() != "" {
		s.mu.Unlock()
		return
	}
	s.state = StateAnonymous
	s.user = nil
	s.hydrated = false
	s.expired = true
	snap := s.transitionLocked()
	s.mu.Unlock()

	s.logger.Info().Err(cause).Msg("session expired, login required")
	s.notify(snap)
}

func (s *Session) requireInitialized() error {
	if s.State() == StateUninitialized {
		return ErrNotInitialized
	}
	return nil
}

func (s *Session) transitionLocked() Snapshot {
	s.version++
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		State:    s.state,
		User:     copyUser(s.user),
		Hydrated: s.hydrated,
		Expired:  s.expired,
		Version:  s.version,
	}
}

func (s *Session) notify(snap Snapshot) {
	s.listenersMu.Lock()
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func userFromToken(accessToken string) *users.User {
	if user, ok := users.FromAccessToken(accessToken); ok {
		return user
	}
	return &users.User{}
}

func copyUser(u *users.User) *users.User {
	if u == nil {
		return nil
	}
	copied := *u
	return &copied
}

// rejectionError turns a failed call into an error whose Message is fit for
// the user: the backend's own message for validation and credential errors,
// fallback otherwise.
func rejectionError(op string, err error, fallback error) error {
	apiErr, ok := apiclient.AsError(err)
	if !ok {
		return err
	}
	switch {
	case apiErr.Kind == apiclient.KindConnectivity:
		return apiErr
	case apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnauthorized:
		return &apiclient.Error{Op: op, Kind: apiclient.KindInvalidCredentials, Status: apiErr.Status, Detail: apiErr.Detail, Err: fallback}
	default:
		return &apiclient.Error{Op: op, Kind: apiErr.Kind, Status: apiErr.Status, Err: fallback}
	}
}

func validationError(op string, err error, fallback error) error {
	var verrs users.ValidationErrors
	if !errors.As(err, &verrs) {
		return &apiclient.Error{Op: op, Kind: apiclient.KindInvalidCredentials, Err: fallback}
	}
	return &apiclient.Error{Op: op, Kind: apiclient.KindInvalidCredentials, Detail: verrs.Detail(), Err: fallback}
}

func responseMessage(resp *apiclient.Response) string {
	var body struct {
		Message string `json:"message"`
	}
	if resp.Decode(&body) != nil {
		return ""
	}
	return body.Message
}
