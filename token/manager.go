package token

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	apperrors "github.com/jrsteele09/go-moviezone-client/internal/errors"
	"github.com/jrsteele09/go-moviezone-client/token/refresh"
	"github.com/jrsteele09/go-moviezone-client/users"
)

const accessTokenType = "access"

// Pair is the token response of login and refresh, in the backend's wire shape.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Claims are the claims of an access token.
type Claims struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	IsStaff   bool   `json:"is_staff"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

type Manager struct {
	signer            Signer            // Token signing and verification
	refresh           *refresh.Manager  // Refresh token storage
	userRepo          users.UserRepo    // Repository for user data
	revokedCache      RevokedTokenCache // Cache for revoked tokens
	accessTokenExpiry time.Duration
	rotateRefresh     bool
	nowFunc           func() time.Time
}

type ManagerOption func(*Manager)

func WithAccessTokenExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = expiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithRefreshRotation issues a new refresh token on every refresh.
func WithRefreshRotation(rotate bool) ManagerOption {
	return func(m *Manager) {
		m.rotateRefresh = rotate
	}
}

func WithRevokedTokenCache(cache RevokedTokenCache) ManagerOption {
	return func(m *Manager) {
		m.revokedCache = cache
	}
}

func New(refreshManager *refresh.Manager, userRepo users.UserRepo, signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer:   signer,
		refresh:  refreshManager,
		userRepo: userRepo,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = 5 * time.Minute
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	if m.revokedCache == nil {
		m.revokedCache = NewInMemoryRevokedTokenCache(m.nowFunc)
	}
	return m
}

func (m *Manager) CreateAccessToken(user *users.User) (string, error) {
	now := m.nowFunc()
	claims := jwt.MapClaims{
		"token_type": accessTokenType,
		"user_id":    user.ID,                             // The subject, as the backend names it
		"username":   user.Username,                       // Lets clients show who is logged in without a round trip
		"is_staff":   user.IsStaff,                        // Admin screens are gated on it
		"iat":        now.Unix(),                          // Issued At: the time at which the token was issued
		"exp":        now.Add(m.accessTokenExpiry).Unix(), // Expiry: when the token will expire
		"jti":        uuid.New().String(),                 // Unique token ID for revocation
	}
	if user.Email != "" {
		claims["email"] = user.Email
	}
	return m.signer.Sign(claims)
}

// IssuePair creates the access and refresh tokens handed out on login.
func (m *Manager) IssuePair(user *users.User) (*Pair, error) {
	access, err := m.CreateAccessToken(user)
	if err != nil {
		return nil, errors.Wrap(err, "Manager.IssuePair CreateAccessToken")
	}
	refreshToken, err := m.refresh.Create(user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "Manager.IssuePair CreateRefreshToken")
	}
	return &Pair{Access: access, Refresh: refreshToken}, nil
}

// Refresh exchanges a refresh token for a new access token. Pair.Refresh is
// only set when refresh tokens are rotated.
func (m *Manager) Refresh(refreshToken string) (*Pair, error) {
	rt, err := m.refresh.Get(refreshToken)
	if err != nil {
		return nil, apperrors.ErrTokenExpired
	}

	if m.refresh.IsExpired(rt) {
		_ = m.refresh.Delete(refreshToken)
		return nil, apperrors.ErrTokenExpired
	}

	user, err := m.userRepo.GetByID(rt.UserID)
	if err != nil {
		return nil, errors.Wrap(apperrors.ErrTokenExpired, "user not found for refresh token")
	}

	access, err := m.CreateAccessToken(user)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create access token")
	}

	pair := &Pair{Access: access}
	if m.rotateRefresh {
		if pair.Refresh, err = m.refresh.Create(user.ID); err != nil {
			return nil, errors.Wrap(err, "failed to create new refresh token")
		}
	}
	return pair, nil
}

// Verify checks signature, expiry and revocation of an access token.
func (m *Manager) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, apperrors.ErrMissingCredentials
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, m.signer.GetVerificationKey,
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken
	}
	if claims.TokenType != accessTokenType {
		return nil, apperrors.ErrInvalidToken
	}

	if claims.ID != "" {
		revoked, err := m.revokedCache.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, errors.Wrap(err, "Manager.Verify IsRevoked")
		}
		if revoked {
			return nil, apperrors.ErrInvalidToken
		}
	}
	return claims, nil
}

// Revoke invalidates an access token and the refresh token of its user.
func (m *Manager) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil {
		return apperrors.ErrInvalidToken
	}
	if claims.ID != "" && claims.ExpiresAt != nil {
		if err := m.revokedCache.Add(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return errors.Wrap(err, "Manager.Revoke")
		}
	}
	return errors.Wrap(m.refresh.DeleteForUser(claims.UserID), "Manager.Revoke DeleteForUser")
}
