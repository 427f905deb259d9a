package apiclient

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// TokenSource exposes the current credential as an oauth2.TokenSource.
// It does not refresh; refreshing stays with Do.
func (c *Client) TokenSource() oauth2.TokenSource {
	return credentialSource{client: c}
}

// HTTPClient returns a plain *http.Client that sends the current credential,
// for downloads and other calls that do not go through Do. Every request
// reads the credential afresh.
func (c *Client) HTTPClient() *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{Source: c.TokenSource(), Base: c.httpClient.Transport},
		Timeout:   c.httpClient.Timeout,
	}
}

type credentialSource struct {
	client *Client
}

func (s credentialSource) Token() (*oauth2.Token, error) {
	credential := s.client.Credential()
	if credential == "" {
		return nil, ErrNoCredential
	}
	token := &oauth2.Token{AccessToken: credential, TokenType: "Bearer"}
	if exp, ok := AccessTokenExpiry(credential); ok {
		token.Expiry = exp
	}
	return token, nil
}

// AccessTokenExpiry reads the exp claim of a JWT access token without
// verifying its signature. ok is false for opaque tokens.
func AccessTokenExpiry(raw string) (exp time.Time, ok bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
