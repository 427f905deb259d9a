package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jrsteele09/go-moviezone-client/credentials"
)

const refreshOp = "Client.refresh"

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"` // present when the backend rotates refresh tokens
}

// refreshFor obtains a usable access token for a request that got 401 while
// carrying the credential of generation gen. Callers with the same gen share
// one refresh call.
func (c *Client) refreshFor(ctx context.Context, gen uint64) (string, error) {
	// Waiters share the first caller's call; its cancellation must not fail them.
	ctx = context.WithoutCancel(ctx)

	v, err, _ := c.refreshGroup.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		return c.refresh(ctx, gen)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) refresh(ctx context.Context, gen uint64) (string, error) {
	if credential, current := c.snapshot(); current != gen {
		return currentOrExpired(credential)
	}

	refreshToken, err := c.store.Get(ctx, credentials.KeyRefreshToken)
	if errors.Is(err, credentials.ErrNotFound) || (err == nil && refreshToken == "") {
		c.metrics.refresh(refreshNoToken)
		c.expire(ctx, gen, &Error{Op: refreshOp, Kind: KindUnauthorized, Status: http.StatusUnauthorized, Err: ErrNoRefreshToken})
		return "", ErrNoRefreshToken
	}
	if err != nil {
		c.metrics.refresh(refreshError)
		return "", &Error{Op: refreshOp, Kind: KindUnknown, Err: fmt.Errorf("read refresh token: %w", err)}
	}

	req, err := newRequest(http.MethodPost, c.refreshPath, map[string]string{"refresh": refreshToken}, []RequestOption{WithoutAuth()})
	if err != nil {
		return "", err
	}
	c.logger.Debug().Str("request_id", req.requestID).Msg("refreshing access token")

	resp, _, err := c.send(ctx, req)
	if err != nil {
		// The session is kept: a network failure says nothing about the tokens.
		c.metrics.refresh(refreshError)
		return "", &Error{Op: req.op(), Kind: KindConnectivity, Err: err}
	}

	var tokens refreshResponse
	if !resp.OK() || resp.Decode(&tokens) != nil || tokens.Access == "" {
		apiErr := statusError(req.op(), resp, KindUnauthorized)
		apiErr.Err = ErrRefreshRejected
		c.metrics.refresh(refreshRejected)
		c.expire(ctx, gen, apiErr)
		return "", apiErr
	}

	c.mu.Lock()
	if c.generation != gen {
		// A login or logout happened while the call was in flight and wins.
		credential := c.credential
		c.mu.Unlock()
		return currentOrExpired(credential)
	}
	pair := credentials.Pair{Access: tokens.Access, Refresh: tokens.Refresh}
	if err := c.store.Put(ctx, pair.Entries()); err != nil {
		c.mu.Unlock()
		c.metrics.refresh(refreshError)
		return "", &Error{Op: refreshOp, Kind: KindUnknown, Err: fmt.Errorf("persist access token: %w", err)}
	}
	c.credential = tokens.Access
	c.generation++
	c.mu.Unlock()

	c.metrics.refresh(refreshSuccess)
	c.logger.Debug().Bool("rotated", tokens.Refresh != "").Msg("access token refreshed")
	return tokens.Access, nil
}

func currentOrExpired(credential string) (string, error) {
	if credential == "" {
		return "", &Error{Op: refreshOp, Kind: KindUnauthorized, Status: http.StatusUnauthorized, Err: ErrSessionExpired}
	}
	return credential, nil
}

// refreshIfExpiring runs the shared refresh ahead of a request when the
// access token expires within the proactive leeway.
func (c *Client) refreshIfExpiring(ctx context.Context) error {
	credential, gen := c.snapshot()
	if credential == "" {
		return nil
	}
	exp, ok := AccessTokenExpiry(credential)
	if !ok || c.nowFunc().Add(c.proactiveLeeway).Before(exp) {
		return nil
	}
	if token, err := c.store.Get(ctx, credentials.KeyRefreshToken); err != nil || token == "" {
		// Nothing to refresh with; the request decides.
		return nil
	}

	_, err := c.refreshFor(ctx, gen)
	switch {
	case err == nil:
		return nil
	case IsKind(err, KindConnectivity):
		c.logger.Debug().Err(err).Msg("proactive refresh failed, sending request anyway")
		return nil
	case errors.Is(err, ErrNoRefreshToken):
		return &Error{Op: refreshOp, Kind: KindUnauthorized, Status: http.StatusUnauthorized, Err: err}
	default:
		return err
	}
}
