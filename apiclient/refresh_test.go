package apiclient_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-moviezone-client/apiclient"
	"github.com/jrsteele09/go-moviezone-client/credentials"
	"github.com/jrsteele09/go-moviezone-client/mocks"
)

func TestRefresh_TransparentRetry(t *testing.T) {
	backend := newFakeBackend()
	c, store := newTestClient(t, backend.handler())
	redirects := countRedirects(c)
	signIn(t, c, oldAccess, validRefresh)

	resp, err := c.Get(context.Background(), moviePath)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)

	require.Equal(t, int32(1), backend.refreshCalls.Load())
	require.Equal(t, []string{"Bearer " + oldAccess, "Bearer " + freshAccess}, backend.seenAuth())
	require.Equal(t, freshAccess, c.Credential())
	require.Equal(t, freshAccess, stored(t, store, credentials.KeyAccessToken))
	require.Equal(t, validRefresh, stored(t, store, credentials.KeyRefreshToken))
	require.Zero(t, redirects.Load())

	// the refresh call itself carries no bearer
	require.Equal(t, []string{""}, backend.refreshAuth)

	// the retry is the same logical request
	require.Len(t, backend.requestIDs, 2)
	require.Equal(t, backend.requestIDs[0], backend.requestIDs[1])
}

func TestRefresh_RotatedRefreshTokenIsPersisted(t *testing.T) {
	backend := newFakeBackend()
	backend.rotateRefresh = rotatedRefresh
	c, store := newTestClient(t, backend.handler())
	signIn(t, c, oldAccess, validRefresh)

	_, err := c.Get(context.Background(), moviePath)
	require.NoError(t, err)
	require.Equal(t, rotatedRefresh, stored(t, store, credentials.KeyRefreshToken))
}

func TestRefresh_SingleRetry(t *testing.T) {
	backend := newFakeBackend()
	backend.alwaysReject = true
	c, store := newTestClient(t, backend.handler())
	redirects := countRedirects(c)
	signIn(t, c, oldAccess, validRefresh)

	resp, err := c.Get(context.Background(), moviePath)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.Status)
	require.True(t, apiclient.IsKind(err, apiclient.KindUnauthorized))

	require.Equal(t, int32(1), backend.refreshCalls.Load())
	require.Equal(t, int32(2), backend.protectedCalls.Load())
	require.Equal(t, int32(1), redirects.Load())
	require.Empty(t, c.Credential())
	require.Empty(t, stored(t, store, credentials.KeyAccessToken))
}

func TestRefresh_NoRefreshToken(t *testing.T) {
	backend := newFakeBackend()
	c, store := newTestClient(t, backend.handler())
	redirects := countRedirects(c)
	require.NoError(t, store.Put(context.Background(), map[string]string{credentials.KeyAccessToken: oldAccess}))
	_, err := c.Restore(context.Background())
	require.NoError(t, err)

	resp, err := c.Get(context.Background(), moviePath)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.Status)

	apiErr, ok := apiclient.AsError(err)
	require.True(t, ok)
	require.Equal(t, apiclient.KindUnauthorized, apiErr.Kind)
	require.Equal(t, "Given token not valid for any token type", apiErr.Message(), "the original 401 is propagated")

	require.Zero(t, backend.refreshCalls.Load())
	require.Equal(t, int32(1), redirects.Load())
	require.Empty(t, stored(t, store, credentials.KeyAccessToken))
}

func TestRefresh_Rejected(t *testing.T) {
	backend := newFakeBackend()
	backend.refreshToken = "something-else"
	c, store := newTestClient(t, backend.handler())

	var cause error
	c.OnSessionExpired(func(err error) { cause = err })
	signIn(t, c, oldAccess, validRefresh)

	_, err := c.Get(context.Background(), moviePath)
	require.True(t, apiclient.IsKind(err, apiclient.KindUnauthorized))
	require.ErrorIs(t, err, apiclient.ErrRefreshRejected, "the refresh error is propagated")
	require.ErrorIs(t, cause, apiclient.ErrRefreshRejected)

	require.Equal(t, int32(1), backend.refreshCalls.Load())
	require.Equal(t, int32(1), backend.protectedCalls.Load())
	require.Empty(t, c.Credential())
	require.Empty(t, stored(t, store, credentials.KeyAccessToken))
	require.Empty(t, stored(t, store, credentials.KeyRefreshToken))
}

func TestRefresh_ConcurrentRequestsShareOneRefresh(t *testing.T) {
	const n = 10

	backend := newFakeBackend()
	backend.unauthorized = newBarrier(n)
	c, _ := newTestClient(t, backend.handler())
	redirects := countRedirects(c)
	signIn(t, c, oldAccess, validRefresh)

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Get(context.Background(), moviePath)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), backend.refreshCalls.Load())
	require.Equal(t, int32(2*n), backend.protectedCalls.Load())
	require.Zero(t, redirects.Load())
}

func TestRefresh_ConcurrentFailureRedirectsOnce(t *testing.T) {
	const n = 10

	backend := newFakeBackend()
	backend.refreshToken = "something-else"
	backend.unauthorized = newBarrier(n)
	c, _ := newTestClient(t, backend.handler())
	redirects := countRedirects(c)
	signIn(t, c, oldAccess, validRefresh)

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Get(context.Background(), moviePath)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.True(t, apiclient.IsKind(err, apiclient.KindUnauthorized), "got %v", err)
	}
	require.Equal(t, int32(1), backend.refreshCalls.Load())
	require.Equal(t, int32(1), redirects.Load())
	require.Empty(t, c.Credential())
}

func TestRefresh_ConnectivityFailureKeepsSession(t *testing.T) {
	backend := newFakeBackend()
	mux := http.NewServeMux()
	mux.Handle("/api/movies/", backend.handler())
	mux.HandleFunc("/api/users/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	})
	c, store := newTestClient(t, mux)
	redirects := countRedirects(c)
	signIn(t, c, oldAccess, validRefresh)

	_, err := c.Get(context.Background(), moviePath)
	require.True(t, apiclient.IsKind(err, apiclient.KindConnectivity))
	require.Zero(t, redirects.Load())
	require.Equal(t, oldAccess, c.Credential())
	require.Equal(t, validRefresh, stored(t, store, credentials.KeyRefreshToken))
}

func TestRefresh_StoreFailureIsReported(t *testing.T) {
	backend := newFakeBackend()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().Get(gomock.Any(), credentials.KeyRefreshToken).Return("", errors.New("redis: connection refused"))

	c, _ := newTestClient(t, backend.handler())
	c2, err := apiclient.New(c.BaseURL(), store)
	require.NoError(t, err)
	redirects := countRedirects(c2)
	c2.SetCredential(oldAccess)

	_, err = c2.Get(context.Background(), moviePath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
	apiErr, ok := apiclient.AsError(err)
	require.True(t, ok)
	require.Equal(t, "Client.refresh", apiErr.Op)
	require.Equal(t, apiclient.KindUnknown, apiErr.Kind)
	require.Zero(t, backend.refreshCalls.Load())
	require.Zero(t, redirects.Load())
	require.Equal(t, oldAccess, c2.Credential())
}

func TestProactiveRefresh(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	expiring := signedToken(t, now.Add(10*time.Second))

	backend := newFakeBackend()
	c, _ := newTestClient(t, backend.handler(),
		apiclient.WithProactiveRefresh(time.Minute),
		apiclient.WithNowFunc(func() time.Time { return now }),
	)
	signIn(t, c, expiring, validRefresh)

	_, err := c.Get(context.Background(), moviePath)
	require.NoError(t, err)
	require.Equal(t, int32(1), backend.refreshCalls.Load())
	require.Equal(t, []string{"Bearer " + freshAccess}, backend.seenAuth(), "no request is sent with the expiring token")
}

func TestProactiveRefresh_NotDueYet(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	valid := signedToken(t, now.Add(time.Hour))

	backend := newFakeBackend()
	backend.validAccess = valid
	c, _ := newTestClient(t, backend.handler(),
		apiclient.WithProactiveRefresh(time.Minute),
		apiclient.WithNowFunc(func() time.Time { return now }),
	)
	signIn(t, c, valid, validRefresh)

	_, err := c.Get(context.Background(), moviePath)
	require.NoError(t, err)
	require.Zero(t, backend.refreshCalls.Load())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := apiclient.NewMetrics(reg)

	backend := newFakeBackend()
	backend.alwaysReject = true
	c, _ := newTestClient(t, backend.handler(), apiclient.WithMetrics(metrics))
	signIn(t, c, oldAccess, validRefresh)

	_, err := c.Get(context.Background(), moviePath)
	require.Error(t, err)

	require.Equal(t, float64(2), testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, "401")))
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodPost, "200")))
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.TokenRefreshes.WithLabelValues("success")))
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.SessionExpired))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1,
		"exp":     exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}
