package apiclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-moviezone-client/apiclient"
	"github.com/jrsteele09/go-moviezone-client/credentials"
)

const (
	moviePath      = "movies/movies/123/"
	oldAccess      = "access-old"
	freshAccess    = "access-fresh"
	validRefresh   = "refresh-1"
	rotatedRefresh = "refresh-2"
)

// barrier holds the first n callers until all of them arrived.
type barrier struct {
	n     int32
	count atomic.Int32
	ready chan struct{}
}

func newBarrier(n int) *barrier {
	return &barrier{n: int32(n), ready: make(chan struct{})}
}

func (b *barrier) wait() {
	if b.count.Add(1) == b.n {
		close(b.ready)
	}
	<-b.ready
}

// fakeBackend mimics the token and movie endpoints of the backend.
type fakeBackend struct {
	mu            sync.Mutex
	validAccess   string // bearer accepted by protected endpoints
	refreshToken  string // refresh token accepted by the refresh endpoint
	issueAccess   string // access token handed out on refresh
	rotateRefresh string // when set, refresh also rotates the refresh token
	alwaysReject  bool   // protected endpoints answer 401 whatever the token
	unauthorized  *barrier
	authHeaders   []string
	requestIDs    []string
	refreshAuth   []string

	refreshCalls   atomic.Int32
	protectedCalls atomic.Int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		refreshToken: validRefresh,
		issueAccess:  freshAccess,
	}
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/token/refresh/", b.refresh)
	mux.HandleFunc("/api/movies/movies/123/", b.protected)
	return mux
}

func (b *fakeBackend) refresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)

	var body struct {
		Refresh string `json:"refresh"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshAuth = append(b.refreshAuth, r.Header.Get("Authorization"))

	if b.refreshToken == "" || body.Refresh != b.refreshToken {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Token is invalid or expired", "code": "token_not_valid"})
		return
	}
	b.validAccess = b.issueAccess
	resp := map[string]string{"access": b.issueAccess}
	if b.rotateRefresh != "" {
		resp["refresh"] = b.rotateRefresh
		b.refreshToken = b.rotateRefresh
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *fakeBackend) protected(w http.ResponseWriter, r *http.Request) {
	b.protectedCalls.Add(1)
	auth := r.Header.Get("Authorization")

	b.mu.Lock()
	b.authHeaders = append(b.authHeaders, auth)
	b.requestIDs = append(b.requestIDs, r.Header.Get(apiclient.HeaderRequestID))
	valid := !b.alwaysReject && b.validAccess != "" && auth == "Bearer "+b.validAccess
	gate := b.unauthorized
	b.mu.Unlock()

	if !valid {
		if gate != nil {
			gate.wait()
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Given token not valid for any token type"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": 123, "title": "Heat"})
}

func (b *fakeBackend) seenAuth() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.authHeaders...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, h http.Handler, opts ...apiclient.Option) (*apiclient.Client, *credentials.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	store := credentials.NewMemoryStore()
	client, err := apiclient.New(srv.URL+"/api/", store, opts...)
	require.NoError(t, err)
	return client, store
}

func countRedirects(c *apiclient.Client) *atomic.Int32 {
	n := new(atomic.Int32)
	c.OnSessionExpired(func(error) { n.Add(1) })
	return n
}

func signIn(t *testing.T, c *apiclient.Client, access, refresh string) {
	t.Helper()
	require.NoError(t, c.StoreCredentials(context.Background(), credentials.Pair{Access: access, Refresh: refresh}))
}

func stored(t *testing.T, store credentials.Store, key string) string {
	t.Helper()
	value, err := store.Get(context.Background(), key)
	if err != nil {
		require.ErrorIs(t, err, credentials.ErrNotFound)
		return ""
	}
	return value
}
