package devserver_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-moviezone-client/devserver"
	"github.com/jrsteele09/go-moviezone-client/internal/config"
)

const demoPassword = "demo123"

type testConfig struct {
	config.EnvVars
	config.Tokens
	config.Cors
	config.DevServer
}

func newTestConfig() testConfig {
	return testConfig{
		EnvVars: config.EnvVars{Env: "TEST"},
		Tokens: config.Tokens{
			JWTSecret:          "test-secret",
			AccessTokenExpiry:  5 * time.Minute,
			RefreshTokenExpiry: 24 * time.Hour,
		},
		Cors:      config.Cors{Origins: []string{"http://localhost:3000"}},
		DevServer: config.DevServer{SeedCatalog: true, DemoPassword: demoPassword},
	}
}

// clock is a settable time source shared by the backend and the test. It
// starts at wall time so Redis TTLs derived from token expiry stay positive.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	server *devserver.Server
	http   *httptest.Server
	clock  *clock
}

func newFixture(t *testing.T, options ...devserver.Option) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, newTestConfig(), options...)
}

func newFixtureWithConfig(t *testing.T, cfg devserver.Config, options ...devserver.Option) *fixture {
	t.Helper()

	f := &fixture{clock: newClock()}
	options = append([]devserver.Option{devserver.WithNowFunc(f.clock.Now)}, options...)

	var err error
	f.server, err = devserver.New(cfg, options...)
	require.NoError(t, err)
	f.http = httptest.NewServer(f.server)
	t.Cleanup(f.http.Close)
	return f
}

// call sends a JSON request and decodes the JSON answer, if any.
func (f *fixture) call(t *testing.T, method, path, bearer string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.http.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(bytes.TrimSpace(raw)) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

func (f *fixture) callList(t *testing.T, path, bearer string) []map[string]any {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, f.http.URL+path, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	return list
}

// login returns the access and refresh tokens of username.
func (f *fixture) login(t *testing.T, username, password string) (string, string) {
	t.Helper()
	status, body := f.call(t, http.MethodPost, "/api/users/login/", "", map[string]string{"login": username, "password": password})
	require.Equal(t, http.StatusOK, status, body)
	return body["access"].(string), body["refresh"].(string)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
