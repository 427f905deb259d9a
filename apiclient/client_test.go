package apiclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-moviezone-client/apiclient"
	"github.com/jrsteele09/go-moviezone-client/credentials"
	"github.com/jrsteele09/go-moviezone-client/mocks"
)

func TestNew(t *testing.T) {
	store := credentials.NewMemoryStore()

	_, err := apiclient.New("http://localhost:8000/api/", nil)
	require.Error(t, err)

	_, err = apiclient.New("ftp://localhost/api/", store)
	require.Error(t, err)

	c, err := apiclient.New("", store)
	require.NoError(t, err)
	require.Equal(t, apiclient.DefaultBaseURL, c.BaseURL())

	c, err = apiclient.New("http://localhost:8000/api", store)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8000/api/", c.BaseURL())
}

func TestCredentialAttachment(t *testing.T) {
	got := make(chan string, 2)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	c, _ := newTestClient(t, h)
	ctx := context.Background()

	c.SetCredential("T")
	_, err := c.Get(ctx, "movies/movies/")
	require.NoError(t, err)

	c.SetCredential("")
	_, err = c.Get(ctx, "movies/movies/")
	require.NoError(t, err)

	require.Equal(t, "Bearer T", <-got)
	require.Equal(t, "", <-got)
}

func TestDo_PathsQueryAndHeaders(t *testing.T) {
	seen := make(chan *http.Request, 1)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Clone(context.Background())
		writeJSON(w, http.StatusOK, []any{})
	})
	c, _ := newTestClient(t, h)

	resp, err := c.Get(context.Background(), "/movies/movies/", apiclient.WithQuery(url.Values{"filter": {"top-rated"}}))
	require.NoError(t, err)
	require.True(t, resp.OK())

	r := <-seen
	require.Equal(t, "/api/movies/movies/?filter=top-rated", r.URL.String())
	require.NotEmpty(t, r.Header.Get(apiclient.HeaderRequestID))
	require.Equal(t, r.Header.Get(apiclient.HeaderRequestID), resp.RequestID)
	require.Empty(t, r.Header.Get("Content-Type"), "no body means no content type")
}

func TestDo_JSONBody(t *testing.T) {
	type captured struct {
		contentType string
		body        map[string]any
	}
	seen := make(chan captured, 1)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := captured{contentType: r.Header.Get("Content-Type")}
		_ = json.NewDecoder(r.Body).Decode(&c.body)
		seen <- c
		writeJSON(w, http.StatusCreated, map[string]any{"id": 9, "rating": 4})
	})
	c, _ := newTestClient(t, h)

	resp, err := c.Post(context.Background(), "movies/reviews/", map[string]any{"movie_id": 123, "rating": 4})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.Status)
	got := <-seen
	require.Equal(t, "application/json", got.contentType)
	require.Equal(t, float64(123), got.body["movie_id"])

	var review struct {
		ID     int `json:"id"`
		Rating int `json:"rating"`
	}
	require.NoError(t, resp.Decode(&review))
	require.Equal(t, 9, review.ID)
}

func TestDo_MultipartBody(t *testing.T) {
	type upload struct {
		title, filename, content string
	}
	seen := make(chan upload, 1)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var u upload
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			u.title = r.FormValue("title")
			if file, header, err := r.FormFile("image"); err == nil {
				data, _ := io.ReadAll(file)
				file.Close()
				u.filename, u.content = header.Filename, string(data)
			}
		}
		seen <- u
		writeJSON(w, http.StatusCreated, map[string]any{"id": 1})
	})
	c, _ := newTestClient(t, h)

	body := apiclient.NewMultipart().
		Field("title", "Heat").
		File("image", "heat.jpg", strings.NewReader("jpeg-bytes"))
	_, err := c.Post(context.Background(), "movies/movies/", body)
	require.NoError(t, err)

	got := <-seen
	require.Equal(t, "Heat", got.title)
	require.Equal(t, "heat.jpg", got.filename)
	require.Equal(t, "jpeg-bytes", got.content)
}

func TestDo_ApplicationErrorKeepsResponse(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
	})
	c, _ := newTestClient(t, h)
	redirects := countRedirects(c)

	resp, err := c.Get(context.Background(), "movies/movies/999/")
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusNotFound, resp.Status)
	require.True(t, apiclient.IsKind(err, apiclient.KindApplication))

	apiErr, ok := apiclient.AsError(err)
	require.True(t, ok)
	require.Equal(t, "Not found.", apiErr.Message())
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Zero(t, redirects.Load())
}

func TestDo_ConnectivityError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + "/api/"
	srv.Close()

	c, err := apiclient.New(base, credentials.NewMemoryStore())
	require.NoError(t, err)
	redirects := countRedirects(c)

	resp, err := c.Get(context.Background(), "movies/movies/")
	require.Nil(t, resp)
	require.True(t, apiclient.IsKind(err, apiclient.KindConnectivity))
	require.Zero(t, redirects.Load())
}

func TestDo_WithoutAuthReturns401AsIs(t *testing.T) {
	backend := newFakeBackend()
	auth := make(chan string, 1)
	mux := http.NewServeMux()
	mux.Handle("/api/users/token/refresh/", backend.handler())
	mux.HandleFunc("/api/users/login/", func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "No active account found with the given credentials"})
	})
	c, store := newTestClient(t, mux)
	redirects := countRedirects(c)
	signIn(t, c, oldAccess, validRefresh)

	resp, err := c.Post(context.Background(), "users/login/", map[string]string{"login": "baduser", "password": "badpass"}, apiclient.WithoutAuth())
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.Status)
	require.True(t, apiclient.IsKind(err, apiclient.KindUnauthorized))
	require.Empty(t, <-auth)
	require.Zero(t, backend.refreshCalls.Load())
	require.Zero(t, redirects.Load())
	require.Equal(t, oldAccess, stored(t, store, credentials.KeyAccessToken))
}

func TestRestore(t *testing.T) {
	var calls atomic.Int32
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })
	c, store := newTestClient(t, h)
	ctx := context.Background()

	token, err := c.Restore(ctx)
	require.NoError(t, err)
	require.Empty(t, token)
	require.Empty(t, c.Credential())

	require.NoError(t, store.Put(ctx, map[string]string{credentials.KeyAccessToken: "persisted"}))
	token, err = c.Restore(ctx)
	require.NoError(t, err)
	require.Equal(t, "persisted", token)
	require.Equal(t, "persisted", c.Credential())
	require.Zero(t, calls.Load())
}

func TestStoreAndClearCredentials(t *testing.T) {
	c, store := newTestClient(t, http.NotFoundHandler())
	ctx := context.Background()

	require.Error(t, c.StoreCredentials(ctx, credentials.Pair{Refresh: "r"}))

	signIn(t, c, "a", "r")
	require.Equal(t, "a", c.Credential())
	require.Equal(t, "a", stored(t, store, credentials.KeyAccessToken))
	require.Equal(t, "r", stored(t, store, credentials.KeyRefreshToken))

	require.NoError(t, c.ClearCredentials(ctx))
	require.Empty(t, c.Credential())
	require.Empty(t, stored(t, store, credentials.KeyAccessToken))
	require.Empty(t, stored(t, store, credentials.KeyRefreshToken))

	// idempotent
	require.NoError(t, c.ClearCredentials(ctx))
}

func TestStoreCredentials_PersistFailureKeepsCredential(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	c, err := apiclient.New("http://localhost:8000/api/", store)
	require.NoError(t, err)
	c.SetCredential("before")

	err = c.StoreCredentials(context.Background(), credentials.Pair{Access: "after", Refresh: "r"})
	require.Error(t, err)
	require.Equal(t, "before", c.Credential())
}

func TestOnSessionExpired_Remove(t *testing.T) {
	backend := newFakeBackend()
	backend.refreshToken = ""
	c, _ := newTestClient(t, backend.handler())

	calls := 0
	remove := c.OnSessionExpired(func(error) { calls++ })
	remove()

	_, err := c.Get(context.Background(), moviePath)
	require.Error(t, err)
	require.Zero(t, calls)
}
