package movies_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-moviezone-client/apiclient"
	"github.com/jrsteele09/go-moviezone-client/credentials"
	"github.com/jrsteele09/go-moviezone-client/movies"
)

type captured struct {
	method string
	path   string
	query  string
	auth   string
	body   []byte
	form   map[string][]string
	file   []byte
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newService starts a backend answering every request with status and
// reply, and passes each request it saw to the returned channel.
func newService(t *testing.T, status int, reply any) (*movies.Service, *apiclient.Client, <-chan captured, *atomic.Int32) {
	t.Helper()

	seen := make(chan captured, 8)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		c := captured{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
		}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if err := r.ParseMultipartForm(1 << 20); err == nil {
				c.form = r.MultipartForm.Value
				if fh := r.MultipartForm.File["image"]; len(fh) == 1 {
					f, _ := fh[0].Open()
					c.file, _ = io.ReadAll(f)
					f.Close()
				}
			}
		} else {
			c.body, _ = io.ReadAll(r.Body)
		}
		seen <- c

		if status == http.StatusNoContent {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, reply)
	}))
	t.Cleanup(srv.Close)

	client, err := apiclient.New(srv.URL+"/api/", credentials.NewMemoryStore())
	require.NoError(t, err)
	return movies.New(client), client, seen, &calls
}

func TestList(t *testing.T) {
	svc, _, seen, _ := newService(t, http.StatusOK, []map[string]any{
		{"id": 1, "title": "Heat", "release_date": "1995-12-15", "average_rating": 8.5, "review_count": 2, "created_at": "2026-01-02T10:00:00.123456Z"},
		{"id": 2, "title": "Ronin", "release_date": "1998-09-25", "image": nil},
	})

	list, err := svc.List(context.Background(), movies.MovieFilter{Filter: movies.FilterTopRated, Search: " heat "})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Heat", list[0].Title)
	require.Equal(t, 8.5, list[0].AverageRating)
	require.Empty(t, list[1].Image)

	released, err := list[0].Released()
	require.NoError(t, err)
	require.Equal(t, 1995, released.Year())

	c := <-seen
	require.Equal(t, http.MethodGet, c.method)
	require.Equal(t, "/api/movies/movies/", c.path)
	require.Equal(t, "filter=top-rated&search=heat", c.query)
}

func TestGet_NotFound(t *testing.T) {
	svc, _, _, _ := newService(t, http.StatusNotFound, map[string]any{"detail": "No Movie matches the given query."})

	_, err := svc.Get(context.Background(), 99)
	require.True(t, apiclient.IsKind(err, apiclient.KindApplication))
	apiErr, _ := apiclient.AsError(err)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Equal(t, "No Movie matches the given query.", apiErr.Message())
}

func TestCategories(t *testing.T) {
	svc, _, seen, _ := newService(t, http.StatusOK, map[string]any{"trending": 3, "top-rated": 2, "latest": 10, "all": 10})

	cats, err := svc.Categories(context.Background())
	require.NoError(t, err)
	require.Equal(t, movies.Categories{Trending: 3, TopRated: 2, Latest: 10, All: 10}, *cats)
	require.Equal(t, "/api/movies/movies/categories/", (<-seen).path)
}

func TestWatchOptions(t *testing.T) {
	svc, _, seen, _ := newService(t, http.StatusOK, map[string]any{"watch_options": []any{
		map[string]any{"platform": "Netflix", "type": "subscription", "url": "https://netflix.example/heat"},
		map[string]any{"platform": "Store", "type": "buy", "url": "https://store.example/heat", "price": 9.99},
		map[string]any{"platform": "Rentals", "type": "rent", "url": "https://rent.example/heat", "price": "$3.99"},
	}})

	options, err := svc.WatchOptions(context.Background(), 123)
	require.NoError(t, err)
	require.Equal(t, "/api/movies/movies/123/watch_options/", (<-seen).path)
	require.Len(t, options, 3)
	require.Equal(t, movies.WatchSubscription, options[0].Type)
	require.Empty(t, options[0].Price)
	require.Equal(t, movies.Price("9.99"), options[1].Price)
	require.Equal(t, movies.Price("$3.99"), options[2].Price)
}

func TestWatchOptions_Empty(t *testing.T) {
	svc, _, _, _ := newService(t, http.StatusOK, map[string]any{})

	options, err := svc.WatchOptions(context.Background(), 123)
	require.NoError(t, err)
	require.Empty(t, options)
	require.NotNil(t, options)
}

func TestCreate_Multipart(t *testing.T) {
	svc, client, seen, _ := newService(t, http.StatusCreated, map[string]any{"id": 5, "title": "Heat"})
	client.SetCredential("staff-token")

	input := movies.NewMovieInput("Heat", "Cops and robbers", time.Date(1995, 12, 15, 0, 0, 0, 0, time.UTC)).
		WithPoster("heat.png", bytes.NewReader([]byte("PNGDATA")))
	movie, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, int64(5), movie.ID)

	c := <-seen
	require.Equal(t, http.MethodPost, c.method)
	require.Equal(t, "Bearer staff-token", c.auth)
	require.Equal(t, []string{"Heat"}, c.form["title"])
	require.Equal(t, []string{"1995-12-15"}, c.form["release_date"])
	require.Equal(t, []byte("PNGDATA"), c.file)
}

func TestCreate_ValidatesBeforeSending(t *testing.T) {
	svc, _, _, calls := newService(t, http.StatusCreated, map[string]any{})

	_, err := svc.Create(context.Background(), movies.MovieInput{}.WithTitle("Heat"))
	apiErr, ok := apiclient.AsError(err)
	require.True(t, ok)
	require.Contains(t, apiErr.FieldErrors(), "description")
	require.Contains(t, apiErr.FieldErrors(), "release_date")
	require.Zero(t, calls.Load())
}

func TestUpdate_SendsOnlySetFields(t *testing.T) {
	svc, _, seen, _ := newService(t, http.StatusOK, map[string]any{"id": 5, "title": "Heat (1995)"})

	_, err := svc.Update(context.Background(), 5, movies.MovieInput{}.WithTitle("Heat (1995)"))
	require.NoError(t, err)

	c := <-seen
	require.Equal(t, http.MethodPatch, c.method)
	require.Equal(t, "/api/movies/movies/5/", c.path)
	require.Equal(t, map[string][]string{"title": {"Heat (1995)"}}, c.form)
}

func TestDelete_Forbidden(t *testing.T) {
	svc, _, _, _ := newService(t, http.StatusForbidden, map[string]any{"detail": "You do not have permission to perform this action."})

	err := svc.Delete(context.Background(), 5)
	require.True(t, apiclient.IsKind(err, apiclient.KindApplication))
}

func TestReviews(t *testing.T) {
	svc, _, seen, calls := newService(t, http.StatusCreated, map[string]any{"id": 1, "rating": 9, "review_text": "Loved it", "username": "demo"})
	ctx := context.Background()

	review, err := svc.CreateReview(ctx, 3, "Loved it", 9)
	require.NoError(t, err)
	require.Equal(t, "demo", review.Username)

	c := <-seen
	require.Equal(t, "/api/movies/reviews/", c.path)
	require.JSONEq(t, `{"movie_id":3,"review_text":"Loved it","rating":9}`, string(c.body))

	_, err = svc.CreateReview(ctx, 3, "Loved it", 11)
	require.Error(t, err)
	_, err = svc.UpdateReview(ctx, 1, "", 0)
	require.NoError(t, err)
	c = <-seen
	require.Equal(t, http.MethodPatch, c.method)
	require.JSONEq(t, `{}`, string(c.body))
	require.Equal(t, int32(2), calls.Load())
}

func TestListReviewsAndComments_FilterByMovie(t *testing.T) {
	svc, _, seen, _ := newService(t, http.StatusOK, []any{})
	ctx := context.Background()

	_, err := svc.ListReviews(ctx, 3)
	require.NoError(t, err)
	c := <-seen
	require.Equal(t, "/api/movies/reviews/", c.path)
	require.Equal(t, "movie_id=3", c.query)

	_, err = svc.ListComments(ctx, 0)
	require.NoError(t, err)
	c = <-seen
	require.Equal(t, "/api/movies/comments/", c.path)
	require.Empty(t, c.query)
}

func TestComments(t *testing.T) {
	svc, _, seen, _ := newService(t, http.StatusCreated, map[string]any{"id": 4, "movie": 3, "comment_text": "See it", "username": "demo"})

	comment, err := svc.CreateComment(context.Background(), 3, "See it")
	require.NoError(t, err)
	require.Equal(t, int64(3), comment.Movie)
	require.JSONEq(t, `{"movie":3,"comment_text":"See it"}`, string((<-seen).body))
}

func TestWishlist(t *testing.T) {
	svc, _, seen, _ := newService(t, http.StatusNoContent, nil)
	ctx := context.Background()

	require.NoError(t, svc.RemoveFromWishlist(ctx, 3))
	c := <-seen
	require.Equal(t, http.MethodDelete, c.method)
	require.Equal(t, "/api/movies/wishlist/3/", c.path)

	items := []movies.WishlistItem{{ID: 1, Movie: &movies.Movie{ID: 3}}, {ID: 2}}
	require.True(t, movies.InWishlist(items, 3))
	require.False(t, movies.InWishlist(items, 4))
}

func TestAddToWishlist_Duplicate(t *testing.T) {
	svc, _, seen, _ := newService(t, http.StatusBadRequest, map[string]any{"error": "Movie is already in your wishlist"})

	_, err := svc.AddToWishlist(context.Background(), 3)
	apiErr, ok := apiclient.AsError(err)
	require.True(t, ok)
	require.Equal(t, "Movie is already in your wishlist", apiErr.Message())
	require.JSONEq(t, `{"movie_id":3}`, string((<-seen).body))
}

func TestDownloadPoster(t *testing.T) {
	auth := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/media/movies/heat.png" {
			http.NotFound(w, r)
			return
		}
		auth <- r.Header.Get("Authorization")
		_, _ = w.Write([]byte("PNGDATA"))
	}))
	t.Cleanup(srv.Close)

	client, err := apiclient.New(srv.URL+"/api/", credentials.NewMemoryStore())
	require.NoError(t, err)
	client.SetCredential("T")
	svc := movies.New(client)

	var buf bytes.Buffer
	n, err := svc.DownloadPoster(context.Background(), &movies.Movie{Image: "/media/movies/heat.png"}, &buf)
	require.NoError(t, err)
	require.Equal(t, int64(7), n)
	require.Equal(t, "PNGDATA", buf.String())
	require.Equal(t, "Bearer T", <-auth)

	_, err = svc.DownloadPoster(context.Background(), &movies.Movie{}, &buf)
	require.ErrorIs(t, err, movies.ErrNoPoster)

	_, err = svc.DownloadPoster(context.Background(), &movies.Movie{Image: "/media/missing.png"}, &buf)
	require.Error(t, err)
}
