// Package movies wraps the catalog endpoints of the MovieZone backend: movies,
// reviews, comments and the wishlist. Every call goes through an
// apiclient.Client, so authentication and token refresh are handled there and
// every failure is an *apiclient.Error.
package movies

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-moviezone-client/apiclient"
)

const (
	pathMovies     = "movies/movies/"
	pathCategories = "movies/movies/categories/"
	pathReviews    = "movies/reviews/"
	pathComments   = "movies/comments/"
	pathWishlist   = "movies/wishlist/"
)

// Filters accepted by List
const (
	FilterTrending = "trending"
	FilterTopRated = "top-rated"
	FilterLatest   = "latest"
)

// DateLayout is the layout of Movie.ReleaseDate.
const DateLayout = "2006-01-02"

type Movie struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	ReleaseDate   string    `json:"release_date"`
	Image         string    `json:"image,omitempty"` // absolute or base-relative poster URL
	CreatedAt     time.Time `json:"created_at"`
	AverageRating float64   `json:"average_rating"` // 0 without reviews
	ReviewCount   int       `json:"review_count"`
	WishlistCount int       `json:"wishlist_count"`
}

// Released parses ReleaseDate.
func (m Movie) Released() (time.Time, error) {
	return time.Parse(DateLayout, m.ReleaseDate)
}

// Categories holds the number of movies in each List filter.
type Categories struct {
	Trending int `json:"trending"`
	TopRated int `json:"top-rated"`
	Latest   int `json:"latest"`
	All      int `json:"all"`
}

// MovieFilter narrows List. Filter is one of the Filter constants; Search
// matches title and description.
type MovieFilter struct {
	Filter string
	Search string
}

func (f MovieFilter) query() url.Values {
	q := url.Values{}
	if f.Filter != "" {
		q.Set("filter", f.Filter)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Set("search", s)
	}
	return q
}

// Service is the catalog API of one client.
type Service struct {
	client *apiclient.Client
}

func New(client *apiclient.Client) *Service {
	return &Service{client: client}
}

func (s *Service) List(ctx context.Context, filter MovieFilter) ([]Movie, error) {
	var movies []Movie
	if err := s.getJSON(ctx, pathMovies, &movies, apiclient.WithQuery(filter.query())); err != nil {
		return nil, err
	}
	return movies, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Movie, error) {
	var movie Movie
	if err := s.getJSON(ctx, moviePath(id), &movie); err != nil {
		return nil, err
	}
	return &movie, nil
}

func (s *Service) Categories(ctx context.Context) (*Categories, error) {
	var categories Categories
	if err := s.getJSON(ctx, pathCategories, &categories); err != nil {
		return nil, err
	}
	return &categories, nil
}

// Create adds a movie. Staff only.
func (s *Service) Create(ctx context.Context, input MovieInput) (*Movie, error) {
	if err := input.validateCreate(); err != nil {
		return nil, err
	}
	resp, err := s.client.Post(ctx, pathMovies, input.multipart())
	if err != nil {
		return nil, err
	}
	return decode[Movie](resp)
}

// Update changes the fields set in input. Staff only.
func (s *Service) Update(ctx context.Context, id int64, input MovieInput) (*Movie, error) {
	resp, err := s.client.Patch(ctx, moviePath(id), input.multipart())
	if err != nil {
		return nil, err
	}
	return decode[Movie](resp)
}

// Delete removes a movie. Staff only.
func (s *Service) Delete(ctx context.Context, id int64) error {
	_, err := s.client.Delete(ctx, moviePath(id))
	return err
}

func (s *Service) getJSON(ctx context.Context, path string, v any, opts ...apiclient.RequestOption) error {
	resp, err := s.client.Get(ctx, path, opts...)
	if err != nil {
		return err
	}
	if err := resp.Decode(v); err != nil {
		return &apiclient.Error{Op: "GET " + path, Kind: apiclient.KindApplication, Status: resp.Status, Err: err}
	}
	return nil
}

func decode[T any](resp *apiclient.Response) (*T, error) {
	var v T
	if err := resp.Decode(&v); err != nil {
		return nil, &apiclient.Error{Op: "decode", Kind: apiclient.KindApplication, Status: resp.Status, Err: err}
	}
	return &v, nil
}

func moviePath(id int64) string {
	return fmt.Sprintf("%s%d/", pathMovies, id)
}

func itemPath(base string, id int64) string {
	return fmt.Sprintf("%s%d/", base, id)
}

func movieQuery(movieID int64) url.Values {
	q := url.Values{}
	if movieID > 0 {
		q.Set("movie_id", fmt.Sprint(movieID))
	}
	return q
}
