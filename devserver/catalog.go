package devserver

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-moviezone-client/internal/errors"
	"github.com/jrsteele09/go-moviezone-client/movies"
)

// trendingWindow is how recent a review must be to make its movie trending.
const trendingWindow = 30 * 24 * time.Hour

// minTopRatedReviews is how many reviews a movie needs to be ranked top-rated.
const minTopRatedReviews = 3

var (
	ErrAlreadyInWishlist = apperrors.New("Movie is already in your wishlist")
	ErrNotInWishlist     = apperrors.New("Movie not found in wishlist")
)

type movieRecord struct {
	id          int64
	title       string
	description string
	releaseDate string
	image       string
	createdAt   time.Time
}

type reviewRecord struct {
	id        int64
	movieID   int64
	userID    int64
	username  string
	text      string
	rating    int
	createdAt time.Time
}

type commentRecord struct {
	id        int64
	movieID   int64
	userID    int64
	username  string
	text      string
	createdAt time.Time
}

type wishlistRecord struct {
	id      int64
	userID  int64
	movieID int64
}

// MovieFields are the writable fields of a movie; nil fields are unchanged on update.
type MovieFields struct {
	Title       *string
	Description *string
	ReleaseDate *string
	Image       *string
}

// Catalog is the in-memory movie database of the development backend.
// Deleting a movie deletes its reviews, comments and wishlist entries.
type Catalog struct {
	mu       sync.RWMutex
	movies   map[int64]*movieRecord
	reviews  map[int64]*reviewRecord
	comments map[int64]*commentRecord
	wishlist map[int64]*wishlistRecord
	lastID   map[string]int64
	nowFunc  func() time.Time
}

func NewCatalog(nowFunc func() time.Time) *Catalog {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &Catalog{
		movies:   make(map[int64]*movieRecord),
		reviews:  make(map[int64]*reviewRecord),
		comments: make(map[int64]*commentRecord),
		wishlist: make(map[int64]*wishlistRecord),
		lastID:   make(map[string]int64),
		nowFunc:  nowFunc,
	}
}

func (c *Catalog) nextID(kind string) int64 {
	c.lastID[kind]++
	return c.lastID[kind]
}

// AddMovie stores a movie. A zero id is assigned the next free one; an
// explicit id is kept, which lets fixtures use well-known ids.
func (c *Catalog) AddMovie(id int64, fields MovieFields) movies.Movie {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == 0 {
		id = c.nextID("movie")
	} else if id > c.lastID["movie"] {
		c.lastID["movie"] = id
	}
	rec := &movieRecord{id: id, createdAt: c.nowFunc().UTC()}
	applyFields(rec, fields)
	c.movies[id] = rec
	return c.movieLocked(rec)
}

func (c *Catalog) UpdateMovie(id int64, fields MovieFields) (movies.Movie, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.movies[id]
	if !ok {
		return movies.Movie{}, apperrors.ErrNotFound
	}
	applyFields(rec, fields)
	return c.movieLocked(rec), nil
}

func (c *Catalog) DeleteMovie(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.movies[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(c.movies, id)
	for rid, r := range c.reviews {
		if r.movieID == id {
			delete(c.reviews, rid)
		}
	}
	for cid, cm := range c.comments {
		if cm.movieID == id {
			delete(c.comments, cid)
		}
	}
	for wid, wl := range c.wishlist {
		if wl.movieID == id {
			delete(c.wishlist, wid)
		}
	}
	return nil
}

func (c *Catalog) Movie(id int64) (movies.Movie, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.movies[id]
	if !ok {
		return movies.Movie{}, apperrors.ErrNotFound
	}
	return c.movieLocked(rec), nil
}

// Movies lists the catalog narrowed and ordered by filter:
//   - trending: reviewed in the last 30 days or on a wishlist, by recent reviews then wishlists;
//   - top-rated: at least 3 reviews, by average rating then review count;
//   - latest: by time added;
//   - otherwise by release date, newest first.
func (c *Catalog) Movies(filter movies.MovieFilter) []movies.Movie {
	c.mu.RLock()
	defer c.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	since := c.nowFunc().Add(-trendingWindow)

	type row struct {
		movie         movies.Movie
		recentReviews int
	}
	rows := make([]row, 0, len(c.movies))
	for _, rec := range c.movies {
		if search != "" && !strings.Contains(strings.ToLower(rec.title), search) && !strings.Contains(strings.ToLower(rec.description), search) {
			continue
		}
		r := row{movie: c.movieLocked(rec), recentReviews: c.recentReviewsLocked(rec.id, since)}
		switch filter.Filter {
		case movies.FilterTrending:
			if r.recentReviews == 0 && r.movie.WishlistCount == 0 {
				continue
			}
		case movies.FilterTopRated:
			if r.movie.ReviewCount < minTopRatedReviews {
				continue
			}
		}
		rows = append(rows, r)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch filter.Filter {
		case movies.FilterTrending:
			if a.recentReviews != b.recentReviews {
				return a.recentReviews > b.recentReviews
			}
			if a.movie.WishlistCount != b.movie.WishlistCount {
				return a.movie.WishlistCount > b.movie.WishlistCount
			}
		case movies.FilterTopRated:
			if a.movie.AverageRating != b.movie.AverageRating {
				return a.movie.AverageRating > b.movie.AverageRating
			}
			if a.movie.ReviewCount != b.movie.ReviewCount {
				return a.movie.ReviewCount > b.movie.ReviewCount
			}
		case movies.FilterLatest:
			if !a.movie.CreatedAt.Equal(b.movie.CreatedAt) {
				return a.movie.CreatedAt.After(b.movie.CreatedAt)
			}
		default:
			if a.movie.ReleaseDate != b.movie.ReleaseDate {
				return a.movie.ReleaseDate > b.movie.ReleaseDate
			}
		}
		return a.movie.ID > b.movie.ID
	})

	out := make([]movies.Movie, len(rows))
	for i, r := range rows {
		out[i] = r.movie
	}
	return out
}

func (c *Catalog) Categories() movies.Categories {
	trending := len(c.Movies(movies.MovieFilter{Filter: movies.FilterTrending}))
	topRated := len(c.Movies(movies.MovieFilter{Filter: movies.FilterTopRated}))

	c.mu.RLock()
	defer c.mu.RUnlock()
	return movies.Categories{
		Trending: trending,
		TopRated: topRated,
		Latest:   len(c.movies),
		All:      len(c.movies),
	}
}

func (c *Catalog) AddReview(movieID, userID int64, username, text string, rating int) (movies.Review, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.movies[movieID]; !ok {
		return movies.Review{}, apperrors.ErrNotFound
	}
	rec := &reviewRecord{
		id:        c.nextID("review"),
		movieID:   movieID,
		userID:    userID,
		username:  username,
		text:      text,
		rating:    rating,
		createdAt: c.nowFunc().UTC(),
	}
	c.reviews[rec.id] = rec
	return c.reviewLocked(rec), nil
}

// UpdateReview changes the text and rating of a review; empty text and a
// zero rating are left unchanged.
func (c *Catalog) UpdateReview(id int64, text string, rating int) (movies.Review, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.reviews[id]
	if !ok {
		return movies.Review{}, apperrors.ErrNotFound
	}
	if text != "" {
		rec.text = text
	}
	if rating != 0 {
		rec.rating = rating
	}
	return c.reviewLocked(rec), nil
}

func (c *Catalog) Review(id int64) (movies.Review, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.reviews[id]
	if !ok {
		return movies.Review{}, apperrors.ErrNotFound
	}
	return c.reviewLocked(rec), nil
}

func (c *Catalog) DeleteReview(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.reviews[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(c.reviews, id)
	return nil
}

// Reviews lists the reviews of movieID, every review when it is 0, oldest first.
func (c *Catalog) Reviews(movieID int64) []movies.Review {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]movies.Review, 0)
	for _, rec := range c.reviews {
		if movieID == 0 || rec.movieID == movieID {
			out = append(out, c.reviewLocked(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) AddComment(movieID, userID int64, username, text string) (movies.Comment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.movies[movieID]; !ok {
		return movies.Comment{}, apperrors.ErrNotFound
	}
	rec := &commentRecord{
		id:        c.nextID("comment"),
		movieID:   movieID,
		userID:    userID,
		username:  username,
		text:      text,
		createdAt: c.nowFunc().UTC(),
	}
	c.comments[rec.id] = rec
	return commentOf(rec), nil
}

func (c *Catalog) DeleteComment(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.comments[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(c.comments, id)
	return nil
}

func (c *Catalog) Comments(movieID int64) []movies.Comment {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]movies.Comment, 0)
	for _, rec := range c.comments {
		if movieID == 0 || rec.movieID == movieID {
			out = append(out, commentOf(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) AddToWishlist(userID, movieID int64) (movies.WishlistItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	movie, ok := c.movies[movieID]
	if !ok {
		return movies.WishlistItem{}, apperrors.ErrNotFound
	}
	for _, wl := range c.wishlist {
		if wl.userID == userID && wl.movieID == movieID {
			return movies.WishlistItem{}, ErrAlreadyInWishlist
		}
	}
	rec := &wishlistRecord{id: c.nextID("wishlist"), userID: userID, movieID: movieID}
	c.wishlist[rec.id] = rec

	m := c.movieLocked(movie)
	return movies.WishlistItem{ID: rec.id, User: userID, Movie: &m}, nil
}

// RemoveFromWishlist removes movieID from the user's wishlist.
func (c *Catalog) RemoveFromWishlist(userID, movieID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, wl := range c.wishlist {
		if wl.userID == userID && wl.movieID == movieID {
			delete(c.wishlist, id)
			return nil
		}
	}
	return ErrNotInWishlist
}

func (c *Catalog) Wishlist(userID int64) []movies.WishlistItem {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]movies.WishlistItem, 0)
	for _, wl := range c.wishlist {
		if wl.userID != userID {
			continue
		}
		m := c.movieLocked(c.movies[wl.movieID])
		out = append(out, movies.WishlistItem{ID: wl.id, User: wl.userID, Movie: &m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) movieLocked(rec *movieRecord) movies.Movie {
	m := movies.Movie{
		ID:          rec.id,
		Title:       rec.title,
		Description: rec.description,
		ReleaseDate: rec.releaseDate,
		Image:       rec.image,
		CreatedAt:   rec.createdAt,
	}
	total := 0
	for _, r := range c.reviews {
		if r.movieID == rec.id {
			m.ReviewCount++
			total += r.rating
		}
	}
	if m.ReviewCount > 0 {
		m.AverageRating = math.Round(float64(total)/float64(m.ReviewCount)*10) / 10
	}
	for _, wl := range c.wishlist {
		if wl.movieID == rec.id {
			m.WishlistCount++
		}
	}
	return m
}

func (c *Catalog) recentReviewsLocked(movieID int64, since time.Time) int {
	n := 0
	for _, r := range c.reviews {
		if r.movieID == movieID && !r.createdAt.Before(since) {
			n++
		}
	}
	return n
}

func (c *Catalog) reviewLocked(rec *reviewRecord) movies.Review {
	review := movies.Review{
		ID:         rec.id,
		User:       rec.userID,
		Username:   rec.username,
		ReviewText: rec.text,
		Rating:     rec.rating,
		CreatedAt:  rec.createdAt,
	}
	if movie, ok := c.movies[rec.movieID]; ok {
		m := c.movieLocked(movie)
		review.Movie = &m
	}
	return review
}

func commentOf(rec *commentRecord) movies.Comment {
	return movies.Comment{
		ID:          rec.id,
		User:        rec.userID,
		Username:    rec.username,
		Movie:       rec.movieID,
		CommentText: rec.text,
		CreatedAt:   rec.createdAt,
	}
}

func applyFields(rec *movieRecord, fields MovieFields) {
	if fields.Title != nil {
		rec.title = *fields.Title
	}
	if fields.Description != nil {
		rec.description = *fields.Description
	}
	if fields.ReleaseDate != nil {
		rec.releaseDate = *fields.ReleaseDate
	}
	if fields.Image != nil {
		rec.image = *fields.Image
	}
}
