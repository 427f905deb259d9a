package devserver

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-moviezone-client/internal/errors"
	"github.com/jrsteele09/go-moviezone-client/internal/utils"
	"github.com/jrsteele09/go-moviezone-client/movies"
	"github.com/jrsteele09/go-moviezone-client/users"
)

const msgNotFound = "Not found."

func (s *Server) ListMoviesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		list := s.catalog.Movies(movies.MovieFilter{Filter: q.Get("filter"), Search: q.Get("search")})
		for i := range list {
			s.absoluteImage(r, &list[i])
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (s *Server) GetMovieHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		movie, err := s.catalog.Movie(id)
		if err != nil {
			writeDetail(w, http.StatusNotFound, msgNotFound)
			return
		}
		s.absoluteImage(r, &movie)
		writeJSON(w, http.StatusOK, movie)
	}
}

func (s *Server) CategoriesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.catalog.Categories())
	}
}

func (s *Server) CreateMovieHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, ok := s.movieFields(w, r)
		if !ok {
			return
		}
		errs := users.ValidationErrors{}
		for name, v := range map[string]*string{"title": fields.Title, "description": fields.Description, "release_date": fields.ReleaseDate} {
			if strings.TrimSpace(utils.Value(v)) == "" {
				errs.Add(name, msgRequired)
			}
		}
		if len(errs) > 0 {
			writeValidation(w, errs)
			return
		}

		movie := s.catalog.AddMovie(0, fields)
		s.absoluteImage(r, &movie)
		writeJSON(w, http.StatusCreated, movie)
	}
}

func (s *Server) UpdateMovieHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if _, err := s.catalog.Movie(id); err != nil {
			writeDetail(w, http.StatusNotFound, msgNotFound)
			return
		}
		fields, ok := s.movieFields(w, r)
		if !ok {
			return
		}
		movie, err := s.catalog.UpdateMovie(id, fields)
		if err != nil {
			writeDetail(w, http.StatusNotFound, msgNotFound)
			return
		}
		s.absoluteImage(r, &movie)
		writeJSON(w, http.StatusOK, movie)
	}
}

func (s *Server) DeleteMovieHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := s.catalog.DeleteMovie(id); err != nil {
			writeDetail(w, http.StatusNotFound, msgNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// movieFields reads the movie form, multipart with an optional image part or
// JSON. It reports false after writing an error response.
func (s *Server) movieFields(w http.ResponseWriter, r *http.Request) (MovieFields, bool) {
	var fields MovieFields

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var body struct {
			Title       *string `json:"title"`
			Description *string `json:"description"`
			ReleaseDate *string `json:"release_date"`
		}
		if !decodeJSON(w, r, &body) {
			return fields, false
		}
		fields = MovieFields{Title: body.Title, Description: body.Description, ReleaseDate: body.ReleaseDate}
		return fields, validReleaseDate(w, fields)
	}

	if err := r.ParseMultipartForm(maxPosterBytes); err != nil {
		writeDetail(w, http.StatusBadRequest, "Multipart form parse error - "+err.Error())
		return fields, false
	}
	form := r.MultipartForm
	value := func(name string) *string {
		if vs, ok := form.Value[name]; ok && len(vs) > 0 {
			return utils.Ptr(vs[0])
		}
		return nil
	}
	fields = MovieFields{Title: value("title"), Description: value("description"), ReleaseDate: value("release_date")}
	if !validReleaseDate(w, fields) {
		return fields, false
	}

	if files := form.File["image"]; len(files) > 0 {
		f, err := files[0].Open()
		if err != nil {
			writeFieldError(w, "image", "Upload a valid image.")
			return fields, false
		}
		defer f.Close()
		urlPath, err := s.media.save(files[0].Filename, f, s.now())
		if err != nil {
			writeFieldError(w, "image", err.Error())
			return fields, false
		}
		fields.Image = &urlPath
	}
	return fields, true
}

func validReleaseDate(w http.ResponseWriter, fields MovieFields) bool {
	if fields.ReleaseDate == nil || *fields.ReleaseDate == "" {
		return true
	}
	if _, err := time.Parse(movies.DateLayout, *fields.ReleaseDate); err != nil {
		writeFieldError(w, "release_date", "Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
		return false
	}
	return true
}

// absoluteImage turns a stored media path into a URL on this server.
func (s *Server) absoluteImage(r *http.Request, m *movies.Movie) {
	if strings.HasPrefix(m.Image, "/") {
		m.Image = fmt.Sprintf("%s://%s%s", getScheme(r), r.Host, m.Image)
	}
}

func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}

func (s *Server) ListReviewsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.catalog.Reviews(queryID(r, "movie_id")))
	}
}

func (s *Server) GetReviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		review, err := s.catalog.Review(id)
		if err != nil {
			writeDetail(w, http.StatusNotFound, msgNotFound)
			return
		}
		writeJSON(w, http.StatusOK, review)
	}
}

type reviewBody struct {
	MovieID    int64  `json:"movie_id"`
	ReviewText string `json:"review_text"`
	Rating     int    `json:"rating"`
}

func (b reviewBody) validate(partial bool) users.ValidationErrors {
	errs := users.ValidationErrors{}
	if !partial {
		if b.MovieID == 0 {
			errs.Add("movie_id", msgRequired)
		}
		if strings.TrimSpace(b.ReviewText) == "" {
			errs.Add("review_text", msgRequired)
		}
	}
	if (!partial || b.Rating != 0) && (b.Rating < movies.MinRating || b.Rating > movies.MaxRating) {
		errs.Add("rating", "Rating should be between 1 and 10")
	}
	return errs
}

func (s *Server) CreateReviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body reviewBody
		if !decodeJSON(w, r, &body) {
			return
		}
		if errs := body.validate(false); len(errs) > 0 {
			writeValidation(w, errs)
			return
		}
		claims := claimsFrom(r.Context())
		review, err := s.catalog.AddReview(body.MovieID, claims.UserID, claims.Username, body.ReviewText, body.Rating)
		if err != nil {
			writeFieldError(w, "movie_id", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", body.MovieID))
			return
		}
		writeJSON(w, http.StatusCreated, review)
	}
}

func (s *Server) UpdateReviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var body reviewBody
		if !decodeJSON(w, r, &body) {
			return
		}
		if errs := body.validate(true); len(errs) > 0 {
			writeValidation(w, errs)
			return
		}
		review, err := s.catalog.UpdateReview(id, body.ReviewText, body.Rating)
		if err != nil {
			writeDetail(w, http.StatusNotFound, msgNotFound)
			return
		}
		writeJSON(w, http.StatusOK, review)
	}
}

func (s *Server) DeleteReviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := s.catalog.DeleteReview(id); err != nil {
			writeDetail(w, http.StatusNotFound, msgNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) ListCommentsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.catalog.Comments(queryID(r, "movie_id")))
	}
}

func (s *Server) CreateCommentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Movie       int64  `json:"movie"`
			CommentText string `json:"comment_text"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		errs := users.ValidationErrors{}
		if body.Movie == 0 {
			errs.Add("movie", msgRequired)
		}
		if strings.TrimSpace(body.CommentText) == "" {
			errs.Add("comment_text", msgRequired)
		}
		if len(errs) > 0 {
			writeValidation(w, errs)
			return
		}
		claims := claimsFrom(r.Context())
		comment, err := s.catalog.AddComment(body.Movie, claims.UserID, claims.Username, body.CommentText)
		if err != nil {
			writeFieldError(w, "movie", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", body.Movie))
			return
		}
		writeJSON(w, http.StatusCreated, comment)
	}
}

func (s *Server) DeleteCommentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := s.catalog.DeleteComment(id); err != nil {
			writeDetail(w, http.StatusNotFound, msgNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) WishlistHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items := s.catalog.Wishlist(claimsFrom(r.Context()).UserID)
		for i := range items {
			s.absoluteImage(r, items[i].Movie)
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func (s *Server) AddToWishlistHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			MovieID int64 `json:"movie_id"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		if body.MovieID == 0 {
			writeFieldError(w, "movie_id", msgRequired)
			return
		}
		item, err := s.catalog.AddToWishlist(claimsFrom(r.Context()).UserID, body.MovieID)
		switch {
		case apperrors.Is(err, ErrAlreadyInWishlist):
			writeError(w, err.Error())
		case err != nil:
			writeFieldError(w, "movie_id", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", body.MovieID))
		default:
			s.absoluteImage(r, item.Movie)
			writeJSON(w, http.StatusCreated, item)
		}
	}
}

// RemoveFromWishlistHandler deletes by movie id, not wishlist entry id.
func (s *Server) RemoveFromWishlistHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		movieID, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := s.catalog.RemoveFromWishlist(claimsFrom(r.Context()).UserID, movieID); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
