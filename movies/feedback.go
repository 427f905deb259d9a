package movies

import (
	"context"
	"time"

	"github.com/jrsteele09/go-moviezone-client/apiclient"
	"github.com/jrsteele09/go-moviezone-client/users"
)

// Rating bounds of a review
const (
	MinRating = 1
	MaxRating = 10
)

type Review struct {
	ID         int64     `json:"id"`
	MovieID    int64     `json:"movie_id,omitempty"` // write only
	Movie      *Movie    `json:"movie,omitempty"`
	User       int64     `json:"user"`
	Username   string    `json:"username"`
	ReviewText string    `json:"review_text"`
	Rating     int       `json:"rating"`
	CreatedAt  time.Time `json:"created_at"`
}

type Comment struct {
	ID          int64     `json:"id"`
	User        int64     `json:"user"`
	Username    string    `json:"username"`
	Movie       int64     `json:"movie"`
	CommentText string    `json:"comment_text"`
	CreatedAt   time.Time `json:"created_at"`
}

type reviewBody struct {
	MovieID    int64  `json:"movie_id,omitempty"`
	ReviewText string `json:"review_text,omitempty"`
	Rating     int    `json:"rating,omitempty"`
}

// ListReviews returns the reviews of a movie, or every review when movieID is 0.
func (s *Service) ListReviews(ctx context.Context, movieID int64) ([]Review, error) {
	var reviews []Review
	if err := s.getJSON(ctx, pathReviews, &reviews, apiclient.WithQuery(movieQuery(movieID))); err != nil {
		return nil, err
	}
	return reviews, nil
}

func (s *Service) CreateReview(ctx context.Context, movieID int64, text string, rating int) (*Review, error) {
	if err := validateRating(rating); err != nil {
		return nil, err
	}
	resp, err := s.client.Post(ctx, pathReviews, reviewBody{MovieID: movieID, ReviewText: text, Rating: rating})
	if err != nil {
		return nil, err
	}
	return decode[Review](resp)
}

// UpdateReview changes the text and rating of a review. Zero values are left unchanged.
func (s *Service) UpdateReview(ctx context.Context, id int64, text string, rating int) (*Review, error) {
	if rating != 0 {
		if err := validateRating(rating); err != nil {
			return nil, err
		}
	}
	resp, err := s.client.Patch(ctx, itemPath(pathReviews, id), reviewBody{ReviewText: text, Rating: rating})
	if err != nil {
		return nil, err
	}
	return decode[Review](resp)
}

func (s *Service) DeleteReview(ctx context.Context, id int64) error {
	_, err := s.client.Delete(ctx, itemPath(pathReviews, id))
	return err
}

// ListComments returns the comments of a movie, or every comment when movieID is 0.
func (s *Service) ListComments(ctx context.Context, movieID int64) ([]Comment, error) {
	var comments []Comment
	if err := s.getJSON(ctx, pathComments, &comments, apiclient.WithQuery(movieQuery(movieID))); err != nil {
		return nil, err
	}
	return comments, nil
}

func (s *Service) CreateComment(ctx context.Context, movieID int64, text string) (*Comment, error) {
	body := map[string]any{"movie": movieID, "comment_text": text}
	resp, err := s.client.Post(ctx, pathComments, body)
	if err != nil {
		return nil, err
	}
	return decode[Comment](resp)
}

func (s *Service) DeleteComment(ctx context.Context, id int64) error {
	_, err := s.client.Delete(ctx, itemPath(pathComments, id))
	return err
}

func validateRating(rating int) error {
	if rating >= MinRating && rating <= MaxRating {
		return nil
	}
	errs := users.ValidationErrors{}
	errs.Add("rating", "Rating should be between 1 and 10")
	return &apiclient.Error{Op: "validate review", Kind: apiclient.KindApplication, Detail: errs.Detail(), Err: errs}
}
