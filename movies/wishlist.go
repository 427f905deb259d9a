package movies

import (
	"context"
)

type WishlistItem struct {
	ID    int64  `json:"id"`
	User  int64  `json:"user"`
	Movie *Movie `json:"movie"`
}

// Wishlist returns the movies the current user saved.
func (s *Service) Wishlist(ctx context.Context) ([]WishlistItem, error) {
	var items []WishlistItem
	if err := s.getJSON(ctx, pathWishlist, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// AddToWishlist saves a movie. Adding a movie twice is an application error.
func (s *Service) AddToWishlist(ctx context.Context, movieID int64) (*WishlistItem, error) {
	resp, err := s.client.Post(ctx, pathWishlist, map[string]int64{"movie_id": movieID})
	if err != nil {
		return nil, err
	}
	return decode[WishlistItem](resp)
}

// RemoveFromWishlist removes a movie, addressed by the movie's id rather than
// the wishlist entry's.
func (s *Service) RemoveFromWishlist(ctx context.Context, movieID int64) error {
	_, err := s.client.Delete(ctx, itemPath(pathWishlist, movieID))
	return err
}

// InWishlist reports whether movieID is among items.
func InWishlist(items []WishlistItem, movieID int64) bool {
	for _, item := range items {
		if item.Movie != nil && item.Movie.ID == movieID {
			return true
		}
	}
	return false
}
