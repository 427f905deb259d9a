package devserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	root := chi.NewRouter()
	root.Use(
		s.RecoverMiddleware,
		s.RequestIDMiddleware,
		s.LoggingMiddleware,
		s.MetricsMiddleware,
		s.SecurityHeadersMiddleware,
		s.CorsMiddleware,
	)

	root.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	root.Get(mediaPrefix+"*", s.MediaHandler())

	api := chi.NewRouter()
	api.Use(s.AuthenticateMiddleware)
	s.registerRoutes(api)
	root.Mount(APIPrefix, api)

	root.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not found.")
	})
	s.router = root
}

func (s *Server) registerRoutes(r chi.Router) {
	// USERS
	s.route(r, http.MethodPost, "/users/login/", s.LoginHandler())
	s.route(r, http.MethodPost, "/users/register/", s.RegisterHandler())
	s.route(r, http.MethodPost, "/users/token/refresh/", s.RefreshHandler())
	s.route(r, http.MethodGet, "/users/user/", RequireAuth(s.ProfileHandler()))
	s.route(r, http.MethodPost, "/users/logout/", RequireAuth(s.LogoutHandler()))
	s.route(r, http.MethodPost, "/users/password-reset/", s.PasswordResetHandler())
	s.route(r, http.MethodPost, "/users/password-reset-confirm/", s.PasswordResetConfirmHandler())

	// MOVIES
	s.route(r, http.MethodGet, "/movies/movies/", s.ListMoviesHandler())
	s.route(r, http.MethodPost, "/movies/movies/", RequireStaff(s.CreateMovieHandler()))
	s.route(r, http.MethodGet, "/movies/movies/categories/", s.CategoriesHandler())
	s.route(r, http.MethodGet, "/movies/movies/{id}/", s.GetMovieHandler())
	s.route(r, http.MethodPatch, "/movies/movies/{id}/", RequireStaff(s.UpdateMovieHandler()))
	s.route(r, http.MethodPut, "/movies/movies/{id}/", RequireStaff(s.UpdateMovieHandler()))
	s.route(r, http.MethodDelete, "/movies/movies/{id}/", RequireStaff(s.DeleteMovieHandler()))

	// REVIEWS
	s.route(r, http.MethodGet, "/movies/reviews/", s.ListReviewsHandler())
	s.route(r, http.MethodPost, "/movies/reviews/", RequireAuth(s.CreateReviewHandler()))
	s.route(r, http.MethodGet, "/movies/reviews/{id}/", s.GetReviewHandler())
	s.route(r, http.MethodPatch, "/movies/reviews/{id}/", RequireAuth(s.UpdateReviewHandler()))
	s.route(r, http.MethodPut, "/movies/reviews/{id}/", RequireAuth(s.UpdateReviewHandler()))
	s.route(r, http.MethodDelete, "/movies/reviews/{id}/", RequireAuth(s.DeleteReviewHandler()))

	// COMMENTS
	s.route(r, http.MethodGet, "/movies/comments/", s.ListCommentsHandler())
	s.route(r, http.MethodPost, "/movies/comments/", RequireAuth(s.CreateCommentHandler()))
	s.route(r, http.MethodDelete, "/movies/comments/{id}/", RequireAuth(s.DeleteCommentHandler()))

	// WISHLIST
	s.route(r, http.MethodGet, "/movies/wishlist/", RequireAuth(s.WishlistHandler()))
	s.route(r, http.MethodPost, "/movies/wishlist/", RequireAuth(s.AddToWishlistHandler()))
	s.route(r, http.MethodDelete, "/movies/wishlist/{id}/", RequireAuth(s.RemoveFromWishlistHandler()))
}

func (s *Server) route(r chi.Router, method, pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, method+" "+APIPrefix+pattern)
	r.MethodFunc(method, pattern, handler)
}
