package devserver

import (
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-moviezone-client/internal/errors"
	"github.com/jrsteele09/go-moviezone-client/users"
)

// LoginHandler exchanges a username or email address and a password for a
// token pair.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			users.Login
			Username string `json:"username"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		login := body.Login.Login
		if login == "" {
			login = body.Username
		}
		if strings.TrimSpace(login) == "" {
			writeFieldError(w, "login", "Username or email is required")
			return
		}
		if body.Password == "" {
			writeFieldError(w, "password", msgRequired)
			return
		}

		var user *users.User
		var err error
		if strings.Contains(login, "@") {
			if user, err = s.userRepo.GetByEmail(login); err != nil {
				writeFieldError(w, "login", "Invalid credentials")
				return
			}
		} else {
			user, err = s.userRepo.GetByUsername(login)
		}
		if err != nil || !user.CheckPassword(body.Password) {
			writeDetail(w, http.StatusUnauthorized, apperrors.ErrInvalidCredentials.Error())
			return
		}

		pair, err := s.tokens.IssuePair(user)
		if err != nil {
			s.logger.Error().Err(err).Msg("issue token pair")
			writeDetail(w, http.StatusInternalServerError, apperrors.ErrInternal.Error())
			return
		}
		s.logger.Debug().Str("user", user.Username).Msg("login")
		writeJSON(w, http.StatusOK, pair)
	}
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body users.Registration
		if !decodeJSON(w, r, &body) {
			return
		}
		if err := body.Validate(); err != nil {
			var verrs users.ValidationErrors
			if apperrors.As(err, &verrs) {
				writeValidation(w, verrs)
				return
			}
			writeError(w, err.Error())
			return
		}
		if body.Email != "" {
			if _, err := s.userRepo.GetByEmail(body.Email); err == nil {
				writeFieldError(w, "email", "A user with that email already exists.")
				return
			}
		}

		hash, err := users.HashPassword(body.Password)
		if err != nil {
			s.logger.Error().Err(err).Msg("hash password")
			writeDetail(w, http.StatusInternalServerError, apperrors.ErrInternal.Error())
			return
		}
		user := &users.User{
			Username:     strings.TrimSpace(body.Username),
			Email:        body.Email,
			FirstName:    body.FirstName,
			LastName:     body.LastName,
			PasswordHash: hash,
			DateJoined:   s.now(),
		}
		if err := s.userRepo.Create(user); err != nil {
			if apperrors.Is(err, apperrors.ErrUserExists) {
				writeFieldError(w, "username", apperrors.ErrUserExists.Error())
				return
			}
			s.logger.Error().Err(err).Msg("create user")
			writeDetail(w, http.StatusInternalServerError, apperrors.ErrInternal.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Refresh string `json:"refresh"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		if body.Refresh == "" {
			writeFieldError(w, "refresh", msgRequired)
			return
		}
		pair, err := s.tokens.Refresh(body.Refresh)
		if err != nil {
			writeTokenNotValid(w, apperrors.ErrTokenExpired.Error())
			return
		}
		writeJSON(w, http.StatusOK, pair)
	}
}

func (s *Server) ProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.userRepo.GetByID(claimsFrom(r.Context()).UserID)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "User not found")
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// LogoutHandler revokes the caller's access token and refresh token.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.tokens.Revoke(r.Context(), claimsFrom(r.Context())); err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
			s.logger.Error().Err(err).Msg("revoke")
			writeDetail(w, http.StatusInternalServerError, apperrors.ErrInternal.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
	}
}

// PasswordResetHandler issues a reset link. It answers the same whether or
// not the address belongs to an account.
func (s *Server) PasswordResetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body users.PasswordResetRequest
		if !decodeJSON(w, r, &body) {
			return
		}
		if err := body.Validate(); err != nil {
			var verrs users.ValidationErrors
			if apperrors.As(err, &verrs) {
				writeValidation(w, verrs)
				return
			}
		}

		if user, err := s.userRepo.GetByEmail(body.Email); err == nil {
			resetToken, err := s.resets.issue(user.ID)
			if err != nil {
				s.logger.Error().Err(err).Msg("issue reset token")
				writeDetail(w, http.StatusInternalServerError, apperrors.ErrInternal.Error())
				return
			}
			s.notify(user, encodeUID(user.ID), resetToken)
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "If an account exists with this email, you will receive password reset instructions.",
		})
	}
}

func (s *Server) PasswordResetConfirmHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body users.PasswordResetConfirm
		if !decodeJSON(w, r, &body) {
			return
		}
		if err := body.Validate(); err != nil {
			var verrs users.ValidationErrors
			if apperrors.As(err, &verrs) {
				writeValidation(w, verrs)
				return
			}
		}

		userID, ok := decodeUID(body.UID)
		if !ok {
			writeFieldError(w, "uid", "Invalid reset link")
			return
		}
		if _, err := s.userRepo.GetByID(userID); err != nil {
			writeFieldError(w, "uid", "Invalid reset link")
			return
		}
		if !s.resets.redeem(userID, body.Token) {
			writeFieldError(w, "token", apperrors.ErrInvalidResetLink.Error())
			return
		}

		hash, err := users.HashPassword(body.NewPassword)
		if err == nil {
			err = s.userRepo.SetPassword(userID, hash)
		}
		if err != nil {
			s.logger.Error().Err(err).Msg("set password")
			writeDetail(w, http.StatusInternalServerError, apperrors.ErrInternal.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Password has been reset successfully. You can now login with your new password.",
		})
	}
}
