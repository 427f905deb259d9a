package users

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 6

// User is the account profile served by users/user/.
type User struct {
	ID           int64     `json:"id"`                   // Backend primary key
	Username     string    `json:"username"`             // Unique username
	Email        string    `json:"email,omitempty"`      // User's email address
	PasswordHash string    `json:"-"`                    // Hashed version of the user's password - never serialize
	FirstName    string    `json:"first_name,omitempty"` // First name of the user
	LastName     string    `json:"last_name,omitempty"`  // Last name of the user
	IsStaff      bool      `json:"is_staff"`             // Staff users may manage the movie catalog
	DateJoined   time.Time `json:"date_joined"`          // Date and time when the user registered
}

// DisplayName returns the full name, falling back to the username.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Username
}

func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}

// ValidatePasswordStrength checks the minimum length accepted by the backend.
func ValidatePasswordStrength(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("Ensure this field has at least %d characters.", MinPasswordLength)
	}
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// FromAccessToken builds an optimistic identity from the claims of a JWT
// access token. The signature is not verified, so the result is only a hint
// until the profile is fetched from the backend.
func FromAccessToken(raw string) (*User, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, false
	}

	user := &User{}
	switch id := claims["user_id"].(type) {
	case float64:
		user.ID = int64(id)
	case string:
		user.ID, _ = strconv.ParseInt(id, 10, 64)
	}
	user.Username, _ = claims["username"].(string)
	user.Email, _ = claims["email"].(string)
	user.IsStaff, _ = claims["is_staff"].(bool)

	if user.ID == 0 && user.Username == "" {
		return nil, false
	}
	return user, true
}
