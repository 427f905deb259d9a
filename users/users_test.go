package users_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-moviezone-client/users"
)

func TestPasswordHash(t *testing.T) {
	hash, err := users.HashPassword("demo123")
	require.NoError(t, err)
	require.True(t, users.CheckPasswordHash("demo123", hash))
	require.False(t, users.CheckPasswordHash("demo124", hash))

	u := &users.User{PasswordHash: hash}
	require.True(t, u.CheckPassword("demo123"))
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "demo", (&users.User{Username: "demo"}).DisplayName())
	require.Equal(t, "Ada Lovelace", (&users.User{Username: "ada", FirstName: "Ada", LastName: "Lovelace"}).DisplayName())
	require.Empty(t, (*users.User)(nil).DisplayName())
}

func TestFromAccessToken(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  7,
		"username": "demo",
		"is_staff": true,
		"exp":      time.Now().Add(time.Minute).Unix(),
	}).SignedString([]byte("any-secret"))
	require.NoError(t, err)

	u, ok := users.FromAccessToken(raw)
	require.True(t, ok)
	require.Equal(t, int64(7), u.ID)
	require.Equal(t, "demo", u.Username)
	require.True(t, u.IsStaff)

	_, ok = users.FromAccessToken("opaque-token")
	require.False(t, ok)
}

func TestRegistrationValidate(t *testing.T) {
	tests := []struct {
		name    string
		reg     users.Registration
		field   string
		message string
	}{
		{
			name: "valid",
			reg:  users.Registration{Username: "new", Password: "secret1", Password2: "secret1", Email: "new@example.com"},
		},
		{
			name:    "missing username",
			reg:     users.Registration{Password: "secret1", Password2: "secret1"},
			field:   "username",
			message: "This field is required.",
		},
		{
			name:    "bad email",
			reg:     users.Registration{Username: "new", Password: "secret1", Password2: "secret1", Email: "nope"},
			field:   "email",
			message: "Enter a valid email address.",
		},
		{
			name:    "mismatch",
			reg:     users.Registration{Username: "new", Password: "secret1", Password2: "secret2"},
			field:   users.NonFieldErrors,
			message: "Passwords do not match",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reg.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var verrs users.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.Equal(t, []string{tt.message}, verrs[tt.field])
			require.Equal(t, tt.message, err.Error())
		})
	}
}

func TestPasswordResetConfirmValidate(t *testing.T) {
	ok := users.PasswordResetConfirm{UID: "MQ", Token: "t", NewPassword: "secret1", ConfirmPassword: "secret1"}
	require.NoError(t, ok.Validate())

	short := ok
	short.NewPassword, short.ConfirmPassword = "abc", "abc"
	err := short.Validate()
	require.Error(t, err)
	require.Contains(t, err.(users.ValidationErrors)["new_password"][0], "at least 6")

	mismatch := ok
	mismatch.ConfirmPassword = "secret2"
	require.Equal(t, "Passwords do not match", mismatch.Validate().Error())
}

func TestLoginAndResetRequestValidate(t *testing.T) {
	require.NoError(t, users.Login{Login: "demo", Password: "demo123"}.Validate())
	require.Equal(t, "Username or email is required", users.Login{Password: "x"}.Validate().Error())
	require.Equal(t, "Username or email is required", users.Login{Login: "   ", Password: "x"}.Validate().Error())

	require.NoError(t, users.PasswordResetRequest{Email: "demo@example.com"}.Validate())
	require.Equal(t, "This field is required.", users.PasswordResetRequest{}.Validate().Error())
	require.Equal(t, "Enter a valid email address.", users.PasswordResetRequest{Email: "demo"}.Validate().Error())
}
