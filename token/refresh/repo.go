package refresh

import (
	"time"
)

// StoredRefreshToken is the server-side record of an issued refresh token.
// The client only receives Token, an opaque random string.
type StoredRefreshToken struct {
	Token  string    // The actual random token string (sent to client)
	UserID int64     // Owner of the token
	Iat    time.Time // Issued at time
}

// Repo manages server-side storage of refresh tokens keyed by the token string.
type Repo interface {
	Upsert(refreshToken *StoredRefreshToken) error
	Delete(token string) error
	Get(token string) (*StoredRefreshToken, error)
	GetByUserID(userID int64) (*StoredRefreshToken, error)
	List(offset, limit int) ([]*StoredRefreshToken, error)
}
