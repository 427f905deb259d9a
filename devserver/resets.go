package devserver

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"sync"
	"time"
)

type resetEntry struct {
	userID  int64
	expires time.Time
}

// resetTokens holds the outstanding password reset links. A token is single
// use and a new request for a user replaces that user's previous token.
type resetTokens struct {
	mu      sync.Mutex
	tokens  map[string]resetEntry
	byUser  map[int64]string
	ttl     time.Duration
	nowFunc func() time.Time
}

func newResetTokens(nowFunc func() time.Time, ttl time.Duration) *resetTokens {
	return &resetTokens{
		tokens:  make(map[string]resetEntry),
		byUser:  make(map[int64]string),
		ttl:     ttl,
		nowFunc: nowFunc,
	}
}

func (rt *resetTokens) issue(userID int64) (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	tok := hex.EncodeToString(b)

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if old, ok := rt.byUser[userID]; ok {
		delete(rt.tokens, old)
	}
	rt.tokens[tok] = resetEntry{userID: userID, expires: rt.nowFunc().Add(rt.ttl)}
	rt.byUser[userID] = tok
	return tok, nil
}

// redeem consumes tok if it is valid for userID.
func (rt *resetTokens) redeem(userID int64, tok string) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	entry, ok := rt.tokens[tok]
	if !ok || entry.userID != userID {
		return false
	}
	delete(rt.tokens, tok)
	delete(rt.byUser, userID)
	return !rt.nowFunc().After(entry.expires)
}

// encodeUID encodes a user id the way reset links carry it: unpadded URL-safe
// base64 of the decimal id.
func encodeUID(id int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

func decodeUID(uid string) (int64, bool) {
	b, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	return id, err == nil
}
