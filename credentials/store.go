// Package credentials persists the active credential pair between process runs.
//
// It plays the part browser local storage plays for a web client: two string
// values under well-known keys, written and cleared together.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-moviezone-client/internal/config"
)

// Well-known storage keys
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
)

// Store types accepted by Open
const (
	TypeMemory = "memory"
	TypeFile   = "file"
	TypeRedis  = "redis"
)

//go:generate mockgen -destination=../mocks/mock_store.go -package=mocks github.com/jrsteele09/go-moviezone-client/credentials Store

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("credential not found")

// Store is a small key/value store for credentials.
type Store interface {
	// Get returns the value stored under key or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Put writes all entries in one atomic step
	Put(ctx context.Context, entries map[string]string) error

	// Delete removes the keys in one atomic step; missing keys are ignored
	Delete(ctx context.Context, keys ...string) error
}

// Pair is the access/refresh credential pair issued by the backend.
type Pair struct {
	Access  string
	Refresh string
}

// Entries returns the non-empty members of the pair keyed for a Store.
func (p Pair) Entries() map[string]string {
	entries := make(map[string]string, 2)
	if p.Access != "" {
		entries[KeyAccessToken] = p.Access
	}
	if p.Refresh != "" {
		entries[KeyRefreshToken] = p.Refresh
	}
	return entries
}

// Open builds the Store selected by the configuration.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.GetStoreType()) {
	case TypeMemory:
		return NewMemoryStore(), nil
	case TypeFile, "":
		var opts []FileOption
		if passphrase := cfg.GetStorePassphrase(); passphrase != "" {
			opts = append(opts, WithPassphrase(passphrase))
		}
		return NewFileStore(cfg.GetStorePath(), opts...)
	case TypeRedis:
		return DialRedis(ctx, RedisOptions{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
			Prefix:   cfg.GetRedisPrefix(),
		})
	default:
		return nil, fmt.Errorf("[credentials.Open] unknown store type %q", cfg.GetStoreType())
	}
}
