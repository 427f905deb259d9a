package credentials

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	sealedMagic = "MZS1"
	saltLength  = 16
	nonceLength = 24
	keyLength   = 32

	// argon2id parameters, sized for an interactive CLI
	argonTime    = 1
	argonMemory  = 19 * 1024
	argonThreads = 1
)

// ErrSealed is returned when the file is sealed and no passphrase (or the wrong one) was given.
var ErrSealed = errors.New("credential file is sealed")

var _ Store = (*FileStore)(nil)

// FileStore keeps credentials in a JSON document on disk so they survive restarts.
// The document is rewritten through a temp file and a rename, so readers never
// observe half of a pair. With a passphrase the document is sealed with
// nacl/secretbox under an argon2id-derived key.
type FileStore struct {
	path       string
	passphrase []byte
	salt       []byte
	key        *[keyLength]byte
	lock       sync.Mutex
}

type FileOption func(*FileStore)

// WithPassphrase seals the file at rest.
func WithPassphrase(passphrase string) FileOption {
	return func(fs *FileStore) {
		fs.passphrase = []byte(passphrase)
	}
}

func NewFileStore(path string, options ...FileOption) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("[NewFileStore] path is required")
	}
	fs := &FileStore{path: path}
	for _, opt := range options {
		opt(fs)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("[NewFileStore] create directory: %w", err)
	}
	return fs, nil
}

// Path returns the location of the backing file.
func (fs *FileStore) Path() string {
	return fs.path
}

func (fs *FileStore) Get(_ context.Context, key string) (string, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	values, err := fs.load()
	if err != nil {
		return "", err
	}
	value, ok := values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (fs *FileStore) Put(_ context.Context, entries map[string]string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	values, err := fs.load()
	if err != nil {
		return err
	}
	for k, v := range entries {
		values[k] = v
	}
	return fs.save(values)
}

func (fs *FileStore) Delete(_ context.Context, keys ...string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	values, err := fs.load()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := values[k]; ok {
			delete(values, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return fs.save(values)
}

func (fs *FileStore) load() (map[string]string, error) {
	values := make(map[string]string)

	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[FileStore.load] read: %w", err)
	}
	if len(data) == 0 {
		return values, nil
	}

	// A plain file read with a passphrase is sealed on the next write.
	if bytes.HasPrefix(data, []byte(sealedMagic)) {
		data, err = fs.open(data)
		if err != nil {
			return nil, err
		}
	}

	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("[FileStore.load] decode: %w", err)
	}
	return values, nil
}

func (fs *FileStore) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("[FileStore.save] encode: %w", err)
	}
	if fs.passphrase != nil {
		if data, err = fs.seal(data); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("[FileStore.save] temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("[FileStore.save] chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("[FileStore.save] write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("[FileStore.save] sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[FileStore.save] close: %w", err)
	}
	if err := os.Rename(tmp.Name(), fs.path); err != nil {
		return fmt.Errorf("[FileStore.save] rename: %w", err)
	}
	return nil
}

// seal lays out magic | salt | nonce | box.
func (fs *FileStore) seal(plain []byte) ([]byte, error) {
	if fs.key == nil {
		salt := make([]byte, saltLength)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("[FileStore.seal] salt: %w", err)
		}
		fs.deriveKey(salt)
	}

	var nonce [nonceLength]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("[FileStore.seal] nonce: %w", err)
	}

	out := make([]byte, 0, len(sealedMagic)+saltLength+nonceLength+len(plain)+secretbox.Overhead)
	out = append(out, sealedMagic...)
	out = append(out, fs.salt...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plain, &nonce, fs.key), nil
}

func (fs *FileStore) open(data []byte) ([]byte, error) {
	if fs.passphrase == nil {
		return nil, ErrSealed
	}
	data = data[len(sealedMagic):]
	if len(data) < saltLength+nonceLength+secretbox.Overhead {
		return nil, fmt.Errorf("[FileStore.open] truncated file: %w", ErrSealed)
	}

	salt := data[:saltLength]
	if fs.key == nil || !bytes.Equal(salt, fs.salt) {
		fs.deriveKey(salt)
	}

	var nonce [nonceLength]byte
	copy(nonce[:], data[saltLength:saltLength+nonceLength])

	plain, ok := secretbox.Open(nil, data[saltLength+nonceLength:], &nonce, fs.key)
	if !ok {
		return nil, fmt.Errorf("[FileStore.open] wrong passphrase: %w", ErrSealed)
	}
	return plain, nil
}

func (fs *FileStore) deriveKey(salt []byte) {
	fs.salt = append([]byte(nil), salt...)
	derived := argon2.IDKey(fs.passphrase, fs.salt, argonTime, argonMemory, argonThreads, keyLength)
	var key [keyLength]byte
	copy(key[:], derived)
	fs.key = &key
}
