package devserver

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	mediaPrefix    = "/media/"
	maxPosterBytes = 10 << 20
)

type mediaFile struct {
	data    []byte
	modTime time.Time
}

// mediaStore keeps uploaded posters in memory, keyed by their URL path.
type mediaStore struct {
	mu    sync.RWMutex
	files map[string]mediaFile
}

func newMediaStore() *mediaStore {
	return &mediaStore{files: make(map[string]mediaFile)}
}

// save stores content under a fresh name keeping the extension of filename
// and returns its URL path.
func (m *mediaStore) save(filename string, content io.Reader, now time.Time) (string, error) {
	data, err := io.ReadAll(io.LimitReader(content, maxPosterBytes+1))
	if err != nil {
		return "", fmt.Errorf("[mediaStore.save] %w", err)
	}
	if len(data) > maxPosterBytes {
		return "", fmt.Errorf("[mediaStore.save] %s exceeds %d bytes", filename, maxPosterBytes)
	}

	urlPath := mediaPrefix + "movies/" + uuid.NewString() + strings.ToLower(path.Ext(filename))
	m.mu.Lock()
	m.files[urlPath] = mediaFile{data: data, modTime: now}
	m.mu.Unlock()
	return urlPath, nil
}

func (m *mediaStore) open(urlPath string) (mediaFile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[urlPath]
	return f, ok
}

// MediaHandler serves uploaded posters.
func (s *Server) MediaHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := s.media.open(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, path.Base(r.URL.Path), f.modTime, bytes.NewReader(f.data))
	}
}
