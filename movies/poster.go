package movies

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

var ErrNoPoster = errors.New("movie has no poster")

// DownloadPoster copies the poster image of movie to w and returns the number
// of bytes written. Logged in, the request carries the current credential.
func (s *Service) DownloadPoster(ctx context.Context, movie *Movie, w io.Writer) (int64, error) {
	if movie == nil || movie.Image == "" {
		return 0, ErrNoPoster
	}
	base, err := url.Parse(s.client.BaseURL())
	if err != nil {
		return 0, fmt.Errorf("[Service.DownloadPoster] base url: %w", err)
	}
	ref, err := url.Parse(movie.Image)
	if err != nil {
		return 0, fmt.Errorf("[Service.DownloadPoster] image url: %w", err)
	}
	target := base.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("[Service.DownloadPoster] %w", err)
	}

	httpClient := http.DefaultClient
	if s.client.Credential() != "" {
		httpClient = s.client.HTTPClient()
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("[Service.DownloadPoster] GET %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("[Service.DownloadPoster] GET %s: %s", target, resp.Status)
	}
	return io.Copy(w, resp.Body)
}
