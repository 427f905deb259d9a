package movies

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
)

// Watch option types
const (
	WatchSubscription = "subscription"
	WatchBuy          = "buy"
	WatchRent         = "rent"
)

// WatchOption is a streaming or store offer for a movie.
type WatchOption struct {
	Platform string `json:"platform"`
	Type     string `json:"type"`
	URL      string `json:"url"`
	Logo     string `json:"logo,omitempty"`
	Price    Price  `json:"price,omitempty"`
}

// Price is shown as sent. Providers answer with either a string such as
// "$3.99" or a bare number.
type Price string

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*p = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Price(s)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*p = Price(strconv.FormatFloat(f, 'f', -1, 64))
	}
	return nil
}

// WatchOptions lists where movie id can be watched.
func (s *Service) WatchOptions(ctx context.Context, id int64) ([]WatchOption, error) {
	var payload struct {
		WatchOptions []WatchOption `json:"watch_options"`
	}
	if err := s.getJSON(ctx, moviePath(id)+"watch_options/", &payload); err != nil {
		return nil, err
	}
	if payload.WatchOptions == nil {
		return []WatchOption{}, nil
	}
	return payload.WatchOptions, nil
}
