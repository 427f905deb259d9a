package config

import "time"

type ClientConfig interface {
	GetBaseURL() string
	GetTimeout() time.Duration
	GetProactiveRefresh() time.Duration
}

// Client configures the authenticated API client.
type Client struct {
	BaseURL          string        `yaml:"base_url" env:"MOVIEZONE_BASE_URL" env-default:"http://localhost:8000/api/"`
	Timeout          time.Duration `yaml:"timeout" env:"MOVIEZONE_TIMEOUT" env-default:"15s"`
	ProactiveRefresh time.Duration `yaml:"proactive_refresh" env:"MOVIEZONE_PROACTIVE_REFRESH" env-default:"0s"` // 0 disables
}

var _ ClientConfig = Client{}

func (c Client) GetBaseURL() string {
	return c.BaseURL
}

func (c Client) GetTimeout() time.Duration {
	return c.Timeout
}

func (c Client) GetProactiveRefresh() time.Duration {
	return c.ProactiveRefresh
}
