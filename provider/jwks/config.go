package jwks

import (
	"strings"
	"time"

	auth "github.com/mavi3006/hotel-auth"
)

// Config holds the remote key set settings.
type Config struct {
	// URLs are the JWKS endpoints. Keys from every set are accepted.
	URLs []string

	// Issuer, when set, must match the iss claim.
	Issuer string

	// Audience, when set, must be present in the aud claim.
	Audience string

	// Algorithms accepted in the token header.
	// Default: RS256.
	Algorithms []string

	// RefreshInterval is how often keys are fetched in the background.
	// Default: 1 hour.
	RefreshInterval time.Duration

	// Leeway applied to exp and nbf checks.
	Leeway time.Duration

	Logger auth.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(urls ...string) Config {
	return Config{
		URLs:            urls,
		Algorithms:      []string{"RS256"},
		RefreshInterval: time.Hour,
	}
}

func (c Config) urls() []string {
	out := make([]string, 0, len(c.URLs))
	for _, u := range c.URLs {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func (c Config) algorithms() []string {
	if len(c.Algorithms) == 0 {
		return []string{"RS256"}
	}
	return c.Algorithms
}

func (c Config) refreshInterval() time.Duration {
	if c.RefreshInterval <= 0 {
		return time.Hour
	}
	return c.RefreshInterval
}
