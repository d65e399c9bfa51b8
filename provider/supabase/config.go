package supabase

import (
	"strings"
	"time"

	auth "github.com/mavi3006/hotel-auth"
)

// Config holds the identity API settings.
type Config struct {
	// URL is the project base URL, e.g. https://xyz.supabase.co
	URL string

	// APIKey is sent as the apikey header. Use the service role key.
	APIKey string

	// Timeout bounds each call to the identity API.
	// Default: 10 seconds.
	Timeout time.Duration

	// CacheTTL enables caching of accepted tokens. The entry never outlives
	// the token exp claim. Zero disables the cache.
	CacheTTL time.Duration

	Logger auth.Logger

	// Now overrides the clock, used by tests.
	Now func() time.Time
}

func (c Config) endpoint() string {
	return strings.TrimRight(strings.TrimSpace(c.URL), "/") + "/auth/v1/user"
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 10 * time.Second
	}
	return c.Timeout
}
