package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	auth "github.com/mavi3006/hotel-auth"
	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

const EnvPrefix = "HOTEL"

const (
	StrategyLocal     = "local"
	StrategyDelegated = "delegated"
	StrategyJWKS      = "jwks"
)

type Config struct {
	Mode     string `mapstructure:"mode"`
	LogLevel string `mapstructure:"log_level"`
	Server   struct {
		Port            string        `mapstructure:"port"`
		FrontendURL     string        `mapstructure:"frontend_url"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`
	Database struct {
		URL          string `mapstructure:"url"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		Migrate      bool   `mapstructure:"migrate"`
	} `mapstructure:"database"`
	Auth      Auth `mapstructure:"auth"`
	RateLimit struct {
		APIMax      int           `mapstructure:"api_max"`
		APIWindow   time.Duration `mapstructure:"api_window"`
		LoginMax    int           `mapstructure:"login_max"`
		LoginWindow time.Duration `mapstructure:"login_window"`
	} `mapstructure:"rate_limit"`
}

type Auth struct {
	SigningKey      string        `mapstructure:"signing_key"`
	SigningMethod   string        `mapstructure:"signing_method"`
	ContextKey      string        `mapstructure:"context_key"`
	TokenExpiration time.Duration `mapstructure:"token_expiration"`
	TokenLookup     string        `mapstructure:"token_lookup"`
	AuthScheme      string        `mapstructure:"auth_scheme"`
	Issuer          string        `mapstructure:"issuer"`
	Audience        []string      `mapstructure:"audience"`
	Strategy        string        `mapstructure:"strategy"`
	Delegated       struct {
		URL      string        `mapstructure:"url"`
		APIKey   string        `mapstructure:"api_key"`
		AnonKey  string        `mapstructure:"anon_key"`
		Timeout  time.Duration `mapstructure:"timeout"`
		CacheTTL time.Duration `mapstructure:"cache_ttl"`
	} `mapstructure:"delegated"`
	JWKS struct {
		URLs            []string      `mapstructure:"urls"`
		Issuer          string        `mapstructure:"issuer"`
		Audience        string        `mapstructure:"audience"`
		RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	} `mapstructure:"jwks"`
}

var _ auth.Config = (*Config)(nil)

// LoadOptions controls where settings are read from. Later sources win:
// embedded defaults, ConfigFile, dotenv files, process environment.
type LoadOptions struct {
	ConfigFile string
	Dotenv     []string
}

// aliases maps config keys to the plain environment names used by the
// hosting platform. The prefixed HOTEL_ name always takes precedence.
var aliases = map[string]string{
	"mode":                    "NODE_ENV",
	"server.port":             "PORT",
	"server.frontend_url":     "FRONTEND_URL",
	"database.url":            "DATABASE_URL",
	"auth.signing_key":        "JWT_SECRET",
	"auth.delegated.url":      "SUPABASE_URL",
	"auth.delegated.api_key":  "SUPABASE_SERVICE_ROLE_KEY",
	"auth.delegated.anon_key": "SUPABASE_ANON_KEY",
}

// Load reads the configuration. It does not validate it.
func Load(opts LoadOptions) (*Config, error) {
	if err := loadDotenv(opts.Dotenv); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yml")
	if err := v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
		return nil, fmt.Errorf("failed to read embedded config: %w", err)
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range aliases {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Auth.Audience = splitList(cfg.Auth.Audience)
	cfg.Auth.JWKS.URLs = splitList(cfg.Auth.JWKS.URLs)
	return cfg, nil
}

// loadDotenv never overrides variables already present in the environment.
// Missing files are skipped.
func loadDotenv(files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Validate fails on settings the server cannot start without
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Auth.SigningKey) == "" {
		errs = append(errs, errors.New("auth.signing_key (JWT_SECRET) is required"))
	}
	if !strings.EqualFold(c.Auth.SigningMethod, "HS256") {
		errs = append(errs, fmt.Errorf("auth.signing_method %q is not supported, use HS256", c.Auth.SigningMethod))
	}
	if c.Auth.TokenExpiration <= 0 {
		errs = append(errs, errors.New("auth.token_expiration must be positive"))
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		errs = append(errs, errors.New("server.port is required"))
	}

	strategies := c.GetStrategy()
	if len(strategies) == 0 {
		errs = append(errs, errors.New("auth.strategy is required"))
	}
	for _, s := range strategies {
		switch s {
		case StrategyLocal:
		case StrategyDelegated:
			if c.Auth.Delegated.URL == "" || c.Auth.Delegated.APIKey == "" {
				errs = append(errs, errors.New("delegated strategy needs auth.delegated.url and auth.delegated.api_key"))
			}
		case StrategyJWKS:
			if len(c.Auth.JWKS.URLs) == 0 {
				errs = append(errs, errors.New("jwks strategy needs auth.jwks.urls"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown auth strategy %q", s))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) GetSigningKey() string {
	return c.Auth.SigningKey
}

func (c *Config) GetSigningMethod() string {
	return c.Auth.SigningMethod
}

func (c *Config) GetContextKey() string {
	return c.Auth.ContextKey
}

func (c *Config) GetTokenExpiration() time.Duration {
	return c.Auth.TokenExpiration
}

func (c *Config) GetTokenLookup() string {
	return c.Auth.TokenLookup
}

func (c *Config) GetAuthScheme() string {
	return c.Auth.AuthScheme
}

func (c *Config) GetIssuer() string {
	return c.Auth.Issuer
}

func (c *Config) GetAudience() []string {
	return c.Auth.Audience
}

// GetStrategy returns the validators to compose, in order
func (c *Config) GetStrategy() []string {
	parts := strings.Split(c.Auth.Strategy, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Mode, "production")
}

// Addr returns the listen address
func (c *Config) Addr() string {
	port := strings.TrimPrefix(strings.TrimSpace(c.Server.Port), ":")
	return ":" + port
}

// splitList flattens comma separated entries, which is how list values
// arrive from the environment
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
