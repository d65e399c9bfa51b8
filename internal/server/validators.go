package server

import (
	"fmt"
	"log/slog"

	auth "github.com/mavi3006/hotel-auth"
	"github.com/mavi3006/hotel-auth/config"
	"github.com/mavi3006/hotel-auth/provider/jwks"
	"github.com/mavi3006/hotel-auth/provider/supabase"
)

// NewTokenValidator builds the verification backend named by the configured
// strategies. Several strategies are tried in order. The returned closers
// stop background key refreshes.
func NewTokenValidator(cfg *config.Config, tokens auth.TokenService, logger *slog.Logger) (auth.TokenValidator, []func(), error) {
	var (
		validators []auth.TokenValidator
		closers    []func()
	)

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, strategy := range cfg.GetStrategy() {
		switch strategy {
		case config.StrategyLocal:
			validators = append(validators, tokens)

		case config.StrategyDelegated:
			v, err := supabase.NewTokenValidator(supabase.Config{
				URL:      cfg.Auth.Delegated.URL,
				APIKey:   cfg.Auth.Delegated.APIKey,
				Timeout:  cfg.Auth.Delegated.Timeout,
				CacheTTL: cfg.Auth.Delegated.CacheTTL,
				Logger:   logger.With("component", "supabase"),
			})
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			validators = append(validators, v)

		case config.StrategyJWKS:
			v, err := jwks.NewTokenValidator(jwks.Config{
				URLs:            cfg.Auth.JWKS.URLs,
				Issuer:          cfg.Auth.JWKS.Issuer,
				Audience:        cfg.Auth.JWKS.Audience,
				RefreshInterval: cfg.Auth.JWKS.RefreshInterval,
				Logger:          logger.With("component", "jwks"),
			})
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			validators = append(validators, v)
			closers = append(closers, v.Close)

		default:
			closeAll()
			return nil, nil, fmt.Errorf("unknown auth strategy %q", strategy)
		}
	}

	switch len(validators) {
	case 0:
		return nil, nil, fmt.Errorf("no auth strategy configured")
	case 1:
		return validators[0], closers, nil
	default:
		return auth.NewMultiTokenValidator(validators...), closers, nil
	}
}
