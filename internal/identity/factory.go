package identity

import (
	"fmt"

	"github.com/nfrund/signin/internal/config"
	"github.com/nfrund/signin/internal/domain"
)

// NewIdentityService creates the identity backend selected by the configuration.
func NewIdentityService(cfg config.Provider) (domain.IdentityService, error) {
	switch cfg.GetIdentityProvider() {
	case config.IdentityLog, "":
		return NewLogService(cfg.GetAppBaseURL()), nil
	case config.IdentityGoTrue:
		if cfg.GetIdentityURL() == "" {
			return nil, fmt.Errorf("identity provider is 'gotrue' but IDENTITY_URL is not set")
		}
		return NewGoTrueService(cfg.GetIdentityURL(), cfg.GetIdentityAPIKey(), cfg.GetAppBaseURL()), nil
	case config.IdentityNone:
		return Unavailable{}, nil
	default:
		return nil, fmt.Errorf("unknown identity provider: %s", cfg.GetIdentityProvider())
	}
}
