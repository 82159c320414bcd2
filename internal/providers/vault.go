package providers

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/hashicorp/vault/api/auth/userpass"

	"github.com/bnbbuilders/tbnb-faucet/internal/log"
)

// HTTPClientTimeout http client timeout
const HTTPClientTimeout = 10 * time.Second

// Config holds the vault connection settings.
// With UserPassAuthEnabled the client logs in with User and Pass instead of using Token.
type Config struct {
	Address             string
	Token               string
	UserPassAuthEnabled bool
	User                string
	Pass                string
}

// NewVaultClient checks vault configuration and creates new vault client
func NewVaultClient(ctx context.Context, cfg Config) (*api.Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("vault address is not specified")
	}
	if !cfg.UserPassAuthEnabled && cfg.Token == "" {
		return nil, errors.New("vault access token is not specified")
	}

	config := api.DefaultConfig()
	config.Address = cfg.Address
	config.HttpClient.Timeout = HTTPClientTimeout

	client, err := api.NewClient(config)
	if err != nil {
		return nil, err
	}

	if !cfg.UserPassAuthEnabled {
		client.SetToken(cfg.Token)
		return client, nil
	}

	auth, err := userpass.NewUserpassAuth(cfg.User, &userpass.Password{FromString: cfg.Pass})
	if err != nil {
		return nil, err
	}
	secret, err := client.Auth().Login(ctx, auth)
	if err != nil {
		log.Error(ctx, "vault userpass login failed", "user", cfg.User, "err", err)
		return nil, err
	}
	if secret == nil || secret.Auth == nil {
		return nil, errors.New("vault userpass login returned no token")
	}
	return client, nil
}
