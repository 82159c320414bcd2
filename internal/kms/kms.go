// Package kms loads the treasury key that signs payouts.
package kms

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/bnbbuilders/tbnb-faucet/internal/config"
	"github.com/bnbbuilders/tbnb-faucet/internal/log"
	"github.com/bnbbuilders/tbnb-faucet/internal/providers"
)

// EthKeyProvider returns an Ethereum private key from wherever it is stored
type EthKeyProvider interface {
	PrivateKey(ctx context.Context) (*ecdsa.PrivateKey, error)
}

// NewEthKeyProvider builds the key provider selected in the treasury configuration
func NewEthKeyProvider(ctx context.Context, cfg config.Treasury) (EthKeyProvider, error) {
	switch cfg.Provider {
	case config.TreasuryProviderLocal:
		return NewLocalEthKeyProvider(cfg.PrivateKey), nil
	case config.TreasuryProviderVault:
		cli, err := providers.NewVaultClient(ctx, providers.Config{
			Address:             cfg.VaultAddress,
			Token:               cfg.VaultToken,
			UserPassAuthEnabled: cfg.VaultUserPass,
			User:                cfg.VaultUser,
			Pass:                cfg.VaultPass,
		})
		if err != nil {
			return nil, err
		}
		return NewVaultEthKeyProvider(cli, cfg.VaultSecretPath), nil
	case config.TreasuryProviderAWS:
		return NewAwsEthKeyProvider(ctx, AwsEthKeyProviderConfig{
			AccessKey:  cfg.AWSAccessKey,
			SecretKey:  cfg.AWSSecretKey,
			Region:     cfg.AWSRegion,
			SecretName: cfg.AWSSecretName,
		})
	}
	return nil, fmt.Errorf("unknown treasury key provider <%s>", cfg.Provider)
}

// LoadTreasuryKey resolves the treasury key once at startup
func LoadTreasuryKey(ctx context.Context, cfg config.Treasury) (*ecdsa.PrivateKey, error) {
	provider, err := NewEthKeyProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	key, err := provider.PrivateKey(ctx)
	if err != nil {
		log.Error(ctx, "cannot load treasury key", "provider", cfg.Provider, "err", err)
		return nil, err
	}
	return key, nil
}
