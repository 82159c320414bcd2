package kms

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/hashicorp/vault/api"
	"github.com/pkg/errors"
)

const kvStoragePath = "secret"

type vaultEthKeyProvider struct {
	vaultCli *api.Client
	path     string
}

// NewVaultEthKeyProvider reads the key from the KV v2 secret at path. The secret data must have
// a private_key (or key_data) field.
func NewVaultEthKeyProvider(vaultCli *api.Client, path string) EthKeyProvider {
	return &vaultEthKeyProvider{vaultCli: vaultCli, path: strings.Trim(path, "/")}
}

func (v *vaultEthKeyProvider) PrivateKey(ctx context.Context) (*ecdsa.PrivateKey, error) {
	secret, err := v.vaultCli.Logical().ReadWithContext(ctx, kvStoragePath+"/data/"+v.path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if secret == nil {
		return nil, fmt.Errorf("vault secret %s: %w", v.path, ErrNoKeyMaterial)
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("unexpected vault secret format: %T", secret.Data["data"])
	}
	material := make(map[string]string, len(data))
	for k, val := range data {
		if s, ok := val.(string); ok {
			material[k] = s
		}
	}
	return keyFromMaterial(material)
}
