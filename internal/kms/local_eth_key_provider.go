package kms

import (
	"context"
	"crypto/ecdsa"
)

type localEthKeyProvider struct {
	key string
}

// NewLocalEthKeyProvider returns a provider for a hex key taken from the environment
func NewLocalEthKeyProvider(hexKey string) EthKeyProvider {
	return &localEthKeyProvider{key: hexKey}
}

func (l *localEthKeyProvider) PrivateKey(_ context.Context) (*ecdsa.PrivateKey, error) {
	return decodeETHPrivateKey(l.key)
}
