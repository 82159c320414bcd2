package kms

import (
	"crypto/ecdsa"
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const (
	jsonPrivateKey = "private_key"
	jsonKeyData    = "key_data"
)

// ErrNoKeyMaterial is returned when a secret doesn't hold a private key
var ErrNoKeyMaterial = errors.New("secret holds no private key")

// decodeETHPrivateKey parses a hex encoded secp256k1 key with or without 0x prefix
func decodeETHPrivateKey(key string) (*ecdsa.PrivateKey, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "0x")
	if key == "" {
		return nil, ErrNoKeyMaterial
	}
	privKey, err := crypto.HexToECDSA(key)
	return privKey, errors.Wrap(err, "invalid private key")
}

// keyFromSecretString accepts either a bare hex key or a JSON object carrying it
func keyFromSecretString(secret string) (*ecdsa.PrivateKey, error) {
	secret = strings.TrimSpace(secret)
	if !strings.HasPrefix(secret, "{") {
		return decodeETHPrivateKey(secret)
	}
	var material map[string]string
	if err := json.Unmarshal([]byte(secret), &material); err != nil {
		return nil, errors.WithStack(err)
	}
	return keyFromMaterial(material)
}

func keyFromMaterial(material map[string]string) (*ecdsa.PrivateKey, error) {
	for _, field := range []string{jsonPrivateKey, jsonKeyData} {
		if v, ok := material[field]; ok && v != "" {
			return decodeETHPrivateKey(v)
		}
	}
	return nil, ErrNoKeyMaterial
}
