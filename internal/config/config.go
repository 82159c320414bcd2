package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/bnbbuilders/tbnb-faucet/internal/log"
	"github.com/bnbbuilders/tbnb-faucet/pkg/blockchain/eth"
)

// EnvPrefix is the prefix shared by every environment variable read by the faucet
const EnvPrefix = "FAUCET_"

// Cache providers
const (
	CacheProviderRedis  = "redis"
	CacheProviderValKey = "valkey"
	CacheProviderMemory = "memory"
	CacheProviderNone   = "none"
)

// Treasury key providers
const (
	TreasuryProviderLocal = "local"
	TreasuryProviderVault = "vault"
	TreasuryProviderAWS   = "aws"
)

// Configuration holds the project configuration
type Configuration struct {
	ServerPort     int          `env:"SERVER_PORT" envDefault:"8090"`
	AllowedOrigins []string     `env:"ALLOWED_ORIGINS" envDefault:"*"`
	Log            Log          `envPrefix:"LOG_"`
	Database       Database     `envPrefix:"DATABASE_"`
	Cache          Cache        `envPrefix:"CACHE_"`
	GitHub         GitHub       `envPrefix:"GITHUB_"`
	Verification   Verification `envPrefix:"VERIFICATION_"`
	Distribution   Distribution `envPrefix:"DISTRIBUTION_"`
	Ethereum       Ethereum     `envPrefix:"ETHEREUM_"`
	Treasury       Treasury     `envPrefix:"TREASURY_"`
}

// Log holds runtime configurations
//
// Level: The minimum log level to show on logs. Values can be
//
//	-4: Debug
//	 0: Info
//	 4: Warning
//	 8: Error
//
// Mode: Log mode is the format of the log. It can be text or json
// 1: JSON
// 2: Text
type Log struct {
	Level int `env:"LEVEL" envDefault:"0"`
	Mode  int `env:"MODE" envDefault:"2"`
}

// Database has the database configuration
// URL: The database connection string
type Database struct {
	URL string `env:"URL"`
}

// Cache configurations. Used to keep GitHub profile lookups for a short while.
type Cache struct {
	Provider string `env:"PROVIDER" envDefault:"memory"`
	URL      string `env:"URL"`
}

// GitHub holds the identity provider settings
type GitHub struct {
	APIURL            string        `env:"API_URL" envDefault:"https://api.github.com"`
	Token             string        `env:"TOKEN"`
	Timeout           time.Duration `env:"TIMEOUT" envDefault:"10s"`
	RetryMax          int           `env:"RETRY_MAX" envDefault:"2"`
	RequestsPerSecond float64       `env:"REQUESTS_PER_SECOND" envDefault:"5"`
	Burst             int           `env:"BURST" envDefault:"10"`
	CacheTTL          time.Duration `env:"CACHE_TTL" envDefault:"5m"`
}

// Verification holds the thresholds a GitHub account has to meet
type Verification struct {
	MinAccountAgeDays int `env:"MIN_ACCOUNT_AGE_DAYS" envDefault:"30"`
	MinPublicRepos    int `env:"MIN_PUBLIC_REPOS" envDefault:"1"`
}

// Distribution holds the cooldown ledger settings
//
// CooldownWindow: minimum time between two payouts for the same GitHub account.
// HoldTimeout: how long a reservation may stay unresolved before the reconciler takes it.
type Distribution struct {
	CooldownWindow    time.Duration `env:"COOLDOWN_WINDOW" envDefault:"24h"`
	HoldTimeout       time.Duration `env:"HOLD_TIMEOUT" envDefault:"5m"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1m"`
	ReconcileInline   bool          `env:"RECONCILE_INLINE" envDefault:"true"`
}

const minShutdownTimeout = 30 * time.Second

// ShutdownTimeout is how long the server waits for in-flight requests on shutdown. It covers
// a payout detached at the last moment, bounded by HoldTimeout.
func (d Distribution) ShutdownTimeout() time.Duration {
	if t := d.HoldTimeout + 10*time.Second; t > minShutdownTimeout {
		return t
	}
	return minShutdownTimeout
}

// Ethereum struct
type Ethereum struct {
	URL                  string        `env:"URL"`
	PayoutAmount         string        `env:"PAYOUT_AMOUNT" envDefault:"0.3"`
	GasLimit             uint64        `env:"GAS_LIMIT" envDefault:"21000"`
	MinGasPrice          int64         `env:"MIN_GAS_PRICE" envDefault:"0"`
	MaxGasPrice          int64         `env:"MAX_GAS_PRICE" envDefault:"0"`
	RPCResponseTimeout   time.Duration `env:"RPC_RESPONSE_TIMEOUT" envDefault:"10s"`
	ReceiptTimeout       time.Duration `env:"RECEIPT_TIMEOUT" envDefault:"2m"`
	WaitReceiptCycleTime time.Duration `env:"WAIT_RECEIPT_CYCLE_TIME" envDefault:"2s"`
}

// Treasury defines where the key that funds payouts is loaded from
type Treasury struct {
	Provider        string `env:"PROVIDER" envDefault:"local"`
	PrivateKey      string `env:"PRIVATE_KEY"`
	VaultAddress    string `env:"VAULT_ADDRESS"`
	VaultToken      string `env:"VAULT_TOKEN"`
	VaultUserPass   bool   `env:"VAULT_USERPASS_AUTH_ENABLED" envDefault:"false"`
	VaultUser       string `env:"VAULT_USER" envDefault:"faucet"`
	VaultPass       string `env:"VAULT_PASS"`
	VaultSecretPath string `env:"VAULT_SECRET_PATH" envDefault:"faucet/treasury"`
	AWSRegion       string `env:"AWS_REGION"`
	AWSAccessKey    string `env:"AWS_ACCESS_KEY"`
	AWSSecretKey    string `env:"AWS_SECRET_KEY"`
	AWSSecretName   string `env:"AWS_SECRET_NAME" envDefault:"faucet/treasury"`
}

// PayoutAmountWei returns the configured payout amount converted to wei
func (e Ethereum) PayoutAmountWei() (*big.Int, error) {
	return eth.ParseEther(e.PayoutAmount)
}

// Load reads the configuration from the environment. A .env file in the working directory
// is loaded first if present; variables already set in the environment take precedence.
func Load() (*Configuration, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}
	return parse(env.Options{Prefix: EnvPrefix})
}

func parse(opts env.Options) (*Configuration, error) {
	cfg := &Configuration{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	return cfg, nil
}

// Sanitize perform some basic checks and sanitizations in the configuration.
// Returns nil if config is acceptable, error otherwise.
func (c *Configuration) Sanitize(ctx context.Context) error {
	if c.Database.URL == "" {
		return errors.New(EnvPrefix + "DATABASE_URL value is missing")
	}
	if c.Ethereum.URL == "" {
		return errors.New(EnvPrefix + "ETHEREUM_URL value is missing")
	}
	amount, err := c.Ethereum.PayoutAmountWei()
	if err != nil {
		return fmt.Errorf("invalid payout amount <%s>: %w", c.Ethereum.PayoutAmount, err)
	}
	if amount.Sign() <= 0 {
		return fmt.Errorf("payout amount must be positive, got <%s>", c.Ethereum.PayoutAmount)
	}
	if c.Ethereum.GasLimit == 0 {
		return errors.New("gas limit must be positive")
	}
	if c.Ethereum.MaxGasPrice > 0 && c.Ethereum.MinGasPrice > c.Ethereum.MaxGasPrice {
		return errors.New("min gas price is greater than max gas price")
	}
	if c.Distribution.CooldownWindow <= 0 {
		return errors.New("cooldown window must be positive")
	}
	if c.Distribution.HoldTimeout <= 0 {
		return errors.New("hold timeout must be positive")
	}
	if c.Distribution.HoldTimeout < c.Ethereum.ReceiptTimeout {
		log.Warn(ctx, "hold timeout is shorter than the receipt timeout, the reconciler may resolve in-flight payouts",
			"holdTimeout", c.Distribution.HoldTimeout, "receiptTimeout", c.Ethereum.ReceiptTimeout)
	}
	if c.Verification.MinAccountAgeDays < 0 || c.Verification.MinPublicRepos < 0 {
		return errors.New("verification thresholds can't be negative")
	}

	c.GitHub.APIURL = strings.TrimRight(c.GitHub.APIURL, "/")
	if c.GitHub.Token == "" {
		log.Info(ctx, EnvPrefix+"GITHUB_TOKEN value is missing, GitHub lookups will use the anonymous quota")
	}

	switch c.Cache.Provider {
	case CacheProviderRedis, CacheProviderValKey:
		if c.Cache.URL == "" {
			return fmt.Errorf("a cache url is required for the %s provider", c.Cache.Provider)
		}
	case CacheProviderMemory, CacheProviderNone:
	default:
		return fmt.Errorf("unknown cache provider <%s>", c.Cache.Provider)
	}

	switch c.Treasury.Provider {
	case TreasuryProviderLocal:
		if c.Treasury.PrivateKey == "" {
			return errors.New(EnvPrefix + "TREASURY_PRIVATE_KEY value is missing")
		}
	case TreasuryProviderVault:
		if c.Treasury.VaultAddress == "" {
			return errors.New("a vault address is required for the vault treasury provider")
		}
		if c.Treasury.VaultUserPass && c.Treasury.VaultPass == "" {
			return errors.New("vault userpass auth enabled but password is not set")
		}
		if !c.Treasury.VaultUserPass && c.Treasury.VaultToken == "" {
			return errors.New("a vault token is required for the vault treasury provider")
		}
	case TreasuryProviderAWS:
		if c.Treasury.AWSRegion == "" {
			return errors.New("an aws region is required for the aws treasury provider")
		}
	default:
		return fmt.Errorf("unknown treasury provider <%s>", c.Treasury.Provider)
	}
	return nil
}
