package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bnbbuilders/tbnb-faucet/internal/cache"
	"github.com/bnbbuilders/tbnb-faucet/internal/core/domain"
	"github.com/bnbbuilders/tbnb-faucet/internal/core/ports"
	"github.com/bnbbuilders/tbnb-faucet/internal/log"
	httpclient "github.com/bnbbuilders/tbnb-faucet/pkg/http"
)

const githubCachePrefix = "github:user:"

// GithubConfig holds the settings of the GitHub users API client
type GithubConfig struct {
	APIURL            string
	Token             string
	Timeout           time.Duration
	RetryMax          int
	RequestsPerSecond float64
	Burst             int
	CacheTTL          time.Duration
}

type github struct {
	conn     *httpclient.Client
	baseURL  string
	limiter  *rate.Limiter
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewGithub returns an IdentityProvider backed by the GitHub REST API.
// Found profiles are kept in c for cfg.CacheTTL. Not found answers are never cached.
func NewGithub(cfg GithubConfig, c cache.Cache) ports.IdentityProvider {
	opts := []httpclient.Option{
		httpclient.WithHeader("Accept", "application/vnd.github+json"),
		httpclient.WithHeader("X-GitHub-Api-Version", "2022-11-28"),
	}
	if cfg.Token != "" {
		opts = append(opts, httpclient.WithHeader("Authorization", "Bearer "+cfg.Token))
	}
	return newGithub(httpclient.NewRetryableClient(cfg.RetryMax, cfg.Timeout, opts...), cfg, c)
}

func newGithub(conn *httpclient.Client, cfg GithubConfig, c cache.Cache) *github {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	if c == nil {
		c = &cache.NullCache{}
	}
	return &github{
		conn:     conn,
		baseURL:  strings.TrimRight(cfg.APIURL, "/"),
		limiter:  rate.NewLimiter(limit, burst),
		cache:    c,
		cacheTTL: cfg.CacheTTL,
	}
}

// GetUser returns the public profile of username. ErrIdentityNotFound is returned when GitHub answers 404.
func (g *github) GetUser(ctx context.Context, username string) (*domain.GithubProfile, error) {
	key := githubCachePrefix + strings.ToLower(username)
	var cached domain.GithubProfile
	if g.cacheTTL > 0 && g.cache.Get(ctx, key, &cached) {
		log.Debug(ctx, "github profile served from cache", "username", username)
		return &cached, nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("github rate limiter: %w", err)
	}

	body, err := g.conn.Get(ctx, g.baseURL+"/users/"+url.PathEscape(username))
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("github lookup of %s: %w", username, err)
	}

	var profile domain.GithubProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("decoding github profile of %s: %w", username, err)
	}

	if g.cacheTTL > 0 && profile.ID > 0 {
		if err := g.cache.Set(ctx, key, profile, g.cacheTTL); err != nil {
			log.Warn(ctx, "caching github profile", "username", username, "err", err)
		}
	}
	return &profile, nil
}
