package health

import (
	"context"
	"time"
)

// Names of the components reported on /health
const (
	DB    = "db"
	Cache = "cache"
)

const pingTimeout = 2 * time.Second

// Status struct
type Status struct {
	pingers map[string]Ping
}

// Ping interface
type Ping interface {
	Ping(ctx context.Context) error
}

// New returns a Health instance. Nil pingers are ignored.
func New(pingers map[string]Ping) *Status {
	m := make(map[string]Ping, len(pingers))
	for name, p := range pingers {
		if p != nil {
			m[name] = p
		}
	}
	return &Status{m}
}

// Status returns whether every registered component answers a ping
func (h *Status) Status(ctx context.Context) map[string]bool {
	m := make(map[string]bool, len(h.pingers))

	for key, val := range h.pingers {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		m[key] = val.Ping(pingCtx) == nil
		cancel()
	}

	return m
}
