package tests

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/bnbbuilders/tbnb-faucet/internal/db"
	"github.com/bnbbuilders/tbnb-faucet/internal/db/schema"
)

const (
	defaultTimeOut = 40
)

// NewTestStorage creates a temporary database on the server pointed by connURL, migrates it
// and returns a storage connected to it.
func NewTestStorage(connURL string) (*db.Storage, func(), error) {
	noopTeardown := func() {}
	if connURL == "" {
		return nil, noopTeardown, errors.New("testdb: no connection string")
	}

	tempDBName := "tbnb_faucet_test_" + time.Now().UTC().Format("20060102150405999999999")
	tempURL, err := url.Parse(connURL + "/" + tempDBName + "?sslmode=disable")
	if err != nil {
		return nil, noopTeardown, fmt.Errorf("connection string is invalid: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeOut*time.Second)
	defer cancel()

	admin, err := db.NewStorage(ctx, connURL+"?sslmode=disable")
	if err != nil {
		return nil, noopTeardown, fmt.Errorf("can't connect to database: %v", err)
	}
	defer func() { _ = admin.Close() }()

	_, err = admin.Pgx.Exec(ctx, fmt.Sprintf(`create database "%s";`, tempDBName))
	if err != nil {
		return nil, noopTeardown, fmt.Errorf("failed to create database (%s): %v", tempDBName, err)
	}

	if err := schema.Migrate(tempURL.String()); err != nil {
		return nil, noopTeardown, fmt.Errorf("can't migrate database %v", err)
	}

	storage, err := db.NewStorage(ctx, tempURL.String())
	if err != nil {
		return nil, noopTeardown, fmt.Errorf("can't connect to database: %v", err)
	}

	teardown := func() {
		_ = storage.Close()
	}
	return storage, teardown, nil
}
