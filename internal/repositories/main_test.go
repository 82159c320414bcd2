package repositories

import (
	"context"
	"os"
	"testing"

	"github.com/bnbbuilders/tbnb-faucet/internal/db"
	"github.com/bnbbuilders/tbnb-faucet/internal/db/tests"
	"github.com/bnbbuilders/tbnb-faucet/internal/log"
)

var storage *db.Storage

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx := context.Background()
	log.Config(log.LevelDebug, log.OutputText, os.Stdout)
	conn, ok := os.LookupEnv("POSTGRES_TEST_DATABASE")
	if !ok {
		log.Info(ctx, "POSTGRES_TEST_DATABASE is not set, repository tests will be skipped")
		return m.Run()
	}

	s, teardown, err := tests.NewTestStorage(conn)
	defer teardown()
	if err != nil {
		log.Error(ctx, "failed to acquire test database", "err", err)
		return 1
	}
	storage = s
	return m.Run()
}

func requireStorage(t *testing.T) db.Querier {
	t.Helper()
	if storage == nil {
		t.Skip("no test database")
	}
	return storage.Pgx
}
