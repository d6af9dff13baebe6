// Package testenv provides shared testcontainers-go fixtures for the
// write/read/fraud Postgres databases and the Redis idempotency store,
// grounded on the teacher's test/integration/testenv/postgres_container.go
// SetupPostgresContainer, generalized to take a migrations directory
// instead of a single hardcoded schema file.
package testenv

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testDatabase = "wallet_test"
	testUsername = "wallet_test"
	testPassword = "wallet_test_pass"
	postgresImage = "postgres:16-alpine"
)

// PostgresDSN starts a Postgres container, applies migrationsPath's
// 000001_init.up.sql as an init script, and returns a DSN for it.
// The container is torn down automatically when t finishes.
func PostgresDSN(t *testing.T, migrationsPath string) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		postgresImage,
		tcpostgres.WithDatabase(testDatabase),
		tcpostgres.WithUsername(testUsername),
		tcpostgres.WithPassword(testPassword),
		tcpostgres.WithInitScripts(migrationsPath+"/000001_init.up.sql"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres testcontainer")

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres testcontainer: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get postgres testcontainer connection string")
	return dsn
}

// RedisAddr starts a bare Redis container via the generic container API
// (no dedicated modules/redis dependency is in the example pack) and
// returns its host:port address.
func RedisAddr(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start redis testcontainer")

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate redis testcontainer: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, port.Port())
}
