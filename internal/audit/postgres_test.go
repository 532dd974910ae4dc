package audit

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/clinsafe-server/internal/database"
	"github.com/clinsafe-server/internal/domain"
)

func setupPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping container-backed test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	config := domain.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		Database:        "testdb",
		Username:        "testuser",
		Password:        "testpass",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	runner, err := database.NewMigrationRunner(database.ConnectionURL(config), "../../migrations", logger)
	require.NoError(t, err)
	require.NoError(t, runner.Up())
	require.NoError(t, runner.Close())

	db, err := database.NewConnection(ctx, config, logger)
	require.NoError(t, err)

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	rec := &OverrideRecord{
		CorrelationID:  "corr-pg-1",
		SignalColor:    domain.ColorYellow,
		OverridePolicy: domain.OverrideRequiresSupervisor,
		Decision:       DecisionOverridden,
		Justification:  "Dosing reviewed with attending",
		SupervisorID:   "sup-42",
		FindingCount:   1,
	}
	require.NoError(t, store.Save(ctx, rec))
	assert.NotZero(t, rec.ID)

	got, err := store.Get(ctx, "corr-pg-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sup-42", got.SupervisorID)
	assert.Equal(t, DecisionOverridden, got.Decision)

	// Upsert on the same correlation ID keeps one row.
	rec.Decision = DecisionAccepted
	rec.Justification = ""
	rec.SupervisorID = ""
	require.NoError(t, store.Save(ctx, rec))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	missing, err := store.Get(ctx, "corr-pg-nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
