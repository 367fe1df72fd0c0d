//go:build integration

package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mealwise/mealwise/internal/database"
)

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "mealwise_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/mealwise_test?sslmode=disable", host, port.Port())
	migrations, err := filepath.Abs("../../migrations")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(dsn, migrations))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestRepository_InsertAndList(t *testing.T) {
	repo := NewRepository(setupPostgres(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	for i, outcome := range []string{"SUCCESS", "RATE_LIMITED", "SUCCESS"} {
		e := Entry{
			UserID:    "admin-1",
			Outcome:   outcome,
			Severity:  SeverityInfo,
			Message:   "attempt",
			Details:   Details{PromptLength: 10 + i, AspectRatio: "1:1"},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Insert(ctx, &e))
		assert.NotEqual(t, uuid.Nil, e.ID)
	}
	other := Entry{UserID: "admin-2", Outcome: "SUCCESS", Severity: SeverityInfo, CreatedAt: base}
	require.NoError(t, repo.Insert(ctx, &other))

	t.Run("duplicate id is ignored", func(t *testing.T) {
		require.NoError(t, repo.Insert(ctx, &other))
		_, total, err := repo.List(ctx, ListParams{UserID: "admin-2", Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("filter by user newest first", func(t *testing.T) {
		entries, total, err := repo.List(ctx, ListParams{UserID: "admin-1", Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, entries, 3)
		assert.Equal(t, 12, entries[0].Details.PromptLength)
		assert.Equal(t, "1:1", entries[0].Details.AspectRatio)
	})

	t.Run("filter by outcome", func(t *testing.T) {
		entries, total, err := repo.List(ctx, ListParams{Outcome: "RATE_LIMITED", Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "RATE_LIMITED", entries[0].Outcome)
	})

	t.Run("pagination", func(t *testing.T) {
		entries, total, err := repo.List(ctx, ListParams{UserID: "admin-1", Page: 2, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, entries, 1)
	})
}
