package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-publish/pkg/simplepublish"
	"github.com/tendant/simple-publish/pkg/simplepublish/repo/postgres"
	"github.com/tendant/simple-publish/pkg/simplepublish/repo/repotest"
)

func TestPostgresRepository(t *testing.T) {
	pool := getSharedTestDatabase(t)
	ctx := context.Background()

	repotest.Run(t, func(t *testing.T) simplepublish.Store {
		require.NoError(t, postgres.DropTables(ctx, pool))
		require.NoError(t, postgres.Migrate(ctx, pool))
		return postgres.NewWithPool(pool)
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	pool := getSharedTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, postgres.Migrate(ctx, pool))
	require.NoError(t, postgres.Migrate(ctx, pool))

	for _, c := range simplepublish.Categories() {
		var exists bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, c.Table(),
		).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, c.Table())
	}
}

func TestProfileRowIsSingleton(t *testing.T) {
	pool := getSharedTestDatabase(t)
	ctx := context.Background()
	require.NoError(t, postgres.Migrate(ctx, pool))

	_, err := pool.Exec(ctx, `INSERT INTO profile (id) VALUES (2)`)
	assert.Error(t, err)
}
