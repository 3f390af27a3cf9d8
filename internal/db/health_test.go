package db_test

import (
	"context"
	"testing"
	"time"

	"student-records/internal/db"
	"student-records/testing/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probe struct {
	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,unique,notnull"`
}

func TestPostgres_Shared(t *testing.T) {
	pgContainer := testdb.SetupSharedPostgres(t)
	defer pgContainer.Cleanup(t)

	pgContainer.RunMigrations(t, (*probe)(nil))
	ctx := context.Background()

	t.Run("Check_Connected", func(t *testing.T) {
		stats, err := db.Check(ctx, pgContainer.DB, time.Second)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, stats.Total, 1)
		assert.Equal(t, 0, stats.InUse)
	})

	t.Run("RunMigrations_Idempotent", func(t *testing.T) {
		assert.NoError(t, db.RunMigrations(ctx, pgContainer.DB, (*probe)(nil)))
	})

	for _, driver := range []string{db.DriverPG, db.DriverPGX} {
		t.Run("UniqueViolation_"+driver, func(t *testing.T) {
			testdb.CleanupTables(t, pgContainer.DB, "probes")
			conn := pgContainer.Open(t, driver)

			_, err := conn.NewInsert().Model(&probe{Name: "dup"}).Exec(ctx)
			require.NoError(t, err)

			_, err = conn.NewInsert().Model(&probe{Name: "dup"}).Exec(ctx)
			require.Error(t, err)
			assert.True(t, db.IsUniqueViolation(err))
			assert.False(t, db.IsConnectionError(err))
		})

		t.Run("QueryErrorClass_"+driver, func(t *testing.T) {
			conn := pgContainer.Open(t, driver)

			_, err := conn.NewSelect().Table("missing_table").Exists(ctx)
			require.Error(t, err)
			assert.False(t, db.IsConnectionError(err))
		})
	}
}
