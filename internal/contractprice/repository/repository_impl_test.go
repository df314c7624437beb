package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/estatebook/internal/allocation"
	"github.com/smallbiznis/estatebook/internal/contractprice/domain"
	"github.com/smallbiznis/estatebook/internal/contractprice/repository"
	"github.com/smallbiznis/estatebook/internal/migration"
	"github.com/smallbiznis/estatebook/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const orgID = snowflake.ID(1)

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))
	return conn
}

func insertRow(t *testing.T, conn *gorm.DB, id int64, updatedAt time.Time) snowflake.ID {
	t.Helper()
	cp := &domain.ContractPrice{
		ID: snowflake.ID(id), OrgID: orgID, ProjectID: 10, HouseUnitID: snowflake.ID(id + 100), Price: 1000,
		PaymentAmounts: datatypes.JSONSlice[allocation.Line]{},
		CreatedAt:      updatedAt,
		UpdatedAt:      updatedAt,
	}
	require.NoError(t, repository.Provide().Insert(context.Background(), conn, cp))
	return cp.ID
}

// LockByID runs against a plain SQLite connection, the same dialect used when
// DATABASE_TYPE=sqlite, so no locking clause may reach the SQL.
func TestLockByIDOnSQLite(t *testing.T) {
	conn := newDB(t)
	repo := repository.Provide()
	id := insertRow(t, conn, 1, time.Now().UTC())

	err := conn.Transaction(func(tx *gorm.DB) error {
		cp, err := repo.LockByID(context.Background(), tx, orgID, id)
		require.NoError(t, err)
		require.NotNil(t, cp)
		assert.Equal(t, int64(1000), cp.Price)

		missing, err := repo.LockByID(context.Background(), tx, orgID, 999)
		require.NoError(t, err)
		assert.Nil(t, missing)
		return nil
	})
	require.NoError(t, err)
}

func TestListStaleSkipsExcludedRows(t *testing.T) {
	conn := newDB(t)
	repo := repository.Provide()
	base := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	first := insertRow(t, conn, 1, base)
	second := insertRow(t, conn, 2, base.Add(time.Minute))
	third := insertRow(t, conn, 3, base.Add(2*time.Minute))

	refs, err := repo.ListStale(context.Background(), conn, domain.StaleFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, first, refs[0].ID)
	assert.Equal(t, second, refs[1].ID)

	refs, err = repo.ListStale(context.Background(), conn, domain.StaleFilter{
		Limit:      2,
		ExcludeIDs: []snowflake.ID{first, second},
	})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, third, refs[0].ID)
	assert.Equal(t, orgID, refs[0].OrgID)
}
