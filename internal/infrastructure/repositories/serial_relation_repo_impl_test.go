package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"bridge-settle.backend/internal/domain/entities"
)

func TestSerialRelationRepository_SaveExistsAndLookup(t *testing.T) {
	db := newTestDB(t)
	createSerialRelationTable(t, db)
	repo := NewSerialRelationRepository(db)
	ctx := context.Background()

	exists, err := repo.Exists(ctx, "0xsrc1")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, repo.Save(ctx, []string{"0xsrc1", "0xsrc2"}, "0xmaker1", "42161", "0xusdc", "0xpayoutHash"))

	exists, err = repo.Exists(ctx, "0xsrc1")
	require.NoError(t, err)
	require.True(t, exists)

	rows, err := repo.GetByTargetHash(ctx, "0xpayoutHash")
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestSerialRelationRepository_ListUnreconciled(t *testing.T) {
	db := newTestDB(t)
	createSerialRelationTable(t, db)
	createBridgeTransactionTable(t, db)
	repo := NewSerialRelationRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, []string{"0xstuck"}, "0xmaker1", "42161", "0xusdc", "0xpayoutHash2"))

	mustExec(t, db, `INSERT INTO bridge_transactions(id,source_chain,source_id,status,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		uuid.New().String(), "1", "0xstuck", int(entities.StatusReadyPaid), time.Now(), time.Now())

	rows, err := repo.ListUnreconciled(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "0xstuck", rows[0].SourceID)
}
