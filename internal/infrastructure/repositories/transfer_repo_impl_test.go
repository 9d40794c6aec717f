package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bridge-settle.backend/internal/domain/entities"
)

func createTransfersTableSQL(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`CREATE TABLE transfers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hash TEXT NOT NULL,
		chain_id TEXT NOT NULL,
		sender TEXT,
		receiver TEXT,
		token TEXT,
		symbol TEXT,
		amount TEXT,
		value TEXT,
		nonce TEXT,
		timestamp DATETIME,
		fee_amount TEXT,
		fee_token TEXT,
		version TEXT,
		status INTEGER,
		op_status INTEGER,
		call_data TEXT
	)`)
	require.NoError(t, err)
}

func insertTransfer(t *testing.T, db *sql.DB, tr *entities.Transfer) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO transfers
		(hash, chain_id, sender, receiver, token, symbol, amount, value, nonce, timestamp, fee_amount, fee_token, version, status, op_status, call_data)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		tr.Hash, tr.ChainID, tr.Sender, tr.Receiver, tr.Token, tr.Symbol, tr.Amount, tr.Value, tr.Nonce,
		tr.Timestamp, tr.FeeAmount, tr.FeeToken, string(tr.Version), tr.Status, tr.OpStatus, tr.CallData)
	require.NoError(t, err)
}

func TestTransferRepository_SourceAndDestCandidates(t *testing.T) {
	db, gormDB := newSharedTransferDBs(t)
	createTransfersTableSQL(t, db)
	repo := NewTransferRepository(db, gormDB)
	ctx := context.Background()

	now := time.Now()
	insertTransfer(t, db, &entities.Transfer{
		Hash: "0xsrc1", ChainID: "1", Sender: "0xalice", Amount: "100", Value: "1000000001234",
		Timestamp: now.Add(time.Minute), Version: entities.VersionV1Source,
		Status: entities.TransferSuccess, OpStatus: entities.OpStatusUnprocessed,
	})
	insertTransfer(t, db, &entities.Transfer{
		Hash: "0xdest1", ChainID: "2", Sender: "0xmaker", Amount: "99", Value: "990000",
		Timestamp: now, Version: entities.VersionV1Dest,
		Status: entities.TransferSuccess, OpStatus: entities.OpStatusUnprocessed,
	})

	sources, err := repo.FindSourceCandidates(ctx, []entities.TransferVersion{entities.VersionV1Source, entities.VersionV2Source}, now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.Equal(t, "0xsrc1", sources[0].Hash)

	dests, err := repo.FindDestCandidates(ctx, []entities.TransferVersion{entities.VersionV1Dest, entities.VersionV2Dest}, 10)
	require.NoError(t, err)
	require.Len(t, dests, 1)
	require.Equal(t, "0xdest1", dests[0].Hash)
}

func TestTransferRepository_GetByChainAndHash_NotFound(t *testing.T) {
	db, gormDB := newSharedTransferDBs(t)
	createTransfersTableSQL(t, db)
	repo := NewTransferRepository(db, gormDB)

	_, err := repo.GetByChainAndHash(context.Background(), "1", "0xmissing")
	require.Error(t, err)
}

func TestTransferRepository_SetOpStatusMatchedBoth(t *testing.T) {
	db, gormDB := newSharedTransferDBs(t)
	createTransfersTableSQL(t, db)
	repo := NewTransferRepository(db, gormDB)
	ctx := context.Background()

	now := time.Now()
	insertTransfer(t, db, &entities.Transfer{
		Hash: "0xsrc", ChainID: "1", Timestamp: now, Version: entities.VersionV1Source,
		Status: entities.TransferSuccess, OpStatus: entities.OpStatusUnprocessed,
	})
	insertTransfer(t, db, &entities.Transfer{
		Hash: "0xdest", ChainID: "2", Timestamp: now, Version: entities.VersionV1Dest,
		Status: entities.TransferSuccess, OpStatus: entities.OpStatusUnprocessed,
	})

	err := repo.SetOpStatusMatchedBoth(ctx, "1", "0xsrc", "2", "0xdest", entities.OpStatusMatched)
	require.NoError(t, err)

	got, err := repo.GetByChainAndHash(ctx, "1", "0xsrc")
	require.NoError(t, err)
	require.Equal(t, entities.OpStatusMatched, got.OpStatus)

	// a no-op target that doesn't exist must affect != 2 rows and error.
	err = repo.SetOpStatusMatchedBoth(ctx, "1", "0xsrc", "9", "0xghost", entities.OpStatusMatched)
	require.Error(t, err)
}

// TestTransferRepository_SetOpStatusMatchedBoth_RollsBackWithUnitOfWork
// proves SetOpStatusMatchedBoth participates in the caller's ambient GORM
// transaction instead of autocommitting on its own connection: when the
// uow.Do callback fails after the op_status write, that write must roll
// back along with the GORM-side write made in the same callback.
func TestTransferRepository_SetOpStatusMatchedBoth_RollsBackWithUnitOfWork(t *testing.T) {
	db, gormDB := newSharedTransferDBs(t)
	createTransfersTableSQL(t, db)
	createScratchTable(t, gormDB)
	repo := NewTransferRepository(db, gormDB)
	uow := NewUnitOfWork(gormDB)
	ctx := context.Background()

	now := time.Now()
	insertTransfer(t, db, &entities.Transfer{
		Hash: "0xsrc", ChainID: "1", Timestamp: now, Version: entities.VersionV1Source,
		Status: entities.TransferSuccess, OpStatus: entities.OpStatusUnprocessed,
	})
	insertTransfer(t, db, &entities.Transfer{
		Hash: "0xdest", ChainID: "2", Timestamp: now, Version: entities.VersionV1Dest,
		Status: entities.TransferSuccess, OpStatus: entities.OpStatusUnprocessed,
	})

	forceFail := errors.New("force rollback")
	txErr := uow.Do(ctx, func(ctx context.Context) error {
		if err := GetDB(ctx, gormDB).Exec(`INSERT INTO scratch (id, name) VALUES (?, ?)`, "1", "marker").Error; err != nil {
			return err
		}
		if err := repo.SetOpStatusMatchedBoth(ctx, "1", "0xsrc", "2", "0xdest", entities.OpStatusMatched); err != nil {
			return err
		}
		return forceFail
	})
	require.ErrorIs(t, txErr, forceFail)

	got, err := repo.GetByChainAndHash(ctx, "1", "0xsrc")
	require.NoError(t, err)
	require.Equal(t, entities.OpStatusUnprocessed, got.OpStatus,
		"op_status write must roll back together with the rest of the transaction")

	var scratchCount int64
	require.NoError(t, gormDB.Table("scratch").Count(&scratchCount).Error)
	require.Equal(t, int64(0), scratchCount)
}
