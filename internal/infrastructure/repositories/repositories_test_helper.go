package repositories

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestSQLDB opens a plain database/sql handle against the same
// mattn/go-sqlite3 driver GORM uses underneath, for repositories written
// against raw database/sql (TransferRepository mirrors payment_repo_impl.go).
func newTestSQLDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err, "open sqlite3")
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return db
}

// newSharedTransferDBs opens a raw *sql.DB and a *gorm.DB against the same
// in-memory sqlite database (shared cache), the way TransferRepository uses
// both handles in production: reads go through the *sql.DB, writes through
// the *gorm.DB so they can join an ambient uow.Do transaction.
func newSharedTransferDBs(t *testing.T) (*sql.DB, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	sqlDB, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err, "open sqlite3")
	t.Cleanup(func() { _ = sqlDB.Close() })

	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return sqlDB, gormDB
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createScratchTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE scratch (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createBridgeTransactionTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE bridge_transactions (
		id TEXT PRIMARY KEY,
		source_chain TEXT NOT NULL,
		source_id TEXT NOT NULL,
		source_address TEXT,
		source_maker TEXT,
		source_amount TEXT,
		source_symbol TEXT,
		source_token TEXT,
		source_nonce TEXT,
		source_time DATETIME,
		target_chain TEXT,
		target_id TEXT,
		target_address TEXT,
		target_amount TEXT,
		target_symbol TEXT,
		target_token TEXT,
		target_maker TEXT,
		target_time DATETIME,
		target_nonce TEXT,
		target_fee TEXT,
		target_fee_symbol TEXT,
		rule_id TEXT,
		ebc_address TEXT,
		dealer_address TEXT,
		withholding_fee TEXT,
		trade_fee TEXT,
		response_maker TEXT,
		status INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE(source_chain, source_id)
	);`)
}

func createSerialRelationTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE serial_relations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id TEXT UNIQUE,
		sender TEXT,
		chain TEXT,
		token TEXT,
		target_hash TEXT,
		created_at DATETIME
	);`)
}

func createTransfersTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE transfers (
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
		call_data TEXT,
		UNIQUE(chain_id, hash)
	);`)
}
