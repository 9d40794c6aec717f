package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"bridge-settle.backend/internal/domain/entities"
	domainerrors "bridge-settle.backend/internal/domain/errors"
	domainrepos "bridge-settle.backend/internal/domain/repositories"
)

// TransferRepository reads the Transfers table with raw database/sql; it is
// a high-volume read path (spec §4.2 sweeps poll it every few minutes) and
// the teacher's payment_repo_impl.go uses this same plain-sql style for its
// highest-traffic table. Its two write methods go through gormDB instead,
// via the same GetDB(ctx, fallback) helper the GORM-backed repositories
// use, so a sweep's uow.Do flips the Transfer row(s) and the
// BridgeTransaction row in one shared transaction (spec §4.2 step 3,
// invariant 5) rather than two independent, separately-committed writes.
type TransferRepository struct {
	db     *sql.DB
	gormDB *gorm.DB
}

func NewTransferRepository(db *sql.DB, gormDB *gorm.DB) *TransferRepository {
	return &TransferRepository{db: db, gormDB: gormDB}
}

const transferColumns = `id, hash, chain_id, sender, receiver, token, symbol, amount, value, nonce,
	timestamp, fee_amount, fee_token, version, status, op_status, call_data`

func scanTransfer(row interface{ Scan(...interface{}) error }) (*entities.Transfer, error) {
	t := &entities.Transfer{}
	var version string
	err := row.Scan(
		&t.ID, &t.Hash, &t.ChainID, &t.Sender, &t.Receiver, &t.Token, &t.Symbol,
		&t.Amount, &t.Value, &t.Nonce, &t.Timestamp, &t.FeeAmount, &t.FeeToken,
		&version, &t.Status, &t.OpStatus, &t.CallData,
	)
	if err != nil {
		return nil, err
	}
	t.Version = entities.TransferVersion(version)
	return t, nil
}

func versionPlaceholders(versions []entities.TransferVersion, startAt int) (string, []interface{}) {
	parts := make([]string, 0, len(versions))
	args := make([]interface{}, 0, len(versions))
	for i, v := range versions {
		parts = append(parts, fmt.Sprintf("$%d", startAt+i))
		args = append(args, string(v))
	}
	return strings.Join(parts, ","), args
}

// FindSourceCandidates selects unprocessed source-side transfers newer than
// since, newest first, capped at limit rows (spec §4.2).
func (r *TransferRepository) FindSourceCandidates(ctx context.Context, versions []entities.TransferVersion, since time.Time, limit int) ([]*entities.Transfer, error) {
	placeholders, args := versionPlaceholders(versions, 1)
	args = append(args, since, limit)

	query := fmt.Sprintf(`
		SELECT %s FROM transfers
		WHERE version IN (%s) AND op_status = %d AND status = %d AND timestamp > $%d
		ORDER BY id DESC
		LIMIT $%d
	`, transferColumns, placeholders, entities.OpStatusUnprocessed, entities.TransferSuccess, len(versions)+1, len(versions)+2)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entities.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// FindDestCandidates selects unprocessed destination-side transfers
// regardless of on-chain success/failure (spec §4.2): a failed payout still
// has to close out its bridge row.
func (r *TransferRepository) FindDestCandidates(ctx context.Context, versions []entities.TransferVersion, limit int) ([]*entities.Transfer, error) {
	placeholders, args := versionPlaceholders(versions, 1)
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s FROM transfers
		WHERE version IN (%s) AND op_status = %d
		ORDER BY id ASC
		LIMIT $%d
	`, transferColumns, placeholders, entities.OpStatusUnprocessed, len(versions)+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entities.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TransferRepository) GetByChainAndHash(ctx context.Context, chainID, hash string) (*entities.Transfer, error) {
	query := fmt.Sprintf(`SELECT %s FROM transfers WHERE chain_id = $1 AND hash = $2`, transferColumns)
	row := r.db.QueryRowContext(ctx, query, chainID, hash)
	t, err := scanTransfer(row)
	if err == sql.ErrNoRows {
		return nil, domainerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// SetOpStatus runs through GetDB(ctx, r.gormDB) rather than r.db, so when a
// caller invokes it inside uow.Do (source_sweep.go's Upsert+SetOpStatus
// pair) it joins the same GORM transaction instead of autocommitting on a
// separate connection.
func (r *TransferRepository) SetOpStatus(ctx context.Context, chainID, hash string, opStatus int) error {
	result := GetDB(ctx, r.gormDB).WithContext(ctx).Exec(
		`UPDATE transfers SET op_status = ? WHERE chain_id = ? AND hash = ?`,
		opStatus, chainID, hash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// SetOpStatusMatchedBoth must affect exactly the source and destination
// rows named, never more, never fewer (invariant 5); a mismatch means the
// match raced with a concurrent sweep and the caller must abort. It runs
// through GetDB(ctx, r.gormDB), the same helper every GORM-backed repository
// uses, so when dest_sweep.go calls this inside uow.Do alongside CloseMatch,
// both writes share one transaction: either both commit or both roll back.
func (r *TransferRepository) SetOpStatusMatchedBoth(ctx context.Context, sourceChain, sourceHash, destChain, destHash string, opStatus int) error {
	result := GetDB(ctx, r.gormDB).WithContext(ctx).Exec(`
		UPDATE transfers SET op_status = ?
		WHERE (chain_id = ? AND hash = ?) OR (chain_id = ? AND hash = ?)
	`, opStatus, sourceChain, sourceHash, destChain, destHash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != 2 {
		return domainerrors.NewAppError(500, "expected to flip exactly 2 transfer rows", domainerrors.ErrNotFound)
	}
	return nil
}

var _ domainrepos.TransferRepository = (*TransferRepository)(nil)
