package matcher

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridge-settle.backend/internal/domain/entities"
	domainerrors "bridge-settle.backend/internal/domain/errors"
	domainrepos "bridge-settle.backend/internal/domain/repositories"
)

type passthroughUoW struct{}

func (passthroughUoW) Do(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
func (passthroughUoW) WithLock(ctx context.Context) context.Context                     { return ctx }

type fakeTransferRepo struct {
	sourceCandidates []*entities.Transfer
	destCandidates   []*entities.Transfer
	opStatus         map[string]int
	matchedBoth      int
}

func newFakeTransferRepo() *fakeTransferRepo {
	return &fakeTransferRepo{opStatus: map[string]int{}}
}

func (f *fakeTransferRepo) FindSourceCandidates(ctx context.Context, versions []entities.TransferVersion, since time.Time, limit int) ([]*entities.Transfer, error) {
	return f.sourceCandidates, nil
}
func (f *fakeTransferRepo) FindDestCandidates(ctx context.Context, versions []entities.TransferVersion, limit int) ([]*entities.Transfer, error) {
	return f.destCandidates, nil
}
func (f *fakeTransferRepo) GetByChainAndHash(ctx context.Context, chainID, hash string) (*entities.Transfer, error) {
	return nil, domainerrors.ErrNotFound
}
func (f *fakeTransferRepo) SetOpStatus(ctx context.Context, chainID, hash string, opStatus int) error {
	f.opStatus[chainID+":"+hash] = opStatus
	return nil
}
func (f *fakeTransferRepo) SetOpStatusMatchedBoth(ctx context.Context, sourceChain, sourceHash, destChain, destHash string, opStatus int) error {
	f.matchedBoth++
	f.opStatus[sourceChain+":"+sourceHash] = opStatus
	f.opStatus[destChain+":"+destHash] = opStatus
	return nil
}

type fakeBridgeRepo struct {
	bySource      map[string]*entities.BridgeTransaction
	byID          map[uuid.UUID]*entities.BridgeTransaction
	closeCalls    int
	contentResult *entities.BridgeTransaction
}

func newFakeBridgeRepo() *fakeBridgeRepo {
	return &fakeBridgeRepo{bySource: map[string]*entities.BridgeTransaction{}, byID: map[uuid.UUID]*entities.BridgeTransaction{}}
}

func (f *fakeBridgeRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.BridgeTransaction, error) {
	if bt, ok := f.byID[id]; ok {
		return bt, nil
	}
	return nil, domainerrors.ErrNotFound
}
func (f *fakeBridgeRepo) GetBySource(ctx context.Context, sourceChain, sourceID string) (*entities.BridgeTransaction, error) {
	if bt, ok := f.bySource[sourceChain+":"+sourceID]; ok {
		return bt, nil
	}
	return nil, domainerrors.ErrNotFound
}
func (f *fakeBridgeRepo) GetBySourceID(ctx context.Context, sourceID string) (*entities.BridgeTransaction, error) {
	for _, bt := range f.bySource {
		if bt.SourceID == sourceID {
			return bt, nil
		}
	}
	return nil, domainerrors.ErrNotFound
}
func (f *fakeBridgeRepo) GetByTarget(ctx context.Context, targetChain, targetID string) (*entities.BridgeTransaction, error) {
	return nil, domainerrors.ErrNotFound
}
func (f *fakeBridgeRepo) FindClosableByContent(ctx context.Context, q domainrepos.ContentMatchQuery) (*entities.BridgeTransaction, error) {
	if f.contentResult != nil {
		return f.contentResult, nil
	}
	return nil, domainerrors.ErrNotFound
}
func (f *fakeBridgeRepo) Upsert(ctx context.Context, tx *entities.BridgeTransaction) (bool, bool, error) {
	if existing, ok := f.bySource[tx.SourceChain+":"+tx.SourceID]; ok {
		if existing.Status.InOperation() {
			return false, true, nil
		}
		tx.ID = existing.ID
		f.bySource[tx.SourceChain+":"+tx.SourceID] = tx
		f.byID[tx.ID] = tx
		return false, false, nil
	}
	tx.ID = uuid.New()
	f.bySource[tx.SourceChain+":"+tx.SourceID] = tx
	f.byID[tx.ID] = tx
	return true, false, nil
}
func (f *fakeBridgeRepo) MarkReadyPaid(ctx context.Context, id uuid.UUID) error                { return nil }
func (f *fakeBridgeRepo) MarkReadyPaidBatch(ctx context.Context, ids []uuid.UUID) (int64, error) { return 0, nil }
func (f *fakeBridgeRepo) MarkPaidSuccess(ctx context.Context, id uuid.UUID, targetID, targetMaker string) error {
	return nil
}
func (f *fakeBridgeRepo) MarkPaidCrash(ctx context.Context, id uuid.UUID, targetID, targetMaker string) error {
	return nil
}
func (f *fakeBridgeRepo) RevertToCreated(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeBridgeRepo) MarkSendFailed(ctx context.Context, id uuid.UUID, targetID string) error {
	return nil
}
func (f *fakeBridgeRepo) MarkBridgeSuccess(ctx context.Context, id uuid.UUID, targetMaker string) error {
	return nil
}
func (f *fakeBridgeRepo) CloseMatch(ctx context.Context, id uuid.UUID, fields domainrepos.CloseFields) error {
	f.closeCalls++
	bt, ok := f.byID[id]
	if !ok {
		return domainerrors.ErrNotFound
	}
	if !bt.Status.Closable() {
		return domainerrors.ErrNotFound
	}
	if fields.Success {
		bt.Status = entities.StatusBridgeSuccess
	} else {
		bt.Status = entities.StatusSendFailed
	}
	bt.TargetID = fields.TargetID
	bt.TargetMaker = fields.TargetMaker
	return nil
}

type fakeEvaluator struct {
	payout *entities.EvaluatedPayout
	err    error
}

func (f *fakeBridgeRepo) ListByStatus(ctx context.Context, status entities.BridgeStatus, offset, limit int) ([]*entities.BridgeTransaction, int64, error) {
	return nil, 0, nil
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, t *entities.Transfer) (*entities.EvaluatedPayout, error) {
	return f.payout, f.err
}

func TestSourceSweep_CreatesRowAndMarksBuilt(t *testing.T) {
	transferRepo := newFakeTransferRepo()
	transferRepo.sourceCandidates = []*entities.Transfer{
		{ChainID: "1", Hash: "0xA", Receiver: "0xmaker", Sender: "0xuser", Amount: "1.0", Symbol: "ETH", Timestamp: time.Now()},
	}
	bridgeRepo := newFakeBridgeRepo()
	evaluator := &fakeEvaluator{payout: &entities.EvaluatedPayout{
		TargetChain: "10", TargetToken: "0xusdc", TargetSymbol: "USDC",
		ResponseAmount: "1000", ResponseMaker: []string{"0xmaker"},
	}}
	cache := NewMemoryMatchCache(time.Hour, 10)

	sweep := NewSourceSweep(transferRepo, bridgeRepo, passthroughUoW{}, evaluator, cache,
		[]entities.TransferVersion{entities.VersionV2Source}, 24*time.Hour, 500)

	n, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, entities.OpStatusSourceBuilt, transferRepo.opStatus["1:0xA"])
	assert.Len(t, bridgeRepo.bySource, 1)
}

func TestSourceSweep_SkipsInOperationRow(t *testing.T) {
	transferRepo := newFakeTransferRepo()
	transferRepo.sourceCandidates = []*entities.Transfer{{ChainID: "1", Hash: "0xA"}}
	bridgeRepo := newFakeBridgeRepo()
	bridgeRepo.bySource["1:0xA"] = &entities.BridgeTransaction{ID: uuid.New(), Status: entities.StatusReadyPaid}
	evaluator := &fakeEvaluator{}
	cache := NewMemoryMatchCache(time.Hour, 10)

	sweep := NewSourceSweep(transferRepo, bridgeRepo, passthroughUoW{}, evaluator, cache,
		[]entities.TransferVersion{entities.VersionV2Source}, 24*time.Hour, 500)

	n, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSourceSweep_EvalErrorRecordsSentinel(t *testing.T) {
	transferRepo := newFakeTransferRepo()
	transferRepo.sourceCandidates = []*entities.Transfer{{ChainID: "1", Hash: "0xA"}}
	bridgeRepo := newFakeBridgeRepo()
	evaluator := &fakeEvaluator{err: domainerrors.ErrRuleNotFound}
	cache := NewMemoryMatchCache(time.Hour, 10)

	sweep := NewSourceSweep(transferRepo, bridgeRepo, passthroughUoW{}, evaluator, cache,
		[]entities.TransferVersion{entities.VersionV2Source}, 24*time.Hour, 500)

	n, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, entities.OpStatusEvalError, transferRepo.opStatus["1:0xA"])
}

func TestDestSweep_ClosesViaDBContentMatch(t *testing.T) {
	transferRepo := newFakeTransferRepo()
	now := time.Now()
	transferRepo.destCandidates = []*entities.Transfer{
		{ChainID: "10", Hash: "0xB", Sender: "0xmaker", Receiver: "0xuser", Amount: "1000", Symbol: "USDC", Status: entities.TransferSuccess, Timestamp: now},
	}
	bridgeRepo := newFakeBridgeRepo()
	bt := &entities.BridgeTransaction{ID: uuid.New(), SourceChain: "1", SourceID: "0xA", Status: entities.StatusCreated}
	bridgeRepo.byID[bt.ID] = bt
	bridgeRepo.contentResult = bt
	cache := NewMemoryMatchCache(time.Hour, 10)

	sweep := NewDestSweep(transferRepo, bridgeRepo, passthroughUoW{}, cache,
		[]entities.TransferVersion{entities.VersionV2Dest}, 500)

	n, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, entities.StatusBridgeSuccess, bt.Status)
	assert.Equal(t, 1, transferRepo.matchedBoth)
}

func TestDestSweep_CachesPendingOnMiss(t *testing.T) {
	transferRepo := newFakeTransferRepo()
	transferRepo.destCandidates = []*entities.Transfer{
		{ChainID: "10", Hash: "0xB", Sender: "0xmaker", Receiver: "0xuser", Amount: "1000", Symbol: "USDC", Status: entities.TransferSuccess, Timestamp: time.Now()},
	}
	bridgeRepo := newFakeBridgeRepo()
	cache := NewMemoryMatchCache(time.Hour, 10)

	sweep := NewDestSweep(transferRepo, bridgeRepo, passthroughUoW{}, cache,
		[]entities.TransferVersion{entities.VersionV2Dest}, 500)

	n, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// TestDestSweep_CacheHitAvoidsDBLookup covers scenario S6: the source
// sweep publishes a bridge row into the cache, and the dest sweep finds
// it there without ever calling FindClosableByContent.
func TestDestSweep_CacheHitAvoidsDBLookup(t *testing.T) {
	transferRepo := newFakeTransferRepo()
	now := time.Now()
	transferRepo.destCandidates = []*entities.Transfer{
		{ChainID: "10", Hash: "0xB", Sender: "0xmaker", Receiver: "0xuser", Amount: "1000", Symbol: "USDC", Status: entities.TransferSuccess, Timestamp: now},
	}
	bridgeRepo := newFakeBridgeRepo()
	bt := &entities.BridgeTransaction{
		ID: uuid.New(), SourceChain: "1", SourceID: "0xA", Status: entities.StatusCreated,
		TargetChain: "10", TargetSymbol: "USDC", SourceAddress: "0xuser", TargetAmount: "1000",
		ResponseMaker: []string{"0xmaker"}, SourceTime: now.Add(-time.Minute),
	}
	bridgeRepo.byID[bt.ID] = bt
	// deliberately leave contentResult nil: if the cache path is skipped the test must fail.

	cache := NewMemoryMatchCache(time.Hour, 10)
	cache.PutBridgeRow(bt)

	sweep := NewDestSweep(transferRepo, bridgeRepo, passthroughUoW{}, cache,
		[]entities.TransferVersion{entities.VersionV2Dest}, 500)

	n, err := sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, entities.StatusBridgeSuccess, bt.Status)
}
