package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridge-settle.backend/internal/domain/entities"
)

type fakeSerialRepo struct {
	existing map[string]bool
	saved    [][]string
	saveErr  error
}

func newFakeSerialRepo() *fakeSerialRepo {
	return &fakeSerialRepo{existing: map[string]bool{}}
}

func (f *fakeSerialRepo) Exists(ctx context.Context, sourceID string) (bool, error) {
	return f.existing[sourceID], nil
}

func (f *fakeSerialRepo) Save(ctx context.Context, sourceIDs []string, sender, chain, token, targetHash string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, sourceIDs)
	for _, id := range sourceIDs {
		f.existing[id] = true
	}
	return nil
}

func (f *fakeSerialRepo) GetByTargetHash(ctx context.Context, targetHash string) ([]*entities.SerialRelation, error) {
	return nil, nil
}

func (f *fakeSerialRepo) ListUnreconciled(ctx context.Context) ([]*entities.SerialRelation, error) {
	return nil, nil
}

func TestStore_AddGetRemove(t *testing.T) {
	s := New(newFakeSerialRepo())
	tx := &entities.TransferAmountTransaction{SourceID: "0xA", Chain: "10", Token: "0xusdc"}
	s.AddTransaction(tx)

	got, ok := s.GetTransaction(tx.Key(), "0xA")
	require.True(t, ok)
	assert.Equal(t, tx, got)

	s.RemoveTransaction(tx.Key(), "0xA")
	_, ok = s.GetTransaction(tx.Key(), "0xA")
	assert.False(t, ok)
}

func TestStore_Drain(t *testing.T) {
	s := New(newFakeSerialRepo())
	key := (&entities.TransferAmountTransaction{Chain: "10", Token: "0xusdc"}).Key()
	for _, id := range []string{"0xA", "0xB", "0xC"} {
		s.AddTransaction(&entities.TransferAmountTransaction{SourceID: id, Chain: "10", Token: "0xusdc"})
	}

	all := s.Drain(key, 0)
	assert.Len(t, all, 3)

	limited := s.Drain(key, 2)
	assert.Len(t, limited, 2)
}

func TestStore_RemoveTransactionAndSetSerial_RollbackOnBeforeError(t *testing.T) {
	repo := newFakeSerialRepo()
	s := New(repo)
	tx := &entities.TransferAmountTransaction{SourceID: "0xA", Chain: "10", Token: "0xusdc"}
	s.AddTransaction(tx)

	rollback, err := s.RemoveTransactionAndSetSerial(context.Background(), tx.Key(), []*entities.TransferAmountTransaction{tx}, "0xsender", "10", "0xusdc", "0xhash")
	require.NoError(t, err)

	_, ok := s.GetTransaction(tx.Key(), "0xA")
	assert.False(t, ok, "detached from in-flight once reserved")
	assert.True(t, repo.existing["0xA"])

	rollback()
	_, ok = s.GetTransaction(tx.Key(), "0xA")
	assert.True(t, ok, "rollback re-inserts on before-error")
}

func TestStore_RemoveTransactionAndSetSerial_ReinsertsOnSaveFailure(t *testing.T) {
	repo := newFakeSerialRepo()
	repo.saveErr = assert.AnError
	s := New(repo)
	tx := &entities.TransferAmountTransaction{SourceID: "0xA", Chain: "10", Token: "0xusdc"}
	s.AddTransaction(tx)

	_, err := s.RemoveTransactionAndSetSerial(context.Background(), tx.Key(), []*entities.TransferAmountTransaction{tx}, "0xsender", "10", "0xusdc", "0xhash")
	require.Error(t, err)

	_, ok := s.GetTransaction(tx.Key(), "0xA")
	assert.True(t, ok, "still queued when the serial reservation itself fails")
}

func TestStore_GetSerialRecord(t *testing.T) {
	repo := newFakeSerialRepo()
	repo.existing["0xA"] = true
	s := New(repo)

	ok, err := s.GetSerialRecord(context.Background(), "0xA")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.GetSerialRecord(context.Background(), "0xB")
	require.NoError(t, err)
	assert.False(t, ok)
}
