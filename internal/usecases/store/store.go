// Package store holds the in-flight payout work set and the per-sender
// exclusivity section the Sequencer polls and locks against (spec §4.5).
package store

import (
	"context"
	"sync"

	"bridge-settle.backend/internal/domain/entities"
	domainrepos "bridge-settle.backend/internal/domain/repositories"
)

// Store is the in-flight payout queue, grouped by (chain, token) the same
// way the teacher groups payment-webhook retries by merchant: a map of
// maps guarded by a single mutex, since the hot path is dominated by RPC
// and DB latency, not map contention.
type Store struct {
	mu       sync.Mutex
	inflight map[string]map[string]*entities.TransferAmountTransaction

	serial domainrepos.SerialRelationRepository
}

func New(serial domainrepos.SerialRelationRepository) *Store {
	return &Store{
		inflight: make(map[string]map[string]*entities.TransferAmountTransaction),
		serial:   serial,
	}
}

// AddTransaction enqueues tx under its (chain, token) key.
func (s *Store) AddTransaction(tx *entities.TransferAmountTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(tx)
}

func (s *Store) addLocked(tx *entities.TransferAmountTransaction) {
	key := tx.Key()
	bucket, ok := s.inflight[key]
	if !ok {
		bucket = make(map[string]*entities.TransferAmountTransaction)
		s.inflight[key] = bucket
	}
	bucket[tx.SourceID] = tx
}

// GetTransaction looks up a specific in-flight item by its (chain, token)
// key and sourceId.
func (s *Store) GetTransaction(key, sourceID string) (*entities.TransferAmountTransaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.inflight[key]
	if !ok {
		return nil, false
	}
	tx, ok := bucket[sourceID]
	return tx, ok
}

// RemoveTransaction detaches one item without reserving it in
// SerialRelation. The payout path does not call it: an item whose payout
// ends in TransactionSendIgError stays queued and is handed to the
// Sequencer again on the next poll.
func (s *Store) RemoveTransaction(key, sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(key, sourceID)
}

func (s *Store) removeLocked(key, sourceID string) (*entities.TransferAmountTransaction, bool) {
	bucket, ok := s.inflight[key]
	if !ok {
		return nil, false
	}
	tx, ok := bucket[sourceID]
	if ok {
		delete(bucket, sourceID)
	}
	return tx, ok
}

// Drain returns up to limit queued items for key, for the Sequencer's
// batch path; it does not remove them -- removal only happens via
// RemoveTransactionAndSetSerial once a batch is actually accepted for
// broadcast.
func (s *Store) Drain(key string, limit int) []*entities.TransferAmountTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.inflight[key]
	if !ok {
		return nil
	}
	out := make([]*entities.TransferAmountTransaction, 0, len(bucket))
	for _, tx := range bucket {
		out = append(out, tx)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// GetSerialRecord reports whether sourceId already has a durable serial
// entry, used to filter out already-sent rows before a batch payout.
func (s *Store) GetSerialRecord(ctx context.Context, sourceID string) (bool, error) {
	return s.serial.Exists(ctx, sourceID)
}

// Keys returns the (chain, token) keys currently holding queued items, for
// the poll job to fan its Drain calls over without needing to know the
// active chain/token set in advance.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.inflight))
	for k, bucket := range s.inflight {
		if len(bucket) == 0 {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// RemoveTransactionAndSetSerial detaches txs from the in-flight set and
// reserves them in SerialRelation under targetHash in one step, per
// spec §4.3/§4.5. The returned rollback thunk re-inserts the detached
// items; the caller must invoke it on a before-error and must NOT invoke
// it on an after-error, since the payout may already be on chain.
func (s *Store) RemoveTransactionAndSetSerial(ctx context.Context, key string, txs []*entities.TransferAmountTransaction, sender, chain, token, targetHash string) (rollback func(), err error) {
	s.mu.Lock()
	removed := make([]*entities.TransferAmountTransaction, 0, len(txs))
	ids := make([]string, 0, len(txs))
	for _, tx := range txs {
		if got, ok := s.removeLocked(key, tx.SourceID); ok {
			removed = append(removed, got)
			ids = append(ids, got.SourceID)
		}
	}
	s.mu.Unlock()

	if err := s.serial.Save(ctx, ids, sender, chain, token, targetHash); err != nil {
		s.mu.Lock()
		for _, tx := range removed {
			s.addLocked(tx)
		}
		s.mu.Unlock()
		return nil, err
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, tx := range removed {
			s.addLocked(tx)
		}
	}, nil
}
