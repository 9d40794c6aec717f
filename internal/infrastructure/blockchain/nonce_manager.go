package blockchain

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bridge-settle.backend/pkg/metrics"
)

// NonceManager hands out per-(chain,address) nonces from a free list: a
// rolled-back lease returns its nonce to the front of the list so the next
// send reuses it instead of burning a gap (spec §4.4).
type NonceManager struct {
	mu       sync.Mutex
	free     map[string][]uint64 // key -> ascending free nonces, front is next
	next     map[string]uint64   // key -> next never-issued nonce
	baseline map[string]uint64   // key -> chain-confirmed nonce at last Seed
	labels   map[string][2]string // key -> (chain, address), for the NonceGap gauge
}

func NewNonceManager() *NonceManager {
	return &NonceManager{
		free:     make(map[string][]uint64),
		next:     make(map[string]uint64),
		baseline: make(map[string]uint64),
		labels:   make(map[string][2]string),
	}
}

func key(chain, address string) string {
	return chain + ":" + address
}

// Seed primes the free list for (chain, address) with the chain's reported
// pending nonce. Call once per address before any lease is requested;
// calling it again is a no-op once a next-nonce is already tracked.
func (m *NonceManager) Seed(chain, address string, pending uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(chain, address)
	m.labels[k] = [2]string{chain, address}
	if _, ok := m.next[k]; ok {
		return
	}
	m.next[k] = pending
	m.baseline[k] = pending
	metrics.NonceGap.WithLabelValues(chain, address).Set(0)
}

// NonceLease is a single claimed nonce. The caller must call exactly one of
// Rollback (pre-broadcast failure, nonce is reusable) or nothing further
// (post-broadcast, whether success or crash: the nonce is considered spent
// since the chain may have accepted it).
type NonceLease struct {
	mgr     *NonceManager
	key     string
	nonce   uint64
	settled bool
}

func (l *NonceLease) Nonce() uint64 { return l.nonce }

// Rollback returns the nonce to the free list. Exclusivity already
// serializes all leases for a given sender, so there is no concurrent
// lease to race against; this simply makes the nonce available to the
// very next lease request for this (chain, address).
func (l *NonceLease) Rollback() {
	if l.settled {
		return
	}
	l.settled = true
	l.mgr.mu.Lock()
	defer l.mgr.mu.Unlock()
	free := l.mgr.free[l.key]
	i := sort.Search(len(free), func(i int) bool { return free[i] >= l.nonce })
	free = append(free, 0)
	copy(free[i+1:], free[i:])
	free[i] = l.nonce
	l.mgr.free[l.key] = free
}

// Next claims the next nonce for (chain, address): the smallest free nonce
// if one was returned by a prior rollback, otherwise the next never-issued
// nonce. Seed must have been called for this (chain, address) first.
func (m *NonceManager) Next(ctx context.Context, chain, address string) (*NonceLease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(chain, address)
	if _, ok := m.next[k]; !ok {
		return nil, fmt.Errorf("nonce manager: %s not seeded", k)
	}

	if freeList := m.free[k]; len(freeList) > 0 {
		n := freeList[0]
		m.free[k] = freeList[1:]
		return &NonceLease{mgr: m, key: k, nonce: n}, nil
	}

	n := m.next[k]
	m.next[k] = n + 1
	if lbl, ok := m.labels[k]; ok {
		metrics.NonceGap.WithLabelValues(lbl[0], lbl[1]).Set(float64(m.next[k] - m.baseline[k]))
	}
	return &NonceLease{mgr: m, key: k, nonce: n}, nil
}
