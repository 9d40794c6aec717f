// Package matcher implements the two periodic sweeps that turn raw
// Transfer rows into BridgeTransaction matches (spec §4.2).
package matcher

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bridge-settle.backend/internal/domain/entities"
)

// cachedBridgeRow is what the source sweep publishes once it creates or
// updates a BridgeTransaction, so a later dest sweep pass can close the
// match without a DB round trip.
type cachedBridgeRow struct {
	ID            uuid.UUID
	ResponseMaker []string
	SourceTime    time.Time
	insertedAt    time.Time
}

// MemoryMatchCache is the bounded in-memory index of recent unmatched
// entries described in spec §3: bridge rows awaiting a destination-side
// transfer, keyed by (targetChain, targetSymbol, targetAddress,
// targetAmount), with the row's SourceAddress used as the target address.
// Destination transfers that miss both the cache and the DB lookup are
// also recorded here (dests); nothing reads that record and it is never
// evicted. Such a transfer is never matched out of the cache, only ever
// rediscovered through the normal DB lookup once a matching bridge row
// exists.
type MemoryMatchCache struct {
	mu    sync.Mutex
	rows  map[string][]cachedBridgeRow
	dests map[string][]time.Time

	ttl      time.Duration
	maxEntry int
}

func NewMemoryMatchCache(ttl time.Duration, maxEntriesPerKey int) *MemoryMatchCache {
	return &MemoryMatchCache{
		rows:     make(map[string][]cachedBridgeRow),
		dests:    make(map[string][]time.Time),
		ttl:      ttl,
		maxEntry: maxEntriesPerKey,
	}
}

func matchKey(chain, symbol, address, amount string) string {
	return strings.ToLower(chain) + "|" + strings.ToLower(symbol) + "|" + strings.ToLower(address) + "|" + amount
}

// PutBridgeRow publishes a newly created/updated bridge row for later
// dest-sweep lookup.
func (c *MemoryMatchCache) PutBridgeRow(bt *entities.BridgeTransaction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := matchKey(bt.TargetChain, bt.TargetSymbol, bt.SourceAddress, bt.TargetAmount)
	entry := cachedBridgeRow{ID: bt.ID, ResponseMaker: bt.ResponseMaker, SourceTime: bt.SourceTime, insertedAt: time.Now()}

	entries := append(c.evictLocked(c.rows[key]), entry)
	if c.maxEntry > 0 && len(entries) > c.maxEntry {
		entries = entries[len(entries)-c.maxEntry:]
	}
	c.rows[key] = entries
}

// PutPendingDest remembers a destination transfer that matched nothing
// yet, per spec §4.2 step 4.
func (c *MemoryMatchCache) PutPendingDest(t *entities.Transfer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := matchKey(t.ChainID, t.Symbol, t.Receiver, t.Amount)
	c.dests[key] = append(c.dests[key], time.Now())
}

func (c *MemoryMatchCache) evictLocked(entries []cachedBridgeRow) []cachedBridgeRow {
	if c.ttl <= 0 {
		return entries
	}
	cutoff := time.Now().Add(-c.ttl)
	kept := entries[:0]
	for _, e := range entries {
		if e.insertedAt.After(cutoff) {
			kept = append(kept, e)
		}
	}
	return kept
}

// FindBridgeRow looks up a cached bridge row matching the dest transfer's
// content key, sender membership in responseMaker, and the asymmetric
// time window `destTs-120min <= sourceTs <= destTs+5min` (spec §4.2
// step 1, §8 S6). On a hit, the entry is removed so it can't be matched
// twice.
func (c *MemoryMatchCache) FindBridgeRow(chain, symbol, address, amount, sender string, destTs time.Time) (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := matchKey(chain, symbol, address, amount)
	entries := c.evictLocked(c.rows[key])
	windowStart := destTs.Add(-120 * time.Minute)
	windowEnd := destTs.Add(5 * time.Minute)

	for i, e := range entries {
		if !hasResponder(e.ResponseMaker, sender) {
			continue
		}
		if e.SourceTime.Before(windowStart) || e.SourceTime.After(windowEnd) {
			continue
		}
		c.rows[key] = append(entries[:i:i], entries[i+1:]...)
		return e.ID, true
	}
	c.rows[key] = entries
	return uuid.Nil, false
}

func hasResponder(makers []string, sender string) bool {
	sender = strings.ToLower(sender)
	for _, m := range makers {
		if strings.ToLower(m) == sender {
			return true
		}
	}
	return false
}
