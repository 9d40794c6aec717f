package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bridge-settle.backend/pkg/redis"
)

// Exclusivity serializes payouts per sender address: at most one payout
// coroutine per sender runs at a time, and different senders do not block
// each other (spec §4.5, §5 ordering guarantees). Callers waiting on the
// same sender enter in no guaranteed order: the per-sender sync.Mutex
// does not queue them first-in first-out. The
// in-process keyed mutex alone only protects one engine instance; the
// redis-backed lock layered underneath extends the same guarantee across
// however many instances are running.
type Exclusivity struct {
	mu    sync.Mutex
	locks map[string]*refCountedMutex

	redisTTL time.Duration
}

type refCountedMutex struct {
	mu  sync.Mutex
	ref int
}

// NewExclusivity builds an Exclusivity section. redisTTL is the lease
// duration for the cross-instance lock; it must comfortably exceed the
// slowest expected broadcast+fee-estimation round trip (spec §4.4's 30s
// fee-compute bound plus RPC broadcast latency).
func NewExclusivity(redisTTL time.Duration) *Exclusivity {
	return &Exclusivity{
		locks:    make(map[string]*refCountedMutex),
		redisTTL: redisTTL,
	}
}

// RunExclusive runs fn while holding the exclusive section for sender.
// Cancellation of ctx before fn is entered aborts the attempt; once fn is
// running, spec §4.5 requires it runs to completion regardless of ctx --
// callers must not rely on ctx cancellation to interrupt an in-flight
// broadcast.
func (e *Exclusivity) RunExclusive(ctx context.Context, sender string, fn func(ctx context.Context) error) error {
	key := strings.ToLower(sender)

	m := e.acquire(key)
	defer e.release(key, m)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	token := uuid.NewString()
	ok, err := redis.Lock(ctx, "sender:"+key, token, e.redisTTL)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSenderLocked
	}
	defer redis.Unlock(ctx, "sender:"+key, token)

	return fn(ctx)
}

func (e *Exclusivity) acquire(key string) *refCountedMutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.locks[key]
	if !ok {
		m = &refCountedMutex{}
		e.locks[key] = m
	}
	m.ref++
	return m
}

// release drops the per-sender mutex once no holder remains, so idle
// senders don't accumulate entries forever.
func (e *Exclusivity) release(key string, m *refCountedMutex) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m.ref--
	if m.ref == 0 {
		delete(e.locks, key)
	}
}
