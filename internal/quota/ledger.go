// Package quota enforces per-space count/size limits through a
// reserve/commit/release ledger. Every space gets its own exclusive
// section; there is no global lock, so unrelated spaces never contend.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AronAlan/buyi-picture/internal/model"
	"github.com/google/uuid"
)

// UsageStore is the slice of the space repository the ledger needs:
// committed usage reads and unconditional counter deltas.
type UsageStore interface {
	GetSpace(ctx context.Context, id uuid.UUID) (*model.Space, error)
	ApplyUsage(ctx context.Context, id uuid.UUID, deltaCount, deltaSize int64) error
}

const DefaultReservationTTL = 2 * time.Minute

// Reservation is a provisional quota hold. It must be committed or
// released; past its TTL it is treated as abandoned and swept.
type Reservation struct {
	ID      uuid.UUID
	SpaceID uuid.UUID
	Count   int64
	Size    int64

	expiresAt time.Time
}

type spaceEntry struct {
	mu           sync.Mutex
	pendingCount int64
	pendingSize  int64
	open         map[uuid.UUID]*Reservation
}

type Ledger struct {
	store UsageStore
	ttl   time.Duration

	mu     sync.Mutex
	spaces map[uuid.UUID]*spaceEntry
}

func NewLedger(store UsageStore, ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}
	return &Ledger{
		store:  store,
		ttl:    ttl,
		spaces: make(map[uuid.UUID]*spaceEntry),
	}
}

func (l *Ledger) entry(spaceID uuid.UUID) *spaceEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.spaces[spaceID]
	if !ok {
		e = &spaceEntry{open: make(map[uuid.UUID]*Reservation)}
		l.spaces[spaceID] = e
	}
	return e
}

// Reserve checks committed usage plus outstanding holds against both
// limits and registers a new hold. On quota failure nothing is mutated.
func (l *Ledger) Reserve(ctx context.Context, spaceID uuid.UUID, deltaCount, deltaSize int64) (*Reservation, error) {
	if deltaCount < 0 || deltaSize < 0 {
		return nil, model.ErrIncorrectQuery
	}

	e := l.entry(spaceID)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sweepLocked(time.Now())

	// committed usage is read under the per-space lock, so two reservations
	// on the same space can never race the same headroom
	space, err := l.store.GetSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	if space.TotalCount+e.pendingCount+deltaCount > space.MaxCount {
		return nil, fmt.Errorf("%w: %d of %d used", model.ErrSpaceCountQuota, space.TotalCount, space.MaxCount)
	}
	if space.TotalSize+e.pendingSize+deltaSize > space.MaxSize {
		return nil, fmt.Errorf("%w: %d of %d bytes used", model.ErrSpaceSizeQuota, space.TotalSize, space.MaxSize)
	}

	res := &Reservation{
		ID:        uuid.New(),
		SpaceID:   spaceID,
		Count:     deltaCount,
		Size:      deltaSize,
		expiresAt: time.Now().Add(l.ttl),
	}
	e.open[res.ID] = res
	e.pendingCount += deltaCount
	e.pendingSize += deltaSize

	return res, nil
}

// Commit finalizes a hold: the delta is persisted to the space row and the
// hold is dropped. A hold that was already released or swept cannot commit.
func (l *Ledger) Commit(ctx context.Context, res *Reservation) error {
	if res == nil {
		return model.ErrReservationExpired
	}

	e := l.entry(res.SpaceID)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sweepLocked(time.Now())
	if _, ok := e.open[res.ID]; !ok {
		return model.ErrReservationExpired
	}

	if err := l.store.ApplyUsage(ctx, res.SpaceID, res.Count, res.Size); err != nil {
		// hold stays open so the caller can release it explicitly
		return err
	}

	e.dropLocked(res)
	return nil
}

// Release rolls a hold back. Releasing an expired or already-closed
// reservation is a no-op.
func (l *Ledger) Release(res *Reservation) {
	if res == nil {
		return
	}

	e := l.entry(res.SpaceID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.open[res.ID]; ok {
		e.dropLocked(res)
	}
}

// Adjust applies a post-hoc correction to committed usage, e.g. when a
// counted picture is deleted. It is unconditional: released quota is never
// re-checked against the maxima.
func (l *Ledger) Adjust(ctx context.Context, spaceID uuid.UUID, deltaCount, deltaSize int64) error {
	e := l.entry(spaceID)
	e.mu.Lock()
	defer e.mu.Unlock()

	return l.store.ApplyUsage(ctx, spaceID, deltaCount, deltaSize)
}

// Sweep drops expired holds on every space. Holds are also swept lazily on
// each per-space operation; this catches spaces nobody touches anymore.
func (l *Ledger) Sweep() {
	l.mu.Lock()
	entries := make([]*spaceEntry, 0, len(l.spaces))
	for _, e := range l.spaces {
		entries = append(entries, e)
	}
	l.mu.Unlock()

	now := time.Now()
	for _, e := range entries {
		e.mu.Lock()
		e.sweepLocked(now)
		e.mu.Unlock()
	}
}

func (e *spaceEntry) sweepLocked(now time.Time) {
	for id, res := range e.open {
		if res.expiresAt.Before(now) {
			delete(e.open, id)
			e.pendingCount -= res.Count
			e.pendingSize -= res.Size
		}
	}
}

func (e *spaceEntry) dropLocked(res *Reservation) {
	delete(e.open, res.ID)
	e.pendingCount -= res.Count
	e.pendingSize -= res.Size
}
