// Package feed maintains live, owner-scoped views of the transaction
// collection. Every change republishes the full current list to all of
// the owner's subscribers; there is no incremental diffing.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"fintrack/internal/core"
)

// Lister loads the complete transaction set for one owner.
type Lister interface {
	ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error)
}

// Snapshot is the complete, recency-ordered result set delivered by one
// push. Consumers must treat it as read-only.
type Snapshot []core.Transaction

// CancelFunc tears down one subscription. It is idempotent, takes effect
// immediately, and guarantees no further deliveries on the channel.
type CancelFunc func()

type subscriber struct {
	ownerID string
	ch      chan Snapshot
	closed  bool
}

// Hub fans full-list snapshots out to per-owner subscribers. The hub owns
// the published list exclusively; all other components only read the
// snapshots it delivers.
type Hub struct {
	lister Lister

	mu     sync.Mutex
	subs   map[string]map[uint64]*subscriber
	nextID uint64
	closed bool
}

func NewHub(lister Lister) *Hub {
	return &Hub{
		lister: lister,
		subs:   make(map[string]map[uint64]*subscriber),
	}
}

// Subscribe registers a live view over the owner's transactions. The
// current snapshot is delivered immediately, then once per change. The
// channel has capacity one and keeps only the latest snapshot: a slow
// consumer never observes an ordering older than one it has already seen.
func (h *Hub) Subscribe(ctx context.Context, ownerID string) (<-chan Snapshot, CancelFunc, error) {
	snap, err := h.load(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, nil, fmt.Errorf("feed hub is closed")
	}
	sub := &subscriber{
		ownerID: ownerID,
		ch:      make(chan Snapshot, 1),
	}
	h.nextID++
	id := h.nextID
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = make(map[uint64]*subscriber)
	}
	h.subs[ownerID][id] = sub
	sub.ch <- snap
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.remove(ownerID, id)
	}
	return sub.ch, cancel, nil
}

// Invalidate reloads the owner's list and republishes it to every
// subscriber. Publishing an unchanged list is harmless; subscribers are
// expected to treat identical snapshots idempotently.
func (h *Hub) Invalidate(ctx context.Context, ownerID string) error {
	h.mu.Lock()
	n := len(h.subs[ownerID])
	h.mu.Unlock()
	if n == 0 {
		return nil
	}

	snap, err := h.load(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("reload owner %s: %w", ownerID, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs[ownerID] {
		deliver(sub, snap)
	}
	slog.DebugContext(ctx, "Snapshot republished",
		"owner_id", ownerID,
		"transactions", len(snap),
		"subscribers", len(h.subs[ownerID]))
	return nil
}

// DropOwner closes every subscription belonging to the owner. Used when
// the owning session ends, so no listener outlives its login.
func (h *Hub) DropOwner(ownerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.subs[ownerID] {
		h.remove(ownerID, id)
	}
}

// Close tears down all subscriptions and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ownerID := range h.subs {
		for id := range h.subs[ownerID] {
			h.remove(ownerID, id)
		}
	}
}

// Subscribers returns the number of active subscriptions for an owner.
func (h *Hub) Subscribers(ownerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[ownerID])
}

func (h *Hub) load(ctx context.Context, ownerID string) (Snapshot, error) {
	txs, err := h.lister.ListTransactions(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	snap := Snapshot(txs)
	SortSnapshot(snap)
	return snap, nil
}

// remove must be called with the hub mutex held.
func (h *Hub) remove(ownerID string, id uint64) {
	sub, ok := h.subs[ownerID][id]
	if !ok {
		return
	}
	delete(h.subs[ownerID], id)
	if len(h.subs[ownerID]) == 0 {
		delete(h.subs, ownerID)
	}
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// deliver pushes a snapshot without blocking: if the subscriber has not
// drained the previous one it is replaced, latest wins. Must be called
// with the hub mutex held.
func deliver(sub *subscriber, snap Snapshot) {
	if sub.closed {
		return
	}
	for {
		select {
		case sub.ch <- snap:
			return
		default:
			select {
			case <-sub.ch:
			default:
			}
		}
	}
}

// SortSnapshot orders transactions by recency: occurrence date
// descending, then id ascending for records sharing a calendar date.
func SortSnapshot(snap Snapshot) {
	sort.SliceStable(snap, func(i, j int) bool {
		di, dj := snap[i].OccursAt.Calendar(), snap[j].OccursAt.Calendar()
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return snap[i].ID < snap[j].ID
	})
}
