package transcript

import (
	"fmt"
	"log/slog"
	"sync"
)

const (
	defaultSoftCap  = 4096
	softCapInterval = 512
)

// SubscriberFunc receives the full current item sequence after every append
// or clear. Consumers reconcile by item ID, not by index: the contract does
// not guarantee minimal-diff notifications.
type SubscriberFunc func(items []DisplayItem)

// Buffer is the ordered, append-only store of display items for the current
// session. Appends notify every subscriber synchronously, after the mutation
// is visible to Items. Safe for concurrent producers and consumers.
type Buffer struct {
	logger  *slog.Logger
	softCap int

	notifyMu sync.Mutex // serializes subscriber notification rounds

	mu      sync.Mutex
	items   []DisplayItem
	itemSeq uint64
	subs    map[uint64]SubscriberFunc
	subIDs  []uint64
	subSeq  uint64
}

// NewBuffer constructs an empty buffer. softCap bounds nothing; growth past
// it is logged so long sessions surface as a capacity signal instead of
// silent truncation. softCap <= 0 selects the default.
func NewBuffer(logger *slog.Logger, softCap int) *Buffer {
	if logger == nil {
		logger = slog.Default()
	}
	if softCap <= 0 {
		softCap = defaultSoftCap
	}
	return &Buffer{
		logger:  logger,
		softCap: softCap,
		subs:    make(map[uint64]SubscriberFunc),
	}
}

// Append adds item to the end of the sequence, assigning a stable ID when
// the item carries none, and notifies all current subscribers. Returns the
// item's ID.
func (b *Buffer) Append(item DisplayItem) string {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()

	b.mu.Lock()
	if item.ID == "" {
		b.itemSeq++
		item.ID = fmt.Sprintf("item_%d", b.itemSeq)
	}
	b.items = append(b.items, item)
	n := len(b.items)
	snapshot := b.snapshotLocked()
	subs := b.subscribersLocked()
	b.mu.Unlock()

	if n > b.softCap && (n-b.softCap)%softCapInterval == 0 {
		b.logger.Warn("transcription buffer growing past soft cap",
			"items", n,
			"soft_cap", b.softCap,
		)
	}

	for _, fn := range subs {
		fn(snapshot)
	}
	return item.ID
}

// Subscribe registers fn for every future Append or Clear and returns a
// function that removes exactly this registration. Historical items are not
// replayed; callers needing history call Items once up front.
func (b *Buffer) Subscribe(fn SubscriberFunc) (unsubscribe func()) {
	b.mu.Lock()
	b.subSeq++
	id := b.subSeq
	b.subs[id] = fn
	b.subIDs = append(b.subIDs, id)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; !ok {
			return
		}
		delete(b.subs, id)
		for i, sid := range b.subIDs {
			if sid == id {
				b.subIDs = append(b.subIDs[:i], b.subIDs[i+1:]...)
				break
			}
		}
	}
}

// Items returns a snapshot of all items in insertion order.
func (b *Buffer) Items() []DisplayItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

// Len returns the current item count.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// SubscriberCount returns the number of registered subscribers.
func (b *Buffer) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Clear empties the sequence and notifies subscribers with an empty
// snapshot. Used only at session boundaries.
func (b *Buffer) Clear() {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()

	b.mu.Lock()
	b.items = nil
	subs := b.subscribersLocked()
	b.mu.Unlock()

	for _, fn := range subs {
		fn(nil)
	}
}

func (b *Buffer) snapshotLocked() []DisplayItem {
	out := make([]DisplayItem, len(b.items))
	copy(out, b.items)
	return out
}

func (b *Buffer) subscribersLocked() []SubscriberFunc {
	out := make([]SubscriberFunc, 0, len(b.subIDs))
	for _, id := range b.subIDs {
		if fn, ok := b.subs[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}
