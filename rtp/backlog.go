package rtp

import "container/list"

// Backlog is a bounded, insertion-ordered map from a 16-bit RTP sequence
// number to the raw bytes of the packet sent under that sequence number.
// Inserting past capacity evicts the single oldest entry. It is not safe
// for concurrent use; callers on RAOP's single streaming/control event
// loop do not need it to be.
//
// A plain map plus a doubly-linked list of insertion order gives O(1)
// insert/evict/lookup. A third-party LRU such as hashicorp/golang-lru
// evicts by recency of *access*, not strictly by insertion order, so it
// does not reproduce "evict the oldest inserted entry" without being
// fought into recording only inserts as touches; container/list is the
// better fit here and is the reason this component is stdlib-backed.
type Backlog struct {
	capacity int
	entries  map[uint16]*list.Element
	order    *list.List
}

type backlogEntry struct {
	seqno uint16
	data  []byte
}

// NewBacklog creates a Backlog with the given capacity.
func NewBacklog(capacity int) *Backlog {
	return &Backlog{
		capacity: capacity,
		entries:  make(map[uint16]*list.Element, capacity),
		order:    list.New(),
	}
}

// Insert adds data under seqno, evicting the oldest entry first if the
// backlog is already at capacity. Re-inserting an existing seqno replaces
// its data without affecting eviction order.
func (b *Backlog) Insert(seqno uint16, data []byte) {
	if el, ok := b.entries[seqno]; ok {
		el.Value.(*backlogEntry).data = data
		return
	}

	if b.order.Len() >= b.capacity {
		oldest := b.order.Front()
		if oldest != nil {
			b.order.Remove(oldest)
			delete(b.entries, oldest.Value.(*backlogEntry).seqno)
		}
	}

	el := b.order.PushBack(&backlogEntry{seqno: seqno, data: data})
	b.entries[seqno] = el
}

// Contains reports whether seqno is currently held in the backlog.
func (b *Backlog) Contains(seqno uint16) bool {
	_, ok := b.entries[seqno]
	return ok
}

// Get returns the raw bytes stored under seqno, and whether it was found.
func (b *Backlog) Get(seqno uint16) ([]byte, bool) {
	el, ok := b.entries[seqno]
	if !ok {
		return nil, false
	}
	return el.Value.(*backlogEntry).data, true
}

// Len returns the number of packets currently retained.
func (b *Backlog) Len() int {
	return b.order.Len()
}

// Clear drops every retained packet.
func (b *Backlog) Clear() {
	b.entries = make(map[uint16]*list.Element, b.capacity)
	b.order.Init()
}
