package domain

import (
	"sort"
	"sync"
	"time"
)

// DialogAction names a (domain, intent) pair to run with the given slots.
// A handler returns one to redirect the turn, and may cache them so later
// turns can invoke them by key.
type DialogAction struct {
	Domain string `json:"domain"`
	Intent string `json:"intent"`
	Slots  []Slot `json:"slots,omitempty"`
}

// CachedItem is an entry in a keyed cache. A zero ExpireTime means the
// writer did not choose one.
type CachedItem struct {
	Key        string    `json:"key"`
	Value      []byte    `json:"value"`
	ExpireTime time.Time `json:"expire_time,omitempty"`
}

// ItemBuffer collects cache entries a handler produced during a turn.
type ItemBuffer struct {
	mu    sync.Mutex
	items map[string]CachedItem
}

// NewItemBuffer creates an empty buffer.
func NewItemBuffer() *ItemBuffer {
	return &ItemBuffer{items: make(map[string]CachedItem)}
}

// Add stores or replaces an item.
func (b *ItemBuffer) Add(item CachedItem) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[item.Key] = item
}

// Len returns the number of buffered items.
func (b *ItemBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Items returns the buffered items sorted by key.
func (b *ItemBuffer) Items() []CachedItem {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]CachedItem, 0, len(b.items))
	for _, it := range b.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
