package paylog

import (
	"sync"
	"time"
)

// DefaultHistorySize is the ring capacity used when none is given.
const DefaultHistorySize = 1000

// History keeps the most recent entries in memory so the trail for a single
// payment can be inspected without a log backend.
type History struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

// NewHistory returns a History holding up to size entries.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{entries: make([]Entry, size)}
}

func (h *History) Emit(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.next] = e
	h.next = (h.next + 1) % len(h.entries)
	if h.next == 0 {
		h.full = true
	}
}

// Filter selects entries. Zero fields match everything.
type Filter struct {
	Kind             Kind
	Level            Level
	GatewayPaymentID string
	SubscriptionID   string
	Since            time.Time
}

func (f Filter) match(e Entry) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Level != "" && e.Level != f.Level {
		return false
	}
	if f.GatewayPaymentID != "" && e.Ref.GatewayPaymentID != f.GatewayPaymentID {
		return false
	}
	if f.SubscriptionID != "" && e.Ref.SubscriptionID.String() != f.SubscriptionID {
		return false
	}
	if !f.Since.IsZero() && e.Time.Before(f.Since) {
		return false
	}
	return true
}

// Entries returns matching entries, oldest first.
func (h *History) Entries(f Filter) []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Entry, 0)
	for _, e := range h.ordered() {
		if f.match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Kinds returns the kinds of matching entries, oldest first.
func (h *History) Kinds(f Filter) []Kind {
	entries := h.Entries(f)
	kinds := make([]Kind, len(entries))
	for i, e := range entries {
		kinds[i] = e.Kind
	}
	return kinds
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.full {
		return len(h.entries)
	}
	return h.next
}

func (h *History) ordered() []Entry {
	if !h.full {
		return h.entries[:h.next]
	}
	out := make([]Entry, 0, len(h.entries))
	out = append(out, h.entries[h.next:]...)
	return append(out, h.entries[:h.next]...)
}
