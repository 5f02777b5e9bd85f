package token

import (
	"time"

	"github.com/treelock/treelock/types"
)

// expirationItem represents a root token tracked for expiration within the
// expiration heap.
type expirationItem struct {
	// Identity of the locked resource.
	resource types.ResourceID

	// The root token the entry was pushed for. Compared against the registry
	// map on pop so entries outlived by an unlock/relock are skipped.
	token *rootToken

	// Scheduled expiration time at the moment the entry was pushed. A token
	// refreshed afterwards leaves this entry stale; Sweep re-pushes it with
	// the current expiration.
	expiresAt time.Time

	// Position of the item in the heap (used by heap.Interface).
	index int
}

// expirationHeap is a min-heap of expirationItems, sorted by their expiresAt
// time. It allows efficient access to the token that is closest to
// expiration. Implements `heap.Interface`.
type expirationHeap []*expirationItem

// Len returns the number of items in the expiration heap.
func (h expirationHeap) Len() int { return len(h) }

// Less compares two expirationItems and returns true if the item at index i
// expires before the item at index j.
func (h expirationHeap) Less(i, j int) bool {
	return h[i].expiresAt.Before(h[j].expiresAt)
}

// Swap swaps the expirationItems at indices i and j, and updates their index fields.
func (h expirationHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

// Push adds a new expirationItem to the heap and assigns its index.
func (h *expirationHeap) Push(x any) {
	n := len(*h)
	item := x.(*expirationItem)
	item.index = n
	*h = append(*h, item)
}

// Pop removes and returns the expirationItem closest to expiration.
// Also clears references to help with garbage collection.
func (h *expirationHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // Avoid memory leak.
	item.index = -1 // Mark as removed.
	*h = old[0 : n-1]
	return item
}
