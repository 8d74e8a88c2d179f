// Package list implements a lock-free doubly-linked intrusive list backed
// by a caller-owned contiguous arena of item slots.
//
// The whole list state lives in two head/tail index atomics plus one 64-bit
// atomic word embedded in each item. Every structural edit commits through a
// single compare-and-swap on one of those words, then repairs the neighbor
// links after the fact. Readers never CAS; traversal self-heals through
// concurrent edits within a bounded retry budget.
package list

// NodeAccessor resolves the intrusive node cell embedded in an arena item.
// It must be pure and must always return the same cell for the same item.
type NodeAccessor[T any] func(item *T) *ArenaListNode

// ArenaList is the concurrent intrusive list interface.
//
// Items are borrowed from the caller's slot arena and must embed an
// ArenaListNode. The list never allocates, copies, or frees items.
type ArenaList[T any] interface {
	Len() int64
	Capacity() int
	// PushFront links item as the new head. The item must be in the fresh
	// (reset) state and must live inside the arena.
	PushFront(item *T) bool
	// PushBack mirrors PushFront at the tail side.
	PushBack(item *T) bool
	// InsertBefore links item immediately before a live anchor.
	InsertBefore(anchor, item *T) bool
	// InsertAfter links item immediately after a live anchor.
	InsertAfter(anchor, item *T) bool
	// Remove unlinks item and returns it, or nil if the item is not
	// currently owned by this list (idempotent failure).
	Remove(item *T) *T
	PopFront() *T
	PopBack() *T
	// Find returns the first item matching pred. The returned pointer is a
	// racy snapshot: a concurrent Remove may already have reclaimed the
	// slot by the time the caller dereferences it.
	Find(pred func(item *T) bool) *T
	// FindAlive behaves as Find but re-checks that the matched item is
	// still linked after the predicate fired, returning nil otherwise.
	// The check shrinks the race window, it does not close it.
	FindAlive(pred func(item *T) bool) *T
	Front() *T
	Back() *T
	// ForEach walks the list forward with a self-healing iterator.
	// It returns ErrIteratorInvalidated if the healing budget runs out.
	ForEach(fn func(idx int64, item *T)) error
	// ReverseForEach mirrors ForEach from the tail side.
	ReverseForEach(fn func(idx int64, item *T)) error
	// CheckInvariants audits the structural invariants. Only meaningful at
	// quiescence; concurrent mutators make violations transient by design.
	CheckInvariants() error
}

type XArenaListErr string

func (err XArenaListErr) Error() string {
	return string(err)
}

const (
	// ErrIteratorInvalidated reports that an iterator exhausted its
	// self-healing budget. It is distinguishable from reaching the end,
	// which is a nil error with an invalid iterator.
	ErrIteratorInvalidated XArenaListErr = "xarena list iterator invalidated, self-healing budget exhausted"
	ErrArenaOverflow       XArenaListErr = "xarena list slots exceed the link space"
	ErrArenaEmpty          XArenaListErr = "xarena list requires a non-empty slot arena"
	ErrNilNodeAccessor     XArenaListErr = "xarena list requires a node accessor"
)
