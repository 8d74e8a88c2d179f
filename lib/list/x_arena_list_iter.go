package list

import (
	"github.com/benz9527/xlist/lib/infra"
)

// XArenaListIterator is a bidirectional self-healing iterator. It carries
// the node it currently references plus the node it believes precedes it.
// When the current node is being unlinked concurrently, a forward step
// re-anchors through that carried predecessor (or the head) within the
// list's retry budget before surfacing ErrIteratorInvalidated. A forward
// step does not check whether the carried predecessor still matches the
// current node's prev link; it moves to the current node's successor either
// way.
//
// Iterator equality compares only the current node.
type XArenaListIterator[T any] struct {
	list *XArenaList[T]
	cur  *ArenaListNode
	prev *ArenaListNode
}

// Begin positions at the first element, or equals End on an empty list.
func (l *XArenaList[T]) Begin() *XArenaListIterator[T] {
	it := &XArenaListIterator[T]{list: l}
	if head := l.headLink(); head != nullPtr {
		it.cur = l.toNode(head)
	}
	return it
}

// End is the past-the-end position. It snapshots the tail so that backward
// steps can start from it.
func (l *XArenaList[T]) End() *XArenaListIterator[T] {
	it := &XArenaListIterator[T]{list: l}
	if tail := l.tailLink(); tail != nullPtr {
		it.prev = l.toNode(tail)
	}
	return it
}

// RBegin positions at the last element for backward traversal, or equals
// REnd on an empty list.
func (l *XArenaList[T]) RBegin() *XArenaListIterator[T] {
	it := l.End()
	if err := it.Prev(); err != nil {
		return l.REnd()
	}
	return it
}

// REnd is the before-begin position.
func (l *XArenaList[T]) REnd() *XArenaListIterator[T] {
	return &XArenaListIterator[T]{list: l}
}

// Valid reports whether the iterator references an element.
func (it *XArenaListIterator[T]) Valid() bool {
	return it.cur != nil
}

// Equal compares iterator positions by the current node only.
func (it *XArenaListIterator[T]) Equal(rhs *XArenaListIterator[T]) bool {
	return it.cur == rhs.cur
}

// Item returns the referenced element, nil at end/before-begin.
func (it *XArenaListIterator[T]) Item() *T {
	if it.cur == nil {
		return nil
	}
	return it.list.itemOf(it.cur)
}

// Next advances forward one element. Reaching the end is a nil error with
// an invalid iterator; ErrIteratorInvalidated reports budget exhaustion.
func (it *XArenaListIterator[T]) Next() error {
	if it.cur == nil {
		return nil
	}
	backoff := uint8(1)
	for attempt := 0; attempt < it.list.maxRetries; attempt++ {
		word := it.cur.loadWord()
		if word == nullLink {
			// Fully removed underneath: the scan terminates here.
			it.prev, it.cur = it.cur, nil
			return nil
		}
		next, _, _, _ := unpackLinks(word)
		if next != deletingMark {
			// An insertion behind us would show as decoded.prev != it.prev;
			// stepping forward re-establishes the pair either way.
			it.prev = it.cur
			it.cur = it.list.nodeAt(next)
			return nil
		}
		// cur is half unlinked; its next field is gone. Step around it
		// through the surviving side.
		if it.prev == nil {
			head := it.list.headLink()
			if head == nullPtr {
				it.prev, it.cur = it.cur, nil
				return nil
			}
			if hn := it.list.toNode(head); hn != it.cur {
				it.cur = hn
				return nil
			}
			// The head still references the deleting node; let its
			// remover finish.
			backoff = spinYield(backoff)
			continue
		}
		prevWord := it.prev.loadWord()
		if prevWord == nullLink {
			it.prev, it.cur = it.cur, nil
			return nil
		}
		pnext := nextLinkOf(prevWord)
		if pnext != nullPtr && pnext != deletingMark {
			if pn := it.list.toNode(pnext); pn != it.cur {
				it.cur = pn
				return nil
			}
		} else if pnext == nullPtr {
			it.prev, it.cur = it.cur, nil
			return nil
		}
		backoff = spinYield(backoff)
	}
	it.list.stats.IncreaseIterInvalidated()
	return infra.WrapErrorStack(ErrIteratorInvalidated)
}

// Prev steps backward one element. Stepping back from the first element
// lands on the before-begin position (invalid, equal to REnd).
func (it *XArenaListIterator[T]) Prev() error {
	if it.prev == nil {
		it.cur = nil
		return nil
	}
	backoff := uint8(1)
	for attempt := 0; attempt < it.list.maxRetries; attempt++ {
		word := it.prev.loadWord()
		if word == nullLink {
			it.prev, it.cur = nil, nil
			return nil
		}
		next, prev, _, _ := unpackLinks(word)
		if next == deletingMark {
			// The predecessor is being unlinked; back through its prev,
			// bailing out on a cycle.
			pn := it.list.nodeAt(prev)
			if pn == nil || pn == it.prev {
				it.prev, it.cur = nil, nil
				return nil
			}
			it.prev = pn
			backoff = spinYield(backoff)
			continue
		}
		it.cur = it.prev
		it.prev = it.list.nodeAt(prev)
		return nil
	}
	it.list.stats.IncreaseIterInvalidated()
	return infra.WrapErrorStack(ErrIteratorInvalidated)
}

// ForEach walks forward from Begin, invoking fn per element.
func (l *XArenaList[T]) ForEach(fn func(idx int64, item *T)) error {
	idx := int64(0)
	for it := l.Begin(); it.Valid(); {
		fn(idx, it.Item())
		idx++
		if err := it.Next(); err != nil {
			return err
		}
	}
	return nil
}

// ReverseForEach walks backward from RBegin, invoking fn per element.
func (l *XArenaList[T]) ReverseForEach(fn func(idx int64, item *T)) error {
	idx := int64(0)
	for it := l.RBegin(); it.Valid(); {
		fn(idx, it.Item())
		idx++
		if err := it.Prev(); err != nil {
			return err
		}
	}
	return nil
}
