package list

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"

	"github.com/benz9527/xlist/lib/infra"
)

const cacheLinePadSize = unsafe.Sizeof(cpu.CacheLinePad{})

const defaultArenaListMaxRetries = 100

// XArenaList is the lock-free arena-backed implementation of ArenaList.
//
// The hot atomics are padded apart so that head, tail and len churn on
// different cache lines.
type XArenaList[T any] struct {
	base   []T
	nodeOf NodeAccessor[T]
	stats  *xArenaListStats

	// nodeOff is the byte offset of the embedded cell inside an item,
	// fixed by construction; it inverts the accessor for node-to-item
	// translation.
	nodeOff    uintptr
	maxRetries int

	_    [cacheLinePadSize]byte
	head atomic.Uint32
	_    [cacheLinePadSize - 4]byte
	tail atomic.Uint32
	_    [cacheLinePadSize - 4]byte
	len  atomic.Int64
	_    [cacheLinePadSize - 8]byte
}

var _ ArenaList[struct{ ArenaListNode }] = (*XArenaList[struct{ ArenaListNode }])(nil)

// NewXArenaList borrows the slot arena and resets every embedded cell to
// the fresh state. The arena must stay alive and unmoved for the list's
// whole lifetime; the list never allocates, copies, or frees items.
func NewXArenaList[T any](slots []T, nodeOf NodeAccessor[T], opts ...XArenaListOption) (*XArenaList[T], error) {
	if nodeOf == nil {
		return nil, infra.WrapErrorStack(ErrNilNodeAccessor)
	}
	if len(slots) == 0 {
		return nil, infra.WrapErrorStack(ErrArenaEmpty)
	}
	if len(slots) > MaxArenaListCapacity {
		return nil, infra.WrapErrorStack(ErrArenaOverflow)
	}
	var zero T
	if unsafe.Sizeof(zero) == 0 {
		return nil, infra.NewErrorStack("xarena list requires a non-zero-sized item type")
	}

	opt := &xArenaListOption{maxRetries: defaultArenaListMaxRetries}
	for _, o := range opts {
		o(opt)
	}

	l := &XArenaList[T]{
		base:       slots,
		nodeOf:     nodeOf,
		nodeOff:    uintptr(unsafe.Pointer(nodeOf(&slots[0]))) - uintptr(unsafe.Pointer(&slots[0])),
		maxRetries: opt.maxRetries,
	}
	if opt.enableStats {
		l.stats = newXArenaListStats(opt.name)
	}
	l.head.Store(uint32(nullPtr))
	l.tail.Store(uint32(nullPtr))
	for i := range slots {
		nodeOf(&slots[i]).Reset()
	}
	return l, nil
}

func (l *XArenaList[T]) Len() int64 {
	return l.len.Load()
}

func (l *XArenaList[T]) Capacity() int {
	return len(l.base)
}

func (l *XArenaList[T]) headLink() arenaLink {
	return arenaLink(l.head.Load())
}

func (l *XArenaList[T]) tailLink() arenaLink {
	return arenaLink(l.tail.Load())
}

func (l *XArenaList[T]) toItem(link arenaLink) *T {
	return &l.base[link]
}

func (l *XArenaList[T]) toNode(link arenaLink) *ArenaListNode {
	return l.nodeOf(&l.base[link])
}

// nodeAt resolves a decoded link field, mapping both reserved values to nil.
func (l *XArenaList[T]) nodeAt(link arenaLink) *ArenaListNode {
	if link == nullPtr || link == deletingMark {
		return nil
	}
	return l.toNode(link)
}

// itemOf inverts the node accessor.
func (l *XArenaList[T]) itemOf(node *ArenaListNode) *T {
	return (*T)(unsafe.Pointer(uintptr(unsafe.Pointer(node)) - l.nodeOff))
}

func (l *XArenaList[T]) toLink(item *T) arenaLink {
	off := uintptr(unsafe.Pointer(item)) - uintptr(unsafe.Pointer(&l.base[0]))
	return arenaLink(off / unsafe.Sizeof(l.base[0]))
}

// owns reports whether item is a properly aligned slot of this arena.
func (l *XArenaList[T]) owns(item *T) bool {
	if item == nil {
		return false
	}
	addr := uintptr(unsafe.Pointer(item))
	baseAddr := uintptr(unsafe.Pointer(&l.base[0]))
	if addr < baseAddr {
		return false
	}
	off := addr - baseAddr
	size := unsafe.Sizeof(l.base[0])
	return off%size == 0 && off/size < uintptr(len(l.base))
}

// spinYield burns a few cycles on short waits and hands the P back to the
// scheduler once the backoff grows past the spin threshold.
func spinYield(backoff uint8) uint8 {
	if backoff <= 32 {
		for i := uint8(0); i < backoff; i++ {
			infra.ProcYield(20)
		}
	} else {
		runtime.Gosched()
	}
	if next := backoff << 1; next != 0 {
		return next
	}
	return backoff
}

type repairResult uint8

const (
	// repairDone means this goroutine swung the neighbor edge itself.
	repairDone repairResult = iota
	// repairSkipped means the edge no longer matched the expected link;
	// some other mutator already moved it on.
	repairSkipped
	// repairAborted means the neighbor vanished, turned deleting, or the
	// retry budget ran out before the CAS landed.
	repairAborted
)

// casPrevLinkOf swings target's prev field from expect to repl, bumping the
// prev version. It refuses to touch a node that is deleting or fully
// removed; the owner of that deletion repairs its own edges.
func (l *XArenaList[T]) casPrevLinkOf(target, expect, repl arenaLink) repairResult {
	node := l.toNode(target)
	backoff := uint8(1)
	for attempt := 0; attempt < l.maxRetries; attempt++ {
		word := node.loadWord()
		if wordIsDeleting(word) {
			return repairAborted
		}
		next, prev, nextVer, prevVer := unpackLinks(word)
		if prev != expect {
			return repairSkipped
		}
		if node.casWord(word, packLinks(next, repl, nextVer, prevVer+1)) {
			return repairDone
		}
		backoff = spinYield(backoff)
	}
	return repairAborted
}

// casNextLinkOf mirrors casPrevLinkOf on the next side.
func (l *XArenaList[T]) casNextLinkOf(target, expect, repl arenaLink) repairResult {
	node := l.toNode(target)
	backoff := uint8(1)
	for attempt := 0; attempt < l.maxRetries; attempt++ {
		word := node.loadWord()
		if wordIsDeleting(word) {
			return repairAborted
		}
		next, prev, nextVer, prevVer := unpackLinks(word)
		if next != expect {
			return repairSkipped
		}
		if node.casWord(word, packLinks(repl, prev, nextVer+1, prevVer)) {
			return repairDone
		}
		backoff = spinYield(backoff)
	}
	return repairAborted
}

// admit validates a candidate for insertion: it must be an arena slot and
// must still be in the fresh state.
func (l *XArenaList[T]) admit(item *T) (*ArenaListNode, arenaLink, bool) {
	if !l.owns(item) {
		return nil, nullPtr, false
	}
	node := l.nodeOf(item)
	if !node.IsNull() {
		return nil, nullPtr, false
	}
	return node, l.toLink(item), true
}

func (l *XArenaList[T]) PushFront(item *T) bool {
	node, newLink, ok := l.admit(item)
	if !ok {
		return false
	}
	backoff := uint8(1)
	for attempt := 0; attempt < l.maxRetries; attempt++ {
		oldHead := l.headLink()
		// A head that is mid unlink is about to be replaced by its
		// remover; chase the fresh value instead of linking behind it.
		if oh := l.nodeAt(oldHead); oh != nil && oh.IsDeleting() {
			backoff = spinYield(backoff)
			continue
		}
		// Publish the candidate's own links before it becomes reachable;
		// the head CAS's ordering carries them to any acquirer.
		node.links.Store(packLinks(oldHead, nullPtr, 0, 0))
		if !l.head.CompareAndSwap(uint32(oldHead), uint32(newLink)) {
			backoff = spinYield(backoff)
			continue
		}
		// Commit point. From here the insertion is linearized.
		if oldHead != nullPtr && l.casPrevLinkOf(oldHead, nullPtr, newLink) != repairDone {
			// The displaced head vanished under us; undo the publication.
			l.head.CompareAndSwap(uint32(newLink), uint32(oldHead))
			node.links.Store(nullLink)
			l.stats.IncreaseRetryExhausted(opPushFront)
			return false
		}
		l.tail.CompareAndSwap(uint32(nullPtr), uint32(newLink))
		l.len.Add(1)
		l.stats.RecordElementDelta(1)
		l.stats.IncreaseCommit(opPushFront)
		return true
	}
	node.links.Store(nullLink)
	l.stats.IncreaseRetryExhausted(opPushFront)
	return false
}

func (l *XArenaList[T]) PushBack(item *T) bool {
	node, newLink, ok := l.admit(item)
	if !ok {
		return false
	}
	backoff := uint8(1)
	for attempt := 0; attempt < l.maxRetries; attempt++ {
		oldTail := l.tailLink()
		if ot := l.nodeAt(oldTail); ot != nil && ot.IsDeleting() {
			backoff = spinYield(backoff)
			continue
		}
		node.links.Store(packLinks(nullPtr, oldTail, 0, 0))
		if !l.tail.CompareAndSwap(uint32(oldTail), uint32(newLink)) {
			backoff = spinYield(backoff)
			continue
		}
		if oldTail != nullPtr && l.casNextLinkOf(oldTail, nullPtr, newLink) != repairDone {
			l.tail.CompareAndSwap(uint32(newLink), uint32(oldTail))
			node.links.Store(nullLink)
			l.stats.IncreaseRetryExhausted(opPushBack)
			return false
		}
		l.head.CompareAndSwap(uint32(nullPtr), uint32(newLink))
		l.len.Add(1)
		l.stats.RecordElementDelta(1)
		l.stats.IncreaseCommit(opPushBack)
		return true
	}
	node.links.Store(nullLink)
	l.stats.IncreaseRetryExhausted(opPushBack)
	return false
}

func (l *XArenaList[T]) InsertAfter(anchor, item *T) bool {
	if !l.owns(anchor) {
		return false
	}
	node, newLink, ok := l.admit(item)
	if !ok {
		return false
	}
	anchorNode := l.nodeOf(anchor)
	anchorLink := l.toLink(anchor)
	backoff := uint8(1)
	for attempt := 0; attempt < l.maxRetries; attempt++ {
		word := anchorNode.loadWord()
		if wordIsDeleting(word) {
			return false
		}
		next, prev, nextVer, prevVer := unpackLinks(word)
		// Do not wedge the new node against a successor that is mid
		// unlink; wait for its deleter to repair the anchor's next.
		if nn := l.nodeAt(next); nn != nil && nn.IsDeleting() {
			backoff = spinYield(backoff)
			continue
		}
		node.links.Store(packLinks(next, anchorLink, 0, 0))
		committed := packLinks(newLink, prev, nextVer+1, prevVer)
		if !anchorNode.casWord(word, committed) {
			backoff = spinYield(backoff)
			continue
		}
		// Commit point: the anchor now points at the new node.
		if next != nullPtr {
			if l.casPrevLinkOf(next, anchorLink, newLink) != repairDone {
				// The old successor moved on; restore the anchor word and
				// retry the whole insertion against the new topology.
				anchorNode.casWord(committed, word)
				backoff = spinYield(backoff)
				continue
			}
		} else {
			l.tail.CompareAndSwap(uint32(anchorLink), uint32(newLink))
		}
		l.len.Add(1)
		l.stats.RecordElementDelta(1)
		l.stats.IncreaseCommit(opInsertAfter)
		return true
	}
	node.links.Store(nullLink)
	l.stats.IncreaseRetryExhausted(opInsertAfter)
	return false
}

func (l *XArenaList[T]) InsertBefore(anchor, item *T) bool {
	if !l.owns(anchor) {
		return false
	}
	node, newLink, ok := l.admit(item)
	if !ok {
		return false
	}
	anchorNode := l.nodeOf(anchor)
	anchorLink := l.toLink(anchor)
	backoff := uint8(1)
	for attempt := 0; attempt < l.maxRetries; attempt++ {
		word := anchorNode.loadWord()
		if wordIsDeleting(word) {
			return false
		}
		next, prev, nextVer, prevVer := unpackLinks(word)
		// Mirror of InsertAfter: wait out a predecessor that is mid
		// unlink instead of committing against its stale edge.
		if pn := l.nodeAt(prev); pn != nil && pn.IsDeleting() {
			backoff = spinYield(backoff)
			continue
		}
		node.links.Store(packLinks(anchorLink, prev, 0, 0))
		committed := packLinks(next, newLink, nextVer, prevVer+1)
		if !anchorNode.casWord(word, committed) {
			backoff = spinYield(backoff)
			continue
		}
		if prev != nullPtr {
			if l.casNextLinkOf(prev, anchorLink, newLink) != repairDone {
				anchorNode.casWord(committed, word)
				backoff = spinYield(backoff)
				continue
			}
		} else {
			l.head.CompareAndSwap(uint32(anchorLink), uint32(newLink))
		}
		l.len.Add(1)
		l.stats.RecordElementDelta(1)
		l.stats.IncreaseCommit(opInsertBefore)
		return true
	}
	node.links.Store(nullLink)
	l.stats.IncreaseRetryExhausted(opInsertBefore)
	return false
}

// Remove unlinks item through the multi-phase deletion protocol: mark the
// node deleting (the commit point), swing head/tail off it, repair both
// neighbor edges, then finalize the word to the fully-removed sentinel.
// The repairs tolerate losing races with neighbor deletions; each deleter
// fixes its own outgoing edges, so the structure converges.
func (l *XArenaList[T]) Remove(item *T) *T {
	if !l.owns(item) {
		return nil
	}
	node := l.nodeOf(item)
	myLink := l.toLink(item)
	backoff := uint8(1)
	for attempt := 0; attempt < l.maxRetries; attempt++ {
		word := node.loadWord()
		if word == nullLink {
			return nil // already removed
		}
		next, prev, nextVer, prevVer := unpackLinks(word)
		if next == deletingMark {
			return nil // another goroutine owns this deletion
		}
		// Hold off while a recorded neighbor is itself mid-unlink: its
		// deleter is about to rewrite this word, and committing against
		// a dying neighbor can strand the boundary indexes.
		if pn := l.nodeAt(prev); pn != nil && pn.IsDeleting() {
			backoff = spinYield(backoff)
			continue
		}
		if nn := l.nodeAt(next); nn != nil && nn.IsDeleting() {
			backoff = spinYield(backoff)
			continue
		}
		if !node.casWord(word, packLinks(deletingMark, prev, nextVer+1, prevVer)) {
			backoff = spinYield(backoff)
			continue
		}
		// Commit point: the deletion is linearized and owned here.
		l.len.Add(-1)
		l.stats.RecordElementDelta(-1)
		if prev == nullPtr {
			// Tolerate a concurrent head mover: losing the CAS means the
			// head already passed us by.
			l.head.CompareAndSwap(uint32(myLink), uint32(next))
		}
		if next == nullPtr {
			l.tail.CompareAndSwap(uint32(myLink), uint32(prev))
		}
		dirty := false
		if prev != nullPtr && l.casNextLinkOf(prev, myLink, next) == repairAborted {
			dirty = true
		}
		if next != nullPtr && l.casPrevLinkOf(next, myLink, prev) == repairAborted {
			dirty = true
		}
		if dirty {
			l.stats.IncreaseDirtyRepair()
		}
		// A racing neighbor deletion may have handed this node a boundary
		// index after the first pass; re-check before the word is wiped.
		if l.headLink() == myLink {
			l.head.CompareAndSwap(uint32(myLink), uint32(next))
		}
		if l.tailLink() == myLink {
			l.tail.CompareAndSwap(uint32(myLink), uint32(prev))
		}
		node.links.Store(nullLink)
		l.stats.IncreaseCommit(opRemove)
		return item
	}
	l.stats.IncreaseRetryExhausted(opRemove)
	return nil
}

func (l *XArenaList[T]) PopFront() *T {
	backoff := uint8(1)
	for attempt := 0; attempt < l.maxRetries; attempt++ {
		head := l.headLink()
		if head == nullPtr {
			return nil
		}
		if item := l.Remove(l.toItem(head)); item != nil {
			return item
		}
		backoff = spinYield(backoff) // head moved on, chase it
	}
	return nil
}

func (l *XArenaList[T]) PopBack() *T {
	backoff := uint8(1)
	for attempt := 0; attempt < l.maxRetries; attempt++ {
		tail := l.tailLink()
		if tail == nullPtr {
			return nil
		}
		if item := l.Remove(l.toItem(tail)); item != nil {
			return item
		}
		backoff = spinYield(backoff)
	}
	return nil
}

func (l *XArenaList[T]) Find(pred func(item *T) bool) *T {
	resets := 0
	cur := l.headLink()
	for {
		if cur == nullPtr || cur == deletingMark {
			return nil
		}
		word := l.toNode(cur).loadWord()
		if wordIsDeleting(word) {
			// The node vanished underneath; restart from the head, but
			// not forever.
			if resets++; resets > l.maxRetries {
				return nil
			}
			cur = l.headLink()
			continue
		}
		item := l.toItem(cur)
		if pred(item) {
			return item
		}
		cur = nextLinkOf(word)
	}
}

func (l *XArenaList[T]) FindAlive(pred func(item *T) bool) *T {
	item := l.Find(pred)
	if item == nil || l.nodeOf(item).IsDeleting() {
		return nil
	}
	return item
}

// Front returns the head item, nil when empty. Racy-snapshot semantics,
// same as Find.
func (l *XArenaList[T]) Front() *T {
	head := l.headLink()
	if head == nullPtr {
		return nil
	}
	return l.toItem(head)
}

// Back mirrors Front at the tail side.
func (l *XArenaList[T]) Back() *T {
	tail := l.tailLink()
	if tail == nullPtr {
		return nil
	}
	return l.toItem(tail)
}
