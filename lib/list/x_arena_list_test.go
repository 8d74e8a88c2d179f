package list

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type xItem struct {
	node  ArenaListNode
	value int
}

func xItemNode(item *xItem) *ArenaListNode {
	return &item.node
}

func newXItemArena(t *testing.T, capacity int, opts ...XArenaListOption) ([]xItem, *XArenaList[xItem]) {
	t.Helper()
	slots := make([]xItem, capacity)
	l, err := NewXArenaList[xItem](slots, xItemNode, opts...)
	require.NoError(t, err)
	return slots, l
}

func forwardValues(t *testing.T, l *XArenaList[xItem]) []int {
	t.Helper()
	values := make([]int, 0, l.Capacity())
	require.NoError(t, l.ForEach(func(idx int64, item *xItem) {
		values = append(values, item.value)
	}))
	return values
}

func backwardValues(t *testing.T, l *XArenaList[xItem]) []int {
	t.Helper()
	values := make([]int, 0, l.Capacity())
	require.NoError(t, l.ReverseForEach(func(idx int64, item *xItem) {
		values = append(values, item.value)
	}))
	return values
}

func TestNewXArenaList_InvalidArgs(t *testing.T) {
	_, err := NewXArenaList[xItem](nil, xItemNode)
	require.Error(t, err)
	_, err = NewXArenaList[xItem](make([]xItem, 1), nil)
	require.Error(t, err)
}

func TestXArenaList_PushBackThenIterate(t *testing.T) {
	slots, l := newXItemArena(t, 8)
	for i := 1; i <= 5; i++ {
		slots[i].value = i
		require.True(t, l.PushBack(&slots[i]))
	}
	assert.Equal(t, int64(5), l.Len())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, forwardValues(t, l))
	assert.Equal(t, []int{5, 4, 3, 2, 1}, backwardValues(t, l))
	require.NoError(t, l.CheckInvariants())
}

func TestXArenaList_InsertBeforeAfter(t *testing.T) {
	slots, l := newXItemArena(t, 8)
	for i, v := range []int{1, 2, 4} {
		slots[i].value = v
		require.True(t, l.PushBack(&slots[i]))
	}

	anchor2 := l.Find(func(item *xItem) bool { return item.value == 2 })
	require.NotNil(t, anchor2)
	slots[5].value = 3
	require.True(t, l.InsertAfter(anchor2, &slots[5]))
	assert.Equal(t, []int{1, 2, 3, 4}, forwardValues(t, l))

	anchor1 := l.Find(func(item *xItem) bool { return item.value == 1 })
	require.NotNil(t, anchor1)
	slots[6].value = 0
	require.True(t, l.InsertBefore(anchor1, &slots[6]))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, forwardValues(t, l))
	assert.Equal(t, []int{4, 3, 2, 1, 0}, backwardValues(t, l))

	assert.Equal(t, 0, l.Front().value)
	assert.Equal(t, 4, l.Back().value)
	require.NoError(t, l.CheckInvariants())
}

func TestXArenaList_SizeTracking(t *testing.T) {
	slots, l := newXItemArena(t, 8)
	assert.Equal(t, int64(0), l.Len())

	slots[0].value = 1
	require.True(t, l.PushFront(&slots[0]))
	assert.Equal(t, int64(1), l.Len())

	slots[1].value = 2
	require.True(t, l.PushBack(&slots[1]))
	assert.Equal(t, int64(2), l.Len())

	slots[2].value = 3
	require.True(t, l.InsertAfter(&slots[0], &slots[2]))
	assert.Equal(t, int64(3), l.Len())

	require.NotNil(t, l.Remove(&slots[2]))
	assert.Equal(t, int64(2), l.Len())

	require.NotNil(t, l.PopFront())
	assert.Equal(t, int64(1), l.Len())

	require.NotNil(t, l.PopBack())
	assert.Equal(t, int64(0), l.Len())
	require.NoError(t, l.CheckInvariants())
}

func TestXArenaList_EmptyBoundaries(t *testing.T) {
	_, l := newXItemArena(t, 4)
	assert.True(t, l.Begin().Equal(l.End()))
	assert.Nil(t, l.PopFront())
	assert.Nil(t, l.PopBack())
	assert.Nil(t, l.Front())
	assert.Nil(t, l.Back())
	assert.Nil(t, l.Find(func(item *xItem) bool { return true }))
	require.NoError(t, l.CheckInvariants())
}

func TestXArenaList_SingleElement(t *testing.T) {
	slots, l := newXItemArena(t, 4)
	slots[0].value = 42
	require.True(t, l.PushBack(&slots[0]))

	it := l.Begin()
	require.True(t, it.Valid())
	assert.Equal(t, 42, it.Item().value)
	require.NoError(t, it.Next())
	assert.True(t, it.Equal(l.End()))

	rit := l.RBegin()
	require.True(t, rit.Valid())
	assert.Equal(t, 42, rit.Item().value)
	require.NoError(t, rit.Prev())
	assert.False(t, rit.Valid())

	removed := l.Remove(&slots[0])
	require.Same(t, &slots[0], removed)
	assert.Equal(t, int64(0), l.Len())
	assert.Nil(t, l.Front())
	assert.Nil(t, l.Back())
	assert.True(t, slots[0].node.IsNull())
	require.NoError(t, l.CheckInvariants())
}

func TestXArenaList_RemoveRoundTrip(t *testing.T) {
	slots, l := newXItemArena(t, 4)
	slots[0].value = 1
	require.True(t, l.PushBack(&slots[0]))
	before := forwardValues(t, l)

	slots[1].value = 2
	require.True(t, l.PushBack(&slots[1]))
	require.Same(t, &slots[1], l.Remove(&slots[1]))

	assert.Equal(t, before, forwardValues(t, l))
	require.NoError(t, l.CheckInvariants())

	// Removal is idempotent.
	assert.Nil(t, l.Remove(&slots[1]))
	assert.Equal(t, int64(1), l.Len())

	// A removed slot may be re-inserted.
	require.True(t, l.PushFront(&slots[1]))
	assert.Equal(t, []int{2, 1}, forwardValues(t, l))
}

func TestXArenaList_PermutedRemovals(t *testing.T) {
	const n = 64
	slots, l := newXItemArena(t, n)
	for i := 0; i < n; i++ {
		slots[i].value = i
		require.True(t, l.PushBack(&slots[i]))
	}
	order := rand.Perm(n)
	for _, i := range order {
		require.Same(t, &slots[i], l.Remove(&slots[i]))
	}
	assert.Equal(t, int64(0), l.Len())
	assert.Empty(t, forwardValues(t, l))
	require.NoError(t, l.CheckInvariants())
	for i := range slots {
		assert.True(t, slots[i].node.IsNull())
	}
}

func TestXArenaList_RejectsBadCandidates(t *testing.T) {
	slots, l := newXItemArena(t, 4)
	slots[0].value = 1
	require.True(t, l.PushBack(&slots[0]))

	// Already linked.
	assert.False(t, l.PushFront(&slots[0]))
	// Outside the arena.
	foreign := &xItem{}
	foreign.node.Reset()
	assert.False(t, l.PushBack(foreign))
	assert.Nil(t, l.Remove(foreign))
	// Removed anchor.
	require.NotNil(t, l.Remove(&slots[0]))
	assert.False(t, l.InsertAfter(&slots[0], &slots[1]))
	assert.False(t, l.InsertBefore(&slots[0], &slots[1]))
}

func TestXArenaList_FindAndFindAlive(t *testing.T) {
	slots, l := newXItemArena(t, 8)
	for i := 0; i < 5; i++ {
		slots[i].value = i * 10
		require.True(t, l.PushBack(&slots[i]))
	}
	item := l.Find(func(item *xItem) bool { return item.value == 30 })
	require.NotNil(t, item)
	assert.Equal(t, 30, item.value)

	assert.Nil(t, l.Find(func(item *xItem) bool { return item.value == 999 }))

	alive := l.FindAlive(func(item *xItem) bool { return item.value == 40 })
	require.NotNil(t, alive)
	require.NotNil(t, l.Remove(alive))
	assert.Nil(t, l.FindAlive(func(item *xItem) bool { return item.value == 40 }))
}

func TestXArenaList_CapacityBound(t *testing.T) {
	slots, l := newXItemArena(t, 3)
	assert.Equal(t, 3, l.Capacity())
	for i := range slots {
		slots[i].value = i
		require.True(t, l.PushBack(&slots[i]))
	}
	assert.Equal(t, int64(3), l.Len())
	require.NoError(t, l.CheckInvariants())
}
