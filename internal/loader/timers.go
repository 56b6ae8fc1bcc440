package loader

import (
	"container/heap"
	"time"
)

type timerID uint64

type timerEntry struct {
	id    timerID
	at    time.Time
	fn    func(at time.Time)
	index int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].id < h[j].id
	}
	return h[i].at.Before(h[j].at)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// timerQueue is the cooperative timer facility of the supervisor. Nothing
// fires on its own: advance runs every callback whose deadline has passed,
// in deadline order, ties broken by scheduling order.
type timerQueue struct {
	entries timerHeap
	byID    map[timerID]*timerEntry
	next    timerID
}

func newTimerQueue() *timerQueue {
	return &timerQueue{byID: make(map[timerID]*timerEntry)}
}

func (q *timerQueue) schedule(at time.Time, fn func(at time.Time)) timerID {
	q.next++
	e := &timerEntry{id: q.next, at: at, fn: fn}
	heap.Push(&q.entries, e)
	q.byID[e.id] = e
	return e.id
}

// cancel defuses a pending timer. Cancelling a fired or unknown timer is a no-op.
func (q *timerQueue) cancel(id timerID) bool {
	e, ok := q.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&q.entries, e.index)
	delete(q.byID, id)
	return true
}

func (q *timerQueue) advance(now time.Time) int {
	fired := 0
	for len(q.entries) > 0 && !q.entries[0].at.After(now) {
		e := heap.Pop(&q.entries).(*timerEntry)
		delete(q.byID, e.id)
		e.fn(e.at)
		fired++
	}
	return fired
}

func (q *timerQueue) pending() int {
	return len(q.entries)
}
