// Package urlqueue implements the capture work-queue: a priority queue per
// work type, a roster of registered clients and their type preferences, and
// the HTTP service that exposes both to capture workers.
package urlqueue

import (
	"container/heap"
)

// Lesser is implemented by work items that have a priority ordering. Less
// reports whether the receiver should be served before other.
type Lesser[W any] interface {
	Less(other W) bool
}

type workHeap[W Lesser[W]] []W

func (h workHeap[W]) Len() int            { return len(h) }
func (h workHeap[W]) Less(i, j int) bool  { return h[i].Less(h[j]) }
func (h workHeap[W]) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *workHeap[W]) Push(x interface{}) { *h = append(*h, x.(W)) }
func (h *workHeap[W]) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// WorkQueue holds one priority queue per work type and a roster of
// registered clients, each with an ordered list of work types they accept.
// Not safe for concurrent use; callers that share a WorkQueue across
// goroutines (the HTTP service) must hold an external lock.
type WorkQueue[T comparable, W Lesser[W]] struct {
	work        map[T]*workHeap[W]
	clients     map[uint64][]T
	curClientID uint64
}

// NewWorkQueue builds a WorkQueue preloaded with the given work items.
func NewWorkQueue[T comparable, W Lesser[W]](items ...WorkItem[T, W]) *WorkQueue[T, W] {
	q := &WorkQueue[T, W]{
		work:    make(map[T]*workHeap[W]),
		clients: make(map[uint64][]T),
	}
	for _, item := range items {
		q.AddWork(item.Type, item.Work)
	}
	return q
}

// WorkItem pairs a work type with a work item, used to seed a WorkQueue.
type WorkItem[T comparable, W Lesser[W]] struct {
	Type T
	Work W
}

// AddClient registers a new client with its ordered list of acceptable
// work types (most preferred first) and returns its assigned client ID.
func (q *WorkQueue[T, W]) AddClient(workTypes []T) uint64 {
	q.curClientID++
	q.clients[q.curClientID] = workTypes
	return q.curClientID
}

// RemoveClient deregisters a client. A no-op if the client is unknown.
func (q *WorkQueue[T, W]) RemoveClient(clientID uint64) {
	delete(q.clients, clientID)
}

// NumClients returns the count of currently registered clients.
func (q *WorkQueue[T, W]) NumClients() int {
	return len(q.clients)
}

// AddWork inserts a work item into the queue for workType, creating that
// type's heap on first use.
func (q *WorkQueue[T, W]) AddWork(workType T, workItem W) {
	h, ok := q.work[workType]
	if !ok {
		h = &workHeap[W]{}
		heap.Init(h)
		q.work[workType] = h
	}
	heap.Push(h, workItem)
}

// RequestWork returns the highest-priority work item from the first of the
// client's preferred types that has work available, or ok=false if the
// client is unknown or none of its preferred types have work.
func (q *WorkQueue[T, W]) RequestWork(clientID uint64) (workType T, workItem W, ok bool) {
	types, exists := q.clients[clientID]
	if !exists {
		return workType, workItem, false
	}
	for _, t := range types {
		h, exists := q.work[t]
		if !exists || h.Len() == 0 {
			continue
		}
		return t, heap.Pop(h).(W), true
	}
	return workType, workItem, false
}
