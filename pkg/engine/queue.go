package engine

import (
	"container/heap"
	"sync"
)

type requestKind int

const (
	reqRegister requestKind = iota
	reqCancel
	reqPause
	reqResume
	reqRetarget
	reqSetPriority
)

func (k requestKind) String() string {
	switch k {
	case reqRegister:
		return "register"
	case reqCancel:
		return "cancel"
	case reqPause:
		return "pause"
	case reqResume:
		return "resume"
	case reqRetarget:
		return "retarget"
	case reqSetPriority:
		return "set-priority"
	default:
		return "unknown"
	}
}

// request is a control message from any goroutine to the tick goroutine.
type request struct {
	kind     requestKind
	handle   Handle
	entry    *entry // reqRegister only
	to       float64
	priority int
}

// requestQueue is the ingress queue. Producers append under the lock; the
// tick goroutine swaps the whole slice out in drain.
type requestQueue struct {
	mu    sync.Mutex
	items []request
	spare []request
}

func (q *requestQueue) push(r request) {
	q.mu.Lock()
	q.items = append(q.items, r)
	q.mu.Unlock()
}

// drain returns every queued request in submission order. The returned slice
// is valid until the next drain.
func (q *requestQueue) drain() []request {
	clear(q.spare)
	q.mu.Lock()
	items := q.items
	q.items = q.spare[:0]
	q.mu.Unlock()
	q.spare = items
	return items
}

func (q *requestQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// admissionQueue orders Pending entries by priority, then registration order.
type admissionQueue []*entry

func (q admissionQueue) Len() int { return len(q) }

func (q admissionQueue) Less(i, j int) bool {
	if pi, pj := q[i].priority.Load(), q[j].priority.Load(); pi != pj {
		return pi < pj
	}
	return q[i].seq < q[j].seq
}

func (q admissionQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].heapIndex = i
	q[j].heapIndex = j
}

func (q *admissionQueue) Push(x any) {
	e := x.(*entry)
	e.heapIndex = len(*q)
	*q = append(*q, e)
}

func (q *admissionQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.heapIndex = -1
	*q = old[:n-1]
	return e
}

func (q *admissionQueue) remove(e *entry) {
	if e.heapIndex >= 0 && e.heapIndex < len(*q) && (*q)[e.heapIndex] == e {
		heap.Remove(q, e.heapIndex)
	}
}
