package engine

// ring keeps the newest len(items) values. Callers synchronize.
type ring[T any] struct {
	items []T
	next  int
	count int
}

func newRing[T any](capacity int) ring[T] {
	return ring[T]{items: make([]T, max(capacity, 1))}
}

func (r *ring[T]) add(v T) {
	r.items[r.next] = v
	r.next = (r.next + 1) % len(r.items)
	if r.count < len(r.items) {
		r.count++
	}
}

// snapshot returns the held values oldest first, or nil when empty.
func (r *ring[T]) snapshot() []T {
	if r.count == 0 {
		return nil
	}
	out := make([]T, 0, r.count)
	if r.count == len(r.items) {
		out = append(out, r.items[r.next:]...)
	}
	return append(out, r.items[:r.next]...)
}
