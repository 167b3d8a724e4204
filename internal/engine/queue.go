package engine

// exploreQueue is the FIFO frontier of a breadth-first exploration.
//
// Trees are explored in the order they were derived, so candidate ordinals
// grow with distance from the root. The queue is owned by one Explore call
// and is not safe for concurrent use.
type exploreQueue struct {
	items []*Candidate
	head  int
}

// newExploreQueue creates an empty queue.
func newExploreQueue() *exploreQueue {
	return &exploreQueue{items: make([]*Candidate, 0, 16)}
}

// Enqueue adds a candidate to the back of the queue.
func (q *exploreQueue) Enqueue(c *Candidate) {
	q.items = append(q.items, c)
}

// TryDequeue removes and returns the front candidate.
// Returns (nil, false) if the queue is empty.
func (q *exploreQueue) TryDequeue() (*Candidate, bool) {
	if q.head >= len(q.items) {
		return nil, false
	}
	c := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	return c, true
}

// Len returns the number of candidates waiting.
func (q *exploreQueue) Len() int {
	return len(q.items) - q.head
}
