package dispatch

import "time"

// queueItem is one submitted task waiting for dispatch. Ordering is
// (priority ascending, submission sequence ascending): FIFO within a tier.
type queueItem struct {
	task     Task
	sourceID string
	priority int
	seq      uint64
	future   *Future
	enqueued time.Time
}

// taskHeap implements container/heap over queued tasks.
type taskHeap []*queueItem

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *taskHeap) Push(x interface{}) {
	*h = append(*h, x.(*queueItem))
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return item
}
