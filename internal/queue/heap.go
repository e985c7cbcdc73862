package queue

import (
	"container/heap"

	"github.com/wallet-sync/internal/models"
)

// chunkHeap orders chunks by priority (highest first); ties break on
// creation time so older work drains first.
type chunkHeap []*models.Chunk

func (h chunkHeap) Len() int { return len(h) }

func (h chunkHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].CreatedAt.Before(h[j].CreatedAt)
}

func (h chunkHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *chunkHeap) Push(x interface{}) {
	*h = append(*h, x.(*models.Chunk))
}

func (h *chunkHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

func (h *chunkHeap) push(c *models.Chunk) {
	heap.Push(h, c)
}

func (h *chunkHeap) pop() *models.Chunk {
	return heap.Pop(h).(*models.Chunk)
}
