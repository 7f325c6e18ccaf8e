package matching

import (
	"container/heap"

	"github.com/mmynk/tablemates/internal/models"
)

// Candidate is a pool member scored against the requester.
type Candidate struct {
	User  *models.User
	Score float64
	// Index is the candidate's position in the pool snapshot.
	Index int
}

// worse reports whether a ranks below b: lower score, or equal score and
// later in the snapshot.
func worse(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Index > b.Index
}

// minHeap keeps the worst retained candidate at the root.
type minHeap []Candidate

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minHeap) Push(x any) { *h = append(*h, x.(Candidate)) }

func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// TopK returns the k best users by score, best first. Equal scores keep
// snapshot order, so the result matches a stable descending sort.
// It runs in O(n log k).
func TopK(users []*models.User, k int, score func(*models.User) float64) []Candidate {
	if k <= 0 || len(users) == 0 {
		return nil
	}

	h := make(minHeap, 0, min(k, len(users)))
	for i, u := range users {
		c := Candidate{User: u, Score: score(u), Index: i}
		if h.Len() < k {
			heap.Push(&h, c)
			continue
		}
		if worse(h[0], c) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}

	out := make([]Candidate, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Candidate)
	}
	return out
}
