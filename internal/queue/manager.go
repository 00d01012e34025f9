package queue

import (
	"container/heap"
	"time"

	"github.com/storypilot/scheduler/internal/models"
	"golang.org/x/time/rate"
)

// Manager gates dispatch volume and orders claimed posts. The rate limiter
// is process-local; its history resets on restart, which is an accepted
// tradeoff. The dispatcher re-derives the queue from the store every tick,
// so nothing here holds posts between ticks.
type Manager struct {
	limiter  *rate.Limiter
	capacity int
	now      func() time.Time
}

func NewManager(perMinute, burst, capacity int) *Manager {
	return &Manager{
		limiter:  rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
		capacity: capacity,
		now:      time.Now,
	}
}

// Budget returns how many posts the current tick may dispatch without
// consuming rate tokens yet; Commit takes them once the claim succeeded.
// Due posts beyond the budget stay in the store for a later tick.
func (m *Manager) Budget() int {
	tokens := int(m.limiter.TokensAt(m.now()))
	if tokens < 0 {
		tokens = 0
	}
	if tokens > m.capacity {
		return m.capacity
	}
	return tokens
}

func (m *Manager) Commit(n int) {
	if n > 0 {
		m.limiter.AllowN(m.now(), n)
	}
}

// Order sorts posts into dispatch order: explicit priority first, then the
// earliest scheduled instant.
func (m *Manager) Order(posts []*models.ScheduledPost) []*models.ScheduledPost {
	h := postHeap(append([]*models.ScheduledPost(nil), posts...))
	heap.Init(&h)

	ordered := make([]*models.ScheduledPost, 0, len(posts))
	for h.Len() > 0 {
		ordered = append(ordered, heap.Pop(&h).(*models.ScheduledPost))
	}
	return ordered
}

type postHeap []*models.ScheduledPost

func (h postHeap) Len() int { return len(h) }

func (h postHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].ScheduledFor.Before(h[j].ScheduledFor)
}

func (h postHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *postHeap) Push(x any) { *h = append(*h, x.(*models.ScheduledPost)) }

func (h *postHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
