package mathrender

import (
	"cmp"
	"slices"
	"time"
)

// Task priorities used by the orchestrator itself.
const (
	PriorityPreload = -1
	PriorityNormal  = 0
	PriorityVisible = 1
)

// RenderTask is one pending render request. It is discarded once processed.
type RenderTask struct {
	ID        string
	Element   Element
	Formula   string // cleaned
	Source    string // wrapped text handed to the engine
	Key       string
	Inline    bool
	Priority  int
	Timestamp time.Time

	seq  uint64
	done chan error // nil for fire-and-forget tasks
}

func (t *RenderTask) finish(err error) {
	if t.done != nil {
		t.done <- err
	}
}

// renderQueue is guarded by the orchestrator mutex.
type renderQueue struct {
	tasks []*RenderTask
	seq   uint64
}

func (q *renderQueue) push(t *RenderTask) {
	q.seq++
	t.seq = q.seq
	q.tasks = append(q.tasks, t)
}

func (q *renderQueue) len() int {
	return len(q.tasks)
}

// next sorts by descending priority, then earlier timestamp, then insertion
// order, and removes up to n tasks from the head.
func (q *renderQueue) next(n int) []*RenderTask {
	if len(q.tasks) == 0 || n <= 0 {
		return nil
	}

	slices.SortStableFunc(q.tasks, func(a, b *RenderTask) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	if n > len(q.tasks) {
		n = len(q.tasks)
	}
	batch := make([]*RenderTask, n)
	copy(batch, q.tasks[:n])

	rest := make([]*RenderTask, len(q.tasks)-n)
	copy(rest, q.tasks[n:])
	q.tasks = rest

	return batch
}

func (q *renderQueue) drain() []*RenderTask {
	tasks := q.tasks
	q.tasks = nil
	return tasks
}
