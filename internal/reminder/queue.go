package reminder

import (
	"container/heap"
	"time"
)

type dueItem struct {
	id    string
	due   time.Time
	index int
}

// dueQueue is a min-heap of reminder times.
type dueQueue []*dueItem

func (q dueQueue) Len() int { return len(q) }

func (q dueQueue) Less(i, j int) bool { return q[i].due.Before(q[j].due) }

func (q dueQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *dueQueue) Push(x any) {
	item := x.(*dueItem)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *dueQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}

func (q *dueQueue) peek() *dueItem {
	if len(*q) == 0 {
		return nil
	}
	return (*q)[0]
}

func (q *dueQueue) remove(item *dueItem) {
	if item.index >= 0 {
		heap.Remove(q, item.index)
	}
}
