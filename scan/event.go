package scan

import "fmt"

// Event is a command scheduled to run at a tick offset from scan start.
type Event struct {
	TickOffset int
	Command    string
	seq        int64
}

func (e Event) String() string {
	return fmt.Sprintf("%d:%s", e.TickOffset, e.Command)
}

// eventQueue implements heap.Interface and orders events by tick offset.
// Equal ticks keep insertion order through seq, so command order within a
// tick is stable.
type eventQueue []Event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].TickOffset != q[j].TickOffset {
		return q[i].TickOffset < q[j].TickOffset
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) {
	*q = append(*q, x.(Event))
}

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
