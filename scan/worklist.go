// Implements the Worklist, which holds the cells still to be visited by a scan.
// Items are enqueued by the behavior table and drained a snapshot at a time.

package scan

import (
	"fmt"
	"strings"
)

// WorkItem is one pending visit: the cell, the tick the signal reaches it,
// the sustain length of that signal, and whether ambient solid-block
// propagation applies.
type WorkItem struct {
	At           Coordinate
	TickOffset   int
	SignalLength int
	Propagate    bool
}

func (w WorkItem) String() string {
	return fmt.Sprintf("%s@%d/len%d/prop=%t", w.At, w.TickOffset, w.SignalLength, w.Propagate)
}

// Worklist is the FIFO queue driving breadth-first order.
type Worklist struct {
	queue []WorkItem
}

// Enqueue adds an item to the back of the worklist.
func (wl *Worklist) Enqueue(item WorkItem) {
	wl.queue = append(wl.queue, item)
}

// Len returns the number of pending items.
func (wl *Worklist) Len() int {
	return len(wl.queue)
}

// Snapshot removes and returns every item currently queued.
// Items enqueued afterwards belong to the next snapshot.
func (wl *Worklist) Snapshot() []WorkItem {
	items := wl.queue
	wl.queue = nil
	return items
}

func (wl *Worklist) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, item := range wl.queue {
		sb.WriteString(item.String())
		if i < len(wl.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
