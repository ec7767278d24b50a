package scan

import (
	"container/heap"

	"github.com/sirupsen/logrus"
)

// bufferState tracks the event buffer lifecycle.
type bufferState int

const (
	bufferIdle bufferState = iota
	bufferAccumulating
	bufferFlushing
)

func (s bufferState) String() string {
	switch s {
	case bufferAccumulating:
		return "accumulating"
	case bufferFlushing:
		return "flushing"
	default:
		return "idle"
	}
}

// LeafWriter persists a flushed leaf.
type LeafWriter func(Leaf) error

// EventBuffer collects events in tick order and cuts them into leaves of at
// most Window ticks. When the buffered span grows past six windows, the three
// earliest leaves are written eagerly.
type EventBuffer struct {
	window   int
	queue    eventQueue
	seq      int64
	lowWater int
	maxTick  int
	state    bufferState
	write    LeafWriter
}

// NewEventBuffer creates an empty buffer. write receives eagerly flushed leaves
// and may be nil when the caller only drains with FlushOne/FlushAll.
func NewEventBuffer(window int, write LeafWriter) *EventBuffer {
	return &EventBuffer{window: window, write: write}
}

// Len returns the number of buffered events.
func (b *EventBuffer) Len() int { return len(b.queue) }

// Accept buffers ev and runs the eager flush when the threshold is crossed.
// The returned error comes from the LeafWriter.
func (b *EventBuffer) Accept(ev Event) error {
	ev.seq = b.seq
	b.seq++
	if b.state == bufferIdle {
		b.lowWater = ev.TickOffset
		b.maxTick = ev.TickOffset
		b.state = bufferAccumulating
	}
	heap.Push(&b.queue, ev)
	b.maxTick = max(b.maxTick, ev.TickOffset)

	if !shouldEagerFlush(b.maxTick, b.lowWater, b.window) {
		return nil
	}
	logrus.Debugf("event buffer: span %d..%d exceeds %d windows, flushing %d leaves",
		b.lowWater, b.maxTick, eagerFlushWindows, eagerFlushLeaves)
	b.state = bufferFlushing
	for i := 0; i < eagerFlushLeaves; i++ {
		leaf, ok := b.FlushOne()
		if !ok {
			break
		}
		if b.write != nil {
			if err := b.write(leaf); err != nil {
				return err
			}
		}
	}
	if len(b.queue) > 0 {
		b.lowWater = b.queue[0].TickOffset
		b.state = bufferAccumulating
	} else {
		b.state = bufferIdle
	}
	return nil
}

// shouldEagerFlush reports whether the buffered span has outgrown the
// eager-flush threshold.
func shouldEagerFlush(maxTick, lowWater, window int) bool {
	return maxTick > lowWater+eagerFlushWindows*window
}

// FlushOne drains every event earlier than the first drained tick plus one
// window into a single leaf. It reports false when the buffer is empty.
func (b *EventBuffer) FlushOne() (Leaf, bool) {
	if len(b.queue) == 0 {
		return Leaf{}, false
	}
	first := b.queue[0].TickOffset
	limit := first + b.window
	leaf := Leaf{Interval: Interval{First: first, Last: first}}
	for len(b.queue) > 0 && b.queue[0].TickOffset < limit {
		ev := heap.Pop(&b.queue).(Event)
		leaf.Interval.Last = ev.TickOffset
		leaf.Events = append(leaf.Events, ev)
	}
	if len(b.queue) == 0 && b.state != bufferFlushing {
		b.state = bufferIdle
	}
	return leaf, true
}

// FlushAll drains the buffer into consecutive leaves.
func (b *EventBuffer) FlushAll() []Leaf {
	var leaves []Leaf
	for {
		leaf, ok := b.FlushOne()
		if !ok {
			break
		}
		leaves = append(leaves, leaf)
	}
	b.state = bufferIdle
	return leaves
}
