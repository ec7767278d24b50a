// Package schedule provides periodic schedulers that drive scan sessions.
package schedule

import (
	"sync"
	"time"

	"github.com/redstone-tools/tickpack/scan"
)

// Ticker runs each task on its own goroutine driven by a time.Ticker.
// Cancel never blocks, so a task may cancel itself from inside its step.
type Ticker struct {
	mu    sync.Mutex
	next  scan.TaskHandle
	tasks map[scan.TaskHandle]chan struct{}
	wg    sync.WaitGroup
}

// NewTicker returns a scheduler with no tasks.
func NewTicker() *Ticker {
	return &Ticker{tasks: make(map[scan.TaskHandle]chan struct{})}
}

// RunPeriodic implements scan.Scheduler.
func (t *Ticker) RunPeriodic(step func(), delay, period time.Duration) scan.TaskHandle {
	t.mu.Lock()
	t.next++
	h := t.next
	stop := make(chan struct{})
	t.tasks[h] = stop
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-stop:
				return
			}
		}
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			default:
			}
			step()
			select {
			case <-ticker.C:
			case <-stop:
				return
			}
		}
	}()
	return h
}

// Cancel implements scan.Scheduler.
func (t *Ticker) Cancel(h scan.TaskHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if stop, ok := t.tasks[h]; ok {
		close(stop)
		delete(t.tasks, h)
	}
}

// Wait blocks until every task goroutine has returned.
func (t *Ticker) Wait() { t.wg.Wait() }

// Manual runs steps only when Tick is called, for deterministic tests.
type Manual struct {
	next  scan.TaskHandle
	tasks map[scan.TaskHandle]func()
	order []scan.TaskHandle
}

// NewManual returns an idle manual scheduler.
func NewManual() *Manual {
	return &Manual{tasks: make(map[scan.TaskHandle]func())}
}

// RunPeriodic implements scan.Scheduler. Delay and period are ignored.
func (m *Manual) RunPeriodic(step func(), _, _ time.Duration) scan.TaskHandle {
	m.next++
	m.tasks[m.next] = step
	m.order = append(m.order, m.next)
	return m.next
}

// Cancel implements scan.Scheduler.
func (m *Manual) Cancel(h scan.TaskHandle) {
	delete(m.tasks, h)
}

// Tick runs one step of every live task, in registration order.
func (m *Manual) Tick() {
	for _, h := range m.order {
		if step, ok := m.tasks[h]; ok {
			step()
		}
	}
}

// Active returns the number of live tasks.
func (m *Manual) Active() int { return len(m.tasks) }

// RunUntilIdle ticks until no task is live or limit ticks have run, and
// returns the number of ticks.
func (m *Manual) RunUntilIdle(limit int) int {
	n := 0
	for m.Active() > 0 && n < limit {
		m.Tick()
		n++
	}
	return n
}
