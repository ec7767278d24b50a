package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/redstone-tools/tickpack/scan/trace"
)

// sessionState tracks a scan from creation to its terminal signal.
type sessionState int

const (
	sessionReady sessionState = iota
	sessionRunning
	sessionComplete
	sessionFailed
	sessionCanceled
)

// Session is one scan: it owns the worklist, the event buffer and the
// dispatch builder for a single package. Sessions share no state.
type Session struct {
	ID   uuid.UUID
	Name string

	cfg      Config
	cells    CellAccessor
	sink     PackageSink
	notifier Notifier
	env      behaviorEnv
	counter  Counter
	log      *logrus.Entry

	mu       sync.Mutex
	state    sessionState
	worklist Worklist
	buffer   *EventBuffer
	claimed  map[Coordinate]bool
	warned   map[Coordinate]bool
	pkg      *PackageHandle
	trace    *trace.ScanTrace
	root     *Node
	err      error
	steps    int
	events   int
	written  map[string]bool
	started  time.Time
	sched    Scheduler
	task     TaskHandle
	attached bool
	done     chan struct{}
}

// NewSession prepares a scan that will write the package name through sink.
func NewSession(name string, cfg Config, cells CellAccessor, sink PackageSink, notifier Notifier) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUserInput, err)
	}
	if !identifierPattern.MatchString(name) {
		return nil, fmt.Errorf("%w: package name %q is not a valid identifier", ErrUserInput, name)
	}
	id := uuid.New()
	s := &Session{
		ID:       id,
		Name:     name,
		cfg:      cfg,
		cells:    cells,
		sink:     sink,
		notifier: notifier,
		env: behaviorEnv{
			cells:    cells,
			sounds:   NewSoundRegistry(cfg.BuiltinSounds, cfg.CustomPrefixes),
			listener: cfg.ListenerTag,
		},
		counter: Counter{Holder: name, Objective: cfg.Objective},
		log:     logrus.WithFields(logrus.Fields{"scan": id.String(), "package": name}),
		claimed: make(map[Coordinate]bool),
		warned:  make(map[Coordinate]bool),
		written: make(map[string]bool),
		trace:   trace.NewScanTrace(id.String()),
		done:    make(chan struct{}),
	}
	s.env.log = s.log
	s.buffer = NewEventBuffer(cfg.Window, s.writeLeaf)
	return s, nil
}

// Start validates the start cell and the target package, then seeds the
// worklist. Nothing in the grid or the sink is touched when it fails.
func (s *Session) Start(start Coordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != sessionReady {
		return fmt.Errorf("%w: scan already started", ErrUserInput)
	}
	kind, err := s.cells.Kind(start)
	if err != nil {
		return cellErr(start, err)
	}
	if kind != Wire {
		return fmt.Errorf("%w: start %s is %s, not wire", ErrUserInput, start, kind)
	}
	exists, err := s.sink.Exists(s.Name)
	if err != nil {
		return sinkErr("check package", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrPackageConflict, s.Name)
	}
	s.started = time.Now()
	s.state = sessionRunning
	s.log.Infof("starting scan at %s", start)
	return s.enqueue(WorkItem{At: start, TickOffset: 0, SignalLength: defaultSignalStart, Propagate: true})
}

// Step processes every item queued when the step begins. Items enqueued
// during the step wait for the next one. Once a step finds the worklist
// empty the scan completes. Step reports whether the scan has ended.
func (s *Session) Step() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step()
}

func (s *Session) step() (bool, error) {
	if s.state != sessionRunning {
		return s.ended(), s.err
	}
	if s.worklist.Len() == 0 {
		s.complete()
		return true, s.err
	}
	s.steps++
	for _, item := range s.worklist.Snapshot() {
		if err := s.process(item); err != nil {
			s.fail(err)
			return true, s.err
		}
	}
	return false, nil
}

// Traverse runs the scan synchronously from start until it ends and returns
// the events in the order they were produced.
func (s *Session) Traverse(start Coordinate) ([]trace.EventRecord, error) {
	if err := s.Start(start); err != nil {
		return nil, err
	}
	for {
		done, err := s.Step()
		if err != nil {
			return s.trace.Events, err
		}
		if done {
			return s.trace.Events, nil
		}
	}
}

// Attach drives the session from sched, one step per period, and cancels
// the task once the scan ends.
func (s *Session) Attach(sched Scheduler) TaskHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sched = sched
	s.task = sched.RunPeriodic(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if done, _ := s.step(); done {
			s.detach()
		}
	}, 0, s.cfg.StepPeriod)
	s.attached = true
	return s.task
}

func (s *Session) detach() {
	if s.attached {
		s.sched.Cancel(s.task)
		s.attached = false
	}
}

// Cancel aborts a running scan. Buffered events are flushed before the
// canceled notification; no dispatch tree is built.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended() {
		return
	}
	s.detach()
	s.flush()
	s.state = sessionCanceled
	s.err = ErrCanceled
	s.log.Warnf("scan canceled after %d steps, %d items pending", s.steps, s.worklist.Len())
	if s.notifier != nil {
		s.notifier.ScanCanceled(s.summary())
	}
	close(s.done)
}

// Wait blocks until the scan ends or ctx is done; on ctx expiry the scan is canceled.
func (s *Session) Wait(ctx context.Context) (Summary, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		s.Cancel()
		<-s.done
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary(), s.err
}

// Done is closed when the scan has ended.
func (s *Session) Done() <-chan struct{} { return s.done }

// Root returns the dispatch tree root of a completed scan, or nil.
func (s *Session) Root() *Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// Trace returns the visit trace recorded so far.
func (s *Session) Trace() *trace.ScanTrace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trace
}

// Pending returns the number of queued work items.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.worklist.Len()
}

func (s *Session) ended() bool {
	return s.state == sessionComplete || s.state == sessionFailed || s.state == sessionCanceled
}

// enqueue accepts item unless its cell is empty or already consumed.
func (s *Session) enqueue(item WorkItem) error {
	if s.claimed[item.At] {
		return nil
	}
	kind, err := s.cells.Kind(item.At)
	if err != nil {
		return cellErr(item.At, err)
	}
	if kind == Air {
		return nil
	}
	s.worklist.Enqueue(item)
	s.trace.RecordEnqueue()
	return nil
}

func (s *Session) record(item WorkItem, kind ElementKind, action trace.Action) {
	s.trace.RecordVisit(trace.VisitRecord{
		Step:         s.steps,
		World:        item.At.World,
		X:            item.At.X,
		Y:            item.At.Y,
		Z:            item.At.Z,
		Kind:         kind.String(),
		TickOffset:   item.TickOffset,
		SignalLength: item.SignalLength,
		Action:       action,
	})
}

// process visits one dequeued item.
func (s *Session) process(item WorkItem) error {
	if s.claimed[item.At] {
		s.record(item, Air, trace.ActionClaimed)
		return nil
	}
	kind, err := s.cells.Kind(item.At)
	if err != nil {
		return cellErr(item.At, err)
	}
	behavior, ok := behaviorTable[kind]
	if kind == Air || !ok {
		s.record(item, kind, trace.ActionAir)
		return nil
	}

	out, err := behavior(&s.env, item, kind)
	if err != nil {
		if IsFatal(err) {
			return err
		}
		if !s.warned[item.At] {
			s.warned[item.At] = true
			s.log.Warnf("skipping %v", err)
		}
		s.record(item, kind, trace.ActionUnsupported)
		return nil
	}
	s.log.Debugf("[step %04d] %s %s -> %d next, %d events", s.steps, kind, item, len(out.Next), len(out.Events))

	if out.Consume {
		s.claimed[item.At] = true
		if err := s.cells.Clear(item.At); err != nil {
			return cellErr(item.At, err)
		}
		s.record(item, kind, trace.ActionConsumed)
	} else {
		s.record(item, kind, trace.ActionVisited)
	}
	for _, next := range out.Next {
		if err := s.enqueue(next); err != nil {
			return err
		}
	}
	for _, ev := range out.Events {
		s.events++
		s.trace.RecordEvent(trace.EventRecord{TickOffset: ev.TickOffset, Command: ev.Command})
		if err := s.buffer.Accept(ev); err != nil {
			return err
		}
	}
	return nil
}

// writeLeaf persists a flushed leaf, creating the package on first use.
func (s *Session) writeLeaf(leaf Leaf) error {
	if s.pkg == nil {
		exists, err := s.sink.Exists(s.Name)
		if err != nil {
			return sinkErr("check package", err)
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrPackageConflict, s.Name)
		}
		pkg, err := s.sink.CreateOrOpen(s.Name)
		if err != nil {
			return sinkErr("create package", err)
		}
		s.pkg = &pkg
	}
	if _, err := s.sink.WriteBatch(*s.pkg, s.Name, leaf.Name(), leaf.Lines(s.counter)); err != nil {
		return sinkErr("write "+leaf.Name(), err)
	}
	s.written[leaf.Name()] = true
	s.log.Debugf("wrote %s with %d commands", leaf.Name(), len(leaf.Events))
	return nil
}

// flush drains the event buffer, keeping the first write error.
func (s *Session) flush() {
	for _, leaf := range s.buffer.FlushAll() {
		if err := s.writeLeaf(leaf); err != nil && s.err == nil {
			s.err = err
		}
	}
}

// complete finishes a drained scan: final flush, dispatch tree, enable.
func (s *Session) complete() {
	s.flush()
	if s.err != nil {
		s.fail(s.err)
		return
	}
	if s.pkg != nil {
		builder := &DispatchBuilder{
			Sink:      s.sink,
			Package:   *s.pkg,
			Namespace: s.Name,
			Counter:   s.counter,
			Fanout:    s.cfg.Fanout,
			EntryName: s.cfg.EntryName,
		}
		root, err := builder.Compile()
		if err != nil {
			s.fail(err)
			return
		}
		s.root = root
		if root != nil {
			if err := s.sink.Enable(*s.pkg); err != nil {
				s.fail(sinkErr("enable package", err))
				return
			}
		}
	}
	s.state = sessionComplete
	s.log.Infof("scan finished: %d steps, %d events, %d leaves", s.steps, s.events, len(s.written))
	if s.notifier != nil {
		s.notifier.ScanComplete(s.summary())
	}
	close(s.done)
}

// fail ends the scan on a fatal error. The buffer is still flushed so no
// events are left dangling, but the package is never enabled.
func (s *Session) fail(err error) {
	s.err = err
	for _, leaf := range s.buffer.FlushAll() {
		if werr := s.writeLeaf(leaf); werr != nil {
			s.log.Errorf("flush after failure: %v", werr)
		}
	}
	s.state = sessionFailed
	s.log.Errorf("scan failed: %v", err)
	if s.notifier != nil {
		s.notifier.ScanFailed(s.summary(), err)
	}
	close(s.done)
}

func (s *Session) summary() Summary {
	sum := Summary{
		ScanID:  s.ID.String(),
		Package: s.Name,
		Steps:   s.steps,
		Visits:  len(s.trace.Visits),
		Events:  s.events,
		Leaves:  len(s.written),
	}
	if !s.started.IsZero() {
		sum.Duration = time.Since(s.started)
	}
	if s.root != nil {
		sum.Root = s.root.Name
		sum.Depth = s.root.Depth()
	}
	return sum
}
