package scan

import (
	"fmt"
	"strconv"
	"strings"
)

// Interval is an inclusive tick range.
type Interval struct {
	First, Last int
}

// Covers reports whether other lies entirely inside iv.
func (iv Interval) Covers(other Interval) bool {
	return iv.First <= other.First && other.Last <= iv.Last
}

// Span is the number of ticks in iv.
func (iv Interval) Span() int { return iv.Last - iv.First + 1 }

// Union returns the smallest interval covering iv and other.
func (iv Interval) Union(other Interval) Interval {
	return Interval{First: min(iv.First, other.First), Last: max(iv.Last, other.Last)}
}

func (iv Interval) String() string { return fmt.Sprintf("[%d,%d]", iv.First, iv.Last) }

// BatchKind distinguishes leaves from selectors.
type BatchKind int

const (
	LeafBatch BatchKind = iota
	SelectorBatch
)

// Batch name prefixes.
const (
	leafPrefix     = "leaf"
	selectorPrefix = "sel"
)

func (k BatchKind) prefix() string {
	if k == SelectorBatch {
		return selectorPrefix
	}
	return leafPrefix
}

// BatchName returns "<prefix>_<first>_<last>" for a batch of kind k.
func BatchName(k BatchKind, iv Interval) string {
	return fmt.Sprintf("%s_%d_%d", k.prefix(), iv.First, iv.Last)
}

// ParseBatchName recovers the kind and interval from a leaf or selector name.
// Names carrying a disambiguation suffix ("sel_0_9_2") parse to the same interval.
func ParseBatchName(name string) (BatchKind, Interval, bool) {
	parts := strings.Split(name, "_")
	if len(parts) < 3 {
		return LeafBatch, Interval{}, false
	}
	var kind BatchKind
	switch parts[0] {
	case leafPrefix:
		kind = LeafBatch
	case selectorPrefix:
		kind = SelectorBatch
	default:
		return LeafBatch, Interval{}, false
	}
	first, err1 := strconv.Atoi(parts[1])
	last, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || last < first {
		return LeafBatch, Interval{}, false
	}
	return kind, Interval{First: first, Last: last}, true
}

// Leaf is a flushed window of events, ordered by tick.
type Leaf struct {
	Interval Interval
	Events   []Event
}

// Name is the leaf's batch name.
func (l Leaf) Name() string { return BatchName(LeafBatch, l.Interval) }

// Counter identifies the scoreboard value the dispatch tree guards against.
type Counter struct {
	Holder    string
	Objective string
}

// executeClauses are the execute sub-commands that can follow a guard
// without an intervening "run".
var executeClauses = map[string]bool{
	"align": true, "anchored": true, "as": true, "at": true, "facing": true,
	"if": true, "in": true, "on": true, "positioned": true, "rotated": true,
	"store": true, "summon": true, "unless": true,
}

func (c Counter) guard(matches string, command string) string {
	head, _, _ := strings.Cut(command, " ")
	tail := "run " + command
	if executeClauses[head] {
		tail = command
	}
	return fmt.Sprintf("execute if score %s %s matches %s %s", c.Holder, c.Objective, matches, tail)
}

// LeafLine guards command so it runs only when the counter equals tick.
func (c Counter) LeafLine(tick int, command string) string {
	return c.guard(strconv.Itoa(tick), command)
}

// SelectorLine guards a call to namespace:child on the counter lying in iv.
func (c Counter) SelectorLine(iv Interval, namespace, child string) string {
	return c.guard(fmt.Sprintf("%d..%d", iv.First, iv.Last), fmt.Sprintf("function %s:%s", namespace, child))
}

// IncrementLine advances the counter by one.
func (c Counter) IncrementLine() string {
	return fmt.Sprintf("scoreboard players add %s %s 1", c.Holder, c.Objective)
}

// Lines renders the leaf's events as guarded commands.
func (l Leaf) Lines(c Counter) []string {
	lines := make([]string, 0, len(l.Events))
	for _, ev := range l.Events {
		lines = append(lines, c.LeafLine(ev.TickOffset, ev.Command))
	}
	return lines
}

// PackageHandle refers to a created or opened package.
type PackageHandle struct {
	Name string
}

// BatchHandle refers to a persisted batch.
type BatchHandle struct {
	Package   string
	Namespace string
	Name      string
}

// PackageSink persists batches under a namespaced package.
// Writing a batch whose name already exists appends to it.
type PackageSink interface {
	Exists(name string) (bool, error)
	CreateOrOpen(name string) (PackageHandle, error)
	WriteBatch(pkg PackageHandle, namespace, batch string, lines []string) (BatchHandle, error)
	Rename(b BatchHandle, newName string) (BatchHandle, error)
	ListLeaves(pkg PackageHandle, namespace string) ([]BatchHandle, error)
	Enable(pkg PackageHandle) error
}
