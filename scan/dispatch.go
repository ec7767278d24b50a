package scan

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// Node is a batch in the dispatch tree.
type Node struct {
	Kind     BatchKind
	Name     string
	Interval Interval
	Children []*Node
}

// Depth is the number of guarded calls between n and its deepest leaf.
func (n *Node) Depth() int {
	d := 0
	for _, c := range n.Children {
		d = max(d, c.Depth()+1)
	}
	return d
}

// Leaves returns the leaf nodes under n in tree order.
func (n *Node) Leaves() []*Node {
	if n.Kind == LeafBatch {
		return []*Node{n}
	}
	var out []*Node
	for _, c := range n.Children {
		out = append(out, c.Leaves()...)
	}
	return out
}

// nodeLess orders leaves before selectors, then by interval start, then
// narrower intervals first.
func nodeLess(a, b *Node) bool {
	if a.Kind != b.Kind {
		return a.Kind == LeafBatch
	}
	if a.Interval.First != b.Interval.First {
		return a.Interval.First < b.Interval.First
	}
	if a.Interval.Span() != b.Interval.Span() {
		return a.Interval.Span() < b.Interval.Span()
	}
	return a.Name < b.Name
}

func sortFloor(floor []*Node) {
	sort.SliceStable(floor, func(i, j int) bool { return nodeLess(floor[i], floor[j]) })
}

// DispatchBuilder folds the leaves of a package into a dispatch tree with
// at most Fanout children per selector.
type DispatchBuilder struct {
	Sink      PackageSink
	Package   PackageHandle
	Namespace string
	Counter   Counter
	Fanout    int
	EntryName string

	used map[string]bool
}

// RootName is the entry-point batch name for a tree covering iv.
func RootName(entry string, iv Interval) string {
	return fmt.Sprintf("%s_%d_%d", entry, iv.First, iv.Last)
}

// Compile reads every leaf from the sink and builds the tree floor by floor.
// It returns a nil root when the package holds no leaves.
func (d *DispatchBuilder) Compile() (*Node, error) {
	if d.Fanout < minimumFanout {
		return nil, fmt.Errorf("dispatch fanout must be at least %d, got %d", minimumFanout, d.Fanout)
	}
	handles, err := d.Sink.ListLeaves(d.Package, d.Namespace)
	if err != nil {
		return nil, sinkErr("list leaves", err)
	}
	if len(handles) == 0 {
		return nil, nil
	}

	d.used = make(map[string]bool, len(handles))
	floor := make([]*Node, 0, len(handles))
	for _, h := range handles {
		kind, iv, ok := ParseBatchName(h.Name)
		if !ok || kind != LeafBatch {
			return nil, fmt.Errorf("%w: %q is not a leaf batch name", ErrSinkIO, h.Name)
		}
		d.used[h.Name] = true
		floor = append(floor, &Node{Kind: LeafBatch, Name: h.Name, Interval: iv})
	}
	sortFloor(floor)

	level := 0
	for len(floor) > 1 {
		level++
		next := make([]*Node, 0, (len(floor)+d.Fanout-1)/d.Fanout)
		for i := 0; i < len(floor); i += d.Fanout {
			group := floor[i:min(i+d.Fanout, len(floor))]
			if len(group) == 1 {
				// A lone trailing node moves up unchanged.
				next = append(next, group[0])
				continue
			}
			sel, err := d.selector(group)
			if err != nil {
				return nil, err
			}
			next = append(next, sel)
		}
		sortFloor(next)
		logrus.Debugf("dispatch floor %d: %d nodes", level, len(next))
		floor = next
	}
	return d.promote(floor[0])
}

// selector writes a selector batch routing to each node of group.
func (d *DispatchBuilder) selector(group []*Node) (*Node, error) {
	iv := group[0].Interval
	for _, n := range group[1:] {
		iv = iv.Union(n.Interval)
	}
	sel := &Node{Kind: SelectorBatch, Interval: iv, Children: append([]*Node(nil), group...)}
	sel.Name = d.uniqueName(BatchName(SelectorBatch, iv))

	lines := make([]string, 0, len(group))
	for _, child := range group {
		lines = append(lines, d.Counter.SelectorLine(child.Interval, d.Namespace, child.Name))
	}
	if _, err := d.Sink.WriteBatch(d.Package, d.Namespace, sel.Name, lines); err != nil {
		return nil, sinkErr("write selector "+sel.Name, err)
	}
	return sel, nil
}

// promote renames the last remaining node to the entry point and appends the
// counter increment.
func (d *DispatchBuilder) promote(n *Node) (*Node, error) {
	name := RootName(d.EntryName, n.Interval)
	h, err := d.Sink.Rename(BatchHandle{Package: d.Package.Name, Namespace: d.Namespace, Name: n.Name}, name)
	if err != nil {
		return nil, sinkErr("rename root", err)
	}
	if _, err := d.Sink.WriteBatch(d.Package, d.Namespace, h.Name, []string{d.Counter.IncrementLine()}); err != nil {
		return nil, sinkErr("write counter increment", err)
	}
	n.Name = h.Name
	logrus.Infof("dispatch tree rooted at %s:%s, depth %d", d.Namespace, n.Name, n.Depth())
	return n, nil
}

func (d *DispatchBuilder) uniqueName(base string) string {
	name := base
	for i := 2; d.used[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	d.used[name] = true
	return name
}
