package pack

import (
	"fmt"
	"sort"
	"sync"

	"github.com/redstone-tools/tickpack/scan"
)

// MemoryPackage is one package held by a Memory sink.
type MemoryPackage struct {
	Name       string
	Enabled    bool
	Namespaces map[string]map[string][]string
}

// Memory is an in-process package sink, used by tests and dry runs.
type Memory struct {
	mu       sync.Mutex
	packages map[string]*MemoryPackage
	// WriteErr, when set, is returned by every WriteBatch call.
	WriteErr error
}

// NewMemory returns an empty sink.
func NewMemory() *Memory {
	return &Memory{packages: make(map[string]*MemoryPackage)}
}

// Exists implements scan.PackageSink.
func (m *Memory) Exists(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.packages[name]
	return ok, nil
}

// CreateOrOpen implements scan.PackageSink.
func (m *Memory) CreateOrOpen(name string) (scan.PackageHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.packages[name]; !ok {
		m.packages[name] = &MemoryPackage{Name: name, Namespaces: make(map[string]map[string][]string)}
	}
	return scan.PackageHandle{Name: name}, nil
}

// WriteBatch implements scan.PackageSink.
func (m *Memory) WriteBatch(pkg scan.PackageHandle, namespace, batch string, lines []string) (scan.BatchHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return scan.BatchHandle{}, m.WriteErr
	}
	p, ok := m.packages[pkg.Name]
	if !ok {
		return scan.BatchHandle{}, fmt.Errorf("package %s not created", pkg.Name)
	}
	ns := p.Namespaces[namespace]
	if ns == nil {
		ns = make(map[string][]string)
		p.Namespaces[namespace] = ns
	}
	ns[batch] = append(ns[batch], lines...)
	return scan.BatchHandle{Package: pkg.Name, Namespace: namespace, Name: batch}, nil
}

// Rename implements scan.PackageSink.
func (m *Memory) Rename(b scan.BatchHandle, newName string) (scan.BatchHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packages[b.Package]
	if !ok {
		return scan.BatchHandle{}, fmt.Errorf("package %s not created", b.Package)
	}
	ns := p.Namespaces[b.Namespace]
	lines, ok := ns[b.Name]
	if !ok {
		return scan.BatchHandle{}, fmt.Errorf("batch %s not found", b.Name)
	}
	if _, taken := ns[newName]; taken {
		return scan.BatchHandle{}, fmt.Errorf("batch %s already exists", newName)
	}
	delete(ns, b.Name)
	ns[newName] = lines
	return scan.BatchHandle{Package: b.Package, Namespace: b.Namespace, Name: newName}, nil
}

// ListLeaves implements scan.PackageSink.
func (m *Memory) ListLeaves(pkg scan.PackageHandle, namespace string) ([]scan.BatchHandle, error) {
	var leaves []scan.BatchHandle
	for _, name := range m.Batches(pkg.Name, namespace) {
		if kind, _, ok := scan.ParseBatchName(name); ok && kind == scan.LeafBatch {
			leaves = append(leaves, scan.BatchHandle{Package: pkg.Name, Namespace: namespace, Name: name})
		}
	}
	return leaves, nil
}

// Enable implements scan.PackageSink.
func (m *Memory) Enable(pkg scan.PackageHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packages[pkg.Name]
	if !ok {
		return fmt.Errorf("package %s not created", pkg.Name)
	}
	p.Enabled = true
	return nil
}

// Package returns the stored package, or nil.
func (m *Memory) Package(name string) *MemoryPackage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.packages[name]
}

// Batches lists batch names in a namespace, sorted.
func (m *Memory) Batches(pkg, namespace string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packages[pkg]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(p.Namespaces[namespace]))
	for name := range p.Namespaces[namespace] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lines returns a copy of one batch's lines.
func (m *Memory) Lines(pkg, namespace, batch string) ([]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packages[pkg]
	if !ok {
		return nil, false
	}
	lines, ok := p.Namespaces[namespace][batch]
	return append([]string(nil), lines...), ok
}
