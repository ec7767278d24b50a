package pack

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/redstone-tools/tickpack/scan"
)

const (
	functionExt = ".mcfunction"
	metaFile    = "pack.mcmeta"
	packFormat  = 9
)

// Dir is a package sink writing datapacks under Root:
//
//	<Root>/<pkg>/pack.mcmeta
//	<Root>/<pkg>/data/<namespace>/functions/<batch>.mcfunction
type Dir struct {
	Root        string
	Description string
	// OnEnable, when set, runs after a package is complete (for example to
	// trigger a server reload).
	OnEnable func(pkg string) error
}

// NewDir returns a sink rooted at root.
func NewDir(root string) *Dir {
	return &Dir{Root: root, Description: "Music datapack compiled by tickpack"}
}

func (d *Dir) packagePath(name string) string { return filepath.Join(d.Root, name) }

func (d *Dir) functionsPath(pkg, namespace string) string {
	return filepath.Join(d.Root, pkg, "data", namespace, "functions")
}

// Exists implements scan.PackageSink.
func (d *Dir) Exists(name string) (bool, error) {
	_, err := os.Stat(d.packagePath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// CreateOrOpen implements scan.PackageSink.
func (d *Dir) CreateOrOpen(name string) (scan.PackageHandle, error) {
	path := d.packagePath(name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return scan.PackageHandle{}, fmt.Errorf("creating package %s: %w", name, err)
	}
	meta := filepath.Join(path, metaFile)
	if _, err := os.Stat(meta); errors.Is(err, fs.ErrNotExist) {
		content := fmt.Sprintf("{\n    \"pack\": {\n        \"description\": %q,\n        \"pack_format\": %d\n    }\n}\n",
			d.Description, packFormat)
		if err := os.WriteFile(meta, []byte(content), 0o644); err != nil {
			return scan.PackageHandle{}, fmt.Errorf("writing %s: %w", metaFile, err)
		}
	}
	return scan.PackageHandle{Name: name}, nil
}

// WriteBatch implements scan.PackageSink. Lines are appended when the batch exists.
func (d *Dir) WriteBatch(pkg scan.PackageHandle, namespace, batch string, lines []string) (scan.BatchHandle, error) {
	dir := d.functionsPath(pkg.Name, namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return scan.BatchHandle{}, err
	}
	f, err := os.OpenFile(filepath.Join(dir, batch+functionExt), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return scan.BatchHandle{}, err
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		_, _ = w.WriteString(line)
		_ = w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return scan.BatchHandle{}, err
	}
	if err := f.Close(); err != nil {
		return scan.BatchHandle{}, err
	}
	return scan.BatchHandle{Package: pkg.Name, Namespace: namespace, Name: batch}, nil
}

// Rename implements scan.PackageSink. Renaming onto an existing batch fails.
func (d *Dir) Rename(b scan.BatchHandle, newName string) (scan.BatchHandle, error) {
	dir := d.functionsPath(b.Package, b.Namespace)
	to := filepath.Join(dir, newName+functionExt)
	if _, err := os.Stat(to); err == nil {
		return scan.BatchHandle{}, fmt.Errorf("batch %s already exists", newName)
	}
	if err := os.Rename(filepath.Join(dir, b.Name+functionExt), to); err != nil {
		return scan.BatchHandle{}, err
	}
	return scan.BatchHandle{Package: b.Package, Namespace: b.Namespace, Name: newName}, nil
}

// ListLeaves implements scan.PackageSink.
func (d *Dir) ListLeaves(pkg scan.PackageHandle, namespace string) ([]scan.BatchHandle, error) {
	names, err := d.Batches(pkg.Name, namespace)
	if err != nil {
		return nil, err
	}
	var leaves []scan.BatchHandle
	for _, name := range names {
		if kind, _, ok := scan.ParseBatchName(name); ok && kind == scan.LeafBatch {
			leaves = append(leaves, scan.BatchHandle{Package: pkg.Name, Namespace: namespace, Name: name})
		}
	}
	return leaves, nil
}

// Batches lists every batch name in a namespace, sorted.
func (d *Dir) Batches(pkg, namespace string) ([]string, error) {
	entries, err := os.ReadDir(d.functionsPath(pkg, namespace))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), functionExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), functionExt))
	}
	sort.Strings(names)
	return names, nil
}

// ReadBatch returns the lines of one batch.
func (d *Dir) ReadBatch(pkg, namespace, batch string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(d.functionsPath(pkg, namespace), batch+functionExt))
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n"), nil
}

// Enable implements scan.PackageSink.
func (d *Dir) Enable(pkg scan.PackageHandle) error {
	logrus.Infof("datapack %s written to %s", pkg.Name, d.packagePath(pkg.Name))
	if d.OnEnable != nil {
		return d.OnEnable(pkg.Name)
	}
	return nil
}
