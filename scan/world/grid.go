// Package world provides cell accessors for scans: an in-memory grid loaded
// from a world document and a SQLite-backed grid for large builds.
package world

import (
	"fmt"
	"maps"
	"sort"

	"github.com/redstone-tools/tickpack/scan"
)

// Cell is the stored state of one non-air position.
type Cell struct {
	Kind  scan.ElementKind
	Attrs scan.Attributes
}

type key struct{ x, y, z int }

// Grid is a map-backed cell accessor for a single world. Absent cells are air.
type Grid struct {
	world  string
	cells  map[key]Cell
	clears map[key]int
}

// NewGrid creates an empty grid for world.
func NewGrid(world string) *Grid {
	return &Grid{world: world, cells: make(map[key]Cell), clears: make(map[key]int)}
}

// World returns the grid's world identifier.
func (g *Grid) World() string { return g.world }

// At returns a coordinate in this grid's world.
func (g *Grid) At(x, y, z int) scan.Coordinate { return scan.At(g.world, x, y, z) }

// Set stores a cell; setting scan.Air removes it.
func (g *Grid) Set(x, y, z int, kind scan.ElementKind, attrs scan.Attributes) {
	k := key{x, y, z}
	if kind == scan.Air {
		delete(g.cells, k)
		return
	}
	g.cells[k] = Cell{Kind: kind, Attrs: maps.Clone(attrs)}
}

func (g *Grid) check(c scan.Coordinate) error {
	if c.World != g.world {
		return fmt.Errorf("coordinate %s is outside world %q", c, g.world)
	}
	return nil
}

// Kind implements scan.CellAccessor.
func (g *Grid) Kind(c scan.Coordinate) (scan.ElementKind, error) {
	if err := g.check(c); err != nil {
		return scan.Air, err
	}
	return g.cells[key{c.X, c.Y, c.Z}].Kind, nil
}

// Attributes implements scan.CellAccessor. The returned map is a copy.
func (g *Grid) Attributes(c scan.Coordinate) (scan.Attributes, error) {
	if err := g.check(c); err != nil {
		return nil, err
	}
	cell, ok := g.cells[key{c.X, c.Y, c.Z}]
	if !ok {
		return scan.Attributes{}, nil
	}
	return maps.Clone(cell.Attrs), nil
}

// Clear implements scan.CellAccessor.
func (g *Grid) Clear(c scan.Coordinate) error {
	if err := g.check(c); err != nil {
		return err
	}
	k := key{c.X, c.Y, c.Z}
	delete(g.cells, k)
	g.clears[k]++
	return nil
}

// Clears returns how many times c was cleared.
func (g *Grid) Clears(c scan.Coordinate) int {
	return g.clears[key{c.X, c.Y, c.Z}]
}

// Len returns the number of non-air cells.
func (g *Grid) Len() int { return len(g.cells) }

// Each calls fn for every non-air cell in x, y, z order.
func (g *Grid) Each(fn func(c scan.Coordinate, cell Cell)) {
	keys := make([]key, 0, len(g.cells))
	for k := range g.cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.x != b.x {
			return a.x < b.x
		}
		if a.y != b.y {
			return a.y < b.y
		}
		return a.z < b.z
	})
	for _, k := range keys {
		fn(scan.At(g.world, k.x, k.y, k.z), g.cells[k])
	}
}
