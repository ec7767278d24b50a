package scan

import "fmt"

// Coordinate is a cell position inside a named world.
type Coordinate struct {
	World   string
	X, Y, Z int
}

// At returns the coordinate (x, y, z) in world.
func At(world string, x, y, z int) Coordinate {
	return Coordinate{World: world, X: x, Y: y, Z: z}
}

// Add returns c shifted by (dx, dy, dz).
func (c Coordinate) Add(dx, dy, dz int) Coordinate {
	return Coordinate{World: c.World, X: c.X + dx, Y: c.Y + dy, Z: c.Z + dz}
}

// Offset returns c shifted by the unit vector v.
func (c Coordinate) Offset(v Vector) Coordinate {
	return c.Add(v.X, v.Y, v.Z)
}

// Below returns the cell directly underneath c.
func (c Coordinate) Below() Coordinate { return c.Add(0, -1, 0) }

// Above returns the cell directly on top of c.
func (c Coordinate) Above() Coordinate { return c.Add(0, 1, 0) }

// Orthogonal returns the six face-adjacent neighbors of c in a fixed order:
// -x, +x, +y, -y, +z, -z.
func (c Coordinate) Orthogonal() [6]Coordinate {
	return [6]Coordinate{
		c.Add(-1, 0, 0),
		c.Add(1, 0, 0),
		c.Add(0, 1, 0),
		c.Add(0, -1, 0),
		c.Add(0, 0, 1),
		c.Add(0, 0, -1),
	}
}

func (c Coordinate) String() string {
	if c.World == "" {
		return fmt.Sprintf("(%d %d %d)", c.X, c.Y, c.Z)
	}
	return fmt.Sprintf("%s(%d %d %d)", c.World, c.X, c.Y, c.Z)
}

// Vector is a unit step along one axis.
type Vector struct {
	X, Y, Z int
}

// Negate flips the direction of v.
func (v Vector) Negate() Vector { return Vector{X: -v.X, Y: -v.Y, Z: -v.Z} }

// directions maps block-state side and facing names to unit vectors.
var directions = map[string]Vector{
	"east":  {X: 1},
	"west":  {X: -1},
	"south": {Z: 1},
	"north": {Z: -1},
	"up":    {Y: 1},
	"down":  {Y: -1},
}

// lateralSides are the wire connection sides, iterated in this order.
var lateralSides = []string{"north", "east", "south", "west"}

// Direction resolves a side or facing name to its unit vector.
func Direction(name string) (Vector, bool) {
	v, ok := directions[name]
	return v, ok
}
