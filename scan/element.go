package scan

import (
	"fmt"
	"strconv"
	"strings"
)

// ElementKind classifies a grid cell for traversal purposes.
// Kinds are resolved from the CellAccessor on every visit and never cached,
// because traversal clears cells as it consumes them.
type ElementKind int

const (
	Air ElementKind = iota
	OccludingSolid
	NonOccludingSolid
	Wire
	Repeater
	UnsupportedGate
	TriggerOneShot
	TriggerRepeating
	TriggerChained
)

var kindNames = map[ElementKind]string{
	Air:               "air",
	OccludingSolid:    "solid",
	NonOccludingSolid: "transparent",
	Wire:              "wire",
	Repeater:          "repeater",
	UnsupportedGate:   "comparator",
	TriggerOneShot:    "command_block",
	TriggerRepeating:  "repeating_command_block",
	TriggerChained:    "chain_command_block",
}

// kindsByName is the inverse of kindNames, used when decoding world documents.
var kindsByName = func() map[string]ElementKind {
	m := make(map[string]ElementKind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

func (k ElementKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("ElementKind(%d)", int(k))
}

// ParseElementKind resolves a world-document kind name.
func ParseElementKind(name string) (ElementKind, error) {
	k, ok := kindsByName[name]
	if !ok {
		return Air, fmt.Errorf("unknown element kind %q, want one of %s", name, strings.Join(ElementKindNames(), ", "))
	}
	return k, nil
}

// ElementKindNames lists every recognized kind name.
func ElementKindNames() []string {
	names := make([]string, 0, len(kindNames))
	for k := Air; k <= TriggerChained; k++ {
		names = append(names, kindNames[k])
	}
	return names
}

// Attribute names read by the behavior table.
const (
	AttrFacing  = "facing"
	AttrDelay   = "delay"
	AttrLocked  = "locked"
	AttrPower   = "power"
	AttrCommand = "command"
	AttrBlock   = "block"
)

// Wire side connection states.
const (
	ConnNone = "none"
	ConnSide = "side"
	ConnUp   = "up"
)

// Attributes is the block-state mapping of a single cell.
type Attributes map[string]string

// Require returns the named attribute or a contract error when it is absent.
func (a Attributes) Require(name string) (string, error) {
	v, ok := a[name]
	if !ok {
		return "", fmt.Errorf("%w: missing attribute %q", ErrContract, name)
	}
	return v, nil
}

// RequireInt returns the named attribute parsed as an integer.
func (a Attributes) RequireInt(name string) (int, error) {
	v, err := a.Require(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: attribute %q=%q is not an integer", ErrContract, name, v)
	}
	return n, nil
}

// RequireDirection returns the named attribute resolved to a unit vector.
func (a Attributes) RequireDirection(name string) (Vector, error) {
	v, err := a.Require(name)
	if err != nil {
		return Vector{}, err
	}
	dir, ok := Direction(v)
	if !ok {
		return Vector{}, fmt.Errorf("%w: attribute %q=%q is not a direction", ErrContract, name, v)
	}
	return dir, nil
}

// CellAccessor is the grid capability the engine runs against.
// A single scan is the only writer for the duration of its traversal.
type CellAccessor interface {
	Kind(c Coordinate) (ElementKind, error)
	Attributes(c Coordinate) (Attributes, error)
	Clear(c Coordinate) error
}
