package scan

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Outcome is what visiting one cell produces.
type Outcome struct {
	Next    []WorkItem
	Events  []Event
	Consume bool
}

// behaviorEnv is the read side a behavior may consult: neighbor kinds and
// attributes, plus the sound rewriting settings and the scan's logger.
type behaviorEnv struct {
	cells    CellAccessor
	sounds   *SoundRegistry
	listener string
	log      *logrus.Entry
}

// Behavior maps a visited cell to its outcome.
type Behavior func(env *behaviorEnv, item WorkItem, kind ElementKind) (Outcome, error)

// behaviorTable holds one behavior per non-air element kind.
var behaviorTable = map[ElementKind]Behavior{
	OccludingSolid:    visitSolid,
	NonOccludingSolid: visitInert,
	Wire:              visitWire,
	Repeater:          visitRepeater,
	UnsupportedGate:   visitUnsupported,
	TriggerOneShot:    visitTrigger,
	TriggerRepeating:  visitTrigger,
	TriggerChained:    visitTrigger,
}

// repeaterFloor is the minimum signal length a repeater stretches to, by delay.
var repeaterFloor = map[int]int{1: 2, 2: 4, 3: 6, 4: 8}

// RepeaterSignalLength returns the signal length leaving a repeater with the
// given delay. Lengths only ever grow.
func RepeaterSignalLength(length, delay int) int {
	return max(length, repeaterFloor[delay])
}

func (env *behaviorEnv) kind(c Coordinate) (ElementKind, error) {
	k, err := env.cells.Kind(c)
	if err != nil {
		return Air, cellErr(c, err)
	}
	return k, nil
}

func (env *behaviorEnv) attributes(c Coordinate) (Attributes, error) {
	a, err := env.cells.Attributes(c)
	if err != nil {
		return nil, cellErr(c, err)
	}
	return a, nil
}

func visitInert(*behaviorEnv, WorkItem, ElementKind) (Outcome, error) {
	return Outcome{}, nil
}

// visitSolid powers the face neighbors of a block reached by a wire or repeater.
// Chained triggers are left out; only their owning trigger may run them.
func visitSolid(env *behaviorEnv, item WorkItem, _ ElementKind) (Outcome, error) {
	if !item.Propagate {
		return Outcome{}, nil
	}
	length := item.SignalLength
	short, err := env.shortenedBelow(item.At)
	if err != nil {
		return Outcome{}, err
	}
	if short {
		length = 1
	}

	out := Outcome{Consume: true}
	for _, n := range item.At.Orthogonal() {
		k, err := env.kind(n)
		if err != nil {
			return Outcome{}, err
		}
		if k == TriggerChained {
			continue
		}
		out.Next = append(out.Next, WorkItem{At: n, TickOffset: item.TickOffset, SignalLength: length})
	}
	return out, nil
}

// shortenedBelow reports whether the block at c rests on an upward-facing
// sticky piston, which cuts the passing signal to a single tick.
func (env *behaviorEnv) shortenedBelow(c Coordinate) (bool, error) {
	below := c.Below()
	k, err := env.kind(below)
	if err != nil || k == Air {
		return false, err
	}
	attrs, err := env.attributes(below)
	if err != nil {
		return false, err
	}
	return attrs[AttrBlock] == "sticky_piston" && attrs[AttrFacing] == "up", nil
}

// visitWire powers the block underneath and every connected side. The power
// attribute is not consulted.
func visitWire(env *behaviorEnv, item WorkItem, _ ElementKind) (Outcome, error) {
	attrs, err := env.attributes(item.At)
	if err != nil {
		return Outcome{}, err
	}
	support, err := env.kind(item.At.Below())
	if err != nil {
		return Outcome{}, err
	}

	next := func(c Coordinate) WorkItem {
		return WorkItem{At: c, TickOffset: item.TickOffset, SignalLength: item.SignalLength, Propagate: true}
	}
	out := Outcome{Consume: true}
	out.Next = append(out.Next, next(item.At.Below()))
	for _, side := range lateralSides {
		conn, err := attrs.Require(side)
		if err != nil {
			return Outcome{}, err
		}
		dir, _ := Direction(side)
		neighbor := item.At.Offset(dir)
		switch conn {
		case ConnNone:
		case ConnSide:
			out.Next = append(out.Next, next(neighbor))
			if support == OccludingSolid {
				out.Next = append(out.Next, next(neighbor.Below()))
			}
		case ConnUp:
			out.Next = append(out.Next, next(neighbor.Above()))
		default:
			return Outcome{}, fmt.Errorf("%w: wire side %s=%q", ErrContract, side, conn)
		}
	}
	return out, nil
}

// visitRepeater delays the signal by two ticks per delay step and stretches it.
// A repeater's facing names its input side, so the output is the opposite cell.
func visitRepeater(env *behaviorEnv, item WorkItem, _ ElementKind) (Outcome, error) {
	attrs, err := env.attributes(item.At)
	if err != nil {
		return Outcome{}, err
	}
	locked, err := attrs.Require(AttrLocked)
	if err != nil {
		return Outcome{}, err
	}
	if locked == "true" {
		return Outcome{Consume: true}, nil
	}
	facing, err := attrs.RequireDirection(AttrFacing)
	if err != nil {
		return Outcome{}, err
	}
	delay, err := attrs.RequireInt(AttrDelay)
	if err != nil {
		return Outcome{}, err
	}
	if _, ok := repeaterFloor[delay]; !ok {
		return Outcome{}, fmt.Errorf("%w: repeater delay %d outside 1..4", ErrContract, delay)
	}
	return Outcome{
		Consume: true,
		Next: []WorkItem{{
			At:           item.At.Offset(facing.Negate()),
			TickOffset:   item.TickOffset + 2*delay,
			SignalLength: RepeaterSignalLength(item.SignalLength, delay),
			Propagate:    true,
		}},
	}, nil
}

func visitUnsupported(_ *behaviorEnv, item WorkItem, kind ElementKind) (Outcome, error) {
	return Outcome{}, fmt.Errorf("%w: %s at %s", ErrUnsupportedElement, kind, item.At)
}

// visitTrigger runs a command-holding element: it continues into a chained
// trigger ahead of it and interprets the command idiom.
func visitTrigger(env *behaviorEnv, item WorkItem, kind ElementKind) (Outcome, error) {
	attrs, err := env.attributes(item.At)
	if err != nil {
		return Outcome{}, err
	}
	command, err := attrs.Require(AttrCommand)
	if err != nil {
		return Outcome{}, err
	}
	facing, err := attrs.RequireDirection(AttrFacing)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Consume: true}
	ahead := item.At.Offset(facing)
	aheadKind, err := env.kind(ahead)
	if err != nil {
		return Outcome{}, err
	}
	if aheadKind == TriggerChained {
		out.Next = append(out.Next, WorkItem{At: ahead, TickOffset: item.TickOffset, SignalLength: item.SignalLength})
	}

	idiom, err := ClassifyCommand(command, item.At)
	if err != nil {
		return Outcome{}, err
	}
	switch idiom.Kind {
	case SliderStart, SliderMiddle:
		out.Next = append(out.Next, sliderSeeds(idiom.Target, item.TickOffset+1, true)...)
	case SliderEnd:
		out.Next = append(out.Next, sliderSeeds(idiom.Target, item.TickOffset+1, false)...)
	case SoundEmission:
		text := env.sounds.Rewrite(idiom.Sound, env.listener)
		if kind == TriggerRepeating {
			for i := 0; i < item.SignalLength; i++ {
				out.Events = append(out.Events, Event{TickOffset: item.TickOffset + i, Command: text})
			}
		} else {
			out.Events = append(out.Events, Event{TickOffset: item.TickOffset, Command: text})
		}
	default:
		if cmd := NormalizeCommand(command); strings.HasPrefix(cmd, "say") {
			env.log.Debugf("%s at tick %d with length %d", cmd, item.TickOffset, item.SignalLength)
		}
	}
	return out, nil
}

// sliderSeeds powers the face neighbors of a slider target one tick later.
// The cell below carries the slider on and is seeded first, only when below is set.
func sliderSeeds(target Coordinate, tick int, below bool) []WorkItem {
	seeds := make([]WorkItem, 0, 6)
	if below {
		seeds = append(seeds, WorkItem{At: target.Below(), TickOffset: tick, SignalLength: 1})
	}
	for _, n := range target.Orthogonal() {
		if n == target.Below() {
			continue
		}
		seeds = append(seeds, WorkItem{At: n, TickOffset: tick, SignalLength: 1})
	}
	return seeds
}
