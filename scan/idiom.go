package scan

import (
	"strconv"
	"strings"
)

// IdiomKind is the closed set of trigger command shapes the engine understands.
type IdiomKind int

const (
	Unrecognized IdiomKind = iota
	SliderStart
	SliderMiddle
	SliderEnd
	SoundEmission
)

func (k IdiomKind) String() string {
	switch k {
	case SliderStart:
		return "slider-start"
	case SliderMiddle:
		return "slider-middle"
	case SliderEnd:
		return "slider-end"
	case SoundEmission:
		return "sound"
	default:
		return "unrecognized"
	}
}

// Idiom is a classified trigger command with its typed fields.
// Target is set for the slider kinds, Sound for SoundEmission.
type Idiom struct {
	Kind   IdiomKind
	Target Coordinate
	Sound  SoundCommand
}

// SoundCommand holds the parts of a playsound command that survive rewriting.
type SoundCommand struct {
	Effect   string
	Trailing []string // volume and pitch, when present
}

// cloneDestination is the token index of the destination x in
// "clone <x1> <y1> <z1> <x2> <y2> <z2> <x> <y> <z>".
const cloneDestination = 7

// soundFixedArgs counts effect, channel, target and three location tokens.
const soundFixedArgs = 6

// NormalizeCommand strips the optional leading slash from trigger command text.
func NormalizeCommand(text string) string {
	return strings.TrimPrefix(strings.TrimSpace(text), "/")
}

// ClassifyCommand classifies trigger command text issued from the trigger at
// origin. The first matching idiom wins in the order start, middle, end, sound.
// Text matching an idiom but failing to parse yields a *MalformedIdiomError.
func ClassifyCommand(text string, origin Coordinate) (Idiom, error) {
	cmd := NormalizeCommand(text)
	fields := strings.Fields(cmd)
	malformed := func(reason string) (Idiom, error) {
		return Idiom{}, &MalformedIdiomError{At: origin, Command: cmd, Reason: reason}
	}

	switch {
	case strings.HasPrefix(cmd, "setblock") && strings.Contains(cmd, "redstone_block"):
		target, ok := parseTarget(fields, 1, origin)
		if !ok {
			return malformed("setblock target is not a block position")
		}
		return Idiom{Kind: SliderStart, Target: target}, nil

	case strings.HasPrefix(cmd, "clone"):
		target, ok := parseTarget(fields, cloneDestination, origin)
		if !ok {
			return malformed("clone destination is not a block position")
		}
		return Idiom{Kind: SliderMiddle, Target: target}, nil

	case strings.HasPrefix(cmd, "setblock") && strings.Contains(cmd, "air"):
		target, ok := parseTarget(fields, 1, origin)
		if !ok {
			return malformed("setblock target is not a block position")
		}
		return Idiom{Kind: SliderEnd, Target: target}, nil

	case strings.Contains(cmd, "playsound"):
		start := -1
		for i, f := range fields {
			if f == "playsound" {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return malformed("no playsound keyword")
		}
		args := fields[start:]
		if len(args) < soundFixedArgs {
			return malformed("playsound needs effect, channel, target and location")
		}
		trailing := args[soundFixedArgs:]
		if len(trailing) > 2 {
			trailing = trailing[:2]
		}
		return Idiom{Kind: SoundEmission, Sound: SoundCommand{
			Effect:   args[0],
			Trailing: append([]string(nil), trailing...),
		}}, nil
	}
	return Idiom{Kind: Unrecognized}, nil
}

// parseTarget reads three coordinate tokens starting at fields[i].
func parseTarget(fields []string, i int, origin Coordinate) (Coordinate, bool) {
	if len(fields) < i+3 {
		return Coordinate{}, false
	}
	x, okX := resolveCoord(fields[i], origin.X)
	y, okY := resolveCoord(fields[i+1], origin.Y)
	z, okZ := resolveCoord(fields[i+2], origin.Z)
	if !okX || !okY || !okZ {
		return Coordinate{}, false
	}
	return Coordinate{World: origin.World, X: x, Y: y, Z: z}, true
}

// resolveCoord resolves an absolute ("12") or relative ("~", "~-3") token
// against base.
func resolveCoord(tok string, base int) (int, bool) {
	if rest, ok := strings.CutPrefix(tok, "~"); ok {
		if rest == "" {
			return base, true
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			return 0, false
		}
		return base + n, true
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, false
	}
	return n, true
}
