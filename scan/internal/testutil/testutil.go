// Package testutil builds circuits and replays compiled packages for tests.
package testutil

import (
	"strconv"
	"strings"

	"github.com/redstone-tools/tickpack/scan"
)

// World is the world identifier of test grids.
const World = "test"

// Wire returns wire attributes with the listed sides connected flush and the
// rest unconnected.
func Wire(sides ...string) scan.Attributes {
	a := scan.Attributes{
		"north":        scan.ConnNone,
		"east":         scan.ConnNone,
		"south":        scan.ConnNone,
		"west":         scan.ConnNone,
		scan.AttrPower: "15",
	}
	for _, s := range sides {
		a[s] = scan.ConnSide
	}
	return a
}

// WireUp returns wire attributes climbing one block on each listed side.
func WireUp(sides ...string) scan.Attributes {
	a := Wire()
	for _, s := range sides {
		a[s] = scan.ConnUp
	}
	return a
}

// Trigger returns the attributes of a command-holding element.
func Trigger(facing, command string) scan.Attributes {
	return scan.Attributes{scan.AttrFacing: facing, scan.AttrCommand: command}
}

// Repeater returns repeater attributes. facing names the input side.
func Repeater(facing string, delay int, locked bool) scan.Attributes {
	return scan.Attributes{
		scan.AttrFacing: facing,
		scan.AttrDelay:  strconv.Itoa(delay),
		scan.AttrLocked: strconv.FormatBool(locked),
	}
}

// SweepResult is what running the entry batch once did.
type SweepResult struct {
	Batches  []string // every batch entered, root first
	Commands []string // guarded commands that fired, in order
}

// Sweep runs root with the counter at value and follows every guarded
// function call that matches. lines returns a batch's contents.
func Sweep(lines func(batch string) []string, namespace, root string, value int) SweepResult {
	var res SweepResult
	sweep(lines, namespace, root, value, &res)
	return res
}

func sweep(lines func(string) []string, namespace, batch string, value int, res *SweepResult) {
	res.Batches = append(res.Batches, batch)
	for _, line := range lines(batch) {
		tail, ok := guarded(line, value)
		if !ok {
			continue
		}
		if child, isCall := strings.CutPrefix(tail, "run function "+namespace+":"); isCall {
			sweep(lines, namespace, child, value, res)
			continue
		}
		res.Commands = append(res.Commands, strings.TrimPrefix(tail, "run "))
	}
}

// guarded parses "execute if score <holder> <objective> matches <range> <tail>"
// and reports the tail when value lies in range.
func guarded(line string, value int) (string, bool) {
	fields := strings.SplitN(line, " ", 8)
	if len(fields) < 8 || fields[0] != "execute" || fields[1] != "if" || fields[2] != "score" || fields[5] != "matches" {
		return "", false
	}
	lo, hi, ok := parseRange(fields[6])
	if !ok || value < lo || value > hi {
		return "", false
	}
	return fields[7], true
}

func parseRange(s string) (int, int, bool) {
	if a, b, found := strings.Cut(s, ".."); found {
		lo, err1 := strconv.Atoi(a)
		hi, err2 := strconv.Atoi(b)
		return lo, hi, err1 == nil && err2 == nil
	}
	n, err := strconv.Atoi(s)
	return n, n, err == nil
}
