package scan_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redstone-tools/tickpack/scan"
	"github.com/redstone-tools/tickpack/scan/internal/testutil"
	"github.com/redstone-tools/tickpack/scan/notify"
	"github.com/redstone-tools/tickpack/scan/pack"
	"github.com/redstone-tools/tickpack/scan/schedule"
	"github.com/redstone-tools/tickpack/scan/trace"
	"github.com/redstone-tools/tickpack/scan/world"
)

const pianoEvent = "as @a[tag=musik_play] at @s run playsound ins_piano record @s ~ ~ ~ 1 1"

type fixture struct {
	grid     *world.Grid
	mem      *pack.Memory
	notifier *notify.Recorder
	session  *scan.Session
}

func newFixture(t *testing.T, build func(g *world.Grid)) *fixture {
	t.Helper()
	f := &fixture{grid: world.NewGrid(testutil.World), mem: pack.NewMemory(), notifier: &notify.Recorder{}}
	build(f.grid)
	s, err := scan.NewSession("song", scan.DefaultConfig(), f.grid, f.mem, f.notifier)
	require.NoError(t, err)
	f.session = s
	return f
}

func (f *fixture) start() scan.Coordinate { return f.grid.At(0, 1, 0) }

// pianoCircuit is a wire on solid support feeding a one-shot playsound trigger to its east.
func pianoCircuit(g *world.Grid) {
	g.Set(0, 1, 0, scan.Wire, testutil.Wire("east"))
	g.Set(0, 0, 0, scan.OccludingSolid, nil)
	g.Set(1, 1, 0, scan.TriggerOneShot, testutil.Trigger("east", "playsound ins_piano master @a ~ ~ ~ 1 1"))
}

func TestTraverse_LoneWireOnTransparentSupport_PropagatesBelowOnly(t *testing.T) {
	// GIVEN a wire with no connections sitting on a non-occluding block
	f := newFixture(t, func(g *world.Grid) {
		g.Set(0, 1, 0, scan.Wire, testutil.Wire())
		g.Set(0, 0, 0, scan.NonOccludingSolid, nil)
	})

	// WHEN traversed from the wire
	events, err := f.session.Traverse(f.start())

	// THEN only the cell below is reached, no event fires and no package is written
	require.NoError(t, err)
	assert.Empty(t, events)
	tr := f.session.Trace()
	assert.Equal(t, 2, tr.Enqueued)
	require.Len(t, tr.Visits, 2)
	assert.Equal(t, trace.ActionConsumed, tr.Visits[0].Action)
	assert.Equal(t, trace.VisitRecord{Step: 2, World: testutil.World, X: 0, Y: 0, Z: 0,
		Kind: "transparent", SignalLength: 1, Action: trace.ActionVisited}, tr.Visits[1])

	exists, err := f.mem.Exists("song")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Nil(t, f.session.Root())
	require.Len(t, f.notifier.Complete, 1)
	assert.Equal(t, 1, f.notifier.Signals())
	assert.Empty(t, f.notifier.Complete[0].Root)

	kind, _ := f.grid.Kind(f.grid.At(0, 0, 0))
	assert.Equal(t, scan.NonOccludingSolid, kind, "support is not consumed")
	assert.Equal(t, 1, f.grid.Clears(f.start()))
}

func TestTraverse_SoundTrigger_WritesAndEnablesPackage(t *testing.T) {
	// GIVEN a wire feeding a playsound trigger
	f := newFixture(t, pianoCircuit)

	// WHEN traversed
	events, err := f.session.Traverse(f.start())

	// THEN one event is produced and the package holds a single entry batch
	require.NoError(t, err)
	assert.Equal(t, []trace.EventRecord{{TickOffset: 0, Command: pianoEvent}}, events)

	p := f.mem.Package("song")
	require.NotNil(t, p)
	assert.True(t, p.Enabled)
	assert.Equal(t, []string{"play_0_0"}, f.mem.Batches("song", "song"))
	lines, _ := f.mem.Lines("song", "song", "play_0_0")
	assert.Equal(t, []string{
		"execute if score song tickpack matches 0 " + pianoEvent,
		"scoreboard players add song tickpack 1",
	}, lines)

	require.Len(t, f.notifier.Complete, 1)
	sum := f.notifier.Complete[0]
	assert.Equal(t, "play_0_0", sum.Root)
	assert.Equal(t, 1, sum.Events)
	assert.Equal(t, 1, sum.Leaves)
	assert.Equal(t, 2, sum.Steps)
	assert.Equal(t, f.session.ID.String(), sum.ScanID)
}

func TestTraverse_RepeaterFeedsRepeatingTrigger(t *testing.T) {
	// GIVEN wire -> delay-2 repeater -> repeating playsound trigger
	f := newFixture(t, func(g *world.Grid) {
		g.Set(0, 1, 0, scan.Wire, testutil.Wire("east"))
		g.Set(1, 1, 0, scan.Repeater, testutil.Repeater("west", 2, false))
		g.Set(2, 1, 0, scan.TriggerRepeating, testutil.Trigger("east", "playsound ambient.cave master @a ~ ~ ~ 1 1"))
	})

	// WHEN traversed
	events, err := f.session.Traverse(f.start())

	// THEN the sound repeats for the stretched length, starting four ticks in
	require.NoError(t, err)
	const cave = "as @a[tag=musik_play] at @s run playsound ambient.cave voice @s ~ ~ ~ 1 1"
	assert.Equal(t, []trace.EventRecord{
		{TickOffset: 4, Command: cave},
		{TickOffset: 5, Command: cave},
		{TickOffset: 6, Command: cave},
		{TickOffset: 7, Command: cave},
	}, events)
	assert.Equal(t, []string{"play_4_7"}, f.mem.Batches("song", "song"))
}

func TestTraverse_CellsAreConsumedAtMostOnce(t *testing.T) {
	// GIVEN a square loop of wires where one corner is reached from two sides in the same step
	f := newFixture(t, func(g *world.Grid) {
		g.Set(0, 1, 0, scan.Wire, testutil.Wire("east", "south"))
		g.Set(1, 1, 0, scan.Wire, testutil.Wire("west", "south"))
		g.Set(0, 1, 1, scan.Wire, testutil.Wire("north", "east"))
		g.Set(1, 1, 1, scan.Wire, testutil.Wire("north", "west"))
	})

	// WHEN traversed
	_, err := f.session.Traverse(f.start())

	// THEN the far corner is dequeued twice but consumed once
	require.NoError(t, err)
	sum := trace.Summarize(f.session.Trace())
	assert.Empty(t, sum.ConsumedTwice)
	assert.Equal(t, 4, sum.ByAction[trace.ActionConsumed])
	assert.Equal(t, 1, sum.ByAction[trace.ActionClaimed])
	for _, c := range []scan.Coordinate{f.grid.At(0, 1, 0), f.grid.At(1, 1, 0), f.grid.At(0, 1, 1), f.grid.At(1, 1, 1)} {
		assert.Equal(t, 1, f.grid.Clears(c), c.String())
	}
	assert.Equal(t, 0, f.grid.Len())
}

func TestTraverse_UnsupportedGateWarnsAndContinues(t *testing.T) {
	// GIVEN a wire powering a comparator to the east and a trigger to the south
	f := newFixture(t, func(g *world.Grid) {
		g.Set(0, 1, 0, scan.Wire, testutil.Wire("east", "south"))
		g.Set(1, 1, 0, scan.UnsupportedGate, nil)
		g.Set(0, 1, 1, scan.TriggerOneShot, testutil.Trigger("south", "playsound ins_piano master @a ~ ~ ~ 1 1"))
	})

	// WHEN traversed
	events, err := f.session.Traverse(f.start())

	// THEN the comparator is skipped in place and the scan still completes
	require.NoError(t, err)
	assert.Len(t, events, 1)
	kind, _ := f.grid.Kind(f.grid.At(1, 1, 0))
	assert.Equal(t, scan.UnsupportedGate, kind)
	assert.Equal(t, 1, trace.Summarize(f.session.Trace()).ByAction[trace.ActionUnsupported])
	assert.Len(t, f.notifier.Complete, 1)
	assert.True(t, f.mem.Package("song").Enabled)
}

func TestTraverse_MalformedIdiomFailsWithoutEnabling(t *testing.T) {
	// GIVEN a good trigger whose chained follower holds a broken playsound
	f := newFixture(t, func(g *world.Grid) {
		pianoCircuit(g)
		g.Set(2, 1, 0, scan.TriggerChained, testutil.Trigger("east", "playsound ins_piano"))
	})

	// WHEN traversed
	_, err := f.session.Traverse(f.start())

	// THEN the scan fails with the typed error
	require.Error(t, err)
	assert.True(t, errors.Is(err, scan.ErrMalformedIdiom))

	// AND the buffered leaf was flushed but the package is neither compiled nor enabled
	p := f.mem.Package("song")
	require.NotNil(t, p)
	assert.False(t, p.Enabled)
	assert.Equal(t, []string{"leaf_0_0"}, f.mem.Batches("song", "song"))
	require.Len(t, f.notifier.Failed, 1)
	assert.ErrorIs(t, f.notifier.Errors[0], scan.ErrMalformedIdiom)
	assert.Empty(t, f.notifier.Complete)
	assert.Nil(t, f.session.Root())
}

func TestTraverse_ChainedTriggerRunsOnlyThroughItsOwner(t *testing.T) {
	// GIVEN a solid block powering a chained trigger directly, and a trigger owning a second chain
	f := newFixture(t, func(g *world.Grid) {
		g.Set(0, 1, 0, scan.Wire, testutil.Wire("east"))
		g.Set(0, 0, 0, scan.OccludingSolid, nil)
		g.Set(-1, 0, 0, scan.TriggerChained, testutil.Trigger("west", "playsound fx_orphan master @a ~ ~ ~"))
		g.Set(1, 1, 0, scan.TriggerOneShot, testutil.Trigger("east", "say owner"))
		g.Set(2, 1, 0, scan.TriggerChained, testutil.Trigger("east", "playsound fx_chain master @a ~ ~ ~"))
	})

	events, err := f.session.Traverse(f.start())

	// THEN only the owned chain fires
	require.NoError(t, err)
	assert.Equal(t, []trace.EventRecord{{TickOffset: 0, Command: "as @a[tag=musik_play] at @s run playsound fx_chain record @s ~ ~ ~"}}, events)
	kind, _ := f.grid.Kind(f.grid.At(-1, 0, 0))
	assert.Equal(t, scan.TriggerChained, kind)
}

func TestTraverse_SliderSeedsNextStageOneTickLater(t *testing.T) {
	// GIVEN a trigger placing a redstone block two cells east, next to a playsound trigger
	f := newFixture(t, func(g *world.Grid) {
		g.Set(0, 1, 0, scan.Wire, testutil.Wire("east"))
		g.Set(1, 1, 0, scan.TriggerOneShot, testutil.Trigger("north", "setblock ~2 ~ ~ minecraft:redstone_block"))
		g.Set(4, 1, 0, scan.TriggerOneShot, testutil.Trigger("east", "playsound fx_boom master @a ~ ~ ~"))
	})

	events, err := f.session.Traverse(f.start())

	require.NoError(t, err)
	assert.Equal(t, []trace.EventRecord{{TickOffset: 1, Command: "as @a[tag=musik_play] at @s run playsound fx_boom record @s ~ ~ ~"}}, events)
	assert.Equal(t, []string{"play_1_1"}, f.mem.Batches("song", "song"))
}

func TestTraverse_SliderEndStopsTheChain(t *testing.T) {
	// GIVEN a trigger clearing the block two cells east, with a playsound trigger under that target
	f := newFixture(t, func(g *world.Grid) {
		g.Set(0, 1, 0, scan.Wire, testutil.Wire("east"))
		g.Set(1, 1, 0, scan.TriggerOneShot, testutil.Trigger("north", "setblock ~2 ~ ~ air"))
		g.Set(3, 0, 0, scan.TriggerOneShot, testutil.Trigger("east", "playsound ins_bell master @a ~ ~ ~"))
	})

	events, err := f.session.Traverse(f.start())

	// THEN nothing below the end target runs
	require.NoError(t, err)
	assert.Empty(t, events)
	kind, _ := f.grid.Kind(f.grid.At(3, 0, 0))
	assert.Equal(t, scan.TriggerOneShot, kind)
}

func TestTraverse_SliderStartSeedsBelowOnce(t *testing.T) {
	// GIVEN a slider start whose target rests on a transparent block
	f := newFixture(t, func(g *world.Grid) {
		g.Set(0, 1, 0, scan.Wire, testutil.Wire("east"))
		g.Set(1, 1, 0, scan.TriggerOneShot, testutil.Trigger("north", "setblock ~2 ~ ~ minecraft:redstone_block"))
		g.Set(3, 0, 0, scan.NonOccludingSolid, nil)
	})

	_, err := f.session.Traverse(f.start())

	// THEN the cell below the target is visited exactly once
	require.NoError(t, err)
	visits := 0
	for _, v := range f.session.Trace().Visits {
		if v.X == 3 && v.Y == 0 && v.Z == 0 {
			visits++
		}
	}
	assert.Equal(t, 1, visits)
}

// lateBranchCircuit runs an early trigger north of the start, a chain of four
// delay-4 repeaters east ending in a trigger at tick 32, and a plain wire run
// west whose trigger fires at tick 0 only after the tick-32 event was buffered.
// With tail set, a delay-1 repeater off the west run adds a late event at tick 2.
func lateBranchCircuit(tail bool) func(g *world.Grid) {
	return func(g *world.Grid) {
		g.Set(0, 1, 0, scan.Wire, testutil.Wire("north", "east", "west"))
		g.Set(0, 1, -1, scan.TriggerOneShot, testutil.Trigger("north", "playsound ins_early master @a ~ ~ ~"))
		for x := 1; x <= 4; x++ {
			g.Set(x, 1, 0, scan.Repeater, testutil.Repeater("west", 4, false))
		}
		g.Set(5, 1, 0, scan.TriggerOneShot, testutil.Trigger("east", "playsound ins_far master @a ~ ~ ~"))
		for x := -1; x >= -4; x-- {
			g.Set(x, 1, 0, scan.Wire, testutil.Wire("east", "west"))
		}
		if tail {
			g.Set(-5, 1, 0, scan.Wire, testutil.Wire("east", "south", "west"))
			g.Set(-5, 1, 1, scan.Repeater, testutil.Repeater("north", 1, false))
			g.Set(-5, 1, 2, scan.TriggerOneShot, testutil.Trigger("south", "playsound ins_tail master @a ~ ~ ~"))
		} else {
			g.Set(-5, 1, 0, scan.Wire, testutil.Wire("east", "west"))
		}
		g.Set(-6, 1, 0, scan.TriggerOneShot, testutil.Trigger("west", "playsound ins_late master @a ~ ~ ~"))
	}
}

func eagerSession(t *testing.T, tail bool) *fixture {
	t.Helper()
	f := &fixture{grid: world.NewGrid(testutil.World), mem: pack.NewMemory(), notifier: &notify.Recorder{}}
	lateBranchCircuit(tail)(f.grid)
	cfg := scan.DefaultConfig()
	cfg.Window = 4
	s, err := scan.NewSession("song", cfg, f.grid, f.mem, f.notifier)
	require.NoError(t, err)
	f.session = s
	return f
}

// leafTicks returns the guarded tick of every line in a leaf batch.
func leafTicks(t *testing.T, mem *pack.Memory, leaf string) []int {
	t.Helper()
	lines, ok := mem.Lines("song", "song", leaf)
	require.True(t, ok, leaf)
	ticks := make([]int, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		require.GreaterOrEqual(t, len(fields), 7, line)
		tick, err := strconv.Atoi(fields[6])
		require.NoError(t, err, line)
		ticks = append(ticks, tick)
	}
	return ticks
}

// assertEachEventFiresOnce sweeps the compiled package over every tick and
// checks that every produced event runs exactly once, at its own tick.
func assertEachEventFiresOnce(t *testing.T, f *fixture, events []trace.EventRecord, last int) {
	t.Helper()
	root := f.session.Root()
	require.NotNil(t, root)
	lines := func(batch string) []string {
		l, _ := f.mem.Lines("song", "song", batch)
		return l
	}
	want := map[string]int{}
	for _, ev := range events {
		want[fmt.Sprintf("%d %s", ev.TickOffset, ev.Command)]++
	}
	got := map[string]int{}
	for tick := 0; tick <= last; tick++ {
		for _, cmd := range testutil.Sweep(lines, "song", root.Name, tick).Commands {
			got[fmt.Sprintf("%d %s", tick, cmd)]++
		}
	}
	assert.Equal(t, want, got)
}

func TestTraverse_LateEventsAfterEagerFlush_FormOverlappingLeaf(t *testing.T) {
	// GIVEN a repeater branch that pushes the buffer past six windows before a slower wire branch reports
	f := eagerSession(t, true)

	// WHEN traversed
	events, err := f.session.Traverse(f.start())

	// THEN the early leaves were flushed eagerly and the late ticks form their own overlapping leaf
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, []string{"leaf_0_0", "leaf_0_2", "leaf_32_32", "play_0_32"}, f.mem.Batches("song", "song"))
	assert.Equal(t, []int{0}, leafTicks(t, f.mem, "leaf_0_0"))
	assert.Equal(t, []int{0, 2}, leafTicks(t, f.mem, "leaf_0_2"))
	assert.Equal(t, []int{32}, leafTicks(t, f.mem, "leaf_32_32"))

	// AND every leaf name starts at its earliest tick
	for _, leaf := range f.session.Root().Leaves() {
		ticks := leafTicks(t, f.mem, leaf.Name)
		assert.Equal(t, leaf.Interval.First, slices.Min(ticks), leaf.Name)
		assert.Equal(t, leaf.Interval.Last, slices.Max(ticks), leaf.Name)
	}

	// AND the compiled tree plays each event exactly once
	assert.True(t, f.mem.Package("song").Enabled)
	assertEachEventFiresOnce(t, f, events, 32)
	require.Len(t, f.notifier.Complete, 1)
	assert.Equal(t, 3, f.notifier.Complete[0].Leaves)
}

func TestTraverse_LateEventsAfterEagerFlush_AppendToSameLeaf(t *testing.T) {
	// GIVEN the late branch only reports at tick 0
	f := eagerSession(t, false)

	// WHEN traversed
	events, err := f.session.Traverse(f.start())

	// THEN the late event lands in the already written leaf_0_0
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []string{"leaf_0_0", "leaf_32_32", "play_0_32"}, f.mem.Batches("song", "song"))
	assert.Equal(t, []int{0, 0}, leafTicks(t, f.mem, "leaf_0_0"))
	assertEachEventFiresOnce(t, f, events, 32)

	// AND the summary counts batch files, not writes
	require.Len(t, f.notifier.Complete, 1)
	assert.Equal(t, 2, f.notifier.Complete[0].Leaves)
}

func TestStart_RejectsNonWireStart(t *testing.T) {
	f := newFixture(t, func(g *world.Grid) {
		g.Set(0, 1, 0, scan.OccludingSolid, nil)
	})

	err := f.session.Start(f.start())

	assert.ErrorIs(t, err, scan.ErrUserInput)
	assert.Equal(t, 0, f.notifier.Signals())
	assert.Equal(t, 0, f.grid.Clears(f.start()))
}

func TestStart_ExistingPackageConflictsBeforeMutation(t *testing.T) {
	// GIVEN a sink that already holds the target package
	f := newFixture(t, pianoCircuit)
	_, err := f.mem.CreateOrOpen("song")
	require.NoError(t, err)

	// WHEN the scan starts
	err = f.session.Start(f.start())

	// THEN it fails with a conflict and the grid is untouched
	assert.ErrorIs(t, err, scan.ErrPackageConflict)
	assert.Equal(t, 0, f.grid.Clears(f.start()))
	assert.Equal(t, 3, f.grid.Len())
}

func TestStart_Twice(t *testing.T) {
	f := newFixture(t, pianoCircuit)
	require.NoError(t, f.session.Start(f.start()))

	assert.ErrorIs(t, f.session.Start(f.start()), scan.ErrUserInput)
}

func TestNewSession_Validation(t *testing.T) {
	g := world.NewGrid(testutil.World)
	_, err := scan.NewSession("Not Valid", scan.DefaultConfig(), g, pack.NewMemory(), nil)
	assert.ErrorIs(t, err, scan.ErrUserInput)

	cfg := scan.DefaultConfig()
	cfg.Fanout = 0
	_, err = scan.NewSession("song", cfg, g, pack.NewMemory(), nil)
	assert.ErrorIs(t, err, scan.ErrUserInput)
}

func TestAttach_ManualSchedulerStepsToCompletion(t *testing.T) {
	// GIVEN a started session driven by a manual scheduler
	f := newFixture(t, pianoCircuit)
	require.NoError(t, f.session.Start(f.start()))
	sched := schedule.NewManual()
	f.session.Attach(sched)

	// WHEN ticked until the task is gone
	ticks := sched.RunUntilIdle(100)

	// THEN two working steps and one completing step ran, and the task canceled itself
	assert.Equal(t, 3, ticks)
	assert.Equal(t, 0, sched.Active())
	sum, err := f.session.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "play_0_0", sum.Root)
	assert.Equal(t, 0, f.session.Pending())
}

// cancelProbe captures the sink contents at the moment the canceled signal arrives.
type cancelProbe struct {
	notify.Recorder
	mem     *pack.Memory
	batches []string
}

func (p *cancelProbe) ScanCanceled(s scan.Summary) {
	p.batches = p.mem.Batches("song", "song")
	p.Recorder.ScanCanceled(s)
}

func TestCancel_FlushesBeforeNotifying(t *testing.T) {
	// GIVEN a session that has buffered an event but not finished
	grid := world.NewGrid(testutil.World)
	pianoCircuit(grid)
	mem := pack.NewMemory()
	probe := &cancelProbe{mem: mem}
	s, err := scan.NewSession("song", scan.DefaultConfig(), grid, mem, probe)
	require.NoError(t, err)
	require.NoError(t, s.Start(grid.At(0, 1, 0)))
	sched := schedule.NewManual()
	s.Attach(sched)
	sched.Tick()
	sched.Tick()
	require.Equal(t, 1, sched.Active())

	// WHEN canceled
	s.Cancel()

	// THEN the leaf was already written when the signal arrived, and nothing was compiled
	assert.Equal(t, []string{"leaf_0_0"}, probe.batches)
	require.Len(t, probe.Canceled, 1)
	assert.Equal(t, 1, probe.Signals())
	assert.Equal(t, 0, sched.Active())
	assert.False(t, mem.Package("song").Enabled)
	_, err = s.Wait(context.Background())
	assert.ErrorIs(t, err, scan.ErrCanceled)

	// AND canceling again is a no-op
	s.Cancel()
	assert.Equal(t, 1, probe.Signals())
}

func TestWait_ContextExpiryCancels(t *testing.T) {
	f := newFixture(t, pianoCircuit)
	require.NoError(t, f.session.Start(f.start()))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.session.Wait(ctx)

	assert.ErrorIs(t, err, scan.ErrCanceled)
	assert.Len(t, f.notifier.Canceled, 1)
	select {
	case <-f.session.Done():
	default:
		t.Fatal("session not done after cancel")
	}
}

func TestAttach_TickerDrivesScan(t *testing.T) {
	f := newFixture(t, pianoCircuit)
	require.NoError(t, f.session.Start(f.start()))
	ticker := schedule.NewTicker()
	f.session.Attach(ticker)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sum, err := f.session.Wait(ctx)
	ticker.Wait()

	require.NoError(t, err)
	assert.Equal(t, "play_0_0", sum.Root)
}
