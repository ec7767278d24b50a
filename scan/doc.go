// Package scan provides the circuit-to-datapack compiler for tickpack.
//
// # Reading Guide
//
// Start with these files to understand the engine:
//   - element.go: element kinds and the attribute contract read from the grid
//   - behavior.go: per-element traversal semantics (wires, repeaters, triggers)
//   - session.go: the stepped breadth-first traversal and its lifecycle
//   - buffer.go: tick-ordered event buffering and leaf flushing
//   - dispatch.go: folding leaves into a bounded fan-out dispatch tree
//
// # Architecture
//
// The scan package defines the collaborator interfaces; implementations live in
// sub-packages:
//   - scan/world/: cell accessors (in-memory grid, SQLite grid)
//   - scan/pack/: package sinks (datapack directory, in-memory) and archive export
//   - scan/schedule/: periodic schedulers (wall-clock ticker, manual stepper)
//   - scan/notify/: scan outcome notifiers (log, websocket, fan-out)
//   - scan/trace/: per-scan visit records
//
// # Key Interfaces
//
//   - CellAccessor: element kind, attributes and clearing for a coordinate
//   - PackageSink: batch persistence, renaming and enabling
//   - Scheduler: periodic stepping of a session
//   - Notifier: scan complete / failed / canceled callbacks
package scan
