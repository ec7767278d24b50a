package scan

import "time"

// Summary describes a finished, failed or canceled scan.
type Summary struct {
	ScanID   string        `json:"scan_id"`
	Package  string        `json:"package"`
	Steps    int           `json:"steps"`
	Visits   int           `json:"visits"`
	Events   int           `json:"events"`
	Leaves   int           `json:"leaves"`
	Root     string        `json:"root,omitempty"`
	Depth    int           `json:"depth"`
	Duration time.Duration `json:"duration_ns"`
}

// Notifier receives the terminal signal of a scan. Exactly one method is
// called per scan, after the event buffer has been fully flushed.
type Notifier interface {
	ScanComplete(s Summary)
	ScanFailed(s Summary, err error)
	ScanCanceled(s Summary)
}

// TaskHandle identifies a periodic task registered with a Scheduler.
type TaskHandle int64

// Scheduler runs a step function periodically until canceled.
// Steps of one task never run concurrently with each other.
type Scheduler interface {
	RunPeriodic(step func(), delay, period time.Duration) TaskHandle
	Cancel(h TaskHandle)
}
