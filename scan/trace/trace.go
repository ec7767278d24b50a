// Package trace records what a scan did at each visited cell.
// This package has no dependencies on scan/ and stores pure data types.
package trace

// Action is the decision taken for one dequeued work item.
type Action string

const (
	// ActionConsumed means the cell was processed and cleared.
	ActionConsumed Action = "consumed"
	// ActionVisited means the cell was processed but left in place.
	ActionVisited Action = "visited"
	// ActionAir means the cell was empty when dequeued.
	ActionAir Action = "air"
	// ActionClaimed means the cell had already been consumed by this scan.
	ActionClaimed Action = "claimed"
	// ActionUnsupported means the element kind is not supported.
	ActionUnsupported Action = "unsupported"
)

// VisitRecord captures one dequeue.
type VisitRecord struct {
	Step         int
	World        string
	X, Y, Z      int
	Kind         string
	TickOffset   int
	SignalLength int
	Action       Action
}

// EventRecord captures one emitted command, in production order.
type EventRecord struct {
	TickOffset int
	Command    string
}

// ScanTrace collects the records of a single scan.
type ScanTrace struct {
	ScanID   string
	Visits   []VisitRecord
	Events   []EventRecord
	Enqueued int
}

// NewScanTrace creates a ScanTrace ready for recording.
func NewScanTrace(scanID string) *ScanTrace {
	return &ScanTrace{
		ScanID: scanID,
		Visits: make([]VisitRecord, 0),
		Events: make([]EventRecord, 0),
	}
}

// RecordVisit appends a visit record.
func (st *ScanTrace) RecordVisit(record VisitRecord) {
	st.Visits = append(st.Visits, record)
}

// RecordEvent appends an emitted event.
func (st *ScanTrace) RecordEvent(record EventRecord) {
	st.Events = append(st.Events, record)
}

// RecordEnqueue counts a work item accepted into the worklist.
func (st *ScanTrace) RecordEnqueue() {
	st.Enqueued++
}
