// Package notify renders scan outcomes for the people waiting on them.
package notify

import (
	"github.com/sirupsen/logrus"

	"github.com/redstone-tools/tickpack/scan"
)

// Log reports scan outcomes through logrus.
type Log struct {
	Logger *logrus.Logger
}

func (l Log) logger() *logrus.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return logrus.StandardLogger()
}

func fields(s scan.Summary) logrus.Fields {
	return logrus.Fields{
		"scan":    s.ScanID,
		"package": s.Package,
		"steps":   s.Steps,
		"events":  s.Events,
		"leaves":  s.Leaves,
	}
}

// ScanComplete implements scan.Notifier.
func (l Log) ScanComplete(s scan.Summary) {
	e := l.logger().WithFields(fields(s))
	if s.Root == "" {
		e.Info("[scan] finished: no sound triggers reached, package left empty")
		return
	}
	e.Infof("[scan] finished: run function %s:%s to play (dispatch depth %d)", s.Package, s.Root, s.Depth)
}

// ScanFailed implements scan.Notifier.
func (l Log) ScanFailed(s scan.Summary, err error) {
	l.logger().WithFields(fields(s)).Errorf("[scan] failed: %v", err)
}

// ScanCanceled implements scan.Notifier.
func (l Log) ScanCanceled(s scan.Summary) {
	l.logger().WithFields(fields(s)).Warn("[scan] canceled; buffered commands were flushed")
}

// Multi fans every signal out to each notifier in order.
type Multi []scan.Notifier

// ScanComplete implements scan.Notifier.
func (m Multi) ScanComplete(s scan.Summary) {
	for _, n := range m {
		n.ScanComplete(s)
	}
}

// ScanFailed implements scan.Notifier.
func (m Multi) ScanFailed(s scan.Summary, err error) {
	for _, n := range m {
		n.ScanFailed(s, err)
	}
}

// ScanCanceled implements scan.Notifier.
func (m Multi) ScanCanceled(s scan.Summary) {
	for _, n := range m {
		n.ScanCanceled(s)
	}
}

// Recorder keeps every signal it receives; handy in tests.
type Recorder struct {
	Complete []scan.Summary
	Failed   []scan.Summary
	Errors   []error
	Canceled []scan.Summary
}

// ScanComplete implements scan.Notifier.
func (r *Recorder) ScanComplete(s scan.Summary) { r.Complete = append(r.Complete, s) }

// ScanFailed implements scan.Notifier.
func (r *Recorder) ScanFailed(s scan.Summary, err error) {
	r.Failed = append(r.Failed, s)
	r.Errors = append(r.Errors, err)
}

// ScanCanceled implements scan.Notifier.
func (r *Recorder) ScanCanceled(s scan.Summary) { r.Canceled = append(r.Canceled, s) }

// Signals is the total number of signals received.
func (r *Recorder) Signals() int { return len(r.Complete) + len(r.Failed) + len(r.Canceled) }
