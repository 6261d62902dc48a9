package simulator

import (
	"errors"
	"sync/atomic"
	"time"
)

// OutcomeKind classifies the result of one publish attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeNotConnected
	OutcomeTransportFailure
)

// String returns the label used in logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotConnected:
		return "not_connected"
	case OutcomeTransportFailure:
		return "transport_failure"
	default:
		return "unknown"
	}
}

// Outcome is the transient result of one publish attempt.
type Outcome struct {
	Device DeviceID
	Topic  string
	Kind   OutcomeKind
	Ack    int
	Err    error
}

// classify maps a Publish result to an OutcomeKind.
func classify(err error) OutcomeKind {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrNotConnected):
		return OutcomeNotConnected
	default:
		return OutcomeTransportFailure
	}
}

// TickSummary aggregates the outcomes of one tick.
// Succeeded + Failed + NotConnected always equals Devices.
type TickSummary struct {
	Tick         uint64
	Devices      int
	Succeeded    int
	Failed       int
	NotConnected int
	Started      time.Time
	Duration     time.Duration
}

// add counts one outcome.
func (s *TickSummary) add(o Outcome) {
	switch o.Kind {
	case OutcomeSuccess:
		s.Succeeded++
	case OutcomeNotConnected:
		s.NotConnected++
	default:
		s.Failed++
	}
}

// Recorder receives outcomes as they are produced. Implementations must be
// safe for concurrent use and must not block.
type Recorder interface {
	RecordOutcome(o Outcome)
	RecordTick(s TickSummary)
	RecordConnectAttempt(attempt int, err error)
}

// MultiRecorder fans out to several recorders in order.
type MultiRecorder []Recorder

func (m MultiRecorder) RecordOutcome(o Outcome) {
	for _, r := range m {
		r.RecordOutcome(o)
	}
}

func (m MultiRecorder) RecordTick(s TickSummary) {
	for _, r := range m {
		r.RecordTick(s)
	}
}

func (m MultiRecorder) RecordConnectAttempt(attempt int, err error) {
	for _, r := range m {
		r.RecordConnectAttempt(attempt, err)
	}
}

// Stats counts outcomes for the lifetime of a run.
type Stats struct {
	ticks           atomic.Uint64
	succeeded       atomic.Uint64
	failed          atomic.Uint64
	notConnected    atomic.Uint64
	connectAttempts atomic.Uint64
	connectFailures atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Ticks           uint64
	Succeeded       uint64
	Failed          uint64
	NotConnected    uint64
	ConnectAttempts uint64
	ConnectFailures uint64
}

// Published returns the total number of publish attempts.
func (s StatsSnapshot) Published() uint64 {
	return s.Succeeded + s.Failed + s.NotConnected
}

func (s *Stats) RecordOutcome(o Outcome) {
	switch o.Kind {
	case OutcomeSuccess:
		s.succeeded.Add(1)
	case OutcomeNotConnected:
		s.notConnected.Add(1)
	default:
		s.failed.Add(1)
	}
}

func (s *Stats) RecordTick(TickSummary) {
	s.ticks.Add(1)
}

func (s *Stats) RecordConnectAttempt(_ int, err error) {
	s.connectAttempts.Add(1)
	if err != nil {
		s.connectFailures.Add(1)
	}
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Ticks:           s.ticks.Load(),
		Succeeded:       s.succeeded.Load(),
		Failed:          s.failed.Load(),
		NotConnected:    s.notConnected.Load(),
		ConnectAttempts: s.connectAttempts.Load(),
		ConnectFailures: s.connectFailures.Load(),
	}
}
