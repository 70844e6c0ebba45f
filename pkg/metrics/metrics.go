// Package metrics provides the optional observability seam described in
// SPEC_FULL.md's domain stack: a Recorder interface with a no-op default so
// the core library never forces a Prometheus dependency on a host that
// doesn't want it.
package metrics

import "time"

// Recorder is the metrics seam. All methods are cheap no-ops to implement
// for hosts that don't care.
type Recorder interface {
	SaveCompleted(d time.Duration, segments int)
	RebalanceMove()
	SearchLatency(d time.Duration)
	WALReplayed(records int)
}

// Noop discards every observation. It is the default Recorder.
type Noop struct{}

func (Noop) SaveCompleted(time.Duration, int) {}
func (Noop) RebalanceMove()                   {}
func (Noop) SearchLatency(time.Duration)      {}
func (Noop) WALReplayed(int)                  {}
