// Package metrics records matching outcomes.
package metrics

import "time"

// Collector receives matching and provisioning events.
type Collector interface {
	// RecordMatch counts a RequestMatch outcome. tier is empty unless a group was formed.
	RecordMatch(result, tier string)

	// RecordConflict counts a finalize attempt that lost the commit race.
	RecordConflict(tier string)

	// RecordProvisioningFailure counts a failed chat operation after commit.
	RecordProvisioningFailure(op string)

	// ObserveRequestLatency records the duration of one RequestMatch call.
	ObserveRequestLatency(d time.Duration)
}

// Nop discards all metrics.
type Nop struct{}

var _ Collector = Nop{}

// NewNop creates a no-op collector.
func NewNop() Nop {
	return Nop{}
}

func (Nop) RecordMatch(_, _ string)               {}
func (Nop) RecordConflict(_ string)               {}
func (Nop) RecordProvisioningFailure(_ string)    {}
func (Nop) ObserveRequestLatency(_ time.Duration) {}
