package clone

import (
	metrics "github.com/docker/go-metrics"
)

var (
	ns = metrics.NewNamespace("clone", "client", nil)

	snapshotCounter    = ns.NewCounter("snapshot_records", "Number of records loaded from the snapshot")
	appliedCounter     = ns.NewCounter("updates_applied", "Number of updates merged into the local store")
	discardedCounter   = ns.NewCounter("updates_discarded", "Number of stale or duplicate updates dropped")
	malformedCounter   = ns.NewCounter("messages_malformed", "Number of messages that could not be decoded")
	emittedCounter     = ns.NewCounter("updates_emitted", "Number of generated updates pushed to the collector")
	pushFailureCounter = ns.NewCounter("push_failures", "Number of generated updates that could not be pushed")
	echoedCounter      = ns.NewCounter("updates_echoed", "Number of pushed updates seen again on the subscribe channel")
	sequenceGauge      = ns.NewGauge("sequence", "Highest sequence number applied", metrics.Total)
	snapshotTimer      = ns.NewTimer("snapshot_latency", "Time taken to load the snapshot")
)

func init() {
	metrics.Register(ns)
}
