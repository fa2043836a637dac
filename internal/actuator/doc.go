// Package actuator publishes the outcome of a run.
//
// The Reporter renders an optimizer.Result on the coordinator's standard output in one
// of three formats:
//
//	text  the human-readable listing printed by default
//	json  the Result structure as indented JSON
//	yaml  the Result structure as YAML
//
// The text form is:
//
//	Optimal Strategy:
//	  Tyre: SOFT, Laps: 10
//	  Tyre: SOFT, Laps: 10
//	  Total Race Time: 1840.14 seconds
//
// Only the coordinator reports; workers have nothing to publish. Metrics are emitted
// separately through internal/metrics.
package actuator
