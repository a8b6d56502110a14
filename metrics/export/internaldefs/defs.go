package internaldefs

import (
	totpgate "github.com/authsteps/totpgate"
)

// CounterDef defines a public type used by totpgate exporters.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   totpgate.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by totpgate exporters.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   totpgate.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the second-factor gate.
var CounterDefs = []CounterDef{
	{ID: totpgate.MetricChallengeIssued, Name: "totpgate_challenge_issued_total", Help: "Transactions suspended pending a second factor."},
	{ID: totpgate.MetricChallengeSkipped, Name: "totpgate_challenge_skipped_total", Help: "Users allowed through without a configured second factor."},
	{ID: totpgate.MetricNotConfiguredBlocked, Name: "totpgate_not_configured_blocked_total", Help: "Users blocked by enforcement without a configured second factor."},
	{ID: totpgate.MetricMissingUserID, Name: "totpgate_missing_user_id_total", Help: "Transactions aborted for lacking a resolvable user id."},
	{ID: totpgate.MetricChallengeRendered, Name: "totpgate_challenge_rendered_total", Help: "Challenge form renders."},
	{ID: totpgate.MetricStateRejected, Name: "totpgate_state_rejected_total", Help: "Requests rejected for a missing, malformed, unknown or expired state identifier."},
	{ID: totpgate.MetricRedirectRejected, Name: "totpgate_redirect_rejected_total", Help: "Embedded redirect hints rejected by the redirect policy."},
	{ID: totpgate.MetricCodeFormatRejected, Name: "totpgate_code_format_rejected_total", Help: "Submitted codes rejected before any validation round trip for non-numeric input."},
	{ID: totpgate.MetricCodeRejected, Name: "totpgate_code_rejected_total", Help: "Submitted codes the validator did not assert."},
	{ID: totpgate.MetricCodeAccepted, Name: "totpgate_code_accepted_total", Help: "Submitted codes accepted."},
	{ID: totpgate.MetricValidatorUnreachable, Name: "totpgate_validator_unreachable_total", Help: "Validation round trips that failed at the transport level."},
	{ID: totpgate.MetricValidatorProtocolError, Name: "totpgate_validator_protocol_error_total", Help: "Validation responses with an unexpected structure."},
	{ID: totpgate.MetricResumed, Name: "totpgate_resumed_total", Help: "Suspended transactions handed back to the pipeline."},
	{ID: totpgate.MetricResumeReplayBlocked, Name: "totpgate_resume_replay_blocked_total", Help: "Duplicate submissions blocked after the state was already consumed."},
}

// HistogramDefs is an exported constant or variable used by the second-factor gate.
var HistogramDefs = []HistogramDef{
	{ID: totpgate.MetricValidatorLatency, Name: "totpgate_validator_latency_seconds", Help: "Validation round-trip latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the second-factor gate.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the second-factor gate.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
