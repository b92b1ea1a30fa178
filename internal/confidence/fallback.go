package confidence

import (
	"time"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

// Fallback trigger reasons, surfaced in results and logs.
const (
	ReasonMissingField = "missing_field"
	ReasonLowConf      = "low_conf"
	ReasonSlowPipeline = "slow_pipeline"
)

// FallbackPolicy decides when a field escalates to the external model.
// All thresholds are injected; the zero value is unusable on purpose.
type FallbackPolicy struct {
	// LowConfFloor escalates required fields scored below it.
	LowConfFloor float64
	// HighConf is the bar for the early exit and the slow-pipeline check.
	HighConf float64
	// SlowPipeline is the OCR+heuristics duration past which uncertain
	// required fields escalate.
	SlowPipeline time.Duration
}

// NewFallbackPolicy builds the policy from explicit thresholds.
func NewFallbackPolicy(lowConfFloor, highConf float64, slowPipeline time.Duration) FallbackPolicy {
	return FallbackPolicy{
		LowConfFloor: lowConfFloor,
		HighConf:     highConf,
		SlowPipeline: slowPipeline,
	}
}

// ShouldEscalate reports whether a field needs the external model and
// why. Optional fields never escalate; the cheap local result stands.
func (p FallbackPolicy) ShouldEscalate(field constants.FieldName, res entity.ExtractionResult, pipelineElapsed time.Duration) (bool, string) {
	if !constants.IsRequired(field) {
		return false, ""
	}
	if !res.Found() {
		return true, ReasonMissingField
	}
	if res.Confidence < p.LowConfFloor {
		return true, ReasonLowConf
	}
	if pipelineElapsed > p.SlowPipeline && res.Confidence < p.HighConf {
		return true, ReasonSlowPipeline
	}
	return false, ""
}

// EarlyExit reports whether every required field already clears the
// high-confidence bar, in which case the document completes with zero
// external calls.
func (p FallbackPolicy) EarlyExit(results map[constants.FieldName]entity.ExtractionResult) bool {
	for _, field := range constants.RequiredFields {
		res, ok := results[field]
		if !ok || !res.Found() || res.Confidence < p.HighConf {
			return false
		}
	}
	return true
}
