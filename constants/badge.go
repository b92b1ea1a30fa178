package constants

// ConfidenceBadge buckets a field confidence for the review UI.
type ConfidenceBadge string

const (
	BadgeAutoAccept  ConfidenceBadge = "auto-accept"
	BadgeFlag        ConfidenceBadge = "flag"
	BadgeLLMRequired ConfidenceBadge = "llm-required"
)

// Badge maps a confidence score to its badge given the configured
// flag floor and auto-accept ceiling.
func Badge(confidence, flagFloor, autoAccept float64) ConfidenceBadge {
	switch {
	case confidence >= autoAccept:
		return BadgeAutoAccept
	case confidence >= flagFloor:
		return BadgeFlag
	default:
		return BadgeLLMRequired
	}
}
