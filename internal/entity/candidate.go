package entity

import "github.com/Sundramrai3691/ReXcan/constants"

// StrategyTier is the extraction method that produced a candidate.
// Each tier carries fixed label/regex sub-scores for the confidence
// formula; the tier is the source of truth, never the reason string.
type StrategyTier int

const (
	TierNone StrategyTier = iota
	TierLabelStrict
	TierLabelRelaxed
	TierGlobalStrict
	TierGlobalRelaxed
	TierPositional
	TierLLM
)

func (t StrategyTier) String() string {
	switch t {
	case TierLabelStrict:
		return "label-strict"
	case TierLabelRelaxed:
		return "label-relaxed"
	case TierGlobalStrict:
		return "global-strict"
	case TierGlobalRelaxed:
		return "global-relaxed"
	case TierPositional:
		return "positional"
	case TierLLM:
		return "llm"
	default:
		return "none"
	}
}

// SubScores returns the fixed (label_score, regex_score) pair for the tier.
func (t StrategyTier) SubScores() (labelScore, regexScore float64) {
	switch t {
	case TierLabelStrict:
		return 1.0, 1.0
	case TierLabelRelaxed:
		return 0.4, 0.6
	case TierGlobalStrict:
		return 0.7, 1.0
	case TierGlobalRelaxed:
		return 0.4, 0.6
	case TierPositional:
		return 0.5, 0.6
	case TierLLM:
		return 0.75, 0.75
	default:
		return 0.0, 0.0
	}
}

// FieldCandidate is a provisional value for one field, produced by one
// extraction attempt. Candidates are ephemeral; exactly one is selected
// per field per pass.
type FieldCandidate struct {
	Field       constants.FieldName
	RawText     string
	Value       string   // normalized textual value
	Amount      *float64 // parsed numeric value, amount fields only
	SourceBlock *OCRBlock
	Tier        StrategyTier
	BaseConf    float64
	Score       float64 // scoring-tier rank, total-amount extractor only
}
