package confidence

import (
	"log/slog"
	"strings"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

// Score computes the blended field confidence. The weakest sub-signal
// dominates through the min: a perfect regex match cannot rescue
// garbage OCR, and vice versa. The 0.2 base keeps any found value above
// hard zero, and the result is clamped to [0, 1].
func Score(ocrConf, labelScore, regexScore float64, llmAgree bool) float64 {
	final := 0.2 + 0.7*min3(ocrConf, labelScore, regexScore)
	if llmAgree {
		final += 0.1
	}
	if final < 0 {
		return 0
	}
	if final > 1 {
		return 1
	}
	return final
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// OCRConfidenceForText averages the confidence of blocks whose text
// contains the value. A value that appears nowhere gets the 0.5
// neutral default; an empty value gets 0.
func OCRConfidenceForText(blocks []entity.OCRBlock, value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	lower := strings.ToLower(value)

	sum := 0.0
	n := 0
	for _, b := range blocks {
		if strings.Contains(strings.ToLower(b.Text), lower) {
			sum += b.Confidence
			n++
		}
	}
	if n == 0 {
		return 0.5
	}
	return sum / float64(n)
}

// Scorer turns field candidates into scored extraction results.
type Scorer struct {
	autoAccept float64
	ocrFloor   float64
	logger     *slog.Logger
}

// NewScorer builds a scorer. autoAccept is the confidence at or above
// which a strict-pattern, high-OCR value skips review; ocrFloor is the
// OCR confidence required for that shortcut.
func NewScorer(autoAccept, ocrFloor float64, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{autoAccept: autoAccept, ocrFloor: ocrFloor, logger: logger}
}

// ScoreCandidate resolves a candidate into a result with the final
// confidence. Sub-scores come from the candidate's strategy tier, not
// from parsing reason strings, so every tier maps to one fixed pair.
// The OCR sub-score is the mean over every block containing the raw
// text, not the source block alone: duplicated text at mixed engine
// confidences averages out.
func (s *Scorer) ScoreCandidate(cand entity.FieldCandidate, blocks []entity.OCRBlock, llmAgree bool) entity.ExtractionResult {
	labelScore, regexScore := cand.Tier.SubScores()

	ocrConf := OCRConfidenceForText(blocks, cand.RawText)

	final := Score(ocrConf, labelScore, regexScore, llmAgree)

	autoAccept := regexScore == 1.0 && ocrConf >= s.ocrFloor && final >= s.autoAccept
	reason := cand.Tier.String() + ": " + truncate(cand.RawText, 30)
	if autoAccept {
		reason += " (auto-accept)"
	}

	value := cand.Value
	res := entity.ExtractionResult{
		Field:      cand.Field,
		Value:      &value,
		Amount:     cand.Amount,
		Confidence: final,
		Reason:     reason,
		Source:     constants.SourceHeuristic,
		Tier:       cand.Tier,
		AutoAccept: autoAccept,
	}

	s.logger.Debug("confidence.scored",
		"field", string(cand.Field),
		"tier", cand.Tier.String(),
		"ocr_conf", ocrConf,
		"confidence", final,
		"auto_accept", autoAccept,
	)
	return res
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
