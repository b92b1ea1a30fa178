package confidence

import (
	"math"
	"testing"
	"time"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

func TestScore_Formula(t *testing.T) {
	tests := []struct {
		name       string
		ocr        float64
		label      float64
		regex      float64
		llmAgree   bool
		want       float64
	}{
		{"weakest signal dominates", 0.9, 1.0, 1.0, false, 0.2 + 0.7*0.9},
		{"llm agreement adds a tenth", 0.9, 1.0, 1.0, true, 0.2 + 0.7*0.9 + 0.1},
		{"all perfect clamps to one", 1.0, 1.0, 1.0, true, 1.0},
		{"all zero keeps the base", 0.0, 0.0, 0.0, false, 0.2},
		{"min picks label", 0.9, 0.4, 1.0, false, 0.2 + 0.7*0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.ocr, tt.label, tt.regex, tt.llmAgree)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScore_ExactReferenceValue(t *testing.T) {
	// 0.2 + 0.7*min(0.9, 1.0, 1.0) = 0.83
	got := Score(0.9, 1.0, 1.0, false)
	if math.Abs(got-0.83) > 1e-9 {
		t.Fatalf("Score(0.9, 1.0, 1.0, false) = %v, want 0.83", got)
	}
}

func TestOCRConfidenceForText(t *testing.T) {
	blocks := []entity.OCRBlock{
		{Text: "Total: 544.46", Confidence: 0.9},
		{Text: "544.46 due", Confidence: 0.7},
		{Text: "unrelated", Confidence: 0.1},
	}
	got := OCRConfidenceForText(blocks, "544.46")
	if math.Abs(got-0.8) > 1e-9 {
		t.Fatalf("mean of matching blocks = %v, want 0.8", got)
	}
	if got := OCRConfidenceForText(blocks, "999"); got != 0.5 {
		t.Fatalf("unmatched value = %v, want neutral 0.5", got)
	}
	if got := OCRConfidenceForText(blocks, ""); got != 0 {
		t.Fatalf("empty value = %v, want 0", got)
	}
}

func TestScoreCandidate_AutoAccept(t *testing.T) {
	s := NewScorer(0.85, 0.75, nil)
	cand := entity.FieldCandidate{
		Field:   constants.FieldInvoiceID,
		RawText: "INV-2024-001",
		Value:   "INV-2024-001",
		Tier:    entity.TierLabelStrict,
	}
	blocks := []entity.OCRBlock{{Text: "Invoice #: INV-2024-001", Confidence: 0.95}}
	res := s.ScoreCandidate(cand, blocks, false)
	if !res.AutoAccept {
		t.Fatalf("strict tier with OCR 0.95 should auto-accept, conf=%v", res.Confidence)
	}

	// Same candidate but shaky OCR: confidence drops below the bar.
	blocks[0].Confidence = 0.6
	res = s.ScoreCandidate(cand, blocks, false)
	if res.AutoAccept {
		t.Fatal("low OCR confidence must not auto-accept")
	}
	if math.Abs(res.Confidence-(0.2+0.7*0.6)) > 1e-9 {
		t.Fatalf("confidence = %v, want %v", res.Confidence, 0.2+0.7*0.6)
	}
}

func TestScoreCandidate_TierSubScores(t *testing.T) {
	s := NewScorer(0.85, 0.75, nil)
	cand := entity.FieldCandidate{
		Field:   constants.FieldInvoiceID,
		RawText: "A1B2C3",
		Value:   "A1B2C3",
		Tier:    entity.TierLabelRelaxed,
	}
	blocks := []entity.OCRBlock{{Text: "Ref A1B2C3", Confidence: 1.0}}
	res := s.ScoreCandidate(cand, blocks, false)
	// label=0.4, regex=0.6 → min 0.4 → 0.2 + 0.28
	if math.Abs(res.Confidence-0.48) > 1e-9 {
		t.Fatalf("relaxed tier confidence = %v, want 0.48", res.Confidence)
	}
	if res.AutoAccept {
		t.Fatal("relaxed tier must never auto-accept")
	}
}

func TestScoreCandidate_MeanOverDuplicateText(t *testing.T) {
	s := NewScorer(0.85, 0.75, nil)
	cand := entity.FieldCandidate{
		Field:       constants.FieldInvoiceID,
		RawText:     "INV-777",
		Value:       "INV-777",
		SourceBlock: &entity.OCRBlock{Text: "INV-777", Confidence: 0.9},
		Tier:        entity.TierLabelStrict,
	}
	// The value appears twice; the score averages both sightings
	// instead of trusting the source block alone.
	blocks := []entity.OCRBlock{
		{Text: "INV-777", Confidence: 0.9},
		{Text: "Duplicate: INV-777", Confidence: 0.7},
	}
	res := s.ScoreCandidate(cand, blocks, false)
	if math.Abs(res.Confidence-(0.2+0.7*0.8)) > 1e-9 {
		t.Fatalf("confidence = %v, want %v", res.Confidence, 0.2+0.7*0.8)
	}
}

func TestFallbackPolicy_Triggers(t *testing.T) {
	p := NewFallbackPolicy(0.5, 0.85, 10*time.Second)
	val := "x"

	found := entity.ExtractionResult{Field: constants.FieldInvoiceID, Value: &val, Confidence: 0.9}
	missing := entity.NotFound(constants.FieldInvoiceID, "not found")
	shaky := entity.ExtractionResult{Field: constants.FieldInvoiceID, Value: &val, Confidence: 0.4}
	middling := entity.ExtractionResult{Field: constants.FieldInvoiceID, Value: &val, Confidence: 0.7}

	if ok, reason := p.ShouldEscalate(constants.FieldInvoiceID, missing, time.Second); !ok || reason != ReasonMissingField {
		t.Fatalf("missing required field: got (%v, %q)", ok, reason)
	}
	if ok, reason := p.ShouldEscalate(constants.FieldInvoiceID, shaky, time.Second); !ok || reason != ReasonLowConf {
		t.Fatalf("low confidence: got (%v, %q)", ok, reason)
	}
	if ok, reason := p.ShouldEscalate(constants.FieldInvoiceID, middling, 11*time.Second); !ok || reason != ReasonSlowPipeline {
		t.Fatalf("slow pipeline: got (%v, %q)", ok, reason)
	}
	if ok, _ := p.ShouldEscalate(constants.FieldInvoiceID, found, 11*time.Second); ok {
		t.Fatal("confident field must not escalate even when slow")
	}
	if ok, _ := p.ShouldEscalate(constants.FieldDueDate, missing, time.Second); ok {
		t.Fatal("optional field must never escalate")
	}
}

func TestFallbackPolicy_EarlyExit(t *testing.T) {
	p := NewFallbackPolicy(0.5, 0.85, 10*time.Second)
	val := "x"
	high := func(f constants.FieldName) entity.ExtractionResult {
		return entity.ExtractionResult{Field: f, Value: &val, Confidence: 0.9}
	}

	results := map[constants.FieldName]entity.ExtractionResult{}
	for _, f := range constants.RequiredFields {
		results[f] = high(f)
	}
	if !p.EarlyExit(results) {
		t.Fatal("all required fields confident: early exit expected")
	}

	results[constants.FieldTotalAmount] = entity.ExtractionResult{
		Field: constants.FieldTotalAmount, Value: &val, Confidence: 0.84,
	}
	if p.EarlyExit(results) {
		t.Fatal("one field below the bar must block early exit")
	}

	delete(results, constants.FieldTotalAmount)
	if p.EarlyExit(results) {
		t.Fatal("absent required field must block early exit")
	}
}
