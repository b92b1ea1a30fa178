package heuristics

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

// TotalConfig carries the tunable bounds for total extraction.
type TotalConfig struct {
	// MaxAmount rejects candidates above this value outright.
	MaxAmount float64
	// BottomRatio is the page fraction treated as the totals region.
	BottomRatio float64
}

// DefaultTotalConfig matches production tuning.
func DefaultTotalConfig() TotalConfig {
	return TotalConfig{MaxAmount: 1_000_000, BottomRatio: 0.40}
}

type scoredAmount struct {
	score float64
	raw   string
	value float64
	block entity.OCRBlock
	sym   bool
	near  bool
}

// ExtractTotalAmount scores every amount-shaped token on the page and
// returns candidates in descending score order. Unlike the tiered
// fields, the total is never taken from the first match: a page has
// many amounts and only global scoring separates the total from line
// items, quantities, and the invoice number itself.
//
// Exclusion rules protect against the classic failure where a numeric
// invoice ID (e.g. 27301261) outranks the real total: any candidate
// equal to the invoice ID string, numerically equal to its digit run,
// or sharing a 6+ digit substring with it is dropped before scoring.
func ExtractTotalAmount(blocks []entity.OCRBlock, invoiceID string, cfg TotalConfig) []entity.FieldCandidate {
	if len(blocks) == 0 {
		return nil
	}

	pageHeight := entity.PageHeight(blocks)

	var invoiceIDNumeric float64
	haveIDNumeric := false
	if invoiceID != "" {
		digits := reNonDigit.ReplaceAllString(invoiceID, "")
		if digits != "" {
			if v, err := strconv.ParseFloat(digits, 64); err == nil {
				invoiceIDNumeric = v
				haveIDNumeric = true
			}
		}
	}
	idNumbers := InvoiceIDDigitSet(blocks, invoiceID)

	labelBlocks := FindBlocksWithLabel(blocks, TotalLabels)
	labelYs := make([]float64, 0, len(labelBlocks))
	for _, lb := range labelBlocks {
		labelYs = append(labelYs, lb.BBox[1])
	}
	nearLabel := func(b entity.OCRBlock) bool {
		for _, y := range labelYs {
			if math.Abs(y-b.BBox[1]) < 100 {
				return true
			}
		}
		return false
	}

	var scored []scoredAmount
	for _, b := range blocks {
		text := NormalizeText(b.Text)
		if text == "" {
			continue
		}
		near := nearLabel(b)
		bottomFrac := b.BBox[3] / pageHeight

		for _, raw := range ExtractAmountsRelaxed(text) {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			val, ok := ParseAmount(raw)
			if !ok || val == 0 {
				continue
			}

			if invoiceID != "" && raw == strings.TrimSpace(invoiceID) {
				continue
			}
			if haveIDNumeric && math.Abs(val-invoiceIDNumeric) < 0.001 {
				continue
			}
			if val > cfg.MaxAmount || val <= 0 {
				continue
			}
			intStr := strconv.FormatInt(int64(val), 10)
			if idNumbers[intStr] {
				continue
			}
			if len(idNumbers) > 0 && float64(int64(val)) == val && len(intStr) >= 6 {
				skip := false
				for idNum := range idNumbers {
					if strings.Contains(idNum, intStr) || strings.Contains(intStr, idNum) {
						skip = true
						break
					}
				}
				if skip {
					continue
				}
			}

			hasSym := HasCurrencySymbol(raw) || HasCurrencySymbol(text)

			score := 0.0
			if near {
				score += 5.0
			}
			if hasSym {
				score += 3.0
			}
			switch {
			case bottomFrac >= 1.0-cfg.BottomRatio:
				score += 2.5
			case bottomFrac >= 0.5:
				score += 1.0
			default:
				score += bottomFrac * 0.3
			}
			logVal := math.Log10(math.Max(val, 1))
			score += math.Min(logVal*0.3, 2.0)
			if HasDecimalShape(raw) {
				score += 1.5
			}
			if !hasSym && (val >= 1_000_000 || (val >= 100_000 && float64(int64(val)) == val)) {
				score -= 3.0
			}

			scored = append(scored, scoredAmount{score, raw, val, b, hasSym, near})
		}
	}

	if len(scored) == 0 {
		return nil
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	out := make([]entity.FieldCandidate, 0, len(scored))
	for _, s := range scored {
		v := s.value
		b := s.block
		out = append(out, entity.FieldCandidate{
			Field:       constants.FieldTotalAmount,
			RawText:     s.raw,
			Value:       s.raw,
			Amount:      &v,
			SourceBlock: &b,
			Tier:        totalTier(s),
			BaseConf:    0,
			Score:       s.score,
		})
	}
	return out
}

func totalTier(s scoredAmount) entity.StrategyTier {
	strict := s.sym
	switch {
	case s.near && strict:
		return entity.TierLabelStrict
	case s.near:
		return entity.TierLabelRelaxed
	case strict:
		return entity.TierGlobalStrict
	default:
		return entity.TierGlobalRelaxed
	}
}

// TotalLabelScore mirrors the label sub-score used when scoring the
// winning total candidate: 1.0 right next to a total label, 0.7 when
// labels exist elsewhere on the page, 0.5 with no labels at all.
func TotalLabelScore(blocks []entity.OCRBlock, chosen entity.OCRBlock) float64 {
	labelBlocks := FindBlocksWithLabel(blocks, TotalLabels)
	score := 0.5
	for _, lb := range labelBlocks {
		if math.Abs(lb.BBox[1]-chosen.BBox[1]) < 100 {
			return 1.0
		}
	}
	if len(labelBlocks) > 0 {
		score = 0.7
	}
	return score
}
