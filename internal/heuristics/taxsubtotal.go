package heuristics

import (
	"regexp"
	"strings"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

// Tax ratio sanity bounds relative to the total. Outside this band a
// candidate is line-item noise, not tax.
const (
	minTaxRatio = 0.01
	maxTaxRatio = 0.50

	minSubtotalRatio = 0.80
	maxSubtotalRatio = 0.99
)

var reColonAmount = regexp.MustCompile(`[:(]\s*[^\d]*(\d{1,3}(?:[,\s]\d{3})*(?:[.,]\d{1,2})?)`)

// ExtractTaxAmount finds the tax line. Tiers: amount inside or next to
// a tax label block, then the block just right of a subtotal label
// (tax rows usually follow the subtotal row), then a global scan of
// amounts that sit in the plausible tax ratio band of the total.
func ExtractTaxAmount(blocks []entity.OCRBlock, totalAmount *float64) []entity.FieldCandidate {
	if len(blocks) == 0 {
		return nil
	}

	labelBlocks := FindBlocksWithLabel(blocks, TaxLabels)
	var candidates []entity.FieldCandidate

	for _, lb := range labelBlocks {
		norm := NormalizeText(lb.Text)

		if raw, ok := ExtractAmountStrict(norm); ok {
			if v, ok := ParseAmount(raw); ok && v > 0 {
				candidates = append(candidates, amountCandidate(constants.FieldAmountTax, raw, v, lb, entity.TierLabelStrict, 0.90))
				break
			}
		}
		// "Tax (13%): $456.30" puts the amount after a colon or paren
		// in the label block itself.
		if m := reColonAmount.FindStringSubmatch(lb.Text); m != nil {
			if v, ok := ParseAmount(m[1]); ok && v > 0 {
				candidates = append(candidates, amountCandidate(constants.FieldAmountTax, m[1], v, lb, entity.TierLabelStrict, 0.88))
				break
			}
		}
		if raws := ExtractAmountsRelaxed(norm); len(raws) > 0 {
			if v, ok := ParseAmount(raws[0]); ok && v > 0 {
				candidates = append(candidates, amountCandidate(constants.FieldAmountTax, raws[0], v, lb, entity.TierLabelStrict, 0.90))
				break
			}
		}

		nb, ok := FindCandidateNear(lb, blocks, 600, true)
		if !ok {
			nb, ok = FindCandidateNear(lb, blocks, 600, false)
		}
		if ok {
			if raw, v, found := firstAmount(nb.Text); found && v > 0 {
				candidates = append(candidates, amountCandidate(constants.FieldAmountTax, raw, v, nb, entity.TierLabelStrict, 0.85))
				break
			}
		}
	}

	// The row after the subtotal is usually tax.
	if len(candidates) == 0 {
		for _, stb := range FindBlocksWithLabel(blocks, SubtotalLabels) {
			nb, ok := FindCandidateNear(stb, blocks, 400, true)
			if !ok {
				continue
			}
			raw, v, found := firstAmount(nb.Text)
			if !found || v <= 0 {
				continue
			}
			if totalAmount != nil && *totalAmount > 0 {
				ratio := v / *totalAmount
				if ratio < minTaxRatio || ratio > maxTaxRatio {
					continue
				}
				candidates = append(candidates, amountCandidate(constants.FieldAmountTax, raw, v, nb, entity.TierLabelRelaxed, 0.75))
			} else {
				candidates = append(candidates, amountCandidate(constants.FieldAmountTax, raw, v, nb, entity.TierLabelRelaxed, 0.70))
			}
		}
	}

	// Global scan, only meaningful with a total to ratio-check against.
	if len(candidates) == 0 && totalAmount != nil && *totalAmount > 0 {
		for _, b := range blocks {
			norm := NormalizeText(b.Text)
			for _, raw := range ExtractAmountsRelaxed(norm) {
				v, ok := ParseAmount(raw)
				if !ok || v <= 0 || v >= *totalAmount {
					continue
				}
				ratio := v / *totalAmount
				if ratio < minTaxRatio || ratio > maxTaxRatio {
					continue
				}
				candidates = append(candidates, amountCandidate(constants.FieldAmountTax, raw, v, b, entity.TierGlobalRelaxed, 0.55))
			}
		}
	}

	return candidates
}

// ExtractSubtotal finds the pre-tax subtotal. Tiers: amount inside or
// next to a subtotal label block, then a global scan for amounts in
// the 80-99% band of the total.
func ExtractSubtotal(blocks []entity.OCRBlock, totalAmount *float64) []entity.FieldCandidate {
	if len(blocks) == 0 {
		return nil
	}

	labelBlocks := FindBlocksWithLabel(blocks, SubtotalLabels)
	var candidates []entity.FieldCandidate

	for _, lb := range labelBlocks {
		norm := NormalizeText(lb.Text)
		if raws := ExtractAmountsRelaxed(norm); len(raws) > 0 {
			if v, ok := ParseAmount(raws[0]); ok && v > 0 {
				candidates = append(candidates, amountCandidate(constants.FieldAmountSubtotal, raws[0], v, lb, entity.TierLabelStrict, 0.90))
				break
			}
		}
		nb, ok := FindCandidateNear(lb, blocks, 500, true)
		if ok {
			if raw, v, found := firstAmount(nb.Text); found && v > 0 {
				candidates = append(candidates, amountCandidate(constants.FieldAmountSubtotal, raw, v, nb, entity.TierLabelStrict, 0.85))
				break
			}
		}
	}

	if len(candidates) == 0 && totalAmount != nil && *totalAmount > 0 {
		for _, b := range blocks {
			norm := NormalizeText(b.Text)
			for _, raw := range ExtractAmountsRelaxed(norm) {
				v, ok := ParseAmount(raw)
				if !ok || v <= 0 || v >= *totalAmount {
					continue
				}
				ratio := v / *totalAmount
				if ratio < minSubtotalRatio || ratio > maxSubtotalRatio {
					continue
				}
				candidates = append(candidates, amountCandidate(constants.FieldAmountSubtotal, raw, v, b, entity.TierGlobalRelaxed, 0.65))
			}
		}
	}

	return candidates
}

func firstAmount(text string) (string, float64, bool) {
	norm := NormalizeText(text)
	if raw, ok := ExtractAmountStrict(norm); ok {
		if v, ok := ParseAmount(raw); ok {
			return raw, v, true
		}
	}
	if raws := ExtractAmountsRelaxed(norm); len(raws) > 0 {
		if v, ok := ParseAmount(raws[0]); ok {
			return raws[0], v, true
		}
	}
	return "", 0, false
}

func amountCandidate(field constants.FieldName, raw string, v float64, block entity.OCRBlock, tier entity.StrategyTier, base float64) entity.FieldCandidate {
	val := v
	b := block
	return entity.FieldCandidate{
		Field:       field,
		RawText:     strings.TrimSpace(raw),
		Value:       strings.TrimSpace(raw),
		Amount:      &val,
		SourceBlock: &b,
		Tier:        tier,
		BaseConf:    base,
	}
}
