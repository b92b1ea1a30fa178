package heuristics

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

var (
	reInvoiceIDStrict = regexp.MustCompile(`(?i)\b(?:INV(?:O?ICE)?[-\s#:]*\d{2,}|[A-Z]{2,4}[-/]\d{2,6}\b|[A-Z0-9]{5,}\b)`)

	reInvoiceIDRelaxed = regexp.MustCompile(`(?i)\b[A-Z0-9][A-Z0-9\-_/]{4,}\b`)

	reInvoiceIDInline = regexp.MustCompile(`(?i)(?:invoice\s*(?:no|number|#|id)[:\s]+)([A-Z0-9\-/]{4,50})`)

	reUpperAlnum = regexp.MustCompile(`[A-Z0-9]{3,}`)
	reNonWord    = regexp.MustCompile(`\W`)
	reDigit      = regexp.MustCompile(`\d`)
)

// ExtractInvoiceID finds the invoice identifier. Tiers, best first:
// label anchor with strict pattern, label anchor with relaxed pattern,
// global strict scan, then a top-right positional scan with the relaxed
// pattern. The first tier that yields a candidate wins.
func ExtractInvoiceID(blocks []entity.OCRBlock) []entity.FieldCandidate {
	if len(blocks) == 0 {
		return nil
	}

	labelBlocks := FindBlocksWithLabel(blocks, InvoiceIDLabels)
	var candidates []entity.FieldCandidate

	// Tier 1: label anchors. Same-block inline pattern first, then the
	// nearest block to the right or below.
	for _, lb := range labelBlocks {
		norm := NormalizeText(lb.Text)
		if m := reInvoiceIDInline.FindStringSubmatch(norm); m != nil {
			id := strings.TrimSpace(m[1])
			if plausibleIDLength(id) {
				candidates = append(candidates, idCandidate(id, lb, entity.TierLabelStrict, 0.95))
				break
			}
		}

		nb, ok := FindCandidateNear(lb, blocks, 800, true)
		if !ok {
			continue
		}
		s := NormalizeText(nb.Text)
		if m := reInvoiceIDStrict.FindString(s); m != "" {
			id := strings.TrimSpace(m)
			if plausibleIDLength(id) {
				candidates = append(candidates, idCandidate(id, nb, entity.TierLabelStrict, 0.90))
				break
			}
		}
		if m := reInvoiceIDRelaxed.FindString(s); m != "" && reUpperAlnum.MatchString(strings.ToUpper(m)) {
			id := strings.TrimSpace(m)
			if len(reNonWord.ReplaceAllString(id, "")) >= 5 {
				candidates = append(candidates, idCandidate(id, nb, entity.TierLabelRelaxed, 0.75))
				break
			}
		}
	}

	// Tier 2: global strict scan.
	if len(candidates) == 0 {
		for _, b := range blocks {
			s := NormalizeText(b.Text)
			if m := reInvoiceIDStrict.FindString(s); m != "" {
				id := strings.TrimSpace(m)
				if plausibleIDLength(id) {
					candidates = append(candidates, idCandidate(id, b, entity.TierGlobalStrict, 0.80))
					break
				}
			}
		}
	}

	// Tier 3: top-right positional scan with the relaxed pattern. The
	// candidate must carry a digit and at least five word characters.
	if len(candidates) == 0 {
		tr := make([]entity.OCRBlock, len(blocks))
		copy(tr, blocks)
		sort.SliceStable(tr, func(i, j int) bool {
			if tr[i].BBox[1] != tr[j].BBox[1] {
				return tr[i].BBox[1] < tr[j].BBox[1]
			}
			return tr[i].BBox[0] > tr[j].BBox[0]
		})
		if len(tr) > 20 {
			tr = tr[:20]
		}
		for _, b := range tr {
			s := NormalizeText(b.Text)
			if m := reInvoiceIDRelaxed.FindString(s); m != "" {
				id := strings.TrimSpace(m)
				if reDigit.MatchString(id) && len(reNonWord.ReplaceAllString(id, "")) >= 5 {
					candidates = append(candidates, idCandidate(id, b, entity.TierPositional, 0.65))
					break
				}
			}
		}
	}

	return candidates
}

func plausibleIDLength(id string) bool {
	return len(id) >= 4 && len(id) <= 50
}

func idCandidate(id string, block entity.OCRBlock, tier entity.StrategyTier, base float64) entity.FieldCandidate {
	b := block
	return entity.FieldCandidate{
		Field:       constants.FieldInvoiceID,
		RawText:     id,
		Value:       id,
		SourceBlock: &b,
		Tier:        tier,
		BaseConf:    base,
	}
}

// InvoiceIDDigitSet collects the numeric identities an extracted
// invoice ID can take, used to keep the ID out of amount candidates.
// Long standalone digit runs near ID labels and bare 7-12 digit blocks
// in the top band of the page are included.
func InvoiceIDDigitSet(blocks []entity.OCRBlock, invoiceID string) map[string]bool {
	set := make(map[string]bool)
	if invoiceID != "" {
		digits := reNonDigit.ReplaceAllString(invoiceID, "")
		if digits != "" {
			set[digits] = true
			set[strings.TrimLeft(digits, "0")] = true
		}
	}
	for _, b := range blocks {
		lower := strings.ToLower(NormalizeText(b.Text))
		if strings.Contains(lower, "invoice no") || strings.Contains(lower, "invoice number") ||
			strings.Contains(lower, "invoice #") || strings.Contains(lower, "inv no") ||
			strings.Contains(lower, "inv #") {
			for _, num := range reLongDigits.FindAllString(b.Text, -1) {
				if len(num) >= 7 {
					set[num] = true
				}
			}
		}
		if b.BBox[1] < 300 {
			clean := strings.TrimSpace(b.Text)
			if reBareDigits.MatchString(clean) {
				set[clean] = true
			}
		}
	}
	delete(set, "")
	return set
}

var (
	reNonDigit   = regexp.MustCompile(`\D`)
	reLongDigits = regexp.MustCompile(`\b\d{6,12}\b`)
	reBareDigits = regexp.MustCompile(`^\d{7,12}$`)
)
