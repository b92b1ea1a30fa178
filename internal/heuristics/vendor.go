package heuristics

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

var (
	reVendorPrefix = regexp.MustCompile(`(?i)^(bill\s*to|from|vendor|supplier|empresa|fornecedor|emitente|company|business|seller):?\s*`)

	companyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)([A-Z][A-Za-z\s&,.-]{5,50}?\s+(?:Ltd|Limited|Inc|Incorporated|LLC|Corp|Corporation|SA|S\.A\.|GmbH|AG|BV|Pty))\b`),
		regexp.MustCompile(`(?i)([A-Z][A-Za-z\s&,.-]{5,50}?\s+(?:Company|Co\.|Co|Trading|Business|Group))\b`),
	}

	reEmailDomain = regexp.MustCompile(`@([A-Za-z0-9.-]+\.[A-Za-z]{2,})`)
	reVendorNoise = regexp.MustCompile(`\b(pvt|ltd|private|inc|co|company|llc|corp|corporation)\b\.?`)
	reNonAlnumSp  = regexp.MustCompile(`[^a-z0-9\s]`)

	companySuffixes  = []string{"ltd", "inc", "llc", "corp", "company", "co"}
	vendorSkipTokens = []string{"@", "(", ")", "phone", "email", "address", "att:", "po"}
	vendorStopMarks  = []string{"Att:", "Phone", "Email", "@", "(", "PO", "Invoice"}
)

// NormalizeVendorName strips legal suffixes and punctuation for
// matching against the canonical vendor table.
func NormalizeVendorName(s string) string {
	s = strings.ToLower(NormalizeText(s))
	s = reVendorNoise.ReplaceAllString(s, "")
	s = reNonAlnumSp.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// ReconstructText rebuilds page text from blocks, grouping blocks into
// lines by vertical proximity and ordering each line left to right.
func ReconstructText(blocks []entity.OCRBlock) string {
	if len(blocks) == 0 {
		return ""
	}
	sorted := make([]entity.OCRBlock, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].BBox[1] != sorted[j].BBox[1] {
			return sorted[i].BBox[1] < sorted[j].BBox[1]
		}
		return sorted[i].BBox[0] < sorted[j].BBox[0]
	})

	const lineThreshold = 25.0
	var lines [][]entity.OCRBlock
	var current []entity.OCRBlock
	currentY := 0.0
	haveY := false

	for _, b := range sorted {
		y := b.CenterY()
		if !haveY || absf(y-currentY) < lineThreshold {
			current = append(current, b)
			currentY = y
			haveY = true
		} else {
			lines = append(lines, current)
			current = []entity.OCRBlock{b}
			currentY = y
		}
	}
	if len(current) > 0 {
		lines = append(lines, current)
	}

	var out []string
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].BBox[0] < line[j].BBox[0] })
		parts := make([]string, 0, len(line))
		for _, b := range line {
			if t := strings.TrimSpace(b.Text); t != "" {
				parts = append(parts, t)
			}
		}
		if s := strings.Join(parts, " "); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n")
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// ExtractVendorName finds the issuing company. Tiers: blocks near a
// vendor label, company-suffix patterns over the reconstructed page
// text, capitalized phrases in the top-left region, any capitalized
// multi-word block in the top band, and finally an email-domain match.
func ExtractVendorName(blocks []entity.OCRBlock) []entity.FieldCandidate {
	if len(blocks) == 0 {
		return nil
	}

	// Tier 1: vendor label proximity, assembling at most two clean
	// blocks and trimming address or contact tails.
	if name, ok := vendorFromLabels(blocks); ok {
		return []entity.FieldCandidate{vendorCandidate(name, entity.TierLabelStrict, 0.85)}
	}

	// Tier 2: company suffix patterns over reconstructed text.
	fullText := ReconstructText(blocks)
	for _, pat := range companyPatterns {
		if m := pat.FindStringSubmatch(fullText); m != nil {
			name := strings.TrimSpace(m[1])
			if len(name) > 5 {
				return []entity.FieldCandidate{vendorCandidate(name, entity.TierGlobalStrict, 0.80)}
			}
		}
	}

	// Tier 3: top-left capitalized phrases.
	if cand, ok := vendorFromTopLeft(blocks); ok {
		return []entity.FieldCandidate{cand}
	}

	// Tier 4: first capitalized multi-word block in the top band.
	topBlocks := sortByY(blocks)
	if len(topBlocks) > 30 {
		topBlocks = topBlocks[:30]
	}
	for _, b := range topBlocks {
		text := strings.TrimSpace(b.Text)
		if len(text) > 8 && startsUpper(text) && len(strings.Fields(text)) >= 2 {
			return []entity.FieldCandidate{vendorCandidate(text, entity.TierPositional, 0.65)}
		}
	}

	// Tier 5: a block echoing the domain of an email address.
	topLeft := sortByYThenX(blocks)
	if len(topLeft) > 10 {
		topLeft = topLeft[:10]
	}
	for _, b := range topLeft {
		m := reEmailDomain.FindStringSubmatch(b.Text)
		if m == nil {
			continue
		}
		domain := strings.SplitN(m[1], ".", 2)[0]
		if len(domain) <= 3 {
			continue
		}
		limit := len(topLeft)
		if limit > 5 {
			limit = 5
		}
		for _, nb := range topLeft[:limit] {
			if strings.Contains(strings.ToLower(nb.Text), strings.ToLower(domain)) {
				return []entity.FieldCandidate{vendorCandidate(strings.TrimSpace(nb.Text), entity.TierPositional, 0.60)}
			}
		}
	}

	return nil
}

func vendorFromLabels(blocks []entity.OCRBlock) (string, bool) {
	candidates := FindLabelProximity(blocks, VendorLabels, 150)
	if len(candidates) == 0 {
		return "", false
	}
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}

	var parts []string
	seen := make(map[string]bool)
	for _, pc := range candidates {
		text := strings.TrimSpace(pc.Block.Text)
		if text == "" || seen[text] {
			continue
		}
		lower := strings.ToLower(text)
		skip := false
		for _, tok := range vendorSkipTokens {
			if strings.Contains(lower, tok) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		parts = append(parts, text)
		seen[text] = true
		if len(parts) >= 2 {
			break
		}
	}
	if len(parts) == 0 {
		return "", false
	}

	name := strings.Join(parts, " ")
	name = reVendorPrefix.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), " ")
	for _, sep := range vendorStopMarks {
		if i := strings.Index(name, sep); i >= 0 {
			name = strings.TrimSpace(name[:i])
			break
		}
	}
	if words := strings.Fields(name); len(name) > 80 && len(words) > 8 {
		name = strings.Join(words[:8], " ")
	}
	if len(name) > 3 && len(name) < 100 {
		return name, true
	}
	return "", false
}

func vendorFromTopLeft(blocks []entity.OCRBlock) (entity.FieldCandidate, bool) {
	topLeft := sortByYThenX(blocks)
	if len(topLeft) > 15 {
		topLeft = topLeft[:15]
	}

	type scored struct {
		text  string
		conf  float64
		order int
	}
	var found []scored

	for i, b := range topLeft {
		text := strings.TrimSpace(b.Text)
		if hasCompanySuffix(text) {
			found = append(found, scored{text, 0.85, i})
		}
		words := strings.Fields(text)
		if len(words) >= 2 && len(text) > 5 && capsFraction(words) >= 0.6 {
			conf := 0.70 + minf(float64(len(text))/100, 0.1)
			found = append(found, scored{text, conf, i})
		}
	}

	// Pairs of adjacent top blocks often split one letterhead line.
	for i := 0; i < len(topLeft) && i < 2; i++ {
		for j := i + 1; j < len(topLeft) && j < i+3; j++ {
			var parts []string
			for _, b := range topLeft[i : j+1] {
				parts = append(parts, strings.TrimSpace(b.Text))
			}
			combined := strings.Join(parts, " ")
			if len(combined) <= 5 {
				continue
			}
			words := strings.Fields(combined)
			if capsFraction(words) < 0.5 {
				continue
			}
			if hasCompanySuffix(combined) {
				found = append(found, scored{combined, 0.90, i})
			} else {
				found = append(found, scored{combined, 0.75, i})
			}
		}
	}

	if len(found) == 0 {
		return entity.FieldCandidate{}, false
	}
	sort.SliceStable(found, func(a, b int) bool {
		if found[a].conf != found[b].conf {
			return found[a].conf > found[b].conf
		}
		return found[a].order < found[b].order
	})
	return vendorCandidate(found[0].text, entity.TierPositional, found[0].conf), true
}

func vendorCandidate(name string, tier entity.StrategyTier, base float64) entity.FieldCandidate {
	return entity.FieldCandidate{
		Field:    constants.FieldVendorName,
		RawText:  name,
		Value:    name,
		Tier:     tier,
		BaseConf: base,
	}
}

func hasCompanySuffix(text string) bool {
	lower := strings.ToLower(text)
	for _, s := range companySuffixes {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func capsFraction(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	caps := 0
	for _, w := range words {
		r := []rune(w)
		if len(r) > 0 && unicode.IsUpper(r[0]) {
			caps++
		}
	}
	return float64(caps) / float64(len(words))
}

func startsUpper(s string) bool {
	r := []rune(s)
	return len(r) > 0 && unicode.IsUpper(r[0])
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func sortByY(blocks []entity.OCRBlock) []entity.OCRBlock {
	out := make([]entity.OCRBlock, len(blocks))
	copy(out, blocks)
	sort.SliceStable(out, func(i, j int) bool { return out[i].BBox[1] < out[j].BBox[1] })
	return out
}

func sortByYThenX(blocks []entity.OCRBlock) []entity.OCRBlock {
	out := make([]entity.OCRBlock, len(blocks))
	copy(out, blocks)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BBox[1] != out[j].BBox[1] {
			return out[i].BBox[1] < out[j].BBox[1]
		}
		return out[i].BBox[0] < out[j].BBox[0]
	})
	return out
}
