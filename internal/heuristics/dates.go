package heuristics

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

type datePattern struct {
	re      *regexp.Regexp
	kind    string
	written bool
}

var datePatterns = []datePattern{
	{regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`), "iso", false},
	{regexp.MustCompile(`\b\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}\b`), "numeric", false},
	{regexp.MustCompile(`(?i)\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s+\d{4}\b`), "written_mdy", true},
	{regexp.MustCompile(`(?i)\b\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{4}\b`), "written_dmy", true},
}

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var (
	reNumericDate = regexp.MustCompile(`^(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})$`)
	reWrittenMDY  = regexp.MustCompile(`(?i)^([A-Za-z]{3,9})\.?\s+(\d{1,2}),?\s+(\d{4})$`)
	reWrittenDMY  = regexp.MustCompile(`(?i)^(\d{1,2})\s+([A-Za-z]{3,9})\.?\s+(\d{4})$`)
	reMonthWord   = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\b`)
)

// ParseDate converts an OCR date string to a time. Month-first is
// assumed for ambiguous numeric dates; the day-first reading is used
// when the first component cannot be a month.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}

	if m := reNumericDate.FindStringSubmatch(s); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		if y < 100 {
			y += 2000
		}
		month, day := a, b
		if a > 12 && b <= 12 {
			month, day = b, a
		}
		return makeDate(y, month, day)
	}

	if m := reWrittenMDY.FindStringSubmatch(s); m != nil {
		month, ok := monthFromWord(m[1])
		if ok {
			day, _ := strconv.Atoi(m[2])
			y, _ := strconv.Atoi(m[3])
			return makeDate(y, int(month), day)
		}
	}

	if m := reWrittenDMY.FindStringSubmatch(s); m != nil {
		month, ok := monthFromWord(m[2])
		if ok {
			day, _ := strconv.Atoi(m[1])
			y, _ := strconv.Atoi(m[3])
			return makeDate(y, int(month), day)
		}
	}

	return time.Time{}, false
}

// ParseDateLoose scans arbitrary text for the first parseable date.
func ParseDateLoose(text string) (time.Time, bool) {
	for _, p := range datePatterns {
		if m := p.re.FindString(text); m != "" {
			if t, ok := ParseDate(m); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func monthFromWord(w string) (time.Month, bool) {
	w = strings.ToLower(w)
	if len(w) < 3 {
		return 0, false
	}
	m, ok := monthsByPrefix[w[:3]]
	return m, ok
}

func makeDate(y, m, d int) (time.Time, bool) {
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}

type dateCandidate struct {
	iso   string
	block entity.OCRBlock
	tier  entity.StrategyTier
	base  float64
}

// ExtractDate finds the invoice or due date. Dates outside the window
// [2000-01-01, currentYear+5] are rejected as OCR noise. When several
// candidates tie, the invoice date prefers the topmost occurrence and
// the due date prefers the bottommost.
func ExtractDate(blocks []entity.OCRBlock, field constants.FieldName, now time.Time) []entity.FieldCandidate {
	if len(blocks) == 0 {
		return nil
	}

	labels := InvoiceDateLabels
	if field == constants.FieldDueDate {
		labels = DueDateLabels
	}

	minDate := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	maxDate := time.Date(now.Year()+5, 12, 31, 0, 0, 0, 0, time.UTC)
	inWindow := func(t time.Time) bool {
		return !t.Before(minDate) && !t.After(maxDate)
	}

	var labelBlocks []entity.OCRBlock
	for _, b := range blocks {
		norm := NormalizeText(b.Text)
		for _, label := range labels {
			if LabelMatches(norm, label, 80) {
				labelBlocks = append(labelBlocks, b)
				break
			}
		}
	}

	var candidates []dateCandidate

	// Tier 1: date near a label block.
	for _, lb := range labelBlocks {
		c, ok := FindCandidateNear(lb, blocks, 200, true)
		if !ok {
			continue
		}
		matched := false
		for _, p := range datePatterns {
			text := NormalizeText(c.Text)
			if p.written {
				text = c.Text
			}
			m := p.re.FindString(text)
			if m == "" {
				continue
			}
			if t, ok := ParseDate(m); ok && inWindow(t) {
				base := 0.85
				if p.kind == "iso" {
					base = 0.90
				}
				candidates = append(candidates, dateCandidate{t.Format("2006-01-02"), c, entity.TierLabelStrict, base})
				matched = true
				break
			}
		}
		if !matched {
			if t, ok := ParseDateLoose(c.Text); ok && inWindow(t) {
				candidates = append(candidates, dateCandidate{t.Format("2006-01-02"), c, entity.TierLabelRelaxed, 0.80})
			}
		}
	}

	// Tier 2: global pattern scan.
	if len(candidates) == 0 {
		for _, b := range blocks {
			for _, p := range datePatterns {
				text := NormalizeText(b.Text)
				if p.written {
					text = b.Text
				}
				m := p.re.FindString(text)
				if m == "" {
					continue
				}
				if t, ok := ParseDate(m); ok && inWindow(t) {
					base := 0.75
					if p.kind == "iso" {
						base = 0.80
					}
					candidates = append(candidates, dateCandidate{t.Format("2006-01-02"), b, entity.TierGlobalStrict, base})
					break
				}
			}
		}
	}

	// Tier 3: blocks carrying a month name plus digits.
	if len(candidates) == 0 {
		for _, b := range blocks {
			if !reMonthWord.MatchString(b.Text) || !reDigit.MatchString(b.Text) {
				continue
			}
			if t, ok := ParseDateLoose(b.Text); ok && inWindow(t) {
				candidates = append(candidates, dateCandidate{t.Format("2006-01-02"), b, entity.TierGlobalRelaxed, 0.70})
			}
		}
	}

	// Tier 4: any short digit-bearing block that parses as a date.
	if len(candidates) == 0 {
		for _, b := range blocks {
			trimmed := strings.TrimSpace(b.Text)
			if len(trimmed) < 5 || len(trimmed) > 50 || !reDigit.MatchString(trimmed) {
				continue
			}
			if t, ok := ParseDateLoose(trimmed); ok && inWindow(t) {
				candidates = append(candidates, dateCandidate{t.Format("2006-01-02"), b, entity.TierPositional, 0.60})
			}
		}
	}

	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].base != candidates[j].base {
			return candidates[i].base > candidates[j].base
		}
		return candidates[i].block.BBox[1] < candidates[j].block.BBox[1]
	})

	pick := candidates[0]
	if field == constants.FieldDueDate {
		pick = candidates[len(candidates)-1]
	}

	out := make([]entity.FieldCandidate, 0, len(candidates))
	pickBlock := pick.block
	out = append(out, entity.FieldCandidate{
		Field:       field,
		RawText:     pick.block.Text,
		Value:       pick.iso,
		SourceBlock: &pickBlock,
		Tier:        pick.tier,
		BaseConf:    pick.base,
	})
	for _, c := range candidates {
		if c == pick {
			continue
		}
		cb := c.block
		out = append(out, entity.FieldCandidate{
			Field:       field,
			RawText:     c.block.Text,
			Value:       c.iso,
			SourceBlock: &cb,
			Tier:        c.tier,
			BaseConf:    c.base,
		})
	}
	return out
}
