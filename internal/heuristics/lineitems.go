package heuristics

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

var (
	tableKeywords = []string{
		"item", "description", "qty", "quantity", "price", "unit", "amount", "total",
		"product", "service", "line", "charge",
	}

	nonItemPhrases = []string{
		"sales", "tax", "subtotal", "total", "amount", "payment", "terms",
		"many thanks", "thank you", "thanks for",
		"to be received", "within", "days",
		"please find", "cost-breakdown", "work completed", "earliest convenience",
		"do not hesitate", "contact me", "questions", "dear", "ms.", "mr.",
		"your name", "sincerely", "regards", "best regards",
		"look forward", "doing business", "due course", "custom",
		"find below", "make payment", "contact", "hesitate",
		"for your business", "for business", "your business",
	}

	reNumberToken = regexp.MustCompile(`\d+[.,]?\d*`)
)

// DetectTableRegion locates the line-item table by finding header
// keyword blocks and extending their bounding box halfway down the
// page.
func DetectTableRegion(blocks []entity.OCRBlock) (entity.Region, bool) {
	var headers []entity.OCRBlock
	for _, b := range blocks {
		lower := strings.ToLower(NormalizeText(b.Text))
		for _, kw := range tableKeywords {
			if strings.Contains(lower, kw) {
				headers = append(headers, b)
				break
			}
		}
	}
	if len(headers) == 0 {
		return entity.Region{}, false
	}

	r := entity.Region{
		X0: headers[0].BBox[0], Y0: headers[0].BBox[1],
		X1: headers[0].BBox[2], Y1: headers[0].BBox[3],
	}
	for _, h := range headers[1:] {
		if h.BBox[0] < r.X0 {
			r.X0 = h.BBox[0]
		}
		if h.BBox[1] < r.Y0 {
			r.Y0 = h.BBox[1]
		}
		if h.BBox[2] > r.X1 {
			r.X1 = h.BBox[2]
		}
		if h.BBox[3] > r.Y1 {
			r.Y1 = h.BBox[3]
		}
	}

	pageHeight := entity.PageHeight(blocks)
	r.Y1 += pageHeight * 0.5
	if r.Y1 > pageHeight {
		r.Y1 = pageHeight
	}
	return r, true
}

// ExtractLineItems groups table-region blocks into rows by vertical
// proximity and reads each row as description followed by numeric
// columns. Rows whose description matches footer or pleasantry text
// are dropped.
func ExtractLineItems(blocks []entity.OCRBlock) []entity.LineItem {
	tableBlocks := blocks
	if region, ok := DetectTableRegion(blocks); ok {
		tableBlocks = nil
		for _, b := range blocks {
			inX := (region.X0 <= b.BBox[0] && b.BBox[0] <= region.X1) ||
				(region.X0 <= b.BBox[2] && b.BBox[2] <= region.X1)
			inY := (region.Y0 <= b.BBox[1] && b.BBox[1] <= region.Y1) ||
				(region.Y0 <= b.BBox[3] && b.BBox[3] <= region.Y1)
			if inX && inY {
				tableBlocks = append(tableBlocks, b)
			}
		}
	}

	rows := groupRows(tableBlocks, 20)

	var items []entity.LineItem
	for _, row := range rows {
		if isHeaderRow(row) && len(rows) > 3 {
			continue
		}

		sorted := make([]entity.OCRBlock, len(row))
		copy(sorted, row)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].BBox[0] < sorted[j].BBox[0] })

		var descParts []string
		for _, b := range sorted[:len(sorted)/2] {
			descParts = append(descParts, b.Text)
		}
		description := strings.TrimSpace(strings.Join(descParts, " "))

		var values []float64
		for _, b := range sorted {
			for _, tok := range reNumberToken.FindAllString(NormalizeText(b.Text), -1) {
				if v, ok := ParseAmount(tok); ok && v > 0 {
					values = append(values, v)
				}
			}
		}

		var quantity, unitPrice, total *float64
		switch {
		case len(values) >= 3:
			quantity, unitPrice, total = &values[0], &values[1], &values[2]
		case len(values) == 2:
			unitPrice, total = &values[0], &values[1]
		case len(values) == 1:
			total = &values[0]
		}

		if description == "" || description == "-" || description == "--" ||
			strings.EqualFold(description, "n/a") {
			continue
		}
		lower := strings.ToLower(description)
		skip := false
		for _, phrase := range nonItemPhrases {
			if strings.Contains(lower, phrase) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		if quantity == nil && unitPrice == nil && total == nil {
			continue
		}
		if len(description) < 3 {
			continue
		}

		items = append(items, entity.LineItem{
			Description: description,
			Quantity:    quantity,
			UnitPrice:   unitPrice,
			Total:       total,
		})
	}

	return items
}

func groupRows(blocks []entity.OCRBlock, threshold float64) [][]entity.OCRBlock {
	sorted := make([]entity.OCRBlock, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].BBox[1] != sorted[j].BBox[1] {
			return sorted[i].BBox[1] < sorted[j].BBox[1]
		}
		return sorted[i].BBox[0] < sorted[j].BBox[0]
	})

	var rows [][]entity.OCRBlock
	var current []entity.OCRBlock
	currentY := 0.0
	haveY := false

	for _, b := range sorted {
		y := b.CenterY()
		if !haveY || absf(y-currentY) < threshold {
			current = append(current, b)
			currentY = y
			haveY = true
		} else {
			rows = append(rows, current)
			current = []entity.OCRBlock{b}
			currentY = y
		}
	}
	if len(current) > 0 {
		rows = append(rows, current)
	}
	return rows
}

func isHeaderRow(row []entity.OCRBlock) bool {
	var parts []string
	for _, b := range row {
		parts = append(parts, b.Text)
	}
	text := strings.ToLower(strings.Join(parts, " "))
	for _, kw := range []string{"item", "description", "qty", "quantity", "price", "amount", "total"} {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
