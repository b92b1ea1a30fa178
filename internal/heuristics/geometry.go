package heuristics

import (
	"math"

	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

// FindLabelBlocks returns the blocks whose text matches any of the given
// labels. strictThreshold is the fuzzy similarity floor (0-100).
func FindLabelBlocks(blocks []entity.OCRBlock, labels []string, threshold float64) []entity.OCRBlock {
	var out []entity.OCRBlock
	for _, b := range blocks {
		for _, label := range labels {
			if LabelMatches(b.Text, label, threshold) {
				out = append(out, b)
				break
			}
		}
	}
	return out
}

// FindCandidateNear picks the candidate block geometrically closest to
// the label block. Candidates to the left of the label are heavily
// penalized when preferRight is set, and candidates more than two label
// heights off the label's line get a smaller penalty. A candidate is
// accepted only when its penalized distance stays under maxPx.
func FindCandidateNear(label entity.OCRBlock, candidates []entity.OCRBlock, maxPx float64, preferRight bool) (entity.OCRBlock, bool) {
	lcx, lcy := label.CenterX(), label.CenterY()
	lh := label.Height()

	var best entity.OCRBlock
	bestScore := math.Inf(1)
	found := false

	for _, c := range candidates {
		if c.BBox == label.BBox && c.Text == label.Text {
			continue
		}
		dx := c.CenterX() - lcx
		dy := c.CenterY() - lcy
		score := math.Hypot(dx, dy)
		if preferRight && dx < -10 {
			score += 10000
		}
		if math.Abs(dy) > lh*2 {
			score += 500
		}
		if score < bestScore {
			bestScore = score
			best = c
			found = true
		}
	}

	if !found || bestScore >= maxPx {
		return entity.OCRBlock{}, false
	}
	return best, true
}

// TopFraction reports how far down the page a block sits, 0 at the top.
func TopFraction(b entity.OCRBlock, pageHeight float64) float64 {
	if pageHeight <= 0 {
		return 0
	}
	return b.CenterY() / pageHeight
}

// InTopRegion reports whether the block's center lies in the top frac of
// the page.
func InTopRegion(b entity.OCRBlock, pageHeight, frac float64) bool {
	return TopFraction(b, pageHeight) <= frac
}

// RightFraction reports how far right a block's center sits, assuming
// the page width spans the max x2 seen across blocks.
func RightFraction(b entity.OCRBlock, pageWidth float64) float64 {
	if pageWidth <= 0 {
		return 0
	}
	return b.CenterX() / pageWidth
}

// PageWidth estimates page width from the rightmost block edge.
func PageWidth(blocks []entity.OCRBlock) float64 {
	maxX := 0.0
	for _, b := range blocks {
		if b.BBox[2] > maxX {
			maxX = b.BBox[2]
		}
	}
	if maxX <= 0 {
		return 1000
	}
	return maxX
}
