package entity

import "github.com/Sundramrai3691/ReXcan/constants"

// OCRBlock is a single positioned text fragment produced by an OCR
// collaborator. Blocks are immutable once produced; duplicate text at
// different positions is valid.
type OCRBlock struct {
	Text       string              `json:"text"`
	BBox       [4]float64          `json:"bbox"` // [x0, y0, x1, y1]
	Confidence float64             `json:"confidence"`
	Engine     constants.OCREngine `json:"engine"`
}

// CenterX returns the horizontal center of the block.
func (b OCRBlock) CenterX() float64 { return (b.BBox[0] + b.BBox[2]) / 2 }

// CenterY returns the vertical center of the block.
func (b OCRBlock) CenterY() float64 { return (b.BBox[1] + b.BBox[3]) / 2 }

// Height returns the block height, with a floor so degenerate boxes
// don't break alignment math.
func (b OCRBlock) Height() float64 {
	if h := b.BBox[3] - b.BBox[1]; h > 0 {
		return h
	}
	return 20
}

// Region is an axis-aligned page area.
type Region struct {
	X0, Y0, X1, Y1 float64
}

// PageHeight returns the lowest bottom edge across blocks, used to
// normalize vertical positions. Defaults to 1000 for an empty page.
func PageHeight(blocks []OCRBlock) float64 {
	h := 0.0
	for _, b := range blocks {
		if b.BBox[3] > h {
			h = b.BBox[3]
		}
	}
	if h == 0 {
		return 1000
	}
	return h
}
