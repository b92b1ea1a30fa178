package heuristics

import (
	"testing"

	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  Invoice\n\nNumber  ", "Invoice Number"},
		{"Total Due", "Total Due"},
		{"a—b", "a-b"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.want {
			t.Fatalf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLabelMatches(t *testing.T) {
	tests := []struct {
		text, label string
		want        bool
	}{
		{"Invoice Number: 123", "invoice number", true},
		{"INVOICE-NO", "invoice no", true},       // punctuation folded to spaces
		{"Invoce Number", "invoice number", true}, // OCR typo, fuzzy match
		{"Subtotal", "total geral", false},
		{"Ship To", "invoice number", false},
	}
	for _, tt := range tests {
		if got := LabelMatches(tt.text, tt.label, 80); got != tt.want {
			t.Fatalf("LabelMatches(%q, %q) = %v, want %v", tt.text, tt.label, got, tt.want)
		}
	}
}

func TestFindCandidateNear_PrefersRight(t *testing.T) {
	label := block("Total", 400, 500, 480, 520, 0.9)
	left := block("12.00", 100, 500, 160, 520, 0.9)
	right := block("544.46", 560, 500, 640, 520, 0.9)

	got, ok := FindCandidateNear(label, []entity.OCRBlock{label, left, right}, 600, true)
	if !ok {
		t.Fatal("expected a candidate")
	}
	if got.Text != "544.46" {
		t.Fatalf("picked %q, want the block to the right", got.Text)
	}
}

func TestFindCandidateNear_MaxDistance(t *testing.T) {
	label := block("Total", 50, 50, 120, 70, 0.9)
	far := block("999.99", 50, 2000, 130, 2020, 0.9)

	if _, ok := FindCandidateNear(label, []entity.OCRBlock{label, far}, 200, true); ok {
		t.Fatal("candidate beyond max distance must be rejected")
	}
}

func TestSimilarityRatio(t *testing.T) {
	if got := SimilarityRatio("abc", "abc"); got != 1.0 {
		t.Fatalf("identical strings = %v, want 1.0", got)
	}
	if got := SimilarityRatio("abc", "xyz"); got != 0.0 {
		t.Fatalf("disjoint strings = %v, want 0.0", got)
	}
	mid := SimilarityRatio("invoice 100", "invoice 101")
	if mid <= 0.8 || mid >= 1.0 {
		t.Fatalf("near match = %v, want between 0.8 and 1.0", mid)
	}
}
