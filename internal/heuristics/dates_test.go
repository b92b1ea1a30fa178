package heuristics

import (
	"testing"
	"time"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-11-01", "2024-11-01", true},
		{"11/01/2024", "2024-11-01", true},
		{"23/01/2019", "2019-01-23", true}, // day first when first part > 12
		{"01.02.2024", "2024-01-02", true},
		{"1/2/24", "2024-01-02", true},
		{"Nov 1, 2024", "2024-11-01", true},
		{"March 15, 2050", "2050-03-15", true},
		{"15 Mar 2050", "2050-03-15", true},
		{"13/13/2024", "", false},
		{"not a date", "", false},
		{"2024-02-30", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseDate(tt.in)
		if ok != tt.ok {
			t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
		if ok && got.Format("2006-01-02") != tt.want {
			t.Fatalf("ParseDate(%q) = %s, want %s", tt.in, got.Format("2006-01-02"), tt.want)
		}
	}
}

func TestExtractDate_LabelBeatsGlobal(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	blocks := []entity.OCRBlock{
		block("Invoice Date:", 50, 100, 180, 120, 0.95),
		block("2024-11-01", 200, 100, 300, 120, 0.95),
		block("2019-05-05", 50, 800, 150, 820, 0.9),
	}

	candidates := ExtractDate(blocks, constants.FieldInvoiceDate, now)
	if len(candidates) == 0 {
		t.Fatal("expected a date candidate")
	}
	if candidates[0].Value != "2024-11-01" {
		t.Fatalf("best = %s, want labeled date 2024-11-01", candidates[0].Value)
	}
	if candidates[0].Tier != entity.TierLabelStrict {
		t.Fatalf("tier = %s, want label-strict", candidates[0].Tier)
	}
}

func TestExtractDate_RejectsOutOfRange(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	candidates := ExtractDate([]entity.OCRBlock{
		block("Date: 1997-01-01", 50, 100, 200, 120, 0.95),
	}, constants.FieldInvoiceDate, now)
	if len(candidates) != 0 {
		t.Fatalf("pre-2000 date must be rejected, got %v", candidates[0].Value)
	}

	candidates = ExtractDate([]entity.OCRBlock{
		block("Date: 2090-01-01", 50, 100, 200, 120, 0.95),
	}, constants.FieldInvoiceDate, now)
	if len(candidates) != 0 {
		t.Fatalf("far-future date must be rejected, got %v", candidates[0].Value)
	}
}

func TestExtractDate_DueDatePrefersLater(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	candidates := ExtractDate([]entity.OCRBlock{
		block("2024-11-01", 50, 100, 150, 120, 0.9),
		block("2024-12-01", 50, 800, 150, 820, 0.9),
	}, constants.FieldDueDate, now)
	if len(candidates) == 0 {
		t.Fatal("expected candidates")
	}
	if candidates[0].Value != "2024-12-01" {
		t.Fatalf("due date pick = %s, want the bottom date 2024-12-01", candidates[0].Value)
	}
}
