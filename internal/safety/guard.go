package safety

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

// File intake bounds.
const (
	MaxFileSize = 10 * 1024 * 1024
)

var (
	allowedExtensions = map[string]bool{".pdf": true, ".png": true, ".jpg": true, ".jpeg": true}
	allowedMIMETypes  = map[string]bool{
		"application/pdf": true,
		"image/png":       true,
		"image/jpeg":      true,
		"image/jpg":       true,
	}

	reUnsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// Guard enforces intake validation, the per-job external call budget,
// and PII hygiene. One Guard is created per job; the call counter is
// not shared across documents.
type Guard struct {
	maxLLMCalls int
	stripPII    bool
	logger      *slog.Logger

	mu       sync.Mutex
	llmCalls int
}

// NewGuard builds a per-job guard.
func NewGuard(maxLLMCalls int, stripPII bool, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{maxLLMCalls: maxLLMCalls, stripPII: stripPII, logger: logger}
}

// ValidateFile checks size, extension, and MIME type of an upload.
func (g *Guard) ValidateFile(filename string, size int64, mimeType string) error {
	if size > MaxFileSize {
		return fmt.Errorf("file too large: %.1fMB (max %dMB)", float64(size)/1024/1024, MaxFileSize/1024/1024)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("invalid file type: %s", ext)
	}
	if mimeType != "" && !allowedMIMETypes[mimeType] {
		return fmt.Errorf("invalid MIME type: %s", mimeType)
	}
	return nil
}

// SanitizeFilename strips path components and unsafe characters.
func (g *Guard) SanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	filename = reUnsafeFilename.ReplaceAllString(filename, "_")
	if len(filename) > 255 {
		ext := filepath.Ext(filename)
		name := strings.TrimSuffix(filename, ext)
		if len(name) > 250 {
			name = name[:250]
		}
		filename = name + ext
	}
	return filename
}

// SafeFilename derives a collision-free storage name from the content
// hash, keeping only the original extension.
func (g *Guard) SafeFilename(originalName, contentHash string) string {
	if contentHash == "" {
		sum := sha256.Sum256([]byte(originalName + time.Now().Format(time.RFC3339Nano)))
		contentHash = hex.EncodeToString(sum[:])[:16]
	}
	return contentHash + strings.ToLower(filepath.Ext(originalName))
}

// HashBytes returns the hex SHA-256 of content.
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// AllowLLMCall consumes one unit of the per-job external budget.
// Returns false once the budget is spent.
func (g *Guard) AllowLLMCall() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.llmCalls >= g.maxLLMCalls {
		g.logger.Warn("safety.llm_budget_exhausted", "calls", g.llmCalls, "max", g.maxLLMCalls)
		return false
	}
	g.llmCalls++
	return true
}

// LLMCallsUsed reports the consumed budget.
func (g *Guard) LLMCallsUsed() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.llmCalls
}

// ShouldStripPII reports whether document text must be scrubbed before
// leaving the process.
func (g *Guard) ShouldStripPII() bool { return g.stripPII }

// ValidateExtracted runs sanity checks over a finished record and
// returns human-readable warnings. Warnings do not fail the pipeline;
// they feed the review flag and the export gate.
func (g *Guard) ValidateExtracted(x *entity.InvoiceExtract, now time.Time) []string {
	var warnings []string

	if x.TotalAmount != nil {
		if *x.TotalAmount <= 0 {
			warnings = append(warnings, "total amount is zero or negative")
		}
		if *x.TotalAmount > 10_000_000 {
			warnings = append(warnings, "total amount seems unusually high")
		}
	}

	if x.InvoiceDate != nil && *x.InvoiceDate != "" {
		t, err := time.Parse("2006-01-02", *x.InvoiceDate)
		if err != nil {
			warnings = append(warnings, "invalid invoice date format: "+*x.InvoiceDate)
		} else {
			if t.Year() < 2000 {
				warnings = append(warnings, "invoice date is before 2000: "+*x.InvoiceDate)
			}
			if t.After(now.AddDate(3, 0, 0)) {
				warnings = append(warnings, "invoice date is more than 3 years in future: "+*x.InvoiceDate)
			}
		}
	}

	if x.InvoiceID != nil && len(*x.InvoiceID) > 100 {
		warnings = append(warnings, "invoice ID is unusually long")
	}

	return warnings
}
