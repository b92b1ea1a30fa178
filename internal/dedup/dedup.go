package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Sundramrai3691/ReXcan/internal/entity"
	"github.com/Sundramrai3691/ReXcan/internal/heuristics"
)

// Identity is the four-field fingerprint a record deduplicates on.
// All four must be present for hashing; a record missing any of them
// can be neither a duplicate nor deduplicated against.
type Identity struct {
	VendorID    string
	InvoiceID   string
	TotalAmount *float64
	InvoiceDate string
	JobID       uuid.UUID
}

func (id Identity) complete() bool {
	return id.VendorID != "" && id.InvoiceID != "" && id.TotalAmount != nil && id.InvoiceDate != ""
}

// Hash returns the exact-duplicate fingerprint, or empty when any
// identity field is missing.
func Hash(id Identity) string {
	if !id.complete() {
		return ""
	}
	s := id.VendorID + "|" + id.InvoiceID + "|" + formatAmount(*id.TotalAmount) + "|" + id.InvoiceDate
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// FuzzyHash buckets near-identical records: the amount is rounded to
// tolerance and the invoice ID is case- and space-insensitive.
func FuzzyHash(id Identity, tolerance float64) string {
	if !id.complete() || tolerance <= 0 {
		return ""
	}
	rounded := math.Round(*id.TotalAmount/tolerance) * tolerance
	normID := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(id.InvoiceID)), " ", "")
	s := fmt.Sprintf("%s|%s|%.2f|%s", id.VendorID, normID, rounded, id.InvoiceDate)
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Result is the full dedupe verdict for one record.
type Result struct {
	Hash           string
	IsDuplicate    bool
	IsNearDup      bool
	NearDuplicates []entity.NearDuplicate
}

// Engine detects exact and near duplicates against already-stored
// records.
type Engine struct {
	threshold float64
	maxNear   int
	logger    *slog.Logger
}

// NewEngine builds an engine. threshold is the inclusive similarity
// floor for near-duplicates; maxNear caps the reported list.
func NewEngine(threshold float64, maxNear int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if maxNear <= 0 {
		maxNear = 5
	}
	return &Engine{threshold: threshold, maxNear: maxNear, logger: logger}
}

// Check computes the verdict for one record. existingHashes is the set
// of stored exact hashes; existing holds stored identities for the
// near-duplicate scan. An exact duplicate short-circuits the fuzzy
// scan.
func (e *Engine) Check(id Identity, existingHashes map[string]bool, existing []Identity) Result {
	res := Result{Hash: Hash(id)}
	if res.Hash == "" {
		return res
	}
	if existingHashes[res.Hash] {
		res.IsDuplicate = true
		e.logger.Info("dedup.exact_duplicate", "invoice_id", id.InvoiceID, "vendor_id", id.VendorID)
		return res
	}

	current := comparisonString(id)
	for _, ex := range existing {
		if !ex.complete() {
			continue
		}
		if ex.VendorID == id.VendorID && ex.InvoiceID == id.InvoiceID &&
			*ex.TotalAmount == *id.TotalAmount && ex.InvoiceDate == id.InvoiceDate {
			continue
		}
		sim := heuristics.SimilarityRatio(current, comparisonString(ex))
		if sim >= e.threshold {
			res.NearDuplicates = append(res.NearDuplicates, entity.NearDuplicate{
				JobID:      ex.JobID,
				Similarity: sim,
			})
		}
	}

	sort.SliceStable(res.NearDuplicates, func(i, j int) bool {
		return res.NearDuplicates[i].Similarity > res.NearDuplicates[j].Similarity
	})
	if len(res.NearDuplicates) > e.maxNear {
		res.NearDuplicates = res.NearDuplicates[:e.maxNear]
	}
	res.IsNearDup = len(res.NearDuplicates) > 0

	if res.IsNearDup {
		e.logger.Info("dedup.near_duplicates",
			"invoice_id", id.InvoiceID,
			"count", len(res.NearDuplicates),
			"best", res.NearDuplicates[0].Similarity,
		)
	}
	return res
}

func comparisonString(id Identity) string {
	return strings.ToLower(fmt.Sprintf("%s %s %s %s",
		id.VendorID, id.InvoiceID, formatAmount(*id.TotalAmount), id.InvoiceDate))
}
