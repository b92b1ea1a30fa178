package canonicalize

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/Sundramrai3691/ReXcan/internal/common"
	"github.com/Sundramrai3691/ReXcan/internal/heuristics"
)

// Vendor is one row of the canonical vendor table.
type Vendor struct {
	CanonicalID string
	Name        string
	Aliases     []string
	TaxID       string
}

// VendorMatch is the outcome of canonicalizing one raw vendor name.
type VendorMatch struct {
	CanonicalID string
	Name        string
	Confidence  float64
	Reason      string
	IsNew       bool
}

var reSlugChars = regexp.MustCompile(`[^a-z0-9]`)
var reSlugRuns = regexp.MustCompile(`_+`)

// VendorCanonicalizer maps raw vendor strings to stable vendor IDs.
// Matching order: exact name, exact alias, fuzzy token-sort against
// names and aliases, then a new-vendor slug as last resort.
type VendorCanonicalizer struct {
	vendors []Vendor
	logger  *slog.Logger
}

// NewVendorCanonicalizer loads the vendor table from csvPath. A
// missing file yields an empty table, not an error: every vendor will
// resolve as new.
func NewVendorCanonicalizer(csvPath string, logger *slog.Logger) (*VendorCanonicalizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	vc := &VendorCanonicalizer{logger: logger}

	if csvPath == "" {
		return vc, nil
	}
	f, err := os.Open(csvPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("canonicalize.vendors_csv_missing", "path", csvPath)
			return vc, nil
		}
		return nil, common.WrapError(err, "opening vendors csv")
	}
	defer f.Close()

	if err := vc.load(f); err != nil {
		return nil, err
	}
	logger.Info("canonicalize.vendors_loaded", "path", csvPath, "count", len(vc.vendors))
	return vc, nil
}

// load reads rows of canonical_id,name,aliases,tax_id with aliases
// pipe-separated.
func (vc *VendorCanonicalizer) load(r io.Reader) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return common.WrapError(err, "reading vendors csv")
		}
		if header {
			header = false
			continue
		}
		if len(row) < 2 {
			continue
		}
		v := Vendor{
			CanonicalID: strings.TrimSpace(row[0]),
			Name:        strings.TrimSpace(row[1]),
		}
		if len(row) > 2 {
			for _, a := range strings.Split(row[2], "|") {
				if a = strings.TrimSpace(a); a != "" {
					v.Aliases = append(v.Aliases, a)
				}
			}
		}
		if len(row) > 3 {
			v.TaxID = strings.TrimSpace(row[3])
		}
		vc.vendors = append(vc.vendors, v)
	}
}

// AddVendor registers a vendor at runtime, used when a new vendor slug
// is promoted to a canonical entry.
func (vc *VendorCanonicalizer) AddVendor(v Vendor) {
	vc.vendors = append(vc.vendors, v)
}

// Canonicalize resolves a raw vendor name to a canonical identity.
func (vc *VendorCanonicalizer) Canonicalize(vendorName string) VendorMatch {
	name := strings.TrimSpace(vendorName)
	if name == "" {
		return VendorMatch{Reason: "empty vendor name"}
	}
	lower := strings.ToLower(name)

	for _, v := range vc.vendors {
		if strings.ToLower(v.Name) == lower {
			return VendorMatch{v.CanonicalID, v.Name, 1.0, "exact match", false}
		}
		for _, alias := range v.Aliases {
			if strings.ToLower(alias) == lower {
				return VendorMatch{v.CanonicalID, v.Name, 0.95, "exact alias match: " + alias, false}
			}
		}
	}

	var best *Vendor
	bestScore := 0.0
	for i := range vc.vendors {
		v := &vc.vendors[i]
		if s := heuristics.TokenSortRatio(v.Name, name); s > bestScore {
			bestScore = s
			best = v
		}
		for _, alias := range v.Aliases {
			if s := heuristics.TokenSortRatio(alias, name); s > bestScore {
				bestScore = s
				best = v
			}
		}
	}

	switch {
	case best != nil && bestScore >= 92:
		return VendorMatch{best.CanonicalID, best.Name, 0.90, "fuzzy match", false}
	case best != nil && bestScore >= 75:
		return VendorMatch{best.CanonicalID, best.Name, 0.70, "fuzzy match suggested", false}
	}

	slug := reSlugChars.ReplaceAllString(lower, "_")
	slug = strings.Trim(reSlugRuns.ReplaceAllString(slug, "_"), "_")
	return VendorMatch{slug, name, 0.50, "new vendor", true}
}
