package reconcile

import (
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

var reNonDigit = regexp.MustCompile(`\D`)

// Config bounds the trust placed in external model answers.
type Config struct {
	// MaxTotalAmount rejects external totals above this value.
	MaxTotalAmount float64
	// Boost is added to confidence when the external value is adopted.
	Boost float64
	// BoostCap is the ceiling for boosted confidence. External answers
	// never reach the auto-accept band on their own.
	BoostCap float64
}

// DefaultConfig matches production tuning.
func DefaultConfig() Config {
	return Config{MaxTotalAmount: 1_000_000, Boost: 0.2, BoostCap: 0.85}
}

// Reconciler merges heuristic results with external model answers.
// The external answer is advisory: it fills gaps and can replace weak
// heuristic values, but sanity checks always favor keeping the local
// result over adopting a suspicious remote one.
type Reconciler struct {
	cfg    Config
	logger *slog.Logger
}

// New builds a reconciler.
func New(cfg Config, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{cfg: cfg, logger: logger}
}

// ExternalAnswer is one field value proposed by the external model.
type ExternalAnswer struct {
	Value  string
	Amount *float64
	Reason string
}

// Reconcile merges one field. invoiceID is the already-resolved
// document ID, used to reject external totals that echo its digits.
func (r *Reconciler) Reconcile(field constants.FieldName, heuristic entity.ExtractionResult, external *ExternalAnswer, invoiceID string) entity.ExtractionResult {
	if external == nil || (external.Value == "" && external.Amount == nil) {
		return heuristic
	}

	if field == constants.FieldTotalAmount {
		if reject, why := r.rejectTotal(external, invoiceID); reject {
			r.logger.Warn("reconcile.external_total_rejected",
				"field", string(field),
				"value", external.Value,
				"reason", why,
			)
			if heuristic.Found() {
				return heuristic
			}
			return entity.NotFound(field, "external total rejected: "+why)
		}
	}

	// Agreement: keep the heuristic value, credit the agreement.
	if heuristic.Found() && r.agrees(heuristic, external) {
		out := heuristic
		out.Confidence = clamp01(out.Confidence + 0.1)
		out.Reason = out.Reason + " (external agrees)"
		return out
	}

	// Adoption: external fills a gap or replaces a weak local value.
	out := entity.ExtractionResult{
		Field:      field,
		Confidence: math.Min(r.cfg.BoostCap, heuristic.Confidence+r.cfg.Boost),
		Reason:     externalReason(external),
		Source:     constants.SourceLLM,
		Tier:       entity.TierLLM,
	}
	if external.Amount != nil {
		v := *external.Amount
		out.Amount = &v
		s := strconv.FormatFloat(v, 'f', -1, 64)
		out.Value = &s
	} else {
		v := external.Value
		out.Value = &v
	}

	r.logger.Info("reconcile.external_adopted",
		"field", string(field),
		"had_heuristic", heuristic.Found(),
		"confidence", out.Confidence,
	)
	return out
}

// rejectTotal applies the sanity rules for external totals: values
// above the cap, and values whose digits are really the invoice ID.
func (r *Reconciler) rejectTotal(external *ExternalAnswer, invoiceID string) (bool, string) {
	var amount float64
	switch {
	case external.Amount != nil:
		amount = *external.Amount
	case external.Value != "":
		v, err := strconv.ParseFloat(strings.TrimSpace(external.Value), 64)
		if err != nil {
			return true, "not a number"
		}
		amount = v
	default:
		return true, "empty"
	}

	if amount <= 0 {
		return true, "non-positive"
	}
	if amount > r.cfg.MaxTotalAmount {
		return true, "above maximum"
	}

	idDigits := reNonDigit.ReplaceAllString(invoiceID, "")
	if idDigits != "" && float64(int64(amount)) == amount {
		intStr := strconv.FormatInt(int64(amount), 10)
		if intStr == idDigits {
			return true, "matches invoice id"
		}
		if len(intStr) >= 6 && (strings.Contains(idDigits, intStr) || strings.Contains(intStr, idDigits)) {
			return true, "shares invoice id digits"
		}
	}
	return false, ""
}

func (r *Reconciler) agrees(heuristic entity.ExtractionResult, external *ExternalAnswer) bool {
	if heuristic.Amount != nil && external.Amount != nil {
		return math.Abs(*heuristic.Amount-*external.Amount) < 0.01
	}
	if heuristic.Value != nil && external.Value != "" {
		return strings.EqualFold(strings.TrimSpace(*heuristic.Value), strings.TrimSpace(external.Value))
	}
	return false
}

func externalReason(external *ExternalAnswer) string {
	if external.Reason != "" {
		return "external: " + external.Reason
	}
	return "external model"
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
