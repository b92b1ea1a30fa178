package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/backpressure"
	"github.com/Sundramrai3691/ReXcan/internal/canonicalize"
	"github.com/Sundramrai3691/ReXcan/internal/confidence"
	"github.com/Sundramrai3691/ReXcan/internal/dedup"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
	"github.com/Sundramrai3691/ReXcan/internal/heuristics"
	"github.com/Sundramrai3691/ReXcan/internal/llm"
	"github.com/Sundramrai3691/ReXcan/internal/reconcile"
	"github.com/Sundramrai3691/ReXcan/internal/repository"
	"github.com/Sundramrai3691/ReXcan/internal/safety"
)

// extractionOrder is the per-document field sequence. The invoice ID
// must resolve before the total (its digits exclude false-positive
// amounts), and the total before tax/subtotal (ratio bands) and
// currency (symbol-near-total check). The rest is stable for
// determinism, not correctness.
var extractionOrder = []constants.FieldName{
	constants.FieldInvoiceID,
	constants.FieldInvoiceDate,
	constants.FieldDueDate,
	constants.FieldVendorName,
	constants.FieldTotalAmount,
	constants.FieldAmountTax,
	constants.FieldAmountSubtotal,
	constants.FieldCurrency,
}

// Config holds the processor's own knobs; stage components carry their
// thresholds internally.
type Config struct {
	MaxLLMCallsPerJob int
	StripPII          bool
	AmountTolerance   float64
	FlagFloor         float64
	DefaultCurrency   string
}

// Deps wires the stage components. Extractor may be nil, which
// disables external fallback entirely; Records may be nil for
// ephemeral (test/CLI) runs, which disables dedup and persistence.
type Deps struct {
	Generator  *heuristics.Generator
	Scorer     *confidence.Scorer
	Policy     confidence.FallbackPolicy
	Extractor  llm.FieldExtractor
	Reconciler *reconcile.Reconciler
	Vendors    *canonicalize.VendorCanonicalizer
	Deduper    *dedup.Engine
	Records    repository.RecordRepository
	Audit      repository.AuditRepository
	Limits     *backpressure.Manager
}

// Processor runs the per-document decision pipeline: heuristics with
// hard field ordering, confidence scoring, budget-gated external
// fallback, reconciliation, canonicalization, dedup, and flags.
type Processor struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
}

// NewProcessor builds a processor.
func NewProcessor(deps Deps, cfg Config, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AmountTolerance <= 0 {
		cfg.AmountTolerance = 0.01
	}
	if cfg.FlagFloor <= 0 {
		cfg.FlagFloor = 0.5
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	return &Processor{deps: deps, cfg: cfg, logger: logger}
}

// ProcessRequest is one document's worth of work.
type ProcessRequest struct {
	JobID    uuid.UUID
	Blocks   []entity.OCRBlock
	Filename string
	// OCRTime is how long block extraction took upstream; it counts
	// toward the slow-pipeline fallback trigger.
	OCRTime time.Duration
}

// Process runs the full pipeline for one document. Field extraction is
// deterministic given a fixed block list; only the external call and
// the repository reads touch the outside world.
func (p *Processor) Process(ctx context.Context, req ProcessRequest) (*entity.InvoiceExtract, error) {
	start := time.Now()
	jobID := req.JobID
	if jobID == uuid.Nil {
		jobID = uuid.New()
	}
	now := time.Now()

	x := &entity.InvoiceExtract{
		JobID:     jobID,
		Fields:    make(map[constants.FieldName]entity.ExtractionResult),
		CreatedAt: now.UTC(),
	}
	x.Timings.OCR = req.OCRTime

	p.logger.Info("pipeline.start",
		"job_id", jobID, "blocks", len(req.Blocks), "filename", req.Filename)

	// Heuristics + scoring, in dependency order.
	heurStart := time.Now()
	var confDur time.Duration
	docCtx := heuristics.DocumentContext{Now: now}
	results := make(map[constants.FieldName]entity.ExtractionResult, len(extractionOrder))

	for _, field := range extractionOrder {
		candidates := p.deps.Generator.Generate(field, req.Blocks, docCtx)
		if len(candidates) == 0 {
			results[field] = entity.NotFound(field, "no candidate matched")
			continue
		}

		scoreStart := time.Now()
		res := p.deps.Scorer.ScoreCandidate(candidates[0], req.Blocks, false)
		confDur += time.Since(scoreStart)
		results[field] = res

		switch field {
		case constants.FieldInvoiceID:
			if res.Value != nil {
				docCtx.InvoiceID = *res.Value
			}
		case constants.FieldTotalAmount:
			docCtx.TotalAmount = res.Amount
		}
	}

	x.LineItems = heuristics.ExtractLineItems(req.Blocks)
	x.Timings.Heuristics = time.Since(heurStart) - confDur
	x.Timings.Confidence = confDur

	p.logger.Info("pipeline.heuristics.ok",
		"job_id", jobID,
		"line_items", len(x.LineItems),
		"elapsed_ms", time.Since(heurStart).Milliseconds())

	// External fallback, batched and budget-gated.
	llmStart := time.Now()
	if p.deps.Policy.EarlyExit(results) {
		p.logger.Info("pipeline.early_exit", "job_id", jobID)
	} else if p.deps.Extractor != nil {
		p.escalate(ctx, x, req, results, docCtx, req.OCRTime+x.Timings.Heuristics)
	}
	x.Timings.LLM = time.Since(llmStart)

	// Canonical values and flags.
	canonStart := time.Now()
	p.finalize(x, results, now)
	p.dedupe(ctx, x)
	x.DeriveMissingFlags()
	p.deriveReview(x)
	x.Timings.Canonicalize = time.Since(canonStart)
	x.Timings.Total = time.Since(start)

	if p.deps.Records != nil {
		if err := p.deps.Records.Save(ctx, x); err != nil {
			p.logger.Error("pipeline.save_failed", "job_id", jobID, "error", err)
			return x, err
		}
	}

	p.logger.Info("pipeline.done",
		"job_id", jobID,
		"is_invalid", x.IsInvalid,
		"is_duplicate", x.IsDuplicate,
		"needs_review", x.NeedsHumanReview,
		"llm_used", x.LLMUsed,
		"elapsed_ms", x.Timings.Total.Milliseconds())
	return x, nil
}

// escalate issues the single batched external call for every field the
// policy flags. All failures are soft: heuristic results stand.
func (p *Processor) escalate(ctx context.Context, x *entity.InvoiceExtract, req ProcessRequest,
	results map[constants.FieldName]entity.ExtractionResult, docCtx heuristics.DocumentContext, elapsed time.Duration) {

	var fields []constants.FieldName
	for _, field := range constants.RequiredFields {
		if ok, reason := p.deps.Policy.ShouldEscalate(field, results[field], elapsed); ok {
			fields = append(fields, field)
			p.logger.Info("pipeline.fallback.triggered",
				"job_id", x.JobID, "field", string(field), "reason", reason)
		}
	}
	if len(fields) == 0 {
		return
	}

	if p.deps.Limits != nil {
		decision := p.deps.Limits.CanProcess(constants.CallClassLLM)
		if !decision.Allowed {
			p.logger.Warn("pipeline.fallback.rate_limited",
				"job_id", x.JobID, "queue_full", decision.QueueFull)
			return
		}
		p.deps.Limits.Enqueue(constants.CallClassLLM)
		defer p.deps.Limits.Dequeue(constants.CallClassLLM)
	}

	guard := safety.NewGuard(p.cfg.MaxLLMCallsPerJob, p.cfg.StripPII, p.logger)
	if !guard.AllowLLMCall() {
		p.logger.Warn("pipeline.fallback.budget_exhausted", "job_id", x.JobID)
		return
	}

	text := heuristics.ReconstructText(req.Blocks)
	if guard.ShouldStripPII() {
		text = safety.StripPII(text)
	}

	answer, _, err := p.deps.Extractor.ExtractFields(ctx, llm.ExtractRequest{
		JobID:           x.JobID,
		Fields:          fields,
		OCRText:         text,
		FilenameHint:    req.Filename,
		InvoiceIDHint:   docCtx.InvoiceID,
		DefaultCurrency: p.cfg.DefaultCurrency,
	})
	x.LLMUsed = true
	x.LLMFields = fields
	if err != nil {
		p.logger.Warn("pipeline.fallback.soft_failure", "job_id", x.JobID, "error", err)
		return
	}

	answers := answer.Answers()
	for _, field := range fields {
		var ext *reconcile.ExternalAnswer
		if ans, ok := answers[field]; ok {
			ext = &reconcile.ExternalAnswer{Amount: ans.Amount, Reason: ans.Reason}
			if ans.Value != nil {
				ext.Value = *ans.Value
			}
		}
		results[field] = p.deps.Reconciler.Reconcile(field, results[field], ext, docCtx.InvoiceID)
	}
}

// finalize copies the per-field results into the aggregate with
// canonical values and runs the arithmetic check.
func (p *Processor) finalize(x *entity.InvoiceExtract, results map[constants.FieldName]entity.ExtractionResult, now time.Time) {
	x.Fields = results

	if res := results[constants.FieldInvoiceID]; res.Found() {
		x.InvoiceID = res.Value
	}
	if res := results[constants.FieldInvoiceDate]; res.Found() {
		if d := canonicalize.Date(*res.Value, now); d != "" {
			x.InvoiceDate = &d
		}
	}
	if res := results[constants.FieldDueDate]; res.Found() {
		if d := canonicalize.Date(*res.Value, now); d != "" {
			x.DueDate = &d
		}
	}
	if res := results[constants.FieldTotalAmount]; res.Found() {
		x.TotalAmount = res.Amount
	}
	if res := results[constants.FieldAmountTax]; res.Found() {
		x.Tax = res.Amount
	}
	if res := results[constants.FieldAmountSubtotal]; res.Found() {
		x.Subtotal = res.Amount
	}
	if res := results[constants.FieldCurrency]; res.Found() {
		if c := canonicalize.Currency(*res.Value); c != "" {
			x.Currency = &c
		}
	}
	if res := results[constants.FieldVendorName]; res.Found() {
		x.VendorName = res.Value
		if p.deps.Vendors != nil {
			match := p.deps.Vendors.Canonicalize(*res.Value)
			x.VendorID = &match.CanonicalID
		}
	}

	x.ArithmeticMismatch = !canonicalize.ArithmeticConsistent(
		x.TotalAmount, x.Subtotal, x.Tax, p.cfg.AmountTolerance)
}

// dedupe checks the finished identity against prior records. Repository
// read failures degrade to "no dedup info", never abort the document.
func (p *Processor) dedupe(ctx context.Context, x *entity.InvoiceExtract) {
	if p.deps.Deduper == nil || p.deps.Records == nil {
		return
	}

	identity := dedup.Identity{
		InvoiceID:   deref(x.InvoiceID),
		TotalAmount: x.TotalAmount,
		InvoiceDate: deref(x.InvoiceDate),
		JobID:       x.JobID,
	}
	if x.VendorID != nil {
		identity.VendorID = *x.VendorID
	} else {
		identity.VendorID = deref(x.VendorName)
	}

	hashes, err := p.deps.Records.ExistingHashes(ctx)
	if err != nil {
		p.logger.Warn("pipeline.dedup.hashes_unavailable", "job_id", x.JobID, "error", err)
		return
	}
	existing, err := p.deps.Records.ExistingIdentities(ctx)
	if err != nil {
		p.logger.Warn("pipeline.dedup.identities_unavailable", "job_id", x.JobID, "error", err)
		return
	}

	verdict := p.deps.Deduper.Check(identity, hashes, existing)
	if verdict.Hash != "" {
		x.DedupeHash = &verdict.Hash
	}
	x.IsDuplicate = verdict.IsDuplicate
	x.IsNearDuplicate = verdict.IsNearDup
	x.NearDuplicates = verdict.NearDuplicates
}

// deriveReview sets needs_human_review from the finished flags: any
// dup/near-dup, arithmetic mismatch, invalid record, or a required
// field below the flag floor.
func (p *Processor) deriveReview(x *entity.InvoiceExtract) {
	if x.IsDuplicate || x.IsNearDuplicate || x.ArithmeticMismatch || x.IsInvalid {
		x.NeedsHumanReview = true
		return
	}
	for _, field := range constants.RequiredFields {
		if res, ok := x.Fields[field]; !ok || res.Confidence < p.cfg.FlagFloor {
			x.NeedsHumanReview = true
			return
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
