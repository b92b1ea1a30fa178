package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/canonicalize"
	"github.com/Sundramrai3691/ReXcan/internal/common"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

// Correction is one explicit human edit to a finished record.
type Correction struct {
	JobID    uuid.UUID
	Field    constants.FieldName
	NewValue string
	UserID   string
	Reason   string
}

// ApplyCorrection loads the record, replaces one field with the
// canonicalized new value, re-derives the flags, persists the record,
// and emits an audit entry. Corrections are the only mutation allowed
// after a pipeline run completes.
func (p *Processor) ApplyCorrection(ctx context.Context, c Correction) (*entity.InvoiceExtract, error) {
	if p.deps.Records == nil {
		return nil, common.NewAppError("CORRECTION_ERROR", "no record store configured", common.ErrInvalidInput)
	}
	x, err := p.deps.Records.Get(ctx, c.JobID)
	if err != nil {
		return nil, err
	}

	oldValue := fieldString(x, c.Field)
	if err := p.applyField(x, c.Field, c.NewValue); err != nil {
		return nil, err
	}

	x.ArithmeticMismatch = !canonicalize.ArithmeticConsistent(
		x.TotalAmount, x.Subtotal, x.Tax, p.cfg.AmountTolerance)
	x.DeriveMissingFlags()
	x.NeedsHumanReview = false
	p.deriveReview(x)

	if err := p.deps.Records.Save(ctx, x); err != nil {
		return nil, err
	}
	if p.deps.Audit != nil {
		entry := entity.AuditEntry{
			Timestamp: time.Now().UTC(),
			JobID:     c.JobID,
			Field:     c.Field,
			OldValue:  oldValue,
			NewValue:  c.NewValue,
			UserID:    c.UserID,
			Reason:    c.Reason,
		}
		if err := p.deps.Audit.Append(ctx, entry); err != nil {
			p.logger.Error("pipeline.audit_failed", "job_id", c.JobID, "error", err)
		}
	}

	p.logger.Info("pipeline.corrected",
		"job_id", c.JobID, "field", string(c.Field), "user_id", c.UserID)
	return x, nil
}

// applyField canonicalizes and stores the new value per field type and
// refreshes the field result so exports and metrics see the edit.
func (p *Processor) applyField(x *entity.InvoiceExtract, field constants.FieldName, raw string) error {
	res := entity.ExtractionResult{
		Field:      field,
		Confidence: 1.0,
		Reason:     "manual correction",
		Source:     x.Fields[field].Source,
	}

	switch field {
	case constants.FieldInvoiceID:
		x.InvoiceID = strPtrOrNil(raw)
		res.Value = x.InvoiceID
	case constants.FieldVendorName:
		x.VendorName = strPtrOrNil(raw)
		res.Value = x.VendorName
		if raw != "" && p.deps.Vendors != nil {
			match := p.deps.Vendors.Canonicalize(raw)
			x.VendorID = &match.CanonicalID
		}
	case constants.FieldInvoiceDate, constants.FieldDueDate:
		var canonical *string
		if raw != "" {
			d := canonicalize.Date(raw, time.Now())
			if d == "" {
				return common.NewAppError("CORRECTION_ERROR",
					fmt.Sprintf("unparseable date %q", raw), common.ErrValidation)
			}
			canonical = &d
		}
		if field == constants.FieldInvoiceDate {
			x.InvoiceDate = canonical
		} else {
			x.DueDate = canonical
		}
		res.Value = canonical
	case constants.FieldTotalAmount, constants.FieldAmountTax, constants.FieldAmountSubtotal:
		var amount *float64
		if raw != "" {
			v, ok := canonicalize.Amount(raw)
			if !ok {
				return common.NewAppError("CORRECTION_ERROR",
					fmt.Sprintf("unparseable amount %q", raw), common.ErrValidation)
			}
			amount = &v
		}
		switch field {
		case constants.FieldTotalAmount:
			x.TotalAmount = amount
		case constants.FieldAmountTax:
			x.Tax = amount
		default:
			x.Subtotal = amount
		}
		res.Amount = amount
		res.Value = strPtrOrNil(raw)
	case constants.FieldCurrency:
		var canonical *string
		if raw != "" {
			c := canonicalize.Currency(raw)
			canonical = &c
		}
		x.Currency = canonical
		res.Value = canonical
	default:
		return common.NewAppError("CORRECTION_ERROR",
			fmt.Sprintf("unknown field %q", field), common.ErrInvalidInput)
	}

	if x.Fields == nil {
		x.Fields = make(map[constants.FieldName]entity.ExtractionResult)
	}
	x.Fields[field] = res
	return nil
}

// fieldString renders the current value of a field for the audit trail.
func fieldString(x *entity.InvoiceExtract, field constants.FieldName) string {
	switch field {
	case constants.FieldInvoiceID:
		return deref(x.InvoiceID)
	case constants.FieldVendorName:
		return deref(x.VendorName)
	case constants.FieldInvoiceDate:
		return deref(x.InvoiceDate)
	case constants.FieldDueDate:
		return deref(x.DueDate)
	case constants.FieldCurrency:
		return deref(x.Currency)
	case constants.FieldTotalAmount:
		return floatString(x.TotalAmount)
	case constants.FieldAmountTax:
		return floatString(x.Tax)
	case constants.FieldAmountSubtotal:
		return floatString(x.Subtotal)
	}
	return ""
}

func floatString(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
