package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Sundramrai3691/ReXcan/internal/entity"
	"github.com/Sundramrai3691/ReXcan/internal/repository"
	"github.com/Sundramrai3691/ReXcan/internal/safety"
)

// Service produces ERP import files from stored records, filtered
// through the safety gate. Records the gate blocks are counted and
// logged, never silently dropped.
type Service struct {
	records repository.RecordRepository
	gate    safety.ExportGate
	logger  *slog.Logger
}

func NewService(records repository.RecordRepository, gate safety.ExportGate, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, gate: gate, logger: logger}
}

// gated loads exportable records and applies the safety gate.
func (s *Service) gated(ctx context.Context) (passed []*entity.InvoiceExtract, blocked int, err error) {
	records, err := s.records.ListExportable(ctx)
	if err != nil {
		return nil, 0, err
	}
	for _, x := range records {
		ok, reasons := s.gate.Check(x)
		if !ok {
			blocked++
			s.logger.Info("export.blocked", "job_id", x.JobID, "reasons", reasons)
			continue
		}
		passed = append(passed, x)
	}
	return passed, blocked, nil
}

// ExportCSV renders every gate-passing record as one ERP CSV table.
func (s *Service) ExportCSV(ctx context.Context, erp ERPType) ([]byte, int, error) {
	start := time.Now()
	records, blocked, err := s.gated(ctx)
	if err != nil {
		return nil, 0, err
	}

	data, err := BatchCSV(records, erp)
	if err != nil {
		return nil, 0, fmt.Errorf("csv write: %w", err)
	}

	s.logger.Info("export.csv.ok",
		"erp", string(erp),
		"rows", len(records),
		"blocked", blocked,
		"elapsed_ms", time.Since(start).Milliseconds())
	return data, len(records), nil
}

// ExportXLSX returns an XLSX workbook of gate-passing records with the
// review metadata alongside the invoice fields.
func (s *Service) ExportXLSX(ctx context.Context, erp ERPType) ([]byte, int, error) {
	start := time.Now()
	records, blocked, err := s.gated(ctx)
	if err != nil {
		return nil, 0, err
	}
	_, cols := Schema(erp)

	f := excelize.NewFile()
	const sheet = "Invoices"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, 0, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := headerRow(cols)
	headers = append(headers, "Due Date", "Needs Review", "LLM Used")
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, x := range records {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		values := recordRow(x, cols)
		for i, v := range values {
			write(i+1, v)
		}
		write(len(values)+1, strOrEmpty(x.DueDate))
		write(len(values)+2, x.NeedsHumanReview)
		write(len(values)+3, x.LLMUsed)
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 20) // invoice number
	_ = f.SetColWidth(sheet, "B", "B", 30) // vendor
	_ = f.SetColWidth(sheet, "C", "C", 14) // date
	_ = f.SetColWidth(sheet, "D", "F", 14) // amounts

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"erp", string(erp),
		"rows", len(records),
		"blocked", blocked,
		"elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), len(records), nil
}
