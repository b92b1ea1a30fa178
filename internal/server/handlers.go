package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
	"github.com/Sundramrai3691/ReXcan/internal/export"
	"github.com/Sundramrai3691/ReXcan/internal/pipeline"
)

// processRequest is the POST /v1/process payload. Blocks come from an
// upstream OCR collaborator; the server never runs OCR itself.
type processRequest struct {
	JobID     string            `json:"job_id,omitempty"`
	Filename  string            `json:"filename,omitempty"`
	OCRTimeMS int64             `json:"ocr_time_ms,omitempty"`
	Blocks    []entity.OCRBlock `json:"blocks"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 10<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Blocks) == 0 {
		writeError(w, http.StatusBadRequest, "blocks are required")
		return
	}

	jobID := uuid.Nil
	if req.JobID != "" {
		var err error
		if jobID, err = uuid.Parse(req.JobID); err != nil {
			writeError(w, http.StatusBadRequest, "job_id must be a UUID")
			return
		}
	}

	result, err := s.processor.Process(r.Context(), pipeline.ProcessRequest{
		JobID:    jobID,
		Blocks:   req.Blocks,
		Filename: req.Filename,
		OCRTime:  time.Duration(req.OCRTimeMS) * time.Millisecond,
	})
	if err != nil {
		s.logger.Error("server.process_failed", "error", err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseJobID(w, r)
	if !ok {
		return
	}
	x, err := s.records.Get(r.Context(), jobID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, x)
}

// correctionRequest is one manual field edit.
type correctionRequest struct {
	Field    string `json:"field"`
	NewValue string `json:"new_value"`
	UserID   string `json:"user_id"`
	Reason   string `json:"reason,omitempty"`
}

func (s *Server) handleCorrect(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseJobID(w, r)
	if !ok {
		return
	}
	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Field == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "field and user_id are required")
		return
	}

	x, err := s.processor.ApplyCorrection(r.Context(), pipeline.Correction{
		JobID:    jobID,
		Field:    constants.FieldName(req.Field),
		NewValue: req.NewValue,
		UserID:   req.UserID,
		Reason:   req.Reason,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, x)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseJobID(w, r)
	if !ok {
		return
	}
	entries, err := s.audit.ListForJob(r.Context(), jobID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if entries == nil {
		entries = []entity.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	summary, err := s.records.Metrics(r.Context(),
		s.cfg.Thresholds.AutoAccept, s.cfg.Thresholds.FlagFloor)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	erp := export.ERPType(r.URL.Query().Get("erp"))
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	var (
		data []byte
		rows int
		err  error
	)
	switch format {
	case "csv":
		data, rows, err = s.exporter.ExportCSV(r.Context(), erp)
	case "xlsx":
		data, rows, err = s.exporter.ExportXLSX(r.Context(), erp)
	default:
		writeError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}
	if err != nil {
		writeAppError(w, err)
		return
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=invoices-%s.csv", stamp))
	} else {
		w.Header().Set("Content-Type",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=invoices-%s.xlsx", stamp))
	}
	w.Header().Set("X-Export-Rows", fmt.Sprintf("%d", rows))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := mux.Vars(r)["job_id"]
	jobID, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "job_id must be a UUID")
		return uuid.Nil, false
	}
	return jobID, true
}
