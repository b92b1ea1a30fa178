package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/llm"
)

func completionReply(content string) string {
	reply := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	b, _ := json.Marshal(reply)
	return string(b)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, lenient bool) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(Config{
		APIKey:          "test-key",
		BaseURL:         srv.URL,
		Model:           "test-model",
		LenientRecovery: lenient,
	}, nil)
	return client, srv
}

func TestExtractFieldsHappyPath(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		_, _ = w.Write([]byte(completionReply(
			`{"total_amount": 544.46, "invoice_date": "2024-11-01", "reasons": {"total_amount": "bottom label"}}`)))
	}, false)

	fields, _, err := client.ExtractFields(context.Background(), llm.ExtractRequest{
		Fields:  []constants.FieldName{constants.FieldTotalAmount, constants.FieldInvoiceDate},
		OCRText: "Total: $544.46",
	})
	if err != nil {
		t.Fatalf("ExtractFields: %v", err)
	}
	if fields.TotalAmount == nil || *fields.TotalAmount != 544.46 {
		t.Fatalf("total = %+v", fields.TotalAmount)
	}
	if fields.InvoiceDate == nil || *fields.InvoiceDate != "2024-11-01" {
		t.Fatalf("date = %+v", fields.InvoiceDate)
	}
}

func TestExtractFieldsRecoversFencedJSON(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completionReply(
			"```json\n{\"total_amount\": \"544.46\"}\n```")))
	}, true)

	fields, _, err := client.ExtractFields(context.Background(), llm.ExtractRequest{
		Fields: []constants.FieldName{constants.FieldTotalAmount},
	})
	if err != nil {
		t.Fatalf("lenient recovery should succeed: %v", err)
	}
	if fields.TotalAmount == nil || *fields.TotalAmount != 544.46 {
		t.Fatalf("total = %+v", fields.TotalAmount)
	}
}

func TestExtractFieldsRejectsUnaskedField(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completionReply(
			`{"total_amount": 1, "vendor_name": "Acme"}`)))
	}, false)

	_, _, err := client.ExtractFields(context.Background(), llm.ExtractRequest{
		Fields: []constants.FieldName{constants.FieldTotalAmount},
	})
	if err == nil {
		t.Fatal("answer for an unrequested field must fail validation")
	}
}

func TestExtractFieldsServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}, false)

	_, _, err := client.ExtractFields(context.Background(), llm.ExtractRequest{
		Fields: []constants.FieldName{constants.FieldTotalAmount},
	})
	if err == nil {
		t.Fatal("non-2xx must surface an error")
	}
}
