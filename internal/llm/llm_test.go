package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Sundramrai3691/ReXcan/constants"
)

func TestSchemaAcceptsRequestedFieldsOnly(t *testing.T) {
	schema := BuildInvoiceJSONSchema([]string{"total_amount", "invoice_date"})

	good := []byte(`{"total_amount": 544.46, "invoice_date": "2024-11-01", "reasons": {"total_amount": "bottom of page"}}`)
	if err := ValidateJSONAgainstSchema(schema, good); err != nil {
		t.Fatalf("valid response rejected: %v", err)
	}

	unasked := []byte(`{"total_amount": 544.46, "vendor_name": "Acme"}`)
	if err := ValidateJSONAgainstSchema(schema, unasked); err == nil {
		t.Fatal("field that was not requested must fail validation")
	}

	badDate := []byte(`{"invoice_date": "11/01/2024"}`)
	if err := ValidateJSONAgainstSchema(schema, badDate); err == nil {
		t.Fatal("non-ISO date must fail validation")
	}

	negative := []byte(`{"total_amount": -3}`)
	if err := ValidateJSONAgainstSchema(schema, negative); err == nil {
		t.Fatal("non-positive amount must fail validation")
	}
}

func TestRecoverJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"total_amount": 5}`, `{"total_amount": 5}`},
		{"```json\n{\"total_amount\": 5}\n```", `{"total_amount": 5}`},
		{"Here is the data:\n{\"total_amount\": 5}\nHope that helps!", `{"total_amount": 5}`},
	}
	for _, tc := range cases {
		if got := string(RecoverJSON([]byte(tc.in))); got != tc.want {
			t.Errorf("RecoverJSON(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeFields(t *testing.T) {
	raw := []byte(`{"total_amount": "$1,234.56", "amount_tax": null, "invoice_id": "INV-001", "vendor_name": "", "reasons": {"total_amount": "labeled"}}`)
	cleaned, dropped, err := SanitizeFields(raw)
	if err != nil {
		t.Fatalf("SanitizeFields: %v", err)
	}
	if !strings.Contains(string(cleaned), `"total_amount":1234.56`) {
		t.Fatalf("string amount not coerced: %s", cleaned)
	}
	if strings.Contains(string(cleaned), "amount_tax") || strings.Contains(string(cleaned), "vendor_name") {
		t.Fatalf("null/empty fields must be dropped: %s", cleaned)
	}
	if len(dropped) != 2 {
		t.Fatalf("dropped = %v, want amount_tax and vendor_name", dropped)
	}
}

func TestAnswersFlattening(t *testing.T) {
	amount := 544.46
	id := "INV-001"
	f := InvoiceFields{
		InvoiceID:   &id,
		TotalAmount: &amount,
		Reasons:     map[string]string{"total_amount": "largest labeled amount"},
	}

	answers := f.Answers()
	if len(answers) != 2 {
		t.Fatalf("answers = %d, want 2", len(answers))
	}
	total := answers[constants.FieldTotalAmount]
	if total.Amount == nil || *total.Amount != 544.46 {
		t.Fatalf("total answer = %+v", total)
	}
	if total.Reason != "largest labeled amount" {
		t.Fatalf("reason not carried: %q", total.Reason)
	}
	if _, ok := answers[constants.FieldVendorName]; ok {
		t.Fatal("unanswered field must not appear")
	}
}

func TestSystemPromptCarriesInvoiceIDWarning(t *testing.T) {
	req := ExtractRequest{
		Fields:        []constants.FieldName{constants.FieldTotalAmount},
		InvoiceIDHint: "27301261",
	}
	prompt := BuildSystemPrompt(req)
	if !strings.Contains(prompt, "27301261") {
		t.Fatal("prompt must warn about the invoice identifier")
	}
	if !strings.Contains(prompt, "total_amount") {
		t.Fatal("prompt must list the requested fields")
	}
}

type flakyExtractor struct {
	failures int
	calls    int
}

func (f *flakyExtractor) ExtractFields(_ context.Context, _ ExtractRequest) (InvoiceFields, []byte, error) {
	f.calls++
	if f.calls <= f.failures {
		return InvoiceFields{}, nil, errors.New("transient upstream error")
	}
	amount := 99.50
	return InvoiceFields{TotalAmount: &amount}, []byte(`{"total_amount": 99.50}`), nil
}

func TestRouterRetriesThenSucceeds(t *testing.T) {
	inner := &flakyExtractor{failures: 2}
	router := NewRouter(inner, time.Second, 2, time.Millisecond, nil)

	fields, _, err := router.ExtractFields(context.Background(), ExtractRequest{})
	if err != nil {
		t.Fatalf("retries should recover: %v", err)
	}
	if fields.TotalAmount == nil || *fields.TotalAmount != 99.50 {
		t.Fatalf("fields = %+v", fields)
	}
	if inner.calls != 3 {
		t.Fatalf("calls = %d, want 3", inner.calls)
	}
}

func TestRouterExhaustionIsSoft(t *testing.T) {
	inner := &flakyExtractor{failures: 10}
	router := NewRouter(inner, time.Second, 1, time.Millisecond, nil)

	if _, _, err := router.ExtractFields(context.Background(), ExtractRequest{}); err == nil {
		t.Fatal("exhausted retries must surface an error for the caller to soften")
	}
	if inner.calls != 2 {
		t.Fatalf("calls = %d, want initial + 1 retry", inner.calls)
	}
}
