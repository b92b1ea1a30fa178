package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

// ERPType selects the downstream accounting system's column naming.
type ERPType string

const (
	ERPQuickBooks ERPType = "quickbooks"
	ERPSAP        ERPType = "sap"
	ERPOracle     ERPType = "oracle"
	ERPXero       ERPType = "xero"
)

type column struct {
	field  constants.FieldName
	header string
}

// erpSchemas maps our field names onto each ERP's import headers.
// Column order is part of the contract.
var erpSchemas = map[ERPType][]column{
	ERPQuickBooks: {
		{constants.FieldInvoiceID, "Invoice Number"},
		{constants.FieldVendorName, "Vendor"},
		{constants.FieldInvoiceDate, "Date"},
		{constants.FieldTotalAmount, "Amount"},
		{constants.FieldAmountSubtotal, "Subtotal"},
		{constants.FieldAmountTax, "Tax"},
		{constants.FieldCurrency, "Currency"},
	},
	ERPSAP: {
		{constants.FieldInvoiceID, "Invoice Number"},
		{constants.FieldVendorName, "Vendor Name"},
		{constants.FieldInvoiceDate, "Document Date"},
		{constants.FieldTotalAmount, "Net Amount"},
		{constants.FieldAmountSubtotal, "Subtotal"},
		{constants.FieldAmountTax, "Tax Amount"},
		{constants.FieldCurrency, "Currency Code"},
	},
	ERPOracle: {
		{constants.FieldInvoiceID, "Invoice Number"},
		{constants.FieldVendorName, "Supplier Name"},
		{constants.FieldInvoiceDate, "Invoice Date"},
		{constants.FieldTotalAmount, "Invoice Amount"},
		{constants.FieldAmountSubtotal, "Subtotal"},
		{constants.FieldAmountTax, "Tax"},
		{constants.FieldCurrency, "Currency"},
	},
	ERPXero: {
		{constants.FieldInvoiceID, "Invoice Number"},
		{constants.FieldVendorName, "Contact Name"},
		{constants.FieldInvoiceDate, "Date"},
		{constants.FieldTotalAmount, "Total"},
		{constants.FieldAmountSubtotal, "Subtotal"},
		{constants.FieldAmountTax, "Tax"},
		{constants.FieldCurrency, "Currency Code"},
	},
}

// lineItemERPs lists the ERPs whose import format takes a line-item
// section under the invoice row.
var lineItemERPs = map[ERPType]bool{
	ERPQuickBooks: true,
	ERPSAP:        true,
	ERPOracle:     true,
}

// Schema returns the column set for an ERP, defaulting to QuickBooks
// for unknown names.
func Schema(erp ERPType) (ERPType, []column) {
	if cols, ok := erpSchemas[erp]; ok {
		return erp, cols
	}
	return ERPQuickBooks, erpSchemas[ERPQuickBooks]
}

// RecordCSV renders one invoice in the ERP's import layout, with the
// line-item section where the ERP takes one.
func RecordCSV(x *entity.InvoiceExtract, erp ERPType) ([]byte, error) {
	erp, cols := Schema(erp)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(headerRow(cols)); err != nil {
		return nil, err
	}
	if err := w.Write(recordRow(x, cols)); err != nil {
		return nil, err
	}

	if len(x.LineItems) > 0 && lineItemERPs[erp] {
		_ = w.Write([]string{})
		_ = w.Write([]string{"Line Items"})
		_ = w.Write([]string{"Description", "Quantity", "Unit Price", "Total"})
		for _, item := range x.LineItems {
			if err := w.Write([]string{
				item.Description,
				optFloat(item.Quantity),
				optMoney(item.UnitPrice),
				optMoney(item.Total),
			}); err != nil {
				return nil, err
			}
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// BatchCSV renders many invoices as one table, header first. Line
// items are omitted; batch imports take the invoice rows only.
func BatchCSV(records []*entity.InvoiceExtract, erp ERPType) ([]byte, error) {
	_, cols := Schema(erp)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(headerRow(cols)); err != nil {
		return nil, err
	}
	for _, x := range records {
		if err := w.Write(recordRow(x, cols)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func headerRow(cols []column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.header
	}
	return out
}

func recordRow(x *entity.InvoiceExtract, cols []column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = fieldValue(x, c.field)
	}
	return out
}

func fieldValue(x *entity.InvoiceExtract, field constants.FieldName) string {
	switch field {
	case constants.FieldInvoiceID:
		return strOrEmpty(x.InvoiceID)
	case constants.FieldVendorName:
		return strOrEmpty(x.VendorName)
	case constants.FieldInvoiceDate:
		return strOrEmpty(x.InvoiceDate)
	case constants.FieldDueDate:
		return strOrEmpty(x.DueDate)
	case constants.FieldTotalAmount:
		return optMoney(x.TotalAmount)
	case constants.FieldAmountSubtotal:
		return optMoney(x.Subtotal)
	case constants.FieldAmountTax:
		return optMoney(x.Tax)
	case constants.FieldCurrency:
		return strOrEmpty(x.Currency)
	}
	return ""
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optMoney(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
