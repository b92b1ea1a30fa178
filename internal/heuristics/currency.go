package heuristics

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Sundramrai3691/ReXcan/constants"
	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

// currencyIndicators maps symbols and codes to ISO 4217 codes. Order
// matters for multi-char symbols like "US$".
var currencyIndicators = []struct {
	token string
	code  string
}{
	{"US$", "USD"}, {"USD", "USD"}, {"$", "USD"},
	{"EUR", "EUR"}, {"€", "EUR"},
	{"GBP", "GBP"}, {"£", "GBP"},
	{"JPY", "JPY"}, {"¥", "JPY"},
	{"INR", "INR"}, {"₹", "INR"},
}

// ExtractCurrency resolves the invoice currency. A symbol in the same
// block as the total amount is trusted most; any indicator on the page
// comes next; USD is the default when nothing is found.
func ExtractCurrency(blocks []entity.OCRBlock, totalAmount *float64) []entity.FieldCandidate {
	if totalAmount != nil {
		totalStr := fmt.Sprintf("%.2f", *totalAmount)
		intStr := strconv.FormatInt(int64(*totalAmount), 10)
		for _, b := range blocks {
			if !strings.Contains(b.Text, totalStr) && !strings.Contains(b.Text, intStr) {
				continue
			}
			upper := strings.ToUpper(b.Text)
			for _, ind := range currencyIndicators {
				if strings.Contains(b.Text, ind.token) || strings.Contains(upper, ind.token) {
					return []entity.FieldCandidate{currencyCandidate(ind.code, entity.TierLabelStrict, 0.90)}
				}
			}
		}
	}

	for _, b := range blocks {
		upper := strings.ToUpper(b.Text)
		for _, ind := range currencyIndicators {
			if strings.Contains(upper, ind.token) {
				return []entity.FieldCandidate{currencyCandidate(ind.code, entity.TierGlobalStrict, 0.75)}
			}
		}
	}

	return []entity.FieldCandidate{currencyCandidate("USD", entity.TierPositional, 0.50)}
}

func currencyCandidate(code string, tier entity.StrategyTier, base float64) entity.FieldCandidate {
	return entity.FieldCandidate{
		Field:    constants.FieldCurrency,
		RawText:  code,
		Value:    code,
		Tier:     tier,
		BaseConf: base,
	}
}
