package heuristics

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/Sundramrai3691/ReXcan/internal/entity"
)

// Label vocabularies. Multilingual variants reflect the document mix
// seen in production.
var (
	InvoiceIDLabels = []string{
		"invoice number", "invoice no", "invoice #", "inv no", "inv #",
		"invoice id", "invoice num", "doc no", "document no",
		"numero factura", "numero fatura",
		"facture numero",
	}

	TotalLabels = []string{
		"total", "amount due", "grand total", "balance due",
		"total geral", "total a pagar",
		"importe total", "total factura",
	}

	TaxLabels = []string{
		"tax", "gst", "vat", "sales tax", "total tax",
		"tax amount", "tax total", "taxes", "tax (", "tax:",
		"impuesto", "iva",
		"tva",
	}

	SubtotalLabels = []string{
		"subtotal", "sub total", "total before tax",
		"amount before tax", "pre-tax total",
		"subtotal antes de impuestos",
	}

	InvoiceDateLabels = []string{
		"invoice date", "date of invoice", "bill date", "issue date",
		"invoice dated", "date issued", "invoice issued", "date",
		"receipt date", "transaction date", "document date",
	}

	DueDateLabels = []string{
		"due date", "payment due", "pay by", "due on", "payment date",
	}

	VendorLabels = []string{
		"from", "seller", "vendor", "supplier", "company",
		"bill to", "sold by", "merchant",
		"empresa", "fornecedor", "emitente",
		"proveedor", "emisor",
	}
)

// FindBlocksWithLabel returns blocks whose text contains one of the
// labels. Whole-word matches are checked before substring and fuzzy
// matches so that "total" does not catch "subtotal".
func FindBlocksWithLabel(blocks []entity.OCRBlock, labels []string) []entity.OCRBlock {
	var out []entity.OCRBlock
	for _, b := range blocks {
		norm := strings.ToLower(NormalizeText(b.Text))
		words := make(map[string]bool)
		for _, w := range strings.Fields(norm) {
			words[w] = true
		}
		for _, label := range labels {
			ll := strings.ToLower(label)
			if words[ll] {
				out = append(out, b)
				break
			}
			if strings.Contains(norm, ll) && wholeWordMatch(norm, ll) {
				out = append(out, b)
				break
			}
			if LabelMatches(norm, label, 75) {
				out = append(out, b)
				break
			}
		}
	}
	return out
}

func wholeWordMatch(text, label string) bool {
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(label) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

// ProximityCandidate pairs a block with its distance from a label.
type ProximityCandidate struct {
	Block    entity.OCRBlock
	Distance float64
}

// FindLabelProximity returns blocks geometrically near any of the label
// patterns, closest first.
func FindLabelProximity(blocks []entity.OCRBlock, labels []string, maxDistance float64) []ProximityCandidate {
	labelBlocks := FindLabelBlocks(blocks, labels, 80)

	var candidates []ProximityCandidate
	for _, lb := range labelBlocks {
		c, ok := FindCandidateNear(lb, blocks, maxDistance, true)
		if !ok {
			continue
		}
		dx := c.CenterX() - lb.CenterX()
		dy := c.CenterY() - lb.CenterY()
		candidates = append(candidates, ProximityCandidate{
			Block:    c,
			Distance: math.Hypot(dx, dy),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	return candidates
}
