// Package slips builds the credit card purchase slips sent to the
// acquisitions team for PO lines bought by card.
package slips

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/mitlibraries/llama/pkg/alma"
)

// AcquisitionMethod is the Alma acquisition method of credit card purchases.
const AcquisitionMethod = "EXCHANGE"

//go:embed template.html
var slipTemplate string

// Reader is the part of the Alma API slips are built from.
type Reader interface {
	GetBriefPOLines(ctx context.Context, acquisitionMethod string) ([]alma.BriefPOLine, error)
	GetFullPOLine(ctx context.Context, poLineID string) (alma.POLine, error)
	GetFundByCode(ctx context.Context, fundCode string) (alma.FundList, error)
}

// Slip holds the values written into one slip, keyed in the template by
// td class.
type Slip struct {
	Vendor     string
	POLine     string
	ItemTitle  string
	Price      string
	TotalPrice string
	PODate     string
	InvoiceNum string
	Account1   string
	Account2   string
	Cardholder string
}

func (s Slip) fields() map[string]string {
	f := map[string]string{
		"vendor":      s.Vendor,
		"poline":      s.POLine,
		"item_title":  s.ItemTitle,
		"price":       s.Price,
		"total_price": s.TotalPrice,
		"po_date":     s.PODate,
		"invoice_num": s.InvoiceNum,
		"account_1":   s.Account1,
		"cardholder":  s.Cardholder,
	}
	if s.Account2 != "" {
		f["account_2"] = s.Account2
	}
	return f
}

// CreditCardPOLines returns the full records of credit card PO lines created
// on date (YYYY-MM-DD).
func CreditCardPOLines(ctx context.Context, r Reader, date string) ([]alma.POLine, error) {
	brief, err := r.GetBriefPOLines(ctx, AcquisitionMethod)
	if err != nil {
		return nil, fmt.Errorf("failed to list PO lines: %w", err)
	}
	var lines []alma.POLine
	for _, b := range brief {
		if b.CreatedDate != date+"Z" || b.Number == "" {
			continue
		}
		line, err := r.GetFullPOLine(ctx, b.Number)
		if err != nil {
			return nil, fmt.Errorf("failed to get PO line %s: %w", b.Number, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// NewSlip collects the slip values for one PO line, looking up fund accounts.
func NewSlip(ctx context.Context, r Reader, line alma.POLine) (Slip, error) {
	s := Slip{
		Vendor:     orDefault(line.VendorAccount, "No vendor found"),
		POLine:     orDefault(line.Number, "No PO Line number found"),
		ItemTitle:  Title(line),
		PODate:     CreatedDate(line),
		Cardholder: CardholderFromNotes(line.Note),
	}

	price := decimal.Zero
	if line.Price != nil {
		price = line.Price.Sum
	}
	s.Price = "$" + price.StringFixed(2)
	s.TotalPrice = "$" + TotalPrice(line, price)

	abbrev := []rune(strings.ToUpper(strings.ReplaceAll(s.ItemTitle, " ", "")))
	if len(abbrev) > 3 {
		abbrev = abbrev[:3]
	}
	s.InvoiceNum = "Invoice #: " + s.PODate + string(abbrev)

	var code string
	if len(line.FundDistribution) > 0 {
		code = line.FundDistribution[0].FundCode.Value
	}
	account, err := AccountFromFundCode(ctx, r, code)
	if err != nil {
		return Slip{}, err
	}
	s.Account1 = account
	if len(line.FundDistribution) > 1 {
		account, err := AccountFromFundCode(ctx, r, line.FundDistribution[1].FundCode.Value)
		if err != nil {
			return Slip{}, err
		}
		s.Account2 = account
	}
	return s, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Title is the PO line title, or "Unknown title" when no item is attached.
func Title(line alma.POLine) string {
	if line.ResourceMetadata.Title == nil || *line.ResourceMetadata.Title == "" {
		return "Unknown title"
	}
	return *line.ResourceMetadata.Title
}

// CreatedDate is the digits of the created date without the century, e.g.
// "210513" for "2021-05-13Z".
func CreatedDate(line alma.POLine) string {
	if len(line.CreatedDate) < 2 {
		return "No PO Line created date found"
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, line.CreatedDate[2:])
}

// TotalPrice sums the fund distribution amounts, falling back to the unit
// price when none are given.
func TotalPrice(line alma.POLine, unitPrice decimal.Decimal) string {
	total := decimal.Zero
	for _, fd := range line.FundDistribution {
		if fd.Amount != nil {
			total = total.Add(fd.Amount.Sum)
		}
	}
	if total.IsZero() {
		return unitPrice.StringFixed(2)
	}
	return total.StringFixed(2)
}

// AccountFromFundCode returns the external id of the fund with code.
func AccountFromFundCode(ctx context.Context, r Reader, code string) (string, error) {
	if code == "" {
		return "No fund code found", nil
	}
	funds, err := r.GetFundByCode(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to get fund %s: %w", code, err)
	}
	if len(funds.Fund) == 0 {
		return "", nil
	}
	return funds.Fund[0].ExternalID, nil
}

// CardholderFromNotes returns the text after "CC-" of the last note that
// starts with it.
func CardholderFromNotes(notes []alma.Note) string {
	cardholder := "No cardholder note found"
	for _, n := range notes {
		if strings.HasPrefix(n.NoteText, "CC-") {
			cardholder = n.NoteText[3:]
		}
	}
	return cardholder
}

// Populate fills a copy of the slip template with s.
func Populate(s Slip) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(slipTemplate))
	if err != nil {
		return "", fmt.Errorf("failed to parse slip template: %w", err)
	}
	for class, value := range s.fields() {
		doc.Find("td." + class).SetText(value)
	}
	html, err := goquery.OuterHtml(doc.Find("ccslip"))
	if err != nil {
		return "", fmt.Errorf("failed to render slip: %w", err)
	}
	return html, nil
}

// Render returns every slip in one HTML document.
func Render(slips []Slip) (string, error) {
	var sb strings.Builder
	sb.WriteString("<html>")
	for _, s := range slips {
		html, err := Populate(s)
		if err != nil {
			return "", err
		}
		sb.WriteString(html)
	}
	sb.WriteString("</html>")
	return sb.String(), nil
}
