package sap

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	fw "github.com/mitlibraries/llama/pkg/fixedwidth"
	"github.com/mitlibraries/llama/pkg/models"
)

// SAPAddress is a vendor address spread over the SAP payee fields.
type SAPAddress struct {
	NameLine2      string
	POBoxIndicator string
	StreetOrPOBox  string
	NameLine3      string
}

// poBoxNumber reports whether line is a P.O. box line and returns what is
// left of it once "P.O. Box" is removed. Matching ignores case, spaces and
// dots.
func poBoxNumber(line string) (string, bool) {
	n := strings.ToLower(line)
	n = strings.ReplaceAll(n, " ", "")
	n = strings.ReplaceAll(n, ".", "")
	if !strings.Contains(n, "pobox") {
		return "", false
	}
	return strings.Replace(n, "pobox", "", 1), true
}

// FormatAddressForSAP assigns address lines to the SAP payee fields. The
// first line is payee name line 2, the second the street, the third payee
// name line 3. A P.O. box in the first or second line sets the indicator and
// puts the box number in the street field; when the first line is the box,
// name line 2 is left blank and the second line is dropped.
func FormatAddressForSAP(lines []string) SAPAddress {
	at := func(i int) string {
		if i < len(lines) && lines[i] != "" {
			return lines[i]
		}
		return " "
	}

	addr := SAPAddress{
		NameLine2:      at(0),
		POBoxIndicator: " ",
		StreetOrPOBox:  at(1),
		NameLine3:      at(2),
	}
	if box, ok := poBoxNumber(at(0)); ok {
		addr.NameLine2 = " "
		addr.POBoxIndicator = "X"
		addr.StreetOrPOBox = box
		return addr
	}
	if box, ok := poBoxNumber(at(1)); ok {
		addr.POBoxIndicator = "X"
		addr.StreetOrPOBox = box
	}
	return addr
}

// orBlank substitutes a single space for empty values.
func orBlank(s string) string {
	if s == "" {
		return " "
	}
	return s
}

type headerRecord struct {
	today   time.Time
	invoice models.Invoice
	address SAPAddress
}

func (h headerRecord) Fields() []fw.Field {
	date := h.today.Format("20060102")
	a := h.invoice.Vendor.Address
	return []fw.Field{
		fw.L("B", 1),
		fw.L(date, 8), // document date
		fw.L(date, 8), // baseline date
		fw.L(h.invoice.ExternalReference(), 16),
		fw.L("X000", 4),
		fw.L("400000", 6),
		fw.R(h.invoice.TotalAmount.StringFixed(2), 16),
		fw.L(" ", 1),    // sign, credits are never sent
		fw.L(" ", 1),    // payment method
		fw.L("  ", 2),   // payment method supplement
		fw.L("    ", 4), // payment terms
		fw.L(" ", 1),    // payment block
		fw.L("X", 1),    // individual payee
		fw.L(h.invoice.Vendor.Name, 35),
		fw.L(orBlank(a.City), 35),
		fw.L(h.address.NameLine2, 35),
		fw.L(h.address.POBoxIndicator, 1),
		fw.L(h.address.StreetOrPOBox, 35),
		fw.L(orBlank(a.PostalCode), 10),
		fw.L(orBlank(a.StateProvince), 3),
		fw.L(orBlank(a.Country), 3),
		fw.L(" ", 50), // text
		fw.L(h.address.NameLine3, 35),
	}
}

type fundRecord struct {
	last bool
	fund models.Fund
}

func (f fundRecord) Fields() []fw.Field {
	kind := "C"
	if f.last {
		kind = "D"
	}
	return []fw.Field{
		fw.L(kind, 1),
		fw.L(f.fund.GLAccount, 10),
		fw.L(f.fund.CostObject, 12),
		fw.R(f.fund.Amount.StringFixed(2), 16),
		fw.L(" ", 1),
	}
}

// GenerateSAPData renders the SAP data file: per invoice one B header line
// followed by one line per fund, C for all but the last which is D.
func GenerateSAPData(today time.Time, invoices []models.Invoice) string {
	var records []fw.Record
	for _, inv := range invoices {
		records = append(records, headerRecord{
			today:   today,
			invoice: inv,
			address: FormatAddressForSAP(inv.Vendor.Address.Lines),
		})
		for i, f := range inv.Funds {
			records = append(records, fundRecord{last: i == len(inv.Funds)-1, fund: f})
		}
	}
	return string(fw.Create(records, nil))
}

// Control file fields that never change: no credits are sent, and control 4
// is a constant given by Accounts Payable.
const (
	controlCredit = "00000000000000000000"
	controlFour   = "00100100000000000000"
)

func zeroPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// GenerateSAPControl renders the control file for a data file whose invoices
// add up to total.
func GenerateSAPControl(data string, total decimal.Decimal) string {
	lines := 0
	if data != "" {
		lines = len(strings.Split(strings.TrimSuffix(data, "\n"), "\n"))
	}
	cents := zeroPad(strings.Replace(total.StringFixed(2), ".", "", 1), 20)

	var sb strings.Builder
	sb.WriteString(zeroPad(strconv.Itoa(len(data)), 16))
	sb.WriteString(zeroPad(strconv.Itoa(lines), 16))
	sb.WriteString(controlCredit)
	sb.WriteString(cents) // debit
	sb.WriteString(cents) // control 3 repeats the debit total
	sb.WriteString(controlFour)
	sb.WriteString("\n")
	return sb.String()
}

// CalculateInvoicesTotalAmount sums the invoice totals exactly.
func CalculateInvoicesTotalAmount(invoices []models.Invoice) decimal.Decimal {
	total := decimal.Zero
	for _, inv := range invoices {
		total = total.Add(inv.TotalAmount)
	}
	return total
}

// GenerateSAPFileNames returns the data and control file names for a run.
func GenerateSAPFileNames(sequenceNumber string, date time.Time) (dataFile, controlFile string) {
	stamp := date.Format("20060102") + "000000"
	return "dlibsapg." + sequenceNumber + "." + stamp, "clibsapg." + sequenceNumber + "." + stamp
}
