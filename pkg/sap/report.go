package sap

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	fw "github.com/mitlibraries/llama/pkg/fixedwidth"
	"github.com/mitlibraries/llama/pkg/models"
)

// formatAmount renders d with two decimals and comma thousands separators.
func formatAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac := s[:len(s)-3], s[len(s)-3:]

	var sb strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	return sign + sb.String() + frac
}

// GenerateReport renders one cover sheet per invoice, each ending with a form
// feed.
func GenerateReport(today time.Time, invoices []models.Invoice) string {
	var sb strings.Builder
	for _, inv := range invoices {
		a := inv.Vendor.Address

		fmt.Fprintf(&sb, "\n\n%33sMIT LIBRARIES\n\n\n", "")
		fmt.Fprintf(&sb, "Date: %-36sVendor code   : %s\n", today.Format("01/02/2006"), inv.Vendor.Code)
		fmt.Fprintf(&sb, "%57s\n\n", "Accounting ID :")
		fmt.Fprintf(&sb, "Vendor:  %s\n", inv.Vendor.Name)
		for _, line := range a.Lines {
			fmt.Fprintf(&sb, "         %s\n", line)
		}
		sb.WriteString("         ")
		if a.City != "" {
			sb.WriteString(a.City + ", ")
		}
		if a.StateProvince != "" {
			sb.WriteString(a.StateProvince + " ")
		}
		sb.WriteString(a.PostalCode)
		fmt.Fprintf(&sb, "\n         %s\n\n", a.Country)

		sb.WriteString("Invoice no.            Fiscal Account     Amount            Inv. Date\n")
		sb.WriteString("------------------     -----------------  -------------     ----------\n")
		for _, f := range inv.Funds {
			fmt.Fprintf(&sb, "%-23s", inv.ExternalReference())
			fmt.Fprintf(&sb, "%s %s     ", f.CostObject, f.GLAccount)
			fmt.Fprintf(&sb, "%-18s", formatAmount(f.Amount))
			fmt.Fprintf(&sb, "%s\n", inv.Date.Format("01/02/2006"))
		}
		sb.WriteString("\n\n")
		fmt.Fprintf(&sb, "Total/Currency:             %s      %s\n\n", formatAmount(inv.TotalAmount), inv.Currency)
		fmt.Fprintf(&sb, "Payment Method:  %s\n\n\n", inv.PaymentMethod)
		fmt.Fprintf(&sb, "%44s %s\n\n", "Departmental Approval", strings.Repeat("_", 34))
		fmt.Fprintf(&sb, "%50s %s\n\n\n", "Financial Services Approval", strings.Repeat("_", 28))
		sb.WriteString("\f")
	}
	return sb.String()
}

// GenerateSummaryWarning lists what must be fixed in Alma before a final run.
func GenerateSummaryWarning(problems []models.Invoice) string {
	var sb strings.Builder
	for _, inv := range problems {
		fmt.Fprintf(&sb, "Warning! Invoice: %s\n", inv.ID)
		if inv.Problems.ExtractError != "" {
			fmt.Fprintf(&sb, "Invoice record is incomplete\n%s\n\n", inv.Problems.ExtractError)
		}
		for _, code := range inv.Problems.FundErrors {
			fmt.Fprintf(&sb, "There was a problem retrieving data\nfor fund: %s\n\n", code)
		}
		for _, mb := range inv.Problems.MultibyteErrors {
			fmt.Fprintf(&sb, "Invoice field: %s\nContains multibyte character: %s\n\n", mb.Field, mb.Character)
		}
		if inv.Problems.VendorAddressError != "" {
			fmt.Fprintf(&sb, "No addresses found for vendor: %s\n\n", inv.Problems.VendorAddressError)
		}
	}
	sb.WriteString("Please fix the above before starting a final-run\n\n")
	return sb.String()
}

// GenerateSummary renders the run summary sent as the email body. Invoices
// paid outside SAP are listed at the end and left out of the totals.
func GenerateSummary(problems, invoices []models.Invoice, dataFileName, controlFileName string) string {
	var sb, excluded strings.Builder
	total := decimal.Zero
	count := 0

	sb.WriteString("--- MIT Libraries--- Alma to SAP Invoice Feed\n\n\n\n")
	fmt.Fprintf(&sb, "Data file: %s\n\n", dataFileName)
	fmt.Fprintf(&sb, "Control file: %s\n\n\n\n", controlFileName)
	if len(problems) > 0 {
		sb.WriteString(GenerateSummaryWarning(problems))
	}
	for _, inv := range invoices {
		if inv.PaymentMethod != AccountingDepartment {
			fmt.Fprintf(&excluded, "%s:\t%s\t%s\t%s\n", inv.PaymentMethod, inv.Number, inv.Vendor.Name, inv.Vendor.Code)
			continue
		}
		sb.WriteString(fw.Pad(inv.Vendor.Name, 39, fw.Left))
		sb.WriteString(fw.Pad(inv.ExternalReference(), 20, fw.Left))
		sb.WriteString(inv.TotalAmount.StringFixed(2) + "\n")
		total = total.Add(inv.TotalAmount)
		count++
	}
	fmt.Fprintf(&sb, "\nTotal payment:       $%s\n\n", formatAmount(total))
	fmt.Fprintf(&sb, "Invoice count:       %d\n\n\n", count)
	sb.WriteString("Authorized signature __________________________________\n\n\n")
	sb.WriteString(excluded.String())
	return sb.String()
}
