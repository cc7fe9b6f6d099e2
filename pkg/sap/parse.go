package sap

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/mitlibraries/llama/pkg/alma"
	"github.com/mitlibraries/llama/pkg/models"
)

const (
	// WaitingToBeSent is the Alma workflow status of invoices ready for SAP.
	WaitingToBeSent = "Waiting to be Sent"
	// AccountingDepartment is the payment method of invoices paid through SAP.
	AccountingDepartment = "ACCOUNTINGDEPARTMENT"
)

// InvoiceLister fetches raw invoices by workflow status.
type InvoiceLister interface {
	GetInvoicesByStatus(ctx context.Context, status string) ([]alma.Invoice, error)
}

// RetrieveSortedInvoices returns the invoices with the given status ordered by
// vendor code, then invoice number.
func RetrieveSortedInvoices(ctx context.Context, client InvoiceLister, status string) ([]alma.Invoice, error) {
	invoices, err := client.GetInvoicesByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve invoices: %w", err)
	}
	vendor := func(i alma.Invoice) string {
		if i.Vendor == nil {
			return ""
		}
		return i.Vendor.Value
	}
	sort.SliceStable(invoices, func(i, j int) bool {
		vi, vj := vendor(invoices[i]), vendor(invoices[j])
		if vi != vj {
			return vi < vj
		}
		return invoices[i].Number < invoices[j].Number
	})
	return invoices, nil
}

// ParseInvoiceRecords extracts and enriches every record. Invoices with
// missing data, vendor address, fund or multibyte problems come back in
// problems; the rest in parsed. Only lookup failures abort.
func ParseInvoiceRecords(ctx context.Context, r Reader, records []alma.Invoice, logger *log.Logger) (problems, parsed []models.Invoice, err error) {
	for i, rec := range records {
		logger.Info("extracting data for invoice", "id", rec.ID, "record", i+1, "of", len(records))

		inv, err := ExtractInvoiceData(rec)
		if err != nil {
			if !errors.Is(err, ErrMissingField) {
				return nil, nil, err
			}
			logger.Warn("invoice record is incomplete", "id", rec.ID, "error", err)
			inv = models.Invoice{ID: rec.ID, Number: rec.Number}
			inv.Problems.ExtractError = err.Error()
			problems = append(problems, inv)
			continue
		}

		vendor, err := PopulateVendorData(ctx, r, rec.Vendor.Value)
		var addrErr *VendorAddressError
		switch {
		case errors.As(err, &addrErr):
			inv.Problems.VendorAddressError = addrErr.VendorCode
		case err != nil:
			return nil, nil, err
		default:
			inv.Vendor = vendor
		}

		funds, err := PopulateFundData(ctx, r, rec)
		var fundErr *FundError
		switch {
		case errors.As(err, &fundErr):
			inv.Problems.FundErrors = fundErr.FundCodes
		case err != nil:
			return nil, nil, err
		default:
			inv.Funds = funds
		}

		inv.Problems.MultibyteErrors = CheckForMultibyte(inv)

		if inv.HasProblems() {
			problems = append(problems, inv)
		} else {
			parsed = append(parsed, inv)
		}
	}
	return problems, parsed, nil
}

// FieldFunc selects the invoice field to split on.
type FieldFunc func(models.Invoice) string

func PaymentMethod(i models.Invoice) string { return i.PaymentMethod }

func Type(i models.Invoice) string { return string(i.Type) }

// SplitInvoicesByFieldValue returns invoices whose field equals first, and
// those equal to second. Without second, the second list holds everything
// that did not match first.
func SplitInvoicesByFieldValue(invoices []models.Invoice, field FieldFunc, first string, second ...string) (firsts, seconds []models.Invoice) {
	for _, inv := range invoices {
		v := field(inv)
		switch {
		case v == first:
			firsts = append(firsts, inv)
		case len(second) == 0 || v == second[0]:
			seconds = append(seconds, inv)
		}
	}
	return firsts, seconds
}
