package sap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitlibraries/llama/pkg/alma"
	"github.com/mitlibraries/llama/pkg/models"
)

// AlmaDateLayout is the layout of Alma invoice dates, e.g. 2021-09-27Z.
const AlmaDateLayout = "2006-01-02Z"

var ErrMissingField = errors.New("invoice record is missing a required field")

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

// ExtractInvoiceData copies the fields SAP needs out of a raw Alma invoice.
// Vendor details and funds are filled in later by the enricher.
func ExtractInvoiceData(rec alma.Invoice) (models.Invoice, error) {
	switch {
	case rec.InvoiceDate == "":
		return models.Invoice{}, missing("invoice_date")
	case rec.ID == "":
		return models.Invoice{}, missing("id")
	case rec.Number == "":
		return models.Invoice{}, missing("number")
	case rec.Vendor == nil || rec.Vendor.Value == "":
		return models.Invoice{}, missing("vendor")
	case rec.PaymentMethod == nil:
		return models.Invoice{}, missing("payment_method")
	case rec.TotalAmount == nil:
		return models.Invoice{}, missing("total_amount")
	case rec.Currency == nil:
		return models.Invoice{}, missing("currency")
	}

	date, err := time.Parse(AlmaDateLayout, rec.InvoiceDate)
	if err != nil {
		return models.Invoice{}, fmt.Errorf("failed to parse invoice date %q: %w", rec.InvoiceDate, err)
	}

	return models.Invoice{
		Date:          date,
		ID:            rec.ID,
		Number:        rec.Number,
		Type:          PurchaseType(rec.Vendor.Value),
		PaymentMethod: rec.PaymentMethod.Value,
		TotalAmount:   *rec.TotalAmount,
		Currency:      rec.Currency.Value,
	}, nil
}

// PurchaseType is serial for vendor codes ending in -S, monograph otherwise.
func PurchaseType(vendorCode string) models.PurchaseType {
	if strings.HasSuffix(vendorCode, "-S") {
		return models.Serial
	}
	return models.Monograph
}
