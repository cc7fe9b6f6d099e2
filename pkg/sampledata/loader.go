// Package sampledata loads the vendors and invoices described by a manifest
// into a sandbox Alma instance so SAP runs can be exercised end to end.
package sampledata

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/segmentio/encoding/json"

	"github.com/mitlibraries/llama/pkg/alma"
	"github.com/mitlibraries/llama/pkg/models"
)

// VendorNotFound is the Alma error code for an unknown vendor.
const VendorNotFound = "402880"

var ErrProduction = errors.New("sample data cannot be loaded into the production Alma instance")

// Alma is the part of the Alma client the loader writes through.
type Alma interface {
	GetVendorDetails(ctx context.Context, vendorCode string) (alma.Vendor, error)
	GetVendorInvoices(ctx context.Context, vendorCode string) ([]alma.Invoice, error)
	CreateVendor(ctx context.Context, vendor any) (alma.Vendor, error)
	CreateInvoice(ctx context.Context, invoice any) (alma.Invoice, error)
	CreateInvoiceLine(ctx context.Context, invoiceID string, line any) (map[string]any, error)
	ProcessInvoice(ctx context.Context, invoiceID string) (alma.Invoice, error)
}

type Loader struct {
	alma   Alma
	logger *log.Logger
}

func New(logger *log.Logger, a Alma) *Loader {
	return &Loader{alma: a, logger: logger}
}

// CheckWorkspace refuses the prod workspace.
func CheckWorkspace(workspace string) error {
	if workspace == "prod" {
		return ErrProduction
	}
	return nil
}

// Load creates every vendor and invoice in the manifest, processes the new
// invoices and returns how many were created.
func (l *Loader) Load(ctx context.Context, manifest models.Manifest) (int, error) {
	count := 0
	for _, label := range manifest.Labels() {
		fixture := manifest[label]
		code, err := l.CreateVendorIfNeeded(ctx, fixture.VendorData)
		if err != nil {
			return count, err
		}
		next, err := l.NextInvoiceNumber(ctx, code)
		if err != nil {
			return count, err
		}
		ids, err := l.CreateInvoicesWithLines(ctx, fixture.Invoices, fixture.Abbreviation, next)
		if err != nil {
			return count, err
		}
		if _, err := l.ProcessInvoices(ctx, ids); err != nil {
			return count, err
		}
		count += len(ids)
	}
	return count, nil
}

// CreateVendorIfNeeded creates the vendor when Alma does not know its code.
func (l *Loader) CreateVendorIfNeeded(ctx context.Context, vendorData map[string]any) (string, error) {
	code, err := models.VendorFixture{VendorData: vendorData}.Code()
	if err != nil {
		return "", err
	}

	_, err = l.alma.GetVendorDetails(ctx, code)
	if err == nil {
		l.logger.Info("vendor already exists in Alma, not creating it", "vendor", code)
		return code, nil
	}

	var httpErr *alma.HTTPError
	if !errors.As(err, &httpErr) || !httpErr.HasErrorCode(VendorNotFound) {
		l.logAlmaError(err)
		return "", fmt.Errorf("failed to look up vendor %s: %w", code, err)
	}

	created, err := l.alma.CreateVendor(ctx, vendorData)
	if err != nil {
		l.logAlmaError(err)
		return "", fmt.Errorf("failed to create vendor %s: %w", code, err)
	}
	l.logger.Info("vendor created in Alma", "vendor", created.Code)
	return code, nil
}

// NextInvoiceNumber is one more than the highest number after the "-" in the
// vendor's existing invoice numbers. Numbers without a numeric suffix are
// ignored.
func (l *Loader) NextInvoiceNumber(ctx context.Context, vendorCode string) (int, error) {
	invoices, err := l.alma.GetVendorInvoices(ctx, vendorCode)
	if err != nil {
		return 0, fmt.Errorf("failed to get invoices for vendor %s: %w", vendorCode, err)
	}

	latest := 0
	for _, inv := range invoices {
		_, suffix, ok := strings.Cut(inv.Number, "-")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		latest = max(latest, n)
	}
	return latest + 1, nil
}

// InvoiceNumber is the number given to a created sample invoice.
func InvoiceNumber(abbreviation string, n int) string {
	return fmt.Sprintf("TestSAPInvoice%s-%d", abbreviation, n)
}

// CreateInvoicesWithLines creates each invoice, numbered from next, and its
// lines. It returns the Alma ids of the created invoices.
func (l *Loader) CreateInvoicesWithLines(ctx context.Context, invoices []models.InvoiceFixture, abbreviation string, next int) ([]string, error) {
	ids := make([]string, 0, len(invoices))
	for _, fixture := range invoices {
		number := InvoiceNumber(abbreviation, next)
		body := maps.Clone(fixture.PostJSON)
		if body == nil {
			body = map[string]any{}
		}
		body["number"] = number

		created, err := l.alma.CreateInvoice(ctx, body)
		if err != nil {
			l.logAlmaError(err)
			return ids, fmt.Errorf("failed to create invoice %s: %w", number, err)
		}
		l.logger.Info("invoice created", "number", number, "id", created.ID)
		ids = append(ids, created.ID)

		lines, err := l.CreateInvoiceLines(ctx, created.ID, fixture.InvoiceLines)
		if err != nil {
			return ids, err
		}
		l.logger.Info("created invoice lines", "number", number, "lines", lines)
		next++
	}
	return ids, nil
}

func (l *Loader) CreateInvoiceLines(ctx context.Context, invoiceID string, lines []map[string]any) (int, error) {
	created := 0
	for _, line := range lines {
		resp, err := l.alma.CreateInvoiceLine(ctx, invoiceID, line)
		if err != nil {
			l.logAlmaError(err)
			return created, fmt.Errorf("failed to create line for invoice %s: %w", invoiceID, err)
		}
		l.logger.Debug("invoice line created", "invoice", invoiceID, "data", toJSON(resp))
		created++
	}
	return created, nil
}

func (l *Loader) ProcessInvoices(ctx context.Context, ids []string) (int, error) {
	processed := 0
	for _, id := range ids {
		if _, err := l.alma.ProcessInvoice(ctx, id); err != nil {
			l.logAlmaError(err)
			return processed, fmt.Errorf("failed to process invoice %s: %w", id, err)
		}
		l.logger.Info("invoice processed in Alma", "id", id)
		processed++
	}
	return processed, nil
}

func (l *Loader) logAlmaError(err error) {
	var httpErr *alma.HTTPError
	if errors.As(err, &httpErr) {
		l.logger.Error("alma request failed", "status", httpErr.StatusCode, "body", string(httpErr.Body))
	}
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
