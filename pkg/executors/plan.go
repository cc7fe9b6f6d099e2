package executors

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/mitlibraries/llama/pkg/models"
	"github.com/mitlibraries/llama/pkg/sap"
)

// Batch is one retrieval of invoices waiting to be sent, already enriched
// and partitioned.
type Batch struct {
	Problems   []models.Invoice
	Monographs []models.Invoice
	Serials    []models.Invoice
}

// Total is the number of invoices retrieved.
func (b *Batch) Total() int {
	return len(b.Problems) + len(b.Monographs) + len(b.Serials)
}

// Prepare retrieves the invoices waiting to be sent, enriches them through a
// run-scoped cache and splits them into problems, monographs and serials.
func (e *Executor) Prepare(ctx context.Context) (*Batch, error) {
	records, err := sap.RetrieveSortedInvoices(ctx, e.alma, sap.WaitingToBeSent)
	if err != nil {
		return nil, err
	}
	e.logger.Info("retrieved invoices", "count", len(records), "status", sap.WaitingToBeSent)

	cache := sap.NewCache(e.alma)
	problems, parsed, err := sap.ParseInvoiceRecords(ctx, cache, records, e.logger)
	if err != nil {
		return nil, err
	}
	monos, serials := sap.SplitInvoicesByFieldValue(parsed, sap.Type, string(models.Monograph), string(models.Serial))
	e.logger.Info("parsed invoices", "problems", len(problems), "monographs", len(monos), "serials", len(serials))

	return &Batch{Problems: problems, Monographs: monos, Serials: serials}, nil
}

// Plan prints a preview of what a run would submit: problem invoices in red,
// invoices paid outside SAP in gray and SAP invoices in green.
func (e *Executor) Plan(batch *Batch) {
	problemStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	otherStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	sapStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	for _, inv := range batch.Problems {
		line := fmt.Sprintf("%-10s | %-18s | %-35s | %s", "problem", inv.ID, inv.Vendor.Code, inv.Number)
		fmt.Fprintln(e.out, problemStyle.Render("! "+line))
	}
	for _, group := range [][]models.Invoice{batch.Monographs, batch.Serials} {
		for _, inv := range group {
			line := fmt.Sprintf("%-10s | %-18s | %-35s | %12s %s", inv.Type, inv.ExternalReference(), inv.Vendor.Name, inv.TotalAmount.StringFixed(2), inv.Currency)
			if inv.PaymentMethod != sap.AccountingDepartment {
				fmt.Fprintln(e.out, otherStyle.Render("= "+line+" ("+inv.PaymentMethod+")"))
				continue
			}
			fmt.Fprintln(e.out, sapStyle.Render("+ "+line))
		}
	}

	clean := len(batch.Monographs) + len(batch.Serials)
	if len(batch.Problems) == 0 {
		fmt.Fprintf(e.out, "\nPlan: %d invoice(s) ready, no problems\n", clean)
	} else {
		fmt.Fprintf(e.out, "\nPlan: %d invoice(s) ready, %d must be fixed before a final run\n", clean, len(batch.Problems))
	}
}
