package executors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mitlibraries/llama/pkg/models"
	"github.com/mitlibraries/llama/pkg/sap"
)

// File is a generated SAP file.
type File struct {
	Name     string
	Contents string
}

// reviewSequence stands in for the SAP sequence number on review runs, which
// never record one.
const reviewSequence = "0000"

// Run processes monographs, then serials. Each type with invoices gets its
// own sequence number, files and email. Only final runs read the sequence
// counter from the parameter store.
func (e *Executor) Run(ctx context.Context, batch *Batch, opts Options) (Counts, error) {
	var total Counts
	for _, group := range []struct {
		t        models.PurchaseType
		invoices []models.Invoice
	}{
		{models.Monograph, batch.Monographs},
		{models.Serial, batch.Serials},
	} {
		if len(group.invoices) == 0 {
			e.logger.Info("no invoices to process", "type", group.t)
			continue
		}
		seq := reviewSequence
		if opts.FinalRun {
			next, err := sap.NextSequenceNumber(ctx, e.params, e.settings.SSMPath)
			if err != nil {
				return total, err
			}
			seq = next
		}
		counts, err := e.runType(ctx, batch.Problems, group.invoices, group.t, seq, opts)
		if err != nil {
			return total, fmt.Errorf("%s run failed: %w", group.t, err)
		}
		total = total.Add(counts)
	}
	return total, nil
}

func (e *Executor) runType(ctx context.Context, problems, invoices []models.Invoice, t models.PurchaseType, seq string, opts Options) (Counts, error) {
	title := strings.ToUpper(string(t[:1])) + string(t[1:])
	e.logger.Info("starting file generation", "type", t)

	dataFile, controlFile := sap.GenerateSAPFileNames(seq, opts.Date)
	e.logger.Info("generated SAP file names", "data", dataFile, "control", controlFile)

	summary := sap.GenerateSummary(problems, invoices, dataFile, controlFile)
	report := sap.GenerateReport(opts.Date, invoices)
	sapInvoices, others := sap.SplitInvoicesByFieldValue(invoices, sap.PaymentMethod, sap.AccountingDepartment)

	if opts.FinalRun {
		data := sap.GenerateSAPData(opts.Date, sapInvoices)
		control := sap.GenerateSAPControl(data, sap.CalculateInvoicesTotalAmount(sapInvoices))
		e.logger.Info(title+"s data file contents", "contents", "\n"+data)
		e.logger.Info(title+"s control file contents", "contents", "\n"+control)

		if opts.RealRun {
			if err := e.Apply(ctx, invoices, t, seq, opts.Date, File{dataFile, data}, File{controlFile, control}); err != nil {
				return Counts{}, err
			}
		}
	}

	if opts.RealRun {
		id, err := e.mailer.Send(ctx, e.ReportEmail(summary, report, t, opts.Date, opts.FinalRun))
		if err != nil {
			return Counts{}, err
		}
		e.logger.Info(title+"s email sent", "message_id", id)
	} else {
		e.logger.Info(title+"s summary", "contents", "\n"+summary)
		e.logger.Info(title+"s report", "contents", "\n"+report)
	}

	return Counts{Total: len(invoices), SAP: len(sapInvoices), Other: len(others)}, nil
}

// Apply performs the side effects of a real final run: upload the data and
// control files, record the sequence number, then mark the invoices paid.
// Nothing is rolled back if a later step fails.
func (e *Executor) Apply(ctx context.Context, invoices []models.Invoice, t models.PurchaseType, seq string, date time.Time, files ...File) error {
	e.logger.Info("real run, sending files to SAP dropbox")
	up, err := e.dial(ctx)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := up.SendFile(f.Name, []byte(f.Contents)); err != nil {
			up.Close()
			return err
		}
		e.logger.Info("sent file to SAP dropbox", "name", f.Name, "workspace", e.settings.Workspace)
	}
	if err := up.Close(); err != nil {
		e.logger.Warn("failed to close dropbox session", "err", err)
	}

	e.logger.Info("real run, updating SAP sequence in parameter store")
	if err := sap.UpdateSequence(ctx, e.params, e.settings.SSMPath, seq, date, t); err != nil {
		return err
	}

	e.logger.Info("real run, marking invoices paid in Alma")
	count, err := e.markInvoicesPaid(ctx, invoices, date)
	if err != nil {
		return err
	}
	e.logger.Info("invoices marked as paid in Alma", "count", count, "type", t)
	return nil
}

// markInvoicesPaid returns how many invoices Alma reported as paid. An
// invoice Alma did not mark paid is logged for manual follow-up.
func (e *Executor) markInvoicesPaid(ctx context.Context, invoices []models.Invoice, date time.Time) (int, error) {
	paid := 0
	for _, inv := range invoices {
		e.logger.Debug("marking invoice paid", "id", inv.ID)
		res, err := e.alma.MarkInvoicePaid(ctx, inv.ID, date, inv.TotalAmount, inv.Currency)
		if err != nil {
			return paid, fmt.Errorf("failed to mark invoice %s paid: %w", inv.ID, err)
		}
		if res.Paid() {
			paid++
			continue
		}
		e.logger.Error(fmt.Sprintf("Something went wrong marking invoice '%s' paid in Alma, it should be investigated manually", inv.ID))
	}
	return paid, nil
}
