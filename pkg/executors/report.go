package executors

import (
	"fmt"
	"time"

	"github.com/mitlibraries/llama/pkg/email"
	"github.com/mitlibraries/llama/pkg/models"
)

// Counts summarizes the invoices handled by one run.
type Counts struct {
	Total int
	SAP   int
	Other int
}

// Add sums two counts.
func (c Counts) Add(o Counts) Counts {
	return Counts{Total: c.Total + o.Total, SAP: c.SAP + o.SAP, Other: c.Other + o.Other}
}

// ReportEmail builds the summary email for a run. Final runs go to the final
// recipients with the cover sheets attached; review runs go to the review
// recipients. Attachment names are stamped with the time the email is built.
func (e *Executor) ReportEmail(summary, report string, t models.PurchaseType, date time.Time, final bool) email.Message {
	label := t.EmailLabel()
	m := email.Message{
		From:    e.settings.FromEmail,
		ReplyTo: e.settings.ReplyToEmail,
		Body:    summary,
	}
	stamp := e.now().Format("20060102150405")
	if final {
		m.To = e.settings.FinalRecipients
		m.Subject = fmt.Sprintf("Libraries invoice feed - %ss - %s", label, date.Format("20060102"))
		m.Attachments = []email.Attachment{{Filename: fmt.Sprintf("cover_sheets_%s_%s.txt", label, stamp), Content: []byte(report)}}
	} else {
		m.To = e.settings.ReviewRecipients
		m.Subject = fmt.Sprintf("REVIEW libraries invoice feed - %ss - %s", label, date.Format("20060102"))
		m.Attachments = []email.Attachment{{Filename: fmt.Sprintf("review_%s_report_%s.txt", label, stamp), Content: []byte(report)}}
	}
	return m
}
