package executors

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/mitlibraries/llama/pkg/alma"
	"github.com/mitlibraries/llama/pkg/email"
	"github.com/mitlibraries/llama/pkg/sap"
)

// Alma is the part of the Alma API an SAP run reads from and writes to.
type Alma interface {
	sap.Reader
	sap.InvoiceLister
	MarkInvoicePaid(ctx context.Context, invoiceID string, date time.Time, amount decimal.Decimal, currency string) (alma.Invoice, error)
}

// Mailer sends an email and returns its message id.
type Mailer interface {
	Send(ctx context.Context, m email.Message) (string, error)
}

// Uploader puts files in the SAP dropbox.
type Uploader interface {
	SendFile(name string, contents []byte) error
	Close() error
}

// DialFunc opens a new dropbox session.
type DialFunc func(ctx context.Context) (Uploader, error)

// Settings are the run values taken from configuration.
type Settings struct {
	Workspace        string
	SSMPath          string
	FromEmail        string
	ReplyToEmail     string
	FinalRecipients  string
	ReviewRecipients string
}

// Options gate the side effects of a run. A review run (FinalRun false)
// never generates SAP files; a dry run (RealRun false) only logs.
type Options struct {
	Date     time.Time
	FinalRun bool
	RealRun  bool
}

type Executor struct {
	logger   *log.Logger
	settings Settings
	alma     Alma
	mailer   Mailer
	params   sap.ParameterStore
	dial     DialFunc
	out      io.Writer
	now      func() time.Time
}

func New(logger *log.Logger, settings Settings, alma Alma, mailer Mailer, params sap.ParameterStore, dial DialFunc, out io.Writer) *Executor {
	return &Executor{
		logger:   logger,
		settings: settings,
		alma:     alma,
		mailer:   mailer,
		params:   params,
		dial:     dial,
		out:      out,
		now:      time.Now,
	}
}
