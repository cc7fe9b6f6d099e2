package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseType separates monograph and serial invoices; each type gets its own
// SAP run and sequence number.
type PurchaseType string

const (
	Monograph PurchaseType = "monograph"
	Serial    PurchaseType = "serial"
)

// SequenceLabel is the suffix stored alongside the SAP sequence number.
func (t PurchaseType) SequenceLabel() string {
	if t == Monograph {
		return "mono"
	}
	return "ser"
}

// EmailLabel is the short form used in email subjects and attachment names.
func (t PurchaseType) EmailLabel() string {
	if t == Monograph {
		return "mono"
	}
	return string(t)
}

// Invoice holds everything SAP needs from one Alma invoice.
type Invoice struct {
	Date          time.Time       `json:"date"`
	ID            string          `json:"id"`
	Number        string          `json:"number"`
	Type          PurchaseType    `json:"type"`
	PaymentMethod string          `json:"payment_method"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	Vendor        Vendor          `json:"vendor"`
	Funds         []Fund          `json:"funds"`
	Problems      Problems        `json:"-"`
}

// ExternalReference is the invoice number followed by the invoice date as
// YYMMDD. SAP uses it as the document's external reference.
func (i *Invoice) ExternalReference() string {
	return i.Number + i.Date.Format("060102")
}

// HasProblems reports whether the invoice must be held back from a final run.
func (i *Invoice) HasProblems() bool {
	return !i.Problems.Empty()
}

type Vendor struct {
	Name    string  `json:"name"`
	Code    string  `json:"code"`
	Address Address `json:"address"`
}

type Address struct {
	Lines         []string `json:"lines"`
	City          string   `json:"city"`
	StateProvince string   `json:"state_province"`
	PostalCode    string   `json:"postal_code"`
	Country       string   `json:"country"`
}

// Fund is one aggregated fund distribution, keyed by the fund's external id.
type Fund struct {
	ExternalID string          `json:"external_id"`
	Amount     decimal.Decimal `json:"amount"`
	CostObject string          `json:"cost_object"`
	GLAccount  string          `json:"gl_account"`
}

type MultibyteError struct {
	Field     string
	Character string
}

// Problems collects the per-invoice failures found while enriching an invoice.
type Problems struct {
	FundErrors         []string
	MultibyteErrors    []MultibyteError
	VendorAddressError string
	ExtractError       string
}

func (p Problems) Empty() bool {
	return len(p.FundErrors) == 0 &&
		len(p.MultibyteErrors) == 0 &&
		p.VendorAddressError == "" &&
		p.ExtractError == ""
}
