package alma

import "github.com/shopspring/decimal"

// Ref is Alma's {"value": ..., "desc": ...} code table reference.
type Ref struct {
	Value string `json:"value"`
	Desc  string `json:"desc,omitempty"`
}

// Invoice is the subset of an Alma invoice record used here. Pointer fields
// distinguish a missing key from an empty value.
type Invoice struct {
	ID            string           `json:"id"`
	Number        string           `json:"number"`
	InvoiceDate   string           `json:"invoice_date"`
	Vendor        *Ref             `json:"vendor"`
	PaymentMethod *Ref             `json:"payment_method"`
	TotalAmount   *decimal.Decimal `json:"total_amount"`
	Currency      *Ref             `json:"currency"`
	InvoiceLines  InvoiceLines     `json:"invoice_lines"`
	Payment       *Payment         `json:"payment,omitempty"`
}

type InvoiceLines struct {
	InvoiceLine []InvoiceLine `json:"invoice_line"`
}

type InvoiceLine struct {
	FundDistribution []FundDistribution `json:"fund_distribution"`
}

type FundDistribution struct {
	FundCode Ref             `json:"fund_code"`
	Amount   decimal.Decimal `json:"amount"`
}

type Payment struct {
	PaymentStatus Ref `json:"payment_status"`
}

// Paid reports whether Alma accepted the invoice as paid.
func (i *Invoice) Paid() bool {
	return i.Payment != nil && i.Payment.PaymentStatus.Value == "PAID"
}

type Vendor struct {
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	ContactInfo ContactInfo `json:"contact_info"`
}

type ContactInfo struct {
	Address []Address `json:"address"`
}

type Address struct {
	Line1         string `json:"line1"`
	Line2         string `json:"line2"`
	Line3         string `json:"line3"`
	Line4         string `json:"line4"`
	Line5         string `json:"line5"`
	City          string `json:"city"`
	StateProvince string `json:"state_province"`
	PostalCode    string `json:"postal_code"`
	Country       *Ref   `json:"country"`
	AddressType   []Ref  `json:"address_type"`
}

// FundList is the response of a fund search; TotalRecordCount is zero when
// the code matched nothing.
type FundList struct {
	Fund             []Fund `json:"fund"`
	TotalRecordCount int    `json:"total_record_count"`
}

type Fund struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	ExternalID string `json:"external_id"`
}

type BriefPOLine struct {
	Number      string `json:"number"`
	CreatedDate string `json:"created_date"`
}

type POLine struct {
	Number           string               `json:"number"`
	VendorAccount    string               `json:"vendor_account"`
	ResourceMetadata ResourceMetadata     `json:"resource_metadata"`
	Price            *Amount              `json:"price"`
	CreatedDate      string               `json:"created_date"`
	FundDistribution []POFundDistribution `json:"fund_distribution"`
	Note             []Note               `json:"note"`
}

type ResourceMetadata struct {
	Title *string `json:"title"`
}

// Amount is Alma's {"sum": "12.0", "currency": ...} money object.
type Amount struct {
	Sum decimal.Decimal `json:"sum"`
}

type POFundDistribution struct {
	FundCode Ref     `json:"fund_code"`
	Amount   *Amount `json:"amount"`
}

type Note struct {
	NoteText string `json:"note_text"`
}
