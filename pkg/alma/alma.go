package alma

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/sethgrid/pester"
	"github.com/shopspring/decimal"
)

// DefaultPageSize is the page size used for paged Alma endpoints.
const DefaultPageSize = 100

// Doer abstracts https://pkg.go.dev/net/http#Client.Do.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to the Alma acquisitions REST API.
type Client struct {
	apiURL      string
	apiKey      string
	accept      string
	contentType string
	doer        Doer
}

type Option func(*Client)

// WithDoer replaces the retrying HTTP client.
func WithDoer(d Doer) Option {
	return func(c *Client) {
		c.doer = d
	}
}

// New returns a client for apiURL. maxRetries is the number of attempts per
// request; values below one mean a single attempt.
func New(apiURL, apiKey string, maxRetries int, opts ...Option) *Client {
	if maxRetries < 1 {
		maxRetries = 1
	}
	p := pester.New()
	p.Backoff = pester.ExponentialBackoff
	p.MaxRetries = maxRetries
	p.RetryOnHTTP429 = true
	p.Timeout = 60 * time.Second

	c := &Client{
		apiURL:      strings.TrimRight(apiURL, "/") + "/",
		apiKey:      apiKey,
		accept:      "application/json",
		contentType: "application/json",
		doer:        p,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetContentHeaders changes the Accept and Content-Type headers sent with
// every request.
func (c *Client) SetContentHeaders(accept, contentType string) {
	c.accept = accept
	c.contentType = contentType
}

// HTTPError is returned for any response with a status of 400 or above.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("alma: %s %s returned status %d", e.Method, e.URL, e.StatusCode)
}

// ErrorCodes returns the Alma errorCode values from the response body.
func (e *HTTPError) ErrorCodes() []string {
	var body struct {
		ErrorList struct {
			Error []struct {
				ErrorCode    string `json:"errorCode"`
				ErrorMessage string `json:"errorMessage"`
			} `json:"error"`
		} `json:"errorList"`
	}
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return nil
	}
	codes := make([]string, 0, len(body.ErrorList.Error))
	for _, item := range body.ErrorList.Error {
		codes = append(codes, item.ErrorCode)
	}
	return codes
}

// HasErrorCode reports whether Alma returned the given errorCode.
func (e *HTTPError) HasErrorCode(code string) bool {
	for _, c := range e.ErrorCodes() {
		if c == code {
			return true
		}
	}
	return false
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, body, out any) error {
	u := c.apiURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", c.accept)
	req.Header.Set("Content-Type", c.contentType)
	req.Header.Set("Authorization", "apikey "+c.apiKey)

	resp, err := c.doer.Do(req)
	if err != nil {
		return fmt.Errorf("alma: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &HTTPError{Method: method, URL: u, StatusCode: resp.StatusCode, Body: data}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

// getPaged walks an offset/limit paginated endpoint and returns the records
// stored under recordType in each page.
func getPaged[T any](ctx context.Context, c *Client, endpoint, recordType string, params url.Values, limit int) ([]T, error) {
	if params == nil {
		params = url.Values{}
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}

	var out []T
	for offset := 0; ; offset += limit {
		params.Set("limit", strconv.Itoa(limit))
		params.Set("offset", strconv.Itoa(offset))

		var page map[string]json.RawMessage
		if err := c.do(ctx, http.MethodGet, endpoint, params, nil, &page); err != nil {
			return nil, err
		}

		var records []T
		if raw, ok := page[recordType]; ok {
			if err := json.Unmarshal(raw, &records); err != nil {
				return nil, fmt.Errorf("failed to decode %s records: %w", recordType, err)
			}
		}
		out = append(out, records...)

		total := -1
		if raw, ok := page["total_record_count"]; ok {
			if err := json.Unmarshal(raw, &total); err != nil {
				return nil, fmt.Errorf("failed to decode total_record_count: %w", err)
			}
		}
		if len(records) == 0 || (total >= 0 && offset+limit >= total) {
			return out, nil
		}
	}
}

// GetBriefPOLines returns active PO lines, optionally narrowed to one
// acquisition method. Brief records carry only a few fields; use
// GetFullPOLine for the rest.
func (c *Client) GetBriefPOLines(ctx context.Context, acquisitionMethod string) ([]BriefPOLine, error) {
	params := url.Values{}
	params.Set("status", "ACTIVE")
	if acquisitionMethod != "" {
		params.Set("acquisition_method", acquisitionMethod)
	}
	return getPaged[BriefPOLine](ctx, c, "acq/po-lines", "po_line", params, DefaultPageSize)
}

func (c *Client) GetFullPOLine(ctx context.Context, poLineID string) (POLine, error) {
	var line POLine
	err := c.do(ctx, http.MethodGet, "acq/po-lines/"+url.PathEscape(poLineID), nil, nil, &line)
	return line, err
}

// GetFundByCode searches funds by code. A code that matches nothing returns a
// FundList with TotalRecordCount zero and no error.
func (c *Client) GetFundByCode(ctx context.Context, fundCode string) (FundList, error) {
	params := url.Values{}
	params.Set("q", "fund_code~"+fundCode)
	params.Set("view", "brief")
	var funds FundList
	err := c.do(ctx, http.MethodGet, "acq/funds", params, nil, &funds)
	return funds, err
}

func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (Invoice, error) {
	var inv Invoice
	err := c.do(ctx, http.MethodGet, "acq/invoices/"+url.PathEscape(invoiceID), nil, nil, &inv)
	return inv, err
}

func (c *Client) GetInvoicesByStatus(ctx context.Context, status string) ([]Invoice, error) {
	params := url.Values{}
	params.Set("invoice_workflow_status", status)
	return getPaged[Invoice](ctx, c, "acq/invoices", "invoice", params, DefaultPageSize)
}

func (c *Client) GetVendorDetails(ctx context.Context, vendorCode string) (Vendor, error) {
	var v Vendor
	err := c.do(ctx, http.MethodGet, "acq/vendors/"+url.PathEscape(vendorCode), nil, nil, &v)
	return v, err
}

func (c *Client) GetVendorInvoices(ctx context.Context, vendorCode string) ([]Invoice, error) {
	return getPaged[Invoice](ctx, c, "acq/vendors/"+url.PathEscape(vendorCode)+"/invoices", "invoice", nil, DefaultPageSize)
}

func (c *Client) CreateVendor(ctx context.Context, vendor any) (Vendor, error) {
	var v Vendor
	err := c.do(ctx, http.MethodPost, "acq/vendors", nil, vendor, &v)
	return v, err
}

func (c *Client) CreateInvoice(ctx context.Context, invoice any) (Invoice, error) {
	var inv Invoice
	err := c.do(ctx, http.MethodPost, "acq/invoices", nil, invoice, &inv)
	return inv, err
}

// CreateInvoiceLine adds a line to an existing invoice and returns the raw
// created line.
func (c *Client) CreateInvoiceLine(ctx context.Context, invoiceID string, line any) (map[string]any, error) {
	var created map[string]any
	err := c.do(ctx, http.MethodPost, "acq/invoices/"+url.PathEscape(invoiceID)+"/lines", nil, line, &created)
	return created, err
}

func (c *Client) ProcessInvoice(ctx context.Context, invoiceID string) (Invoice, error) {
	params := url.Values{}
	params.Set("op", "process_invoice")
	var inv Invoice
	err := c.do(ctx, http.MethodPost, "acq/invoices/"+url.PathEscape(invoiceID), params, struct{}{}, &inv)
	return inv, err
}

type paymentRequest struct {
	Payment voucher `json:"payment"`
}

type voucher struct {
	VoucherNumber   string `json:"voucher_number"`
	VoucherDate     string `json:"voucher_date"`
	VoucherAmount   string `json:"voucher_amount"`
	VoucherCurrency Ref    `json:"voucher_currency"`
}

// MarkInvoicePaid records payment for an invoice. Check Invoice.Paid on the
// result; Alma can answer 200 without setting the status.
func (c *Client) MarkInvoicePaid(ctx context.Context, invoiceID string, date time.Time, amount decimal.Decimal, currency string) (Invoice, error) {
	params := url.Values{}
	params.Set("op", "paid")
	body := paymentRequest{Payment: voucher{
		VoucherNumber:   invoiceID,
		VoucherDate:     date.Format("2006-01-02") + "T12:00:00Z",
		VoucherAmount:   amount.StringFixed(2),
		VoucherCurrency: Ref{Value: currency},
	}}
	var inv Invoice
	err := c.do(ctx, http.MethodPost, "acq/invoices/"+url.PathEscape(invoiceID), params, body, &inv)
	return inv, err
}
