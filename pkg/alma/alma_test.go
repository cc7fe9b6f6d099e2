package alma

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "abc123", 1)
}

func TestRequestHeaders(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/acq/invoices/0501130657", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "apikey abc123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		fmt.Fprint(w, `{"id": "0501130657", "number": "456789", "invoice_date": "2021-09-27Z",
			"vendor": {"value": "BKHS"}, "total_amount": 4056.07, "currency": {"value": "USD"},
			"payment_method": {"value": "ACCOUNTINGDEPARTMENT"}}`)
	})
	c := newTestClient(t, mux)

	inv, err := c.GetInvoice(context.Background(), "0501130657")
	require.NoError(t, err)
	assert.Equal(t, "456789", inv.Number)
	assert.Equal(t, "BKHS", inv.Vendor.Value)
	assert.True(t, decimal.RequireFromString("4056.07").Equal(*inv.TotalAmount))
}

func TestGetPagedWalksAllPages(t *testing.T) {
	var requests int
	mux := http.NewServeMux()
	mux.HandleFunc("/acq/invoices", func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "Waiting to be Sent", r.URL.Query().Get("invoice_workflow_status"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var records []map[string]string
		for i := offset; i < offset+limit && i < 15; i++ {
			records = append(records, map[string]string{"id": strconv.Itoa(i)})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"invoice": records, "total_record_count": 15})
	})
	c := newTestClient(t, mux)

	invoices, err := getPaged[Invoice](context.Background(), c, "acq/invoices", "invoice",
		map[string][]string{"invoice_workflow_status": {"Waiting to be Sent"}}, 10)
	require.NoError(t, err)
	assert.Len(t, invoices, 15)
	assert.Equal(t, "14", invoices[14].ID)
	assert.Equal(t, 2, requests)
}

func TestGetBriefPOLinesStopsOnEmptyPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/acq/po-lines", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ACTIVE", r.URL.Query().Get("status"))
		assert.Equal(t, "EXCHANGE", r.URL.Query().Get("acquisition_method"))
		if r.URL.Query().Get("offset") == "0" {
			fmt.Fprint(w, `{"po_line": [{"number": "POL-123", "created_date": "2021-05-13Z"},
				{"number": "POL-456", "created_date": "2021-05-02Z"}]}`)
			return
		}
		fmt.Fprint(w, `{}`)
	})
	c := newTestClient(t, mux)

	lines, err := c.GetBriefPOLines(context.Background(), "EXCHANGE")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "POL-456", lines[1].Number)
}

func TestGetFundByCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/acq/funds", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "fund_code~ABC" {
			fmt.Fprint(w, `{"fund": [{"code": "ABC", "external_id": "1234567-000001 "}], "total_record_count": 1}`)
			return
		}
		fmt.Fprint(w, `{"total_record_count": 0}`)
	})
	c := newTestClient(t, mux)

	funds, err := c.GetFundByCode(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Equal(t, 1, funds.TotalRecordCount)
	assert.Equal(t, "1234567-000001 ", funds.Fund[0].ExternalID)

	funds, err = c.GetFundByCode(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Equal(t, 0, funds.TotalRecordCount)
}

func TestHTTPErrorCodes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/acq/vendors/MISSING", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errorsExist": true, "errorList": {"error": [{"errorCode": "402880", "errorMessage": "Vendor not found"}]}}`)
	})
	c := newTestClient(t, mux)

	_, err := c.GetVendorDetails(context.Background(), "MISSING")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.True(t, httpErr.HasErrorCode("402880"))
	assert.False(t, httpErr.HasErrorCode("1"))
}

func TestMarkInvoicePaid(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/acq/invoices/0501130657", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "paid", r.URL.Query().Get("op"))
		body, _ := io.ReadAll(r.Body)
		var req paymentRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "2021-10-01T12:00:00Z", req.Payment.VoucherDate)
		assert.Equal(t, "4056.07", req.Payment.VoucherAmount)
		assert.Equal(t, "USD", req.Payment.VoucherCurrency.Value)
		fmt.Fprint(w, `{"id": "0501130657", "payment": {"payment_status": {"value": "PAID"}}}`)
	})
	c := newTestClient(t, mux)

	inv, err := c.MarkInvoicePaid(context.Background(), "0501130657",
		time.Date(2021, 10, 1, 0, 0, 0, 0, time.UTC), decimal.RequireFromString("4056.07"), "USD")
	require.NoError(t, err)
	assert.True(t, inv.Paid())
}

func TestCreateAndProcessInvoice(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/acq/invoices", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		fmt.Fprint(w, `{"id": "new-id", "number": "TestSAPInvoiceV1-1"}`)
	})
	mux.HandleFunc("/acq/invoices/new-id/lines", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "line-1"}`)
	})
	mux.HandleFunc("/acq/invoices/new-id", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "process_invoice", r.URL.Query().Get("op"))
		fmt.Fprint(w, `{"id": "new-id"}`)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	inv, err := c.CreateInvoice(ctx, map[string]any{"number": "TestSAPInvoiceV1-1"})
	require.NoError(t, err)
	assert.Equal(t, "new-id", inv.ID)

	line, err := c.CreateInvoiceLine(ctx, inv.ID, map[string]any{"price": "1.00"})
	require.NoError(t, err)
	assert.Equal(t, "line-1", line["id"])

	_, err = c.ProcessInvoice(ctx, inv.ID)
	require.NoError(t, err)
}
