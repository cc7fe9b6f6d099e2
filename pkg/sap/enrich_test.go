package sap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitlibraries/llama/pkg/alma"
	"github.com/mitlibraries/llama/pkg/models"
)

// fakeReader serves vendors and funds from maps and counts lookups.
type fakeReader struct {
	vendors     map[string]alma.Vendor
	funds       map[string]string
	vendorCalls map[string]int
	fundCalls   map[string]int
	err         error
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		vendors: map[string]alma.Vendor{
			"BKHS": {
				Code: "BKHS",
				Name: "The Bookhouse, Inc.",
				ContactInfo: alma.ContactInfo{Address: []alma.Address{
					{Line1: "Order dept", City: "Elsewhere", AddressType: []alma.Ref{{Value: "order"}}},
					{
						Line1: "123 Main Street", Line2: "Building 4", Line5: "C/O Mickey Mouse",
						City: "Anytown", PostalCode: "12345", Country: &alma.Ref{Value: "VUT"},
						AddressType: []alma.Ref{{Value: "payment"}},
					},
				}},
			},
			"FOOBAR-M": {
				Code: "FOOBAR-M",
				Name: "Foo Bar Books",
				ContactInfo: alma.ContactInfo{Address: []alma.Address{
					{Line1: "1 Foo Street", City: "Cambridge", StateProvince: "MA", PostalCode: "02139", Country: &alma.Ref{Value: "USA"}},
				}},
			},
			"MULTI": {
				Code: "MULTI",
				Name: "Multibyte Vendor",
				ContactInfo: alma.ContactInfo{Address: []alma.Address{
					{Line1: "1 Foo‑Street", City: "Cambridge"},
				}},
			},
			"YBP-no-address": {Code: "YBP-no-address", Name: "YBP"},
		},
		funds: map[string]string{
			"ABC": "1234567-000001",
			"DEF": "1234567-000002 ",
			"GHI": "1234567-000003",
			"JKL": "1234567-000001",
			"FOO": "123456-0000001",
		},
		vendorCalls: map[string]int{},
		fundCalls:   map[string]int{},
	}
}

func (f *fakeReader) GetVendorDetails(_ context.Context, code string) (alma.Vendor, error) {
	f.vendorCalls[code]++
	if f.err != nil {
		return alma.Vendor{}, f.err
	}
	v, ok := f.vendors[code]
	if !ok {
		return alma.Vendor{}, &alma.HTTPError{StatusCode: 400}
	}
	return v, nil
}

func (f *fakeReader) GetFundByCode(_ context.Context, code string) (alma.FundList, error) {
	f.fundCalls[code]++
	if f.err != nil {
		return alma.FundList{}, f.err
	}
	id, ok := f.funds[code]
	if !ok {
		return alma.FundList{TotalRecordCount: 0}, nil
	}
	return alma.FundList{Fund: []alma.Fund{{Code: code, ExternalID: id}}, TotalRecordCount: 1}, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func distribution(code, amount string) alma.FundDistribution {
	return alma.FundDistribution{FundCode: alma.Ref{Value: code}, Amount: dec(amount)}
}

func rawInvoice(id, number, vendor string, total string, lines ...alma.InvoiceLine) alma.Invoice {
	amount := dec(total)
	return alma.Invoice{
		ID:            id,
		Number:        number,
		InvoiceDate:   "2021-09-27Z",
		Vendor:        &alma.Ref{Value: vendor},
		PaymentMethod: &alma.Ref{Value: AccountingDepartment},
		TotalAmount:   &amount,
		Currency:      &alma.Ref{Value: "USD"},
		InvoiceLines:  alma.InvoiceLines{InvoiceLine: lines},
	}
}

func TestPopulateVendorData(t *testing.T) {
	r := newFakeReader()

	vendor, err := PopulateVendorData(context.Background(), r, "BKHS")
	require.NoError(t, err)
	assert.Equal(t, models.Vendor{
		Name: "The Bookhouse, Inc.",
		Code: "BKHS",
		Address: models.Address{
			Lines:      []string{"123 Main Street", "Building 4", "C/O Mickey Mouse"},
			City:       "Anytown",
			PostalCode: "12345",
			Country:    "VU",
		},
	}, vendor)
}

func TestPopulateVendorDataNoAddress(t *testing.T) {
	_, err := PopulateVendorData(context.Background(), newFakeReader(), "YBP-no-address")

	var addrErr *VendorAddressError
	require.True(t, errors.As(err, &addrErr))
	assert.Equal(t, "YBP-no-address", addrErr.VendorCode)
}

func TestPopulateVendorDataLookupFailure(t *testing.T) {
	r := newFakeReader()
	r.err = errors.New("connection refused")

	_, err := PopulateVendorData(context.Background(), r, "BKHS")
	require.Error(t, err)
	var addrErr *VendorAddressError
	assert.False(t, errors.As(err, &addrErr))
}

func TestDetermineVendorPaymentAddressFallsBackToFirst(t *testing.T) {
	v := alma.Vendor{ContactInfo: alma.ContactInfo{Address: []alma.Address{
		{Line1: "first", AddressType: []alma.Ref{{Value: "order"}}},
		{Line1: "second", AddressType: []alma.Ref{{Value: "returns"}}},
	}}}

	addr, err := DetermineVendorPaymentAddress(v)
	require.NoError(t, err)
	assert.Equal(t, "first", addr.Line1)
}

func TestAddressLinesFromAddress(t *testing.T) {
	assert.Equal(t, []string{"a", "c", "e"}, AddressLinesFromAddress(alma.Address{Line1: "a", Line3: "c", Line5: "e"}))
	assert.Nil(t, AddressLinesFromAddress(alma.Address{}))
}

func TestCountryCodeFromAddress(t *testing.T) {
	assert.Equal(t, "US", CountryCodeFromAddress(alma.Address{Country: &alma.Ref{Value: "USA"}}))
	assert.Equal(t, "VU", CountryCodeFromAddress(alma.Address{Country: &alma.Ref{Value: "VUT"}}))
	assert.Equal(t, "GB", CountryCodeFromAddress(alma.Address{Country: &alma.Ref{Value: "United Kingdom"}}))
	assert.Equal(t, "US", CountryCodeFromAddress(alma.Address{Country: &alma.Ref{Value: "Atlantis"}}))
	assert.Equal(t, "US", CountryCodeFromAddress(alma.Address{}))
}

func TestPopulateFundData(t *testing.T) {
	cache := NewCache(newFakeReader())
	rec := rawInvoice("1", "123456", "BKHS", "4056.07",
		alma.InvoiceLine{FundDistribution: []alma.FundDistribution{distribution("JKL", "3000.00")}},
		alma.InvoiceLine{FundDistribution: []alma.FundDistribution{
			distribution("ABC", "687.32"),
			distribution("DEF", "299"),
		}},
		alma.InvoiceLine{FundDistribution: []alma.FundDistribution{distribution("GHI", "69.75")}},
	)

	funds, err := PopulateFundData(context.Background(), cache, rec)
	require.NoError(t, err)
	require.Len(t, funds, 3)

	assert.Equal(t, "1234567-000001", funds[0].ExternalID)
	assert.True(t, dec("3687.32").Equal(funds[0].Amount))
	assert.Equal(t, "1234567", funds[0].CostObject)
	assert.Equal(t, "000001", funds[0].GLAccount)
	assert.Equal(t, "1234567-000002", funds[1].ExternalID)
	assert.True(t, dec("299").Equal(funds[1].Amount))
	assert.Equal(t, "1234567-000003", funds[2].ExternalID)
	assert.True(t, dec("69.75").Equal(funds[2].Amount))
}

func TestPopulateFundDataCollectsAllFundErrors(t *testing.T) {
	rec := rawInvoice("1", "123456", "BKHS", "30.00",
		alma.InvoiceLine{FundDistribution: []alma.FundDistribution{
			distribution("also-over-encumbered", "10"),
			distribution("ABC", "10"),
		}},
		alma.InvoiceLine{FundDistribution: []alma.FundDistribution{distribution("over-encumbered", "10")}},
	)

	_, err := PopulateFundData(context.Background(), newFakeReader(), rec)

	var fundErr *FundError
	require.True(t, errors.As(err, &fundErr))
	assert.Equal(t, []string{"also-over-encumbered", "over-encumbered"}, fundErr.FundCodes)
}

func TestCacheFetchesEachCodeOnce(t *testing.T) {
	r := newFakeReader()
	cache := NewCache(r)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := cache.GetVendorDetails(ctx, "BKHS")
		require.NoError(t, err)
		_, err = cache.GetFundByCode(ctx, "ABC")
		require.NoError(t, err)
		_, err = cache.GetFundByCode(ctx, "missing")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, r.vendorCalls["BKHS"])
	assert.Equal(t, 1, r.fundCalls["ABC"])
	assert.Equal(t, 3, r.fundCalls["missing"])
}

func TestAggregateFunds(t *testing.T) {
	funds := AggregateFunds([]Distribution{
		{ExternalID: "222222-0000002", Amount: dec("0.10")},
		{ExternalID: "123456-0000001", Amount: dec("0.10")},
		{ExternalID: " 123456-0000001", Amount: dec("0.20")},
		{ExternalID: "123456-0000001", Amount: dec("100.00")},
	})

	require.Len(t, funds, 2)
	assert.Equal(t, "123456-0000001", funds[0].ExternalID)
	assert.Equal(t, "100.30", funds[0].Amount.StringFixed(2))
	assert.Equal(t, "123456", funds[0].CostObject)
	assert.Equal(t, "0000001", funds[0].GLAccount)
	assert.Equal(t, "222222-0000002", funds[1].ExternalID)
}

func TestCheckForMultibyte(t *testing.T) {
	value := map[string]any{
		"id": map[string]any{
			"level 2": []string{
				"this is a multibyte character ‑",
				"this is also ‑ a multibyte character",
				"this is not a multibyte character -",
			},
		},
	}

	found := CheckForMultibyte(value)
	require.Len(t, found, 2)
	assert.Equal(t, models.MultibyteError{Field: "id:level 2:0", Character: "‑"}, found[0])
	assert.Equal(t, "id:level 2:1", found[1].Field)

	assert.Empty(t, CheckForMultibyte(map[string]any{"id": []string{"plain -"}}))
}

func TestCheckForMultibyteUsesInvoiceFieldNames(t *testing.T) {
	inv := models.Invoice{
		Date: time.Date(2021, 9, 27, 0, 0, 0, 0, time.UTC),
		Vendor: models.Vendor{
			Name:    "Plain",
			Address: models.Address{Lines: []string{"1 Foo‑Street"}, City: "ƒoo"},
		},
		Problems: models.Problems{VendorAddressError: "ignored‑"},
	}

	found := CheckForMultibyte(inv)
	assert.Equal(t, []models.MultibyteError{
		{Field: "vendor:address:lines:0", Character: "‑"},
		{Field: "vendor:address:city", Character: "ƒ"},
	}, found)
}
