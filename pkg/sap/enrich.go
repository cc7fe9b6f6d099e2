package sap

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/segmentio/encoding/json"
	"github.com/shopspring/decimal"

	"github.com/mitlibraries/llama/pkg/alma"
	"github.com/mitlibraries/llama/pkg/models"
)

//go:embed countries.json
var countriesJSON []byte

// countries maps uppercased Alma country values to SAP's two letter codes.
var countries = func() map[string]string {
	m := map[string]string{}
	if err := json.Unmarshal(countriesJSON, &m); err != nil {
		panic(fmt.Sprintf("sap: bad countries table: %v", err))
	}
	return m
}()

const defaultCountry = "US"

// Reader is the part of the Alma client needed to enrich invoices.
type Reader interface {
	GetVendorDetails(ctx context.Context, vendorCode string) (alma.Vendor, error)
	GetFundByCode(ctx context.Context, fundCode string) (alma.FundList, error)
}

// Cache remembers vendor and fund lookups for the length of one run so each
// code is fetched from Alma at most once. Funds that resolve to nothing are
// not cached.
type Cache struct {
	reader  Reader
	vendors map[string]alma.Vendor
	funds   map[string]alma.FundList
}

func NewCache(r Reader) *Cache {
	return &Cache{
		reader:  r,
		vendors: make(map[string]alma.Vendor),
		funds:   make(map[string]alma.FundList),
	}
}

func (c *Cache) GetVendorDetails(ctx context.Context, vendorCode string) (alma.Vendor, error) {
	if v, ok := c.vendors[vendorCode]; ok {
		return v, nil
	}
	v, err := c.reader.GetVendorDetails(ctx, vendorCode)
	if err != nil {
		return alma.Vendor{}, err
	}
	c.vendors[vendorCode] = v
	return v, nil
}

func (c *Cache) GetFundByCode(ctx context.Context, fundCode string) (alma.FundList, error) {
	if f, ok := c.funds[fundCode]; ok {
		return f, nil
	}
	f, err := c.reader.GetFundByCode(ctx, fundCode)
	if err != nil {
		return alma.FundList{}, err
	}
	if f.TotalRecordCount > 0 && len(f.Fund) > 0 {
		c.funds[fundCode] = f
	}
	return f, nil
}

// VendorAddressError means the vendor record has no usable address.
type VendorAddressError struct {
	VendorCode string
}

func (e *VendorAddressError) Error() string {
	return fmt.Sprintf("no addresses found for vendor %s", e.VendorCode)
}

// FundError lists every fund code in an invoice that Alma could not resolve,
// usually because the fund is overexpended.
type FundError struct {
	FundCodes []string
}

func (e *FundError) Error() string {
	return fmt.Sprintf("fund could not be retrieved by code, may be overexpended: %s", strings.Join(e.FundCodes, ", "))
}

// PopulateVendorData fetches a vendor and reduces it to what SAP needs.
func PopulateVendorData(ctx context.Context, r Reader, vendorCode string) (models.Vendor, error) {
	rec, err := r.GetVendorDetails(ctx, vendorCode)
	if err != nil {
		return models.Vendor{}, fmt.Errorf("failed to retrieve vendor %s: %w", vendorCode, err)
	}
	addr, err := DetermineVendorPaymentAddress(rec)
	if err != nil {
		return models.Vendor{}, &VendorAddressError{VendorCode: vendorCode}
	}
	return models.Vendor{
		Name: rec.Name,
		Code: vendorCode,
		Address: models.Address{
			Lines:         AddressLinesFromAddress(addr),
			City:          addr.City,
			StateProvince: addr.StateProvince,
			PostalCode:    addr.PostalCode,
			Country:       CountryCodeFromAddress(addr),
		},
	}, nil
}

// DetermineVendorPaymentAddress picks the address typed "payment", falling
// back to the first address.
func DetermineVendorPaymentAddress(v alma.Vendor) (alma.Address, error) {
	addresses := v.ContactInfo.Address
	if len(addresses) == 0 {
		return alma.Address{}, &VendorAddressError{VendorCode: v.Code}
	}
	for _, a := range addresses {
		if len(a.AddressType) > 0 && a.AddressType[0].Value == "payment" {
			return a, nil
		}
	}
	return addresses[0], nil
}

// AddressLinesFromAddress returns the non-empty lines of an address in order.
func AddressLinesFromAddress(a alma.Address) []string {
	var lines []string
	for _, l := range []string{a.Line1, a.Line2, a.Line3, a.Line4, a.Line5} {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// CountryCodeFromAddress maps the address country to a SAP code, defaulting
// to US when the country is absent or unknown.
func CountryCodeFromAddress(a alma.Address) string {
	if a.Country == nil {
		return defaultCountry
	}
	if code, ok := countries[strings.ToUpper(strings.TrimSpace(a.Country.Value))]; ok {
		return code
	}
	return defaultCountry
}

// Distribution is one fund distribution resolved to its fund's external id.
type Distribution struct {
	ExternalID string
	Amount     decimal.Decimal
}

// PopulateFundData resolves every fund distribution on the invoice and
// aggregates them. All unresolvable fund codes are reported together.
func PopulateFundData(ctx context.Context, r Reader, rec alma.Invoice) ([]models.Fund, error) {
	var dists []Distribution
	var missingCodes []string
	for _, line := range rec.InvoiceLines.InvoiceLine {
		for _, fd := range line.FundDistribution {
			code := fd.FundCode.Value
			funds, err := r.GetFundByCode(ctx, code)
			if err != nil {
				return nil, fmt.Errorf("failed to retrieve fund %s: %w", code, err)
			}
			if funds.TotalRecordCount == 0 || len(funds.Fund) == 0 {
				missingCodes = append(missingCodes, code)
				continue
			}
			dists = append(dists, Distribution{ExternalID: funds.Fund[0].ExternalID, Amount: fd.Amount})
		}
	}
	if len(missingCodes) > 0 {
		return nil, &FundError{FundCodes: missingCodes}
	}
	return AggregateFunds(dists), nil
}

// AggregateFunds sums distributions that share an external id and returns
// them sorted by id. An id "A-B" becomes cost object A and G/L account B.
func AggregateFunds(dists []Distribution) []models.Fund {
	byID := make(map[string]*models.Fund)
	for _, d := range dists {
		id := strings.TrimSpace(d.ExternalID)
		if f, ok := byID[id]; ok {
			f.Amount = f.Amount.Add(d.Amount)
			continue
		}
		costObject, glAccount, _ := strings.Cut(id, "-")
		byID[id] = &models.Fund{
			ExternalID: id,
			Amount:     d.Amount,
			CostObject: costObject,
			GLAccount:  glAccount,
		}
	}

	funds := make([]models.Fund, 0, len(byID))
	for _, f := range byID {
		funds = append(funds, *f)
	}
	sort.Slice(funds, func(i, j int) bool {
		return funds[i].ExternalID < funds[j].ExternalID
	})
	return funds
}
