// Package sapfile decodes SAP data and control files that have already been
// written, for inspection and for checking a control file against its data.
package sapfile

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	fw "github.com/mitlibraries/llama/pkg/fixedwidth"
	"github.com/mitlibraries/llama/pkg/sap"
)

type FileType string

const (
	DataFile    FileType = "data"
	ControlFile FileType = "control"
)

// HeaderColumns lays out a B line of the data file.
var HeaderColumns = []fw.Column{
	{Name: "type", Start: 0, End: 1},
	{Name: "docdate", Start: 1, End: 9},
	{Name: "basedate", Start: 9, End: 17},
	{Name: "extref", Start: 17, End: 33},
	{Name: "vtype", Start: 33, End: 37},
	{Name: "vacct", Start: 37, End: 43},
	{Name: "amount", Start: 43, End: 59},
	{Name: "sign", Start: 59, End: 60},
	{Name: "method", Start: 60, End: 61},
	{Name: "supplement", Start: 61, End: 63},
	{Name: "terms", Start: 63, End: 67},
	{Name: "block", Start: 67, End: 68},
	{Name: "payee", Start: 68, End: 69},
	{Name: "vname", Start: 69, End: 104},
	{Name: "vcity", Start: 104, End: 139},
	{Name: "vline2", Start: 139, End: 174},
	{Name: "pobox", Start: 174, End: 175},
	{Name: "street", Start: 175, End: 210},
	{Name: "zip", Start: 210, End: 220},
	{Name: "region", Start: 220, End: 223},
	{Name: "country", Start: 223, End: 226},
	{Name: "text", Start: 226, End: 276},
	{Name: "vline3", Start: 276, End: 311},
}

// FundColumns lays out the C and D lines of the data file.
var FundColumns = []fw.Column{
	{Name: "type", Start: 0, End: 1},
	{Name: "glaccount", Start: 1, End: 11},
	{Name: "costobject", Start: 11, End: 23},
	{Name: "amount", Start: 23, End: 39},
	{Name: "sign", Start: 39, End: 40},
}

var ControlColumns = []fw.Column{
	{Name: "bytes", Start: 0, End: 16},
	{Name: "records", Start: 16, End: 32},
	{Name: "credit", Start: 32, End: 52},
	{Name: "debit", Start: 52, End: 72},
	{Name: "ctl3", Start: 72, End: 92},
	{Name: "ctl4", Start: 92, End: 112},
}

// Record is one decoded line with surrounding blanks trimmed from each column.
type Record map[string]string

// Control is a decoded control file.
type Control struct {
	Bytes   int64
	Records int64
	Credit  string
	Debit   string
	Ctl3    string
	Ctl4    string
}

// Result is what Inspect found in a file.
type Result struct {
	Name     string
	Type     FileType
	Records  []Record
	Control  *Control
	Total    decimal.Decimal
	Invoices int
}

type Inspector struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Inspector {
	return &Inspector{
		logger: logger,
	}
}

// Inspect decodes a data or control file, telling them apart by name.
func (i *Inspector) Inspect(data []byte, filename string) (*Result, error) {
	fileType := DetectType(filename)
	i.logger.Debug("detected file type", "type", fileType, "filename", filename)

	switch fileType {
	case DataFile:
		records, err := ParseData(string(data))
		if err != nil {
			return nil, err
		}
		total, invoices, err := Totals(records)
		if err != nil {
			return nil, err
		}
		return &Result{Name: filename, Type: fileType, Records: records, Total: total, Invoices: invoices}, nil
	case ControlFile:
		c, err := ParseControl(string(data))
		if err != nil {
			return nil, err
		}
		return &Result{Name: filename, Type: fileType, Control: &c}, nil
	default:
		return nil, fmt.Errorf("unknown SAP file type for %s", filename)
	}
}

// DetectType uses the d/c prefix SAP file names carry.
func DetectType(filename string) FileType {
	base := strings.ToLower(filepath.Base(filename))
	switch {
	case strings.HasPrefix(base, "dlibsapg."):
		return DataFile
	case strings.HasPrefix(base, "clibsapg."):
		return ControlFile
	}
	return ""
}

// ControlName is the control file name paired with a data file name.
func ControlName(dataFile string) string {
	dir, base := filepath.Split(dataFile)
	return dir + strings.Replace(base, "d", "c", 1)
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func decode(line string, cols []fw.Column) Record {
	r := Record{}
	for k, v := range fw.Split(line, cols) {
		r[k] = strings.TrimSpace(v)
	}
	return r
}

// ParseData decodes every non-empty line of a data file.
func ParseData(data string) ([]Record, error) {
	lines := splitLines(data)
	records := make([]Record, 0, len(lines))
	for n, line := range lines {
		switch line[0] {
		case 'B':
			records = append(records, decode(line, HeaderColumns))
		case 'C', 'D':
			records = append(records, decode(line, FundColumns))
		default:
			return nil, fmt.Errorf("line %d: unknown record type %q", n+1, line[0])
		}
	}
	return records, nil
}

// Totals adds up the B line amounts and counts the invoices. A header whose
// amount does not parse is an error naming its record.
func Totals(records []Record) (decimal.Decimal, int, error) {
	total := decimal.Zero
	count := 0
	for n, r := range records {
		if r["type"] != "B" {
			continue
		}
		amount, err := decimal.NewFromString(r["amount"])
		if err != nil {
			return decimal.Zero, 0, fmt.Errorf("record %d: invalid amount %q: %w", n+1, r["amount"], err)
		}
		total = total.Add(amount)
		count++
	}
	return total, count, nil
}

// ParseControl decodes the first line of a control file.
func ParseControl(control string) (Control, error) {
	lines := splitLines(control)
	if len(lines) == 0 {
		return Control{}, fmt.Errorf("control file is empty")
	}
	if len(lines[0]) < fw.Width(ControlColumns) {
		return Control{}, fmt.Errorf("control line is %d characters, want %d", len(lines[0]), fw.Width(ControlColumns))
	}

	r := decode(lines[0], ControlColumns)
	bytes, err := strconv.ParseInt(r["bytes"], 10, 64)
	if err != nil {
		return Control{}, fmt.Errorf("invalid byte count %q: %w", r["bytes"], err)
	}
	records, err := strconv.ParseInt(r["records"], 10, 64)
	if err != nil {
		return Control{}, fmt.Errorf("invalid record count %q: %w", r["records"], err)
	}
	return Control{
		Bytes:   bytes,
		Records: records,
		Credit:  r["credit"],
		Debit:   r["debit"],
		Ctl3:    r["ctl3"],
		Ctl4:    r["ctl4"],
	}, nil
}

// RecomputeControl builds the control file that belongs with data.
func RecomputeControl(data string) (string, error) {
	records, err := ParseData(data)
	if err != nil {
		return "", err
	}
	total, _, err := Totals(records)
	if err != nil {
		return "", err
	}
	return sap.GenerateSAPControl(data, total), nil
}

// VerifyControl reports whether control matches the one recomputed from data.
func VerifyControl(data, control string) (bool, error) {
	want, err := RecomputeControl(data)
	if err != nil {
		return false, err
	}
	return want == control, nil
}
