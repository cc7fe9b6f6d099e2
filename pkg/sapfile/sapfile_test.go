package sapfile

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func golden(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile("../sap/testdata/sap_data_file.txt")
	require.NoError(t, err)
	return string(b)
}

func TestDetectType(t *testing.T) {
	assert.Equal(t, DataFile, DetectType("/tmp/dlibsapg.1002.20210518000000"))
	assert.Equal(t, ControlFile, DetectType("clibsapg.1002.20210518000000"))
	assert.Equal(t, FileType(""), DetectType("report.txt"))
}

func TestControlName(t *testing.T) {
	assert.Equal(t, "out/clibsapg.1002.20210518000000", ControlName("out/dlibsapg.1002.20210518000000"))
}

func TestParseData(t *testing.T) {
	records, err := ParseData(golden(t))
	require.NoError(t, err)
	require.Len(t, records, 9)

	b := records[0]
	assert.Equal(t, "B", b["type"])
	assert.Equal(t, "20210518", b["docdate"])
	assert.Equal(t, "456789210512", b["extref"])
	assert.Equal(t, "150.00", b["amount"])
	assert.Equal(t, "Danger Inc.", b["vname"])
	assert.Equal(t, "Cambridge", b["vcity"])
	assert.Equal(t, "123 salad Street", b["vline2"])
	assert.Equal(t, "Second Floor", b["street"])
	assert.Equal(t, "", b["vline3"])
	assert.Equal(t, "US", b["country"])

	d := records[1]
	assert.Equal(t, "D", d["type"])
	assert.Equal(t, "000001", d["glaccount"])
	assert.Equal(t, "1234567", d["costobject"])
	assert.Equal(t, "150.00", d["amount"])

	assert.Equal(t, "X", records[2]["pobox"])
	assert.Equal(t, "123456", records[2]["street"])
}

func TestParseDataUnknownRecord(t *testing.T) {
	_, err := ParseData("B123\nZnope\n")
	assert.ErrorContains(t, err, "line 2")
}

func TestTotals(t *testing.T) {
	records, err := ParseData(golden(t))
	require.NoError(t, err)

	total, count, err := Totals(records)
	require.NoError(t, err)
	assert.Equal(t, "1367.40", total.StringFixed(2))
	assert.Equal(t, 3, count)
}

func TestTotalsRejectsBadAmount(t *testing.T) {
	lines := strings.Split(golden(t), "\n")
	// third record is the 444555 header
	lines[2] = lines[2][:43] + "       XX1067.04" + lines[2][59:]
	data := strings.Join(lines, "\n")

	records, err := ParseData(data)
	require.NoError(t, err)
	_, _, err = Totals(records)
	assert.ErrorContains(t, err, "record 3")
	assert.ErrorContains(t, err, "XX1067.04")

	_, err = RecomputeControl(data)
	assert.ErrorContains(t, err, "record 3")

	_, err = VerifyControl(data, "")
	assert.Error(t, err)

	_, err = New(log.New(io.Discard)).Inspect([]byte(data), "dlibsapg.1002.20210518000000")
	assert.Error(t, err)
}

func TestRecomputeAndVerifyControl(t *testing.T) {
	data := golden(t)

	control, err := RecomputeControl(data)
	require.NoError(t, err)
	assert.Equal(t, "0000000000001182"+"0000000000000009"+
		"00000000000000000000"+"00000000000000136740"+"00000000000000136740"+
		"00100100000000000000\n", control)

	ok, err := VerifyControl(data, control)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyControl(data, "0"+control[1:len(control)-2]+"1\n")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseControl(t *testing.T) {
	control, err := RecomputeControl(golden(t))
	require.NoError(t, err)

	c, err := ParseControl(control)
	require.NoError(t, err)
	assert.Equal(t, Control{
		Bytes:   1182,
		Records: 9,
		Credit:  "00000000000000000000",
		Debit:   "00000000000000136740",
		Ctl3:    "00000000000000136740",
		Ctl4:    "00100100000000000000",
	}, c)

	_, err = ParseControl("")
	assert.Error(t, err)
	_, err = ParseControl("0000")
	assert.Error(t, err)
}

func TestInspect(t *testing.T) {
	i := New(log.New(io.Discard))

	res, err := i.Inspect([]byte(golden(t)), "dlibsapg.1002.20210518000000")
	require.NoError(t, err)
	assert.Equal(t, DataFile, res.Type)
	assert.Len(t, res.Records, 9)
	assert.Equal(t, 3, res.Invoices)
	assert.Nil(t, res.Control)

	control, err := RecomputeControl(golden(t))
	require.NoError(t, err)
	res, err = i.Inspect([]byte(control), "clibsapg.1002.20210518000000")
	require.NoError(t, err)
	assert.Equal(t, ControlFile, res.Type)
	assert.Equal(t, int64(9), res.Control.Records)

	_, err = i.Inspect([]byte("x"), "notes.txt")
	assert.Error(t, err)
}
