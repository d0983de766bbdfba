package codec

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/USFAkbari/Excel-Tools/internal/dataset"
)

func fixture() *dataset.Dataset {
	return dataset.MustNew(
		[]string{"id", "name", "amount", "code"},
		[][]dataset.Value{
			{dataset.Number(1), dataset.Text("علی"), dataset.Number(12.5), dataset.Text("00123")},
			{dataset.Number(2), dataset.Null(), dataset.Number(-3), dataset.Text("=1+1")},
			{dataset.Number(3), dataset.Text("Bob"), dataset.Null(), dataset.Text("۴۵")},
		},
	)
}

func TestXLSXRoundTrip(t *testing.T) {
	ds := fixture()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, ds, XLSX))

	back, err := Decode(&buf, XLSX)
	require.NoError(t, err)
	assert.Equal(t, ds.Columns(), back.Columns())
	require.Equal(t, ds.NumRows(), back.NumRows())
	for i := 0; i < ds.NumRows(); i++ {
		for j := 0; j < ds.NumColumns(); j++ {
			assert.True(t, ds.At(i, j).Equal(back.At(i, j)),
				"row %d col %d: want %#v got %#v", i, j, ds.At(i, j).String(), back.At(i, j).String())
		}
	}
}

func TestCSVRoundTrip(t *testing.T) {
	ds := dataset.MustNew(
		[]string{"n", "s"},
		[][]dataset.Value{
			{dataset.Number(1.25), dataset.Text("a,b")},
			{dataset.Null(), dataset.Text("x")},
		},
	)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, ds, CSV))
	back, err := Decode(&buf, CSV)
	require.NoError(t, err)
	assert.True(t, ds.Equal(back))
}

func TestDecodeCSV(t *testing.T) {
	input := "\xEF\xBB\xBFname,qty,,name\nwidget,3,x,a\ngadget,,y\n"
	ds, err := Decode(strings.NewReader(input), CSV)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "qty", "Unnamed: 2", "name.1"}, ds.Columns())
	assert.True(t, ds.Cell(0, "qty").Equal(dataset.Number(3)))
	assert.True(t, ds.Cell(1, "qty").IsNull())
	assert.True(t, ds.Cell(1, "name.1").IsNull())
	assert.True(t, ds.Cell(0, "name").Equal(dataset.Text("widget")))
}

func TestDecodeCSVKeepsMixedColumnsAsText(t *testing.T) {
	ds, err := Decode(strings.NewReader("code\n001\nA7\n"), CSV)
	require.NoError(t, err)
	assert.True(t, ds.Cell(0, "code").Equal(dataset.Text("001")))
}

func TestDecodeEmpty(t *testing.T) {
	_, err := Decode(strings.NewReader(""), CSV)
	require.Error(t, err)
	assert.Equal(t, dataset.Validation, dataset.KindOf(err))
	assert.Contains(t, err.Error(), "empty file")

	_, err = Decode(strings.NewReader("not a zip"), XLSX)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid spreadsheet")
}

func TestDecodeXLSXFormattedCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetCellValue("Sheet1", "A1", "when"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "flag"))
	require.NoError(t, f.SetCellValue("Sheet1", "C1", "total"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", 45292)) // 2024-01-01 as a serial
	style, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "A2", "A2", style))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", true))
	require.NoError(t, f.SetCellValue("Sheet1", "C2", 7))
	require.NoError(t, f.SetCellValue("Sheet1", "D1", "share"))
	require.NoError(t, f.SetCellValue("Sheet1", "D2", 0.5))
	pct, err := f.NewStyle(&excelize.Style{NumFmt: 9}) // 0%
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "D2", "D2", pct))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	ds, err := Decode(&buf, XLSX)
	require.NoError(t, err)
	assert.True(t, ds.Cell(0, "when").IsText(), ds.Cell(0, "when").String())
	assert.True(t, ds.Cell(0, "flag").Equal(dataset.Text("TRUE")))
	assert.True(t, ds.Cell(0, "total").Equal(dataset.Number(7)))
	assert.True(t, ds.Cell(0, "share").Equal(dataset.Number(0.5)), ds.Cell(0, "share").String())
}

func TestFormatFromName(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"data.xlsx", XLSX, false},
		{"DATA.XLSM", XLSX, false},
		{"rows.csv", CSV, false},
		{"old.xls", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatFromName(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHeaderNames(t *testing.T) {
	got := headerNames([]string{"a", "", "a", "a.1", " b ", "a"})
	assert.Equal(t, []string{"a", "Unnamed: 1", "a.1", "a.1.1", "b", "a.2"}, got)
}

func TestBOMSkipper(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"with BOM", append([]byte{0xEF, 0xBB, 0xBF}, "hello"...), "hello"},
		{"without BOM", []byte("hello"), "hello"},
		{"empty", []byte{}, ""},
		{"only BOM", []byte{0xEF, 0xBB, 0xBF}, ""},
		{"short", []byte("hi"), "hi"},
		{"partial BOM", []byte{0xEF, 0xBB, 'a'}, string([]byte{0xEF, 0xBB, 'a'})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newBOMSkipper(bytes.NewReader(tt.input)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestUTF8Sanitizer(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"ascii", []byte("a,b"), "a,b"},
		{"persian", []byte("نام,۱"), "نام,۱"},
		{"invalid byte", []byte{'h', 0x80, 'i'}, "h?i"},
		{"truncated rune at end", []byte{'a', 0xD9}, "a?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newUTF8Sanitizer(bytes.NewReader(tt.input)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

// oneByteReader forces multi-byte runes to be split across reads.
type oneByteReader struct{ data []byte }

func (r *oneByteReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}

func TestUTF8SanitizerSplitRunes(t *testing.T) {
	in := "سلام ۱۲۳"
	got, err := io.ReadAll(newUTF8Sanitizer(&oneByteReader{data: []byte(in)}))
	require.NoError(t, err)
	assert.Equal(t, in, string(got))
}
