package fetcher

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestReadXLSXBytes_SkipRows(t *testing.T) {
	data := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"id", "name", "address", "status"},
			{"1", "Alon", "Main St 5", "בדרך"},
			{"2", "Rimon", "", ""},
		},
	})

	rows, err := ReadXLSXBytes(data, XLSXOptions{SkipRows: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "Alon", "Main St 5", "בדרך"}, rows[0])
	assert.Equal(t, "Rimon", rows[1][1])
}

func TestReadXLSXBytes_DropsTrailingBlankRows(t *testing.T) {
	data := createTestXLSX(t, map[string][][]string{
		"Sheet1": {{"1", "a"}, {"", ""}, {" "}},
	})

	rows, err := ReadXLSXBytes(data, XLSXOptions{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "a"}}, rows)
}

func TestReadXLSXBytes_SheetName(t *testing.T) {
	data := createTestXLSX(t, map[string][][]string{
		"First":  {{"a"}},
		"Roster": {{"x", "y"}},
	})

	rows, err := ReadXLSXBytes(data, XLSXOptions{SheetName: "Roster"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"x", "y"}}, rows)

	_, err = ReadXLSXBytes(data, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadXLSXBytes_SheetIndexOutOfRange(t *testing.T) {
	data := createTestXLSX(t, map[string][][]string{"Sheet1": {{"a"}}})

	_, err := ReadXLSXBytes(data, XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSXBytes_NotAWorkbook(t *testing.T) {
	_, err := ReadXLSXBytes([]byte("plain text"), XLSXOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx: open workbook")
}
