package output

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fundamentals-merge/internal/series"
)

func mergedTable() *series.Table {
	tbl := series.New("Revenue", "Close Price")
	tbl.Append(time.Date(2020, 3, 31, 0, 0, 0, 0, time.UTC), series.Value(decimal.NewFromInt(800)), series.Value(decimal.RequireFromString("254.29")))
	tbl.Append(time.Date(2020, 6, 30, 0, 0, 0, 0, time.UTC), decimal.NullDecimal{}, series.Value(decimal.RequireFromString("364.8")))
	tbl.Append(time.Date(2020, 9, 30, 0, 0, 0, 0, time.UTC), series.Value(decimal.NewFromInt(1000)), series.Value(decimal.RequireFromString("115.81")))
	return tbl
}

func TestPath(t *testing.T) {
	got := Path("out", "BRK-B", time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), "02_01_2006")
	assert.Equal(t, filepath.Join("out", "BRK-B", "07_03_2024", "BRK-B_quarterly_07_03_2024.xlsx"), got)
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "AAPL", "07_03_2024", "AAPL_quarterly_07_03_2024.xlsx")
	require.NoError(t, WriteXLSX(path, mergedTable()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Date", "Revenue", "Close Price"}, rows[0])
	assert.Equal(t, "43921", rows[1][0])
	assert.Equal(t, "254.29", rows[1][2])
	assert.Equal(t, "", rows[2][1])
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "merged.csv")
	require.NoError(t, WriteCSV(path, mergedTable()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "Date,Revenue,Close Price\n" +
		"2020-03-31,800,254.29\n" +
		"2020-06-30,,364.8\n" +
		"2020-09-30,1000,115.81\n"
	assert.Equal(t, want, string(raw))
}

func TestWriteChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts", "aapl.png")
	require.NoError(t, WriteChart(path, "AAPL", mergedTable(), "Close Price", "Revenue"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, WriteChart(path, "AAPL", mergedTable(), "Missing", ""))
}
