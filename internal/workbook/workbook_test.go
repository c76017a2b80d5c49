package workbook

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

// writeStatementWorkbook builds a two-sheet export shaped like the statement
// downloads: newest quarter first, line items down the first column.
func writeStatementWorkbook(t *testing.T) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	income := "Income-Quarterly"
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), income))
	rows := [][]interface{}{
		{"Quarter Ended", "2020-09-30", "2020-06-30", day("2020-03-31"), "2019-12-31"},
		{"Revenue", "1,000", "900", 800, 700},
		{"Gross Margin", "40%", "-", "38.5%", ""},
		{"", "ignored", "ignored", "ignored", "ignored"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(income, cell, &r))
	}

	balance := "Balance-Sheet-Quarterly"
	_, err := f.NewSheet(balance)
	require.NoError(t, err)
	rows = [][]interface{}{
		{"Quarter Ended", "2020-09-30", "2020-06-30", "2020-03-31", "2019-12-31", "Notes"},
		{"Total Assets", 5000, 4900, 4800, 4700, "text"},
		{"Revenue", -1, -1, -1, -1},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(balance, cell, &r))
	}

	_, err = f.NewSheet("Ratios-Quarterly")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "aapl-quarterly.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoadTransposesAndDropsOldest(t *testing.T) {
	path := writeStatementWorkbook(t)

	wb, err := Load(path, Options{Sheets: []string{"Income-Quarterly", "Balance-Sheet-Quarterly"}, DropOldest: true})
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 2)

	income := wb.Sheets[0].Table
	assert.Equal(t, []string{"Revenue", "Gross Margin"}, income.Columns)
	assert.Equal(t, []time.Time{day("2020-03-31"), day("2020-06-30"), day("2020-09-30")}, income.Dates())
	require.NoError(t, income.Validate())

	revenue, _ := income.Column("Revenue")
	assert.True(t, revenue[0].Decimal.Equal(decimal.NewFromInt(800)))
	assert.True(t, revenue[2].Decimal.Equal(decimal.NewFromInt(1000)))

	margin, _ := income.Column("Gross Margin")
	assert.True(t, margin[0].Decimal.Equal(decimal.RequireFromString("0.385")))
	assert.False(t, margin[1].Valid)
	assert.True(t, margin[2].Decimal.Equal(decimal.RequireFromString("0.4")))
}

func TestLoadKeepsOldestWhenAsked(t *testing.T) {
	path := writeStatementWorkbook(t)

	wb, err := Load(path, Options{Sheets: []string{"Income-Quarterly"}})
	require.NoError(t, err)
	assert.Equal(t, 4, wb.Sheets[0].Table.Len())
}

func TestCombineJoinsSheets(t *testing.T) {
	path := writeStatementWorkbook(t)

	wb, err := Load(path, Options{DropOldest: true})
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 3)

	combined := wb.Combine()
	assert.Equal(t, []string{"Revenue", "Gross Margin", "Total Assets"}, combined.Columns)
	assert.Equal(t, 3, combined.Len())
	require.NoError(t, combined.Validate())

	revenue, _ := combined.Column("Revenue")
	assert.True(t, revenue[1].Decimal.Equal(decimal.NewFromInt(900)), "first sheet wins on duplicate columns")
	assets, _ := combined.Column("Total Assets")
	assert.True(t, assets[2].Decimal.Equal(decimal.NewFromInt(5000)))
}

func TestLoadMissingSheet(t *testing.T) {
	path := writeStatementWorkbook(t)

	_, err := Load(path, Options{Sheets: []string{"Cash-Flow-Quarterly"}})
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	got, ok := parseDate("43921", false)
	require.True(t, ok)
	assert.Equal(t, day("2020-03-31"), got)

	got, ok = parseDate("Mar 31, 2020", false)
	require.True(t, ok)
	assert.Equal(t, day("2020-03-31"), got)

	_, ok = parseDate("TTM", false)
	assert.False(t, ok)
	_, ok = parseDate("2020", false)
	assert.False(t, ok)
}
