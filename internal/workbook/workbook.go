// Package workbook loads statement workbooks whose sheets list line items as
// rows and report dates as columns, and turns them into date-indexed tables.
package workbook

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"fundamentals-merge/internal/datematch"
	"fundamentals-merge/internal/series"
)

// Options control which sheets are read and how they are cleaned.
type Options struct {
	// Sheets to read, in output column order. Empty reads every sheet.
	Sheets []string
	// DropOldest removes the earliest dated row of every sheet.
	DropOldest bool
}

// Sheet is one transposed sheet.
type Sheet struct {
	Name  string
	Table *series.Table
}

// Workbook holds the transposed sheets of one file.
type Workbook struct {
	Path   string
	Sheets []Sheet
}

var dateLayouts = []string{
	time.DateOnly,
	"2006-01-02 15:04:05",
	"1/2/2006",
	"1/2/06",
	"01-02-06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2006/01/02",
}

// Load opens path and transposes every requested sheet.
func Load(path string, opts Options) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	names := opts.Sheets
	if len(names) == 0 {
		names = f.GetSheetList()
	}

	wb := &Workbook{Path: path}
	for _, name := range names {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		table, err := transpose(rows, date1904)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		if opts.DropOldest && table.Len() > 0 {
			table.Rows = table.Rows[1:]
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: name, Table: table})
	}
	return wb, nil
}

// Combine joins all sheets into one table on their dates. Callers compute it
// once per workbook.
func (w *Workbook) Combine() *series.Table {
	tables := make([]*series.Table, len(w.Sheets))
	for i, sheet := range w.Sheets {
		tables[i] = sheet.Table
	}
	return series.Join(tables...)
}

func transpose(rows [][]string, date1904 bool) (*series.Table, error) {
	if len(rows) == 0 {
		return series.New(), nil
	}

	header := rows[0]
	type dated struct {
		col  int
		date time.Time
	}
	var dates []dated
	seen := make(map[time.Time]bool)
	for col := 1; col < len(header); col++ {
		date, ok := parseDate(header[col], date1904)
		if !ok {
			continue
		}
		if seen[date] {
			return nil, fmt.Errorf("duplicate date %s in header", date.Format(time.DateOnly))
		}
		seen[date] = true
		dates = append(dates, dated{col: col, date: date})
	}

	var columns []string
	var source []int
	for i, row := range rows[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		columns = append(columns, strings.TrimSpace(row[0]))
		source = append(source, i+1)
	}

	table := series.New(columns...)
	for _, d := range dates {
		values := make([]decimal.NullDecimal, len(columns))
		for c, r := range source {
			row := rows[r]
			if d.col < len(row) {
				values[c] = parseValue(row[d.col])
			}
		}
		table.Append(d.date, values...)
	}
	table.Sort()
	return table, nil
}

func parseDate(cell string, date1904 bool) (time.Time, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return time.Time{}, false
	}
	if serial, err := strconv.ParseFloat(cell, 64); err == nil {
		// Plain years or small counters are not date serials.
		if serial < 10000 {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(serial, date1904)
		if err != nil {
			return time.Time{}, false
		}
		return datematch.Day(t), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return datematch.Day(t), true
		}
	}
	return time.Time{}, false
}

func parseValue(cell string) decimal.NullDecimal {
	cell = strings.TrimSpace(cell)
	if cell == "" || cell == "-" || strings.EqualFold(cell, "n/a") {
		return decimal.NullDecimal{}
	}

	cell = strings.ReplaceAll(cell, ",", "")
	percent := strings.HasSuffix(cell, "%")
	cell = strings.TrimSuffix(cell, "%")

	v, err := decimal.NewFromString(cell)
	if err != nil {
		return decimal.NullDecimal{}
	}
	if percent {
		v = v.Div(decimal.NewFromInt(100))
	}
	return series.Value(v)
}
