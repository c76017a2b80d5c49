package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/xuri/excelize/v2"

	"fundamentals-merge/internal/series"
)

// SheetName is the sheet merged tables are written to.
const SheetName = "quarterly"

// Path returns root/SYMBOL/<date>/SYMBOL_quarterly_<date>.xlsx.
func Path(root, symbol string, runDate time.Time, layout string) string {
	stamp := runDate.Format(layout)
	return filepath.Join(root, symbol, stamp, fmt.Sprintf("%s_quarterly_%s.xlsx", symbol, stamp))
}

// WriteXLSX writes table as a single-sheet workbook with a leading Date column.
func WriteXLSX(path string, table *series.Table) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return err
	}

	header := make([]interface{}, 0, len(table.Columns)+1)
	header = append(header, "Date")
	for _, c := range table.Columns {
		header = append(header, c)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return err
	}

	for i, row := range table.Rows {
		record := make([]interface{}, 0, len(row.Values)+1)
		record = append(record, row.Date)
		for _, v := range row.Values {
			record = append(record, cellValue(v))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &record); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, dateStyle); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

// WriteCSV writes table as CSV with a leading Date column.
func WriteCSV(path string, table *series.Table) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := append([]string{"Date"}, table.Columns...)
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range table.Rows {
		record := make([]string, 0, len(row.Values)+1)
		record = append(record, row.Date.Format(time.DateOnly))
		for _, v := range row.Values {
			if v.Valid {
				record = append(record, v.Decimal.String())
			} else {
				record = append(record, "")
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteChart renders priceColumn and, when set, metricColumn on a secondary axis.
func WriteChart(path, symbol string, table *series.Table, priceColumn, metricColumn string) error {
	prices, ok := table.Column(priceColumn)
	if !ok {
		return fmt.Errorf("column %q not found", priceColumn)
	}
	if table.Len() < 2 {
		return errors.New("chart needs at least two rows")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x, y := points(table.Dates(), prices)
	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Title:  symbol,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           priceColumn,
			ValueFormatter: valueFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    priceColumn,
				XValues: x,
				YValues: y,
			},
		},
	}

	if metricColumn != "" {
		metric, ok := table.Column(metricColumn)
		if !ok {
			return fmt.Errorf("column %q not found", metricColumn)
		}
		mx, my := points(table.Dates(), metric)
		if len(mx) > 1 {
			graph.YAxisSecondary = chart.YAxis{
				Name:           metricColumn,
				ValueFormatter: valueFormatter,
			}
			graph.Series = append(graph.Series, chart.TimeSeries{
				Name:    metricColumn,
				XValues: mx,
				YValues: my,
				YAxis:   chart.YAxisSecondary,
			})
		}
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func points(dates []time.Time, values []decimal.NullDecimal) ([]time.Time, []float64) {
	x := make([]time.Time, 0, len(values))
	y := make([]float64, 0, len(values))
	for i, v := range values {
		if !v.Valid {
			continue
		}
		x = append(x, dates[i])
		y = append(y, v.Decimal.InexactFloat64())
	}
	return x, y
}

func cellValue(v decimal.NullDecimal) interface{} {
	if !v.Valid {
		return nil
	}
	return v.Decimal.InexactFloat64()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
