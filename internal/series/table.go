package series

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// CloseField is the price column every price history table carries.
const CloseField = "Close"

var (
	// ErrNotAscending indicates row dates are not unique and strictly ascending.
	ErrNotAscending = errors.New("series: dates must be unique and ascending")
	// ErrLengthMismatch indicates a column length differs from the row count.
	ErrLengthMismatch = errors.New("series: column length does not match row count")
)

// Row is one dated record. Values line up with the owning table's Columns.
type Row struct {
	Date   time.Time
	Values []decimal.NullDecimal
}

// Table is a date-indexed table. Transforms return new tables and never mutate
// the receiver.
type Table struct {
	Columns []string
	Rows    []Row
}

// New returns an empty table with the given columns.
func New(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Append adds a row at the end of the table. Missing trailing values are null.
func (t *Table) Append(date time.Time, values ...decimal.NullDecimal) {
	row := Row{Date: date, Values: make([]decimal.NullDecimal, len(t.Columns))}
	copy(row.Values, values)
	t.Rows = append(t.Rows, row)
}

// Len returns the row count.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Dates lists row dates in row order.
func (t *Table) Dates() []time.Time {
	out := make([]time.Time, t.Len())
	for i, row := range t.Rows {
		out[i] = row.Date
	}
	return out
}

// FirstDate returns the date of the first row.
func (t *Table) FirstDate() (time.Time, bool) {
	if t.Len() == 0 {
		return time.Time{}, false
	}
	return t.Rows[0].Date, true
}

// LastDate returns the date of the last row.
func (t *Table) LastDate() (time.Time, bool) {
	if t.Len() == 0 {
		return time.Time{}, false
	}
	return t.Rows[len(t.Rows)-1].Date, true
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns the values of name in row order.
func (t *Table) Column(name string) ([]decimal.NullDecimal, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]decimal.NullDecimal, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row.Values[idx]
	}
	return out, true
}

// Validate checks that row dates are strictly ascending and rows are full width.
func (t *Table) Validate() error {
	for i, row := range t.Rows {
		if len(row.Values) != len(t.Columns) {
			return fmt.Errorf("row %s: %w", row.Date.Format(time.DateOnly), ErrLengthMismatch)
		}
		if i > 0 && !row.Date.After(t.Rows[i-1].Date) {
			return fmt.Errorf("row %s after %s: %w", row.Date.Format(time.DateOnly), t.Rows[i-1].Date.Format(time.DateOnly), ErrNotAscending)
		}
	}
	return nil
}

// Sort orders rows by ascending date. Ties keep their relative order.
func (t *Table) Sort() {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return t.Rows[i].Date.Before(t.Rows[j].Date)
	})
}

// Clone deep-copies the table.
func (t *Table) Clone() *Table {
	out := New(t.Columns...)
	out.Rows = make([]Row, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = Row{Date: row.Date, Values: append([]decimal.NullDecimal(nil), row.Values...)}
	}
	return out
}

// Between keeps rows whose date falls in [first, last].
func (t *Table) Between(first, last time.Time) *Table {
	out := New(t.Columns...)
	for _, row := range t.Rows {
		if row.Date.Before(first) || row.Date.After(last) {
			continue
		}
		out.Rows = append(out.Rows, Row{Date: row.Date, Values: append([]decimal.NullDecimal(nil), row.Values...)})
	}
	return out
}

// WithColumn returns a copy with values appended as column name, assigned by
// row position. A column already named name is overwritten.
func (t *Table) WithColumn(name string, values []decimal.NullDecimal) (*Table, error) {
	if len(values) != t.Len() {
		return nil, fmt.Errorf("column %q has %d values for %d rows: %w", name, len(values), t.Len(), ErrLengthMismatch)
	}

	out := t.Clone()
	idx := out.ColumnIndex(name)
	if idx < 0 {
		out.Columns = append(out.Columns, name)
		for i := range out.Rows {
			out.Rows[i].Values = append(out.Rows[i].Values, values[i])
		}
		return out, nil
	}
	for i := range out.Rows {
		out.Rows[i].Values[idx] = values[i]
	}
	return out, nil
}

// Join outer-joins tables on date. Columns keep table order; a column name seen
// in an earlier table wins over a later duplicate.
func Join(tables ...*Table) *Table {
	type source struct {
		table int
		col   int
	}

	var (
		columns []string
		sources []source
		seen    = make(map[string]struct{})
	)
	for ti, tbl := range tables {
		if tbl == nil {
			continue
		}
		for ci, name := range tbl.Columns {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			columns = append(columns, name)
			sources = append(sources, source{table: ti, col: ci})
		}
	}

	byDate := make(map[time.Time][]decimal.NullDecimal)
	var dates []time.Time
	for ti, tbl := range tables {
		if tbl == nil {
			continue
		}
		for _, row := range tbl.Rows {
			values, ok := byDate[row.Date]
			if !ok {
				values = make([]decimal.NullDecimal, len(columns))
				byDate[row.Date] = values
				dates = append(dates, row.Date)
			}
			for out, src := range sources {
				if src.table == ti && row.Values[src.col].Valid {
					values[out] = row.Values[src.col]
				}
			}
		}
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := New(columns...)
	out.Rows = make([]Row, len(dates))
	for i, date := range dates {
		out.Rows[i] = Row{Date: date, Values: byDate[date]}
	}
	return out
}

// Value wraps a decimal as a valid cell.
func Value(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
