package aeronet

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Column names used for time derivation and in derived output.
const (
	ColumnSite      = "AERONET_Site"
	ColumnDate      = "Date(dd:mm:yyyy)"
	ColumnTime      = "Time(hh:mm:ss)"
	ColumnDateAlt   = "Date_(dd:mm:yyyy)"
	ColumnTimeAlt   = "Time_(hh:mm:ss)"
	ColumnLongitude = "Site_Longitude(Degrees)"
	ColumnLatitude  = "Site_Latitude(Degrees)"

	ColumnTimeUTC = "time_utc"
	ColumnTimeLST = "time_lst"
)

// preambleLines is the number of banner lines before the CSV header.
const preambleLines = 5

// missingValue marks "no value" in the service output.
const missingValue = -999

const timestampLayout = "02:01:2006 15:04:05"

// Cell is one table value. Valid is false for missing values.
type Cell struct {
	// Text is the trimmed source text; empty when the cell is not valid.
	Text string

	// Time is set for the derived time columns.
	Time time.Time

	Valid bool
}

// Float parses the cell as a number.
func (c Cell) Float() (float64, bool) {
	if !c.Valid {
		return 0, false
	}
	f, err := strconv.ParseFloat(c.Text, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// IsTime reports whether the cell holds a derived timestamp.
func (c Cell) IsTime() bool {
	return c.Valid && !c.Time.IsZero()
}

// String renders the cell for CSV output. Missing values are empty.
func (c Cell) String() string {
	switch {
	case !c.Valid:
		return ""
	case c.IsTime():
		return c.Time.Format(time.RFC3339)
	default:
		return c.Text
	}
}

func textCell(raw string) Cell {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Cell{}
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil && f == missingValue {
		return Cell{}
	}
	return Cell{Text: text, Valid: true}
}

func timeCell(t time.Time) Cell {
	return Cell{Text: t.Format(time.RFC3339), Time: t, Valid: true}
}

// Table holds parsed observations, one row per record.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Cell
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// HasColumn reports whether the table has a column called name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns a copy of the named column's cells.
func (t *Table) Column(name string) ([]Cell, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, &ColumnError{Columns: []string{name}}
	}
	cells := make([]Cell, len(t.rows))
	for r, row := range t.rows {
		cells[r] = row[i]
	}
	return cells, nil
}

// Cell returns the value at row for the named column.
func (t *Table) Cell(row int, name string) (Cell, error) {
	i, ok := t.index[name]
	if !ok {
		return Cell{}, &ColumnError{Columns: []string{name}}
	}
	if row < 0 || row >= len(t.rows) {
		return Cell{}, fmt.Errorf("row %d out of range [0,%d)", row, len(t.rows))
	}
	return t.rows[row][i], nil
}

// Floats returns the named column as numbers. Missing or non-numeric cells
// are NaN.
func (t *Table) Floats(name string) ([]float64, error) {
	cells, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cells))
	for i, c := range cells {
		f, ok := c.Float()
		if !ok {
			f = math.NaN()
		}
		out[i] = f
	}
	return out, nil
}

// Records returns every row keyed by column name. Missing values are nil,
// derived times are time.Time, numeric text is float64 and everything else
// stays a string.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, len(t.rows))
	for r, row := range t.rows {
		rec := make(map[string]any, len(t.columns))
		for i, name := range t.columns {
			rec[name] = row[i].value()
		}
		out[r] = rec
	}
	return out
}

func (c Cell) value() any {
	if !c.Valid {
		return nil
	}
	if c.IsTime() {
		return c.Time
	}
	if f, ok := c.Float(); ok && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	return c.Text
}

// WriteCSV writes the header and all rows.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.columns); err != nil {
		return err
	}
	record := make([]string, len(t.columns))
	for _, row := range t.rows {
		for i, c := range row {
			record[i] = c.String()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (t *Table) addColumn(name string, cells []Cell) {
	if i, ok := t.index[name]; ok {
		for r := range t.rows {
			t.rows[r][i] = cells[r]
		}
		return
	}
	t.index[name] = len(t.columns)
	t.columns = append(t.columns, name)
	for r := range t.rows {
		t.rows[r] = append(t.rows[r], cells[r])
	}
}

// ReadOptions selects the derived columns.
type ReadOptions struct {
	// AddUTC attaches time_utc.
	AddUTC bool

	// AddLST attaches time_lst, UTC shifted by floor(longitude/15) hours.
	AddLST bool
}

// ReadTableFile parses a saved service response.
func ReadTableFile(path string, opts ReadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return ReadTable(f, opts)
}

// ReadTable parses a service response: five banner lines, then a CSV table.
func ReadTable(r io.Reader, opts ReadOptions) (*Table, error) {
	br := bufio.NewReader(r)
	for i := 0; i < preambleLines; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: payload ended inside the %d line preamble", ErrMalformedPayload, preambleLines)
			}
			return nil, fmt.Errorf("read preamble: %w", err)
		}
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no header row", ErrMalformedPayload)
		}
		return nil, fmt.Errorf("%w: header: %w", ErrMalformedPayload, err)
	}

	t := &Table{index: make(map[string]int, len(header))}
	for _, name := range header {
		t.columns = append(t.columns, uniqueName(t.index, strings.TrimSpace(name)))
		t.index[t.columns[len(t.columns)-1]] = len(t.columns) - 1
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}

		line, _ := cr.FieldPos(0)
		row, err := buildRow(record, len(t.columns), line)
		if err != nil {
			return nil, err
		}
		t.rows = append(t.rows, row)
	}

	if opts.AddUTC || opts.AddLST {
		if err := deriveTimes(t, opts); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// uniqueName suffixes repeated header names with .1, .2, ...
func uniqueName(seen map[string]int, name string) string {
	if _, dup := seen[name]; !dup {
		return name
	}
	for n := 1; ; n++ {
		candidate := name + "." + strconv.Itoa(n)
		if _, dup := seen[candidate]; !dup {
			return candidate
		}
	}
}

// buildRow pads short records. Extra fields are allowed only when empty,
// since the service ends some lines with a trailing comma.
func buildRow(record []string, width, line int) ([]Cell, error) {
	row := make([]Cell, width)
	for i, raw := range record {
		if i >= width {
			if strings.TrimSpace(raw) != "" {
				return nil, fmt.Errorf("%w: line %d has %d fields, header has %d", ErrMalformedPayload, line, len(record), width)
			}
			continue
		}
		row[i] = textCell(raw)
	}
	return row, nil
}

func deriveTimes(t *Table, opts ReadOptions) error {
	dates, times, err := dateTimeColumns(t)
	if err != nil {
		return err
	}

	utc := make([]Cell, len(dates))
	for r := range dates {
		if !dates[r].Valid || !times[r].Valid {
			continue
		}
		ts, err := time.ParseInLocation(timestampLayout, dates[r].Text+" "+times[r].Text, time.UTC)
		if err != nil {
			return fmt.Errorf("%w: row %d: %w", ErrMalformedPayload, r, err)
		}
		utc[r] = timeCell(ts)
	}

	if opts.AddUTC {
		t.addColumn(ColumnTimeUTC, utc)
	}

	if opts.AddLST {
		lons, err := t.Column(ColumnLongitude)
		if err != nil {
			return err
		}
		lst := make([]Cell, len(utc))
		for r := range utc {
			lon, ok := lons[r].Float()
			if !ok || !utc[r].Valid {
				continue
			}
			lst[r] = timeCell(utc[r].Time.Add(time.Duration(LSTOffsetHours(lon)) * time.Hour))
		}
		t.addColumn(ColumnTimeLST, lst)
	}

	return nil
}

// dateTimeColumns finds the date and time columns, trying the plain names
// first and the underscore names second.
func dateTimeColumns(t *Table) ([]Cell, []Cell, error) {
	pairs := [][2]string{
		{ColumnDate, ColumnTime},
		{ColumnDateAlt, ColumnTimeAlt},
	}
	for _, p := range pairs {
		if t.HasColumn(p[0]) && t.HasColumn(p[1]) {
			dates, _ := t.Column(p[0])
			times, _ := t.Column(p[1])
			return dates, times, nil
		}
	}

	var missing []string
	for _, p := range pairs {
		for _, name := range p {
			if !t.HasColumn(name) {
				missing = append(missing, name)
			}
		}
	}
	return nil, nil, &ColumnError{Columns: missing}
}

// LSTOffsetHours is the local standard time offset for a longitude in
// degrees east: floor(lon / 15).
func LSTOffsetHours(lon float64) int {
	return int(math.Floor(lon / 15))
}
