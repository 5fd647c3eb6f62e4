package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ulikunitz/xz"
)

// ErrOutOfOrder is returned when a feed yields a bar older than its
// predecessor.
var ErrOutOfOrder = errors.New("bar out of order")

// BarFeed yields validated bars one at a time in non-decreasing time order.
// Implementations return (ok=false, err=nil) at EOF.
type BarFeed interface {
	Next() (b Bar, ok bool, err error)
	Close() error
}

// SliceFeed replays an in-memory bar slice. The slice is never modified, so
// several feeds may share one backing slice.
type SliceFeed struct {
	bars []Bar
	idx  int
	last time.Time
}

func NewSliceFeed(bars []Bar) *SliceFeed {
	return &SliceFeed{bars: bars}
}

func (f *SliceFeed) Next() (Bar, bool, error) {
	if f.idx >= len(f.bars) {
		return Bar{}, false, nil
	}
	b := f.bars[f.idx]
	f.idx++
	if err := b.Validate(); err != nil {
		return Bar{}, false, fmt.Errorf("bar %d: %w", f.idx-1, err)
	}
	if b.Time.Before(f.last) {
		return Bar{}, false, fmt.Errorf("bar %d at %s: %w", f.idx-1, b.Time.Format(time.RFC3339), ErrOutOfOrder)
	}
	f.last = b.Time
	return b, true, nil
}

func (f *SliceFeed) Close() error { return nil }

// CSVBarFeed reads bar CSV rows. A header row naming the columns is
// required:
//
//	datetime,symbol,open,high,low,close,volume,interval
//
// Columns may appear in any order; volume and interval are optional.
// datetime is RFC3339, RFC3339Nano, "2006-01-02 15:04:05" or unix
// milliseconds.
//
// It optionally filters bars to [From, To) and to a single symbol.
type CSVBarFeed struct {
	f      *os.File
	r      *csv.Reader
	cols   map[string]int
	from   time.Time
	to     time.Time
	symbol string
	line   int
	last   time.Time
}

var requiredColumns = []string{"datetime", "symbol", "open", "high", "low", "close"}

// NewCSVBarFeed opens path as a bar feed. A path ending in ".xz" is
// decompressed on the fly.
func NewCSVBarFeed(path, symbol string, from, to time.Time) (*CSVBarFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".xz") {
		if r, err = xz.NewReader(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	feed, err := newCSVBarFeed(r, symbol, from, to)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	feed.f = f
	return feed, nil
}

func newCSVBarFeed(r io.Reader, symbol string, from, to time.Time) (*CSVBarFeed, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty bar file")
	}
	if err != nil {
		return nil, err
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	// some data files call the bar open "time"
	if _, ok := cols["datetime"]; !ok {
		if i, ok := cols["time"]; ok {
			cols["datetime"] = i
		}
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("missing column %q in header %v", c, header)
		}
	}

	return &CSVBarFeed{r: cr, cols: cols, from: from, to: to, symbol: symbol, line: 1}, nil
}

func (f *CSVBarFeed) Close() error {
	if f.f != nil {
		return f.f.Close()
	}
	return nil
}

func (f *CSVBarFeed) Next() (Bar, bool, error) {
	for {
		row, err := f.r.Read()
		if err == io.EOF {
			return Bar{}, false, nil
		}
		if err != nil {
			return Bar{}, false, err
		}
		f.line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		b, err := f.parse(row)
		if err != nil {
			return Bar{}, false, fmt.Errorf("line %d: %w", f.line, err)
		}
		if f.symbol != "" && b.Symbol != f.symbol {
			continue
		}
		if !inRange(b.Time, f.from, f.to) {
			continue
		}
		if err := b.Validate(); err != nil {
			return Bar{}, false, fmt.Errorf("line %d: %w", f.line, err)
		}
		if b.Time.Before(f.last) {
			return Bar{}, false, fmt.Errorf("line %d at %s: %w", f.line, b.Time.Format(time.RFC3339), ErrOutOfOrder)
		}
		f.last = b.Time
		return b, true, nil
	}
}

func (f *CSVBarFeed) field(row []string, name string) string {
	i, ok := f.cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (f *CSVBarFeed) parse(row []string) (Bar, error) {
	t, err := ParseTime(f.field(row, "datetime"))
	if err != nil {
		return Bar{}, err
	}

	b := Bar{
		Symbol:   f.field(row, "symbol"),
		Time:     t,
		Interval: f.field(row, "interval"),
	}

	prices := []struct {
		name string
		dst  *decimal.Decimal
	}{
		{"open", &b.Open},
		{"high", &b.High},
		{"low", &b.Low},
		{"close", &b.Close},
	}
	for _, p := range prices {
		v, err := decimal.NewFromString(f.field(row, p.name))
		if err != nil {
			return Bar{}, fmt.Errorf("bad %s %q: %w", p.name, f.field(row, p.name), err)
		}
		*p.dst = v
	}

	if s := f.field(row, "volume"); s != "" {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return Bar{}, fmt.Errorf("bad volume %q: %w", s, err)
		}
		b.Volume = v
	}
	return b, nil
}

// ParseTime accepts RFC3339, RFC3339Nano, "2006-01-02 15:04:05",
// "2006-01-02" or unix milliseconds. Results are UTC.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty time")
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

// LoadCSV reads every bar of path into memory.
func LoadCSV(path, symbol string, from, to time.Time) ([]Bar, error) {
	feed, err := NewCSVBarFeed(path, symbol, from, to)
	if err != nil {
		return nil, err
	}
	defer feed.Close()
	return Collect(feed)
}

// Collect drains a feed.
func Collect(feed BarFeed) ([]Bar, error) {
	var bars []Bar
	for {
		b, ok, err := feed.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return bars, nil
		}
		bars = append(bars, b)
	}
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
