// Package marketdata loads OHLCV bars from CSV files for driving the
// engine VM one bar at a time. Grounded on the teacher's CSV ingestion in
// strategies/ema_atr_strategy.go: skip malformed rows with a logged
// warning rather than aborting the whole load. The first row is always read
// as the header that names the columns.
package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Bar is one OHLCV candle. Timestamp is parsed on a best-effort basis and
// is not included in the map ToGlobals builds.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// ToGlobals renders b as the map the engine VM's Execute expects.
func (b Bar) ToGlobals() map[string]float64 {
	return map[string]float64{
		"O": b.Open,
		"H": b.High,
		"L": b.Low,
		"C": b.Close,
		"V": b.Volume,
	}
}

// columnLayout tells LoadCSV which CSV column holds which field. -1 means
// absent.
type columnLayout struct {
	timestamp, open, high, low, close, volume int
}

var columnAliases = map[string][]string{
	"timestamp": {"timestamp", "time", "date", "datetime"},
	"open":      {"open", "o"},
	"high":      {"high", "h"},
	"low":       {"low", "l"},
	"close":     {"close", "c"},
	"volume":    {"volume", "vol", "v"},
}

// LoadCSV reads path and returns its bars in file order. A row that fails
// to parse is logged and skipped rather than aborting the load; a file
// with no bars at all after skipping is not itself an error.
func LoadCSV(path string, logger *zap.Logger) ([]Bar, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("marketdata: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("marketdata: read header: %w", err)
	}
	layout := detectLayout(header)
	if layout.open < 0 || layout.high < 0 || layout.low < 0 || layout.close < 0 {
		return nil, fmt.Errorf("marketdata: %s is missing one of open/high/low/close columns", path)
	}

	var bars []Bar
	rowNum := 1
	for {
		record, err := r.Read()
		rowNum++
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("marketdata: skipping unparseable row", zap.Int("row", rowNum), zap.Error(err))
			continue
		}
		bar, err := parseRow(record, layout)
		if err != nil {
			logger.Warn("marketdata: skipping malformed row", zap.Int("row", rowNum), zap.Error(err))
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func detectLayout(header []string) columnLayout {
	layout := columnLayout{timestamp: -1, open: -1, high: -1, low: -1, close: -1, volume: -1}
	for i, raw := range header {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case matches(name, "timestamp"):
			layout.timestamp = i
		case matches(name, "open"):
			layout.open = i
		case matches(name, "high"):
			layout.high = i
		case matches(name, "low"):
			layout.low = i
		case matches(name, "close"):
			layout.close = i
		case matches(name, "volume"):
			layout.volume = i
		}
	}
	return layout
}

func matches(name, field string) bool {
	for _, a := range columnAliases[field] {
		if name == a {
			return true
		}
	}
	return false
}

// parseRow decodes one CSV row into a Bar, routing every numeric field
// through decimal.NewFromString first so the parse itself is exact, and
// only narrowing to float64 (the Value model's numeric representation) at
// the very end.
func parseRow(record []string, layout columnLayout) (Bar, error) {
	get := func(col int) (string, bool) {
		if col < 0 || col >= len(record) {
			return "", false
		}
		return strings.TrimSpace(record[col]), true
	}

	decField := func(col int) (float64, error) {
		s, ok := get(col)
		if !ok {
			return 0, fmt.Errorf("column %d out of range", col)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, fmt.Errorf("parse %q: %w", s, err)
		}
		f, _ := d.Float64()
		return f, nil
	}

	var bar Bar
	var err error
	if bar.Open, err = decField(layout.open); err != nil {
		return Bar{}, err
	}
	if bar.High, err = decField(layout.high); err != nil {
		return Bar{}, err
	}
	if bar.Low, err = decField(layout.low); err != nil {
		return Bar{}, err
	}
	if bar.Close, err = decField(layout.close); err != nil {
		return Bar{}, err
	}
	if layout.volume >= 0 {
		if bar.Volume, err = decField(layout.volume); err != nil {
			return Bar{}, err
		}
	}
	if layout.timestamp >= 0 {
		if raw, ok := get(layout.timestamp); ok {
			bar.Timestamp = parseTimestamp(raw)
		}
	}
	return bar, nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp tries a short list of common layouts and gives up
// silently (leaving the zero time) rather than failing the whole row over
// an unparseable timestamp — the engine VM never reads it.
func parseTimestamp(raw string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC()
	}
	return time.Time{}
}
