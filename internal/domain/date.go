package domain

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts are tried in order when parsing DATE text.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"20060102",
}

// DatePrecision is the resolution DATE values are kept at. The master
// dataset stores microseconds, so two dates equal at this precision are the
// same key.
const DatePrecision = time.Microsecond

// ParseDate parses DATE text into a UTC instant truncated to DatePrecision.
// Values without a zone are taken as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(DatePrecision), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// NormalizeDate converts a DATE cell to a UTC instant truncated to
// DatePrecision. Text is parsed with ParseDate; integers are epoch
// nanoseconds.
func NormalizeDate(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Truncate(DatePrecision), nil
	case string:
		return ParseDate(x)
	case int64:
		return time.Unix(0, x).UTC().Truncate(DatePrecision), nil
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to a date", v)
	}
}

// NormalizeDates converts the DATE column to KindTime in place.
func (f *Frame) NormalizeDates() error {
	i := f.ColumnIndex(ColumnDate)
	if i < 0 {
		return fmt.Errorf("no %s column", ColumnDate)
	}
	if f.Columns[i].Kind == KindTime {
		return nil
	}
	for n, r := range f.Rows {
		if r[i] == nil {
			continue
		}
		t, err := NormalizeDate(r[i])
		if err != nil {
			return fmt.Errorf("row %d: %w", n, err)
		}
		r[i] = t
	}
	f.Columns[i].Kind = KindTime
	return nil
}
