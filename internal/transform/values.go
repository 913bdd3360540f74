package transform

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrUnparseableTimestamp is returned for non-empty timestamp text that
	// matches none of the accepted layouts.
	ErrUnparseableTimestamp = errors.New("unrecognized timestamp format")

	// ErrNotInteger is returned when a numeric column cannot be represented
	// as an integer.
	ErrNotInteger = errors.New("value is not representable as an integer")

	timeLayouts = []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02",
	}

	// MySQL writes these when a DATETIME was never set.
	zeroDatePrefixes = []string{"0000-00-00", "2000-00-00"}
)

// ParseTimestamp normalises a driver value into a timezone-naive timestamp
// truncated to whole seconds. Missing values (nil, empty text, zero dates,
// NaN) yield nil without error.
func ParseTimestamp(value any) (*time.Time, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return naive(v), nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return naive(*v), nil
	case mysql.NullTime:
		if !v.Valid {
			return nil, nil
		}
		return naive(v.Time), nil
	case sql.NullTime:
		if !v.Valid {
			return nil, nil
		}
		return naive(v.Time), nil
	case sql.NullString:
		if !v.Valid {
			return nil, nil
		}
		return parseTimestampText(v.String)
	case []byte:
		return parseTimestampText(string(v))
	case string:
		return parseTimestampText(v)
	case float64:
		if math.IsNaN(v) {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected numeric timestamp %v", v)
	default:
		return nil, fmt.Errorf("unsupported timestamp type %T", value)
	}
}

func parseTimestampText(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "nan") {
		return nil, nil
	}
	for _, prefix := range zeroDatePrefixes {
		if strings.HasPrefix(raw, prefix) {
			return nil, nil
		}
	}
	for _, layout := range timeLayouts {
		// time.Parse accepts a fractional second after the seconds field
		// even when the layout omits it.
		if ts, err := time.Parse(layout, raw); err == nil {
			return naive(ts), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnparseableTimestamp, raw)
}

// naive keeps the wall clock, drops sub-second precision and pins the
// location to UTC so the value round-trips through a timestamp column.
func naive(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	out := wallClock(t)
	return &out
}

func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// CoerceInt converts a driver value into an int64, failing for NULL, NaN,
// fractional or non-numeric input.
func CoerceInt(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows int64", ErrNotInteger, v)
		}
		return int64(v), nil
	case float64:
		return floatToInt(v)
	case float32:
		return floatToInt(float64(v))
	case sql.NullInt64:
		if !v.Valid {
			return 0, fmt.Errorf("%w: NULL", ErrNotInteger)
		}
		return v.Int64, nil
	case []byte:
		return parseIntText(string(v))
	case string:
		return parseIntText(v)
	case nil:
		return 0, fmt.Errorf("%w: NULL", ErrNotInteger)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrNotInteger, value)
	}
}

func floatToInt(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Mod(f, 1) != 0 {
		return 0, fmt.Errorf("%w: %v", ErrNotInteger, f)
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%w: %v overflows int64", ErrNotInteger, f)
	}
	return int64(f), nil
}

func parseIntText(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return floatToInt(f)
	}
	return 0, fmt.Errorf("%w: %q", ErrNotInteger, raw)
}

// trimmed returns the trimmed string value; NULL becomes empty.
func trimmed(s sql.NullString) string {
	if !s.Valid {
		return ""
	}
	return strings.TrimSpace(s.String)
}
