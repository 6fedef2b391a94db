package core

// convert.go provides type conversion helpers for casting raw string fields.
//
// The Try* helpers are best-effort: they return the converted value when the
// input parses and the original string otherwise. Casters call them and then
// demand the target type, so anything still a string is a hard failure.

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the naive date-time layout used by statement exports.
const TimestampLayout = "2006-01-02 15:04:05"

// TryFloat returns s as a float64, or s unchanged if it does not parse as a
// finite decimal 64-bit float. Hex literals and digit separators, which
// strconv accepts, are not amounts.
func TryFloat(s string) any {
	if !isDecimal(s) {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return s
	}
	return f
}

// TryUnix returns s as Unix epoch seconds, or s unchanged if it does not
// match TimestampLayout. The timestamp has no zone and is read as UTC wall
// clock time.
func TryUnix(s string) any {
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return s
	}
	// time.Parse allows fractional seconds after the seconds field.
	if t.Format(TimestampLayout) != s {
		return s
	}
	return t.Unix()
}

func isDecimal(s string) bool {
	if strings.ContainsRune(s, '_') {
		return false
	}
	body := strings.TrimLeft(s, "+-")
	return !strings.HasPrefix(body, "0x") && !strings.HasPrefix(body, "0X")
}

// ToFloat converts field to float64 or returns a CastError.
func ToFloat(field, value string) (float64, error) {
	if f, ok := TryFloat(value).(float64); ok {
		return f, nil
	}
	return 0, &CastError{Field: field, Value: value, Err: ErrNotNumber}
}

// ToUnix converts field to epoch seconds or returns a CastError.
func ToUnix(field, value string) (int64, error) {
	if ts, ok := TryUnix(value).(int64); ok {
		return ts, nil
	}
	return 0, &CastError{Field: field, Value: value, Err: ErrNotTimestamp}
}
