package session

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	fieldSeparator = "|"
	fieldCount     = 6
)

var (
	errFieldCount = errors.New("not enough fields")
	errNotFinite  = errors.New("value is not finite")
	errNotBool    = errors.New("expected true or false")
)

// EncodeLine renders a record as x|y|r|inRegion|observedAt|durationMillis.
// Numbers always use six decimals and a '.' separator.
func EncodeLine(rec Record) string {
	var b strings.Builder
	b.WriteString(formatNumber(rec.X))
	b.WriteString(fieldSeparator)
	b.WriteString(formatNumber(rec.Y))
	b.WriteString(fieldSeparator)
	b.WriteString(formatNumber(rec.R))
	b.WriteString(fieldSeparator)
	b.WriteString(strconv.FormatBool(rec.InRegion))
	b.WriteString(fieldSeparator)
	b.WriteString(rec.ObservedAt)
	b.WriteString(fieldSeparator)
	b.WriteString(formatNumber(rec.DurationMillis))
	return b.String()
}

// DecodeLine parses a line produced by EncodeLine. Numbers written with a ','
// decimal separator are accepted for files produced under other locales.
// Fields past the sixth are ignored.
func DecodeLine(line string) (Record, error) {
	parts := strings.Split(line, fieldSeparator)
	if len(parts) < fieldCount {
		return Record{}, &DecodeError{Line: line, Err: errFieldCount}
	}

	var rec Record
	var err error
	if rec.X, err = parseNumber(parts[0]); err != nil {
		return Record{}, &DecodeError{Field: "x", Line: line, Err: err}
	}
	if rec.Y, err = parseNumber(parts[1]); err != nil {
		return Record{}, &DecodeError{Field: "y", Line: line, Err: err}
	}
	if rec.R, err = parseNumber(parts[2]); err != nil {
		return Record{}, &DecodeError{Field: "r", Line: line, Err: err}
	}
	if rec.InRegion, err = parseBool(parts[3]); err != nil {
		return Record{}, &DecodeError{Field: "inRegion", Line: line, Err: err}
	}
	rec.ObservedAt = parts[4]
	if rec.DurationMillis, err = parseNumber(parts[5]); err != nil {
		return Record{}, &DecodeError{Field: "durationMillis", Line: line, Err: err}
	}

	return rec, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func parseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse number: %w", err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}

func parseBool(s string) (bool, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.EqualFold(s, "true"):
		return true, nil
	case strings.EqualFold(s, "false"):
		return false, nil
	default:
		return false, errNotBool
	}
}
