package filing

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05-07:00"
)

// clean trims s and puts it in Unicode NFC so equal text hashes equally.
func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// ParseQuantity coerces a legacy share quantity to an integer. Empty or
// unparseable input is nil, never zero.
func ParseQuantity(s string) *int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64 {
		return nil
	}
	n := int64(f)
	return &n
}

// ParseParValue coerces a legacy par value to a float. Empty or unparseable
// input is nil, never zero.
func ParseParValue(s string) *float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}

func formatDateTime(t time.Time) string {
	return t.UTC().Format(dateTimeLayout)
}

// ParseDate parses a document date ("2006-01-02").
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// ParseDateTime parses a document timestamp ("2006-01-02T15:04:05-07:00").
func ParseDateTime(s string) (time.Time, error) {
	return time.Parse(dateTimeLayout, s)
}
