package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var driverRefRe = regexp.MustCompile(`(?i)^(?:DRV[-_\s]?)?0*(\d+)$`)

// DriverRef extracts the numeric driver ID from a vendor driver reference.
// Feeds deliver it as a bare number ("123"), zero-padded ("00123"), or
// prefixed ("DRV-123", "drv_00123").
func DriverRef(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	m := driverRefRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("unable to parse driver reference: %q", raw)
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("unable to parse driver reference: %q", raw)
	}
	return id, nil
}

// timestampLayouts are the formats seen across vendor feeds, tried in order.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006 15:04:05",
}

// Timestamp parses a vendor event timestamp. Layouts without an offset are
// interpreted in loc; epoch seconds are accepted as a fallback.
func Timestamp(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0), nil
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %q", raw)
}

// Odometer parses a vendor odometer reading, tolerating decimal fractions
// and unit suffixes ("123456", "123456.7", "123456 mi").
func Odometer(raw string) (int64, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return 0, nil
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(s, "mi"), "km"))
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("unable to parse odometer: %q", raw)
	}
	return v, nil
}
