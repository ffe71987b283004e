package timeutil

import (
	"regexp"
	"time"
)

// Layout of every instant persisted by the engine: ISO-8601 UTC with
// millisecond precision, e.g. 2024-01-25T08:30:45.123Z.
const UTCDateTimeLayout = "2006-01-02T15:04:05.000Z"

const DateLayout = "2006-01-02"

var (
	utcDateTimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`)
	dateRe        = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// IsValidUTCDateTime reports whether s matches the exact persisted datetime
// format and parses to a real instant.
func IsValidUTCDateTime(s string) bool {
	if !utcDateTimeRe.MatchString(s) {
		return false
	}
	_, err := time.Parse(UTCDateTimeLayout, s)
	return err == nil
}

// IsValidDateFormat reports whether s is a real calendar date in YYYY-MM-DD form.
func IsValidDateFormat(s string) bool {
	if !dateRe.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ShiftTimezone returns the instant moved by offsetHours, still rendered as
// ISO-8601 UTC. Persisted values stay UTC; this is a display/derivation
// convenience only. Unparseable input is returned unchanged.
func ShiftTimezone(iso string, offsetHours int) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return iso
	}
	return t.Add(time.Duration(offsetHours) * time.Hour).UTC().Format(UTCDateTimeLayout)
}

// DateInOffset returns the calendar date (YYYY-MM-DD) of the instant after
// shifting it by offsetHours.
func DateInOffset(iso string, offsetHours int) (string, bool) {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return "", false
	}
	return t.Add(time.Duration(offsetHours) * time.Hour).UTC().Format(DateLayout), true
}

// Duration renders the wall-clock distance between two instants as HH:MM:SS.
// ok is false when either side is missing or unparseable. Ordering is not
// checked here; a non-chronological pair yields a signed string and callers
// are expected to validate ordering beforehand.
func Duration(start, end string) (string, bool) {
	if start == "" || end == "" {
		return "", false
	}
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return "", false
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return "", false
	}

	d := e.Sub(s)
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	total := int64(d.Seconds())
	return sign + clockString(total/3600, (total%3600)/60, total%60), true
}

// FormatDayTime renders an instant as dd/mm/yyyy HH:MM for change-history
// lines, with explicit placeholders for absent or malformed values.
func FormatDayTime(iso string) string {
	if iso == "" {
		return "(no time)"
	}
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return "(invalid time)"
	}
	return t.UTC().Format("02/01/2006 15:04")
}

// FormatClock renders an instant as HH:MM. Empty input stays empty.
func FormatClock(iso string) string {
	if iso == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return ""
	}
	return t.UTC().Format("15:04")
}

func clockString(h, m, s int64) string {
	digits := func(v int64) []byte {
		return []byte{byte('0' + v/10), byte('0' + v%10)}
	}
	out := make([]byte, 0, 8)
	if h > 99 {
		// Shifts longer than 99 hours only happen on bad data, but the
		// string should still be readable.
		out = appendInt(out, h)
	} else {
		out = append(out, digits(h)...)
	}
	out = append(out, ':')
	out = append(out, digits(m)...)
	out = append(out, ':')
	out = append(out, digits(s)...)
	return string(out)
}

func appendInt(b []byte, v int64) []byte {
	if v >= 10 {
		b = appendInt(b, v/10)
	}
	return append(b, byte('0'+v%10))
}
