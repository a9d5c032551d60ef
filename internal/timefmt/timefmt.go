package timefmt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Clock is a time of day without a date.
type Clock struct {
	Hour   int
	Minute int
}

var (
	canonicalRe = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)
	clock24Re   = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	clock12Re   = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*([AaPp][Mm])$`)
)

// IsCanonical reports whether s matches the canonical storage form:
// zero-padded 24-hour HH:MM within 00-23:00-59.
func IsCanonical(s string) bool {
	return canonicalRe.MatchString(s)
}

// Parse accepts a 24-hour "HH:MM" or a 12-hour "HH:MM AM|PM" time string
// (case-insensitive) and returns its clock value. Out-of-range hours or
// minutes and unrecognized text return ok=false.
func Parse(s string) (Clock, bool) {
	input := strings.TrimSpace(s)
	if input == "" {
		return Clock{}, false
	}

	if m := clock12Re.FindStringSubmatch(input); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour < 1 || hour > 12 || minute > 59 {
			return Clock{}, false
		}
		period := strings.ToUpper(m[3])
		if period == "PM" && hour != 12 {
			hour += 12
		} else if period == "AM" && hour == 12 {
			hour = 0
		}
		return Clock{Hour: hour, Minute: minute}, true
	}

	if m := clock24Re.FindStringSubmatch(input); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return Clock{}, false
		}
		return Clock{Hour: hour, Minute: minute}, true
	}

	return Clock{}, false
}

// Format renders a clock value. 24-hour form is zero-padded HH:MM; the
// 12-hour form wraps hours 0 and 12 both to 12 and appends AM/PM.
// Out-of-range values render as "".
func Format(c Clock, use24h bool) string {
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
		return ""
	}
	if use24h {
		return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
	}
	period := "AM"
	if c.Hour >= 12 {
		period = "PM"
	}
	hour12 := c.Hour % 12
	if hour12 == 0 {
		hour12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", hour12, c.Minute, period)
}

// Display re-renders a stored time string in the requested format.
// Unrecognized input is returned unchanged so malformed stored values
// stay visible instead of disappearing.
func Display(s string, use24h bool) string {
	c, ok := Parse(s)
	if !ok {
		return s
	}
	return Format(c, use24h)
}
