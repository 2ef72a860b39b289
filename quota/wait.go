package quota

import (
	"fmt"
	"strings"
	"time"
)

// FormatWait renders a wait duration for the user: largest non-zero units
// first, zero units omitted, e.g. "1 day 2 hours 30 seconds". A non-positive
// duration renders as "now".
func FormatWait(d time.Duration) string {
	if d <= 0 {
		return "now"
	}

	// Sub-second remainders still mean the caller has to wait.
	seconds := int64((d + time.Second - 1) / time.Second)

	days := seconds / 86400
	seconds -= days * 86400
	hours := seconds / 3600
	seconds -= hours * 3600
	minutes := seconds / 60
	seconds -= minutes * 60

	var parts []string
	appendUnit := func(v int64, unit string) {
		if v == 0 {
			return
		}
		if v == 1 {
			parts = append(parts, fmt.Sprintf("1 %s", unit))
			return
		}
		parts = append(parts, fmt.Sprintf("%d %ss", v, unit))
	}

	appendUnit(days, "day")
	appendUnit(hours, "hour")
	appendUnit(minutes, "minute")
	appendUnit(seconds, "second")

	return strings.Join(parts, " ")
}
