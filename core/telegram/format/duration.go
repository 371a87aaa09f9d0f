package format

import (
	"strconv"
	"strings"
	"time"
)

// Duration renders d as a compact countdown such as "1h, 2m, 5s".
// Sub-second remainders are dropped and non-positive values render as "0s".
func Duration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs <= 0 {
		return "0s"
	}
	days := secs / 86400
	hours := secs % 86400 / 3600
	mins := secs % 3600 / 60
	secs %= 60

	parts := make([]string, 0, 4)
	if days > 0 {
		parts = append(parts, strconv.FormatInt(days, 10)+"d")
	}
	if hours > 0 {
		parts = append(parts, strconv.FormatInt(hours, 10)+"h")
	}
	if mins > 0 {
		parts = append(parts, strconv.FormatInt(mins, 10)+"m")
	}
	if secs > 0 {
		parts = append(parts, strconv.FormatInt(secs, 10)+"s")
	}
	return strings.Join(parts, ", ")
}
