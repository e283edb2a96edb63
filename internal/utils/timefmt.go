package utils

import (
	"time"
)

const timestampLayout = "2006-01-02 15:04"

// FormatTimestamp returns the provided time in the local time zone with minute precision.
// Commit listings use it so chat output stays compact.
func FormatTimestamp(value time.Time) string {
	if value.IsZero() {
		return EmptyString
	}
	return value.In(time.Local).Format(timestampLayout)
}
