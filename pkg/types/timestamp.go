package types

import (
	"fmt"
	"time"
)

var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC3339, naive date-times (read as UTC) and plain
// dates.
func ParseTimestamp(s string) (time.Time, error) {
	for _, f := range timestampFormats {
		t, err := time.Parse(f, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp format: %s", s)
}
