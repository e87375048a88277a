// Package common holds the small fixed-shape values shared by every
// package in this module: the wall-clock stamp format used in
// canonical serialization.
package common

import (
	"fmt"
	"time"
)

// StampLayout is the wire rendering of created_at timestamps, matching
// the original node's "str(datetime.datetime.now())" Python formatting:
// microsecond precision, space-separated date and time.
const StampLayout = "2006-01-02 15:04:05.000000"

// FormatStamp renders t at microsecond precision per StampLayout.
func FormatStamp(t time.Time) string {
	return t.UTC().Format(StampLayout)
}

// ParseStamp parses a StampLayout timestamp.
func ParseStamp(s string) (time.Time, error) {
	t, err := time.Parse(StampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("common: invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
