package ingest

import (
	"strings"
	"time"
)

// The portals publish wall-clock times without a zone; parsers interpret
// those in the configured local zone (South Africa, +02:00 by default) and
// all storage happens in UTC. Every parser returns nil for input that does
// not match its grammar.

// ParseEskomDate parses the Eskom bulletin format "2025-Oct-01 09:00:00".
func ParseEskomDate(s string, loc *time.Location) *time.Time {
	t, err := time.ParseInLocation("2006-Jan-02 15:04:05", strings.TrimSpace(s), loc)
	if err != nil {
		return nil
	}
	return &t
}

// ParseSanralNumericDate parses "2025/08/20 12:00" with optional seconds.
func ParseSanralNumericDate(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006/01/02 15:04:05", "2006/01/02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t
		}
	}
	return nil
}

// ParseTransnetDate parses "12/12/2025 4:00:00 PM". Single-digit day and
// month are tolerated and the meridiem is case-insensitive.
func ParseTransnetDate(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	// Uppercase only the trailing meridiem so time.Parse accepts am/pm.
	if len(s) >= 2 {
		tail := strings.ToUpper(s[len(s)-2:])
		if tail == "AM" || tail == "PM" {
			s = s[:len(s)-2] + tail
		}
	}
	for _, layout := range []string{"1/2/2006 3:04:05 PM", "1/2/2006 3:04 PM"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t
		}
	}
	return nil
}

// ParseISO parses the timestamp shapes the OCDS API emits. Inputs without
// a zone are interpreted in loc; date-only inputs get 00:00.
func ParseISO(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t
		}
	}
	return nil
}
