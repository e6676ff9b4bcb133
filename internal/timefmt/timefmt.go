// Package timefmt converts between RFC-3339 strings and the split
// (UTC instant, original offset) representation the storage layer keeps.
package timefmt

import "time"

// Parse parses an RFC-3339 timestamp, keeping its UTC offset.
func Parse(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// Split returns the UTC instant of t plus its original UTC offset in seconds
// east. History and view rows store the two separately so the publisher's
// local time survives the round trip.
func Split(t time.Time) (time.Time, int) {
	_, offset := t.Zone()
	return t.UTC(), offset
}

// Format renders a stored (UTC instant, offset) pair back into an RFC-3339
// string in the original zone. Sub-second precision is kept so a formatted
// value parses back to the same instant.
func Format(utc time.Time, offset int) string {
	return utc.In(time.FixedZone("", offset)).Format(time.RFC3339Nano)
}
