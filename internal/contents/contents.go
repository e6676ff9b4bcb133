// Package contents validates status update payloads per status type.
//
// Most status types treat contents as an opaque string; types with a known
// schema register a validator. Validation always runs before any record is
// written.
package contents

import (
	"encoding/json"
	"fmt"

	"github.com/statuskit/statusd/internal/errs"
)

// LatLongType is the built-in location status type with a strict schema.
const LatLongType = "location/latlong"

// Validator checks the raw contents string for one status type.
type Validator func(raw string) error

// Registry maps status type names to their contents validators. Types
// without an entry accept any contents.
type Registry struct {
	validators map[string]Validator
}

// NewRegistry returns a registry with the built-in validators registered.
func NewRegistry() *Registry {
	r := &Registry{validators: make(map[string]Validator)}
	r.Register(LatLongType, ValidateLatLong)
	return r
}

// Register installs a validator for the given status type, replacing any
// previous one.
func (r *Registry) Register(statusType string, v Validator) {
	r.validators[statusType] = v
}

// Validate checks raw contents against the validator registered for the
// type, if any.
func (r *Registry) Validate(statusType, raw string) error {
	if v, ok := r.validators[statusType]; ok {
		return v(raw)
	}
	return nil
}

// ValidateLatLong requires contents to be a JSON object with exactly the two
// numeric keys latitude and longitude, within the valid coordinate ranges.
func ValidateLatLong(raw string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return fmt.Errorf("invalid lat/long contents: %w", errs.ErrInvalid)
	}
	if len(fields) != 2 {
		return fmt.Errorf("invalid lat/long contents: %w", errs.ErrInvalid)
	}
	lat, err := numericField(fields, "latitude")
	if err != nil || lat < -90 || lat > 90 {
		return fmt.Errorf("invalid latitude value: %w", errs.ErrInvalid)
	}
	lon, err := numericField(fields, "longitude")
	if err != nil || lon < -180 || lon > 180 {
		return fmt.Errorf("invalid longitude value: %w", errs.ErrInvalid)
	}
	return nil
}

// numericField decodes one field that must be a JSON number. Quoted numbers
// like "45.0" are rejected: decoding into float64 only accepts number tokens.
func numericField(fields map[string]json.RawMessage, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, errs.ErrInvalid
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, errs.ErrInvalid
	}
	return v, nil
}

// ValidCoordinates reports whether a latitude/longitude pair is in range.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
