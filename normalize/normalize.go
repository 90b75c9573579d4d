// Package normalize turns untrusted request input (decoded JSON values or
// multipart form strings) into validated, typed track fields. All functions
// are pure; persistence never sees unnormalized data.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"beatvault/model"
)

// Policy controls how Numeric treats absent or malformed input.
type Policy int

const (
	// Required rejects absent, empty or non-numeric input.
	Required Policy = iota
	// OptionalNullable maps absent, empty or non-numeric input to nil.
	OptionalNullable
)

// ValidationError reports a user-fixable input problem on a named field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q %s", e.Field, e.Reason)
}

// MoodTags normalizes mood-tag input. It accepts a sequence of values or a
// single comma-delimited string; every entry is trimmed and empty entries are
// dropped. Any other input type yields an empty list — absence of tags is
// valid, never an error.
func MoodTags(raw any) []string {
	tags := []string{}
	switch v := raw.(type) {
	case []string:
		for _, tag := range v {
			if t := strings.TrimSpace(tag); t != "" {
				tags = append(tags, t)
			}
		}
	case []any:
		for _, tag := range v {
			if t := strings.TrimSpace(stringValue(tag)); t != "" {
				tags = append(tags, t)
			}
		}
	case string:
		for _, tag := range strings.Split(v, ",") {
			if t := strings.TrimSpace(tag); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

// Numeric coerces raw input to a number. Absent input (nil or an empty
// string) and unparseable input fail with a ValidationError under Required
// and collapse to nil under OptionalNullable; NaN and infinities are rejected
// the same way so they are never persisted.
func Numeric(field string, raw any, policy Policy) (*float64, error) {
	var (
		n      float64
		absent bool
		failed bool
	)
	switch v := raw.(type) {
	case nil:
		absent = true
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			absent = true
			break
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			failed = true
			break
		}
		n = parsed
	default:
		failed = true
	}
	if !absent && !failed && (math.IsNaN(n) || math.IsInf(n, 0)) {
		failed = true
	}

	switch {
	case absent:
		if policy == Required {
			return nil, &ValidationError{Field: field, Reason: "is required"}
		}
		return nil, nil
	case failed:
		if policy == Required {
			return nil, &ValidationError{Field: field, Reason: "must be a number"}
		}
		return nil, nil
	default:
		return &n, nil
	}
}

// RequireFields checks that every key is present with a non-nil,
// non-empty-string value, returning a ValidationError naming the first
// missing one.
func RequireFields(fields map[string]any, keys ...string) error {
	for _, key := range keys {
		v, ok := fields[key]
		if !ok || v == nil {
			return &ValidationError{Field: key, Reason: "is required"}
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			return &ValidationError{Field: key, Reason: "is required"}
		}
	}
	return nil
}

// TrackFromInput builds a validated Track from raw creation input. This is
// the single canonical create contract: title, producerName, bpm, musicalKey
// and audioUrl are required, bpm must coerce to a number, price is optional
// and moodTags accept either form. The store assigns id and timestamps.
func TrackFromInput(fields map[string]any) (*model.Track, error) {
	fields = withKeyAlias(fields)

	if err := RequireFields(fields, "title", "producerName", "bpm", "musicalKey", "audioUrl"); err != nil {
		return nil, err
	}
	bpm, err := Numeric("bpm", fields["bpm"], Required)
	if err != nil {
		return nil, err
	}
	price, err := Numeric("price", fields["price"], OptionalNullable)
	if err != nil {
		return nil, err
	}

	return &model.Track{
		Title:        stringValue(fields["title"]),
		ProducerName: stringValue(fields["producerName"]),
		BPM:          *bpm,
		MusicalKey:   stringValue(fields["musicalKey"]),
		Price:        price,
		MoodTags:     MoodTags(fields["moodTags"]),
		AudioURL:     stringValue(fields["audioUrl"]),
	}, nil
}

// TrackPatchFromInput builds a partial update from raw PATCH input. Only keys
// present in the input are carried; everything else stays untouched. A bpm
// present with an empty value is ignored, a price present with an empty or
// null value clears the price to absent.
func TrackPatchFromInput(fields map[string]any) (*model.TrackUpdate, error) {
	fields = withKeyAlias(fields)
	upd := &model.TrackUpdate{}

	if raw, ok := fields["title"]; ok {
		s := stringValue(raw)
		upd.Title = &s
	}
	if raw, ok := fields["producerName"]; ok {
		s := stringValue(raw)
		upd.ProducerName = &s
	}
	if raw, ok := fields["musicalKey"]; ok {
		s := stringValue(raw)
		upd.MusicalKey = &s
	}
	if raw, ok := fields["audioUrl"]; ok {
		s := stringValue(raw)
		upd.AudioURL = &s
	}
	if raw, ok := fields["bpm"]; ok && !isEmpty(raw) {
		bpm, err := Numeric("bpm", raw, Required)
		if err != nil {
			return nil, err
		}
		upd.BPM = bpm
	}
	if raw, ok := fields["price"]; ok {
		price, err := Numeric("price", raw, OptionalNullable)
		if err != nil {
			return nil, err
		}
		if price == nil {
			upd.ClearPrice = true
		} else {
			upd.Price = price
		}
	}
	if raw, ok := fields["moodTags"]; ok {
		upd.MoodTags = MoodTags(raw)
	}
	return upd, nil
}

// withKeyAlias resolves the legacy "key" spelling of musicalKey without
// mutating the caller's map.
func withKeyAlias(fields map[string]any) map[string]any {
	if _, ok := fields["musicalKey"]; ok {
		return fields
	}
	legacy, ok := fields["key"]
	if !ok {
		return fields
	}
	resolved := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		resolved[k] = v
	}
	resolved["musicalKey"] = legacy
	return resolved
}

func isEmpty(raw any) bool {
	if raw == nil {
		return true
	}
	s, ok := raw.(string)
	return ok && strings.TrimSpace(s) == ""
}

func stringValue(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
