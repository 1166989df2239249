package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON flattens the record into one object keyed by field name.
// Absent fields are omitted; url is always present.
func (r RepositoryRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 2+len(r.Ints)+len(r.Flags)+len(r.Series))
	out["url"] = r.URL
	for k, v := range r.Ints {
		out[string(k)] = v
	}
	for k, v := range r.Flags {
		out[string(k)] = v
	}
	for k, v := range r.Series {
		if v == nil {
			v = []float64{}
		}
		out[string(k)] = v
	}
	if r.Packages != nil {
		out["packages"] = r.Packages
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a flattened record. The field type is inferred from the JSON value.
func (r *RepositoryRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rec := NewRepositoryRecord("")
	for key, value := range raw {
		switch key {
		case "url":
			if err := json.Unmarshal(value, &rec.URL); err != nil {
				return fmt.Errorf("invalid url: %w", err)
			}
		case "packages":
			if err := json.Unmarshal(value, &rec.Packages); err != nil {
				return fmt.Errorf("invalid packages: %w", err)
			}
		default:
			if err := rec.decodeField(FieldKey(key), value); err != nil {
				return err
			}
		}
	}
	if rec.URL == "" {
		return fmt.Errorf("record is missing url")
	}
	*r = rec
	return nil
}

func (r *RepositoryRecord) decodeField(key FieldKey, value json.RawMessage) error {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return nil
	}
	switch value[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(value, &b); err != nil {
			return fmt.Errorf("invalid flag %s: %w", key, err)
		}
		r.Flags[key] = b
	case '[':
		var seq []float64
		if err := json.Unmarshal(value, &seq); err != nil {
			return fmt.Errorf("invalid sequence %s: %w", key, err)
		}
		r.Series[key] = seq
	case 'n':
		// null carries no value
	default:
		var n int64
		if err := json.Unmarshal(value, &n); err != nil {
			return fmt.Errorf("invalid number %s: %w", key, err)
		}
		r.Ints[key] = n
	}
	return nil
}
