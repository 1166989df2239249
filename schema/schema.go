// Package schema has the record models and typed constants shared by all parts of rosmap.
package schema

import (
	"maps"
	"slices"
)

// PackageRecord is one package declared by a manifest file.
type PackageRecord struct {
	Name         string   `json:"name"`
	Dependencies []string `json:"dependencies"`
}

// RepositoryRecord is the aggregated metadata for one canonical remote URL.
// Every field except URL is optional and present only when an analyzer wrote it.
type RepositoryRecord struct {
	URL      string
	Ints     map[FieldKey]int64     // set-once values and summed counters
	Flags    map[FieldKey]bool      // OR-accumulated presence flags
	Series   map[FieldKey][]float64 // append-only numeric sequences
	Packages []PackageRecord        // append-only
}

// NewRepositoryRecord returns a record with only its URL populated.
func NewRepositoryRecord(url string) RepositoryRecord {
	return RepositoryRecord{
		URL:    url,
		Ints:   map[FieldKey]int64{},
		Flags:  map[FieldKey]bool{},
		Series: map[FieldKey][]float64{},
	}
}

// Int returns an integer field and whether it is present.
func (r RepositoryRecord) Int(key FieldKey) (int64, bool) {
	v, ok := r.Ints[key]
	return v, ok
}

// Flag returns a boolean field and whether it is present.
func (r RepositoryRecord) Flag(key FieldKey) (bool, bool) {
	v, ok := r.Flags[key]
	return v, ok
}

// Sequence returns a numeric sequence field and whether it is present.
func (r RepositoryRecord) Sequence(key FieldKey) ([]float64, bool) {
	v, ok := r.Series[key]
	return v, ok
}

// Package returns the first package with the given name.
func (r RepositoryRecord) Package(name string) (PackageRecord, bool) {
	for _, p := range r.Packages {
		if p.Name == name {
			return p, true
		}
	}
	return PackageRecord{}, false
}

// Clone returns a deep copy of the record.
func (r RepositoryRecord) Clone() RepositoryRecord {
	out := RepositoryRecord{
		URL:    r.URL,
		Ints:   maps.Clone(r.Ints),
		Flags:  maps.Clone(r.Flags),
		Series: make(map[FieldKey][]float64, len(r.Series)),
	}
	if out.Ints == nil {
		out.Ints = map[FieldKey]int64{}
	}
	if out.Flags == nil {
		out.Flags = map[FieldKey]bool{}
	}
	for k, v := range r.Series {
		out.Series[k] = slices.Clone(v)
	}
	if r.Packages != nil {
		out.Packages = make([]PackageRecord, len(r.Packages))
		for i, p := range r.Packages {
			out.Packages[i] = PackageRecord{Name: p.Name, Dependencies: slices.Clone(p.Dependencies)}
		}
	}
	return out
}

// FieldKeys returns the sorted keys of every present optional field.
func (r RepositoryRecord) FieldKeys() []FieldKey {
	keys := make([]FieldKey, 0, len(r.Ints)+len(r.Flags)+len(r.Series))
	keys = slices.AppendSeq(keys, maps.Keys(r.Ints))
	keys = slices.AppendSeq(keys, maps.Keys(r.Flags))
	keys = slices.AppendSeq(keys, maps.Keys(r.Series))
	slices.Sort(keys)
	return keys
}
