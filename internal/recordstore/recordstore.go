// Package recordstore implements the shared aggregation store keyed by canonical remote URL.
//
// Records are only reachable through contract.RecordWriter, whose operations are
// set-if-absent initialization and additive accumulation. Each record carries its
// own lock so that analyzers working on different repositories never contend.
package recordstore

import (
	"slices"
	"sync"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/huangsam/rosmap/schema"
)

// Store holds one record per URL.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record
}

var _ contract.AggregationStore = &Store{} // Compile-time check

// New returns an empty store.
func New() *Store {
	return &Store{records: make(map[string]*record)}
}

// Record implements the AggregationStore interface.
func (s *Store) Record(url string) contract.RecordWriter {
	s.mu.RLock()
	r, ok := s.records[url]
	s.mu.RUnlock()
	if ok {
		return r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok = s.records[url]; ok {
		return r
	}
	r = &record{data: schema.NewRepositoryRecord(url)}
	s.records[url] = r
	return r
}

// Lookup implements the AggregationStore interface.
func (s *Store) Lookup(url string) (contract.RecordWriter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[url]
	if !ok {
		return nil, false
	}
	return r, true
}

// URLs implements the AggregationStore interface.
func (s *Store) URLs() []string {
	s.mu.RLock()
	urls := make([]string, 0, len(s.records))
	for url := range s.records {
		urls = append(urls, url)
	}
	s.mu.RUnlock()
	slices.Sort(urls)
	return urls
}

// Len implements the AggregationStore interface.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Snapshot implements the AggregationStore interface.
func (s *Store) Snapshot() []schema.RepositoryRecord {
	urls := s.URLs()
	out := make([]schema.RepositoryRecord, 0, len(urls))
	for _, url := range urls {
		if r, ok := s.Lookup(url); ok {
			out = append(out, r.Snapshot())
		}
	}
	return out
}

// record guards one RepositoryRecord.
type record struct {
	mu   sync.Mutex
	data schema.RepositoryRecord
}

var _ contract.RecordWriter = &record{} // Compile-time check

func (r *record) URL() string {
	return r.data.URL
}

func (r *record) InitInt(key schema.FieldKey, value int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data.Ints[key]; ok {
		return false
	}
	r.data.Ints[key] = value
	return true
}

func (r *record) InitFlag(key schema.FieldKey, value bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data.Flags[key]; ok {
		return false
	}
	r.data.Flags[key] = value
	return true
}

func (r *record) InitSeries(key schema.FieldKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data.Series[key]; ok {
		return false
	}
	r.data.Series[key] = []float64{}
	return true
}

func (r *record) AddInt(key schema.FieldKey, delta int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.Ints[key] += delta
}

func (r *record) OrFlag(key schema.FieldKey, value bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.Flags[key] = r.data.Flags[key] || value
}

func (r *record) AppendSeries(key schema.FieldKey, values ...float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data.Series[key] = append(r.data.Series[key], values...)
}

func (r *record) AppendPackages(pkgs ...schema.PackageRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pkgs {
		r.data.Packages = append(r.data.Packages, schema.PackageRecord{
			Name:         p.Name,
			Dependencies: slices.Clone(p.Dependencies),
		})
	}
}

func (r *record) Snapshot() schema.RepositoryRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data.Clone()
}

// Load seeds a store from previously serialized records, such as the stored
// local checkpoint that a resumed run enriches. Fields are merged through the
// same accumulation rules used by analyzers.
func Load(records []schema.RepositoryRecord) *Store {
	s := New()
	for _, rec := range records {
		w := s.Record(rec.URL)
		for k, v := range rec.Ints {
			w.InitInt(k, v)
		}
		for k, v := range rec.Flags {
			w.OrFlag(k, v)
		}
		for k, v := range rec.Series {
			w.InitSeries(k)
			w.AppendSeries(k, v...)
		}
		w.AppendPackages(rec.Packages...)
	}
	return s
}
