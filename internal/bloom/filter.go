// Package bloom provides the pod-local seen-URL probabilistic set used to
// suppress re-admission of previously admitted URLs within a run. It is kept
// in-process per pod (not a store round-trip per test/add) and, on resume,
// is restored from a single serialized blob held at the store's seen:bloom key.
package bloom

import (
	"bytes"

	"github.com/bits-and-blooms/bloom/v3"
)

// Filter wraps a Bloom filter over normalized URL strings.
type Filter struct {
	f *bloom.BloomFilter
}

// New creates a filter sized for capacity expected items at the given false
// positive rate.
func New(capacity uint, falsePositiveRate float64) *Filter {
	return &Filter{f: bloom.NewWithEstimates(capacity, falsePositiveRate)}
}

// Add admits a URL into the set.
func (f *Filter) Add(url string) {
	f.f.AddString(url)
}

// Test reports whether url may already be in the set. A true result may be a
// false positive; a false result is never a false negative.
func (f *Filter) Test(url string) bool {
	return f.f.TestString(url)
}

// Marshal serializes the filter for persistence at the store's seen:bloom key.
func (f *Filter) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := f.f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal restores a filter previously produced by Marshal, used when
// resume=true and the pod's seen:bloom key already holds state.
func Unmarshal(data []byte) (*Filter, error) {
	f := &bloom.BloomFilter{}
	if _, err := f.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return &Filter{f: f}, nil
}
