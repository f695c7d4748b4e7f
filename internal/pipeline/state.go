// Package pipeline runs ordered text-generation stages over a run-scoped,
// append-only state and reports progress as a sequence of events.
package pipeline

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
)

var (
	ErrKeyExists  = errors.New("state key already written")
	ErrMissingKey = errors.New("required state key missing")
)

// State is the keyed text store threaded through one run. Keys are written
// once and kept in insertion order. A State belongs to a single run and is
// not safe for concurrent use.
type State struct {
	keys   []string
	values map[string]string
}

func NewState() *State {
	return &State{values: map[string]string{}}
}

// Put appends key. Writing a key twice returns ErrKeyExists and leaves the
// first value in place.
func (s *State) Put(key, value string) error {
	if key == "" {
		return fmt.Errorf("state key is empty")
	}
	if _, ok := s.values[key]; ok {
		return fmt.Errorf("%w: %s", ErrKeyExists, key)
	}
	s.keys = append(s.keys, key)
	s.values[key] = value
	return nil
}

func (s *State) Get(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.values[key]
	return v, ok
}

func (s *State) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Keys returns the written keys in insertion order.
func (s *State) Keys() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.keys...)
}

func (s *State) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Snapshot returns a copy of the stored values.
func (s *State) Snapshot() map[string]string {
	out := make(map[string]string, s.Len())
	if s == nil {
		return out
	}
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Digest fingerprints the ordered key/value pairs with BLAKE3. Two states
// with equal keys, order, and values share a digest.
func (s *State) Digest() string {
	h := blake3.New()
	var lenBuf [8]byte
	write := func(b string) {
		n := uint64(len(b))
		for i := range lenBuf {
			lenBuf[i] = byte(n >> (8 * i))
		}
		_, _ = h.Write(lenBuf[:])
		_, _ = h.Write([]byte(b))
	}
	for _, k := range s.Keys() {
		write(k)
		write(s.values[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}
