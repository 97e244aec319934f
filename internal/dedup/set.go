// Package dedup tracks which image fingerprints a run has already accepted.
package dedup

import (
	"sync"

	"pixf/internal/imaging"
)

// Set is the fingerprint set of one pipeline run. It only grows, and it is
// safe for concurrent use.
type Set struct {
	mu          sync.Mutex
	seen        map[string]struct{}
	kept        []imaging.Fingerprint
	maxDistance int
}

// NewSet returns an empty set. Fingerprints within maxDistance bits of an
// accepted one count as already present; 0 requires an exact match.
func NewSet(maxDistance int) *Set {
	return &Set{
		seen:        make(map[string]struct{}),
		maxDistance: maxDistance,
	}
}

// Claim inserts fp unless it (or a near match) is already present. It
// reports whether the caller won the fingerprint. The lookup and the insert
// happen under one lock, so of two racing callers with the same fingerprint
// exactly one gets true.
func (s *Set) Claim(fp imaging.Fingerprint) bool {
	key := fp.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; ok {
		return false
	}
	if s.maxDistance > 0 {
		for _, k := range s.kept {
			if d, err := fp.Distance(k); err == nil && d <= s.maxDistance {
				return false
			}
		}
	}

	s.seen[key] = struct{}{}
	if s.maxDistance > 0 {
		s.kept = append(s.kept, fp)
	}
	return true
}

// Len is the number of distinct fingerprints accepted so far.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
