package dedup

import (
	"strings"
	"sync"
)

// Registry is the set of fingerprints accepted during one run. It is shared
// by every worker; membership check and insert happen under one lock.
type Registry struct {
	mu       sync.Mutex
	accepted map[Fingerprint]struct{}
	// short hashes of files that were already on disk when the run started
	seeded  map[string]struct{}
	matched int
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		accepted: make(map[Fingerprint]struct{}),
		seeded:   make(map[string]struct{}),
	}
}

// TryAccept records fp and returns true if it has never been seen in this run.
// Every later call with the same fingerprint returns false.
func (r *Registry) TryAccept(fp Fingerprint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accepted[fp]; ok {
		return false
	}
	r.accepted[fp] = struct{}{}

	if _, onDisk := r.seeded[fp.Short()]; onDisk {
		r.matched++
		return false
	}
	return true
}

// Contains reports whether fp has been accepted or matches a seeded short hash
func (r *Registry) Contains(fp Fingerprint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accepted[fp]; ok {
		return true
	}
	_, ok := r.seeded[fp.Short()]
	return ok
}

// SeedPrefix marks a short hash found on disk as already present. Values that
// are not ShortLen lowercase hex characters are ignored.
func (r *Registry) SeedPrefix(short string) bool {
	short = strings.ToLower(short)
	if !isShortHex(short) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.seeded[short] = struct{}{}
	return true
}

// Len returns accepted fingerprints plus seeded short hashes not yet matched
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.accepted) + len(r.seeded) - r.matched
}

func isShortHex(s string) bool {
	if len(s) != ShortLen {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
