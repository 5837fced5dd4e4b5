package core

import "strings"

// NormalizeFunc maps a key to its comparison form.
type NormalizeFunc func(string) string

// DefaultNormalize folds case and trims surrounding whitespace.
func DefaultNormalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// KeySet is a set of normalized keys.
type KeySet struct {
	normalize NormalizeFunc
	keys      map[string]struct{}
}

// NewKeySet creates a set using normalize, or DefaultNormalize when nil.
func NewKeySet(normalize NormalizeFunc, values ...string) *KeySet {
	if normalize == nil {
		normalize = DefaultNormalize
	}
	ks := &KeySet{normalize: normalize, keys: make(map[string]struct{}, len(values))}
	for _, v := range values {
		ks.Add(v)
	}
	return ks
}

// Add inserts v. Blank values are ignored.
func (ks *KeySet) Add(v string) {
	n := ks.normalize(v)
	if n == "" {
		return
	}
	ks.keys[n] = struct{}{}
}

// Has reports whether v is in the set after normalization.
func (ks *KeySet) Has(v string) bool {
	if ks == nil {
		return false
	}
	_, ok := ks.keys[ks.normalize(v)]
	return ok
}

// Len returns the number of distinct keys.
func (ks *KeySet) Len() int {
	if ks == nil {
		return 0
	}
	return len(ks.keys)
}

// DuplicateVerdict says which set, if any, already holds a key.
type DuplicateVerdict int

const (
	NotDuplicate DuplicateVerdict = iota
	DuplicateOfStore
	DuplicateOfBatch
)

// IsDuplicate checks value against the persisted keys first and then the
// keys accepted so far in the current batch. Each set compares with its own
// normalizer. A value that normalizes to "" is never a duplicate since
// KeySet does not store blanks; callers reject it as a missing field.
func IsDuplicate(value string, persisted, batch *KeySet) DuplicateVerdict {
	if persisted.Has(value) {
		return DuplicateOfStore
	}
	if batch.Has(value) {
		return DuplicateOfBatch
	}
	return NotDuplicate
}
