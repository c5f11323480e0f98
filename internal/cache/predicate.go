package cache

import (
	"strings"

	"github.com/upstreamlabs/fieldsync/internal/transport"
)

// Predicate selects cache entries by key for scoped invalidation and
// the mutation snapshot/apply protocol.
type Predicate func(Key) bool

// KindIs matches entries of any of the given kinds.
func KindIs(kinds ...transport.Kind) Predicate {
	return func(k Key) bool {
		for _, kind := range kinds {
			if k.Kind == kind {
				return true
			}
		}
		return false
	}
}

// KindPrefix matches entries whose kind starts with the given prefix.
func KindPrefix(prefix string) Predicate {
	return func(k Key) bool {
		return strings.HasPrefix(string(k.Kind), prefix)
	}
}

// FilterEquals matches entries whose filter tuple carries field=value.
// Entries without the field do not match.
func FilterEquals(field, value string) Predicate {
	return func(k Key) bool {
		return k.Filters[field] == value
	}
}

// FilterMatches matches entries whose filter tuple either omits the
// field or carries field=value. Used for event-scoped invalidation: an
// unscoped collection still contains the affected entity, while a
// collection scoped to a different value does not.
func FilterMatches(field, value string) Predicate {
	return func(k Key) bool {
		v, ok := k.Filters[field]
		return !ok || v == value
	}
}

// And matches entries satisfying every predicate.
func And(preds ...Predicate) Predicate {
	return func(k Key) bool {
		for _, p := range preds {
			if !p(k) {
				return false
			}
		}
		return true
	}
}

// Or matches entries satisfying any predicate.
func Or(preds ...Predicate) Predicate {
	return func(k Key) bool {
		for _, p := range preds {
			if p(k) {
				return true
			}
		}
		return false
	}
}
