// Package cache implements the query cache coordinator: a read-through
// cache keyed by (resource kind, canonical filter tuple) with per-kind
// staleness windows, request de-duplication, predicate invalidation and
// garbage collection of untouched entries.
package cache

import (
	"sort"
	"strings"

	"github.com/upstreamlabs/fieldsync/internal/transport"
)

// allowedFilterFields lists, per resource kind, the filter dimensions
// accepted at the boundary. Unknown fields are rejected.
var allowedFilterFields = map[transport.Kind][]string{
	transport.KindNodes:              {"stream", "asset", "unit", "view"},
	transport.KindSummary:            {"timeframe", "asset", "customRange"},
	transport.KindAssets:             {"period", "includeUnits"},
	transport.KindGapDrivers:         {"asset", "limit"},
	transport.KindOptimisations:      {"stream", "asset", "status", "priority"},
	transport.KindAlerts:             {"role", "priority", "status", "asset", "stream"},
	transport.KindTerminalOperations: {"terminalId"},
}

// NewFilters canonicalizes a raw filter set for a resource kind. Fields
// with empty values are dropped; unknown fields are a validation error.
func NewFilters(kind transport.Kind, raw map[string]string) (transport.Filters, error) {
	allowed, ok := allowedFilterFields[kind]
	if !ok {
		return nil, &transport.ValidationError{Field: "kind", Msg: "unknown resource kind " + string(kind)}
	}

	out := make(transport.Filters, len(raw))
	for field, value := range raw {
		if value == "" {
			continue
		}
		found := false
		for _, a := range allowed {
			if a == field {
				found = true
				break
			}
		}
		if !found {
			return nil, &transport.ValidationError{Field: field, Msg: "unknown filter field for kind " + string(kind)}
		}
		out[field] = value
	}
	return out, nil
}

// Key addresses one cache entry.
type Key struct {
	Kind    transport.Kind
	Filters transport.Filters
}

// NewKey builds a key from a raw filter set, rejecting unknown fields.
func NewKey(kind transport.Kind, raw map[string]string) (Key, error) {
	filters, err := NewFilters(kind, raw)
	if err != nil {
		return Key{}, err
	}
	return Key{Kind: kind, Filters: filters}, nil
}

// String is the deterministic serialization used as the cache map key:
// the kind followed by the filters sorted by field name. Filter order in
// the source map never matters.
func (k Key) String() string {
	if len(k.Filters) == 0 {
		return string(k.Kind)
	}
	fields := make([]string, 0, len(k.Filters))
	for field := range k.Filters {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString(string(k.Kind))
	b.WriteByte('?')
	for i, field := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(field)
		b.WriteByte('=')
		b.WriteString(k.Filters[field])
	}
	return b.String()
}
