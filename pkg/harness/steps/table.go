package steps

import (
	"fmt"
	"sort"
	"strings"
)

// Row is one key/value row of a step data table.
type Row struct {
	Key   string
	Value string
}

// Table is an expected-data table: ordered key/value rows.
type Table []Row

// Get returns the value of key.
func (t Table) Get(key string) (string, bool) {
	for _, r := range t {
		if r.Key == key {
			return r.Value, true
		}
	}
	return "", false
}

// Keys returns the keys in row order.
func (t Table) Keys() []string {
	keys := make([]string, len(t))
	for i, r := range t {
		keys[i] = r.Key
	}
	return keys
}

// Set overrides key, appending it when absent.
func (t Table) Set(key, value string) Table {
	for i, r := range t {
		if r.Key == key {
			out := append(Table(nil), t...)
			out[i].Value = value
			return out
		}
	}
	return append(append(Table(nil), t...), Row{Key: key, Value: value})
}

// Mode selects how a supplied table is combined with the defaults.
type Mode string

const (
	// Default uses the canonical table unchanged.
	Default Mode = "default"
	// Following overlays the supplied rows on the defaults.
	Following Mode = "following"
	// Only uses the supplied rows verbatim.
	Only Mode = "only"
)

// InvalidParameterError is returned when a supplied table names keys the
// canonical table does not have.
type InvalidParameterError struct {
	Invalid []string // offending keys, sorted
	Valid   []string // canonical keys, in table order
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter/key name - %s (valid keys: %s)",
		strings.Join(e.Invalid, ", "), strings.Join(e.Valid, ", "))
}

// Resolve combines the canonical defaults with a supplied table. Every
// supplied key must exist in defaults; otherwise an *InvalidParameterError
// lists the offending keys. Following keeps the defaults' row order.
func Resolve(defaults, supplied Table, mode Mode) (Table, error) {
	if mode == Default {
		return defaults, nil
	}

	var invalid []string
	for _, r := range supplied {
		if _, ok := defaults.Get(r.Key); !ok {
			invalid = append(invalid, r.Key)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return nil, &InvalidParameterError{Invalid: invalid, Valid: defaults.Keys()}
	}

	switch mode {
	case Only:
		return supplied, nil
	case Following:
		out := append(Table(nil), defaults...)
		for _, r := range supplied {
			out = out.Set(r.Key, r.Value)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown table mode %q", mode)
}
