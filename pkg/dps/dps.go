package dps

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
)

// Errors returned by typed accessors.
var (
	ErrMissing   = errors.New("data point not present")
	ErrWrongType = errors.New("data point has unexpected type")
)

// Key identifies a data point. Keys are decimal DP numbers in string form.
type Key string

// KeyOf returns the key for a numeric DP identifier.
func KeyOf(n int) Key {
	return Key(strconv.Itoa(n))
}

// Number returns the numeric DP identifier, or -1 if the key is not numeric.
func (k Key) Number() int {
	n, err := strconv.Atoi(string(k))
	if err != nil {
		return -1
	}
	return n
}

// Value is a raw DP value: bool, a numeric type or string.
type Value = any

// Update is one incremental payload of changed data points.
type Update map[Key]Value

// Clone returns a detached copy of the update.
func (u Update) Clone() Update {
	if u == nil {
		return nil
	}
	return maps.Clone(u)
}

// Keys returns the keys of the update in ascending DP order.
func (u Update) Keys() []Key {
	return sortedKeys(u)
}

// Snapshot is the accumulated last known value of every DP.
// A Snapshot is not safe for concurrent use; its owner serialises access.
type Snapshot struct {
	values map[Key]Value
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() Snapshot {
	return Snapshot{values: make(map[Key]Value)}
}

// Merge applies u to the snapshot. Every key in u overwrites the stored
// value; keys not mentioned in u are left untouched.
func (s *Snapshot) Merge(u Update) {
	if s.values == nil {
		s.values = make(map[Key]Value, len(u))
	}
	for k, v := range u {
		s.values[k] = v
	}
}

// Reset removes every value from the snapshot.
func (s *Snapshot) Reset() {
	clear(s.values)
}

// Clone returns a detached copy.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{values: maps.Clone(s.values)}
}

// Len returns the number of known data points.
func (s Snapshot) Len() int {
	return len(s.values)
}

// Keys returns the known keys in ascending DP order.
func (s Snapshot) Keys() []Key {
	return sortedKeys(s.values)
}

// Get returns the raw value for k.
func (s Snapshot) Get(k Key) (Value, bool) {
	v, ok := s.values[k]
	return v, ok
}

// Update returns the full snapshot as an update.
func (s Snapshot) Update() Update {
	return Update(maps.Clone(s.values))
}

// Bool returns the value of k as a bool.
func (s Snapshot) Bool(k Key) (bool, error) {
	v, ok := s.values[k]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrMissing, k)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s is %T", ErrWrongType, k, v)
	}
	return b, nil
}

// String returns the value of k as a string.
func (s Snapshot) String(k Key) (string, error) {
	v, ok := s.values[k]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissing, k)
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T", ErrWrongType, k, v)
	}
	return str, nil
}

// Int returns the value of k as an int. Any numeric representation is accepted.
func (s Snapshot) Int(k Key) (int, error) {
	v, ok := s.values[k]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissing, k)
	}
	n, ok := AsInt(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s is %T", ErrWrongType, k, v)
	}
	return n, nil
}

// Float returns the value of k as a float64. Any numeric representation is accepted.
func (s Snapshot) Float(k Key) (float64, error) {
	v, ok := s.values[k]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissing, k)
	}
	f, ok := AsFloat(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s is %T", ErrWrongType, k, v)
	}
	return f, nil
}

// AsInt converts a decoded numeric value to int, rounding floats.
func AsInt(v Value) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float32:
		return int(math.Round(float64(n))), true
	case float64:
		return int(math.Round(n)), true
	default:
		return 0, false
	}
}

// AsFloat converts a decoded numeric value to float64.
func AsFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		i, ok := AsInt(v)
		return float64(i), ok
	}
}

func sortedKeys[V any](m map[Key]V) []Key {
	keys := slices.Collect(maps.Keys(m))
	slices.SortFunc(keys, func(a, b Key) int {
		na, nb := a.Number(), b.Number()
		if na != nb {
			return na - nb
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})
	return keys
}
