package r8econf

import "iter"

// Attributes is an ordered string map. The position of a key is fixed by its
// first insertion; later sets only replace the value. The zero value is an
// empty, ready to use map.
type Attributes struct {
	values map[string]string
	keys   []string
}

// NewAttributes builds Attributes from alternating key/value pairs. A
// trailing key without value is stored with an empty value.
func NewAttributes(pairs ...string) Attributes {
	var a Attributes

	for i := 0; i < len(pairs); i += 2 {
		v := ""
		if i+1 < len(pairs) {
			v = pairs[i+1]
		}

		a.Set(pairs[i], v)
	}

	return a
}

// Set stores value under key.
func (a *Attributes) Set(key, value string) {
	if a.values == nil {
		a.values = make(map[string]string)
	}

	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}

	a.values[key] = value
}

// Lookup returns the value stored under key and whether it exists.
func (a Attributes) Lookup(key string) (string, bool) {
	v, ok := a.values[key]

	return v, ok
}

// Get returns the value stored under key, or "".
func (a Attributes) Get(key string) string {
	return a.values[key]
}

// Len returns the number of keys.
func (a Attributes) Len() int { return len(a.keys) }

// Keys returns the keys in insertion order.
func (a Attributes) Keys() []string {
	out := make([]string, len(a.keys))
	copy(out, a.keys)

	return out
}

// All iterates over key/value pairs in insertion order.
func (a Attributes) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, k := range a.keys {
			if !yield(k, a.values[k]) {
				return
			}
		}
	}
}

// Map returns an unordered copy.
func (a Attributes) Map() map[string]string {
	out := make(map[string]string, len(a.keys))
	for k, v := range a.All() {
		out[k] = v
	}

	return out
}

// Clone returns a deep copy.
func (a Attributes) Clone() Attributes {
	var out Attributes
	for k, v := range a.All() {
		out.Set(k, v)
	}

	return out
}
