// =============================================================================
// FILE: internal/bencode/bencode.go
// ROLE: Wire Codec Foundation — The Structured-Data Value Model
// =============================================================================
//
// SYSTEM CONTEXT
// ==============
// Every message exchanged with a cjdns daemon is a single bencoded dictionary.
// This package defines the value model (Dict, List, Int, String) and the
// bit-exact wire codec the admin client uses for both directions. Interop with
// running daemons is the hard requirement here: the daemon recomputes hashes
// over the exact bytes we send, so the encoder must be deterministic down to
// key ordering.
//
// WIRE FORMAT
// ===========
//
//	Int i:     'i' <ascii decimal, no leading zero, optional '-'> 'e'
//	String b:  <ascii decimal of len> ':' <bytes>
//	List:      'l' <values> 'e'
//	Dict:      'd' <key-string value>* 'e'   keys ascending byte-lex order
//
// DESIGN DECISIONS
// ================
// 1. ORDERED DICT: Dict is a sorted slice of key/value pairs, not a Go map.
//    Encoding must emit keys in byte-lexicographic order and the daemon's
//    hash commitment depends on it, so ordering is a property of the type
//    rather than a sort pass inside the encoder.
//
// 2. OPAQUE STRINGS: String is a []byte, not a Go string requirement. Admin
//    responses carry raw binary (route labels, keys) that is not UTF-8.
//    Dict keys are Go strings because Go string comparison is bytewise,
//    which is exactly the ordering the wire format wants.
//
// 3. NO REFLECTION: The ecosystem bencode packages marshal Go structs via
//    reflection and model dicts as map[string]interface{}. Neither gives us
//    ordered dicts, bounded encodes, or the stable hash-slot rewrite the
//    auth handshake needs, so the codec is written out by hand.
// =============================================================================

package bencode

import "sort"

// Value is the union of the four bencode value kinds: Int, String, List
// and *Dict.
type Value interface {
	isValue()
}

// Int is a signed 64-bit integer value.
type Int int64

// String is an opaque byte string. It is not required to be UTF-8.
type String []byte

// List is an ordered sequence of values.
type List []Value

// Dict is an ordered mapping of string keys to values. Keys are kept in
// ascending byte-lexicographic order at all times; Set on an existing key
// replaces the value in place, so duplicates cannot occur.
type Dict struct {
	entries []entry
}

type entry struct {
	key string
	val Value
}

func (Int) isValue()    {}
func (String) isValue() {}
func (List) isValue()   {}
func (*Dict) isValue()  {}

// NewDict returns an empty dictionary.
func NewDict() *Dict {
	return &Dict{}
}

// Set inserts or replaces the value for key, keeping the entries sorted.
func (d *Dict) Set(key string, v Value) *Dict {
	i := sort.Search(len(d.entries), func(i int) bool { return d.entries[i].key >= key })
	if i < len(d.entries) && d.entries[i].key == key {
		d.entries[i].val = v
		return d
	}
	d.entries = append(d.entries, entry{})
	copy(d.entries[i+1:], d.entries[i:])
	d.entries[i] = entry{key: key, val: v}
	return d
}

// Get returns the value for key.
func (d *Dict) Get(key string) (Value, bool) {
	i := sort.Search(len(d.entries), func(i int) bool { return d.entries[i].key >= key })
	if i < len(d.entries) && d.entries[i].key == key {
		return d.entries[i].val, true
	}
	return nil, false
}

// GetString returns the String value for key, or false if the key is absent
// or holds a different kind.
func (d *Dict) GetString(key string) (String, bool) {
	v, ok := d.Get(key)
	if !ok {
		return nil, false
	}
	s, ok := v.(String)
	return s, ok
}

// GetInt returns the Int value for key.
func (d *Dict) GetInt(key string) (Int, bool) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	n, ok := v.(Int)
	return n, ok
}

// GetDict returns the nested Dict value for key.
func (d *Dict) GetDict(key string) (*Dict, bool) {
	v, ok := d.Get(key)
	if !ok {
		return nil, false
	}
	sub, ok := v.(*Dict)
	return sub, ok
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	return len(d.entries)
}

// Keys returns the keys in ascending byte-lexicographic order.
func (d *Dict) Keys() []string {
	keys := make([]string, len(d.entries))
	for i, e := range d.entries {
		keys[i] = e.key
	}
	return keys
}

// Walk calls fn for each entry in key order, stopping early if fn returns
// false.
func (d *Dict) Walk(fn func(key string, v Value) bool) {
	for _, e := range d.entries {
		if !fn(e.key, e.val) {
			return
		}
	}
}

// Clone returns a deep copy of the dictionary. The admin client retains the
// caller's payload across the cookie handshake and must be free to add txid,
// cookie and hash entries without mutating the caller's value.
func (d *Dict) Clone() *Dict {
	if d == nil {
		return NewDict()
	}
	out := &Dict{entries: make([]entry, len(d.entries))}
	for i, e := range d.entries {
		out.entries[i] = entry{key: e.key, val: cloneValue(e.val)}
	}
	return out
}

func cloneValue(v Value) Value {
	switch v := v.(type) {
	case String:
		c := make(String, len(v))
		copy(c, v)
		return c
	case List:
		c := make(List, len(v))
		for i, item := range v {
			c[i] = cloneValue(item)
		}
		return c
	case *Dict:
		return v.Clone()
	default:
		return v
	}
}

// Equal reports whether two dictionaries hold the same entries.
func (d *Dict) Equal(other *Dict) bool {
	if d.Len() != other.Len() {
		return false
	}
	for i, e := range d.entries {
		o := other.entries[i]
		if e.key != o.key || !valueEqual(e.val, o.val) {
			return false
		}
	}
	return true
}

func valueEqual(a, b Value) bool {
	switch a := a.(type) {
	case Int:
		n, ok := b.(Int)
		return ok && a == n
	case String:
		s, ok := b.(String)
		return ok && string(a) == string(s)
	case List:
		l, ok := b.(List)
		if !ok || len(a) != len(l) {
			return false
		}
		for i := range a {
			if !valueEqual(a[i], l[i]) {
				return false
			}
		}
		return true
	case *Dict:
		sub, ok := b.(*Dict)
		return ok && a.Equal(sub)
	default:
		return false
	}
}
