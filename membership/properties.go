package membership

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Properties is a string to string map that remembers insertion order. It is
// the extension point of the member record, so the order is kept stable
// through encoding. The zero value is an empty bag ready to use.
//
// Read methods and Delete accept a nil receiver and treat it as an empty bag.
// Set needs a non-nil bag.
type Properties struct {
	m *orderedmap.OrderedMap[string, string]
}

// NewProperties creates a bag from alternating keys and values. A trailing
// key without a value is ignored.
func NewProperties(kv ...string) *Properties {
	p := &Properties{}

	for i := 0; i+1 < len(kv); i += 2 {
		p.Set(kv[i], kv[i+1])
	}

	return p
}

func (p *Properties) Get(key string) (string, bool) {
	if p == nil || p.m == nil {
		return "", false
	}

	return p.m.Get(key)
}

// Set stores the value. Overwriting a key keeps its original position.
func (p *Properties) Set(key, value string) {
	if p.m == nil {
		p.m = orderedmap.New[string, string]()
	}

	p.m.Set(key, value)
}

func (p *Properties) Delete(key string) {
	if p == nil || p.m == nil {
		return
	}

	p.m.Delete(key)
}

func (p *Properties) Len() int {
	if p == nil || p.m == nil {
		return 0
	}

	return p.m.Len()
}

// Keys returns the keys in insertion order.
func (p *Properties) Keys() []string {
	if p == nil {
		return nil
	}

	keys := make([]string, 0, p.Len())

	p.Range(func(k, _ string) bool {
		keys = append(keys, k)
		return true
	})

	return keys
}

// Range calls f for each entry in insertion order until f returns false.
func (p *Properties) Range(f func(key, value string) bool) {
	if p == nil || p.m == nil {
		return
	}

	for pair := p.m.Oldest(); pair != nil; pair = pair.Next() {
		if !f(pair.Key, pair.Value) {
			return
		}
	}
}

func (p *Properties) Clone() *Properties {
	clone := &Properties{}

	p.Range(func(k, v string) bool {
		clone.Set(k, v)
		return true
	})

	return clone
}

// Equal reports whether both bags hold the same entries in the same order.
func (p *Properties) Equal(other *Properties) bool {
	if p.Len() != other.Len() || p.Len() == 0 {
		return p.Len() == other.Len()
	}

	a, b := p.m.Oldest(), other.m.Oldest()

	for ; a != nil && b != nil; a, b = a.Next(), b.Next() {
		if a.Key != b.Key || a.Value != b.Value {
			return false
		}
	}

	return a == nil && b == nil
}
