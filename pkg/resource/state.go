package resource

import "sort"

// Attributes are raw attribute values as reported by a resolver, before
// normalization. A nil value means the attribute is unset.
type Attributes map[string]any

// State is the normalized actual state of one resource. It is produced
// fresh by each inspection and never cached.
type State map[string]Value

// Get returns the attribute value, or none when it is absent.
func (s State) Get(attribute string) Value {
	if v, ok := s[attribute]; ok {
		return v
	}
	return None()
}

// Names returns the reported attribute names in sorted order.
func (s State) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
