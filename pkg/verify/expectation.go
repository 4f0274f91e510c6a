package verify

import "github.com/cgast/idemverify/pkg/resource"

// Pair is one expected attribute value.
type Pair struct {
	Attribute string         `json:"attribute"`
	Expected  resource.Value `json:"expected"`
}

// Expectation is an ordered list of expected attribute values for one
// resource. It is immutable: every builder call returns a new Expectation
// and never writes into a slice another Expectation can see.
type Expectation struct {
	Ref   resource.Ref
	pairs []Pair
}

// Expect starts an expectation for ref.
func Expect(ref resource.Ref) Expectation {
	return Expectation{Ref: ref}
}

// With returns a copy of e with attribute expected to equal value. value is
// converted with resource.ValueOf.
func (e Expectation) With(attribute string, value any) Expectation {
	pairs := make([]Pair, len(e.pairs), len(e.pairs)+1)
	copy(pairs, e.pairs)
	pairs = append(pairs, Pair{Attribute: attribute, Expected: resource.ValueOf(value)})
	return Expectation{Ref: e.Ref, pairs: pairs}
}

// And is With, for chains that read as sentences.
func (e Expectation) And(attribute string, value any) Expectation {
	return e.With(attribute, value)
}

// MustHave is With.
func (e Expectation) MustHave(attribute string, value any) Expectation {
	return e.With(attribute, value)
}

// Pairs returns the expected values in declaration order.
func (e Expectation) Pairs() []Pair {
	out := make([]Pair, len(e.pairs))
	copy(out, e.pairs)
	return out
}

// Len returns the number of expected attributes.
func (e Expectation) Len() int { return len(e.pairs) }

// Attributes returns the expected attribute names in declaration order.
func (e Expectation) Attributes() []string {
	out := make([]string, len(e.pairs))
	for i, p := range e.pairs {
		out[i] = p.Attribute
	}
	return out
}
