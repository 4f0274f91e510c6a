package spec

import (
	"fmt"

	"github.com/cgast/idemverify/pkg/verify"
)

// Plan validates s and turns each declared resource into an expectation, in
// declaration order.
func Plan(s VerificationSpec) ([]verify.Expectation, error) {
	vr := ValidateSpec(s)
	if !vr.Valid() {
		return nil, fmt.Errorf("invalid spec %q: %s", s.Meta.Name, vr.Error())
	}

	exps := make([]verify.Expectation, 0, len(s.Resources))
	for _, r := range s.Resources {
		exp := verify.Expect(r.Ref())
		for _, x := range r.Expect {
			exp = exp.With(x.Attribute, x.Value)
		}
		exps = append(exps, exp)
	}
	return exps, nil
}

// PlanAll plans several documents into one list, keeping file order and
// declaration order within each file.
func PlanAll(docs []Document) ([]verify.Expectation, error) {
	var exps []verify.Expectation
	for _, d := range docs {
		e, err := Plan(d.Spec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Path, err)
		}
		exps = append(exps, e...)
	}
	return exps, nil
}
