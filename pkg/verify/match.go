package verify

import (
	"errors"
	"fmt"

	"github.com/cgast/idemverify/pkg/resource"
)

// Outcome is the result of comparing one attribute.
type Outcome string

const (
	Pass Outcome = "pass"
	Fail Outcome = "fail"
)

// MatchResult is the comparison of one expected attribute with the actual
// state. Code and Cause are set when the resource could not be inspected.
type MatchResult struct {
	Ref       resource.Ref   `json:"ref"`
	Attribute string         `json:"attribute"`
	Expected  resource.Value `json:"expected"`
	Actual    resource.Value `json:"actual"`
	Outcome   Outcome        `json:"outcome"`
	Code      resource.Code  `json:"code,omitempty"`
	Cause     string         `json:"cause,omitempty"`
}

// Passed reports whether the attribute matched.
func (r MatchResult) Passed() bool { return r.Outcome == Pass }

// Message is the fixed-shape failure message.
func (r MatchResult) Message() string {
	return fmt.Sprintf("The %s does not have the expected %s", r.Ref.Kind, r.Attribute)
}

// Detail is a one-line description naming the resource, the attribute and
// both values.
func (r MatchResult) Detail() string {
	var msg string
	if r.Passed() {
		msg = fmt.Sprintf("%s %s is %s", r.Ref, r.Attribute, r.Expected)
	} else {
		msg = fmt.Sprintf("%s: %s expected %s, actual %s", r.Message(), r.Ref, r.Expected, r.Actual)
	}
	if r.Code != "" {
		msg += fmt.Sprintf(" (%s: %s)", r.Code, r.Cause)
	}
	return msg
}

// Name identifies the result for reporting: "kind[name] attribute".
func (r MatchResult) Name() string {
	return r.Ref.String() + " " + r.Attribute
}

// Match compares actual with every pair of exp, in declaration order. It
// never short-circuits: each pair yields exactly one result. A missing
// attribute fails with an actual value of none.
func Match(actual resource.State, exp Expectation) []MatchResult {
	results := make([]MatchResult, 0, len(exp.pairs))
	for _, p := range exp.pairs {
		got := actual.Get(p.Attribute)
		outcome := Fail
		if got.Equal(p.Expected) {
			outcome = Pass
		}
		results = append(results, MatchResult{
			Ref:       exp.Ref,
			Attribute: p.Attribute,
			Expected:  p.Expected,
			Actual:    got,
			Outcome:   outcome,
		})
	}
	return results
}

// inspectionFailed turns an inspection error into the single failing result
// reported for exp. The result names the attribute the error is about when
// it was declared, the first declared attribute otherwise.
func inspectionFailed(exp Expectation, err error) []MatchResult {
	if len(exp.pairs) == 0 {
		return nil
	}

	code := resource.CodeOf(err)
	if code == "" {
		code = resource.ErrInspectionFailure
	}
	cause := err.Error()
	pair := exp.pairs[0]

	var re *resource.Error
	if errors.As(err, &re) {
		if re.Err != nil {
			cause = re.Err.Error()
		}
		for _, p := range exp.pairs {
			if re.Attribute != "" && p.Attribute == re.Attribute {
				pair = p
				break
			}
		}
	}

	return []MatchResult{{
		Ref:       exp.Ref,
		Attribute: pair.Attribute,
		Expected:  pair.Expected,
		Actual:    resource.None(),
		Outcome:   Fail,
		Code:      code,
		Cause:     cause,
	}}
}
