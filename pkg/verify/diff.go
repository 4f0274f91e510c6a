package verify

import "github.com/cgast/idemverify/pkg/resource"

// ChangeType classifies how one attribute's outcome moved between reports.
type ChangeType string

const (
	Regressed ChangeType = "regressed"
	Fixed     ChangeType = "fixed"
	Added     ChangeType = "added"
	Removed   ChangeType = "removed"
)

// Change describes one attribute whose outcome differs between two reports.
type Change struct {
	Type      ChangeType   `json:"type"`
	Ref       resource.Ref `json:"ref"`
	Attribute string       `json:"attribute"`
	Before    *MatchResult `json:"before,omitempty"`
	After     *MatchResult `json:"after,omitempty"`
}

// Name is "kind[name] attribute".
func (c Change) Name() string {
	return c.Ref.String() + " " + c.Attribute
}

// Diff compares two reports per (resource, attribute). Attributes whose
// outcome did not change are omitted. Changes follow after's declaration
// order, then removed attributes in before's order.
func Diff(before, after Report) []Change {
	prev := make(map[string]MatchResult, len(before.Results))
	for _, r := range before.Results {
		prev[resultKey(r)] = r
	}

	var changes []Change
	seen := make(map[string]bool, len(after.Results))
	for _, r := range after.Results {
		k := resultKey(r)
		seen[k] = true
		cur := r

		old, ok := prev[k]
		switch {
		case !ok:
			changes = append(changes, Change{Type: Added, Ref: r.Ref, Attribute: r.Attribute, After: &cur})
		case old.Passed() && !r.Passed():
			changes = append(changes, Change{Type: Regressed, Ref: r.Ref, Attribute: r.Attribute, Before: &old, After: &cur})
		case !old.Passed() && r.Passed():
			changes = append(changes, Change{Type: Fixed, Ref: r.Ref, Attribute: r.Attribute, Before: &old, After: &cur})
		}
	}

	for _, r := range before.Results {
		k := resultKey(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		old := r
		changes = append(changes, Change{Type: Removed, Ref: r.Ref, Attribute: r.Attribute, Before: &old})
	}
	return changes
}

func resultKey(r MatchResult) string {
	return r.Ref.Key() + " " + r.Attribute
}
