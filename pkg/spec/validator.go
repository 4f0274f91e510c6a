package spec

import (
	"fmt"
	"strings"

	"github.com/cgast/idemverify/pkg/resource"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult holds all validation errors for a spec. Warnings do not
// make a spec invalid.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// Valid returns true if no validation errors were found.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Error returns a combined error message from all validation errors.
func (r ValidationResult) Error() string {
	if r.Valid() {
		return ""
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

func (r *ValidationResult) add(field, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) warn(field, format string, args ...any) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateSpec checks a VerificationSpec for required fields and structural
// correctness.
func ValidateSpec(s VerificationSpec) ValidationResult {
	var result ValidationResult

	if s.APIVersion == "" {
		result.add("apiVersion", "required")
	} else if s.APIVersion != APIVersion {
		result.add("apiVersion", "unsupported version %q (expected %s)", s.APIVersion, APIVersion)
	}

	if s.Kind == "" {
		result.add("kind", "required")
	} else if s.Kind != KindSpec {
		result.add("kind", "unsupported kind %q (expected %s)", s.Kind, KindSpec)
	}

	if s.Meta.Name == "" {
		result.add("meta.name", "required")
	}

	if len(s.Resources) == 0 {
		result.add("resources", "at least one resource is required")
	}

	refs := make(map[string]int)
	for i, r := range s.Resources {
		validateResource(&result, fmt.Sprintf("resources[%d]", i), r)

		if r.Kind == "" || r.Name == "" {
			continue
		}
		key := r.Ref().Key()
		if first, dup := refs[key]; dup {
			result.add(fmt.Sprintf("resources[%d]", i), "duplicate resource %s (first declared at resources[%d])", key, first)
		} else {
			refs[key] = i
		}
	}

	paramNames := make(map[string]bool)
	for i, p := range s.Params {
		field := fmt.Sprintf("params[%d].name", i)
		switch {
		case p.Name == "":
			result.add(field, "required")
		case paramNames[p.Name]:
			result.add(field, "duplicate param name %q", p.Name)
		default:
			paramNames[p.Name] = true
		}
	}

	return result
}

func validateResource(result *ValidationResult, field string, r ResourceSpec) {
	if r.Name == "" {
		result.add(field+".name", "required")
	}

	var ks resource.KindSpec
	known := false
	switch {
	case r.Kind == "":
		result.add(field+".kind", "required")
	default:
		var err error
		if ks, err = resource.Lookup(resource.Kind(r.Kind)); err != nil {
			result.add(field+".kind", "unsupported kind %q", r.Kind)
		} else {
			known = true
		}
	}

	if known {
		for _, arg := range ks.RequiredArgs {
			if r.Args[arg] == "" {
				result.add(field+".args."+arg, "required for %s resources", r.Kind)
			}
		}
	}

	if len(r.Expect) == 0 {
		result.add(field+".expect", "at least one expected attribute is required")
	}

	seen := make(map[string]bool)
	for _, x := range r.Expect {
		af := field + ".expect." + x.Attribute
		if seen[x.Attribute] {
			result.add(af, "declared more than once")
		}
		seen[x.Attribute] = true

		switch x.Tag {
		case "!!map", "!!seq":
			result.add(af, "value must be a scalar")
			continue
		}
		if x.Attribute == "mode" && x.Value != nil && x.Tag != "!!str" {
			result.add(af, "mode must be a quoted octal string such as \"0644\"")
		}
		if known && !ks.HasAttribute(x.Attribute) {
			result.warn(af, "%s resources do not report %q from the host; it must come from recorded facts", r.Kind, x.Attribute)
		}
	}
}
