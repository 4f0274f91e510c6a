// Package inspect resolves declared resources to their actual, normalized
// state without changing the system.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cgast/idemverify/pkg/resource"
)

// StateResolver turns a ref into the raw attributes of the live resource.
// Implementations must be read-only. Version skew of whatever produces the
// facts is the resolver's concern.
type StateResolver interface {
	ResolveCurrentState(ctx context.Context, ref resource.Ref) (resource.Attributes, error)
}

// ResolverFunc adapts a function to StateResolver.
type ResolverFunc func(ctx context.Context, ref resource.Ref) (resource.Attributes, error)

func (f ResolverFunc) ResolveCurrentState(ctx context.Context, ref resource.Ref) (resource.Attributes, error) {
	return f(ctx, ref)
}

// Inspector validates refs, resolves them and normalizes the result.
type Inspector struct {
	resolver StateResolver
	accounts AccountDB
}

// New creates an Inspector. A nil accounts database falls back to the
// host's (os/user).
func New(resolver StateResolver, accounts AccountDB) *Inspector {
	if accounts == nil {
		accounts = SystemAccounts{}
	}
	return &Inspector{resolver: resolver, accounts: accounts}
}

// Inspect returns the normalized actual state of ref.
func (i *Inspector) Inspect(ctx context.Context, ref resource.Ref) (resource.State, error) {
	spec, err := resource.Lookup(ref.Kind)
	if err != nil {
		var re *resource.Error
		if errors.As(err, &re) {
			re.Ref = ref
		}
		return nil, err
	}

	for _, arg := range spec.RequiredArgs {
		if v, ok := ref.Arg(arg); !ok || v == "" {
			return nil, &resource.Error{
				Code:      resource.ErrMissingArgument,
				Ref:       ref,
				Attribute: arg,
				Err:       fmt.Errorf("%s requires %q", ref.Kind, arg),
			}
		}
	}

	raw, err := i.resolver.ResolveCurrentState(ctx, ref)
	if err != nil {
		var re *resource.Error
		if errors.As(err, &re) && re.Code != "" {
			return nil, err
		}
		return nil, &resource.Error{Code: resource.ErrInspectionFailure, Ref: ref, Err: err}
	}

	// Sorted so the first lookup failure reported is stable.
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	state := make(resource.State, len(raw))
	for _, name := range names {
		v, err := normalize(i.accounts, name, raw[name])
		if err != nil {
			return nil, &resource.Error{Code: resource.ErrLookupFailure, Ref: ref, Attribute: name, Err: err}
		}
		state[name] = v
	}
	return state, nil
}
