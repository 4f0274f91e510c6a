package inspect

import (
	"fmt"
	"os"

	"github.com/cgast/idemverify/pkg/resource"
)

// normalize converts one raw attribute into its comparable form. Only mode,
// owner/user and group are rewritten; everything else passes through.
func normalize(accounts AccountDB, attribute string, raw any) (resource.Value, error) {
	switch attribute {
	case "mode":
		return normalizeMode(raw), nil
	case "owner", "user":
		return normalizeOwner(accounts, raw)
	case "group":
		return normalizeGroup(accounts, raw)
	default:
		return resource.ValueOf(raw), nil
	}
}

// normalizeMode renders numeric modes as octal with at least four digits
// (420 becomes "0644"). Strings are kept as given.
func normalizeMode(raw any) resource.Value {
	if raw == nil {
		return resource.None()
	}
	if m, ok := raw.(os.FileMode); ok {
		return resource.String(fmt.Sprintf("%04o", unixMode(m)))
	}
	if n, ok := resource.AsInt(raw); ok {
		return resource.String(fmt.Sprintf("%04o", n))
	}
	if s, ok := raw.(string); ok {
		return resource.String(s)
	}
	return resource.String(fmt.Sprint(raw))
}

func normalizeOwner(accounts AccountDB, raw any) (resource.Value, error) {
	if raw == nil {
		return resource.None(), nil
	}
	if id, ok := resource.AsInt(raw); ok {
		u, err := accounts.UserByID(int(id))
		if err != nil {
			return resource.None(), err
		}
		return resource.String(u.Name), nil
	}
	u, err := accounts.UserByName(fmt.Sprint(raw))
	if err != nil {
		return resource.None(), err
	}
	return resource.String(u.Name), nil
}

func normalizeGroup(accounts AccountDB, raw any) (resource.Value, error) {
	if raw == nil {
		return resource.None(), nil
	}
	if id, ok := resource.AsInt(raw); ok {
		g, err := accounts.GroupByID(int(id))
		if err != nil {
			return resource.None(), err
		}
		return resource.String(g.Name), nil
	}
	g, err := accounts.GroupByName(fmt.Sprint(raw))
	if err != nil {
		return resource.None(), err
	}
	return resource.String(g.Name), nil
}

// unixMode maps Go's portable mode bits onto the classic octal layout.
func unixMode(m os.FileMode) uint32 {
	mode := uint32(m.Perm())
	if m&os.ModeSetuid != 0 {
		mode |= 0o4000
	}
	if m&os.ModeSetgid != 0 {
		mode |= 0o2000
	}
	if m&os.ModeSticky != 0 {
		mode |= 0o1000
	}
	return mode
}
