package resource

import (
	"fmt"
	"sort"
)

// Kind identifies a class of inspectable system object.
type Kind string

const (
	KindFile             Kind = "file"
	KindDirectory        Kind = "directory"
	KindLink             Kind = "link"
	KindUser             Kind = "user"
	KindGroup            Kind = "group"
	KindPackage          Kind = "package"
	KindService          Kind = "service"
	KindCron             Kind = "cron"
	KindMount            Kind = "mount"
	KindNetworkInterface Kind = "network-interface"
)

// ArgDevice is the extra identifying argument required by mount and
// network-interface resources.
const ArgDevice = "device"

// ArgUser selects the crontab a cron resource is read from.
const ArgUser = "user"

// KindSpec describes what a kind requires and what it reports.
type KindSpec struct {
	Kind         Kind
	Description  string
	RequiredArgs []string
	Attributes   []string
}

// kinds is the closed set of idempotent resource kinds. Action resources
// (execute, bash, ruby, erl_call) and the non-file file resources
// (template, remote_file, cookbook_file) are deliberately absent.
var kinds = map[Kind]KindSpec{
	KindFile: {
		Kind:        KindFile,
		Description: "Regular file",
		Attributes:  []string{"path", "type", "mode", "owner", "group", "size", "checksum"},
	},
	KindDirectory: {
		Kind:        KindDirectory,
		Description: "Directory",
		Attributes:  []string{"path", "type", "mode", "owner", "group"},
	},
	KindLink: {
		Kind:        KindLink,
		Description: "Symbolic link",
		Attributes:  []string{"target_file", "to", "link_type", "mode", "owner", "group"},
	},
	KindUser: {
		Kind:        KindUser,
		Description: "Local user account",
		Attributes:  []string{"username", "uid", "gid", "home", "shell", "comment"},
	},
	KindGroup: {
		Kind:        KindGroup,
		Description: "Local group",
		Attributes:  []string{"group_name", "gid", "members"},
	},
	KindPackage: {
		Kind:        KindPackage,
		Description: "System package (dpkg or rpm)",
		Attributes:  []string{"package_name", "version", "installed"},
	},
	KindService: {
		Kind:        KindService,
		Description: "systemd service",
		Attributes:  []string{"service_name", "running", "enabled"},
	},
	KindCron: {
		Kind:        KindCron,
		Description: "Named crontab entry",
		Attributes:  []string{"name", "minute", "hour", "day", "month", "weekday", "time", "command", "user"},
	},
	KindMount: {
		Kind:         KindMount,
		Description:  "Mounted filesystem",
		RequiredArgs: []string{ArgDevice},
		Attributes:   []string{"mount_point", "device", "fstype", "options", "mounted", "enabled"},
	},
	KindNetworkInterface: {
		Kind:         KindNetworkInterface,
		Description:  "Network interface address",
		RequiredArgs: []string{ArgDevice},
		Attributes:   []string{"target", "device", "hwaddr", "mtu", "inet_addr", "mask", "flags"},
	},
}

// Lookup returns the table entry for a kind, or an UnsupportedKind error.
func Lookup(kind Kind) (KindSpec, error) {
	spec, ok := kinds[kind]
	if !ok {
		return KindSpec{}, &Error{
			Code: ErrUnsupportedKind,
			Ref:  Ref{Kind: kind},
			Err:  fmt.Errorf("%q is not an idempotent resource kind", kind),
		}
	}
	return spec, nil
}

// Supported reports whether kind is in the idempotent set.
func Supported(kind Kind) bool {
	_, ok := kinds[kind]
	return ok
}

// Kinds returns every supported kind, sorted by name.
func Kinds() []KindSpec {
	out := make([]KindSpec, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// HasAttribute reports whether the kind documents the named attribute.
func (s KindSpec) HasAttribute(name string) bool {
	for _, a := range s.Attributes {
		if a == name {
			return true
		}
	}
	return false
}
