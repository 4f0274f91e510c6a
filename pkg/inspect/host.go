package inspect

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/spf13/afero"

	"github.com/cgast/idemverify/internal/sandbox"
	"github.com/cgast/idemverify/pkg/resource"
)

// ErrCommandNotFound is returned by a CmdRunner when the binary is not
// installed. Any other error means the command ran and failed.
var ErrCommandNotFound = errors.New("command not found")

// CmdRunner runs a read-only query command and returns its stdout.
type CmdRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// CommandError is a command that ran and exited non-zero.
type CommandError struct {
	Name     string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: exit status %d: %s", e.Name, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s: exit status %d", e.Name, e.ExitCode)
}

// ExecRunner runs commands on the host. A non-zero exit becomes a
// *CommandError; stdout is returned alongside it.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if errors.Is(err, exec.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", name, ErrCommandNotFound)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, fmt.Errorf("%s: %w", name, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.Exited() {
		return out, &CommandError{
			Name:     name,
			ExitCode: exitErr.ExitCode(),
			Stderr:   strings.TrimSpace(string(exitErr.Stderr)),
		}
	}
	return out, err
}

// HostResolver reads the live state of resources from the host it runs on,
// or from an alternate root when Fs is rooted elsewhere.
type HostResolver struct {
	Fs         afero.Fs
	Sandbox    *sandbox.Sandbox
	Accounts   AccountDB
	Run        CmdRunner
	Interfaces Interfaces

	CrontabDir string
	MountsPath string
	FstabPath  string
}

// NewHostResolver returns a resolver over fs with the usual Linux locations.
// A nil fs means the real OS filesystem.
func NewHostResolver(fs afero.Fs, sb *sandbox.Sandbox, accounts AccountDB) *HostResolver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if accounts == nil {
		accounts = SystemAccounts{}
	}
	return &HostResolver{
		Fs:         fs,
		Sandbox:    sb,
		Accounts:   accounts,
		Run:        ExecRunner,
		Interfaces: SystemInterfaces{},
		CrontabDir: "/var/spool/cron/crontabs",
		MountsPath: "/proc/mounts",
		FstabPath:  "/etc/fstab",
	}
}

type hostAccessor func(ctx context.Context, h *HostResolver, ref resource.Ref) (resource.Attributes, error)

// hostAccessors is the per-kind dispatch table. Every supported kind has an
// entry; TestHostAccessorsCoverEveryKind keeps the two tables in step.
var hostAccessors = map[resource.Kind]hostAccessor{
	resource.KindFile:             inspectFile,
	resource.KindDirectory:        inspectDirectory,
	resource.KindLink:             inspectLink,
	resource.KindUser:             inspectUser,
	resource.KindGroup:            inspectGroup,
	resource.KindPackage:          inspectPackage,
	resource.KindService:          inspectService,
	resource.KindCron:             inspectCron,
	resource.KindMount:            inspectMount,
	resource.KindNetworkInterface: inspectInterface,
}

func (h *HostResolver) ResolveCurrentState(ctx context.Context, ref resource.Ref) (resource.Attributes, error) {
	accessor, ok := hostAccessors[ref.Kind]
	if !ok {
		return nil, &resource.Error{Code: resource.ErrUnsupportedKind, Ref: ref}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return accessor(ctx, h, ref)
}

func (h *HostResolver) checkPath(path string) error {
	return h.Sandbox.CheckPath(path)
}

func inspectUser(_ context.Context, h *HostResolver, ref resource.Ref) (resource.Attributes, error) {
	u, err := h.Accounts.UserByName(ref.Name)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", ref.Name, err)
	}
	attrs := resource.Attributes{
		"username": u.Name,
		"uid":      u.UID,
		"gid":      u.GID,
		"home":     u.Home,
		"comment":  u.Comment,
		"shell":    nil,
	}
	if u.Shell != "" {
		attrs["shell"] = u.Shell
	}
	return attrs, nil
}

func inspectGroup(_ context.Context, h *HostResolver, ref resource.Ref) (resource.Attributes, error) {
	g, err := h.Accounts.GroupByName(ref.Name)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", ref.Name, err)
	}
	attrs := resource.Attributes{
		"group_name": g.Name,
		"gid":        g.GID,
		"members":    nil,
	}
	if g.Members != nil {
		attrs["members"] = strings.Join(g.Members, ",")
	}
	return attrs, nil
}
