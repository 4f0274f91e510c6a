package inspect

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cgast/idemverify/pkg/resource"
)

// inspectPackage asks dpkg first and falls back to rpm when dpkg is not
// installed. Only the package manager's own "not installed" answer yields
// installed=false; any other failure is an error.
func inspectPackage(ctx context.Context, h *HostResolver, ref resource.Ref) (resource.Attributes, error) {
	attrs := resource.Attributes{
		"package_name": ref.Name,
		"version":      nil,
		"installed":    false,
	}

	out, err := h.Run(ctx, "dpkg-query", "-W", "-f=${Status}\t${Version}", ref.Name)
	if err == nil {
		status, version, _ := strings.Cut(strings.TrimSpace(string(out)), "\t")
		if strings.HasSuffix(status, " installed") {
			attrs["installed"] = true
			attrs["version"] = version
		}
		return attrs, nil
	}
	if !errors.Is(err, ErrCommandNotFound) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("dpkg-query %s: %w", ref.Name, ctxErr)
		}
		if dpkgNotInstalled(err) {
			return attrs, nil
		}
		return nil, fmt.Errorf("dpkg-query %s: %w", ref.Name, err)
	}

	out, err = h.Run(ctx, "rpm", "-q", "--qf", "%{VERSION}-%{RELEASE}", ref.Name)
	if err == nil {
		attrs["installed"] = true
		attrs["version"] = strings.TrimSpace(string(out))
		return attrs, nil
	}
	if !errors.Is(err, ErrCommandNotFound) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("rpm %s: %w", ref.Name, ctxErr)
		}
		if rpmNotInstalled(err, out) {
			return attrs, nil
		}
		return nil, fmt.Errorf("rpm %s: %w", ref.Name, err)
	}
	return nil, fmt.Errorf("package %s: no supported package manager (dpkg-query, rpm)", ref.Name)
}

// dpkgNotInstalled matches dpkg-query -W on a package it has never seen:
// exit 1 with "no packages found matching".
func dpkgNotInstalled(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce) && ce.ExitCode == 1 &&
		strings.Contains(ce.Stderr, "no packages found matching")
}

// rpmNotInstalled matches rpm -q on an absent package: exit 1 with
// "is not installed" on stdout.
func rpmNotInstalled(err error, out []byte) bool {
	var ce *CommandError
	if !errors.As(err, &ce) || ce.ExitCode != 1 {
		return false
	}
	return strings.Contains(string(out), "is not installed") || strings.Contains(ce.Stderr, "is not installed")
}

func inspectService(ctx context.Context, h *HostResolver, ref resource.Ref) (resource.Attributes, error) {
	out, err := h.Run(ctx, "systemctl", "show", ref.Name, "--property=LoadState,ActiveState,UnitFileState")
	if err != nil {
		return nil, fmt.Errorf("systemctl show %s: %w", ref.Name, err)
	}
	props := parseProperties(out)
	if props["LoadState"] == "not-found" {
		return nil, fmt.Errorf("service %s does not exist", ref.Name)
	}
	return resource.Attributes{
		"service_name": ref.Name,
		"running":      props["ActiveState"] == "active",
		"enabled":      props["UnitFileState"] == "enabled",
	}, nil
}

// parseProperties reads systemctl's Key=Value output.
func parseProperties(out []byte) map[string]string {
	props := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if k, v, ok := strings.Cut(scanner.Text(), "="); ok {
			props[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return props
}
