package inspect

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cgast/idemverify/pkg/resource"
)

type mountEntry struct {
	device  string
	point   string
	fstype  string
	options string
}

// inspectMount reports whether ref.Name is mounted from the required device
// (per the mounts table) and whether it is enabled (present in fstab).
func inspectMount(_ context.Context, h *HostResolver, ref resource.Ref) (resource.Attributes, error) {
	device, _ := ref.Arg(resource.ArgDevice)

	mounts, err := h.readMountTable(h.MountsPath, false)
	if err != nil {
		return nil, err
	}
	fstab, err := h.readMountTable(h.FstabPath, true)
	if err != nil {
		return nil, err
	}

	attrs := resource.Attributes{
		"mount_point": ref.Name,
		"device":      device,
		"fstype":      nil,
		"options":     nil,
		"mounted":     false,
		"enabled":     false,
	}

	if e, ok := findMount(fstab, ref.Name); ok {
		attrs["fstype"] = e.fstype
		attrs["options"] = e.options
		attrs["enabled"] = e.device == device
	}
	// The live table wins over fstab for what is actually there.
	if e, ok := findMount(mounts, ref.Name); ok {
		attrs["device"] = e.device
		attrs["fstype"] = e.fstype
		attrs["options"] = e.options
		attrs["mounted"] = e.device == device
	}
	return attrs, nil
}

// findMount returns the last entry for point; later mounts shadow earlier ones.
func findMount(entries []mountEntry, point string) (mountEntry, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].point == point {
			return entries[i], true
		}
	}
	return mountEntry{}, false
}

// readMountTable parses fstab(5)/proc mounts format. A missing fstab is
// treated as empty when optional is set.
func (h *HostResolver) readMountTable(path string, optional bool) ([]mountEntry, error) {
	if err := h.checkPath(path); err != nil {
		return nil, err
	}
	f, err := h.Fs.Open(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var entries []mountEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		entries = append(entries, mountEntry{
			device:  unescapeMountField(fields[0]),
			point:   unescapeMountField(fields[1]),
			fstype:  fields[2],
			options: fields[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return entries, nil
}

// unescapeMountField decodes the \ooo octal escapes the kernel uses for
// spaces, tabs and backslashes in mount tables.
func unescapeMountField(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+4 <= len(s) {
			if n, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(n))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
