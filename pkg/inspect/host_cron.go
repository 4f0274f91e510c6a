package inspect

import (
	"bufio"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cgast/idemverify/pkg/resource"
)

// cronMarker is the comment a convergence run writes above each named entry.
const cronMarker = "# Chef Name: "

var cronEnvLine = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)

// inspectCron finds the entry named ref.Name in the crontab of the user
// given by the "user" argument (root by default).
func inspectCron(_ context.Context, h *HostResolver, ref resource.Ref) (resource.Attributes, error) {
	owner := "root"
	if u, ok := ref.Arg(resource.ArgUser); ok && u != "" {
		owner = u
	}
	path := filepath.Join(h.CrontabDir, owner)
	if err := h.checkPath(path); err != nil {
		return nil, err
	}

	f, err := h.Fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open crontab %s: %w", path, err)
	}
	defer f.Close()

	found := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !found {
			if name, ok := strings.CutPrefix(line, cronMarker); ok && strings.TrimSpace(name) == ref.Name {
				found = true
			}
			continue
		}
		if line == "" || strings.HasPrefix(line, "#") || cronEnvLine.MatchString(line) {
			continue
		}
		attrs, err := parseCronLine(line)
		if err != nil {
			return nil, fmt.Errorf("cron %s in %s: %w", ref.Name, path, err)
		}
		attrs["name"] = ref.Name
		attrs["user"] = owner
		return attrs, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read crontab %s: %w", path, err)
	}
	if found {
		return nil, fmt.Errorf("cron %s in %s has no schedule line", ref.Name, path)
	}
	return nil, fmt.Errorf("cron %s does not exist in %s", ref.Name, path)
}

func parseCronLine(line string) (resource.Attributes, error) {
	fields := strings.Fields(line)
	if len(fields) > 0 && strings.HasPrefix(fields[0], "@") {
		if len(fields) < 2 {
			return nil, fmt.Errorf("malformed entry %q", line)
		}
		return resource.Attributes{
			"time":    fields[0],
			"minute":  nil,
			"hour":    nil,
			"day":     nil,
			"month":   nil,
			"weekday": nil,
			"command": strings.Join(fields[1:], " "),
		}, nil
	}
	if len(fields) < 6 {
		return nil, fmt.Errorf("malformed entry %q", line)
	}
	return resource.Attributes{
		"time":    nil,
		"minute":  fields[0],
		"hour":    fields[1],
		"day":     fields[2],
		"month":   fields[3],
		"weekday": fields[4],
		"command": strings.Join(fields[5:], " "),
	}, nil
}
