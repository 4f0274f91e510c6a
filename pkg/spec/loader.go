package spec

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Document is a spec together with the file it was loaded from.
type Document struct {
	Path string
	Spec VerificationSpec
}

// LoadSpec reads a YAML spec file from the OS filesystem.
func LoadSpec(path string, params map[string]string) (VerificationSpec, error) {
	return LoadSpecFs(afero.NewOsFs(), path, params)
}

// LoadSpecFs reads a YAML spec file from fs. Template variables like
// {{date}} and {{param_name}} are interpolated using the provided params
// (or defaults from the spec).
func LoadSpecFs(fs afero.Fs, path string, params map[string]string) (VerificationSpec, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return VerificationSpec{}, fmt.Errorf("read spec %s: %w", path, err)
	}

	s, err := ParseSpec(data, params)
	if err != nil {
		return VerificationSpec{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// LoadSpecs expands patterns (files, directories or globs) and loads every
// matching spec, in a stable order. A directory contributes its *.yaml and
// *.yml files.
func LoadSpecs(fs afero.Fs, patterns []string, params map[string]string) ([]Document, error) {
	paths, err := Discover(fs, patterns)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		s, err := LoadSpecFs(fs, p, params)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{Path: p, Spec: s})
	}
	return docs, nil
}

// Discover resolves patterns to spec file paths without loading them.
func Discover(fs afero.Fs, patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, pattern := range patterns {
		if fi, err := fs.Stat(pattern); err == nil {
			if !fi.IsDir() {
				add(pattern)
				continue
			}
			var found []string
			for _, ext := range []string{"*.yaml", "*.yml"} {
				matches, err := afero.Glob(fs, filepath.Join(pattern, ext))
				if err != nil {
					return nil, fmt.Errorf("glob %s: %w", pattern, err)
				}
				found = append(found, matches...)
			}
			sort.Strings(found)
			for _, m := range found {
				add(m)
			}
			continue
		}

		matches, err := afero.Glob(fs, pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no spec files match %s: %w", pattern, os.ErrNotExist)
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return out, nil
}

// ParseSpec parses YAML data into a VerificationSpec with variable
// interpolation.
func ParseSpec(data []byte, params map[string]string) (VerificationSpec, error) {
	// First pass: parse to get param defaults.
	var raw struct {
		Params []ParamDef `yaml:"params"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return VerificationSpec{}, fmt.Errorf("parse spec: %w", err)
	}

	vars := buildVarMap(raw.Params, params)
	interpolated := interpolateVars(string(data), vars)

	var s VerificationSpec
	if err := yaml.Unmarshal([]byte(interpolated), &s); err != nil {
		return VerificationSpec{}, fmt.Errorf("parse interpolated spec: %w", err)
	}
	return s, nil
}

// buildVarMap creates a variable map from param defaults and runtime overrides.
// Built-in variables like {{date}} are always available.
func buildVarMap(paramDefs []ParamDef, overrides map[string]string) map[string]string {
	vars := make(map[string]string)

	now := time.Now()
	vars["date"] = now.Format("2006-01-02")
	vars["datetime"] = now.Format("2006-01-02T15:04:05")
	vars["year"] = now.Format("2006")
	if host, err := os.Hostname(); err == nil {
		vars["hostname"] = host
	}

	for _, p := range paramDefs {
		if p.Default != nil {
			vars[p.Name] = fmt.Sprintf("%v", p.Default)
		}
	}

	for k, v := range overrides {
		vars[k] = v
	}

	return vars
}

// templatePattern matches {{var_name}} patterns.
var templatePattern = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// interpolateVars replaces {{var_name}} patterns with values from the var map.
// Unknown names are left as they are.
func interpolateVars(s string, vars map[string]string) string {
	return templatePattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}}"), "{{")
		if val, ok := vars[varName]; ok {
			return val
		}
		return match
	})
}

// ParseParams turns "key=value" pairs from the command line into a map.
func ParseParams(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid param %q (expected key=value)", p)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}
