package sandbox

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Sandbox limits which paths host inspection may read and how large a file
// may be before its content is no longer hashed. Paths are interpreted
// relative to the inspected root, so they are cleaned but never resolved
// against the working directory.
type Sandbox struct {
	allowedPaths []string
	deniedPaths  []string
	maxFileSize  int64 // bytes, 0 means unlimited
}

// Config holds the sandbox configuration.
type Config struct {
	AllowedPaths []string
	DeniedPaths  []string
	MaxFileSize  string // e.g. "10MB", "1GB", "500KB"
}

// New creates a Sandbox from the given configuration.
func New(cfg Config) (*Sandbox, error) {
	s := &Sandbox{}

	for _, p := range cfg.AllowedPaths {
		clean, err := cleanAbs(p)
		if err != nil {
			return nil, fmt.Errorf("sandbox: allowed path: %w", err)
		}
		s.allowedPaths = append(s.allowedPaths, clean)
	}

	for _, p := range cfg.DeniedPaths {
		clean, err := cleanAbs(p)
		if err != nil {
			return nil, fmt.Errorf("sandbox: denied path: %w", err)
		}
		s.deniedPaths = append(s.deniedPaths, clean)
	}

	if cfg.MaxFileSize != "" {
		size, err := parseFileSize(cfg.MaxFileSize)
		if err != nil {
			return nil, fmt.Errorf("sandbox: parse max_file_size %q: %w", cfg.MaxFileSize, err)
		}
		s.maxFileSize = size
	}

	return s, nil
}

// CheckPath reports whether path may be inspected. A nil Sandbox allows
// every absolute path.
func (s *Sandbox) CheckPath(path string) error {
	clean, err := cleanAbs(path)
	if err != nil {
		return fmt.Errorf("sandbox: %w", err)
	}
	if s == nil {
		return nil
	}

	// Deny takes precedence.
	for _, denied := range s.deniedPaths {
		if under(clean, denied) {
			return fmt.Errorf("sandbox: path %q is under denied path %q", clean, denied)
		}
	}

	if len(s.allowedPaths) == 0 {
		return nil
	}
	for _, allowed := range s.allowedPaths {
		if under(clean, allowed) {
			return nil
		}
	}
	return fmt.Errorf("sandbox: path %q is not under any allowed path %v", clean, s.allowedPaths)
}

// AllowsContent reports whether a file of size bytes is small enough to be
// read for checksumming.
func (s *Sandbox) AllowsContent(size int64) bool {
	return s.CheckFileSize(size) == nil
}

// CheckFileSize validates that the given size in bytes does not exceed
// the sandbox's maximum file size.
func (s *Sandbox) CheckFileSize(size int64) error {
	if s == nil || s.maxFileSize <= 0 {
		return nil
	}
	if size > s.maxFileSize {
		return fmt.Errorf("sandbox: file size %d bytes exceeds maximum %d bytes (%s)",
			size, s.maxFileSize, formatFileSize(s.maxFileSize))
	}
	return nil
}

// MaxFileSize returns the configured maximum file size in bytes.
func (s *Sandbox) MaxFileSize() int64 {
	if s == nil {
		return 0
	}
	return s.maxFileSize
}

func cleanAbs(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	clean := filepath.Clean(p)
	if !filepath.IsAbs(clean) {
		return "", fmt.Errorf("path %q is not absolute", p)
	}
	return clean, nil
}

func under(path, dir string) bool {
	if dir == string(filepath.Separator) {
		return true
	}
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}

// parseFileSize parses a human-readable file size string into bytes.
// Supported suffixes: B, KB, MB, GB, TB (case-insensitive).
func parseFileSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	suffixes := []struct {
		suffix     string
		multiplier int64
	}{
		{"TB", 1 << 40},
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}

	for _, sf := range suffixes {
		if strings.HasSuffix(s, sf.suffix) {
			numStr := strings.TrimSpace(strings.TrimSuffix(s, sf.suffix))
			n, err := strconv.ParseFloat(numStr, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid number %q", numStr)
			}
			return int64(n * float64(sf.multiplier)), nil
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid file size %q", s)
	}
	return n, nil
}

func formatFileSize(bytes int64) string {
	switch {
	case bytes >= 1<<40:
		return fmt.Sprintf("%.1fTB", float64(bytes)/(1<<40))
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1fGB", float64(bytes)/(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(bytes)/(1<<10))
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}
