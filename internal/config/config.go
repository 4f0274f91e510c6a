package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the runtime configuration from .idemverify/config.yaml.
type Config struct {
	LogLevel  string         `yaml:"log_level"`
	LogFormat string         `yaml:"log_format"`
	Verify    VerifyConfig   `yaml:"verify"`
	Sandbox   SandboxConfig  `yaml:"sandbox"`
	Accounts  AccountsConfig `yaml:"accounts"`
	Store     StoreConfig    `yaml:"store"`
	Report    ReportConfig   `yaml:"report"`
}

// VerifyConfig defines verification defaults.
type VerifyConfig struct {
	Parallelism int           `yaml:"parallelism"`
	Timeout     time.Duration `yaml:"timeout"`
	FailOnSkip  bool          `yaml:"fail_on_skip"`
}

// SandboxConfig defines which host paths inspection may read.
type SandboxConfig struct {
	Root         string   `yaml:"root"`
	AllowedPaths []string `yaml:"allowed_paths"`
	DeniedPaths  []string `yaml:"denied_paths"`
	MaxFileSize  string   `yaml:"max_file_size"`
}

// AccountsConfig selects where uid and gid names are resolved.
type AccountsConfig struct {
	Source string `yaml:"source"` // "system" or "files"
	Passwd string `yaml:"passwd"`
	Group  string `yaml:"group"`
}

// StoreConfig defines the facts and report history database.
type StoreConfig struct {
	Path string `yaml:"path"`
	Keep int    `yaml:"keep"` // reports kept by history prune, 0 keeps all
}

// ReportConfig defines how outcomes are presented.
type ReportConfig struct {
	Format  string `yaml:"format"` // "text" or "json"
	Verbose bool   `yaml:"verbose"`
	Filter  string `yaml:"filter"`
	Seed    uint64 `yaml:"seed"`
}

// PlatformConfig represents platform credentials from .idemverify/platforms.yaml.
type PlatformConfig struct {
	GitHub  GitHubConfig  `yaml:"github"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// GitHubConfig holds GitHub issue reporting settings.
type GitHubConfig struct {
	Token  string   `yaml:"token"`
	Repo   string   `yaml:"repo"`
	Labels []string `yaml:"labels"`
}

// WebhookConfig holds webhook reporting settings.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	AllowedDomains []string `yaml:"allowed_domains"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Verify: VerifyConfig{
			Parallelism: 4,
			Timeout:     30 * time.Second,
		},
		Sandbox: SandboxConfig{
			Root:        "/",
			DeniedPaths: []string{"/etc/shadow", "/etc/gshadow"},
			MaxFileSize: "10MB",
		},
		Accounts: AccountsConfig{
			Source: "system",
			Passwd: "/etc/passwd",
			Group:  "/etc/group",
		},
		Store: StoreConfig{
			Path: ".idemverify/state.db",
			Keep: 100,
		},
		Report: ReportConfig{
			Format: "text",
		},
	}
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch c.Accounts.Source {
	case "system", "files":
	default:
		return fmt.Errorf("accounts.source must be system or files, got %q", c.Accounts.Source)
	}
	switch c.Report.Format {
	case "text", "json":
	default:
		return fmt.Errorf("report.format must be text or json, got %q", c.Report.Format)
	}
	if c.Verify.Parallelism < 0 {
		return fmt.Errorf("verify.parallelism must not be negative")
	}
	if c.Verify.Timeout < 0 {
		return fmt.Errorf("verify.timeout must not be negative")
	}
	return nil
}

// LoadConfig reads and parses a runtime config YAML file.
// Returns default config if the file doesn't exist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadPlatformConfig reads and parses a platform credentials YAML file.
// Performs environment variable interpolation on string values.
func LoadPlatformConfig(path string) (PlatformConfig, error) {
	var cfg PlatformConfig

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read platform config %s: %w", path, err)
	}

	// Interpolate environment variables before parsing.
	interpolated := interpolateEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return cfg, fmt.Errorf("parse platform config %s: %w", path, err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolateEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func interpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match // Leave unresolved if not set.
	})
}
