package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/cgast/idemverify/internal/config"
	"github.com/cgast/idemverify/internal/sandbox"
	"github.com/cgast/idemverify/pkg/inspect"
	"github.com/cgast/idemverify/pkg/report"
	"github.com/cgast/idemverify/pkg/resource"
	"github.com/cgast/idemverify/pkg/spec"
	"github.com/cgast/idemverify/pkg/store"
)

// openStore opens the configured database, creating its directory.
func openStore(path string) (*store.BoltStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return st, nil
}

// hostFs is the filesystem inspection reads from. A root other than "/"
// confines every path to that tree, e.g. a mounted image.
func hostFs(root string) afero.Fs {
	fs := afero.NewOsFs()
	if root == "" || root == "/" {
		return fs
	}
	return afero.NewBasePathFs(fs, root)
}

func buildAccounts(cfg config.Config, fs afero.Fs, logger *slog.Logger) inspect.AccountDB {
	source := cfg.Accounts.Source
	if source == "system" && cfg.Sandbox.Root != "" && cfg.Sandbox.Root != "/" {
		logger.Debug("sandbox root set, reading accounts from files", "root", cfg.Sandbox.Root)
		source = "files"
	}
	if source != "files" {
		return inspect.SystemAccounts{}
	}
	a := inspect.NewFileAccounts(fs)
	if cfg.Accounts.Passwd != "" {
		a.PasswdPath = cfg.Accounts.Passwd
	}
	if cfg.Accounts.Group != "" {
		a.GroupPath = cfg.Accounts.Group
	}
	return a
}

// factSource is where recorded facts come from, with the kinds they cover.
type factSource struct {
	source inspect.FactSource
	kinds  []resource.Kind
}

// loadFactFiles reads facts files into memory.
func loadFactFiles(paths []string) (*factSource, error) {
	facts := inspect.NewMapFacts()
	kinds := map[resource.Kind]bool{}
	fs := afero.NewOsFs()
	for _, p := range paths {
		entries, err := spec.LoadFacts(fs, p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			ref := e.Ref()
			facts.Put(ref, e.Attributes)
			kinds[ref.Kind] = true
		}
	}
	return &factSource{source: facts, kinds: sortedKinds(kinds)}, nil
}

// recordedFacts uses the facts imported into the store.
func recordedFacts(st *store.BoltStore) (*factSource, error) {
	records, err := st.ListFacts()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no recorded facts in store, run facts import first")
	}
	kinds := map[resource.Kind]bool{}
	for _, r := range records {
		kinds[r.Ref.Kind] = true
	}
	return &factSource{source: st, kinds: sortedKinds(kinds)}, nil
}

func sortedKinds(set map[resource.Kind]bool) []resource.Kind {
	kinds := make([]resource.Kind, 0, len(set))
	for k := range set {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// buildInspector assembles the resolver chain: kinds present in facts are
// resolved from them, everything else from the host.
func buildInspector(cfg config.Config, facts *factSource, logger *slog.Logger) (*inspect.Inspector, error) {
	sb, err := sandbox.New(sandbox.Config{
		AllowedPaths: cfg.Sandbox.AllowedPaths,
		DeniedPaths:  cfg.Sandbox.DeniedPaths,
		MaxFileSize:  cfg.Sandbox.MaxFileSize,
	})
	if err != nil {
		return nil, err
	}

	fs := hostFs(cfg.Sandbox.Root)
	accounts := buildAccounts(cfg, fs, logger)
	reg := inspect.NewRegistry(inspect.NewHostResolver(fs, sb, accounts))

	if facts != nil {
		for _, k := range facts.kinds {
			if err := reg.Register(k, inspect.FactsResolver{Source: facts.source}); err != nil {
				return nil, err
			}
		}
		logger.Debug("resolving kinds from recorded facts", "kinds", facts.kinds)
	}
	return inspect.New(reg, accounts), nil
}

// sinkOptions selects the sinks of a verify run.
type sinkOptions struct {
	Verbose bool
	GitHub  bool
	Webhook bool
	History bool
}

// buildSinks returns the sinks of a verify run. A nil out skips console
// output.
func buildSinks(out io.Writer, cfg config.Config, platforms config.PlatformConfig, st *store.BoltStore, o sinkOptions) ([]report.Sink, error) {
	var sinks []report.Sink
	switch {
	case out == nil:
	case cfg.Report.Format == "json":
		sinks = append(sinks, &report.JSONSink{W: out, Indent: true})
	default:
		sinks = append(sinks, &report.TextSink{W: out, Verbose: o.Verbose || cfg.Report.Verbose})
	}

	if o.GitHub {
		gh, err := report.NewGitHubIssueSink(platforms.GitHub.Token, platforms.GitHub.Repo, platforms.GitHub.Labels)
		if err != nil {
			return nil, fmt.Errorf("github sink: %w", err)
		}
		sinks = append(sinks, gh)
	}
	if o.Webhook {
		if platforms.Webhook.URL == "" {
			return nil, fmt.Errorf("webhook sink: no url configured")
		}
		sinks = append(sinks, &report.WebhookSink{
			URL:            platforms.Webhook.URL,
			AllowedDomains: platforms.Webhook.AllowedDomains,
		})
	}
	if o.History && st != nil {
		sinks = append(sinks, &report.HistorySink{Store: st})
	}
	return sinks, nil
}
