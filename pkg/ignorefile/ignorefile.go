// Package ignorefile generates and reconciles the config root's ignore-file:
// it computes the tracked-path policy as a pure function of the configured
// extensions, the hidden-file flag, and the discovered nested-repository
// set, and reconciles it against whatever is on disk without rewriting a
// file that already matches (so reconciling never produces a spurious
// commit).
package ignorefile

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/renameio"
	gitignore "github.com/sabhiram/go-gitignore"
)

// Filename is the ignore-file's name at the root of the config tree. The
// generated document has no allow rule matching it, so the file itself is
// not tracked: `git add .` leaves it out and it never appears in a commit.
// The Repository Manager regenerates it from Config on every Start.
const Filename = ".gitignore"

// MetadataLeafPattern re-denies the metadata leaf files every allowed
// extension would otherwise expose underneath them.
const MetadataLeafPattern = "._*"

// UIStateAllowlist is the fixed, path-rooted allowlist of nested UI-state
// files that are tracked regardless of their extension (or lack of one).
var UIStateAllowlist = []string{
	".storage/lovelace",
	".storage/lovelace_dashboards",
	".storage/lovelace_resources",
	".storage/core.restore_state",
}

// AlwaysIgnored is the fixed deny set applied on top of the configured
// extensions: the system's own metadata directory and large binary/log
// categories are never tracked even if their extension were enabled.
var AlwaysIgnored = []string{
	".git",
	"*.db",
	"*.db-journal",
	"*.log",
	"*.log.*",
}

// Config is the input to Generate: the pieces the ignore-file is a pure
// function of.
type Config struct {
	// Extensions is the ordered, de-duplicated set of enabled extensions
	// (without the leading dot), e.g. {"yaml", "yml", "json"}.
	Extensions []string
	// HiddenFiles additionally allows hidden dotfiles of an enabled
	// extension (e.g. ".secrets.yaml").
	HiddenFiles bool
	// NestedRepos are root-relative paths (no leading slash) of nested
	// sub-repositories discovered below the tracked root.
	NestedRepos []string
}

// normalizedExtensions returns cfg.Extensions deduplicated, always sorted,
// so Generate is deterministic regardless of configuration order.
func (c Config) normalizedExtensions() []string {
	seen := make(map[string]bool, len(c.Extensions))
	out := make([]string, 0, len(c.Extensions))
	for _, e := range c.Extensions {
		e = strings.TrimPrefix(strings.ToLower(e), ".")
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

func (c Config) normalizedNestedRepos() []string {
	seen := make(map[string]bool, len(c.NestedRepos))
	out := make([]string, 0, len(c.NestedRepos))
	for _, p := range c.NestedRepos {
		p = filepath.ToSlash(strings.Trim(p, "/"))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Generate renders the ignore-file content. It is a pure function of cfg:
// identical inputs always produce byte-identical output.
func Generate(cfg Config) string {
	var b strings.Builder

	// 1. Deny-all.
	b.WriteString("*\n")

	// 2. Allowlist per configured extension, plus the fixed UI-state
	// allowlist.
	for _, ext := range cfg.normalizedExtensions() {
		b.WriteString("!*." + ext + "\n")
		if cfg.HiddenFiles {
			b.WriteString("!**/.??*." + ext + "\n")
		}
	}
	for _, p := range UIStateAllowlist {
		b.WriteString("!/" + p + "\n")
	}

	// Traversal-enabling line: directories must be entered for the
	// allowlist rules above to ever match a nested file.
	b.WriteString("!*/\n")

	// 3. Re-deny metadata leaf files, then discovered nested repositories.
	b.WriteString(MetadataLeafPattern + "\n")

	for _, p := range cfg.normalizedNestedRepos() {
		b.WriteString("/" + p + "\n")
		b.WriteString("/" + p + "/**\n")
	}

	return b.String()
}

// Reconcile writes the generated ignore-file to root if its current content
// (trimmed) differs from the generated content (trimmed). It reports
// whether a write happened, so the caller knows whether a commit is needed.
func Reconcile(ctx context.Context, root string, cfg Config) (changed bool, err error) {
	generated := Generate(cfg)
	path := filepath.Join(root, Filename)

	existing, readErr := os.ReadFile(path)
	if readErr == nil && strings.TrimSpace(string(existing)) == strings.TrimSpace(generated) {
		return false, nil
	}
	if readErr != nil && !os.IsNotExist(readErr) {
		return false, readErr
	}

	if err := renameio.WriteFile(path, []byte(generated), 0644); err != nil {
		return false, err
	}
	return true, nil
}

// DiscoverNestedRepos recursively finds directories containing their own
// ".git" metadata directory below root, excluding root's own repository.
// Symlinked directories are never followed, matching the watcher's own
// traversal rules.
func DiscoverNestedRepos(root string) ([]string, error) {
	var nested []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			return filepath.SkipDir
		}
		if d.Name() == ".git" {
			rel, relErr := filepath.Rel(root, filepath.Dir(path))
			if relErr == nil && rel != "." {
				nested = append(nested, filepath.ToSlash(rel))
			}
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(nested)
	return nested, nil
}

// Matcher answers membership queries against a generated ignore-file
// document without shelling out to `git check-ignore`, backed by
// github.com/sabhiram/go-gitignore for the actual gitignore-semantics
// matching.
type Matcher struct {
	cfg     Config
	ignorer *gitignore.GitIgnore
}

// NewMatcher compiles cfg's generated ignore-file into a matcher.
func NewMatcher(cfg Config) *Matcher {
	lines := strings.Split(Generate(cfg), "\n")
	return &Matcher{cfg: cfg, ignorer: gitignore.CompileIgnoreLines(lines...)}
}

// Tracked reports whether relPath (slash-separated, relative to root) is in
// the Tracked Path Set: not matched by the ignore-file, i.e. the file would
// actually be captured by `git add .`.
func (m *Matcher) Tracked(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	return !m.ignorer.MatchesPath(relPath)
}

// ExtensionAllowed reports whether relPath's extension is one of the
// configured extensions or it is a fixed UI-state allowlist entry. This is
// the defence-in-depth filter the Watcher and Commit Engine apply
// independently of the ignore-file, in case it has not been reconciled yet.
func ExtensionAllowed(cfg Config, relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, p := range UIStateAllowlist {
		if relPath == p {
			return true
		}
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(relPath)), ".")
	if ext == "" {
		return false
	}
	for _, e := range cfg.normalizedExtensions() {
		if e == ext {
			base := filepath.Base(relPath)
			if strings.HasPrefix(base, "._") {
				return false
			}
			if !cfg.HiddenFiles && strings.HasPrefix(base, ".") {
				return false
			}
			return true
		}
	}
	return false
}

// InNestedRepo reports whether relPath lies inside one of cfg's discovered
// nested sub-repositories.
func InNestedRepo(cfg Config, relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, nested := range cfg.normalizedNestedRepos() {
		match, _ := doublestar.Match(nested+"/**", relPath)
		if match || relPath == nested {
			return true
		}
	}
	return false
}
