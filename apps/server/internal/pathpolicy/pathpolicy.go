// Package pathpolicy decides which repository paths are editable and where
// uploaded assets land. Everything here is a pure function over strings; the
// per-repo configuration comes from a .scribe.yml at the repository root.
package pathpolicy

import (
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the per-repository docs policy, read from .scribe.yml.
type Config struct {
	// DocsRoot restricts editing to a subtree. "." means unrestricted.
	DocsRoot string `yaml:"docsRoot"`
	// AssetsDir is where uploads land. A leading "/" makes it repo-absolute;
	// otherwise it nests under DocsRoot (when the current file lives there)
	// or under the current file's own directory.
	AssetsDir string `yaml:"assetsDir"`
	// AllowedExtensions is the editable extension allow-list (with dots).
	AllowedExtensions []string `yaml:"allowedExtensions"`
}

// DefaultConfig is used when a repository carries no .scribe.yml.
func DefaultConfig() Config {
	return Config{
		DocsRoot:          ".",
		AssetsDir:         "assets",
		AllowedExtensions: []string{".md", ".mdx", ".markdown"},
	}
}

// ParseConfig parses .scribe.yml bytes, filling defaults for absent fields.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.DocsRoot == "" {
		cfg.DocsRoot = "."
	}
	if cfg.AssetsDir == "" {
		cfg.AssetsDir = "assets"
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = DefaultConfig().AllowedExtensions
	}
	return cfg, nil
}

// pathSafe reports whether p is a well-formed repo-relative path: no traversal,
// no absolute prefix, no control or null bytes, restricted character set.
func pathSafe(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return false
	}
	for _, r := range p {
		if r < 0x20 || r == 0x7f {
			return false
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '/' || r == '.' || r == '-' || r == '_' || r == ' ':
		default:
			return false
		}
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return false
		}
	}
	// Normalization must not escape the root.
	clean := path.Clean(p)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}

// IsPathSafe is the exported form of the traversal/charset check, used by
// changeset validation.
func IsPathSafe(p string) bool { return pathSafe(p) }

// IsFileEditable reports whether the given repo-relative path may be edited
// under cfg: the path is safe, its extension is allowed, and it falls under
// the docs root.
func IsFileEditable(p string, cfg Config) bool {
	if !pathSafe(p) {
		return false
	}
	ext := strings.ToLower(path.Ext(p))
	allowed := false
	for _, e := range cfg.AllowedExtensions {
		if strings.ToLower(e) == ext {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}
	return underDocsRoot(p, cfg.DocsRoot)
}

func underDocsRoot(p, root string) bool {
	if root == "" || root == "." {
		return true
	}
	root = strings.Trim(root, "/")
	return p == root || strings.HasPrefix(p, root+"/")
}

// SanitizeFilename normalizes an uploaded filename: lowercase, spaces become
// hyphens, anything outside [a-z0-9-_] is dropped, repeated hyphens collapse,
// and the base name is capped at 100 characters. The extension is preserved.
func SanitizeFilename(name string) string {
	ext := strings.ToLower(path.Ext(name))
	base := strings.TrimSuffix(name, path.Ext(name))
	base = strings.ToLower(base)
	base = strings.ReplaceAll(base, " ", "-")

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	out := b.String()
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	out = strings.Trim(out, "-")
	if out == "" {
		out = "file"
	}
	if len(out) > 100 {
		out = out[:100]
	}
	return out + ext
}

// ComputeAssetDestination returns the repo-relative path where an uploaded
// file should land, given the file currently being edited. Resolution order:
// an absolute AssetsDir (leading "/") is used verbatim; else if DocsRoot is
// set and currentFilePath lives under it, the assets dir nests under DocsRoot;
// else it nests under the current file's own directory.
func ComputeAssetDestination(filename, currentFilePath string, cfg Config) string {
	name := SanitizeFilename(filename)

	if strings.HasPrefix(cfg.AssetsDir, "/") {
		return path.Join(strings.TrimPrefix(cfg.AssetsDir, "/"), name)
	}
	if cfg.DocsRoot != "" && cfg.DocsRoot != "." && underDocsRoot(currentFilePath, cfg.DocsRoot) {
		return path.Join(strings.Trim(cfg.DocsRoot, "/"), cfg.AssetsDir, name)
	}
	return path.Join(path.Dir(currentFilePath), cfg.AssetsDir, name)
}

// ComputeRelativePath produces a POSIX-style relative link from the directory
// of `from` to `target`, so a generated Markdown image link resolves at any
// nesting depth. When no ascent is needed the result is "./"-prefixed.
func ComputeRelativePath(target, from string) string {
	fromDir := path.Dir(from)
	if fromDir == "." {
		fromDir = ""
	}

	fromSegs := splitSegs(fromDir)
	targetSegs := splitSegs(target)

	common := 0
	for common < len(fromSegs) && common < len(targetSegs)-1 &&
		fromSegs[common] == targetSegs[common] {
		common++
	}

	ups := len(fromSegs) - common
	rest := strings.Join(targetSegs[common:], "/")
	if ups == 0 {
		return "./" + rest
	}
	return strings.Repeat("../", ups) + rest
}

func splitSegs(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
