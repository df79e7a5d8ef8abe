// Package config is the typed projection over the caller-supplied
// configuration mapping: project identity, target/flag overrides, ignored
// paths, and the strict-mode behavior toggle.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/fsys"
)

// TargetMapping overrides a single target derived from an artifact stem.
type TargetMapping struct {
	DestName     string   `yaml:"dest_name"`
	TypeOverride string   `yaml:"type_override"`
	LinkLibs     []string `yaml:"link_libs"`
	IncludeDirs  []string `yaml:"include_dirs"`
	Defines      []string `yaml:"defines"`
	Options      []string `yaml:"options"`
	Visibility   string   `yaml:"visibility"`
}

// LinkOverride forces the role classification of a link reference.
type LinkOverride struct {
	Classification string `yaml:"classification"`
	Alias          string `yaml:"alias"`
	ImportedTarget string `yaml:"imported_target"`
}

// Model is the parsed, validated configuration document.
type Model struct {
	ProjectName       string                   `yaml:"project_name"`
	Version           string                   `yaml:"version"`
	Namespace         string                   `yaml:"namespace"`
	Languages         []string                 `yaml:"languages"`
	TargetMappings    map[string]TargetMapping `yaml:"target_mappings"`
	FlagMappings      map[string]string        `yaml:"flag_mappings"`
	IgnorePaths       []string                 `yaml:"ignore_paths"`
	GlobalConfigFiles []string                 `yaml:"global_config_files"`
	LinkOverrides     map[string]LinkOverride  `yaml:"link_overrides"`
	PackagingEnabled  bool                     `yaml:"packaging_enabled"`
	Strict            bool                     `yaml:"strict"`
	MaxFileSizeBytes  int64                    `yaml:"max_file_size_bytes"`
}

var allowedKeys = map[string]bool{
	"project_name": true, "version": true, "namespace": true, "languages": true,
	"target_mappings": true, "flag_mappings": true, "ignore_paths": true,
	"global_config_files": true, "link_overrides": true, "packaging_enabled": true,
	"strict": true, "max_file_size_bytes": true,
}

var defaultGlobalConfigFiles = []string{"config.mk", "rules.mk", "defs.mk"}

var identifierSanitizer = regexp.MustCompile(`[^A-Za-z0-9_]`)
var leadingDigit = regexp.MustCompile(`^[0-9]`)

// Load reads and parses the YAML configuration file at path through fs. A
// missing file is not an error: Load returns a zero-value Model with
// defaults applied, mirroring how optional settings files are treated
// elsewhere in this codebase.
func Load(fs fsys.Boundary, path string, sourceDir string, sink *diag.Sink) (*Model, error) {
	m := &Model{}
	if path != "" {
		if !fs.Exists(path) {
			sink.Addf(diag.Warn, "CONFIG_MISSING", "configuration file not found: "+path, diag.Location{Path: path}, "config")
		} else {
			content, err := fs.ReadFile(path)
			if err != nil {
				var tooLarge *fsys.ErrTooLarge
				if errors.As(err, &tooLarge) {
					sink.Addf(diag.Error, "CONFIG_TOO_LARGE", "configuration file exceeds the size limit: "+path, diag.Location{Path: path}, "config")
					m.applyDefaults(sourceDir)
					return m, nil
				}
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			data := []byte(content)
			if err := checkUnknownKeys(data, sink, m.strictFromRaw(data)); err != nil {
				return nil, err
			}
			if err := yaml.Unmarshal(data, m); err != nil {
				sink.Addf(diag.Error, "CONFIG_SCHEMA", "malformed configuration: "+err.Error(), diag.Location{Path: path}, "config")
				return m, nil
			}
		}
	}
	m.applyDefaults(sourceDir)
	m.validate(sink, path)
	return m, nil
}

// strictFromRaw peeks at the raw document for a "strict: true" key before
// full unmarshalling, so unknown-key reporting can honor strict mode even
// if the rest of the document fails to parse.
func (m *Model) strictFromRaw(data []byte) bool {
	var probe struct {
		Strict bool `yaml:"strict"`
	}
	_ = yaml.Unmarshal(data, &probe)
	return probe.Strict
}

func checkUnknownKeys(data []byte, sink *diag.Sink, strict bool) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil // the real unmarshal below will report CONFIG_SCHEMA
	}
	for k := range raw {
		if !allowedKeys[k] {
			sev := diag.Warn
			if strict {
				sev = diag.Error
			}
			sink.Addf(sev, "CONFIG_UNKNOWN_KEY", "unrecognized configuration key: "+k, diag.Location{}, "config")
		}
	}
	return nil
}

func (m *Model) applyDefaults(sourceDir string) {
	if m.ProjectName == "" {
		base := filepath.Base(filepath.Clean(sourceDir))
		if base == "" || base == "." || base == string(filepath.Separator) {
			base = "project"
		}
		m.ProjectName = base
	}
	if m.Namespace == "" {
		m.Namespace = SanitizeIdentifier(m.ProjectName)
	}
	if len(m.GlobalConfigFiles) == 0 {
		m.GlobalConfigFiles = defaultGlobalConfigFiles
	}
	if m.MaxFileSizeBytes <= 0 {
		m.MaxFileSizeBytes = 8 << 20
	}
	m.IgnorePaths = normalizeIgnorePaths(m.IgnorePaths)
}

func (m *Model) validate(sink *diag.Sink, path string) {
	for name, tm := range m.TargetMappings {
		if tm.TypeOverride != "" && !validTargetType(tm.TypeOverride) {
			sink.Addf(diag.Error, "CONFIG_SCHEMA", "target_mappings["+name+"].type_override is invalid: "+tm.TypeOverride, diag.Location{Path: path}, "config")
		}
	}
	for name, lo := range m.LinkOverrides {
		if lo.Classification != "internal" && lo.Classification != "external" && lo.Classification != "imported" {
			sink.Addf(diag.Error, "CONFIG_SCHEMA", "link_overrides["+name+"].classification is invalid: "+lo.Classification, diag.Location{Path: path}, "config")
		}
	}
}

func validTargetType(t string) bool {
	switch t {
	case "executable", "static_library", "shared_library", "object_library", "interface", "imported", "custom":
		return true
	}
	return false
}

// SanitizeIdentifier strips non-identifier characters and ensures the
// result does not begin with a digit, per the namespace-default rule.
func SanitizeIdentifier(s string) string {
	out := identifierSanitizer.ReplaceAllString(s, "")
	if out == "" {
		out = "Project"
	}
	if leadingDigit.MatchString(out) {
		out = "_" + out
	}
	return out
}

// normalizeIgnorePaths posix-normalizes each glob, rejects ".." traversal
// and empty patterns, and strips trailing slashes.
func normalizeIgnorePaths(paths []string) []string {
	var out []string
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		p = filepath.ToSlash(p)
		p = strings.TrimSuffix(p, "/")
		if strings.Contains(p, "..") {
			continue
		}
		out = append(out, p)
	}
	return out
}

// IsIgnored reports whether relPath matches any configured ignore glob.
func (m *Model) IsIgnored(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, pattern := range m.IgnorePaths {
		if matchIgnorePattern(pattern, relPath) {
			return true
		}
	}
	return false
}

func matchIgnorePattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	matched, _ := filepath.Match(pattern, path)
	return matched
}

// ApplyFlagMapping substitutes configured replacements for compile/link
// flags, preserving first-occurrence order and deduplicating. Flags with
// no mapping pass through verbatim and are returned separately as
// unmapped for WARN IR_UNMAPPED_FLAG reporting.
func (m *Model) ApplyFlagMapping(flags []string) (mapped []string, unmapped []string) {
	seen := map[string]bool{}
	for _, f := range flags {
		out := f
		isMapped := false
		if repl, ok := m.FlagMappings[f]; ok {
			out = repl
			isMapped = true
		}
		if seen[out] {
			continue
		}
		seen[out] = true
		mapped = append(mapped, out)
		if !isMapped {
			unmapped = append(unmapped, f)
		}
	}
	return mapped, unmapped
}

// ClassifyLinkOverride looks up a forced classification for a link
// reference stem, if any override matches.
func (m *Model) ClassifyLinkOverride(stem string) (LinkOverride, bool) {
	lo, ok := m.LinkOverrides[stem]
	return lo, ok
}
