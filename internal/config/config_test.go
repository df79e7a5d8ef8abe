package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/fsys"
)

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	sink := diag.NewSink()
	m, err := Load(fsys.NewOS(), filepath.Join(t.TempDir(), "missing.yaml"), "/src/widget", sink)
	require.NoError(t, err)
	require.Equal(t, "widget", m.ProjectName)
	require.False(t, sink.AnyError())
	require.Equal(t, 1, sink.Len())
	require.Equal(t, "CONFIG_MISSING", sink.Sorted()[0].Code)
}

func TestLoadEmptyPathSkipsFileEntirely(t *testing.T) {
	sink := diag.NewSink()
	m, err := Load(fsys.NewOS(), "", "/src/widget", sink)
	require.NoError(t, err)
	require.Equal(t, 0, sink.Len())
	require.Equal(t, "widget", m.ProjectName)
}

func TestLoadUnknownKeyWarnsUnlessStrict(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("project_name: demo\nbogus_key: 1\n"), 0o644))

	sink := diag.NewSink()
	_, err := Load(fsys.NewOS(), path, dir, sink)
	require.NoError(t, err)
	require.False(t, sink.AnyError())
	require.Equal(t, "CONFIG_UNKNOWN_KEY", sink.Sorted()[0].Code)
}

func TestLoadUnknownKeyIsErrorUnderStrict(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strict: true\nbogus_key: 1\n"), 0o644))

	sink := diag.NewSink()
	_, err := Load(fsys.NewOS(), path, dir, sink)
	require.NoError(t, err)
	require.True(t, sink.AnyError())
}

func TestLoadMalformedYAMLIsSchemaError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("project_name: [unterminated\n"), 0o644))

	sink := diag.NewSink()
	_, err := Load(fsys.NewOS(), path, dir, sink)
	require.NoError(t, err)
	require.True(t, sink.AnyError())
	require.Equal(t, "CONFIG_SCHEMA", sink.Sorted()[0].Code)
}

func TestLoadOversizedFileIsConfigTooLargeNotAGoError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("project_name: demo\nversion: \"1.0\"\n"), 0o644))

	sink := diag.NewSink()
	tinyFS := &fsys.OS{MaxFileSize: 8}
	m, err := Load(tinyFS, path, dir, sink)
	require.NoError(t, err)
	require.Equal(t, filepath.Base(dir), m.ProjectName) // defaults still applied despite the skipped read
	require.True(t, sink.AnyError())
	require.Equal(t, "CONFIG_TOO_LARGE", sink.Sorted()[0].Code)
}

func TestNamespaceDefaultsFromSanitizedProjectName(t *testing.T) {
	sink := diag.NewSink()
	m, err := Load(fsys.NewOS(), "", "/src/my-cool.lib", sink)
	require.NoError(t, err)
	require.Equal(t, "mycoollib", m.Namespace)
}

func TestSanitizeIdentifierPrefixesLeadingDigit(t *testing.T) {
	require.Equal(t, "_123lib", SanitizeIdentifier("123-lib"))
	require.Equal(t, "Project", SanitizeIdentifier("***"))
}

func TestIsIgnoredGlobstarAndPlainGlob(t *testing.T) {
	m := &Model{IgnorePaths: normalizeIgnorePaths([]string{"vendor/**", "*.generated.c"})}
	require.True(t, m.IsIgnored("vendor/lib/foo.c"))
	require.True(t, m.IsIgnored("vendor"))
	require.False(t, m.IsIgnored("src/vendor-ish.c"))
	require.True(t, m.IsIgnored("foo.generated.c"))
}

func TestNormalizeIgnorePathsRejectsTraversal(t *testing.T) {
	out := normalizeIgnorePaths([]string{"../escape", "ok/**", "  ", "trailing/"})
	require.Equal(t, []string{"ok/**", "trailing"}, out)
}

func TestApplyFlagMappingDedupsPreservesOrder(t *testing.T) {
	m := &Model{FlagMappings: map[string]string{"-Wall": "-Wall-equivalent"}}
	mapped, unmapped := m.ApplyFlagMapping([]string{"-O2", "-Wall", "-O2", "-Wextra"})
	require.Equal(t, []string{"-O2", "-Wall-equivalent", "-Wextra"}, mapped)
	require.Equal(t, []string{"-O2", "-Wextra"}, unmapped)
}
