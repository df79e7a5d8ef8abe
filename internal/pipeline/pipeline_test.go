package pipeline

import (
	"fmt"
	"path"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinzenz/gmake2cmake/internal/cmakegen"
)

// fakeFS is an in-memory fsys.Boundary keyed by absolute posix paths, so the
// full Discoverer->Parser->Evaluator->IR->Emitter flow can be exercised
// without touching disk.
type fakeFS struct {
	files map[string]string
}

func newFakeFS(files map[string]string) *fakeFS {
	return &fakeFS{files: files}
}

func (f *fakeFS) Exists(p string) bool {
	_, ok := f.files[p]
	return ok
}

func (f *fakeFS) ReadFile(p string) (string, error) {
	c, ok := f.files[p]
	if !ok {
		return "", fmt.Errorf("no such file: %s", p)
	}
	return c, nil
}

func (f *fakeFS) WriteFile(p string, content string) error {
	f.files[p] = content
	return nil
}

func (f *fakeFS) ListDir(p string) ([]string, error) {
	var out []string
	for name := range f.files {
		if path.Dir(name) == p {
			out = append(out, path.Base(name))
		}
	}
	return out, nil
}

func (f *fakeFS) AbsPosix(p string) (string, error) { return path.Clean(p), nil }
func (f *fakeFS) Join(parts ...string) string       { return path.Join(parts...) }
func (f *fakeFS) Base(p string) string              { return path.Base(p) }
func (f *fakeFS) Dir(p string) string               { return path.Dir(p) }

func TestRunTranslatesSingleExecutableMakefile(t *testing.T) {
	fs := newFakeFS(map[string]string{
		"/src/Makefile": "CFLAGS = -O2 -Wall\n\n" +
			"app: main.c\n\tgcc $(CFLAGS) -o app main.c\n",
	})
	res, err := Run(Options{SourceDir: "/src", OutputDir: "/out"}, fs, nil)
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitStatus)
	require.Contains(t, res.Report.Targets, "app") // physical name never carries the namespace prefix

	root, ok := fileNamedTest(res.Files, "/out/CMakeLists.txt")
	require.True(t, ok)
	require.Contains(t, root.Content, "add_executable(app)")
	require.Contains(t, root.Content, "main.c")
}

// TestRunCollapsesTwoStepCompileThenLinkMakefile is the §8 S1 worked
// scenario: a separate compile rule for main.o followed by a link rule
// for app. The link recipe's only "source" token is main.o, which
// InferCompileLine rejects (not a recognized source extension), so it
// must be recognized through facts.CustomCommands rather than becoming a
// second, wrong object_library target.
func TestRunCollapsesTwoStepCompileThenLinkMakefile(t *testing.T) {
	fs := newFakeFS(map[string]string{
		"/src/Makefile": "app: main.o\n\tgcc -o app main.o\n\n" +
			"main.o: main.c\n\tgcc -c main.c -o main.o\n",
	})
	res, err := Run(Options{SourceDir: "/src", OutputDir: "/out"}, fs, nil)
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitStatus)
	require.Len(t, res.Report.Targets, 1)
	require.Contains(t, res.Report.Targets, "app")

	root, ok := fileNamedTest(res.Files, "/out/CMakeLists.txt")
	require.True(t, ok)
	require.Contains(t, root.Content, "add_executable(app)")
	require.Contains(t, root.Content, "main.c")
	require.NotContains(t, root.Content, "add_library(main")
}

func TestRunShortCircuitsEmissionOnMandatoryMissingInclude(t *testing.T) {
	fs := newFakeFS(map[string]string{
		"/src/Makefile": "include missing.mk\nall:\n\techo hi\n",
	})
	res, err := Run(Options{SourceDir: "/src", OutputDir: "/out"}, fs, nil)
	require.NoError(t, err)
	require.NotEqual(t, 0, res.ExitStatus)
	require.Empty(t, res.Files)
}

func TestRunMissingEntryProducesDiagnosticNoPanic(t *testing.T) {
	fs := newFakeFS(map[string]string{})
	res, err := Run(Options{SourceDir: "/src", OutputDir: "/out"}, fs, nil)
	require.NoError(t, err)
	require.NotEqual(t, 0, res.ExitStatus)
	require.True(t, res.Report.ExitStatus != 0)
}

func TestRunHonorsConfigStrictForUnknownKey(t *testing.T) {
	fs := newFakeFS(map[string]string{
		"/src/Makefile":         "app: main.c\n\tgcc -o app main.c\n",
		"/src/gmake2cmake.yaml": "project_name: widget\nbogus_key: 1\nstrict: true\n",
	})
	res, err := Run(Options{SourceDir: "/src", OutputDir: "/out", ConfigPath: "/src/gmake2cmake.yaml"}, fs, nil)
	require.NoError(t, err)
	require.NotEqual(t, 0, res.ExitStatus) // strict mode turns the unknown key into an error

	found := false
	for _, d := range res.Report.Diagnostics {
		if d.Code == "CONFIG_UNKNOWN_KEY" {
			found = true
		}
	}
	require.True(t, found)
}

func TestRenderDiagnosticsTextIncludesLocationAndUnknowns(t *testing.T) {
	fs := newFakeFS(map[string]string{
		"/src/Makefile": "all:\n\t$(eval FOO := bar)\n\techo $(FOO)\n",
	})
	res, err := Run(Options{SourceDir: "/src", OutputDir: "/out"}, fs, nil)
	require.NoError(t, err)
	text := RenderDiagnosticsText(res.Report)
	require.Contains(t, text, "(/src/Makefile:1)")
	require.Contains(t, text, "unrecognized")
}

func fileNamedTest(files []cmakegen.File, suffix string) (cmakegen.File, bool) {
	for _, f := range files {
		if len(f.Path) >= len(suffix) && f.Path[len(f.Path)-len(suffix):] == suffix {
			return f, true
		}
	}
	return cmakegen.File{}, false
}
