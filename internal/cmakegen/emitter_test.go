package cmakegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/fsys"
	"github.com/vinzenz/gmake2cmake/internal/ir"
	"github.com/vinzenz/gmake2cmake/internal/unknown"
)

func newTestEmitter() (*Emitter, *diag.Sink) {
	sink := diag.NewSink()
	return New(sink, unknown.New(sink), fsys.NewOS()), sink
}

func fileNamed(files []File, suffix string) (File, bool) {
	for _, f := range files {
		if len(f.Path) >= len(suffix) && f.Path[len(f.Path)-len(suffix):] == suffix {
			return f, true
		}
	}
	return File{}, false
}

func TestEmitSingleExecutableRootFile(t *testing.T) {
	e, _ := newTestEmitter()
	proj := &ir.Project{
		Name: "demo", Namespace: "Demo", Languages: []string{"C"},
		Targets: []*ir.Target{{
			PhysicalName: "demo_app", Artifact: "app", Type: ir.TypeExecutable,
			Sources: []ir.SourceFile{{Path: "main.c"}},
		}},
	}
	files := e.Emit(proj, EmitOptions{OutputDir: "/out", DryRun: true})
	require.Len(t, files, 1) // a root-only target needs no subdirectory file
	root, ok := fileNamed(files, "/out/CMakeLists.txt")
	require.True(t, ok)
	require.Contains(t, root.Content, "cmake_minimum_required(VERSION 3.20)")
	require.Contains(t, root.Content, "project(demo LANGUAGES C)")
	require.Contains(t, root.Content, "add_executable(demo_app)")
	require.NotContains(t, root.Content, "add_subdirectory")
}

func TestEmitLibraryWithAliasAndTargetLinkLibraries(t *testing.T) {
	e, _ := newTestEmitter()
	proj := &ir.Project{
		Name: "demo", Namespace: "Demo", Languages: []string{"C"},
		Targets: []*ir.Target{
			{
				PhysicalName: "demo_mylib", Artifact: "libmylib.a", Alias: "Demo::mylib",
				Type: ir.TypeStaticLibrary, Visibility: ir.VisibilityPrivate,
				Sources: []ir.SourceFile{{Path: "lib/lib.c"}},
			},
			{
				PhysicalName: "demo_app", Artifact: "app", Type: ir.TypeExecutable,
				Visibility:    ir.VisibilityPrivate,
				Sources:       []ir.SourceFile{{Path: "lib/main.c"}},
				LinkLibraries: []ir.LinkItem{{Name: "Demo::mylib", Kind: ir.LinkInternal}},
			},
		},
	}
	files := e.Emit(proj, EmitOptions{OutputDir: "/out", DryRun: true})
	group, ok := fileNamed(files, "/out/lib/CMakeLists.txt")
	require.True(t, ok)
	require.Contains(t, group.Content, "add_library(demo_mylib STATIC)")
	require.Contains(t, group.Content, "add_library(Demo::mylib ALIAS demo_mylib)")
	require.Contains(t, group.Content, "target_link_libraries(demo_app PRIVATE Demo::mylib)")
}

func TestEmitGlobalConfigFeatureTogglesAndFlagsInit(t *testing.T) {
	e, _ := newTestEmitter()
	proj := &ir.Project{
		Name: "demo", Namespace: "Demo", Languages: []string{"C"},
		GlobalConfig: ir.GlobalConfig{
			Flags:          map[string][]string{"c": {"-O2"}},
			FeatureToggles: map[string]any{"ENABLE_TESTS": true},
		},
	}
	files := e.Emit(proj, EmitOptions{OutputDir: "/out", DryRun: true})
	root, ok := fileNamed(files, "/out/CMakeLists.txt")
	require.True(t, ok)
	require.Contains(t, root.Content, "include(${CMAKE_CURRENT_LIST_DIR}/ProjectGlobalConfig.cmake)")
	require.Contains(t, root.Content, "CMAKE_C_FLAGS_INIT \"-O2\"")

	cfgFile, ok := fileNamed(files, "/out/ProjectGlobalConfig.cmake")
	require.True(t, ok)
	require.Contains(t, cfgFile.Content, `option(ENABLE_TESTS "" ON)`)
	require.Contains(t, cfgFile.Content, "add_library(Demo::GlobalOptions ALIAS demo_global_options)")
}

func TestEmitPackagingProducesInstallExportAndConfigFiles(t *testing.T) {
	e, _ := newTestEmitter()
	proj := &ir.Project{
		Name: "demo", Namespace: "Demo", Languages: []string{"C"}, PackagingEnabled: true,
		Targets: []*ir.Target{{PhysicalName: "demo_app", Artifact: "app", Type: ir.TypeExecutable}},
	}
	files := e.Emit(proj, EmitOptions{OutputDir: "/out", DryRun: true})

	pkg, ok := fileNamed(files, "/out/Packaging.cmake")
	require.True(t, ok)
	require.Contains(t, pkg.Content, "install(TARGETS demo_app EXPORT demoTargets)")
	require.Contains(t, pkg.Content, "install(EXPORT demoTargets NAMESPACE Demo:: DESTINATION lib/cmake/demo)")

	_, ok = fileNamed(files, "/out/demoConfig.cmake")
	require.True(t, ok)
	_, ok = fileNamed(files, "/out/demoConfigVersion.cmake")
	require.True(t, ok)

	root, ok := fileNamed(files, "/out/CMakeLists.txt")
	require.True(t, ok)
	require.Contains(t, root.Content, "include(${CMAKE_CURRENT_LIST_DIR}/Packaging.cmake)")
}

func TestEmitUnmappableTargetTypeRecordsBothDiagnosticAndUnknownConstruct(t *testing.T) {
	e, sink := newTestEmitter()
	proj := &ir.Project{
		Name: "demo", Namespace: "Demo", Languages: []string{"C"},
		Targets: []*ir.Target{{PhysicalName: "demo_weird", Artifact: "weird.xyz", Type: ir.TypeCustom}},
	}
	e.Emit(proj, EmitOptions{OutputDir: "/out", DryRun: true})

	require.True(t, sink.AnyError())
	foundDiag := false
	for _, d := range sink.Sorted() {
		if d.Code == "EMIT_UNKNOWN_TYPE" {
			foundDiag = true
		}
	}
	require.True(t, foundDiag)
	require.Len(t, e.unknowns.ByCategory(unknown.CategoryToolchainSpecific), 1)
}
