// Package cmakegen is the Emitter: a pure function from (Project,
// EmitOptions) to an ordered list of (path, content) files, optionally
// flushed through the filesystem boundary.
package cmakegen

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/fsys"
	"github.com/vinzenz/gmake2cmake/internal/ir"
	"github.com/vinzenz/gmake2cmake/internal/unknown"
)

// EmitOptions parameterizes emission without affecting its purity: the
// same (Project, EmitOptions) pair always yields the same file list.
type EmitOptions struct {
	OutputDir string
	DryRun    bool
}

// File is one emitted (path, content) pair.
type File struct {
	Path    string
	Content string
}

// Emitter renders a Project's CMake representation.
type Emitter struct {
	sink     *diag.Sink
	unknowns *unknown.Registry
	fs       fsys.Boundary
}

// New creates an Emitter.
func New(sink *diag.Sink, unknowns *unknown.Registry, fs fsys.Boundary) *Emitter {
	return &Emitter{sink: sink, unknowns: unknowns, fs: fs}
}

// Emit produces the ordered file list and, unless opts.DryRun, flushes it
// through the filesystem boundary.
func (e *Emitter) Emit(proj *ir.Project, opts EmitOptions) []File {
	groups := planFileLayout(proj)

	var files []File
	files = append(files, e.renderRoot(proj, groups, opts))
	if hasGlobalConfig(proj) {
		files = append(files, e.renderGlobalConfig(proj, opts))
	}
	var groupDirs []string
	for dir := range groups {
		if dir == "." {
			continue // rendered straight into the root file, not a subdirectory
		}
		groupDirs = append(groupDirs, dir)
	}
	sort.Strings(groupDirs)
	for _, dir := range groupDirs {
		files = append(files, e.renderGroup(proj, dir, groups[dir], opts))
	}
	if proj.PackagingEnabled {
		files = append(files, e.renderPackaging(proj, opts)...)
	}

	if !opts.DryRun {
		for _, f := range files {
			if err := e.fs.WriteFile(f.Path, f.Content); err != nil {
				e.sink.Addf(diag.Error, "EMIT_WRITE_FAIL", "failed writing "+f.Path+": "+err.Error(), diag.Location{Path: f.Path}, "emit")
				break
			}
		}
	}
	return files
}

// planFileLayout groups targets by the longest common directory prefix
// of their source files, relative to the project root.
func planFileLayout(proj *ir.Project) map[string][]*ir.Target {
	groups := map[string][]*ir.Target{}
	for _, t := range proj.Targets {
		dir := commonSourceDir(t)
		groups[dir] = append(groups[dir], t)
	}
	return groups
}

func commonSourceDir(t *ir.Target) string {
	if len(t.Sources) == 0 {
		return "."
	}
	common := path.Dir(t.Sources[0].Path)
	for _, s := range t.Sources[1:] {
		common = commonPrefixDir(common, path.Dir(s.Path))
	}
	if common == "" {
		return "."
	}
	return common
}

func commonPrefixDir(a, b string) string {
	ap := strings.Split(a, "/")
	bp := strings.Split(b, "/")
	n := len(ap)
	if len(bp) < n {
		n = len(bp)
	}
	var out []string
	for i := 0; i < n; i++ {
		if ap[i] != bp[i] {
			break
		}
		out = append(out, ap[i])
	}
	if len(out) == 0 {
		return "."
	}
	return strings.Join(out, "/")
}

func hasGlobalConfig(proj *ir.Project) bool {
	gc := proj.GlobalConfig
	return len(gc.Vars) > 0 || len(gc.Flags) > 0 || len(gc.Defines) > 0 || len(gc.Includes) > 0 || len(gc.FeatureToggles) > 0
}

func (e *Emitter) renderRoot(proj *ir.Project, groups map[string][]*ir.Target, opts EmitOptions) File {
	var b strings.Builder
	fmt.Fprintf(&b, "cmake_minimum_required(VERSION 3.20)\n")
	if proj.Version != "" {
		fmt.Fprintf(&b, "project(%s VERSION %s LANGUAGES %s)\n", proj.Name, proj.Version, strings.Join(proj.Languages, " "))
	} else {
		fmt.Fprintf(&b, "project(%s LANGUAGES %s)\n", proj.Name, strings.Join(proj.Languages, " "))
	}
	if hasGlobalConfig(proj) {
		b.WriteString("\ninclude(${CMAKE_CURRENT_LIST_DIR}/ProjectGlobalConfig.cmake)\n")
		for _, bucket := range []string{"c", "cpp", "all"} {
			flags := proj.GlobalConfig.Flags[bucket]
			if len(flags) == 0 {
				continue
			}
			varName := "CMAKE_C_FLAGS_INIT"
			if bucket == "cpp" {
				varName = "CMAKE_CXX_FLAGS_INIT"
			}
			if bucket == "all" {
				fmt.Fprintf(&b, "set(CMAKE_C_FLAGS_INIT \"${CMAKE_C_FLAGS_INIT} %s\")\n", strings.Join(flags, " "))
				fmt.Fprintf(&b, "set(CMAKE_CXX_FLAGS_INIT \"${CMAKE_CXX_FLAGS_INIT} %s\")\n", strings.Join(flags, " "))
				continue
			}
			fmt.Fprintf(&b, "set(%s \"%s\")\n", varName, strings.Join(flags, " "))
		}
	}
	b.WriteString("\n")
	var dirs []string
	for dir := range groups {
		if dir == "." {
			continue
		}
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	for _, dir := range dirs {
		fmt.Fprintf(&b, "add_subdirectory(%s)\n", dir)
	}

	if rootTargets, ok := groups["."]; ok {
		b.WriteString("\n")
		sort.Slice(rootTargets, func(i, j int) bool { return rootTargets[i].PhysicalName < rootTargets[j].PhysicalName })
		for _, t := range rootTargets {
			e.renderTarget(&b, proj, t, ".")
			b.WriteString("\n")
		}
	}
	if proj.PackagingEnabled {
		b.WriteString("include(${CMAKE_CURRENT_LIST_DIR}/Packaging.cmake)\n")
	}
	return File{Path: e.fs.Join(opts.OutputDir, "CMakeLists.txt"), Content: b.String()}
}

func (e *Emitter) renderGlobalConfig(proj *ir.Project, opts EmitOptions) File {
	var b strings.Builder
	gc := proj.GlobalConfig

	var toggleNames []string
	for k := range gc.FeatureToggles {
		toggleNames = append(toggleNames, k)
	}
	sort.Strings(toggleNames)
	for _, name := range toggleNames {
		v := gc.FeatureToggles[name]
		switch val := v.(type) {
		case bool:
			onoff := "OFF"
			if val {
				onoff = "ON"
			}
			fmt.Fprintf(&b, "option(%s \"\" %s)\n", name, onoff)
		default:
			fmt.Fprintf(&b, "set(%s \"%v\" CACHE STRING \"\")\n", name, val)
		}
	}

	ifaceName := strings.ToLower(proj.Namespace) + "_global_options"
	fmt.Fprintf(&b, "\nadd_library(%s INTERFACE)\n", ifaceName)
	if len(gc.Includes) > 0 {
		fmt.Fprintf(&b, "target_include_directories(%s INTERFACE %s)\n", ifaceName, strings.Join(sortedCopy(gc.Includes), " "))
	}
	if len(gc.Defines) > 0 {
		fmt.Fprintf(&b, "target_compile_definitions(%s INTERFACE %s)\n", ifaceName, strings.Join(sortedCopy(gc.Defines), " "))
	}
	fmt.Fprintf(&b, "add_library(%s::GlobalOptions ALIAS %s)\n", proj.Namespace, ifaceName)

	return File{Path: e.fs.Join(opts.OutputDir, "ProjectGlobalConfig.cmake"), Content: b.String()}
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}

func (e *Emitter) renderGroup(proj *ir.Project, dir string, targets []*ir.Target, opts EmitOptions) File {
	var b strings.Builder
	sort.Slice(targets, func(i, j int) bool { return targets[i].PhysicalName < targets[j].PhysicalName })
	for _, t := range targets {
		e.renderTarget(&b, proj, t, dir)
		b.WriteString("\n")
	}
	groupPath := dir
	if groupPath == "." || groupPath == "" {
		groupPath = "."
	}
	return File{Path: e.fs.Join(opts.OutputDir, groupPath, "CMakeLists.txt"), Content: b.String()}
}

func (e *Emitter) renderTarget(b *strings.Builder, proj *ir.Project, t *ir.Target, groupDir string) {
	switch t.Type {
	case ir.TypeExecutable:
		fmt.Fprintf(b, "add_executable(%s)\n", t.PhysicalName)
	case ir.TypeStaticLibrary:
		fmt.Fprintf(b, "add_library(%s STATIC)\n", t.PhysicalName)
	case ir.TypeSharedLibrary:
		fmt.Fprintf(b, "add_library(%s SHARED)\n", t.PhysicalName)
	case ir.TypeObjectLibrary:
		fmt.Fprintf(b, "add_library(%s OBJECT)\n", t.PhysicalName)
	case ir.TypeInterface:
		fmt.Fprintf(b, "add_library(%s INTERFACE)\n", t.PhysicalName)
	default:
		e.unknowns.Record(unknown.Construct{
			Category:        unknown.CategoryToolchainSpecific,
			Raw:             t.Artifact,
			Normalized:      "unmappable target: " + t.Artifact,
			Impact:          unknown.Impact{Phase: unknown.PhaseCMakeGeneration, Severity: diag.Error},
			CMakeStatus:     unknown.StatusNotGenerated,
			SuggestedAction: unknown.ActionManualCustomCommand,
		})
		e.sink.Addf(diag.Error, "EMIT_UNKNOWN_TYPE", "cannot map target type for "+t.Artifact, diag.Location{}, "emit")
		fmt.Fprintf(b, "# unmapped target for artifact %s (see diagnostics)\n", t.Artifact)
		return
	}

	if len(t.Sources) > 0 {
		var rel []string
		for _, s := range t.Sources {
			rel = append(rel, relativeTo(groupDir, s.Path))
		}
		fmt.Fprintf(b, "target_sources(%s PRIVATE %s)\n", t.PhysicalName, strings.Join(rel, " "))
	}
	if len(t.IncludeDirs) > 0 {
		fmt.Fprintf(b, "target_include_directories(%s %s %s)\n", t.PhysicalName, t.Visibility, strings.Join(t.IncludeDirs, " "))
	}
	if len(t.Defines) > 0 {
		fmt.Fprintf(b, "target_compile_definitions(%s %s %s)\n", t.PhysicalName, t.Visibility, strings.Join(t.Defines, " "))
	}
	if len(t.CompileOptions) > 0 {
		fmt.Fprintf(b, "target_compile_options(%s %s %s)\n", t.PhysicalName, t.Visibility, strings.Join(t.CompileOptions, " "))
	}
	if len(t.LinkOptions) > 0 {
		fmt.Fprintf(b, "target_link_options(%s %s %s)\n", t.PhysicalName, t.Visibility, strings.Join(t.LinkOptions, " "))
	}
	if len(t.LinkLibraries) > 0 {
		var names []string
		for _, l := range t.LinkLibraries {
			names = append(names, l.Name)
		}
		fmt.Fprintf(b, "target_link_libraries(%s %s %s)\n", t.PhysicalName, t.Visibility, strings.Join(names, " "))
	}
	if t.Alias != "" {
		fmt.Fprintf(b, "add_library(%s ALIAS %s)\n", t.Alias, t.PhysicalName)
	}
}

func relativeTo(dir, p string) string {
	if dir == "." || dir == "" {
		return p
	}
	rel := strings.TrimPrefix(p, dir+"/")
	if rel == p {
		return p
	}
	return rel
}

func (e *Emitter) renderPackaging(proj *ir.Project, opts EmitOptions) []File {
	exportName := proj.Name + "Targets"
	var installs strings.Builder
	var names []string
	for _, t := range proj.Targets {
		if t.Type == ir.TypeCustom || t.Type == ir.TypeImported {
			continue
		}
		names = append(names, t.PhysicalName)
	}
	sort.Strings(names)
	fmt.Fprintf(&installs, "install(TARGETS %s EXPORT %s)\n", strings.Join(names, " "), exportName)
	if len(proj.GlobalConfig.Includes) > 0 {
		for _, inc := range sortedCopy(proj.GlobalConfig.Includes) {
			fmt.Fprintf(&installs, "install(DIRECTORY %s/ DESTINATION include)\n", inc)
		}
	}
	fmt.Fprintf(&installs, "install(EXPORT %s NAMESPACE %s:: DESTINATION lib/cmake/%s)\n", exportName, proj.Namespace, proj.Name)
	fmt.Fprintf(&installs, "export(EXPORT %s NAMESPACE %s:: FILE ${CMAKE_CURRENT_BINARY_DIR}/%sConfig.cmake)\n", exportName, proj.Namespace, proj.Name)

	packagingFile := File{Path: e.fs.Join(opts.OutputDir, "Packaging.cmake"), Content: installs.String()}

	var configBody strings.Builder
	fmt.Fprintf(&configBody, "include(CMakeFindDependencyMacro)\ninclude(\"${CMAKE_CURRENT_LIST_DIR}/%s.cmake\")\n", exportName)
	configFile := File{Path: e.fs.Join(opts.OutputDir, proj.Name+"Config.cmake"), Content: configBody.String()}

	var versionBody strings.Builder
	version := proj.Version
	if version == "" {
		version = "0.0.0"
	}
	fmt.Fprintf(&versionBody, "set(PACKAGE_VERSION \"%s\")\n", version)
	versionFile := File{Path: e.fs.Join(opts.OutputDir, proj.Name+"ConfigVersion.cmake"), Content: versionBody.String()}

	return []File{packagingFile, configFile, versionFile}
}
