// Package ir holds the intermediate representation the Emitter consumes:
// a Project made of Targets, built from BuildFacts plus configuration.
package ir

// TargetType is the kind of CMake artifact a Target maps onto.
type TargetType string

const (
	TypeExecutable    TargetType = "executable"
	TypeStaticLibrary TargetType = "static_library"
	TypeSharedLibrary TargetType = "shared_library"
	TypeObjectLibrary TargetType = "object_library"
	TypeInterface     TargetType = "interface"
	TypeImported      TargetType = "imported"
	TypeCustom        TargetType = "custom"
)

// Visibility mirrors CMake's PUBLIC/PRIVATE/INTERFACE property scoping.
type Visibility string

const (
	VisibilityPublic    Visibility = "PUBLIC"
	VisibilityPrivate   Visibility = "PRIVATE"
	VisibilityInterface Visibility = "INTERFACE"
)

// LinkKind classifies one entry in a target's link-libraries list.
type LinkKind string

const (
	LinkInternal LinkKind = "internal"
	LinkExternal LinkKind = "external"
	LinkImported LinkKind = "imported"
)

// LinkItem is one resolved link-library reference.
type LinkItem struct {
	Name string
	Kind LinkKind
}

// SourceFile is one compiled source belonging to a target.
type SourceFile struct {
	Path     string
	Language string
	Flags    []string
}

// CustomCommandRef carries a target's non-compile recipe for
// best-effort custom-command emission.
type CustomCommandRef struct {
	Recipe []string
}

// Target is one emittable CMake target.
type Target struct {
	Artifact       string
	PhysicalName   string
	Alias          string // "" unless Type == internal library
	Type           TargetType
	Sources        []SourceFile
	IncludeDirs    []string
	Defines        []string
	CompileOptions []string
	LinkOptions    []string
	LinkLibraries  []LinkItem
	Dependencies   []string
	Visibility     Visibility
	CustomCommands []CustomCommandRef
}

// GlobalConfig is the project-wide configuration surfaced via
// ProjectGlobalConfig.cmake.
type GlobalConfig struct {
	Vars           map[string]string
	Flags          map[string][]string // bucket -> flags
	Defines        []string
	Includes       []string
	FeatureToggles map[string]any
	Sources        []string
}

// Project is the IR root the Emitter consumes.
type Project struct {
	Name             string
	Version          string
	Namespace        string
	Languages        []string
	Targets          []*Target
	GlobalConfig     GlobalConfig
	PackagingEnabled bool
}
