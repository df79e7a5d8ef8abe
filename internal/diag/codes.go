package diag

// Category groups codes by the pipeline stage that raises them.
type Category string

const (
	CategoryConfig    Category = "config"
	CategoryDiscovery Category = "discovery"
	CategoryParser    Category = "parser"
	CategoryEval      Category = "eval"
	CategoryIR        Category = "ir"
	CategoryEmit      Category = "emit"
	CategoryReport    Category = "report"
	CategoryFS        Category = "fs"
	CategoryInternal  Category = "internal"
)

// CodeMetadata documents one diagnostic code's category, default severity,
// and a one-line human description used by --explain-code style tooling.
type CodeMetadata struct {
	Code            string
	Category        Category
	DefaultSeverity Severity
	Description     string
}

// registry is the canonical catalog of every code this translator can
// raise. Config/IR severities that vary with strict mode or match outcome
// record their baseline (non-strict) default here.
var registry = map[string]CodeMetadata{
	"CONFIG_MISSING":     {"CONFIG_MISSING", CategoryConfig, Warn, "configuration file path was given but the file does not exist"},
	"CONFIG_SCHEMA":      {"CONFIG_SCHEMA", CategoryConfig, Error, "configuration document failed to parse or validate against the schema"},
	"CONFIG_UNKNOWN_KEY": {"CONFIG_UNKNOWN_KEY", CategoryConfig, Warn, "configuration document contains a key this translator does not recognize"},
	"CONFIG_TOO_LARGE":   {"CONFIG_TOO_LARGE", CategoryConfig, Error, "configuration file exceeds the filesystem boundary's size ceiling"},

	"DISCOVERY_ENTRY_MISSING":            {"DISCOVERY_ENTRY_MISSING", CategoryDiscovery, Error, "no Makefile/makefile/GNUmakefile found at the requested entry, or a mandatory include does not exist"},
	"DISCOVERY_INCLUDE_OPTIONAL_MISSING": {"DISCOVERY_INCLUDE_OPTIONAL_MISSING", CategoryDiscovery, Warn, "an optional -include/sinclude target does not exist"},
	"DISCOVERY_CYCLE":                    {"DISCOVERY_CYCLE", CategoryDiscovery, Error, "include or recursive subdir graph forms a cycle"},
	"DISCOVERY_SUBDIR_MISSING":           {"DISCOVERY_SUBDIR_MISSING", CategoryDiscovery, Warn, "a $(MAKE) -C subdirectory has no recognizable Makefile entry"},
	"DISCOVERY_TEMPLATE_ENTRY":           {"DISCOVERY_TEMPLATE_ENTRY", CategoryDiscovery, Warn, "a Makefile.in/configure-style template was found in place of a concrete Makefile"},

	"PARSER_CONDITIONAL": {"PARSER_CONDITIONAL", CategoryParser, Error, "a conditional block is missing its endif or has a malformed else/endif frame"},

	"EVAL_NO_SOURCE":        {"EVAL_NO_SOURCE", CategoryEval, Warn, "a recognized compile recipe has no -o output token"},
	"EVAL_RECURSIVE_LOOP":   {"EVAL_RECURSIVE_LOOP", CategoryEval, Error, "variable expansion re-entered a variable it was already expanding (self-referential cycle)"},
	"EVAL_UNSUPPORTED_FUNC": {"EVAL_UNSUPPORTED_FUNC", CategoryEval, Warn, "a Make function call has no evaluator support and expanded to empty"},

	"IR_DUP_TARGET":         {"IR_DUP_TARGET", CategoryIR, Error, "two rules resolve to the same physical target name"},
	"IR_DUP_ALIAS":          {"IR_DUP_ALIAS", CategoryIR, Error, "two internal libraries resolve to the same namespaced alias"},
	"IR_UNKNOWN_DEP":        {"IR_UNKNOWN_DEP", CategoryIR, Warn, "a prerequisite does not resolve to any target the project builds"},
	"IR_UNMAPPED_FLAG":      {"IR_UNMAPPED_FLAG", CategoryIR, Warn, "a compile or link flag had no configured mapping and passed through unchanged"},
	"IR_NO_PATTERN_MATCHES": {"IR_NO_PATTERN_MATCHES", CategoryIR, Warn, "a pattern rule's target form matched no concrete prerequisite in the rule graph"},
	"IR_DEPENDENCY_CYCLE":   {"IR_DEPENDENCY_CYCLE", CategoryIR, Error, "target dependency graph forms a cycle"},

	"EMIT_UNKNOWN_TYPE": {"EMIT_UNKNOWN_TYPE", CategoryEmit, Error, "a target has no classifiable CMake target type"},
	"EMIT_WRITE_FAIL":   {"EMIT_WRITE_FAIL", CategoryEmit, Error, "writing a generated CMake file failed"},

	"REPORT_WRITE_FAIL": {"REPORT_WRITE_FAIL", CategoryReport, Error, "writing the translation report failed"},

	"FS_READ": {"FS_READ", CategoryFS, Error, "a required file could not be read through the filesystem boundary"},

	"UNKNOWN_CONSTRUCT": {"UNKNOWN_CONSTRUCT", CategoryInternal, Warn, "a Makefile construct has no known translation and was recorded, not applied"},
	"INTERNAL":          {"INTERNAL", CategoryInternal, Error, "an unexpected internal condition was converted to a diagnostic instead of panicking"},

	"CMAKE_C_FLAGS_INIT":   {"CMAKE_C_FLAGS_INIT", CategoryEmit, Info, "CMAKE_C_FLAGS_INIT was populated from global C flags"},
	"CMAKE_CXX_FLAGS_INIT": {"CMAKE_CXX_FLAGS_INIT", CategoryEmit, Info, "CMAKE_CXX_FLAGS_INIT was populated from global C++ flags"},
}

// Lookup returns the catalog entry for code, if known.
func Lookup(code string) (CodeMetadata, bool) {
	m, ok := registry[code]
	return m, ok
}

// AllCodes returns every cataloged code, unordered.
func AllCodes() []CodeMetadata {
	out := make([]CodeMetadata, 0, len(registry))
	for _, m := range registry {
		out = append(out, m)
	}
	return out
}
