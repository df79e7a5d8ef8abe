// Package unknown implements the Unknown-Construct Registry: the
// append-only record of every Make construct this translator could not
// faithfully represent.
package unknown

import (
	"fmt"

	"github.com/vinzenz/gmake2cmake/internal/diag"
)

type Category string

const (
	CategoryMakeSyntax        Category = "make_syntax"
	CategoryMakeFunction      Category = "make_function"
	CategoryShellCommand      Category = "shell_command"
	CategoryConditionalLogic  Category = "conditional_logic"
	CategoryToolchainSpecific Category = "toolchain_specific"
	CategoryOther             Category = "other"
)

type Phase string

const (
	PhaseParse           Phase = "parse"
	PhaseEvaluate        Phase = "evaluate"
	PhaseBuildGraph      Phase = "build_graph"
	PhaseCMakeGeneration Phase = "cmake_generation"
)

type CMakeStatus string

const (
	StatusNotGenerated       CMakeStatus = "not_generated"
	StatusPartiallyGenerated CMakeStatus = "partially_generated"
	StatusApproximate        CMakeStatus = "approximate"
)

type SuggestedAction string

const (
	ActionManualReview        SuggestedAction = "manual_review"
	ActionManualCustomCommand SuggestedAction = "manual_custom_command"
	ActionRequiresMapping     SuggestedAction = "requires_mapping"
)

// Context carries surrounding state at the point a construct was recorded.
type Context struct {
	EnclosingTargets []string
	VariablesInScope []string
	IncludeStack     []string
}

// Impact describes where and how severely a construct affected translation.
type Impact struct {
	Phase    Phase
	Severity diag.Severity
}

// Construct is one entry in the registry.
type Construct struct {
	ID              string
	Category        Category
	Location        diag.Location
	Raw             string
	Normalized      string
	Context         Context
	Impact          Impact
	CMakeStatus     CMakeStatus
	SuggestedAction SuggestedAction
}

const rawTrimLimit = 200

// Registry assigns stable, monotonically increasing ids of the form
// UC0001, UC0002, ... reset at the start of every run.
type Registry struct {
	counter int
	items   []Construct
	sink    *diag.Sink
}

// New creates an empty Registry that pairs every recorded construct with a
// diagnostic in sink.
func New(sink *diag.Sink) *Registry {
	return &Registry{sink: sink}
}

// Record appends a construct, assigning it the next id, and emits the
// paired UNKNOWN_CONSTRUCT diagnostic at the derived severity.
func (r *Registry) Record(c Construct) Construct {
	r.counter++
	c.ID = fmt.Sprintf("UC%04d", r.counter)
	if len(c.Raw) > rawTrimLimit {
		c.Raw = c.Raw[:rawTrimLimit]
	}
	if c.Normalized == "" {
		c.Normalized = c.Raw
	}
	r.items = append(r.items, c)
	r.sink.Addf(c.Impact.Severity, "UNKNOWN_CONSTRUCT", "unsupported construct "+c.ID+": "+c.Normalized, c.Location, string(c.Category))
	return c
}

// All returns every recorded construct in insertion order.
func (r *Registry) All() []Construct {
	return r.items
}

// Len reports how many constructs have been recorded.
func (r *Registry) Len() int {
	return len(r.items)
}

// ByCategory filters the registry's entries.
func (r *Registry) ByCategory(cat Category) []Construct {
	var out []Construct
	for _, c := range r.items {
		if c.Category == cat {
			out = append(out, c)
		}
	}
	return out
}
