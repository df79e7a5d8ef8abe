package makefile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/unknown"
)

func mustParse(t *testing.T, src string) *File {
	t.Helper()
	sink := diag.NewSink()
	p := New(sink, unknown.New(sink), "Makefile")
	f, err := p.Parse(strings.NewReader(src), "Makefile")
	require.NoError(t, err)
	return f
}

func TestParseSimpleRule(t *testing.T) {
	f := mustParse(t, "app: main.o\n\tgcc -o app main.o\n")
	require.Len(t, f.Stmts, 1)
	rule, ok := f.Stmts[0].(*Rule)
	require.True(t, ok)
	require.Equal(t, []string{"app"}, rule.Targets)
	require.Equal(t, []string{"main.o"}, rule.Prereqs)
	require.Equal(t, []string{"gcc -o app main.o"}, rule.Recipe)
}

func TestParseAssignmentKinds(t *testing.T) {
	tests := []struct {
		line string
		op   AssignOp
		name string
		val  string
	}{
		{"CFLAGS := -O2", OpSimple, "CFLAGS", "-O2"},
		{"CFLAGS = -O2", OpRecursive, "CFLAGS", "-O2"},
		{"CFLAGS += -Wall", OpAppend, "CFLAGS", "-Wall"},
		{"CFLAGS ?= -O0", OpConditional, "CFLAGS", "-O0"},
	}
	for _, tt := range tests {
		f := mustParse(t, tt.line+"\n")
		require.Len(t, f.Stmts, 1, tt.line)
		va, ok := f.Stmts[0].(*VarAssign)
		require.True(t, ok, tt.line)
		require.Equal(t, tt.op, va.Op, tt.line)
		require.Equal(t, tt.name, va.Name, tt.line)
		require.Equal(t, tt.val, va.Value, tt.line)
	}
}

func TestParsePatternRuleDetection(t *testing.T) {
	f := mustParse(t, "%.o: %.c\n\tgcc -c $< -o $@\n")
	rule := f.Stmts[0].(*Rule)
	require.True(t, rule.IsPattern)
}

func TestParseIncludeOptional(t *testing.T) {
	f := mustParse(t, "-include config.mk\n")
	inc := f.Stmts[0].(*Include)
	require.True(t, inc.Optional)
	require.Equal(t, []string{"config.mk"}, inc.Paths)
}

func TestParseConditionalBlock(t *testing.T) {
	f := mustParse(t, "ifeq ($(CC),clang)\nCFLAGS += -stdlib=libc++\nelse\nCFLAGS += -lstdc++\nendif\n")
	cond := f.Stmts[0].(*Conditional)
	require.Len(t, cond.Branches, 1)
	require.Equal(t, CondIfeq, cond.Branches[0].Op)
	require.NotNil(t, cond.ElseBody)
}

func TestParseUnrecognizedLineBecomesWarning(t *testing.T) {
	sink := diag.NewSink()
	registry := unknown.New(sink)
	p := New(sink, registry, "Makefile")
	_, err := p.Parse(strings.NewReader(".PHONY all clean\n"), "Makefile")
	require.NoError(t, err)

	// ".PHONY all clean" has no rule-defining ':' and no assignment
	// operator, so it falls through to the Unknown-Construct Registry
	// rather than becoming a Rule or VarAssign node.
	require.Len(t, registry.ByCategory(unknown.CategoryMakeSyntax), 1)
	require.Equal(t, 1, sink.Len())
	require.Equal(t, "UNKNOWN_CONSTRUCT", sink.Sorted()[0].Code)
}

func TestParseOrderOnlyPrereqs(t *testing.T) {
	f := mustParse(t, "app: main.o | builddir\n\techo build\n")
	rule := f.Stmts[0].(*Rule)
	require.Equal(t, []string{"main.o"}, rule.Prereqs)
	require.Equal(t, []string{"builddir"}, rule.OrderOnlyPrereqs)
}
