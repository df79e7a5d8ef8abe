package eval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinzenz/gmake2cmake/internal/makefile"
)

func TestExpandBareAndBracedVariables(t *testing.T) {
	e := NewEnv()
	e.Set("NAME", makefile.OpSimple, "widget")
	require.Equal(t, "widget.o", e.Expand("$(NAME).o"))
	require.Equal(t, "widget.o", e.Expand("${NAME}.o"))
}

func TestExpandDollarDollarIsLiteralDollar(t *testing.T) {
	e := NewEnv()
	require.Equal(t, "$5", e.Expand("$$5"))
}

func TestExpandPatsubst(t *testing.T) {
	e := NewEnv()
	e.Set("SRCS", makefile.OpSimple, "a.c b.c c.c")
	require.Equal(t, "a.o b.o c.o", e.Expand("$(patsubst %.c,%.o,$(SRCS))"))
}

func TestExpandFilterAndFilterOut(t *testing.T) {
	e := NewEnv()
	e.Set("SRCS", makefile.OpSimple, "a.c b.cpp c.c")
	require.Equal(t, "a.c c.c", e.Expand("$(filter %.c,$(SRCS))"))
	require.Equal(t, "b.cpp", e.Expand("$(filter-out %.c,$(SRCS))"))
}

func TestExpandAddprefixAddsuffix(t *testing.T) {
	e := NewEnv()
	require.Equal(t, "-Ia -Ib", e.Expand("$(addprefix -I,a b)"))
	require.Equal(t, "a.o b.o", e.Expand("$(addsuffix .o,a b)"))
}

func TestExpandForeachBindsLoopVariablePerIteration(t *testing.T) {
	e := NewEnv()
	got := e.Expand("$(foreach lib,a b c,-l$(lib))")
	require.Equal(t, "-la -lb -lc", got)
}

func TestExpandForeachRestoresPriorBindingAfterward(t *testing.T) {
	e := NewEnv()
	e.Set("lib", makefile.OpSimple, "outer")
	e.Expand("$(foreach lib,a b,-l$(lib))")
	require.Equal(t, "outer", e.Get("lib"))
}

func TestExpandIfFunction(t *testing.T) {
	e := NewEnv()
	require.Equal(t, "yes", e.Expand("$(if ok,yes,no)"))
	require.Equal(t, "no", e.Expand("$(if ,yes,no)"))
}

func TestExpandUnsupportedFunctionInvokesHookAndYieldsEmpty(t *testing.T) {
	e := NewEnv()
	var captured string
	got := e.ExpandFull("$(eval $(call DEFINE_RULE,foo))", nil, func(name, raw string) string {
		captured = raw
		return ""
	})
	require.Equal(t, "", got)
	require.Equal(t, "$(eval $(call DEFINE_RULE,foo))", captured)
}

func TestExpandWildcardDelegatesToHook(t *testing.T) {
	e := NewEnv()
	got := e.ExpandFull("$(wildcard *.c)", func(pattern string) []string {
		return []string{"a.c", "b.c"}
	}, nil)
	require.Equal(t, "a.c b.c", got)
}

func TestExpandDetectsSelfReferentialCycle(t *testing.T) {
	e := NewEnv()
	var looped string
	e.SetCycleHook(func(name string) { looped = name })
	e.Set("X", makefile.OpRecursive, "$(X)")
	e.Expand("$(X)")
	require.Equal(t, "X", looped)
}

func TestAutomaticVariableSingleCharExpansion(t *testing.T) {
	e := NewEnv()
	e.SetAuto("@", "out.o")
	require.Equal(t, "out.o", e.Expand("$@"))
}
