package eval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinzenz/gmake2cmake/internal/makefile"
)

func TestSetSimpleExpandsImmediately(t *testing.T) {
	e := NewEnv()
	e.Set("BASE", makefile.OpSimple, "lib")
	e.Set("NAME", makefile.OpSimple, "$(BASE)-core")
	e.Set("BASE", makefile.OpSimple, "changed")
	require.Equal(t, "lib-core", e.Get("NAME"))
}

func TestSetRecursiveExpandsOnEveryGet(t *testing.T) {
	e := NewEnv()
	e.Set("BASE", makefile.OpSimple, "lib")
	e.Set("NAME", makefile.OpRecursive, "$(BASE)-core")
	e.Set("BASE", makefile.OpSimple, "changed")
	require.Equal(t, "changed-core", e.Get("NAME"))
}

func TestConditionalAssignOnlyBindsOnce(t *testing.T) {
	e := NewEnv()
	e.Set("CC", makefile.OpConditional, "gcc")
	e.Set("CC", makefile.OpConditional, "clang")
	require.Equal(t, "gcc", e.Get("CC"))
}

func TestAppendOnSimpleExpandsNowAndStaysSimple(t *testing.T) {
	e := NewEnv()
	e.Set("X", makefile.OpSimple, "a")
	e.Set("X", makefile.OpSimple, "b")
	e.Set("FLAGS", makefile.OpSimple, "$(X)")
	e.Set("FLAGS", makefile.OpAppend, "$(X)")
	e.Set("X", makefile.OpSimple, "changed")
	require.Equal(t, "b b", e.Get("FLAGS"))
}

func TestAppendOnUnboundStaysRecursive(t *testing.T) {
	e := NewEnv()
	e.Set("FLAGS", makefile.OpAppend, "-O2")
	e.Set("FLAGS", makefile.OpAppend, "$(EXTRA)")
	e.Set("EXTRA", makefile.OpSimple, "-Wall")
	require.Equal(t, "-O2 -Wall", e.Get("FLAGS"))
}

func TestPushPopMergesBindingsDownIntoParent(t *testing.T) {
	e := NewEnv()
	e.Set("X", makefile.OpSimple, "outer")
	e.Push()
	e.Set("X", makefile.OpSimple, "inner")
	e.Pop()
	require.Equal(t, "inner", e.Get("X"))
}

func TestSetAutoDoesNotPersistPastClearAuto(t *testing.T) {
	e := NewEnv()
	e.SetAuto("@", "app")
	require.Equal(t, "app", e.Get("@"))
	e.ClearAuto()
	require.Equal(t, "", e.Get("@"))
}

func TestSetAutoShadowsButDoesNotOverwritePersistentBinding(t *testing.T) {
	e := NewEnv()
	e.Set("X", makefile.OpSimple, "persistent")
	e.SetAuto("X", "shadow")
	require.Equal(t, "shadow", e.Get("X"))
	e.ClearAuto()
	require.Equal(t, "persistent", e.Get("X"))
}

func TestIsDefinedReflectsExpandedEmptiness(t *testing.T) {
	e := NewEnv()
	require.False(t, e.IsDefined("UNSET"))
	e.Set("UNSET", makefile.OpSimple, "")
	require.False(t, e.IsDefined("UNSET"))
	e.Set("SET", makefile.OpSimple, "value")
	require.True(t, e.IsDefined("SET"))
}
