package unknown

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinzenz/gmake2cmake/internal/diag"
)

func TestRecordAssignsMonotonicIDsAndPairsDiagnostic(t *testing.T) {
	sink := diag.NewSink()
	r := New(sink)

	c1 := r.Record(Construct{
		Category: CategoryMakeFunction,
		Raw:      "$(eval $(call DEFINE_RULE,foo))",
		Impact:   Impact{Phase: PhaseEvaluate, Severity: diag.Warn},
	})
	c2 := r.Record(Construct{
		Category: CategoryMakeSyntax,
		Raw:      "garbled line",
		Impact:   Impact{Phase: PhaseParse, Severity: diag.Warn},
	})

	require.Equal(t, "UC0001", c1.ID)
	require.Equal(t, "UC0002", c2.ID)
	require.Equal(t, 2, r.Len())
	require.Equal(t, 2, sink.Len())
}

func TestRecordTrimsRawSnippetTo200Chars(t *testing.T) {
	sink := diag.NewSink()
	r := New(sink)
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	c := r.Record(Construct{Category: CategoryOther, Raw: string(long), Impact: Impact{Phase: PhaseBuildGraph, Severity: diag.Warn}})
	require.Len(t, c.Raw, 200)
}

func TestByCategoryFilters(t *testing.T) {
	sink := diag.NewSink()
	r := New(sink)
	r.Record(Construct{Category: CategoryMakeFunction, Impact: Impact{Phase: PhaseEvaluate, Severity: diag.Warn}})
	r.Record(Construct{Category: CategoryMakeSyntax, Impact: Impact{Phase: PhaseParse, Severity: diag.Warn}})

	require.Len(t, r.ByCategory(CategoryMakeFunction), 1)
	require.Len(t, r.ByCategory(CategoryMakeSyntax), 1)
	require.Len(t, r.ByCategory(CategoryOther), 0)
}
