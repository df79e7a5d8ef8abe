package report

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/unknown"
)

func TestBuildOrdersDiagnosticsBySeverity(t *testing.T) {
	sink := diag.NewSink()
	sink.Addf(diag.Warn, "W1", "a warning", diag.Location{Path: "Makefile", Line: 3}, "eval")
	sink.Addf(diag.Error, "E1", "an error", diag.Location{}, "ir")
	registry := unknown.New(sink)

	rep := Build(sink, registry, []string{"demo_app"})
	require.Equal(t, 1, rep.ExitStatus)
	require.Len(t, rep.Diagnostics, 2)
	require.Equal(t, "E1", rep.Diagnostics[0].Code)
	require.Equal(t, "W1", rep.Diagnostics[1].Code)
	require.Equal(t, []string{"demo_app"}, rep.Targets)
}

func TestJSONRoundTripsKeyFields(t *testing.T) {
	sink := diag.NewSink()
	sink.Addf(diag.Error, "E1", "boom", diag.Location{Path: "Makefile", Line: 1}, "parse")
	rep := Build(sink, unknown.New(sink), nil)

	out, err := rep.JSON()
	require.NoError(t, err)
	require.Contains(t, out, `"code": "E1"`)
	require.Contains(t, out, `"exit_status": 1`)
}

func TestYAMLMirrorsExitStatusAndTargets(t *testing.T) {
	sink := diag.NewSink()
	sink.Addf(diag.Error, "E1", "boom", diag.Location{Path: "Makefile", Line: 1}, "parse")
	rep := Build(sink, unknown.New(sink), []string{"demo_app"})

	out, err := rep.YAML()
	require.NoError(t, err)
	require.Contains(t, out, "exit_status: 1")
	require.Contains(t, out, "code: E1")
	require.Contains(t, out, "demo_app")
}

func TestMarkdownIncludesDiagnosticsAndUnknowns(t *testing.T) {
	sink := diag.NewSink()
	registry := unknown.New(sink)
	registry.Record(unknown.Construct{
		Category: unknown.CategoryMakeFunction, Raw: "$(eval foo)",
		Impact: unknown.Impact{Phase: unknown.PhaseEvaluate, Severity: diag.Warn},
	})
	rep := Build(sink, registry, []string{"demo_app"})

	md := rep.Markdown()
	require.Contains(t, md, "# Translation report")
	require.Contains(t, md, "UC0001")
	require.Contains(t, md, "demo_app")
}
