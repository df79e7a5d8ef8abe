// Package report renders the translator's diagnostic and unknown-
// construct output as the structured JSON report, plus supplemental YAML
// and Markdown renderings of the same data.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/unknown"
)

// Report is the rendered view of one translation run.
type Report struct {
	ExitStatus  int              `json:"exit_status" yaml:"exit_status"`
	Diagnostics []diagnosticView `json:"diagnostics" yaml:"diagnostics"`
	Unknowns    []unknownView    `json:"unknown_constructs" yaml:"unknown_constructs"`
	Targets     []string         `json:"targets" yaml:"targets"`
}

type diagnosticView struct {
	Severity string `json:"severity" yaml:"severity"`
	Code     string `json:"code" yaml:"code"`
	Message  string `json:"message" yaml:"message"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
	Origin   string `json:"origin,omitempty" yaml:"origin,omitempty"`
}

type unknownView struct {
	ID              string `json:"id" yaml:"id"`
	Category        string `json:"category" yaml:"category"`
	Location        string `json:"location,omitempty" yaml:"location,omitempty"`
	Raw             string `json:"raw" yaml:"raw"`
	Normalized      string `json:"normalized" yaml:"normalized"`
	Phase           string `json:"phase" yaml:"phase"`
	Severity        string `json:"severity" yaml:"severity"`
	CMakeStatus     string `json:"cmake_status" yaml:"cmake_status"`
	SuggestedAction string `json:"suggested_action" yaml:"suggested_action"`
}

// Build assembles a Report from the sink, registry, and resulting target
// names.
func Build(sink *diag.Sink, registry *unknown.Registry, targetNames []string) Report {
	r := Report{ExitStatus: sink.ExitCode(), Targets: targetNames}
	for _, d := range sink.Sorted() {
		r.Diagnostics = append(r.Diagnostics, diagnosticView{
			Severity: d.Severity.String(), Code: d.Code, Message: d.Message,
			Location: d.Location.String(), Origin: d.Origin,
		})
	}
	for _, u := range registry.All() {
		r.Unknowns = append(r.Unknowns, unknownView{
			ID: u.ID, Category: string(u.Category), Location: u.Location.String(),
			Raw: u.Raw, Normalized: u.Normalized, Phase: string(u.Impact.Phase),
			Severity: u.Impact.Severity.String(), CMakeStatus: string(u.CMakeStatus),
			SuggestedAction: string(u.SuggestedAction),
		})
	}
	return r
}

// JSON renders the report as indented JSON, matching the structured
// report.json the external interface describes.
func (r Report) JSON() (string, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(b), nil
}

// YAML renders the report as a YAML mirror of JSON, for callers that
// prefer YAML tooling over a JSON parser.
func (r Report) YAML() (string, error) {
	b, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal report as yaml: %w", err)
	}
	return string(b), nil
}

// Markdown renders the supplemental human-readable summary.
func (r Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Translation report\n\n")
	fmt.Fprintf(&b, "Exit status: `%d`\n\n", r.ExitStatus)

	counts := map[string]int{}
	for _, d := range r.Diagnostics {
		counts[d.Severity]++
	}
	fmt.Fprintf(&b, "## Diagnostics (%d)\n\n", len(r.Diagnostics))
	fmt.Fprintf(&b, "| Severity | Count |\n|---|---|\n")
	var sevs []string
	for s := range counts {
		sevs = append(sevs, s)
	}
	sort.Strings(sevs)
	for _, s := range sevs {
		fmt.Fprintf(&b, "| %s | %d |\n", s, counts[s])
	}
	b.WriteString("\n")
	for _, d := range r.Diagnostics {
		fmt.Fprintf(&b, "- **%s** `%s` %s", d.Severity, d.Code, d.Message)
		if d.Location != "" {
			fmt.Fprintf(&b, " (%s)", d.Location)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n## Unknown constructs (%d)\n\n", len(r.Unknowns))
	if len(r.Unknowns) > 0 {
		fmt.Fprintf(&b, "| ID | Category | Normalized | Status | Action |\n|---|---|---|---|---|\n")
		for _, u := range r.Unknowns {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", u.ID, u.Category, u.Normalized, u.CMakeStatus, u.SuggestedAction)
		}
	}

	fmt.Fprintf(&b, "\n## Targets (%d)\n\n", len(r.Targets))
	for _, t := range r.Targets {
		fmt.Fprintf(&b, "- %s\n", t)
	}

	return b.String()
}
