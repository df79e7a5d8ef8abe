// Package pipeline implements the Orchestrator: it runs Discovery,
// Parsing, Evaluation, IR construction, and Emission in order, carrying
// the diagnostic sink and unknown-construct registry, and short-circuits
// emission whenever an earlier stage recorded an error.
package pipeline

import (
	"bytes"
	"fmt"
	"log"
	"strings"

	"github.com/vinzenz/gmake2cmake/internal/cmakegen"
	"github.com/vinzenz/gmake2cmake/internal/config"
	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/eval"
	"github.com/vinzenz/gmake2cmake/internal/fsys"
	"github.com/vinzenz/gmake2cmake/internal/ir"
	"github.com/vinzenz/gmake2cmake/internal/makefile"
	"github.com/vinzenz/gmake2cmake/internal/report"
	"github.com/vinzenz/gmake2cmake/internal/unknown"

	discoverpkg "github.com/vinzenz/gmake2cmake/internal/discover"
)

// Options is the invocation contract: what the Orchestrator's consumers
// provide.
type Options struct {
	SourceDir        string
	EntryFile        string
	OutputDir        string
	ConfigPath       string
	DryRun           bool
	PackagingEnabled bool
	Strict           bool
	Verbose          bool
}

// Result is what one run produces for external rendering.
type Result struct {
	ExitStatus int
	Report     report.Report
	Files      []cmakegen.File
}

// Run executes the full pipeline.
func Run(opts Options, fs fsys.Boundary, logger *log.Logger) (Result, error) {
	sink := diag.NewSink()
	unknowns := unknown.New(sink)

	cfg, err := config.Load(fs, opts.ConfigPath, opts.SourceDir, sink)
	if err != nil {
		return Result{}, fmt.Errorf("loading configuration: %w", err)
	}
	if opts.PackagingEnabled {
		cfg.PackagingEnabled = true
	}
	if opts.Strict {
		cfg.Strict = true
	}
	if osFS, ok := fs.(*fsys.OS); ok {
		osFS.MaxFileSize = cfg.MaxFileSizeBytes
	}

	disc := discoverpkg.New(fs, sink)
	entryAbs, ok := disc.ResolveEntry(opts.SourceDir, opts.EntryFile)
	if !ok {
		return finish(sink, unknowns, nil), nil
	}

	fileNodes, ok := disc.Discover(entryAbs)
	if !ok {
		return finish(sink, unknowns, nil), nil
	}
	if logger != nil && opts.Verbose {
		logger.Printf("discovered %d file(s) from %s", len(fileNodes), entryAbs)
	}

	if sink.AnyError() {
		return finish(sink, unknowns, nil), nil
	}

	var evalNodes []eval.FileNode
	for _, fn := range fileNodes {
		p := makefile.New(sink, unknowns, fn.AbsPath)
		parsed, perr := p.Parse(bytes.NewReader([]byte(fn.Content)), fn.AbsPath)
		if perr != nil {
			sink.Addf(diag.Error, "FS_READ", "failed parsing "+fn.AbsPath+": "+perr.Error(), diag.Location{Path: fn.AbsPath}, "parse")
			continue
		}
		evalNodes = append(evalNodes, eval.FileNode{Path: fn.AbsPath, File: parsed})
	}

	if sink.AnyError() {
		return finish(sink, unknowns, nil), nil
	}

	evaluator := eval.New(sink, unknowns, cfg, fs)
	facts := evaluator.Evaluate(evalNodes)

	if sink.AnyError() {
		return finish(sink, unknowns, nil), nil
	}

	builder := ir.New(cfg, sink)
	project := builder.Build(facts)

	var targetNames []string
	for _, t := range project.Targets {
		targetNames = append(targetNames, t.PhysicalName)
	}

	if sink.AnyError() {
		return finish(sink, unknowns, targetNames), nil
	}

	emitter := cmakegen.New(sink, unknowns, fs)
	files := emitter.Emit(project, cmakegen.EmitOptions{OutputDir: opts.OutputDir, DryRun: opts.DryRun})

	result := finish(sink, unknowns, targetNames)
	result.Files = files
	if !opts.DryRun {
		writeReportFiles(fs, sink, opts.OutputDir, result.Report)
		result.ExitStatus = sink.ExitCode()
	}
	return result, nil
}

// writeReportFiles flushes the JSON, YAML, and Markdown renderings of the
// run's report alongside the generated CMake project, mirroring how the
// Emitter writes its own output files through the same Filesystem
// Boundary. A write failure here is reported, not propagated as a Go
// error, since the translation itself already completed.
func writeReportFiles(fs fsys.Boundary, sink *diag.Sink, outputDir string, rep report.Report) {
	jsonDoc, err := rep.JSON()
	if err != nil {
		sink.Addf(diag.Error, "REPORT_WRITE_FAIL", "failed rendering report.json: "+err.Error(), diag.Location{}, "report")
		return
	}
	if err := fs.WriteFile(fs.Join(outputDir, "report.json"), jsonDoc); err != nil {
		sink.Addf(diag.Error, "REPORT_WRITE_FAIL", "failed writing report.json: "+err.Error(), diag.Location{}, "report")
		return
	}
	if err := fs.WriteFile(fs.Join(outputDir, "report.md"), rep.Markdown()); err != nil {
		sink.Addf(diag.Error, "REPORT_WRITE_FAIL", "failed writing report.md: "+err.Error(), diag.Location{}, "report")
		return
	}
	yamlDoc, err := rep.YAML()
	if err != nil {
		sink.Addf(diag.Error, "REPORT_WRITE_FAIL", "failed rendering report.yaml: "+err.Error(), diag.Location{}, "report")
		return
	}
	if err := fs.WriteFile(fs.Join(outputDir, "report.yaml"), yamlDoc); err != nil {
		sink.Addf(diag.Error, "REPORT_WRITE_FAIL", "failed writing report.yaml: "+err.Error(), diag.Location{}, "report")
	}
}

func finish(sink *diag.Sink, unknowns *unknown.Registry, targetNames []string) Result {
	rep := report.Build(sink, unknowns, targetNames)
	return Result{ExitStatus: sink.ExitCode(), Report: rep}
}

// RenderDiagnosticsText renders the diagnostic stream as plain text: every
// diagnostic, then every unknown construct, one per line.
func RenderDiagnosticsText(rep report.Report) string {
	var b strings.Builder
	for _, d := range rep.Diagnostics {
		if d.Location != "" {
			fmt.Fprintf(&b, "%s: %s: %s (%s)\n", d.Severity, d.Code, d.Message, d.Location)
		} else {
			fmt.Fprintf(&b, "%s: %s: %s\n", d.Severity, d.Code, d.Message)
		}
	}
	for _, u := range rep.Unknowns {
		fmt.Fprintf(&b, "%s: unrecognized %s construct: %s\n", u.ID, u.Category, u.Normalized)
	}
	return b.String()
}
