// Command gmake2cmake translates a GNU Make build description into a
// best-effort CMake project plus a structured diagnostic report.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/vinzenz/gmake2cmake/internal/fsys"
	"github.com/vinzenz/gmake2cmake/internal/pipeline"
)

var (
	sourceDir        string
	outputDir        string
	configPath       string
	entryFile        string
	format           string
	dryRun           bool
	packagingEnabled bool
	strict           bool
	verbose          bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gmake2cmake",
		Short: "Translate a GNU Make project into a best-effort CMake project",
		RunE:  runTranslate,
	}
	root.PersistentFlags().StringVar(&sourceDir, "source-dir", ".", "directory containing the Makefile to translate")
	root.PersistentFlags().StringVar(&outputDir, "output-dir", "./cmake-out", "directory to write the generated CMake project into")
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&entryFile, "entry", "", "explicit entry Makefile name, overriding auto-detection")
	root.PersistentFlags().StringVar(&format, "format", "text", "diagnostic report format: text, json, or yaml")
	root.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "compute the output file list without writing it")
	root.PersistentFlags().BoolVar(&packagingEnabled, "with-packaging", false, "emit install()/export() packaging support")
	root.PersistentFlags().BoolVar(&strict, "strict", false, "promote configuration schema warnings to errors")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline progress to stderr")

	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gmake2cmake version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("gmake2cmake dev")
			return nil
		},
	}
}

func runTranslate(cmd *cobra.Command, args []string) error {
	logger := log.New(os.Stderr, "gmake2cmake: ", 0)

	opts := pipeline.Options{
		SourceDir:        sourceDir,
		EntryFile:        entryFile,
		OutputDir:        outputDir,
		ConfigPath:       configPath,
		DryRun:           dryRun,
		PackagingEnabled: packagingEnabled,
		Strict:           strict,
		Verbose:          verbose,
	}

	result, err := pipeline.Run(opts, fsys.NewOS(), logger)
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}

	switch format {
	case "json":
		out, jerr := result.Report.JSON()
		if jerr != nil {
			return jerr
		}
		fmt.Println(out)
	case "yaml":
		out, yerr := result.Report.YAML()
		if yerr != nil {
			return yerr
		}
		fmt.Print(out)
	default:
		fmt.Print(pipeline.RenderDiagnosticsText(result.Report))
		fmt.Printf("exit status: %d\n", result.ExitStatus)
	}

	if result.ExitStatus != 0 {
		os.Exit(result.ExitStatus)
	}
	return nil
}
