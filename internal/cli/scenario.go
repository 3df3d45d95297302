package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/pcd/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
	GoldenDir string // golden directory; default <scenario dir>/golden
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// ScenarioSummary holds the overall result of a scenario run.
type ScenarioSummary struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario PATH...",
		Short: "Run YAML scenarios against fresh devices",
		Long: `Run scenario files, or every .yaml/.yml file under a directory. Each
scenario runs on its own device; step expectations and final assertions
are checked, and the trace is compared with a golden file when one exists.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing paths, etc.)

Examples:
  pcd scenario ./scenarios
  pcd scenario ./scenarios --filter "seek-*"
  pcd scenario ./scenarios/literal.yaml --update`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory")

	return cmd
}

func runScenarios(cmd *cobra.Command, opts *ScenarioOptions, paths []string) error {
	var files []string
	for _, p := range paths {
		found, err := findScenarioFiles(p, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		files = append(files, found...)
	}

	summary := ScenarioSummary{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	if len(files) == 0 {
		return outputScenarios(cmd, opts, summary)
	}

	for _, file := range files {
		res := runScenarioFile(file, opts)
		if opts.Format != "json" {
			printScenarioResult(cmd.OutOrStdout(), res)
		}
		summary.Scenarios = append(summary.Scenarios, res)
		if res.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}

	return outputScenarios(cmd, opts, summary)
}

// findScenarioFiles returns path itself if it is a file, else every YAML
// file beneath it matching filter.
func findScenarioFiles(path, filter string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(p), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, p)
		return nil
	})
	return files, err
}

func runScenarioFile(file string, opts *ScenarioOptions) ScenarioResult {
	fail := func(name, format string, args ...any) ScenarioResult {
		return ScenarioResult{Name: name, Errors: []string{fmt.Sprintf(format, args...)}}
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return fail(filepath.Base(file), "load error: %v", err)
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return fail(scenario.Name, "execution error: %v", err)
	}

	trace, err := scenario.TraceJSON(result)
	if err != nil {
		return fail(scenario.Name, "trace encoding error: %v", err)
	}

	goldenPath := opts.goldenPath(file, scenario.Name)
	if opts.Update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
			return fail(scenario.Name, "golden update error: %v", err)
		}
		if err := os.WriteFile(goldenPath, trace, 0644); err != nil {
			return fail(scenario.Name, "golden update error: %v", err)
		}
	} else {
		want, err := os.ReadFile(goldenPath)
		switch {
		case os.IsNotExist(err):
			// No golden file: expectations and assertions only.
		case err != nil:
			return fail(scenario.Name, "golden read error: %v", err)
		case !bytes.Equal(want, trace):
			result.AddError("trace does not match golden file (run with --update to regenerate)")
		}
	}

	return ScenarioResult{Name: scenario.Name, Pass: result.Pass, Errors: result.Errors}
}

func (o *ScenarioOptions) goldenPath(scenarioFile, name string) string {
	dir := o.GoldenDir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(scenarioFile), "golden")
	}
	return filepath.Join(dir, name+".golden")
}

func printScenarioResult(w io.Writer, res ScenarioResult) {
	if res.Pass {
		fmt.Fprintf(w, "%s %s\n", color.GreenString("✓"), res.Name)
		return
	}
	fmt.Fprintf(w, "%s %s\n", color.RedString("✗"), res.Name)
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

func outputScenarios(cmd *cobra.Command, opts *ScenarioOptions, summary ScenarioSummary) error {
	f := opts.formatter(cmd)
	var err error
	if summary.Failed > 0 {
		msg := fmt.Sprintf("%d scenario(s) failed", summary.Failed)
		if opts.Format == "json" {
			err = f.encode(CLIResponse{
				Status: "error",
				Data:   summary,
				Error:  &CLIError{Code: "E_SCENARIO_FAILED", Message: msg, Details: failedScenarios(summary)},
			})
		} else {
			fmt.Fprintf(f.Writer, "\nSummary: %d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
		}
		if err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	return f.Emit(summary, func(w io.Writer) {
		if summary.Total == 0 {
			fmt.Fprintln(w, "No scenarios found.")
			return
		}
		fmt.Fprintf(w, "\nSummary: %d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
		fmt.Fprintf(w, "%s All scenarios passed\n", color.GreenString("✓"))
	})
}

// failedScenarios lists the names of failing scenarios.
func failedScenarios(summary ScenarioSummary) []string {
	var names []string
	for _, res := range summary.Scenarios {
		if !res.Pass {
			names = append(names, res.Name)
		}
	}
	return names
}
