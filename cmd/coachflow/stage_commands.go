package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"coachflow/internal/config"
	"coachflow/internal/pipeline"
	"coachflow/internal/stage"
)

var stageDescriptions = map[string]string{
	config.StageDiscover: "Submit new recordings for transcription",
	config.StagePoll:     "Poll outstanding transcription jobs and store finished transcripts",
	config.StageDeliver:  "Assign homework from the collected transcripts",
}

type stageResult struct {
	Stage    string         `json:"stage"`
	Counts   map[string]int `json:"counts"`
	Failures int            `json:"failures"`
	Error    string         `json:"error,omitempty"`

	outcomes []string
}

func newStageCommands(ctx *commandContext) []*cobra.Command {
	commands := make([]*cobra.Command, 0, len(pipeline.Stages))
	for _, name := range pipeline.Stages {
		commands = append(commands, &cobra.Command{
			Use:   name,
			Short: stageDescriptions[name],
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				results, err := runStages(cmd.Context(), ctx, name)
				if renderErr := renderStageResults(cmd, ctx, results); renderErr != nil {
					return renderErr
				}
				return err
			},
		})
	}
	return commands
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run discover, poll and deliver in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := runStages(cmd.Context(), ctx, pipeline.Stages...)
			if renderErr := renderStageResults(cmd, ctx, results); renderErr != nil {
				return renderErr
			}
			return err
		},
	}
}

// runStages runs each named stage once. A failing stage does not stop the
// ones after it; their errors are joined.
func runStages(cmdCtx context.Context, ctx *commandContext, names ...string) ([]stageResult, error) {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	env, err := ctx.openStageEnv(cmdCtx, nil)
	if err != nil {
		return nil, err
	}
	defer env.close()

	var (
		results []stageResult
		errs    []error
	)
	for _, name := range names {
		if cmdCtx.Err() != nil {
			errs = append(errs, cmdCtx.Err())
			break
		}
		handler, err := env.pipeline.Stage(name)
		if err != nil {
			return results, err
		}
		summary, runErr := env.runner.Run(cmdCtx, handler)
		result := summarize(name, summary)
		if runErr != nil {
			result.Error = runErr.Error()
			errs = append(errs, fmt.Errorf("%s: %w", name, runErr))
		}
		results = append(results, result)
	}
	return results, errors.Join(errs...)
}

func summarize(name string, summary *stage.Summary) stageResult {
	return stageResult{
		Stage:    name,
		Counts:   summary.Counts(),
		Failures: summary.Failures(),
		outcomes: summary.Outcomes(),
	}
}

func renderStageResults(cmd *cobra.Command, ctx *commandContext, results []stageResult) error {
	if len(results) == 0 {
		return nil
	}
	if ctx.jsonOutput() {
		return writeJSON(cmd, results)
	}
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, result := range results {
		for _, line := range renderSectionHeader(result.Stage, colorize) {
			fmt.Fprintln(out, line)
		}
		kind, message := statusOK, "completed"
		switch {
		case result.Error != "":
			kind, message = statusError, result.Error
		case result.Failures > 0:
			kind, message = statusWarn, fmt.Sprintf("%d item(s) failed", result.Failures)
		}
		fmt.Fprintln(out, renderStatusLine("Result", kind, message, colorize))
		if len(result.Counts) > 0 {
			fmt.Fprintln(out, renderTable(
				[]string{"Outcome", "Count"},
				countRows(result),
				[]columnAlignment{alignLeft, alignRight},
			))
		}
		fmt.Fprintln(out)
	}
	return nil
}

func countRows(result stageResult) [][]string {
	rows := make([][]string, 0, len(result.outcomes))
	for _, outcome := range result.outcomes {
		rows = append(rows, []string{outcome, strconv.Itoa(result.Counts[outcome])})
	}
	return rows
}
