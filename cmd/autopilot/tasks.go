package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-autopilot/internal/observability"
	"github.com/jonathan/job-autopilot/internal/pipeline/steps"
	"github.com/jonathan/job-autopilot/internal/types"
)

// taskNeeds lists the providers each task requires.
var taskNeeds = map[string]needs{
	steps.TaskAutoDraft: {LLM: true},
	steps.TaskSend:      {Mail: true},
}

var taskDescriptions = map[string]string{
	steps.TaskScrape:    "Scrape every enabled source and ingest the postings",
	steps.TaskMatch:     "Match recent postings against every active user",
	steps.TaskAutoDraft: "Draft applications for users in automatic modes",
	steps.TaskSend:      "Send due applications under the send lock",
	steps.TaskSweep:     "Deactivate stale postings and recover stuck sends",
}

var runCmd = &cobra.Command{
	Use:   "run [task...]",
	Short: "Run batch tasks in dependency order",
	Long: `Run the named batch tasks, or every task when none are named, in
dependency order. A task whose dependency failed in the same run is skipped.`,
	ValidArgs: steps.Names(),
	Args:      cobra.OnlyValidArgs,
	RunE:      runTasks,
}

func init() {
	for _, name := range steps.Names() {
		rootCmd.AddCommand(newTaskCommand(name))
	}
	rootCmd.AddCommand(runCmd)
}

func newTaskCommand(name string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: taskDescriptions[name],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTaskNames(cmd, []string{name})
		},
	}
}

func runTasks(cmd *cobra.Command, args []string) error {
	names := args
	if len(names) == 0 {
		names = steps.Names()
	}
	return runTaskNames(cmd, names)
}

// requiredNeeds merges the needs of every task the plan will run.
func requiredNeeds(order []string) needs {
	var req needs
	for _, name := range order {
		n := taskNeeds[name]
		req.LLM = req.LLM || n.LLM
		req.Mail = req.Mail || n.Mail
	}
	return req
}

func runTaskNames(cmd *cobra.Command, names []string) error {
	order, err := steps.Plan(names)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, requiredNeeds(order))
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.registry.RunAll(ctx, order)
	if verbose {
		printer := observability.NewPrinter(cmd.ErrOrStderr())
		for _, r := range results {
			printer.PrintBatchResult(r)
		}
	}
	if printErr := printResults(cmd.OutOrStdout(), results); printErr != nil && err == nil {
		err = printErr
	}
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Status == types.BatchFailed {
			return fmt.Errorf("task %s failed", r.Task)
		}
	}
	return nil
}

func printResults(out io.Writer, results []*types.BatchResult) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	return nil
}
