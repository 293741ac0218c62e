// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	statusSince int
	statusFull  bool
)

var statusCmd = &cobra.Command{
	Use:   "status <workflow-id>",
	Short: "Show a workflow's current state",
	Long: `Status polls the orchestrator for a workflow's progress. By default
it uses the incremental cursor endpoint; --since resumes from a prior cursor
and --full prints the entire stored record instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusSince, "since", -1, "cursor from a previous poll")
	statusCmd.Flags().BoolVar(&statusFull, "full", false, "print the full workflow record")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	workflowID := args[0]

	if statusFull {
		var record map[string]any
		if err := getJSON("/workflows/"+workflowID, &record); err != nil {
			return err
		}
		return printJSON(record)
	}

	var poll map[string]any
	path := fmt.Sprintf("/workflows/%s/status?since=%d", workflowID, statusSince)
	if err := getJSON(path, &poll); err != nil {
		return err
	}
	return printJSON(poll)
}
