// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

var (
	submitOwner string
	submitWait  bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <message>",
	Short: "Submit a message for workflow detection and execution",
	Long: `Submit sends a message to the orchestrator. When the message
qualifies as a multi-agent workflow the command prints the workflow handle;
otherwise it reports that no workflow was detected.

With --wait the command follows the workflow's event stream until it
finishes.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitOwner, "owner", "", "owner ID recorded on the workflow")
	submitCmd.Flags().BoolVar(&submitWait, "wait", false, "follow the event stream until the workflow finishes")
	rootCmd.AddCommand(submitCmd)
}

type submitResult struct {
	IsWorkflow        bool     `json:"is_workflow"`
	WorkflowID        string   `json:"workflow_id"`
	ParticipantAgents []string `json:"participant_agents"`
	EstimatedSeconds  int      `json:"estimated_seconds"`
}

func runSubmit(cmd *cobra.Command, args []string) error {
	body, err := json.Marshal(map[string]string{
		"message":  args[0],
		"owner_id": submitOwner,
	})
	if err != nil {
		return err
	}

	resp, err := httpClient().Post(apiURL("/workflows"), "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("submit: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var result submitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if !result.IsWorkflow {
		fmt.Println("No workflow detected; the message does not need multi-agent handling.")
		return nil
	}

	fmt.Printf("Workflow %s started\n", result.WorkflowID)
	fmt.Printf("  agents:    %s\n", strings.Join(result.ParticipantAgents, ", "))
	fmt.Printf("  estimated: %ds\n", result.EstimatedSeconds)

	if submitWait {
		return followWorkflow(result.WorkflowID)
	}
	return nil
}
