// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

var watchOwner bool

var watchCmd = &cobra.Command{
	Use:   "watch <workflow-id | owner-id>",
	Short: "Follow a live event stream",
	Long: `Watch attaches to the server's event stream and prints frames as
they arrive. For a workflow the stream ends when the workflow finishes; with
--owner the argument is an owner ID and the stream covers all of that owner's
workflows until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchOwner, "owner", false, "treat the argument as an owner ID")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchOwner {
		return followStream("/owners/" + args[0] + "/events")
	}
	return followWorkflow(args[0])
}

func followWorkflow(workflowID string) error {
	return followStream("/workflows/" + workflowID + "/events")
}

type streamEvent struct {
	Type       string          `json:"type"`
	WorkflowID string          `json:"workflow_id"`
	Agent      string          `json:"agent"`
	StepIndex  int             `json:"step_index"`
	Payload    json.RawMessage `json:"payload"`
}

func followStream(path string) error {
	// Streams outlive the default client timeout.
	resp, err := http.Get(apiURL(path))
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("open stream: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			return fmt.Errorf("decode frame: %w", err)
		}
		if ev.Type == "heartbeat" {
			continue
		}

		printEvent(ev)
		if ev.Type == "workflow_completed" || ev.Type == "workflow_error" {
			return nil
		}
	}
}

func printEvent(ev streamEvent) {
	switch ev.Type {
	case "workflow_started":
		fmt.Printf("[%s] workflow started\n", ev.WorkflowID)
	case "agent_started":
		fmt.Printf("[%s] step %d: %s started\n", ev.WorkflowID, ev.StepIndex, ev.Agent)
	case "agent_progress":
		var p struct {
			Percentage int    `json:"percentage"`
			Message    string `json:"message"`
		}
		_ = json.Unmarshal(ev.Payload, &p)
		fmt.Printf("[%s] step %d: %s %d%% %s\n", ev.WorkflowID, ev.StepIndex, ev.Agent, p.Percentage, p.Message)
	case "agent_completed":
		var p struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(ev.Payload, &p)
		if p.Error != "" {
			fmt.Printf("[%s] step %d: %s failed: %s\n", ev.WorkflowID, ev.StepIndex, ev.Agent, p.Error)
		} else {
			fmt.Printf("[%s] step %d: %s completed\n", ev.WorkflowID, ev.StepIndex, ev.Agent)
		}
	case "workflow_completed":
		fmt.Printf("[%s] workflow completed\n", ev.WorkflowID)
	case "workflow_error":
		fmt.Printf("[%s] workflow error: %s\n", ev.WorkflowID, string(ev.Payload))
	default:
		out, _ := json.Marshal(ev)
		fmt.Println(string(out))
	}
}
