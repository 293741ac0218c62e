// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time via ldflags.
	Version = "dev"

	apiAddr string
)

var rootCmd = &cobra.Command{
	Use:   "orchctl",
	Short: "Operator CLI for the workflow orchestrator",
	Long: `orchctl talks to a running orchestrator API.

Submit messages, inspect workflow state, and follow live event streams:

  orchctl submit "assess my portfolio risk" --owner alice
  orchctl status <workflow-id>
  orchctl watch <workflow-id>`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "addr", "http://localhost:8080", "orchestrator API base URL")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("orchctl {{.Version}}\n")
}

func apiURL(path string) string {
	return strings.TrimRight(apiAddr, "/") + path
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// getJSON fetches path and decodes the body into out, surfacing non-2xx
// responses as errors with the server's message.
func getJSON(path string, out any) error {
	resp, err := httpClient().Get(apiURL(path))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
