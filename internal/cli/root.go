// Package cli implements the stampd command-line interface: the daemon
// entry point plus a handful of operator commands that talk to a running
// daemon over its HTTP API.
package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/stampd-network/stampd/internal/api"
	"github.com/stampd-network/stampd/internal/daemon"
)

var rootCmd = &cobra.Command{
	Use:   "stampd",
	Short: "Loyalty stamp-card transaction daemon",
	Long: `stampd coordinates the loyalty stamp-card lifecycle between customers,
store terminals, and admins: stamp issuance approvals, time-boxed reward
redemption sessions, and legacy card migrations.

Start the daemon with 'stampd serve'; the other commands talk to it over
the local HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the stampd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stampd %s\n", api.Version)
	},
}

// ─── Daemon API Client ──────────────────────────────────────────────────────

// apiBase returns the base URL of the local daemon from the config file.
func apiBase() string {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		cfg = daemon.DefaultConfig()
	}
	return "http://" + cfg.Addr()
}

var httpClient = &http.Client{Timeout: 5 * time.Second}

// apiGet fetches a JSON document from the daemon.
func apiGet(path string, v interface{}) error {
	resp, err := httpClient.Get(apiBase() + path)
	if err != nil {
		return fmt.Errorf("stampd daemon is not reachable at %s\nStart it with: stampd serve", apiBase())
	}
	defer resp.Body.Close()
	return decodeResponse(resp, v)
}

// apiPost posts to the daemon and decodes the JSON response.
func apiPost(path string, v interface{}) error {
	resp, err := httpClient.Post(apiBase()+path, "application/json", nil)
	if err != nil {
		return fmt.Errorf("stampd daemon is not reachable at %s\nStart it with: stampd serve", apiBase())
	}
	defer resp.Body.Close()
	return decodeResponse(resp, v)
}

func decodeResponse(resp *http.Response, v interface{}) error {
	if resp.StatusCode >= 400 {
		var body struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error.Message != "" {
			return fmt.Errorf("%s", body.Error.Message)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
