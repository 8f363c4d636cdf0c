package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent supervision cycles",
	Long:  `Retrieve the recorded restart history: one row per cycle with PID, runtime, and exit code.`,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of cycles to show")
}

type cycleInfo struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Seq         int       `json:"seq"`
	PID         int       `json:"pid"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	ExitCode    int       `json:"exit_code"`
	LaunchError string    `json:"launch_error,omitempty"`
}

type historyResponse struct {
	Cycles []cycleInfo `json:"cycles"`
	Count  int         `json:"count"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/api/cycles?limit=%d", GetServerURL(), historyLimit)

	httpReq, err := CreateAuthenticatedRequest("GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	client := &http.Client{}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result historyResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
	} else {
		if len(result.Cycles) == 0 {
			fmt.Println("No cycles recorded")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Seq", "PID", "Started", "Ran For", "Exit", "Note")

		for _, c := range result.Cycles {
			ranFor := c.EndedAt.Sub(c.StartedAt).Truncate(time.Second).String()

			note := ""
			if c.LaunchError != "" {
				note = "launch failed: " + c.LaunchError
			}

			table.Append(
				fmt.Sprintf("%d", c.Seq),
				fmt.Sprintf("%d", c.PID),
				c.StartedAt.Format("2006-01-02 15:04:05"),
				ranFor,
				fmt.Sprintf("%d", c.ExitCode),
				note,
			)
		}

		table.Render()
		fmt.Printf("\nTotal cycles shown: %d\n", result.Count)
	}

	return nil
}
