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

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the supervisor's current state",
	Long:  `Query the running daemon for its phase, the child PID, cycle counts, and the latest resource sample.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type statusResponse struct {
	Phase          string    `json:"phase"`
	SessionID      string    `json:"session_id"`
	SessionStarted time.Time `json:"session_started_at"`
	PID            int       `json:"pid"`
	CyclesStarted  int       `json:"cycles_started"`
	CyclesDone     int       `json:"cycles_completed"`
	LastExitCode   int       `json:"last_exit_code"`
	CooldownSecs   float64   `json:"cooldown_seconds"`
	ChildUptime    float64   `json:"child_uptime_seconds"`
	Uptime         float64   `json:"daemon_uptime_seconds"`
	Child          *struct {
		CPUPercent float64 `json:"cpu_percent"`
		RSSBytes   uint64  `json:"rss_bytes"`
	} `json:"child_sample,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/status", GetServerURL())

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

	var status statusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
	} else {
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Property", "Value")

		table.Append([]string{"Phase", status.Phase})
		table.Append([]string{"Session", status.SessionID})
		table.Append([]string{"Session Started", status.SessionStarted.Format("2006-01-02 15:04:05")})

		if status.PID != 0 {
			table.Append([]string{"Bot PID", fmt.Sprintf("%d", status.PID)})
			table.Append([]string{"Bot Uptime", formatSeconds(status.ChildUptime)})
		} else {
			table.Append([]string{"Bot PID", "not running"})
		}

		table.Append([]string{"Cycles Started", fmt.Sprintf("%d", status.CyclesStarted)})
		table.Append([]string{"Cycles Completed", fmt.Sprintf("%d", status.CyclesDone)})
		table.Append([]string{"Last Exit Code", fmt.Sprintf("%d", status.LastExitCode)})
		table.Append([]string{"Cooldown", fmt.Sprintf("%.0fs", status.CooldownSecs)})
		table.Append([]string{"Daemon Uptime", formatSeconds(status.Uptime)})

		if status.Child != nil {
			table.Append([]string{"Bot CPU", fmt.Sprintf("%.1f%%", status.Child.CPUPercent)})
			table.Append([]string{"Bot RSS", fmt.Sprintf("%.1f MB", float64(status.Child.RSSBytes)/(1024*1024))})
		}

		table.Render()
	}

	return nil
}

func formatSeconds(s float64) string {
	d := time.Duration(s * float64(time.Second))
	return d.Truncate(time.Second).String()
}
