package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	eventsLimit  int
	eventsFollow bool
)

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show supervisor events",
	Long: `Retrieve recent supervisor events (session banners, starts, stops).
With --follow, stream new events live over a websocket until interrupted.`,
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 20, "maximum number of events to show")
	eventsCmd.Flags().BoolVarP(&eventsFollow, "follow", "f", false, "stream events live")
}

type eventInfo struct {
	Timestamp time.Time `json:"timestamp"`
	Phase     string    `json:"phase"`
	PID       int       `json:"pid"`
	ExitCode  int       `json:"exit_code"`
	Message   string    `json:"message"`
}

type eventsResponse struct {
	Events []eventInfo `json:"events"`
	Count  int         `json:"count"`
}

func runEvents(cmd *cobra.Command, args []string) error {
	if eventsFollow {
		return followEvents()
	}

	url := fmt.Sprintf("%s/api/events?limit=%d", GetServerURL(), eventsLimit)

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

	var result eventsResponse
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
		if len(result.Events) == 0 {
			fmt.Println("No events recorded")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Time", "Phase", "PID", "Message")

		for _, e := range result.Events {
			pid := ""
			if e.PID != 0 {
				pid = fmt.Sprintf("%d", e.PID)
			}
			table.Append(
				e.Timestamp.Format("2006-01-02 15:04:05"),
				e.Phase,
				pid,
				e.Message,
			)
		}

		table.Render()
	}

	return nil
}

// followEvents streams events over the daemon's websocket endpoint
func followEvents() error {
	wsURL := strings.Replace(GetServerURL(), "http", "ws", 1) + "/ws/events"

	header := http.Header{}
	if apiKey != "" {
		header.Set("Authorization", "Bearer "+apiKey)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		return fmt.Errorf("failed to connect to event stream: %w", err)
	}
	defer conn.Close()

	fmt.Println("Streaming events (Ctrl+C to stop)...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() {
		for {
			var e eventInfo
			if err := conn.ReadJSON(&e); err != nil {
				done <- err
				return
			}
			if IsJSONOutput() {
				data, _ := json.Marshal(e)
				fmt.Println(string(data))
			} else {
				fmt.Printf("[%s] %-10s %s\n",
					e.Timestamp.Format("2006-01-02 15:04:05"), e.Phase, e.Message)
			}
		}
	}()

	select {
	case <-sigChan:
		return nil
	case err := <-done:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return nil
		}
		return fmt.Errorf("event stream ended: %w", err)
	}
}
