package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// newHealthcheckCmd builds the probe the container HEALTHCHECK runs: GET
// /health with a bounded timeout, exit code reporting the verdict.
func newHealthcheckCmd(app *appState) *cobra.Command {
	var (
		url     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the running server's /health endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := url
			if target == "" {
				target = healthURL(app.cfg.Listen)
			}

			client := &http.Client{Timeout: timeout}
			resp, err := client.Get(target)
			if err != nil {
				return fmt.Errorf("health probe failed: %w", err)
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, probeReason(body))
			}

			fmt.Fprintln(cmd.OutOrStdout(), "healthy")
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Health endpoint URL; defaults to the configured listen address")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Probe timeout")

	return cmd
}

// healthURL derives a loopback probe URL from a listen address like
// ":8000" or "0.0.0.0:8000".
func healthURL(listen string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(listen))
	if err != nil || port == "" {
		return "http://127.0.0.1:8000/health"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s/health", net.JoinHostPort(host, port))
}

func probeReason(body []byte) string {
	var parsed struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Status == "" {
		return strings.TrimSpace(string(body))
	}
	if parsed.Reason == "" {
		return parsed.Status
	}
	return fmt.Sprintf("%s (%s)", parsed.Status, parsed.Reason)
}
