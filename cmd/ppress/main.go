// Package main implements the ppress CLI for manual operations against the
// promptpressd HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the promptpressd HTTP server
	serverURL string
	// version information
	version = "dev"

	// compress flags
	interaction   string
	complexity    float64
	model         string
	strategy      string
	tokenBudget   int
	historyLength int

	// outcome flags
	userFeedback    float64
	responseQuality float64

	// metrics flags
	window string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ppress",
	Short: "CLI for promptpressd HTTP server operations",
	Long: `ppress is a command-line interface for interacting with the promptpressd
HTTP server. It compresses behavioral profiles into prompt fragments, reports
outcomes, and inspects pipeline metrics.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9093", "promptpressd server URL")

	compressCmd.Flags().StringVar(&interaction, "interaction", "question", "interaction type (question, technical, emotional, creative, greeting, analysis)")
	compressCmd.Flags().Float64Var(&complexity, "complexity", 5, "message complexity on a 0-10 scale")
	compressCmd.Flags().StringVar(&model, "model", "", "target model profile")
	compressCmd.Flags().StringVar(&strategy, "strategy", "", "force a compression strategy (minimal, balanced, comprehensive)")
	compressCmd.Flags().IntVar(&tokenBudget, "budget", 0, "override the token budget")
	compressCmd.Flags().IntVar(&historyLength, "history", 0, "conversation history length")

	outcomeCmd.Flags().Float64Var(&userFeedback, "feedback", -1, "user feedback score in [0,1]")
	outcomeCmd.Flags().Float64Var(&responseQuality, "quality", -1, "response quality score in [0,1]")

	metricsCmd.Flags().StringVar(&window, "window", "", "metrics window as a Go duration (e.g. 30m)")

	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(outcomeCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(healthCmd)
}

// compressCmd compresses a profile from a file or stdin
var compressCmd = &cobra.Command{
	Use:   "compress [profile.json]",
	Short: "Compress a behavioral profile into a prompt fragment",
	Long: `Compress a JSON behavioral profile into a token-budgeted prompt fragment
using the promptpressd server.

Examples:
  # Compress a profile file
  ppress compress profile.json

  # Compress from stdin with an interaction type
  cat profile.json | ppress compress - --interaction technical --complexity 7

  # Pin the strategy and budget
  ppress compress profile.json --strategy minimal --budget 40`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCompress,
}

// outcomeCmd attaches downstream quality signals to a compression record
var outcomeCmd = &cobra.Command{
	Use:   "outcome <record-id>",
	Short: "Report downstream outcome for a compression record",
	Long: `Report user feedback or response quality for a prior compression,
feeding the adaptive tuning loop.

Examples:
  # Report feedback
  ppress outcome 0b5c6e2a-... --feedback 0.9

  # Report both signals
  ppress outcome 0b5c6e2a-... --feedback 0.9 --quality 0.8`,
	Args: cobra.ExactArgs(1),
	RunE: runOutcome,
}

// metricsCmd fetches rolling pipeline metrics
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show rolling pipeline metrics",
	Long: `Fetch rolling-window metrics from the promptpressd server.

Examples:
  # Default window
  ppress metrics

  # Last 10 minutes
  ppress metrics --window 10m`,
	RunE: runMetrics,
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check promptpressd server health",
	Long: `Check the health status of the promptpressd HTTP server.

Examples:
  # Check health
  ppress health

  # Check health on a different server
  ppress health --server http://localhost:8080`,
	RunE: runHealth,
}

// CompressRequest matches internal/httpapi/server.go CompressRequest
type CompressRequest struct {
	Profile       map[string]any `json:"profile"`
	Interaction   string         `json:"interaction"`
	Complexity    float64        `json:"complexity"`
	Model         string         `json:"model,omitempty"`
	TokenBudget   int            `json:"token_budget,omitempty"`
	Strategy      string         `json:"strategy,omitempty"`
	HistoryLength int            `json:"history_length,omitempty"`
}

// CompressResponse matches internal/pipeline Result
type CompressResponse struct {
	PromptText string `json:"prompt_text"`
	RecordID   string `json:"record_id"`
	Metadata   struct {
		Strategy         string   `json:"strategy"`
		TokenBudget      int      `json:"token_budget"`
		ActualTokens     int      `json:"actual_tokens"`
		CompressionRatio float64  `json:"compression_ratio"`
		QualityScore     float64  `json:"quality_score"`
		ProcessingTimeMs float64  `json:"processing_time_ms"`
		ClustersUsed     []string `json:"clusters_used"`
		Error            bool     `json:"error"`
	} `json:"metadata"`
}

// OutcomeRequest matches internal/httpapi/server.go OutcomeRequest
type OutcomeRequest struct {
	RecordID        string   `json:"record_id"`
	UserFeedback    *float64 `json:"user_feedback,omitempty"`
	ResponseQuality *float64 `json:"response_quality,omitempty"`
}

// HealthResponse matches internal/httpapi/server.go HealthResponse
type HealthResponse struct {
	Status string `json:"status"`
}

// runCompress handles the compress command
func runCompress(cmd *cobra.Command, args []string) error {
	var content []byte
	var err error

	if len(args) == 0 || args[0] == "-" {
		content, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		content, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
	}

	var profile map[string]any
	if err := json.Unmarshal(content, &profile); err != nil {
		return fmt.Errorf("profile must be a JSON object: %w", err)
	}

	reqBody := CompressRequest{
		Profile:       profile,
		Interaction:   interaction,
		Complexity:    complexity,
		Model:         model,
		TokenBudget:   tokenBudget,
		Strategy:      strategy,
		HistoryLength: historyLength,
	}

	var resp CompressResponse
	if err := postJSON("/api/v1/compress", reqBody, &resp); err != nil {
		return err
	}

	fmt.Println(resp.PromptText)
	fmt.Fprintf(os.Stderr, "\n[ppress] record=%s strategy=%s tokens=%d/%d ratio=%.2f quality=%.2f\n",
		resp.RecordID,
		resp.Metadata.Strategy,
		resp.Metadata.ActualTokens,
		resp.Metadata.TokenBudget,
		resp.Metadata.CompressionRatio,
		resp.Metadata.QualityScore,
	)

	return nil
}

// runOutcome handles the outcome command
func runOutcome(cmd *cobra.Command, args []string) error {
	reqBody := OutcomeRequest{RecordID: args[0]}
	if cmd.Flags().Changed("feedback") {
		reqBody.UserFeedback = &userFeedback
	}
	if cmd.Flags().Changed("quality") {
		reqBody.ResponseQuality = &responseQuality
	}
	if reqBody.UserFeedback == nil && reqBody.ResponseQuality == nil {
		return fmt.Errorf("at least one of --feedback or --quality is required")
	}

	if err := postJSON("/api/v1/outcome", reqBody, nil); err != nil {
		return err
	}

	fmt.Printf("Outcome recorded for %s\n", args[0])
	return nil
}

// runMetrics handles the metrics command
func runMetrics(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/api/v1/metrics", serverURL)
	if window != "" {
		url = fmt.Sprintf("%s?window=%s", url, window)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var pretty bytes.Buffer
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}
	fmt.Println(pretty.String())
	return nil
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/health", serverURL)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to %s: %v\n", url, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var healthResp HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Server Status: %s\n", healthResp.Status)
	return nil
}

// postJSON sends a JSON POST to the server and decodes the response into out
// when out is non-nil.
func postJSON(path string, reqBody, out any) error {
	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s%s", serverURL, path)
	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
