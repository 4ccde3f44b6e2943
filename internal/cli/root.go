package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// DefaultAPIURL — адрес агента по умолчанию.
const DefaultAPIURL = "http://localhost:8090"

// NewRootCmd собирает дерево команд autopilot.
func NewRootCmd(version string) *cobra.Command {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "autopilot",
		Short:         "Autopilot CLI — control the desktop automation agent",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := DefaultAPIURL
	if v := os.Getenv("AUTOPILOT_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "Agent API URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *Client { return NewClient(apiURL) }
	outputFn := func() *Output {
		return NewOutputTo(jsonOutput, rootCmd.OutOrStdout(), rootCmd.ErrOrStderr())
	}

	rootCmd.AddCommand(
		NewStatusCmd(clientFn, outputFn),
		NewStartCmd(clientFn, outputFn),
		NewPauseCmd(clientFn, outputFn),
		NewResumeCmd(clientFn, outputFn),
		NewStopCmd(clientFn, outputFn),
		NewFleetCmd(clientFn, outputFn),
		NewWorkflowCmd(clientFn, outputFn),
		NewAccountCmd(clientFn, outputFn),
		NewChannelCmd(clientFn, outputFn),
		NewRequestCmd(clientFn, outputFn),
	)

	return rootCmd
}
