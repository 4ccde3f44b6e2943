package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRequestCmd создаёт группу команд для истории заявок.
func NewRequestCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "request",
		Aliases: []string{"requests"},
		Short:   "Inspect and reset join request history",
	}

	cmd.AddCommand(
		newRequestListCmd(clientFn, outputFn),
		newRequestClearCmd(clientFn, outputFn),
		newRequestRemoveCmd(clientFn, outputFn),
	)

	return cmd
}

func newRequestListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var accountID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List join requests, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := clientFn().ListJoinRequests(accountID, limit)
			if err != nil {
				return err
			}

			rows := make([][]string, len(history))
			for i, jr := range history {
				rows[i] = []string{jr.RequestedAt, jr.PhoneNumber, jr.ChannelLink, jr.Status}
			}
			outputFn().Print([]string{"REQUESTED", "PHONE", "CHANNEL", "STATUS"}, rows, history)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Only this account ID")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum entries (default: agent limit)")
	return cmd
}

func newRequestClearCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Reset join history so channels count as unprocessed again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := clientFn().ClearJoinRequests(accountID)
			if err != nil {
				return err
			}
			outputFn().Success(fmt.Sprintf("Join requests removed: %d", n))
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Only this account ID")
	return cmd
}

func newRequestRemoveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "remove ACCOUNT_ID CHANNEL_ID",
		Short: "Remove one join request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().DeleteJoinRequest(args[0], args[1]); err != nil {
				return err
			}
			outputFn().Success(fmt.Sprintf("Removed: %s/%s", args[0], args[1]))
			return nil
		},
	}
}
