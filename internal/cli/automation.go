package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewStatusCmd — состояние контроллера и флота.
func NewStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show automation and fleet status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := clientFn().Status()
			if err != nil {
				return err
			}

			a := st.Automation
			current := "-"
			if a.CurrentIdentity != nil {
				current = a.CurrentIdentity.Key
			}

			pairs := [][2]string{
				{"State", automationState(a)},
				{"Engine", orDash(a.EngineState)},
				{"Current", current},
				{"Loop", strconv.Itoa(a.Stats.CurrentLoop)},
				{"Identities", fmt.Sprintf("%d processed, %d skipped, %d failed",
					a.Stats.ProcessedIdentities, a.Stats.SkippedIdentities, a.Stats.FailedIdentities)},
				{"Items", fmt.Sprintf("%d total, %d ok, %d failed",
					a.Stats.TotalItems, a.Stats.SuccessfulItems, a.Stats.FailedItems)},
				{"Fleet", fmt.Sprintf("%d/%d slots, ttl %ds..%ds",
					st.Fleet.Count, st.Fleet.MaxSlots, st.Fleet.Settings.MinTTLSec, st.Fleet.Settings.MaxTTLSec)},
			}
			if a.LastRun != nil {
				pairs = append(pairs, [2]string{"Last run", fmt.Sprintf("%s %s (%s)",
					a.LastRun.Identity, a.LastRun.Status, orDash(a.LastRun.Error))})
			}

			outputFn().KeyValue(pairs, st)
			return nil
		},
	}
}

func automationState(a AutomationStatus) string {
	switch {
	case a.Stopping:
		return "stopping"
	case a.Paused:
		return "paused"
	case a.Running:
		return "running"
	default:
		return "idle"
	}
}

// NewStartCmd — запуск прохода.
func NewStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var items int
	var includeCompleted bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start an automation pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req StartRequest
			if cmd.Flags().Changed("items") {
				req.ItemsPerIdentity = &items
			}
			if cmd.Flags().Changed("include-completed") {
				exclude := !includeCompleted
				req.ExcludeCompleted = &exclude
			}

			st, err := clientFn().Start(req)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Automation started: %d items per identity, exclude completed=%t",
				st.Options.ItemsPerIdentity, st.Options.ExcludeCompleted))
			if out.jsonMode {
				out.JSON(st)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&items, "items", 0, "Work items per identity (default: agent setting)")
	cmd.Flags().BoolVar(&includeCompleted, "include-completed", false, "Hand out already processed items too")

	return cmd
}

// NewPauseCmd — пауза.
func NewPauseCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the running pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().Pause(); err != nil {
				return err
			}
			outputFn().Success("Automation paused")
			return nil
		},
	}
}

// NewResumeCmd — продолжение.
func NewResumeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume the paused pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().Resume(); err != nil {
				return err
			}
			outputFn().Success("Automation resumed")
			return nil
		},
	}
}

// NewStopCmd — остановка.
func NewStopCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the pass and close the fleet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := clientFn().Stop()
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Automation stopped: %d identities processed, %d items ok",
				st.Stats.ProcessedIdentities, st.Stats.SuccessfulItems))
			if out.jsonMode {
				out.JSON(st)
			}
			return nil
		},
	}
}
