package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewFleetCmd создаёт группу команд для управления флотом.
func NewFleetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fleet",
		Short: "Manage running target processes",
	}

	cmd.AddCommand(
		newFleetListCmd(clientFn, outputFn),
		newFleetLaunchCmd(clientFn, outputFn),
		newFleetKillAllCmd(clientFn, outputFn),
		newFleetSettingsCmd(clientFn, outputFn),
	)

	return cmd
}

var slotHeaders = []string{"IDENTITY", "HANDLE", "TTL", "REMAINING", "TARGET"}

func slotRow(s Slot) []string {
	return []string{
		s.Identity,
		strconv.Itoa(s.Handle),
		formatDuration(s.TTL),
		formatDuration(s.Remaining),
		s.TargetPath,
	}
}

func newFleetListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			slots, err := clientFn().ListSlots()
			if err != nil {
				return err
			}

			rows := make([][]string, len(slots))
			for i, s := range slots {
				rows[i] = slotRow(s)
			}

			outputFn().Print(slotHeaders, rows, slots)
			return nil
		},
	}
}

func newFleetLaunchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "launch IDENTITY TARGET_PATH",
		Short: "Launch (or reuse) the process of an identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := clientFn().Launch(args[0], args[1])
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Slot ready: %s (handle %d)", slot.Identity, slot.Handle))
			out.Print(slotHeaders, [][]string{slotRow(*slot)}, slot)
			return nil
		},
	}
}

func newFleetKillAllCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "kill-all",
		Short: "Terminate every process in the fleet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := clientFn().KillAll()
			if err != nil {
				return err
			}
			outputFn().Success(fmt.Sprintf("Killed %d slots", n))
			return nil
		},
	}
}

func newFleetSettingsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var minSec, maxSec int

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change slot TTL bounds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var settings *FleetSettings
			if cmd.Flags().Changed("min-ttl") || cmd.Flags().Changed("max-ttl") {
				if !cmd.Flags().Changed("min-ttl") || !cmd.Flags().Changed("max-ttl") {
					return fmt.Errorf("both --min-ttl and --max-ttl are required")
				}
				s, err := client.UpdateSettings(FleetSettings{MinTTLSec: minSec, MaxTTLSec: maxSec})
				if err != nil {
					return err
				}
				out.Success("Fleet settings updated")
				settings = s
			} else {
				st, err := client.Status()
				if err != nil {
					return err
				}
				settings = &st.Fleet.Settings
			}

			out.Print(
				[]string{"MIN_TTL_SEC", "MAX_TTL_SEC"},
				[][]string{{strconv.Itoa(settings.MinTTLSec), strconv.Itoa(settings.MaxTTLSec)}},
				settings,
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&minSec, "min-ttl", 0, "Minimum slot TTL in seconds")
	cmd.Flags().IntVar(&maxSec, "max-ttl", 0, "Maximum slot TTL in seconds")

	return cmd
}
