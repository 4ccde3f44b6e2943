package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewAccountCmd создаёт группу команд для управления аккаунтами.
func NewAccountCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts (identities)",
	}

	cmd.AddCommand(
		newAccountListCmd(clientFn, outputFn),
		newAccountAddCmd(clientFn, outputFn),
		newAccountScanCmd(clientFn, outputFn),
		newToggleCmd("enable ID", "Enable an account", true, func(id string, active bool) error {
			return clientFn().SetAccountActive(id, active)
		}, outputFn),
		newToggleCmd("disable ID", "Disable an account", false, func(id string, active bool) error {
			return clientFn().SetAccountActive(id, active)
		}, outputFn),
		newRemoveCmd("Remove an account and its results", func(id string) error {
			return clientFn().DeleteAccount(id)
		}, outputFn),
	)

	return cmd
}

func newAccountListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := clientFn().ListAccounts(activeOnly)
			if err != nil {
				return err
			}

			rows := make([][]string, len(accounts))
			for i, a := range accounts {
				path := a.ExePath
				if path == "" {
					path = a.FolderPath
				}
				rows[i] = []string{a.ID, a.PhoneNumber, path, strconv.FormatBool(a.IsActive), orDash(a.LastUsed)}
			}

			outputFn().Print([]string{"ID", "PHONE", "PATH", "ACTIVE", "LAST USED"}, rows, accounts)
			return nil
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only active accounts")
	return cmd
}

func newAccountAddCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var exePath string
	var inactive bool

	cmd := &cobra.Command{
		Use:   "add PHONE FOLDER",
		Short: "Add an account served by a portable install in FOLDER",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			active := !inactive
			a, err := clientFn().CreateAccount(CreateAccountRequest{
				PhoneNumber: args[0],
				FolderPath:  args[1],
				ExePath:     exePath,
				IsActive:    &active,
			})
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Account added: %s", a.ID))
			if out.jsonMode {
				out.JSON(a)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&exePath, "exe", "", "Explicit executable path")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Add the account disabled")
	return cmd
}

func newAccountScanCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "scan [ROOT]",
		Short: "Find portable installs in ROOT (default: agent accounts dir) and save them",
		Long: `Scan looks at every subfolder of ROOT on the agent host. A subfolder with the
target binary becomes an account; its phone number is the folder name with
everything except digits and '+' removed. Found accounts replace existing
ones unless --keep is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ScanAccountsRequest{KeepExisting: keep}
			if len(args) == 1 {
				req.Root = args[0]
			}

			res, err := clientFn().ScanAccounts(req)
			if err != nil {
				return err
			}

			out := outputFn()
			if len(res.Found) == 0 {
				out.Success(fmt.Sprintf("No accounts found in %s", res.Root))
				return nil
			}
			out.Success(fmt.Sprintf("Found %d, added %d (replaced: %v)", len(res.Found), res.Added, res.Replaced))

			rows := make([][]string, len(res.Found))
			for i, a := range res.Found {
				rows[i] = []string{a.PhoneNumber, a.ExePath}
			}
			out.Print([]string{"PHONE", "EXE"}, rows, res)
			return nil
		},
	}

	cmd.Flags().BoolVar(&keep, "keep", false, "Keep existing accounts, only add new ones")
	return cmd
}

// NewChannelCmd создаёт группу команд для управления каналами.
func NewChannelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage channels (work items)",
	}

	cmd.AddCommand(
		newChannelListCmd(clientFn, outputFn),
		newChannelAddCmd(clientFn, outputFn),
		newChannelImportCmd(clientFn, outputFn),
		newChannelClearCmd(clientFn, outputFn),
		newToggleCmd("enable ID", "Enable a channel", true, func(id string, active bool) error {
			return clientFn().SetChannelActive(id, active)
		}, outputFn),
		newToggleCmd("disable ID", "Disable a channel", false, func(id string, active bool) error {
			return clientFn().SetChannelActive(id, active)
		}, outputFn),
		newRemoveCmd("Remove a channel", func(id string) error {
			return clientFn().DeleteChannel(id)
		}, outputFn),
	)

	return cmd
}

func newChannelListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			channels, err := clientFn().ListChannels(activeOnly)
			if err != nil {
				return err
			}

			rows := make([][]string, len(channels))
			for i, c := range channels {
				rows[i] = []string{c.ID, c.Link, orDash(c.Name), strconv.FormatBool(c.IsActive)}
			}

			outputFn().Print([]string{"ID", "LINK", "NAME", "ACTIVE"}, rows, channels)
			return nil
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only active channels")
	return cmd
}

func newChannelAddCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add LINK",
		Short: "Add a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFn().CreateChannel(CreateChannelRequest{Link: args[0], Name: name})
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Channel added: %s", c.ID))
			if out.jsonMode {
				out.JSON(c)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	return cmd
}

func newChannelImportCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Add channels from a file with one link per line ('-' for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open links file: %w", err)
				}
				defer f.Close()
				r = f
			}

			links, err := readLines(r)
			if err != nil {
				return fmt.Errorf("read links: %w", err)
			}
			if len(links) == 0 {
				return fmt.Errorf("no links in %s", args[0])
			}

			added, err := clientFn().ImportChannels(links)
			if err != nil {
				return err
			}
			outputFn().Success(fmt.Sprintf("Channels added: %d of %d", added, len(links)))
			return nil
		},
	}
}

func newChannelClearCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all channels and their join history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := clientFn().ClearChannels()
			if err != nil {
				return err
			}
			outputFn().Success(fmt.Sprintf("Channels removed: %d", n))
			return nil
		},
	}
}

// readLines возвращает непустые строки без пробелов по краям.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func newToggleCmd(use, short string, active bool, set func(id string, active bool) error, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := set(args[0], active); err != nil {
				return err
			}
			state := "disabled"
			if active {
				state = "enabled"
			}
			outputFn().Success(fmt.Sprintf("%s %s", args[0], state))
			return nil
		},
	}
}

func newRemoveCmd(short string, remove func(id string) error, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := remove(args[0]); err != nil {
				return err
			}
			outputFn().Success(fmt.Sprintf("Removed: %s", args[0]))
			return nil
		},
	}
}
