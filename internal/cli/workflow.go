package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewWorkflowCmd создаёт группу команд для управления сценариями.
func NewWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Manage workflows",
	}

	cmd.AddCommand(
		newWorkflowListCmd(clientFn, outputFn),
		newWorkflowShowCmd(clientFn, outputFn),
		newWorkflowImportCmd(clientFn, outputFn),
		newWorkflowUpdateCmd(clientFn, outputFn),
		newWorkflowDefaultCmd(clientFn, outputFn),
		newWorkflowRenameCmd(clientFn, outputFn),
		newWorkflowTestCmd(clientFn, outputFn),
		newRemoveCmd("Remove a workflow", func(id string) error {
			return clientFn().DeleteWorkflow(id)
		}, outputFn),
	)

	return cmd
}

var workflowHeaders = []string{"ID", "NAME", "DEFAULT", "NODES", "EDGES", "UPDATED"}

func workflowRow(wf WorkflowSummary) []string {
	return []string{
		wf.ID,
		wf.Name,
		strconv.FormatBool(wf.IsDefault),
		strconv.Itoa(wf.Nodes),
		strconv.Itoa(wf.Edges),
		wf.UpdatedAt,
	}
}

func newWorkflowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			workflows, err := clientFn().ListWorkflows()
			if err != nil {
				return err
			}

			rows := make([][]string, len(workflows))
			for i, wf := range workflows {
				rows[i] = workflowRow(wf)
			}

			outputFn().Print(workflowHeaders, rows, workflows)
			return nil
		},
	}
}

func newWorkflowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a workflow with its graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := clientFn().GetWorkflow(args[0])
			if err != nil {
				return err
			}

			out := outputFn()
			if out.jsonMode {
				out.JSON(wf)
				return nil
			}

			var graph struct {
				Nodes []struct {
					ID   string `json:"id"`
					Type string `json:"type"`
				} `json:"nodes"`
			}
			if err := json.Unmarshal(wf.Graph, &graph); err != nil {
				return fmt.Errorf("decode graph: %w", err)
			}

			out.KeyValue([][2]string{
				{"ID", wf.ID},
				{"Name", wf.Name},
				{"Description", orDash(wf.Description)},
				{"Default", strconv.FormatBool(wf.IsDefault)},
				{"Unknown nodes", orDash(strings.Join(wf.UnknownNodes, ", "))},
			}, wf)

			rows := make([][]string, len(graph.Nodes))
			for i, n := range graph.Nodes {
				rows[i] = []string{strconv.Itoa(i + 1), n.ID, n.Type}
			}
			out.Table([]string{"#", "NODE", "TYPE"}, rows)
			return nil
		},
	}
}

func newWorkflowImportCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name, description string
	var makeDefault bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a workflow exported from the node editor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			graph, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read workflow file: %w", err)
			}
			if !json.Valid(graph) {
				return fmt.Errorf("%s is not valid JSON", args[0])
			}

			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			wf, err := clientFn().CreateWorkflow(CreateWorkflowRequest{
				Name:        name,
				Description: description,
				IsDefault:   makeDefault,
				Graph:       graph,
			})
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Workflow imported: %s", wf.ID))
			if len(wf.UnknownNodes) > 0 {
				out.Success(fmt.Sprintf("Warning: nodes of unknown types will be skipped: %s",
					strings.Join(wf.UnknownNodes, ", ")))
			}
			if out.jsonMode {
				out.JSON(wf)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Workflow name (default: file name)")
	cmd.Flags().StringVar(&description, "description", "", "Workflow description")
	cmd.Flags().BoolVar(&makeDefault, "default", false, "Make it the default workflow")

	return cmd
}

func newWorkflowUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name, description string

	cmd := &cobra.Command{
		Use:   "update ID FILE",
		Short: "Replace a workflow graph with a new editor export",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			graph, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read workflow file: %w", err)
			}
			if !json.Valid(graph) {
				return fmt.Errorf("%s is not valid JSON", args[1])
			}

			wf, err := clientFn().UpdateWorkflow(args[0], CreateWorkflowRequest{
				Name:        name,
				Description: description,
				Graph:       graph,
			})
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Workflow updated: %s", wf.ID))
			if len(wf.UnknownNodes) > 0 {
				out.Success(fmt.Sprintf("Warning: nodes of unknown types will be skipped: %s",
					strings.Join(wf.UnknownNodes, ", ")))
			}
			if out.jsonMode {
				out.JSON(wf)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New workflow name")
	cmd.Flags().StringVar(&description, "description", "", "New workflow description")

	return cmd
}

func newWorkflowDefaultCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "default ID",
		Short: "Make a workflow the default one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := clientFn().SetDefaultWorkflow(args[0])
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Default workflow: %s (%s)", wf.Name, wf.ID))
			out.Print(workflowHeaders, [][]string{workflowRow(*wf)}, wf)
			return nil
		},
	}
}

func newWorkflowRenameCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a workflow, keeping its graph",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := RenameWorkflowRequest{Name: args[1]}
			if cmd.Flags().Changed("description") {
				req.Description = &description
			}

			wf, err := clientFn().RenameWorkflow(args[0], req)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Workflow renamed: %s", wf.Name))
			out.Print(workflowHeaders, [][]string{workflowRow(*wf)}, wf)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "New description (empty string clears it)")
	return cmd
}

func newWorkflowTestCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "test [ID]",
		Short: "Dry-run a saved workflow or an editor export without real input",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req TestWorkflowRequest
			switch {
			case file != "":
				graph, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read workflow file: %w", err)
				}
				if !json.Valid(graph) {
					return fmt.Errorf("%s is not valid JSON", file)
				}
				req.Graph = graph
			case len(args) == 1:
				req.WorkflowID = args[0]
			default:
				return fmt.Errorf("workflow ID or --file is required")
			}

			res, err := clientFn().TestWorkflow(req)
			if err != nil {
				return err
			}

			out := outputFn()
			if out.jsonMode {
				out.JSON(res)
				return nil
			}

			out.KeyValue([][2]string{
				{"Run", res.RunID},
				{"Status", res.Status},
				{"Error", orDash(res.Error)},
				{"Identity", orDash(res.Identity)},
				{"Items", strconv.Itoa(res.Items)},
				{"Nodes executed", strconv.Itoa(res.NodesExecuted)},
				{"Nodes skipped", strconv.Itoa(res.NodesSkipped)},
				{"Pauses", fmt.Sprintf("%d (%s)", res.Pauses, res.TotalDelay)},
			}, res)

			rows := make([][]string, len(res.Calls))
			for i, call := range res.Calls {
				rows[i] = []string{strconv.Itoa(i + 1), call}
			}
			out.Table([]string{"#", "CALL"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Editor export to run instead of a saved workflow")
	return cmd
}
