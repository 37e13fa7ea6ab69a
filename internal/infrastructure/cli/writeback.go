package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/worksync/pkg/domain/writeback"
)

var (
	writeBackSets []string
	writeBackFile string
)

var writeBackCmd = &cobra.Command{
	Use:   "writeback <connection>",
	Short: "Write field values to remote work items",
	Long: `Write field values to remote work items of a connection.

Updates are given as --set <id>:<field>=<value> (repeatable) or read from a
YAML or JSON file of {work_item_id, target_field_reference, value} entries.
Every update is attempted; the command exits with code 2 when any failed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		updates, err := collectUpdates(writeBackSets, writeBackFile)
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			return NewCLIError("no updates given", "Pass --set <id>:<field>=<value> or --file <path>", nil)
		}

		services, ws, err := loadWorkspace(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer services.Close()

		conn, err := ws.Connection(args[0])
		if err != nil {
			return err
		}
		result, err := services.WriteBack.WriteFieldsToWorkItems(cmd.Context(), conn, updates)
		if err != nil {
			return err
		}
		return reportResult(cmd.OutOrStdout(), result)
	},
}

var writeBackTriggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Synchronize and write mapped values back",
}

var writeBackTriggerTeamCmd = &cobra.Command{
	Use:   "team <team>",
	Short: "Write work item age and cycle time of a team's items back",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, ws, err := loadWorkspace(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer services.Close()

		team, err := ws.Team(args[0])
		if err != nil {
			return err
		}
		result, err := services.Trigger.TriggerTeam(cmd.Context(), team)
		if err != nil {
			return err
		}
		return reportResult(cmd.OutOrStdout(), result)
	},
}

var writeBackTriggerPortfolioCmd = &cobra.Command{
	Use:   "portfolio <portfolio>",
	Short: "Write feature sizes of a portfolio back",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, ws, err := loadWorkspace(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer services.Close()

		portfolio, err := ws.Portfolio(args[0])
		if err != nil {
			return err
		}
		result, err := services.Trigger.TriggerPortfolio(cmd.Context(), portfolio, ws.TeamsOn(portfolio.ConnectionName))
		if err != nil {
			return err
		}
		return reportResult(cmd.OutOrStdout(), result)
	},
}

// collectUpdates gathers --set updates followed by the entries of file.
func collectUpdates(sets []string, file string) ([]writeback.FieldUpdate, error) {
	var updates []writeback.FieldUpdate
	for _, s := range sets {
		u, err := parseSet(s)
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}

	if file == "" {
		return updates, nil
	}
	data, err := os.ReadFile(file) // #nosec G304 -- path given by the user
	if err != nil {
		return nil, fmt.Errorf("read updates file: %w", err)
	}
	var fromFile []writeback.FieldUpdate
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return nil, fmt.Errorf("parse updates file: %w", err)
	}
	return append(updates, fromFile...), nil
}

// parseSet reads "<id>:<field>=<value>". The value may contain '=' and ':'.
func parseSet(s string) (writeback.FieldUpdate, error) {
	target, value, ok := strings.Cut(s, "=")
	if !ok {
		return writeback.FieldUpdate{}, fmt.Errorf("invalid --set %q: want <id>:<field>=<value>", s)
	}
	id, field, ok := strings.Cut(target, ":")
	id, field = strings.TrimSpace(id), strings.TrimSpace(field)
	if !ok || id == "" || field == "" {
		return writeback.FieldUpdate{}, fmt.Errorf("invalid --set %q: want <id>:<field>=<value>", s)
	}
	return writeback.FieldUpdate{WorkItemID: id, TargetFieldReference: field, Value: value}, nil
}

func reportResult(w io.Writer, result *writeback.Result) error {
	if len(result.ItemResults) == 0 {
		fmt.Fprintln(w, "Nothing to write.")
		return nil
	}
	for _, ir := range result.ItemResults {
		if ir.Success {
			fmt.Fprintf(w, "%s %s %s\n", styleDone.Render("ok  "), ir.WorkItemID, ir.TargetFieldReference)
			continue
		}
		fmt.Fprintf(w, "%s %s %s: %s\n", styleErr.Render("fail"), ir.WorkItemID, ir.TargetFieldReference, ir.ErrorMessage)
	}
	fmt.Fprintf(w, "%d of %d updates written\n", result.SuccessCount(), len(result.ItemResults))
	if !result.AllSucceeded() {
		return fmt.Errorf("%d of %d: %w", len(result.ItemResults)-result.SuccessCount(), len(result.ItemResults), errPartialWriteBack)
	}
	return nil
}

func init() {
	writeBackCmd.Flags().StringArrayVar(&writeBackSets, "set", nil, "Update as <id>:<field>=<value> (repeatable)")
	writeBackCmd.Flags().StringVarP(&writeBackFile, "file", "f", "", "YAML or JSON file with updates")
	writeBackTriggerCmd.AddCommand(writeBackTriggerTeamCmd)
	writeBackTriggerCmd.AddCommand(writeBackTriggerPortfolioCmd)
	writeBackCmd.AddCommand(writeBackTriggerCmd)
	RootCmd.AddCommand(writeBackCmd)
}
