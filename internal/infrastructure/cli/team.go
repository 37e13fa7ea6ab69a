package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/spf13/cobra"
)

var (
	syncJSON bool

	teamInitConnection string
	teamInitBoard      string
)

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Synchronize and validate team work items",
}

var teamListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured teams",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, ws, err := loadWorkspace(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer services.Close()

		if len(ws.Teams) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No teams configured.")
			return nil
		}
		columns := []table.Column{
			{Title: "Name", Width: 20},
			{Title: "Connection", Width: 16},
			{Title: "Types", Width: 24},
			{Title: "Cutoff", Width: 6},
		}
		rows := make([]table.Row, 0, len(ws.Teams))
		for _, t := range ws.Teams {
			rows = append(rows, table.Row{
				t.Name,
				t.ConnectionName,
				strings.Join(t.WorkItemTypes, ", "),
				fmt.Sprintf("%dd", t.DoneItemsCutoffDays),
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), staticTable(columns, rows))
		return nil
	},
}

var teamSyncCmd = &cobra.Command{
	Use:   "sync <team>",
	Short: "Synchronize a team's work items",
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
		items, err := services.Sync.GetWorkItemsForTeam(cmd.Context(), team)
		if err != nil {
			return fmt.Errorf("sync team %s: %w", team.Name, err)
		}

		out := cmd.OutOrStdout()
		if syncJSON {
			return printJSON(out, items)
		}
		fmt.Fprintf(out, "%s: %s\n", team.Name, summaryLine(items))
		fmt.Fprintln(out, staticTable(itemColumns, itemRows(items, time.Now())))
		return nil
	},
}

var teamValidateCmd = &cobra.Command{
	Use:   "validate <team>",
	Short: "Validate a team's settings against its connection",
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
		ok := services.Validation.ValidateTeamSettings(cmd.Context(), team)
		fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", team.Name, validMark(ok))
		if !ok {
			return fmt.Errorf("team %s failed validation", team.Name)
		}
		return nil
	},
}

var teamInitCmd = &cobra.Command{
	Use:   "init <team>",
	Short: "Add a team whose settings come from a board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, ws, err := loadWorkspace(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer services.Close()

		if _, err := ws.Team(args[0]); err == nil {
			return fmt.Errorf("team %q already exists", args[0])
		}
		conn, err := ws.Connection(teamInitConnection)
		if err != nil {
			return err
		}
		team, err := services.Boards.TeamFromBoard(cmd.Context(), conn, teamInitBoard, args[0])
		if err != nil {
			return err
		}

		ws.Teams = append(ws.Teams, *team)
		if err := services.Workspace.Repo.SaveWorkspace(ws); err != nil {
			return fmt.Errorf("save workspace: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added team %s from board %s on %s (%d states)\n",
			team.Name, teamInitBoard, conn.Name, len(team.States.States()))
		return nil
	},
}

func init() {
	teamSyncCmd.Flags().BoolVar(&syncJSON, "json", false, "Print work items as JSON")
	teamInitCmd.Flags().StringVar(&teamInitConnection, "connection", "", "Connection to read the board from")
	teamInitCmd.Flags().StringVar(&teamInitBoard, "board", "", "Board id, see 'worksync connection boards'")
	_ = teamInitCmd.MarkFlagRequired("connection")
	_ = teamInitCmd.MarkFlagRequired("board")
	teamCmd.AddCommand(teamListCmd)
	teamCmd.AddCommand(teamInitCmd)
	teamCmd.AddCommand(teamSyncCmd)
	teamCmd.AddCommand(teamValidateCmd)
	RootCmd.AddCommand(teamCmd)
}
