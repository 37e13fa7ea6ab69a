package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/worksync/pkg/domain/connection"
)

var connectionCmd = &cobra.Command{
	Use:     "connection",
	Aliases: []string{"conn"},
	Short:   "Inspect and validate connections",
}

var connectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured connections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, ws, err := loadWorkspace(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer services.Close()

		out := cmd.OutOrStdout()
		if len(ws.Connections) == 0 {
			fmt.Fprintln(out, "No connections configured.")
			return nil
		}

		columns := []table.Column{
			{Title: "Name", Width: 16},
			{Title: "Kind", Width: 10},
			{Title: "URL", Width: 40},
			{Title: "Fields", Width: 6},
			{Title: "Teams", Width: 24},
		}
		rows := make([]table.Row, 0, len(ws.Connections))
		for _, c := range ws.Connections {
			rows = append(rows, table.Row{
				c.Name,
				c.Kind,
				c.BaseURL(),
				strconv.Itoa(len(c.AdditionalFieldDefinitions)),
				strings.Join(teamNames(ws.TeamsOn(c.Name)), ", "),
			})
		}
		fmt.Fprintln(out, staticTable(columns, rows))
		return nil
	},
}

var connectionValidateCmd = &cobra.Command{
	Use:   "validate [name]",
	Short: "Check credentials and field references of one or all connections",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, ws, err := loadWorkspace(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer services.Close()

		targets := ws.Connections
		if len(args) == 1 {
			conn, err := ws.Connection(args[0])
			if err != nil {
				return err
			}
			targets = []connection.Connection{*conn}
		}

		failed := 0
		for i := range targets {
			ok := services.Validation.ValidateConnection(cmd.Context(), &targets[i])
			if !ok {
				failed++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", targets[i].Name, validMark(ok))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d connections failed validation", failed, len(targets))
		}
		return nil
	},
}

var connectionBoardsCmd = &cobra.Command{
	Use:   "boards <connection>",
	Short: "List the boards a connection can see",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, ws, err := loadWorkspace(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer services.Close()

		conn, err := ws.Connection(args[0])
		if err != nil {
			return err
		}
		boards, err := services.Boards.Boards(cmd.Context(), conn)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(boards) == 0 {
			fmt.Fprintln(out, "No boards found.")
			return nil
		}
		columns := []table.Column{
			{Title: "ID", Width: 12},
			{Title: "Name", Width: 32},
		}
		rows := make([]table.Row, 0, len(boards))
		for _, b := range boards {
			rows = append(rows, table.Row{b.ID, b.Name})
		}
		fmt.Fprintln(out, staticTable(columns, rows))
		return nil
	},
}

func teamNames(teams []connection.Team) []string {
	names := make([]string, 0, len(teams))
	for _, t := range teams {
		names = append(names, t.Name)
	}
	return names
}

func init() {
	connectionCmd.AddCommand(connectionListCmd)
	connectionCmd.AddCommand(connectionValidateCmd)
	connectionCmd.AddCommand(connectionBoardsCmd)
	RootCmd.AddCommand(connectionCmd)
}
