package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/spf13/cobra"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Synchronize and validate portfolio features",
}

var portfolioListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured portfolios",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, ws, err := loadWorkspace(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer services.Close()

		if len(ws.Portfolios) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No portfolios configured.")
			return nil
		}
		columns := []table.Column{
			{Title: "Name", Width: 20},
			{Title: "Connection", Width: 16},
			{Title: "Teams", Width: 6},
		}
		rows := make([]table.Row, 0, len(ws.Portfolios))
		for _, p := range ws.Portfolios {
			rows = append(rows, table.Row{p.Name, p.ConnectionName, strconv.Itoa(len(ws.TeamsOn(p.ConnectionName)))})
		}
		fmt.Fprintln(cmd.OutOrStdout(), staticTable(columns, rows))
		return nil
	},
}

var portfolioSyncCmd = &cobra.Command{
	Use:   "sync <portfolio>",
	Short: "Synchronize a portfolio's features",
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
		features, err := services.Sync.GetFeaturesForProject(cmd.Context(), portfolio)
		if err != nil {
			return fmt.Errorf("sync portfolio %s: %w", portfolio.Name, err)
		}

		out := cmd.OutOrStdout()
		if syncJSON {
			return printJSON(out, features)
		}
		fmt.Fprintf(out, "%s: %s\n", portfolio.Name, summaryLine(features))
		fmt.Fprintln(out, staticTable(itemColumns, itemRows(features, time.Now())))
		return nil
	},
}

var portfolioValidateCmd = &cobra.Command{
	Use:   "validate <portfolio>",
	Short: "Validate a portfolio's settings against its connection",
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
		ok := services.Validation.ValidatePortfolioSettings(cmd.Context(), portfolio)
		fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", portfolio.Name, validMark(ok))
		if !ok {
			return fmt.Errorf("portfolio %s failed validation", portfolio.Name)
		}
		return nil
	},
}

var portfolioParentsCmd = &cobra.Command{
	Use:   "parents <portfolio> <id>...",
	Short: "Look up parent features by reference id",
	Args:  cobra.MinimumNArgs(2),
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
		features, err := services.Sync.GetParentFeaturesDetails(cmd.Context(), portfolio, args[1:])
		if err != nil {
			return err
		}
		if len(features) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No parent features found.")
			return nil
		}
		for _, f := range features {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", f.ReferenceID, f.Name, f.URL)
		}
		return nil
	},
}

func init() {
	portfolioSyncCmd.Flags().BoolVar(&syncJSON, "json", false, "Print features as JSON")
	portfolioCmd.AddCommand(portfolioListCmd)
	portfolioCmd.AddCommand(portfolioSyncCmd)
	portfolioCmd.AddCommand(portfolioValidateCmd)
	portfolioCmd.AddCommand(portfolioParentsCmd)
	RootCmd.AddCommand(portfolioCmd)
}
