package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/worksync/internal/infrastructure/watch"
	"github.com/felixgeelhaar/worksync/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/worksync/pkg/storage"
)

var (
	watchDebounce time.Duration
	watchSync     bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Revalidate the workspace whenever its configuration changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServicesForCurrentDir(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer services.Close()

		if !services.Workspace.Repo.IsInitialized() {
			return storage.ErrNotInitialized
		}

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		dir := services.Workspace.Repo.Dir()

		w, err := watch.NewConfigWatcher(dir, watchDebounce, func(paths []string) {
			names := make([]string, 0, len(paths))
			for _, p := range paths {
				names = append(names, filepath.Base(p))
			}
			fmt.Fprintf(out, "\nChange detected at %s: %v\n", time.Now().Format("15:04:05"), names)
			revalidate(ctx, out, services, watchSync)
		}, logger)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Watching %s for changes... (sync: %v)\n", dir, watchSync)
		revalidate(ctx, out, services, watchSync)

		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

// revalidate reloads the workspace, drops cached connectors and catalogs and
// validates every connection, team and portfolio. With sync set, valid teams
// are synchronized too.
func revalidate(ctx context.Context, out io.Writer, services *wiring.AppServices, sync bool) {
	ws, err := services.LoadWorkspace(ctx)
	if err != nil {
		fmt.Fprintf(out, "%s %v\n", styleErr.Render("workspace invalid:"), MapError(err))
		return
	}
	services.Refresh(ws)

	for i := range ws.Connections {
		c := &ws.Connections[i]
		fmt.Fprintf(out, "connection %-20s %s\n", c.Name, validMark(services.Validation.ValidateConnection(ctx, c)))
	}
	for _, t := range ws.Teams {
		team, err := ws.Team(t.Name)
		if err != nil {
			continue
		}
		ok := services.Validation.ValidateTeamSettings(ctx, team)
		fmt.Fprintf(out, "team       %-20s %s\n", team.Name, validMark(ok))
		if !ok || !sync {
			continue
		}
		items, err := services.Sync.GetWorkItemsForTeam(ctx, team)
		if err != nil {
			fmt.Fprintf(out, "  sync failed: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "  %s\n", summaryLine(items))
	}
	for _, p := range ws.Portfolios {
		portfolio, err := ws.Portfolio(p.Name)
		if err != nil {
			continue
		}
		fmt.Fprintf(out, "portfolio  %-20s %s\n", portfolio.Name, validMark(services.Validation.ValidatePortfolioSettings(ctx, portfolio)))
	}
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet period before reacting to changes")
	watchCmd.Flags().BoolVar(&watchSync, "sync", false, "Synchronize valid teams after each change")
	RootCmd.AddCommand(watchCmd)
}
