package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/worksync/pkg/domain/workitem"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard <team>",
	Short: "Interactive view of a team's work items",
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
		if os.Getenv("WORKSYNC_SKIP_DASHBOARD_RUN") == "true" {
			return nil
		}

		load := func(ctx context.Context) ([]workitem.WorkItem, error) {
			return services.Sync.GetWorkItemsForTeam(ctx, team)
		}
		p := tea.NewProgram(newDashboardModel(cmd.Context(), team.Name, load, time.Now), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("dashboard run failed: %w", err)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(dashboardCmd)
}

var baseStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.NormalBorder()).
	BorderForeground(lipgloss.Color("240"))

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#7D56F4")).
	PaddingLeft(1).
	PaddingRight(1)

type itemsLoadedMsg struct {
	items []workitem.WorkItem
	at    time.Time
	err   error
}

type loadFunc func(ctx context.Context) ([]workitem.WorkItem, error)

type dashboardModel struct {
	ctx      context.Context
	team     string
	load     loadFunc
	now      func() time.Time
	table    table.Model
	items    []workitem.WorkItem
	loading  bool
	syncedAt time.Time
	err      error
}

func newDashboardModel(ctx context.Context, team string, load loadFunc, now func() time.Time) dashboardModel {
	t := table.New(
		table.WithColumns(itemColumns),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240"))
	s.Selected = s.Selected.Foreground(lipgloss.Color("229"))
	t.SetStyles(s)

	return dashboardModel{ctx: ctx, team: team, load: load, now: now, table: t, loading: true}
}

func (m dashboardModel) fetch() tea.Msg {
	items, err := m.load(m.ctx)
	return itemsLoadedMsg{items: items, at: m.now(), err: err}
}

func (m dashboardModel) Init() tea.Cmd { return m.fetch }

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			if m.loading {
				return m, nil
			}
			m.loading = true
			return m, m.fetch
		}
	case itemsLoadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.items = msg.items
			m.syncedAt = msg.at
			m.table.SetRows(itemRows(msg.items, msg.at))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m dashboardModel) View() string {
	header := headerStyle.Render(m.team)

	status := "Synchronizing..."
	if !m.loading {
		status = fmt.Sprintf("Synced %s", m.syncedAt.Format("15:04:05"))
	}
	if m.err != nil {
		status = styleErr.Render(fmt.Sprintf("Sync failed: %v", m.err))
	}

	return baseStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header,
			summaryLine(m.items),
			m.table.View(),
			status,
			"r refresh • q quit",
		),
	) + "\n"
}
