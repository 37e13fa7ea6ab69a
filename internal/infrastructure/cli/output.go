package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/worksync/pkg/domain/workitem"
)

const dateLayout = "2006-01-02"

var (
	styleDone  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleDoing = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleErr   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// staticTable renders rows without selection highlighting.
func staticTable(columns []table.Column, rows []table.Row) string {
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(len(rows)+1),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Bold(true)
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)
	return t.View()
}

var itemColumns = []table.Column{
	{Title: "ID", Width: 12},
	{Title: "Name", Width: 36},
	{Title: "State", Width: 16},
	{Title: "Category", Width: 8},
	{Title: "Started", Width: 10},
	{Title: "Closed", Width: 10},
	{Title: "Days", Width: 5},
	{Title: "Blocked", Width: 7},
}

// itemRows flattens items for itemColumns. Days is the cycle time of done
// items and the age of everything else.
func itemRows(items []workitem.WorkItem, now time.Time) []table.Row {
	rows := make([]table.Row, 0, len(items))
	for _, it := range items {
		days := it.WorkItemAge(now)
		if it.StateCategory == workitem.Done {
			days = it.CycleTime()
		}
		blocked := ""
		if it.IsBlocked {
			blocked = "yes"
		}
		rows = append(rows, table.Row{
			it.ReferenceID,
			it.Name,
			it.State,
			string(it.StateCategory),
			formatDate(it.StartedDate),
			formatDate(it.ClosedDate),
			strconv.Itoa(days),
			blocked,
		})
	}
	return rows
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(dateLayout)
}

// categoryCounts tallies items per state category.
func categoryCounts(items []workitem.WorkItem) map[workitem.StateCategory]int {
	counts := make(map[workitem.StateCategory]int, 3)
	for _, it := range items {
		counts[it.StateCategory]++
	}
	return counts
}

func summaryLine(items []workitem.WorkItem) string {
	c := categoryCounts(items)
	return fmt.Sprintf("%d items: %d to do, %s, %s",
		len(items),
		c[workitem.ToDo],
		styleDoing.Render(fmt.Sprintf("%d doing", c[workitem.Doing])),
		styleDone.Render(fmt.Sprintf("%d done", c[workitem.Done])))
}

func validMark(ok bool) string {
	if ok {
		return styleDone.Render("valid")
	}
	return styleErr.Render("invalid")
}
