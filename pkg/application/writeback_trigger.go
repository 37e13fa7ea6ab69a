package application

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/felixgeelhaar/worksync/pkg/domain/connection"
	"github.com/felixgeelhaar/worksync/pkg/domain/workitem"
	"github.com/felixgeelhaar/worksync/pkg/domain/writeback"
)

// WriteBackTrigger turns a connection's write-back mappings into field
// updates after a synchronization and hands them to the write-back service.
type WriteBackTrigger struct {
	sync   *SyncService
	writer *WriteBackService
	now    func() time.Time
	logger *slog.Logger
}

func NewWriteBackTrigger(sync *SyncService, writer *WriteBackService, logger *slog.Logger) *WriteBackTrigger {
	return &WriteBackTrigger{sync: sync, writer: writer, now: time.Now, logger: loggerOrDefault(logger)}
}

// ResolveTeamUpdates derives updates for team items from the team-scoped
// mappings of mappings. Work item age is written for items in progress and
// cycle time for done items; zero values are skipped.
func (t *WriteBackTrigger) ResolveTeamUpdates(mappings []writeback.Mapping, items []workitem.WorkItem) []writeback.FieldUpdate {
	return t.resolve(writeback.ForScope(mappings, writeback.ScopeTeam), items, nil)
}

// ResolvePortfolioUpdates derives updates for features. Feature size is the
// number of distinct team items whose parent is the feature.
func (t *WriteBackTrigger) ResolvePortfolioUpdates(mappings []writeback.Mapping, features, teamItems []workitem.WorkItem) []writeback.FieldUpdate {
	children := make(map[string]map[string]bool)
	for _, item := range teamItems {
		if item.ParentReferenceID == "" {
			continue
		}
		if children[item.ParentReferenceID] == nil {
			children[item.ParentReferenceID] = make(map[string]bool)
		}
		children[item.ParentReferenceID][item.ReferenceID] = true
	}
	return t.resolve(writeback.ForScope(mappings, writeback.ScopePortfolio), features, func(id string) int {
		return len(children[id])
	})
}

func (t *WriteBackTrigger) resolve(mappings []writeback.Mapping, items []workitem.WorkItem, featureSize func(string) int) []writeback.FieldUpdate {
	now := t.now()
	var updates []writeback.FieldUpdate
	for _, m := range mappings {
		for _, item := range items {
			var value int
			switch m.ValueSource {
			case writeback.SourceWorkItemAge:
				if item.StateCategory == workitem.Doing {
					value = item.WorkItemAge(now)
				}
			case writeback.SourceCycleTime:
				if item.StateCategory == workitem.Done {
					value = item.CycleTime()
				}
			case writeback.SourceFeatureSize:
				if featureSize != nil {
					value = featureSize(item.ReferenceID)
				}
			}
			if value <= 0 {
				continue
			}
			updates = append(updates, writeback.FieldUpdate{
				WorkItemID:           item.ReferenceID,
				TargetFieldReference: m.TargetFieldReference,
				Value:                strconv.Itoa(value),
			})
		}
	}
	return updates
}

// TriggerTeam synchronizes team and writes its mapped values back.
func (t *WriteBackTrigger) TriggerTeam(ctx context.Context, team *connection.Team) (*writeback.Result, error) {
	if team == nil {
		return nil, ErrSettingsRequired
	}
	if team.Connection == nil {
		return nil, fmt.Errorf("%s: %w", team.Name, connection.ErrConnectionRequired)
	}

	items, err := t.sync.GetWorkItemsForTeam(ctx, team)
	if err != nil {
		return nil, err
	}
	updates := t.ResolveTeamUpdates(team.Connection.WriteBackMappings, items)
	t.logger.Info("team write-back resolved", "team", team.Name, "updates", len(updates))
	return t.writer.WriteFieldsToWorkItems(ctx, team.Connection, updates)
}

// TriggerPortfolio synchronizes portfolio and the given teams, then writes the
// portfolio's mapped values back.
func (t *WriteBackTrigger) TriggerPortfolio(ctx context.Context, portfolio *connection.Portfolio, teams []connection.Team) (*writeback.Result, error) {
	if portfolio == nil {
		return nil, ErrSettingsRequired
	}
	if portfolio.Connection == nil {
		return nil, fmt.Errorf("%s: %w", portfolio.Name, connection.ErrConnectionRequired)
	}

	features, err := t.sync.GetFeaturesForProject(ctx, portfolio)
	if err != nil {
		return nil, err
	}

	var teamItems []workitem.WorkItem
	for i := range teams {
		items, err := t.sync.GetWorkItemsForTeam(ctx, &teams[i])
		if err != nil {
			return nil, fmt.Errorf("team %s: %w", teams[i].Name, err)
		}
		teamItems = append(teamItems, items...)
	}

	updates := t.ResolvePortfolioUpdates(portfolio.Connection.WriteBackMappings, features, teamItems)
	t.logger.Info("portfolio write-back resolved", "portfolio", portfolio.Name, "teams", len(teams), "updates", len(updates))
	return t.writer.WriteFieldsToWorkItems(ctx, portfolio.Connection, updates)
}
