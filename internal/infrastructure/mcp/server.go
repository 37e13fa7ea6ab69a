package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/worksync/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/worksync/pkg/domain/connection"
	"github.com/felixgeelhaar/worksync/pkg/domain/plugin"
	"github.com/felixgeelhaar/worksync/pkg/domain/rank"
	"github.com/felixgeelhaar/worksync/pkg/domain/workitem"
	"github.com/felixgeelhaar/worksync/pkg/domain/writeback"
	"github.com/felixgeelhaar/worksync/pkg/storage"
)

type Server struct {
	mcpServer *mcp.Server
	services  *wiring.AppServices
	root      string
}

var (
	Version     = "dev"
	BuildCommit = "unknown"
	BuildDate   = "unknown"
)

// mcpErr returns a user-friendly error for MCP clients. Internal details
// stay in the server log.
func mcpErr(friendly string) error {
	return errors.New(friendly)
}

// NewServer wires the services for the workspace at root and registers the
// tools. Fallback warnings from wiring are logged, not returned.
func NewServer(root string, logger *slog.Logger) (*Server, error) {
	services, err := wiring.BuildAppServices(root, logger)
	if services == nil {
		return nil, fmt.Errorf("build services: %w", err)
	}
	if err != nil {
		services.Logger.Warn("service wiring fell back to defaults", "error", err)
	}
	return newServer(services, root), nil
}

func newServer(services *wiring.AppServices, root string) *Server {
	info := mcp.ServerInfo{
		Name:    "worksync",
		Version: Version,
	}

	s := &Server{
		mcpServer: mcp.NewServer(info,
			mcp.WithTitle("worksync MCP Server"),
			mcp.WithDescription("worksync synchronizes work items from trackers into a canonical model and writes derived metrics back."),
			mcp.WithBuildInfo(BuildCommit, BuildDate),
			mcp.WithInstructions("Use tools to list connections, validate settings, synchronize team and portfolio work items, and write values back."),
		),
		services: services,
		root:     root,
	}

	s.registerTools()
	s.registerResources()
	return s
}

// Close releases connector plugin processes.
func (s *Server) Close() {
	s.services.Close()
}

type ConnectionArgs struct {
	Connection string `json:"connection" jsonschema:"description=Name of the connection"`
}

type TeamArgs struct {
	Team string `json:"team" jsonschema:"description=Name of the team"`
}

type PortfolioArgs struct {
	Portfolio string `json:"portfolio" jsonschema:"description=Name of the portfolio"`
}

type ParentFeaturesArgs struct {
	Portfolio string   `json:"portfolio" jsonschema:"description=Portfolio whose connection is queried"`
	IDs       []string `json:"ids" jsonschema:"description=Reference ids of the parent items"`
}

type WriteBackArgs struct {
	Connection string                  `json:"connection" jsonschema:"description=Name of the connection to write to"`
	Updates    []writeback.FieldUpdate `json:"updates" jsonschema:"description=Field updates applied in order"`
}

type TriggerArgs struct {
	Scope string `json:"scope" jsonschema:"description=Either team or portfolio"`
	Name  string `json:"name" jsonschema:"description=Name of the team or portfolio"`
}

type RankArgs struct {
	Rank      string   `json:"rank,omitempty" jsonschema:"description=Existing rank key for higher or lower"`
	Ranks     []string `json:"ranks,omitempty" jsonschema:"description=Existing rank keys for above or below"`
	Direction string   `json:"direction" jsonschema:"description=higher or lower (next to rank) or above or below (all of ranks)"`
}

type BoardArgs struct {
	Connection string `json:"connection" jsonschema:"description=Name of the connection"`
	Board      string `json:"board" jsonschema:"description=Board id from worksync_list_boards"`
}

type ValidationResult struct {
	Name  string `json:"name"`
	Valid bool   `json:"valid"`
}

type ConnectionSummary struct {
	Name             string   `json:"name"`
	Kind             string   `json:"kind"`
	URL              string   `json:"url,omitempty"`
	AdditionalFields int      `json:"additional_fields"`
	WriteBack        int      `json:"write_back_mappings"`
	Teams            []string `json:"teams,omitempty"`
}

type SyncResult struct {
	Name  string              `json:"name"`
	Count int                 `json:"count"`
	Items []workitem.WorkItem `json:"items"`
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("worksync_list_connections").
		Description("List configured connections with their teams").
		Handler(s.handleListConnections)

	s.mcpServer.Tool("worksync_validate_connection").
		Description("Check credentials and additional field references of a connection").
		Handler(s.handleValidateConnection)

	s.mcpServer.Tool("worksync_sync_team").
		Description("Synchronize a team's work items into the canonical model").
		Handler(s.handleSyncTeam)

	s.mcpServer.Tool("worksync_validate_team").
		Description("Validate a team's settings against its connection").
		Handler(s.handleValidateTeam)

	s.mcpServer.Tool("worksync_sync_portfolio").
		Description("Synchronize a portfolio's features").
		Handler(s.handleSyncPortfolio)

	s.mcpServer.Tool("worksync_validate_portfolio").
		Description("Validate a portfolio's settings against its connection").
		Handler(s.handleValidatePortfolio)

	s.mcpServer.Tool("worksync_parent_features").
		Description("Look up names and links of parent features by reference id").
		Handler(s.handleParentFeatures)

	s.mcpServer.Tool("worksync_write_back").
		Description("Write field values to remote work items; reports one result per update").
		Handler(s.handleWriteBack)

	s.mcpServer.Tool("worksync_trigger_write_back").
		Description("Synchronize a team or portfolio and write its mapped values back").
		Handler(s.handleTriggerWriteBack)

	s.mcpServer.Tool("worksync_rank").
		Description("Compute the rank key next to an existing rank, or above or below a set of ranks").
		Handler(s.handleRank)

	s.mcpServer.Tool("worksync_list_boards").
		Description("List the boards a connection can see").
		Handler(s.handleListBoards)

	s.mcpServer.Tool("worksync_board_info").
		Description("Suggest a team query, work item types and workflow states from a board").
		Handler(s.handleBoardInfo)
}

func (s *Server) workspace(ctx context.Context) (*connection.Workspace, error) {
	ws, err := s.services.LoadWorkspace(ctx)
	if err != nil {
		s.services.Logger.Warn("load workspace failed", "error", err)
		if errors.Is(err, storage.ErrNotInitialized) {
			return nil, mcpErr("Workspace not initialized. Run 'worksync init' first.")
		}
		return nil, mcpErr("Failed to load workspace. Check .worksync/workspace.yaml for errors.")
	}
	return ws, nil
}

func (s *Server) handleListConnections(ctx context.Context, _ struct{}) (any, error) {
	ws, err := s.workspace(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]ConnectionSummary, 0, len(ws.Connections))
	for _, c := range ws.Connections {
		summary := ConnectionSummary{
			Name:             c.Name,
			Kind:             c.Kind,
			URL:              c.BaseURL(),
			AdditionalFields: len(c.AdditionalFieldDefinitions),
			WriteBack:        len(c.WriteBackMappings),
		}
		for _, t := range ws.TeamsOn(c.Name) {
			summary.Teams = append(summary.Teams, t.Name)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *Server) handleValidateConnection(ctx context.Context, args ConnectionArgs) (any, error) {
	ws, err := s.workspace(ctx)
	if err != nil {
		return nil, err
	}
	conn, err := s.connection(ctx, args.Connection)
	if err != nil {
		return nil, err
	}
	s.services.Refresh(ws)
	return ValidationResult{Name: conn.Name, Valid: s.services.Validation.ValidateConnection(ctx, conn)}, nil
}

func (s *Server) handleSyncTeam(ctx context.Context, args TeamArgs) (any, error) {
	team, err := s.team(ctx, args.Team)
	if err != nil {
		return nil, err
	}
	items, err := s.services.Sync.GetWorkItemsForTeam(ctx, team)
	if err != nil {
		s.services.Logger.Warn("team sync failed", "team", team.Name, "error", err)
		return nil, mcpErr(fmt.Sprintf("Failed to synchronize team '%s'. Run worksync_validate_team for details.", team.Name))
	}
	return SyncResult{Name: team.Name, Count: len(items), Items: items}, nil
}

func (s *Server) handleValidateTeam(ctx context.Context, args TeamArgs) (any, error) {
	team, err := s.team(ctx, args.Team)
	if err != nil {
		return nil, err
	}
	return ValidationResult{Name: team.Name, Valid: s.services.Validation.ValidateTeamSettings(ctx, team)}, nil
}

func (s *Server) handleSyncPortfolio(ctx context.Context, args PortfolioArgs) (any, error) {
	portfolio, err := s.portfolio(ctx, args.Portfolio)
	if err != nil {
		return nil, err
	}
	features, err := s.services.Sync.GetFeaturesForProject(ctx, portfolio)
	if err != nil {
		s.services.Logger.Warn("portfolio sync failed", "portfolio", portfolio.Name, "error", err)
		return nil, mcpErr(fmt.Sprintf("Failed to synchronize portfolio '%s'. Run worksync_validate_portfolio for details.", portfolio.Name))
	}
	return SyncResult{Name: portfolio.Name, Count: len(features), Items: features}, nil
}

func (s *Server) handleValidatePortfolio(ctx context.Context, args PortfolioArgs) (any, error) {
	portfolio, err := s.portfolio(ctx, args.Portfolio)
	if err != nil {
		return nil, err
	}
	return ValidationResult{Name: portfolio.Name, Valid: s.services.Validation.ValidatePortfolioSettings(ctx, portfolio)}, nil
}

func (s *Server) handleParentFeatures(ctx context.Context, args ParentFeaturesArgs) (any, error) {
	portfolio, err := s.portfolio(ctx, args.Portfolio)
	if err != nil {
		return nil, err
	}
	features, err := s.services.Sync.GetParentFeaturesDetails(ctx, portfolio, args.IDs)
	if err != nil {
		s.services.Logger.Warn("parent lookup failed", "portfolio", portfolio.Name, "error", err)
		return nil, mcpErr("Failed to look up parent features. Check the portfolio's connection.")
	}
	if features == nil {
		features = []workitem.ParentFeature{}
	}
	return features, nil
}

func (s *Server) handleWriteBack(ctx context.Context, args WriteBackArgs) (any, error) {
	ws, err := s.workspace(ctx)
	if err != nil {
		return nil, err
	}
	conn, err := ws.Connection(args.Connection)
	if err != nil {
		return nil, mcpErr(fmt.Sprintf("Connection '%s' not found. Use worksync_list_connections to see configured names.", args.Connection))
	}
	return s.services.WriteBack.WriteFieldsToWorkItems(ctx, conn, args.Updates)
}

func (s *Server) handleTriggerWriteBack(ctx context.Context, args TriggerArgs) (any, error) {
	switch strings.ToLower(strings.TrimSpace(args.Scope)) {
	case string(writeback.ScopeTeam):
		team, err := s.team(ctx, args.Name)
		if err != nil {
			return nil, err
		}
		result, err := s.services.Trigger.TriggerTeam(ctx, team)
		if err != nil {
			s.services.Logger.Warn("team write-back failed", "team", team.Name, "error", err)
			return nil, mcpErr(fmt.Sprintf("Write-back for team '%s' failed before any update was sent.", team.Name))
		}
		return result, nil

	case string(writeback.ScopePortfolio):
		ws, err := s.workspace(ctx)
		if err != nil {
			return nil, err
		}
		portfolio, err := ws.Portfolio(args.Name)
		if err != nil {
			return nil, mcpErr(fmt.Sprintf("Portfolio '%s' not found.", args.Name))
		}
		teams := ws.TeamsOn(portfolio.ConnectionName)
		result, err := s.services.Trigger.TriggerPortfolio(ctx, portfolio, teams)
		if err != nil {
			s.services.Logger.Warn("portfolio write-back failed", "portfolio", portfolio.Name, "error", err)
			return nil, mcpErr(fmt.Sprintf("Write-back for portfolio '%s' failed before any update was sent.", portfolio.Name))
		}
		return result, nil

	default:
		return nil, mcpErr("Scope must be 'team' or 'portfolio'.")
	}
}

func (s *Server) handleRank(_ context.Context, args RankArgs) (string, error) {
	switch strings.ToLower(strings.TrimSpace(args.Direction)) {
	case "higher", "":
		return rank.HigherPriority(args.Rank), nil
	case "lower":
		return rank.LowerPriority(args.Rank), nil
	case string(rank.Above), string(rank.Below):
		order, _ := rank.ParseRelativeOrder(args.Direction)
		return rank.Adjacent(args.Ranks, order), nil
	default:
		return "", mcpErr("Direction must be 'higher', 'lower', 'above' or 'below'.")
	}
}

func (s *Server) handleListBoards(ctx context.Context, args ConnectionArgs) (any, error) {
	conn, err := s.connection(ctx, args.Connection)
	if err != nil {
		return nil, err
	}
	boards, err := s.services.Boards.Boards(ctx, conn)
	if err != nil {
		return nil, s.boardErr(conn.Name, err)
	}
	return boards, nil
}

func (s *Server) handleBoardInfo(ctx context.Context, args BoardArgs) (any, error) {
	conn, err := s.connection(ctx, args.Connection)
	if err != nil {
		return nil, err
	}
	info, err := s.services.Boards.BoardInfo(ctx, conn, args.Board)
	if err != nil {
		return nil, s.boardErr(conn.Name, err)
	}
	return info, nil
}

func (s *Server) boardErr(conn string, err error) error {
	s.services.Logger.Warn("board discovery failed", "connection", conn, "error", err)
	if errors.Is(err, plugin.ErrBoardsNotSupported) {
		return mcpErr(fmt.Sprintf("Connection '%s' does not support board discovery.", conn))
	}
	return mcpErr(fmt.Sprintf("Board discovery on '%s' failed. Check the board id and the connection credentials.", conn))
}

func (s *Server) connection(ctx context.Context, name string) (*connection.Connection, error) {
	ws, err := s.workspace(ctx)
	if err != nil {
		return nil, err
	}
	conn, err := ws.Connection(name)
	if err != nil {
		return nil, mcpErr(fmt.Sprintf("Connection '%s' not found. Use worksync_list_connections to see configured names.", name))
	}
	return conn, nil
}

func (s *Server) team(ctx context.Context, name string) (*connection.Team, error) {
	ws, err := s.workspace(ctx)
	if err != nil {
		return nil, err
	}
	team, err := ws.Team(name)
	if err != nil {
		return nil, mcpErr(fmt.Sprintf("Team '%s' not found.", name))
	}
	return team, nil
}

func (s *Server) portfolio(ctx context.Context, name string) (*connection.Portfolio, error) {
	ws, err := s.workspace(ctx)
	if err != nil {
		return nil, err
	}
	portfolio, err := ws.Portfolio(name)
	if err != nil {
		return nil, mcpErr(fmt.Sprintf("Portfolio '%s' not found.", name))
	}
	return portfolio, nil
}

func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr, mcp.WithDefaultCORS())
}
