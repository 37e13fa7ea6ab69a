package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/felixgeelhaar/worksync/pkg/domain/connection"
	"github.com/felixgeelhaar/worksync/pkg/domain/plugin"
)

// DefaultDoneItemsCutoffDays is the done-item window given to teams created
// from a board.
const DefaultDoneItemsCutoffDays = 180

// BoardService lists the boards of a connection and turns one into team
// settings.
type BoardService struct {
	connectors Connectors
	logger     *slog.Logger
}

// NewBoardService creates a BoardService.
func NewBoardService(connectors Connectors, logger *slog.Logger) *BoardService {
	return &BoardService{connectors: connectors, logger: loggerOrDefault(logger)}
}

// Boards lists the boards visible through conn. Connectors without board
// discovery return plugin.ErrBoardsNotSupported.
func (s *BoardService) Boards(ctx context.Context, conn *connection.Connection) ([]plugin.Board, error) {
	d, err := s.discoverer(ctx, conn)
	if err != nil {
		return nil, err
	}
	boards, err := d.Boards(ctx)
	if err != nil {
		return nil, fmt.Errorf("list boards of %s: %w", conn.Name, err)
	}
	s.logger.Debug("boards listed", "connection", conn.Name, "boards", len(boards))
	return boards, nil
}

// BoardInfo returns the query, work item types and states suggested by the
// board with id boardID.
func (s *BoardService) BoardInfo(ctx context.Context, conn *connection.Connection, boardID string) (plugin.BoardInfo, error) {
	d, err := s.discoverer(ctx, conn)
	if err != nil {
		return plugin.BoardInfo{}, err
	}
	info, err := d.BoardInfo(ctx, boardID)
	if err != nil {
		return plugin.BoardInfo{}, fmt.Errorf("board %s of %s: %w", boardID, conn.Name, err)
	}
	return info, nil
}

// TeamFromBoard builds settings for a team called name that selects what the
// board shows. The team is not saved.
func (s *BoardService) TeamFromBoard(ctx context.Context, conn *connection.Connection, boardID, name string) (*connection.Team, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &connection.ValidationError{Field: "name", Message: "must not be empty"}
	}
	info, err := s.BoardInfo(ctx, conn, boardID)
	if err != nil {
		return nil, err
	}
	team := &connection.Team{QuerySettings: connection.QuerySettings{
		Name:                name,
		ConnectionName:      conn.Name,
		Connection:          conn,
		Query:               info.Query,
		WorkItemTypes:       info.WorkItemTypes,
		States:              info.States,
		DoneItemsCutoffDays: DefaultDoneItemsCutoffDays,
	}}
	if err := team.Validate(); err != nil {
		return nil, err
	}
	return team, nil
}

func (s *BoardService) discoverer(ctx context.Context, conn *connection.Connection) (plugin.BoardDiscoverer, error) {
	if conn == nil {
		return nil, connection.ErrConnectionRequired
	}
	c, err := s.connectors.Connect(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", conn.Name, err)
	}
	d, ok := c.(plugin.BoardDiscoverer)
	if !ok {
		return nil, fmt.Errorf("%s: %w", conn.Name, plugin.ErrBoardsNotSupported)
	}
	return d, nil
}
