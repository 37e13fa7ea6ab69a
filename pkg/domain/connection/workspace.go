package connection

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTeamNotFound is returned when a team name matches nothing.
	ErrTeamNotFound = errors.New("team not found")
	// ErrPortfolioNotFound is returned when a portfolio name matches nothing.
	ErrPortfolioNotFound = errors.New("portfolio not found")
)

// Workspace is everything configured in one workspace file.
type Workspace struct {
	Connections []Connection `yaml:"connections" json:"connections"`
	Teams       []Team       `yaml:"teams,omitempty" json:"teams,omitempty"`
	Portfolios  []Portfolio  `yaml:"portfolios,omitempty" json:"portfolios,omitempty"`
}

// Connection returns the connection named name, compared case-insensitively.
func (w *Workspace) Connection(name string) (*Connection, error) {
	for i := range w.Connections {
		if strings.EqualFold(w.Connections[i].Name, name) {
			return &w.Connections[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrConnectionNotFound, name)
}

// Team returns the named team with its connection hydrated.
func (w *Workspace) Team(name string) (*Team, error) {
	for i := range w.Teams {
		if strings.EqualFold(w.Teams[i].Name, name) {
			t := w.Teams[i]
			t.Connection, _ = w.Connection(t.ConnectionName)
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrTeamNotFound, name)
}

// Portfolio returns the named portfolio with its connection hydrated.
func (w *Workspace) Portfolio(name string) (*Portfolio, error) {
	for i := range w.Portfolios {
		if strings.EqualFold(w.Portfolios[i].Name, name) {
			p := w.Portfolios[i]
			p.Connection, _ = w.Connection(p.ConnectionName)
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrPortfolioNotFound, name)
}

// TeamsOn returns the hydrated teams that read from the named connection.
func (w *Workspace) TeamsOn(connectionName string) []Team {
	var out []Team
	for _, t := range w.Teams {
		if strings.EqualFold(t.ConnectionName, connectionName) {
			t.Connection, _ = w.Connection(t.ConnectionName)
			out = append(out, t)
		}
	}
	return out
}

// Validate checks every connection, team and portfolio, and that names are
// unique within their kind.
func (w *Workspace) Validate() error {
	seen := make(map[string]bool)
	for i := range w.Connections {
		c := &w.Connections[i]
		if err := c.Validate(); err != nil {
			return err
		}
		key := "connection/" + strings.ToLower(c.Name)
		if seen[key] {
			return &ValidationError{Field: "connections", Message: fmt.Sprintf("duplicate connection %q", c.Name)}
		}
		seen[key] = true
	}

	for _, t := range w.Teams {
		team, err := w.Team(t.Name)
		if err != nil {
			return err
		}
		if err := team.Validate(); err != nil {
			return err
		}
		key := "team/" + strings.ToLower(t.Name)
		if seen[key] {
			return &ValidationError{Field: "teams", Message: fmt.Sprintf("duplicate team %q", t.Name)}
		}
		seen[key] = true
	}

	for _, p := range w.Portfolios {
		portfolio, err := w.Portfolio(p.Name)
		if err != nil {
			return err
		}
		if err := portfolio.Validate(); err != nil {
			return err
		}
		key := "portfolio/" + strings.ToLower(p.Name)
		if seen[key] {
			return &ValidationError{Field: "portfolios", Message: fmt.Sprintf("duplicate portfolio %q", p.Name)}
		}
		seen[key] = true
	}
	return nil
}
