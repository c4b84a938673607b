package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"radhttpd/internal/identity"
)

// NodeDB is the address and routing database. It records the peers the node
// has heard of and which repositories each of them announced.
type NodeDB struct {
	handle
}

// Node is a row of the address database.
type Node struct {
	ID        identity.NodeID
	Alias     string
	Agent     string
	Timestamp int64
}

// OpenNodeDB opens the address and routing database at path.
func OpenNodeDB(path string, opts Options) (*NodeDB, error) {
	db, err := open(path, opts, nodeMigrations)
	if err != nil {
		return nil, err
	}
	return &NodeDB{handle{db: db, path: path}}, nil
}

// Agent returns the user agent last announced by nid. The boolean is false
// when the node is unknown or never announced one.
func (s *NodeDB) Agent(ctx context.Context, nid identity.NodeID) (string, bool, error) {
	var agent sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT agent FROM nodes WHERE id = ?", nid.String()).Scan(&agent)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("query agent", err)
	}
	if !agent.Valid || agent.String == "" {
		return "", false, nil
	}
	return agent.String, true, nil
}

// NodeAlias returns the alias nid announced for itself.
func (s *NodeDB) NodeAlias(ctx context.Context, nid identity.NodeID) (string, bool, error) {
	var alias string
	err := s.db.QueryRowContext(ctx, "SELECT alias FROM nodes WHERE id = ?", nid.String()).Scan(&alias)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("query node alias", err)
	}
	return alias, alias != "", nil
}

// Inventory returns the repositories nid is known to host, in storage order.
// An unknown node has an empty inventory.
func (s *NodeDB) Inventory(ctx context.Context, nid identity.NodeID) ([]identity.RepoID, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT repo FROM routing WHERE node = ?", nid.String())
	if err != nil {
		return nil, unavailable("query inventory", err)
	}
	defer rows.Close()

	inventory := []identity.RepoID{}
	for rows.Next() {
		var repo string
		if err := rows.Scan(&repo); err != nil {
			return nil, unavailable("scan inventory", err)
		}
		rid, err := identity.ParseRepoID(repo)
		if err != nil {
			return nil, unavailable("decode inventory", fmt.Errorf("repo %q: %w", repo, err))
		}
		inventory = append(inventory, rid)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate inventory", err)
	}
	return inventory, nil
}

// InsertNode inserts or replaces an address record.
func (s *NodeDB) InsertNode(ctx context.Context, n Node) error {
	var agent sql.NullString
	if n.Agent != "" {
		agent = sql.NullString{String: n.Agent, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nodes (id, alias, agent, timestamp) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET alias = excluded.alias, agent = excluded.agent, timestamp = excluded.timestamp
	`, n.ID.String(), n.Alias, agent, n.Timestamp)
	if err != nil {
		return fmt.Errorf("insert node: %w", err)
	}
	return nil
}

// InsertRoute records that nid hosts rid.
func (s *NodeDB) InsertRoute(ctx context.Context, rid identity.RepoID, nid identity.NodeID, timestamp int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO routing (repo, node, timestamp) VALUES (?, ?, ?)
		ON CONFLICT(repo, node) DO UPDATE SET timestamp = excluded.timestamp
	`, rid.String(), nid.String(), timestamp)
	if err != nil {
		return fmt.Errorf("insert route: %w", err)
	}
	return nil
}
