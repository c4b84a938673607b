package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"radhttpd/internal/identity"
	"radhttpd/internal/policy"
)

// PolicyDB is the policy database: seeding policies per repository and
// follow policies per node.
type PolicyDB struct {
	handle
}

// OpenPolicyDB opens the policy database at path.
func OpenPolicyDB(path string, opts Options) (*PolicyDB, error) {
	db, err := open(path, opts, policyMigrations)
	if err != nil {
		return nil, err
	}
	return &PolicyDB{handle{db: db, path: path}}, nil
}

// SeedPolicy returns the seeding policy of rid, or ErrNotFound.
func (s *PolicyDB) SeedPolicy(ctx context.Context, rid identity.RepoID) (policy.SeedingPolicy, error) {
	var tag, scope string
	err := s.db.QueryRowContext(ctx,
		"SELECT policy, scope FROM repo_policies WHERE id = ?", rid.String(),
	).Scan(&tag, &scope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no seeding policy for %s", ErrNotFound, rid)
	}
	if err != nil {
		return nil, unavailable("query seeding policy", err)
	}

	p, err := policy.New(tag, scope)
	if err != nil {
		return nil, unavailable("decode seeding policy", err)
	}
	return p, nil
}

// SeedPolicies returns every seeding policy in the database. An empty
// database yields an empty, non-nil slice.
func (s *PolicyDB) SeedPolicies(ctx context.Context) ([]policy.Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, policy, scope FROM repo_policies")
	if err != nil {
		return nil, unavailable("query seeding policies", err)
	}
	defer rows.Close()

	entries := []policy.Entry{}
	for rows.Next() {
		var id, tag, scope string
		if err := rows.Scan(&id, &tag, &scope); err != nil {
			return nil, unavailable("scan seeding policy", err)
		}
		rid, err := identity.ParseRepoID(id)
		if err != nil {
			return nil, unavailable("decode seeding policy", fmt.Errorf("repo %q: %w", id, err))
		}
		p, err := policy.New(tag, scope)
		if err != nil {
			return nil, unavailable("decode seeding policy", fmt.Errorf("repo %s: %w", rid, err))
		}
		entries = append(entries, policy.Entry{RID: rid, Policy: p})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate seeding policies", err)
	}
	return entries, nil
}

// FollowAlias returns the alias the local user gave nid when following it.
func (s *PolicyDB) FollowAlias(ctx context.Context, nid identity.NodeID) (string, bool, error) {
	var alias string
	err := s.db.QueryRowContext(ctx, "SELECT alias FROM follow_policies WHERE id = ?", nid.String()).Scan(&alias)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("query follow alias", err)
	}
	return alias, alias != "", nil
}

// SetSeedPolicy inserts or replaces the seeding policy of rid.
func (s *PolicyDB) SetSeedPolicy(ctx context.Context, rid identity.RepoID, p policy.SeedingPolicy) error {
	scope := string(policy.ScopeFollowed)
	if allow, ok := p.(policy.Allow); ok {
		if _, err := policy.ParseScope(string(allow.Scope)); err != nil {
			return err
		}
		scope = string(allow.Scope)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repo_policies (id, policy, scope) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET policy = excluded.policy, scope = excluded.scope
	`, rid.String(), p.Tag(), scope)
	if err != nil {
		return fmt.Errorf("set seeding policy: %w", err)
	}
	return nil
}

// Follow records a follow policy for nid with an optional alias.
func (s *PolicyDB) Follow(ctx context.Context, nid identity.NodeID, alias string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO follow_policies (id, alias, policy) VALUES (?, ?, 'allow')
		ON CONFLICT(id) DO UPDATE SET alias = excluded.alias, policy = excluded.policy
	`, nid.String(), alias)
	if err != nil {
		return fmt.Errorf("follow: %w", err)
	}
	return nil
}
