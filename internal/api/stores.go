package api

import (
	"context"
	"encoding/json"

	"radhttpd/internal/identity"
	"radhttpd/internal/node"
	"radhttpd/internal/policy"
)

// AddressStore looks up address records.
type AddressStore interface {
	// Agent returns the user agent nid last announced, if any.
	Agent(ctx context.Context, nid identity.NodeID) (string, bool, error)
}

// AliasStore resolves node aliases.
type AliasStore interface {
	Alias(ctx context.Context, nid identity.NodeID) (string, bool, error)
}

// InventoryStore looks up which repositories a node hosts.
type InventoryStore interface {
	Inventory(ctx context.Context, nid identity.NodeID) ([]identity.RepoID, error)
}

// PolicyStore reads seeding policies. SeedPolicy returns an error matching
// store.ErrNotFound when rid has no policy.
type PolicyStore interface {
	SeedPolicy(ctx context.Context, rid identity.RepoID) (policy.SeedingPolicy, error)
	SeedPolicies(ctx context.Context) ([]policy.Entry, error)
}

// Runtime is the handle on the local node process.
type Runtime interface {
	State(ctx context.Context) (node.State, error)
	Config(ctx context.Context) (json.RawMessage, error)
}
