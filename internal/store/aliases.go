package store

import (
	"context"

	"radhttpd/internal/identity"
)

// Aliases resolves node aliases. An alias given when following a node wins
// over the alias the node announced for itself.
type Aliases struct {
	Policies *PolicyDB
	Nodes    *NodeDB
}

// Alias returns the alias of nid, if there is one.
func (a Aliases) Alias(ctx context.Context, nid identity.NodeID) (string, bool, error) {
	if a.Policies != nil {
		alias, ok, err := a.Policies.FollowAlias(ctx, nid)
		if err != nil || ok {
			return alias, ok, err
		}
	}
	if a.Nodes != nil {
		return a.Nodes.NodeAlias(ctx, nid)
	}
	return "", false, nil
}
