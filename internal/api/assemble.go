package api

import (
	"encoding/json"

	"radhttpd/internal/identity"
	"radhttpd/internal/node"
	"radhttpd/internal/policy"
)

// assembleNode builds the local node summary from already fetched parts.
// Empty parts are omitted from the body.
func assembleNode(nid identity.NodeID, agent string, config json.RawMessage, state node.State, web WebConfig) NodeResponse {
	return NodeResponse{
		ID:          nid,
		Agent:       agent,
		Config:      config,
		State:       state,
		AvatarURL:   web.AvatarURL,
		BannerURL:   web.BannerURL,
		Description: web.Description,
	}
}

// assemblePeer builds the summary of another node. Everything but the alias
// derives from the identifier itself.
func assemblePeer(nid identity.NodeID, alias string) PeerResponse {
	return PeerResponse{
		Alias: alias,
		DID:   nid.DID(),
		SSH: SSHKeys{
			Full: nid.SSHKey(),
			Hash: nid.SSHFingerprint(),
		},
	}
}

// assembleInventory never returns nil, so an empty inventory encodes as [].
func assembleInventory(rids []identity.RepoID) []identity.RepoID {
	if rids == nil {
		return []identity.RepoID{}
	}
	return rids
}

// assemblePolicies never returns nil, so an empty listing encodes as [].
func assemblePolicies(entries []policy.Entry) []policy.Entry {
	if entries == nil {
		return []policy.Entry{}
	}
	return entries
}
