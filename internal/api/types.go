package api

import (
	"encoding/json"

	"radhttpd/internal/identity"
	"radhttpd/internal/node"
)

// WebConfig is display metadata configured for the web frontend.
type WebConfig struct {
	AvatarURL   string
	BannerURL   string
	Description string
}

// NodeResponse describes the local node. Optional fields are left out of the
// body when unset.
type NodeResponse struct {
	ID          identity.NodeID `json:"id"`
	Agent       string          `json:"agent,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
	State       node.State      `json:"state"`
	AvatarURL   string          `json:"avatarUrl,omitempty"`
	BannerURL   string          `json:"bannerUrl,omitempty"`
	Description string          `json:"description,omitempty"`
}

// PeerResponse describes another node.
type PeerResponse struct {
	Alias string  `json:"alias,omitempty"`
	DID   string  `json:"did"`
	SSH   SSHKeys `json:"ssh"`
}

// SSHKeys are the OpenSSH renderings of a node key.
type SSHKeys struct {
	Full string `json:"full"`
	Hash string `json:"hash"`
}

// RootResponse is the discovery document served at the API root.
type RootResponse struct {
	Message    string          `json:"message"`
	Service    string          `json:"service"`
	Version    string          `json:"version"`
	APIVersion string          `json:"apiVersion"`
	NID        identity.NodeID `json:"nid"`
	Path       string          `json:"path"`
	Links      []Link          `json:"links"`
}

// Link describes one endpoint.
type Link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
	Type string `json:"type"`
}
