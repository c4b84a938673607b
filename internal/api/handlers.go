package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"radhttpd/internal/node"
)

// handleRoot serves the discovery document.
// GET /
func (s *Server) handleRoot(r *http.Request, _ params) (any, error) {
	version := s.opts.Version
	if s.opts.GitHead != "" {
		version = fmt.Sprintf("%s-%s", s.opts.Version, s.opts.GitHead)
	}
	return RootResponse{
		Message:    "Welcome!",
		Service:    Service,
		Version:    version,
		APIVersion: APIVersion,
		NID:        s.opts.NodeID,
		Path:       Prefix,
		Links:      s.links,
	}, nil
}

// handleNode returns local node information.
// GET /node
//
// An unreachable node is reported as stopped and a failing config fetch
// leaves the config out. A failing address store fails the request.
func (s *Server) handleNode(r *http.Request, _ params) (any, error) {
	ctx := r.Context()
	log := s.log.WithContext(ctx)

	state, err := s.opts.Runtime.State(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("node state unavailable, reporting stopped", "error", err)
		state = node.StateStopped
	}
	s.metrics.SetNodeState(string(state))

	var config json.RawMessage
	if state == node.StateRunning {
		config, err = s.opts.Runtime.Config(ctx)
		if err != nil {
			log.Error("error getting node config", "error", err)
			config = nil
		}
	}

	agent, _, err := s.opts.Addresses.Agent(ctx, s.opts.NodeID)
	if err != nil {
		return nil, err
	}

	return assembleNode(s.opts.NodeID, agent, config, state, *s.web.Load()), nil
}

// handlePeer returns stored information about another node.
// GET /nodes/:nid
func (s *Server) handlePeer(r *http.Request, p params) (any, error) {
	ctx := r.Context()

	alias, _, err := s.opts.Aliases.Alias(ctx, p.nid)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.WithContext(ctx).Warn("alias lookup failed", "nid", p.nid.String(), "error", err)
		alias = ""
	}

	return assemblePeer(p.nid, alias), nil
}

// handleInventory returns the repositories a node is known to host.
// GET /nodes/:nid/inventory
func (s *Server) handleInventory(r *http.Request, p params) (any, error) {
	rids, err := s.opts.Inventory.Inventory(r.Context(), p.nid)
	if err != nil {
		return nil, err
	}
	return assembleInventory(rids), nil
}

// handlePolicies returns every local seeding policy.
// GET /node/policies/repos
func (s *Server) handlePolicies(r *http.Request, _ params) (any, error) {
	entries, err := s.opts.Policies.SeedPolicies(r.Context())
	if err != nil {
		return nil, err
	}
	return assemblePolicies(entries), nil
}

// handlePolicy returns the seeding policy of one repository.
// GET /node/policies/repos/:rid
func (s *Server) handlePolicy(r *http.Request, p params) (any, error) {
	pol, err := s.opts.Policies.SeedPolicy(r.Context(), p.rid)
	if err != nil {
		return nil, err
	}
	if pol == nil {
		return nil, errors.New("policy store returned no policy and no error")
	}
	return pol, nil
}
