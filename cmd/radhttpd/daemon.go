package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"radhttpd/internal/api"
	"radhttpd/internal/config"
	"radhttpd/internal/health"
	"radhttpd/internal/identity"
	"radhttpd/internal/logging"
	"radhttpd/internal/metrics"
	"radhttpd/internal/node"
	"radhttpd/internal/store"
)

// daemon owns the stores and handlers behind the listener.
type daemon struct {
	nid      identity.NodeID
	nodes    *store.NodeDB
	policies *store.PolicyDB
	runtime  *node.Handle
	api      *api.Server
	health   *health.Checker
	metrics  *metrics.Metrics
	handler  http.Handler
}

// newDaemon opens the node databases read-only and builds the HTTP handler.
func newDaemon(cfg *config.Config, log *logging.Logger) (*daemon, error) {
	nid, err := identity.LoadNodeID(cfg.Node.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("load node id: %w", err)
	}

	opts := store.Options{
		ReadOnly:       true,
		BusyTimeout:    cfg.Storage.BusyTimeout(),
		MaxConnections: cfg.Storage.MaxConnections,
	}
	nodes, err := store.OpenNodeDB(cfg.Storage.NodeDB, opts)
	if err != nil {
		return nil, fmt.Errorf("open node database: %w", err)
	}
	policies, err := store.OpenPolicyDB(cfg.Storage.PoliciesDB, opts)
	if err != nil {
		nodes.Close()
		return nil, fmt.Errorf("open policies database: %w", err)
	}

	runtime := node.NewHandle(node.Config{
		SocketPath:     cfg.Node.SocketPath,
		DialTimeout:    cfg.Node.DialTimeout(),
		RequestTimeout: cfg.Node.RequestTimeout(),
	})

	m := metrics.New()
	m.SetBuildInfo(version, commit)

	gitHead := commit
	if gitHead == "unknown" {
		gitHead = ""
	}

	d := &daemon{
		nid:      nid,
		nodes:    nodes,
		policies: policies,
		runtime:  runtime,
		metrics:  m,
		health:   health.NewChecker(),
	}
	d.api = api.New(api.Options{
		NodeID:      nid,
		Addresses:   nodes,
		Aliases:     store.Aliases{Policies: policies, Nodes: nodes},
		Inventory:   nodes,
		Policies:    policies,
		Runtime:     runtime,
		Web:         webConfig(cfg.Web),
		Version:     version,
		GitHead:     gitHead,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		RateLimit:   cfg.HTTP.RateLimit,
		RateBurst:   cfg.HTTP.RateBurst,
		Logger:      log,
		Metrics:     m,
	})

	d.health.RegisterFunc("node_db", true, health.DatabaseCheck(nodes.Path(), nodes.Ping))
	d.health.RegisterFunc("policies_db", true, health.DatabaseCheck(policies.Path(), policies.Ping))
	d.health.RegisterFunc("node", false, health.NodeCheck(runtime.SocketPath(), d.nodeState))

	mux := http.NewServeMux()
	mux.Handle("/api/", d.api)
	mux.Handle("/healthz", d.health.HealthHandler())
	mux.Handle("/livez", d.health.LivenessHandler())
	mux.Handle("/readyz", d.health.ReadinessHandler())
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, m.Handler())
	}
	d.handler = mux

	return d, nil
}

// nodeState adapts the control socket state for the health check.
func (d *daemon) nodeState(ctx context.Context) (string, error) {
	state, err := d.runtime.State(ctx)
	if err != nil {
		return "", err
	}
	return string(state), nil
}

func (d *daemon) setWeb(web config.WebConfig) {
	d.api.SetWeb(webConfig(web))
}

// Close closes both databases.
func (d *daemon) Close() error {
	return errors.Join(d.nodes.Close(), d.policies.Close())
}

func webConfig(c config.WebConfig) api.WebConfig {
	return api.WebConfig{
		AvatarURL:   c.AvatarURL,
		BannerURL:   c.BannerURL,
		Description: c.Description,
	}
}
