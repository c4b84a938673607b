// Package api serves the read-only node HTTP API.
//
// Every route is a GET under Prefix. Path identifiers are parsed before a
// handler runs, handler errors go through translate, and successful responses
// get the Cache-Control directive listed for their route.
package api

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"radhttpd/internal/identity"
	"radhttpd/internal/logging"
	"radhttpd/internal/metrics"
)

// Prefix is the path every API route lives under.
const Prefix = "/api/v1"

// APIVersion is the version of the API surface.
const APIVersion = "1.0.0"

// Service is the name reported by the root document.
const Service = "radhttpd"

// Routes, relative to Prefix. They double as metric labels.
const (
	routeRoot      = "/"
	routeNode      = "/node"
	routePolicies  = "/node/policies/repos"
	routePolicy    = "/node/policies/repos/:rid"
	routePeer      = "/nodes/:nid"
	routeInventory = "/nodes/:nid/inventory"
)

// Options configures a Server.
type Options struct {
	// NodeID is the local node.
	NodeID identity.NodeID

	Addresses AddressStore
	Aliases   AliasStore
	Inventory InventoryStore
	Policies  PolicyStore
	Runtime   Runtime

	// Web is the initial display metadata; see Server.SetWeb.
	Web WebConfig

	Version string
	GitHead string

	// CORSOrigins lists allowed origins. Empty allows any origin.
	CORSOrigins []string

	// RateLimit is the sustained requests per second allowed per client
	// host, with bursts up to RateBurst. Zero disables limiting.
	RateLimit float64
	RateBurst int

	Logger  *logging.Logger
	Metrics *metrics.Metrics
}

// Server is the API http.Handler.
type Server struct {
	opts    Options
	web     atomic.Pointer[WebConfig]
	log     *logging.Logger
	metrics *metrics.Metrics
	router  *httprouter.Router
	handler http.Handler
	links   []Link
}

// params are the parsed path parameters of a request.
type params struct {
	nid identity.NodeID
	rid identity.RepoID
}

// handlerFunc serves one route. A non-nil error is translated into the
// response; otherwise the result is encoded as JSON.
type handlerFunc func(r *http.Request, p params) (any, error)

// New builds the API server.
func New(opts Options) *Server {
	s := &Server{
		opts:    opts,
		log:     opts.Logger,
		metrics: opts.Metrics,
		router:  httprouter.New(),
	}
	if s.log == nil {
		s.log = logging.Default()
	}
	s.log = s.log.WithComponent("api")
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	s.SetWeb(opts.Web)

	s.route(routeRoot, "root", s.handleRoot)
	s.route(routeNode, "node", s.handleNode)
	s.route(routePolicies, "policies", s.handlePolicies)
	s.route(routePolicy, "policy", s.handlePolicy)
	s.route(routePeer, "peer", s.handlePeer)
	s.route(routeInventory, "inventory", s.handleInventory)

	s.router.HandleMethodNotAllowed = true
	s.router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, &Error{Message: "route not found", Kind: KindRouteNotFound, Code: http.StatusNotFound})
	})
	s.router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, &Error{Message: "method not allowed", Kind: KindMethodNotAllowed, Code: http.StatusMethodNotAllowed})
	})
	s.router.PanicHandler = s.panicHandler

	c := cors.New(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet},
		AllowedHeaders: []string{"*"},
		MaxAge:         600,
	})
	var h http.Handler = s.router
	if opts.RateLimit > 0 {
		h = s.withRateLimit(newClientLimiter(opts.RateLimit, opts.RateBurst), h)
	}
	s.handler = s.withRequestLog(c.Handler(h))
	return s
}

// route registers h for GET Prefix+path.
func (s *Server) route(path, rel string, h handlerFunc) {
	full := Prefix
	if path != routeRoot {
		full += path
	}
	s.router.GET(full, s.wrap(path, h))
	if path != routeRoot {
		s.links = append(s.links, Link{Href: path, Rel: rel, Type: http.MethodGet})
	}
}

// SetWeb replaces the display metadata. It is safe to call while serving.
func (s *Server) SetWeb(web WebConfig) {
	s.web.Store(&web)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// wrap parses path parameters, runs h and records the outcome.
func (s *Server) wrap(route string, h handlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		start := time.Now()
		code := s.serve(w, r, route, ps, h)
		s.metrics.ObserveRequest(route, code, time.Since(start))
	}
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, route string, ps httprouter.Params, h handlerFunc) int {
	p, err := parseParams(ps)
	if err != nil {
		return s.writeError(w, r, err)
	}

	body, err := h(r, p)
	if err != nil {
		return s.writeError(w, r, err)
	}

	if directive, ok := cacheDirective(route); ok {
		w.Header().Set("Cache-Control", directive)
	}
	return writeJSON(w, http.StatusOK, body)
}

// parseParams decodes the identifiers in the path. Handlers only ever see
// fully parsed identifiers.
func parseParams(ps httprouter.Params) (params, error) {
	var p params
	for _, param := range ps {
		switch param.Key {
		case "nid":
			nid, err := identity.ParseNodeID(param.Value)
			if err != nil {
				return p, invalidIdentifier("node id", param.Value, err)
			}
			p.nid = nid
		case "rid":
			rid, err := identity.ParseRepoID(param.Value)
			if err != nil {
				return p, invalidIdentifier("repository id", param.Value, err)
			}
			p.rid = rid
		}
	}
	return p, nil
}

// writeError translates err, logs server-side failures and writes the body.
// Once the request context has ended, whatever failed is reported as a
// cancellation rather than blamed on the store or the node.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) int {
	var apiErr *Error
	if ctxErr := r.Context().Err(); ctxErr != nil {
		apiErr = canceled(ctxErr, err)
		s.log.WithContext(r.Context()).Debug("request canceled",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	} else {
		apiErr = translate(err)
	}
	if apiErr.ServerError() {
		s.log.WithContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"kind", apiErr.Kind,
			"error", apiErr.cause,
		)
		s.metrics.ObserveError(string(apiErr.Kind))
	}
	return writeJSON(w, apiErr.Code, apiErr)
}

// writeJSON encodes v fully before writing anything, so a response is never
// partially sent.
func writeJSON(w http.ResponseWriter, code int, v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		code = http.StatusInternalServerError
		data, _ = json.Marshal(&Error{Message: "internal error", Kind: KindInternal, Code: code})
		w.Header().Del("Cache-Control")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(append(data, '\n'))
	return code
}
