// Package policy defines repository seeding policies.
//
// A seeding policy is either Block, or Allow with a Scope. The scope only
// exists on Allow; the wire form mirrors that:
//
//	{"policy": "block"}
//	{"policy": "allow", "scope": "followed"}
package policy

import (
	"encoding/json"
	"errors"
	"fmt"

	"radhttpd/internal/identity"
)

// ErrInvalidPolicy is returned when a policy cannot be decoded.
var ErrInvalidPolicy = errors.New("policy: invalid seeding policy")

// Scope selects whose copies of an allowed repository are replicated.
type Scope string

const (
	// ScopeAll replicates from every peer.
	ScopeAll Scope = "all"
	// ScopeFollowed replicates only from followed peers.
	ScopeFollowed Scope = "followed"
)

// ParseScope validates a scope string.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeAll, ScopeFollowed:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("%w: unknown scope %q", ErrInvalidPolicy, s)
	}
}

// Policy tags.
const (
	TagBlock = "block"
	TagAllow = "allow"
)

// SeedingPolicy is implemented by Block and Allow only.
type SeedingPolicy interface {
	// Tag returns "block" or "allow".
	Tag() string
	seedingPolicy()
}

// Block refuses to replicate a repository.
type Block struct{}

// Allow replicates a repository within a scope.
type Allow struct {
	Scope Scope
}

func (Block) Tag() string { return TagBlock }
func (Allow) Tag() string { return TagAllow }

func (Block) seedingPolicy() {}
func (Allow) seedingPolicy() {}

// wire is the JSON shape of a policy.
type wire struct {
	Policy string `json:"policy"`
	Scope  *Scope `json:"scope,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (Block) MarshalJSON() ([]byte, error) {
	return json.Marshal(wire{Policy: TagBlock})
}

// MarshalJSON implements json.Marshaler.
func (a Allow) MarshalJSON() ([]byte, error) {
	scope, err := ParseScope(string(a.Scope))
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire{Policy: TagAllow, Scope: &scope})
}

// New builds a policy from its tag and scope, as stored on disk. The scope is
// ignored for block policies.
func New(tag, scope string) (SeedingPolicy, error) {
	switch tag {
	case TagBlock:
		return Block{}, nil
	case TagAllow:
		s, err := ParseScope(scope)
		if err != nil {
			return nil, err
		}
		return Allow{Scope: s}, nil
	default:
		return nil, fmt.Errorf("%w: unknown policy %q", ErrInvalidPolicy, tag)
	}
}

// Unmarshal decodes the wire form of a policy. A block policy carrying a scope
// and an allow policy without one are rejected.
func Unmarshal(data []byte) (SeedingPolicy, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}

	switch w.Policy {
	case TagBlock:
		if w.Scope != nil {
			return nil, fmt.Errorf("%w: block policy has a scope", ErrInvalidPolicy)
		}
		return Block{}, nil
	case TagAllow:
		if w.Scope == nil {
			return nil, fmt.Errorf("%w: allow policy without scope", ErrInvalidPolicy)
		}
		return New(TagAllow, string(*w.Scope))
	default:
		return nil, fmt.Errorf("%w: unknown policy %q", ErrInvalidPolicy, w.Policy)
	}
}

// Entry pairs a repository with its policy.
type Entry struct {
	RID    identity.RepoID
	Policy SeedingPolicy
}

type entryWire struct {
	RID    identity.RepoID `json:"rid"`
	Policy json.RawMessage `json:"policy"`
}

// MarshalJSON implements json.Marshaler.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.Policy == nil {
		return nil, fmt.Errorf("%w: entry for %s has no policy", ErrInvalidPolicy, e.RID)
	}
	p, err := json.Marshal(e.Policy)
	if err != nil {
		return nil, err
	}
	return json.Marshal(entryWire{RID: e.RID, Policy: p})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w entryWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p, err := Unmarshal(w.Policy)
	if err != nil {
		return err
	}
	e.RID = w.RID
	e.Policy = p
	return nil
}
