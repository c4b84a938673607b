// Package identity implements the canonical text encodings of node and
// repository identifiers.
//
// A node is identified by its Ed25519 public key. Its canonical string form is
// the multibase (base58btc) encoding of the multicodec-prefixed key, which is
// also the method-specific part of its did:key identifier:
//
//	z6MknSLrJoTcukLrE435hVNQT4JUhbvWLX4kUzqkEStBU8Vi
//	did:key:z6MknSLrJoTcukLrE435hVNQT4JUhbvWLX4kUzqkEStBU8Vi
//
// A repository is identified by a 20-byte hash rendered as "rad:" followed by
// its multibase (base58btc) encoding.
package identity

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-varint"
	"golang.org/x/crypto/ssh"
)

// ed25519PubCodec is the multicodec code for an Ed25519 public key.
const ed25519PubCodec = 0xed

// DIDPrefix is the prefix of a did:key identifier.
const DIDPrefix = "did:key:"

// Errors returned when decoding identifiers.
var (
	ErrInvalidEncoding = errors.New("identity: invalid multibase encoding")
	ErrInvalidCodec    = errors.New("identity: unsupported key codec")
	ErrInvalidLength   = errors.New("identity: invalid identifier length")
)

// NodeID is a node's Ed25519 public key.
type NodeID [ed25519.PublicKeySize]byte

// NodeIDFromPublicKey converts an Ed25519 public key into a NodeID.
func NodeIDFromPublicKey(pub ed25519.PublicKey) (NodeID, error) {
	var id NodeID
	if len(pub) != ed25519.PublicKeySize {
		return id, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidLength, len(pub), ed25519.PublicKeySize)
	}
	copy(id[:], pub)
	return id, nil
}

// ParseNodeID decodes the canonical string form of a node identifier.
func ParseNodeID(s string) (NodeID, error) {
	var id NodeID

	enc, data, err := multibase.Decode(s)
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if enc != multibase.Base58BTC {
		return id, fmt.Errorf("%w: expected base58btc", ErrInvalidEncoding)
	}

	codec, n, err := varint.FromUvarint(data)
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidCodec, err)
	}
	if codec != ed25519PubCodec {
		return id, fmt.Errorf("%w: 0x%x", ErrInvalidCodec, codec)
	}

	key := data[n:]
	if len(key) != len(id) {
		return id, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidLength, len(key), len(id))
	}
	copy(id[:], key)
	return id, nil
}

// parseDID decodes a did:key identifier into a NodeID.
func parseDID(s string) (NodeID, error) {
	rest, ok := strings.CutPrefix(s, DIDPrefix)
	if !ok {
		return NodeID{}, fmt.Errorf("%w: missing %q prefix", ErrInvalidEncoding, DIDPrefix)
	}
	return ParseNodeID(rest)
}

// String returns the canonical string form of the identifier.
func (id NodeID) String() string {
	prefix := varint.ToUvarint(ed25519PubCodec)
	buf := make([]byte, 0, len(prefix)+len(id))
	buf = append(buf, prefix...)
	buf = append(buf, id[:]...)

	// Encode only fails for unknown encodings.
	s, _ := multibase.Encode(multibase.Base58BTC, buf)
	return s
}

// DID returns the did:key form of the identifier.
func (id NodeID) DID() string {
	return DIDPrefix + id.String()
}

// PublicKey returns the identifier as an Ed25519 public key.
func (id NodeID) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(id[:])
}

// SSHKey returns the OpenSSH authorized-key rendering of the identifier,
// e.g. "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAA...".
func (id NodeID) SSHKey() string {
	pub, err := ssh.NewPublicKey(id.PublicKey())
	if err != nil {
		// Unreachable: the key always has the correct length.
		return ""
	}
	return strings.TrimSuffix(string(ssh.MarshalAuthorizedKey(pub)), "\n")
}

// SSHFingerprint returns the OpenSSH SHA256 fingerprint of the identifier,
// e.g. "SHA256:UIedaL6Cxm6OUErh9GQUzzglSk7VpQlVTI1TAFB/HWA".
func (id NodeID) SSHFingerprint() string {
	pub, err := ssh.NewPublicKey(id.PublicKey())
	if err != nil {
		return ""
	}
	return ssh.FingerprintSHA256(pub)
}

// IsZero reports whether the identifier is unset.
func (id NodeID) IsZero() bool {
	return id == NodeID{}
}

// MarshalText implements encoding.TextMarshaler.
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *NodeID) UnmarshalText(text []byte) error {
	parsed, err := ParseNodeID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// LoadNodeID reads a node's public key from an OpenSSH authorized-key file,
// as written next to the node's secret key.
func LoadNodeID(path string) (NodeID, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return NodeID{}, fmt.Errorf("read public key: %w", err)
	}

	pubKey, _, _, _, err := ssh.ParseAuthorizedKey(keyData)
	if err != nil {
		return NodeID{}, fmt.Errorf("parse public key: %w", err)
	}

	cryptoPubKey, ok := pubKey.(ssh.CryptoPublicKey)
	if !ok {
		return NodeID{}, errors.New("public key does not expose crypto key")
	}

	edKey, ok := cryptoPubKey.CryptoPublicKey().(ed25519.PublicKey)
	if !ok {
		return NodeID{}, fmt.Errorf("%w: %s", ErrInvalidCodec, pubKey.Type())
	}

	return NodeIDFromPublicKey(edKey)
}
