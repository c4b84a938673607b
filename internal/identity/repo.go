package identity

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/multiformats/go-multibase"
)

// RepoIDPrefix is the URN prefix of a repository identifier.
const RepoIDPrefix = "rad:"

// RepoIDSize is the length of a repository identifier in bytes.
const RepoIDSize = 20

// RepoID identifies a repository.
type RepoID [RepoIDSize]byte

// ParseRepoID decodes a repository identifier. The "rad:" prefix is optional.
func ParseRepoID(s string) (RepoID, error) {
	var rid RepoID

	s = strings.TrimPrefix(s, RepoIDPrefix)
	enc, data, err := multibase.Decode(s)
	if err != nil {
		return rid, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if enc != multibase.Base58BTC {
		return rid, fmt.Errorf("%w: expected base58btc", ErrInvalidEncoding)
	}
	if len(data) != RepoIDSize {
		return rid, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidLength, len(data), RepoIDSize)
	}

	copy(rid[:], data)
	return rid, nil
}

// String returns the canonical form, e.g. "rad:z4FucBZHZMCsxTyQE1dfE2YR59Qbp".
func (rid RepoID) String() string {
	return RepoIDPrefix + rid.Canonical()
}

// Canonical returns the multibase part of the identifier, without the prefix.
func (rid RepoID) Canonical() string {
	s, _ := multibase.Encode(multibase.Base58BTC, rid[:])
	return s
}

// Compare orders identifiers by their bytes.
func (rid RepoID) Compare(other RepoID) int {
	return bytes.Compare(rid[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (rid RepoID) MarshalText() ([]byte, error) {
	return []byte(rid.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (rid *RepoID) UnmarshalText(text []byte) error {
	parsed, err := ParseRepoID(string(text))
	if err != nil {
		return err
	}
	*rid = parsed
	return nil
}
