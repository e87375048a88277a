// Package move implements the move data model of spec §3/§4.3: typed
// move variants, their signature contract, canonical id, and validity.
// It mirrors the teacher's sysaction package (single string tag +
// JSON-ish payload, dispatched through a registry) but serializes
// through package bencode instead of JSON, since move ids and
// signatures must match the original node's hash/sign byte layout.
package move

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tos-network/nekoyume/bencode"
	"github.com/tos-network/nekoyume/common"
	"github.com/tos-network/nekoyume/crypto"
)

// Name is the enumerated move variant tag (spec §3 "name").
type Name string

const (
	CreateNovice Name = "create_novice"
	HackAndSlash Name = "hack_and_slash"
	Sleep        Name = "sleep"
	LevelUp      Name = "level_up"
	Say          Name = "say"
	Send         Name = "send"
	Combine      Name = "combine"
	Sell         Name = "sell"
	Buy          Name = "buy"
)

// knownNames is the fixed move set this core understands (spec §4.3 table).
var knownNames = map[Name]bool{
	CreateNovice: true,
	HackAndSlash: true,
	Sleep:        true,
	LevelUp:      true,
	Say:          true,
	Send:         true,
	Combine:      true,
	Sell:         true,
	Buy:          true,
}

// IsKnownName reports whether name is one of the recognized variant tags.
func IsKnownName(name Name) bool { return knownNames[name] }

// Errors correspond to the taxonomy kinds of spec §7.
var (
	ErrInvalidName      = errors.New("move: invalid-name")
	ErrInvalidMove       = errors.New("move: invalid-move")
	ErrInvalidSignature = fmt.Errorf("%w: bad signature format", ErrInvalidMove)
)

// Signature is the detached signature plus embedded public key, stored
// space-separated on the wire per spec §3 ("signature plus embedded
// public key, space-separated").
type Signature struct {
	Sig    []byte
	Pubkey []byte
}

// Move is a signed game action (spec §3).
type Move struct {
	ID        string            // hex SHA-256 of canonical signed serialization
	User      string            // base58 address of the signer
	Name      Name              // enumerated variant tag
	Details   map[string]string // string->string parameters
	Signature Signature
	Tax       uint64
	CreatedAt time.Time
	BlockID   *uint64 // nil if unconfirmed
}

// detailsDict renders Details as a canonical bencode sub-dictionary with
// every value stringified, per spec §4.1 ("values stringified").
func detailsDict(details map[string]string) bencode.Dict {
	d := make(bencode.Dict, len(details))
	for k, v := range details {
		d[k] = v
	}
	return d
}

// canonicalSigningFields returns the bencode dict of fields serialized
// for the signature payload (spec §4.1): user, name, details, tax,
// created_at — signature itself excluded.
func (m *Move) canonicalSigningFields() bencode.Dict {
	return bencode.Dict{
		"user":       m.User,
		"name":       string(m.Name),
		"details":    detailsDict(m.Details),
		"tax":        int64(m.Tax),
		"created_at": common.FormatStamp(m.CreatedAt),
	}
}

// CanonicalForSigning returns the exact bytes a signer signs.
func (m *Move) CanonicalForSigning() []byte {
	return bencode.Marshal(m.canonicalSigningFields())
}

// wire renders Signature as "<sig-hex> <pubkey-hex>", the
// space-separated detached-signature-plus-pubkey form of spec §3.
func (s Signature) wire() string {
	return fmt.Sprintf("%x %x", s.Sig, s.Pubkey)
}

// CanonicalForID returns the bytes hashed to produce the move id: the
// signing fields plus the signature field (spec §4.1: "for id
// computation the signature field is included").
func (m *Move) CanonicalForID() []byte {
	fields := m.canonicalSigningFields()
	fields["signature"] = m.Signature.wire()
	return bencode.Marshal(fields)
}

// ComputeID returns SHA256(canonical(move including signature)) hex-encoded.
func (m *Move) ComputeID() string {
	return crypto.SHA256Hex(m.CanonicalForID())
}

// Validate checks every invariant of spec §3 for a move that claims to
// carry a signature: id matches canonical hash, signature verifies over
// the unsigned canonical payload, user matches the signer's address, and
// name is a recognized variant tag.
func (m *Move) Validate() error {
	if !IsKnownName(m.Name) {
		return fmt.Errorf("%w: unrecognized move name %q", ErrInvalidName, m.Name)
	}
	if len(m.Signature.Sig) == 0 || len(m.Signature.Pubkey) == 0 {
		return ErrInvalidSignature
	}
	if m.ID != m.ComputeID() {
		return fmt.Errorf("%w: id mismatch", ErrInvalidMove)
	}
	if !crypto.Verify(m.CanonicalForSigning(), m.Signature.Sig, m.Signature.Pubkey) {
		return fmt.Errorf("%w: signature does not verify", ErrInvalidMove)
	}
	addr, err := crypto.Address(m.Signature.Pubkey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMove, err)
	}
	if m.User != addr {
		return fmt.Errorf("%w: user does not match signer address", ErrInvalidMove)
	}
	return nil
}

// SortedIDs returns the move ids of ms sorted lexicographically, the
// input to a block's root_hash computation (spec §4.1).
func SortedIDs(ms []*Move) []string {
	ids := make([]string, len(ms))
	for i, m := range ms {
		ids[i] = m.ID
	}
	sort.Strings(ids)
	return ids
}
