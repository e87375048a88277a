// Package block implements the chained, proof-of-worked move container
// of spec §3/§4.6: canonical serialization, root-hash derivation, and
// full validity checking. Grounded on core/types' DeriveSha shape (a
// deterministic root over an ordered set of leaves) and
// consensus/dpos's Seal/VerifySeal split between minting and checking.
package block

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tos-network/nekoyume/bencode"
	"github.com/tos-network/nekoyume/common"
	"github.com/tos-network/nekoyume/crypto"
	"github.com/tos-network/nekoyume/crypto/hashcash"
	"github.com/tos-network/nekoyume/move"
)

// ErrInvalidBlock is the invalid-block error kind of spec §7.
var ErrInvalidBlock = errors.New("block: invalid-block")

// Block is a signed, proof-of-worked container of moves (spec §3 "Block").
type Block struct {
	ID         uint64
	PrevHash   string // empty iff ID == 1 (genesis)
	Creator    string
	CreatedAt  time.Time
	RootHash   string
	Difficulty int
	Suffix     string
	Hash       string
	Moves      []*move.Move
}

// IsGenesis reports whether b is the chain's first block.
func (b *Block) IsGenesis() bool { return b.ID == 1 }

// RootHash computes SHA256(concat(sorted(move.id))) per spec §4.1/§4.6 step 2.
func RootHash(moves []*move.Move) string {
	ids := move.SortedIDs(moves)
	concat := ""
	for _, id := range ids {
		concat += id
	}
	return crypto.SHA256Hex([]byte(concat))
}

// canonicalFields returns the bencode dict of fields serialized for
// hashing/PoW (spec §4.1): id, creator, difficulty, root_hash,
// created_at, and prev_hash only when present — the key is omitted
// entirely for genesis, not merely empty, since bencode's canonical
// form is sensitive to key presence.
func (b *Block) canonicalFields() bencode.Dict {
	d := bencode.Dict{
		"id":         int64(b.ID),
		"creator":    b.Creator,
		"difficulty": int64(b.Difficulty),
		"root_hash":  b.RootHash,
		"created_at": common.FormatStamp(b.CreatedAt),
	}
	if !b.IsGenesis() {
		d["prev_hash"] = b.PrevHash
	}
	return d
}

// Canonical returns the exact bytes hashed for both the PoW check and
// the final block hash (spec §4.1: "excluded: suffix, hash, moves").
func (b *Block) Canonical() []byte {
	return bencode.Marshal(b.canonicalFields())
}

// ComputeHash returns SHA256(canonical(block) || suffix) (spec §3 "hash").
func (b *Block) ComputeHash() string {
	return crypto.SHA256Hex(append(b.Canonical(), []byte(b.Suffix)...))
}

// PrevBlock is the minimal lookup a validity check needs of the
// predecessor block, satisfied by *Block itself and by chainsync's
// hash-only view, so this package never imports store (avoids
// block<->store cycle: store persists *block.Block values).
type PrevBlock interface {
	BlockHash() string
}

// BlockHash satisfies PrevBlock for chaining continuity checks against
// a previously-validated block. Named to avoid colliding with the Hash
// field.
func (b *Block) BlockHash() string { return b.Hash }

// Validate checks every invariant of spec §3/§4.6 for a block that
// claims to chain onto prev (nil for genesis): hash, PoW, root hash,
// continuity, and that every move is itself valid and was assigned to
// this block.
func (b *Block) Validate(prev PrevBlock) error {
	if b.IsGenesis() {
		if b.PrevHash != "" {
			return fmt.Errorf("%w: genesis block must not carry prev_hash", ErrInvalidBlock)
		}
		if prev != nil {
			return fmt.Errorf("%w: genesis block must not have a predecessor", ErrInvalidBlock)
		}
	} else {
		if prev == nil {
			return fmt.Errorf("%w: non-genesis block %d missing predecessor", ErrInvalidBlock, b.ID)
		}
		if b.PrevHash != prev.BlockHash() {
			return fmt.Errorf("%w: prev_hash does not match chain at id %d", ErrInvalidBlock, b.ID-1)
		}
	}
	if b.Hash != b.ComputeHash() {
		return fmt.Errorf("%w: hash mismatch", ErrInvalidBlock)
	}
	if !hashcash.Check(string(b.Canonical()), b.Suffix, b.Difficulty) {
		return fmt.Errorf("%w: hashcash check failed", ErrInvalidBlock)
	}
	if b.RootHash != RootHash(b.Moves) {
		return fmt.Errorf("%w: root_hash mismatch", ErrInvalidBlock)
	}
	for _, m := range b.Moves {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%w: move %s invalid: %v", ErrInvalidBlock, m.ID, err)
		}
		if m.BlockID == nil || *m.BlockID != b.ID {
			return fmt.Errorf("%w: move %s not assigned to block %d", ErrInvalidBlock, m.ID, b.ID)
		}
	}
	return nil
}

// SortMoves returns moves sorted by id, the deterministic iteration
// order used wherever "moves of a block" must be enumerated (spec §9
// "no intra-block order is observable" beyond the sorted id set).
func SortMoves(moves []*move.Move) []*move.Move {
	out := make([]*move.Move, len(moves))
	copy(out, moves)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
