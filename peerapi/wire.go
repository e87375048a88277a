// Package peerapi implements the minimal peer-to-peer HTTP surface of
// spec §6: five routes serving and accepting the wire JSON form of
// blocks and moves, built on github.com/julienschmidt/httprouter (a
// direct teacher dependency) rather than a heavier framework, matching
// the spec's own framing that the HTTP endpoint framework is
// out of scope.
package peerapi

import (
	"encoding/hex"
	"fmt"

	"github.com/tos-network/nekoyume/block"
	"github.com/tos-network/nekoyume/common"
	"github.com/tos-network/nekoyume/move"
)

// wireSignature is the wire form of move.Signature: hex-encoded bytes,
// matching the space-separated "<sig-hex> <pubkey-hex>" form hashed into
// the move id but split into named fields for JSON.
type wireSignature struct {
	Sig    string `json:"sig"`
	Pubkey string `json:"pubkey"`
}

// wireMove is the full serialized move of spec §6 ("full serialized
// move with id and signature").
type wireMove struct {
	ID        string            `json:"id"`
	User      string            `json:"user"`
	Name      string            `json:"name"`
	Details   map[string]string `json:"details"`
	Signature wireSignature     `json:"signature"`
	Tax       uint64            `json:"tax"`
	CreatedAt string            `json:"created_at"`
	BlockID   *uint64           `json:"block_id,omitempty"`
	SentNode  string            `json:"sent_node,omitempty"`
}

func encodeMove(m *move.Move) wireMove {
	return wireMove{
		ID: m.ID, User: m.User, Name: string(m.Name), Details: m.Details,
		Signature: wireSignature{Sig: fmt.Sprintf("%x", m.Signature.Sig), Pubkey: fmt.Sprintf("%x", m.Signature.Pubkey)},
		Tax:       m.Tax, CreatedAt: common.FormatStamp(m.CreatedAt), BlockID: m.BlockID,
	}
}

func decodeMove(w wireMove) (*move.Move, error) {
	createdAt, err := common.ParseStamp(w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("peerapi: parsing move created_at: %w", err)
	}
	sig, err := hex.DecodeString(w.Signature.Sig)
	if err != nil {
		return nil, fmt.Errorf("peerapi: decoding signature: %w", err)
	}
	pub, err := hex.DecodeString(w.Signature.Pubkey)
	if err != nil {
		return nil, fmt.Errorf("peerapi: decoding pubkey: %w", err)
	}
	return &move.Move{
		ID: w.ID, User: w.User, Name: move.Name(w.Name), Details: w.Details,
		Signature: move.Signature{Sig: sig, Pubkey: pub},
		Tax:       w.Tax, CreatedAt: createdAt, BlockID: w.BlockID,
	}, nil
}

// wireBlock is the full serialized block of spec §6 ("non-bencoded
// dictionary form ... includes hash, suffix, and a moves array").
type wireBlock struct {
	ID         uint64     `json:"id"`
	PrevHash   string     `json:"prev_hash,omitempty"`
	Creator    string     `json:"creator"`
	CreatedAt  string     `json:"created_at"`
	RootHash   string     `json:"root_hash"`
	Difficulty int        `json:"difficulty"`
	Suffix     string     `json:"suffix"`
	Hash       string     `json:"hash"`
	Moves      []wireMove `json:"moves"`
	SentNode   string     `json:"sent_node,omitempty"`
}

func encodeBlock(b *block.Block) wireBlock {
	moves := make([]wireMove, len(b.Moves))
	for i, m := range b.Moves {
		moves[i] = encodeMove(m)
	}
	return wireBlock{
		ID: b.ID, PrevHash: b.PrevHash, Creator: b.Creator, CreatedAt: common.FormatStamp(b.CreatedAt),
		RootHash: b.RootHash, Difficulty: b.Difficulty, Suffix: b.Suffix, Hash: b.Hash, Moves: moves,
	}
}

func decodeBlock(w wireBlock) (*block.Block, error) {
	createdAt, err := common.ParseStamp(w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("peerapi: parsing block created_at: %w", err)
	}
	moves := make([]*move.Move, len(w.Moves))
	for i, wm := range w.Moves {
		m, err := decodeMove(wm)
		if err != nil {
			return nil, err
		}
		moves[i] = m
	}
	return &block.Block{
		ID: w.ID, PrevHash: w.PrevHash, Creator: w.Creator, CreatedAt: createdAt,
		RootHash: w.RootHash, Difficulty: w.Difficulty, Suffix: w.Suffix, Hash: w.Hash, Moves: moves,
	}, nil
}
