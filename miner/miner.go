// Package miner assembles and mints new blocks: gathers unconfirmed
// moves, adjusts difficulty, mints the hashcash suffix, and commits the
// block (spec §4.6). Grounded on consensus/dpos's Seal loop shape
// (gather, assemble header, mint/seal, commit) generalized from dpos's
// fixed-slot scheduling to hashcash's brute-force suffix search.
package miner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tos-network/nekoyume/block"
	"github.com/tos-network/nekoyume/crypto/hashcash"
	"github.com/tos-network/nekoyume/log"
	"github.com/tos-network/nekoyume/move"
	"github.com/tos-network/nekoyume/store"
)

// fastBlockSeconds / slowBlockSeconds bound the ten-block average
// interval that drives difficulty adjustment (spec §4.6 step 4).
const (
	fastBlockSeconds = 5
	slowBlockSeconds = 15
	windowSize       = 10
)

// ErrRaceLost is returned from MineNext when a competing block at the
// same height was committed while this node was minting (spec §4.6
// step 6 "race loss").
var ErrRaceLost = errors.New("miner: lost the race to commit this height")

// Store is the narrow chain-store surface the miner needs.
type Store interface {
	Tip() (*block.Block, error)
	BlockByID(id uint64) (*block.Block, error)
	MempoolMoves() ([]*move.Move, error)
	Update(func(store.Tx) error) error
}

// Miner assembles and mints blocks on behalf of one creator address.
type Miner struct {
	st      Store
	creator string
}

// New returns a Miner that assembles blocks credited to creator.
func New(st Store, creator string) *Miner {
	return &Miner{st: st, creator: creator}
}

// nextDifficulty implements spec §4.6 step 3-4: inherit from the
// current tip, then adjust based on the average time over the last
// windowSize blocks.
func (m *Miner) nextDifficulty(tip *block.Block, now time.Time) (int, error) {
	if tip == nil {
		return 0, nil
	}
	difficulty := tip.Difficulty
	floorID := uint64(1)
	if tip.ID > windowSize-1 {
		floorID = tip.ID - (windowSize - 1)
	}
	b10, err := m.st.BlockByID(floorID)
	if err != nil {
		return 0, fmt.Errorf("miner: reading window floor block %d: %w", floorID, err)
	}
	span := tip.ID + 1 - b10.ID
	if span == 0 {
		span = 1
	}
	avgDt := now.Sub(b10.CreatedAt).Seconds() / float64(span)
	switch {
	case avgDt <= fastBlockSeconds:
		difficulty++
	case avgDt > slowBlockSeconds:
		if difficulty > 0 {
			difficulty--
		}
	}
	return difficulty, nil
}

// MineNext implements the full block-production pipeline of spec §4.6:
// gather mempool moves, compute root hash, inherit+adjust difficulty,
// mint the PoW suffix (cancellable via ctx between nonce attempts),
// check for a race loss, then commit.
func (m *Miner) MineNext(ctx context.Context, now time.Time) (*block.Block, error) {
	tip, err := m.st.Tip()
	if err != nil {
		return nil, fmt.Errorf("miner: reading tip: %w", err)
	}
	moves, err := m.st.MempoolMoves()
	if err != nil {
		return nil, fmt.Errorf("miner: reading mempool: %w", err)
	}

	b := &block.Block{
		Creator:   m.creator,
		CreatedAt: now,
		RootHash:  block.RootHash(moves),
		Moves:     moves,
	}
	if tip == nil {
		b.ID = 1
	} else {
		b.ID = tip.ID + 1
		b.PrevHash = tip.Hash
	}

	difficulty, err := m.nextDifficulty(tip, now)
	if err != nil {
		return nil, err
	}
	b.Difficulty = difficulty

	suffix, err := hashcash.MintCancellable(ctx, string(b.Canonical()), b.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("miner: minting suffix: %w", err)
	}
	b.Suffix = suffix
	b.Hash = b.ComputeHash()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	raceTip, err := m.st.Tip()
	if err != nil {
		return nil, fmt.Errorf("miner: re-reading tip: %w", err)
	}
	if (raceTip == nil) != (tip == nil) || (tip != nil && raceTip.Hash != tip.Hash) {
		return nil, ErrRaceLost
	}

	for _, mv := range b.Moves {
		blockID := b.ID
		mv.BlockID = &blockID
	}

	if err := m.st.Update(func(tx store.Tx) error { return tx.PutBlock(b) }); err != nil {
		return nil, fmt.Errorf("miner: committing block %d: %w", b.ID, err)
	}
	log.Info("mined block", "id", b.ID, "difficulty", b.Difficulty, "moves", len(b.Moves))
	return b, nil
}
