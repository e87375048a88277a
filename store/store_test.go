package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/tos-network/nekoyume/block"
	"github.com/tos-network/nekoyume/move"
)

func newTestStore(t *testing.T) *Database {
	t.Helper()
	s, err := Open(NewMemory())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func sampleMove(t *testing.T, id string, blockID uint64) *move.Move {
	t.Helper()
	return &move.Move{
		ID: id, User: "alice", Name: move.CreateNovice,
		Details: map[string]string{"constitution": "14"},
		BlockID: &blockID,
	}
}

func TestUpdateCommitsOnlyOnSuccess(t *testing.T) {
	s := newTestStore(t)
	m := sampleMove(t, "m1", 1)
	b := &block.Block{ID: 1, Creator: "alice", CreatedAt: time.Unix(0, 0), RootHash: "r", Hash: "h1", Moves: []*move.Move{m}}

	err := s.Update(func(tx Tx) error {
		return tx.PutBlock(b)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if s.Height() != 1 {
		t.Fatalf("expected height 1, got %d", s.Height())
	}

	got, err := s.BlockByID(1)
	if err != nil {
		t.Fatalf("block lookup: %v", err)
	}
	if got.Hash != "h1" || len(got.Moves) != 1 {
		t.Fatalf("unexpected block contents: %+v", got)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	b := &block.Block{ID: 1, Creator: "alice", Hash: "h1"}

	err := s.Update(func(tx Tx) error {
		if err := tx.PutBlock(b); err != nil {
			return err
		}
		return ErrNotFound
	})
	if err == nil {
		t.Fatalf("expected Update to propagate the callback's error")
	}
	if s.Height() != 0 {
		t.Fatalf("expected no commit after a failing callback, height=%d", s.Height())
	}
	if _, err := s.BlockByID(1); err == nil {
		t.Fatalf("expected block 1 to remain absent after rollback")
	}
}

func TestTruncateRemovesRolledBackBlocks(t *testing.T) {
	s := newTestStore(t)
	for id := uint64(1); id <= 3; id++ {
		b := &block.Block{ID: id, Creator: "alice", Hash: fmt.Sprintf("h%d", id)}
		if err := s.Update(func(tx Tx) error { return tx.PutBlock(b) }); err != nil {
			t.Fatalf("seed block %d: %v", id, err)
		}
	}
	if s.Height() != 3 {
		t.Fatalf("expected height 3, got %d", s.Height())
	}

	if err := s.Update(func(tx Tx) error { return tx.Truncate(2) }); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if s.Height() != 1 {
		t.Fatalf("expected height 1 after truncating from 2, got %d", s.Height())
	}
	if _, err := s.BlockByID(2); err == nil {
		t.Fatalf("expected block 2 to be gone after truncate")
	}
}

// TestTruncateReinstatesOrphanedMoves asserts spec §4.7 step 5's
// "detach their moves (set block_id = null), preserving them for
// possible re-inclusion": a move carried only by a truncated block must
// come back with a nil BlockID and be visible in MempoolMoves again,
// not be silently lost.
func TestTruncateReinstatesOrphanedMoves(t *testing.T) {
	s := newTestStore(t)
	m := sampleMove(t, "orphan1", 2)
	b1 := &block.Block{ID: 1, Creator: "alice", Hash: "h1"}
	b2 := &block.Block{ID: 2, Creator: "alice", Hash: "h2", Moves: []*move.Move{m}}
	if err := s.Update(func(tx Tx) error { return tx.PutBlock(b1) }); err != nil {
		t.Fatalf("seed block 1: %v", err)
	}
	if err := s.Update(func(tx Tx) error { return tx.PutBlock(b2) }); err != nil {
		t.Fatalf("seed block 2: %v", err)
	}

	mempoolBefore, err := s.MempoolMoves()
	if err != nil {
		t.Fatalf("mempool before truncate: %v", err)
	}
	if len(mempoolBefore) != 0 {
		t.Fatalf("expected the move to be absent from mempool once confirmed, got %+v", mempoolBefore)
	}

	if err := s.Update(func(tx Tx) error { return tx.Truncate(2) }); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if _, err := s.BlockByID(2); err == nil {
		t.Fatalf("expected block 2 to be gone after truncate")
	}

	mempoolAfter, err := s.MempoolMoves()
	if err != nil {
		t.Fatalf("mempool after truncate: %v", err)
	}
	if len(mempoolAfter) != 1 || mempoolAfter[0].ID != "orphan1" {
		t.Fatalf("expected the orphaned move back in mempool, got %+v", mempoolAfter)
	}

	reloaded, err := s.MoveByID("orphan1")
	if err != nil {
		t.Fatalf("move lookup: %v", err)
	}
	if reloaded.BlockID != nil {
		t.Fatalf("expected block_id nulled out on the orphaned move, got %v", *reloaded.BlockID)
	}
}

func TestMempoolAddAndConsume(t *testing.T) {
	s := newTestStore(t)
	m := &move.Move{ID: "pending1", User: "bob", Name: move.Say, Details: map[string]string{"content": "hi"}}
	if err := s.Update(func(tx Tx) error { return tx.AddMempool(m) }); err != nil {
		t.Fatalf("add mempool: %v", err)
	}
	pending, err := s.MempoolMoves()
	if err != nil {
		t.Fatalf("list mempool: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "pending1" {
		t.Fatalf("expected one mempool move, got %+v", pending)
	}

	blockID := uint64(1)
	m.BlockID = &blockID
	b := &block.Block{ID: 1, Creator: "bob", Hash: "hh", Moves: []*move.Move{m}}
	if err := s.Update(func(tx Tx) error { return tx.PutBlock(b) }); err != nil {
		t.Fatalf("confirm block: %v", err)
	}
	pending, err = s.MempoolMoves()
	if err != nil {
		t.Fatalf("list mempool after confirm: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected mempool to be emptied once the move is confirmed, got %+v", pending)
	}
}

func TestChainReaderQueries(t *testing.T) {
	s := newTestStore(t)
	create := sampleMove(t, "create1", 1)
	b1 := &block.Block{ID: 1, Creator: "alice", Hash: "h1", Moves: []*move.Move{create}}
	if err := s.Update(func(tx Tx) error { return tx.PutBlock(b1) }); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, id, err := s.LatestCreateMove("alice", 1)
	if err != nil {
		t.Fatalf("latest create move: %v", err)
	}
	if got == nil || got.ID != "create1" || id != 1 {
		t.Fatalf("unexpected result: %+v id=%d", got, id)
	}

	count, err := s.BlockCountByCreator("alice", 1)
	if err != nil {
		t.Fatalf("block count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 block by alice, got %d", count)
	}
}
