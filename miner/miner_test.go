package miner

import (
	"context"
	"testing"
	"time"

	"github.com/tos-network/nekoyume/move"
	"github.com/tos-network/nekoyume/store"
)

func newChain(t *testing.T) *store.Database {
	t.Helper()
	s, err := store.Open(store.NewMemory())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func TestMineGenesis(t *testing.T) {
	s := newChain(t)
	m := New(s, "creator-addr")
	b, err := m.MineNext(context.Background(), time.Unix(1000, 0))
	if err != nil {
		t.Fatalf("mine genesis: %v", err)
	}
	if b.ID != 1 || b.PrevHash != "" || b.Difficulty != 0 {
		t.Fatalf("unexpected genesis block: %+v", b)
	}
	if s.Height() != 1 {
		t.Fatalf("expected store height 1, got %d", s.Height())
	}
}

func TestMineChainsOntoTip(t *testing.T) {
	s := newChain(t)
	m := New(s, "creator-addr")
	first, err := m.MineNext(context.Background(), time.Unix(1000, 0))
	if err != nil {
		t.Fatalf("mine first: %v", err)
	}
	second, err := m.MineNext(context.Background(), time.Unix(1001, 0))
	if err != nil {
		t.Fatalf("mine second: %v", err)
	}
	if second.ID != 2 || second.PrevHash != first.Hash {
		t.Fatalf("expected second block to chain onto first, got %+v", second)
	}
}

func TestMineIncludesMempoolMoves(t *testing.T) {
	s := newChain(t)
	mv := &move.Move{ID: "say1", User: "bob", Name: move.Say, Details: map[string]string{"content": "hi"}}
	if err := s.Update(func(tx store.Tx) error { return tx.AddMempool(mv) }); err != nil {
		t.Fatalf("seed mempool: %v", err)
	}
	m := New(s, "creator-addr")
	b, err := m.MineNext(context.Background(), time.Unix(1000, 0))
	if err != nil {
		t.Fatalf("mine: %v", err)
	}
	if len(b.Moves) != 1 || b.Moves[0].ID != "say1" {
		t.Fatalf("expected mined block to include the mempool move, got %+v", b.Moves)
	}
	remaining, err := s.MempoolMoves()
	if err != nil {
		t.Fatalf("list mempool: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected mempool drained after confirmation, got %+v", remaining)
	}
}

func TestMineRespectsCancellation(t *testing.T) {
	s := newChain(t)
	// Cancelling ctx up front must make MineNext return an error: the
	// mint loop checks ctx before its first nonce attempt.
	m := New(s, "creator-addr")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.MineNext(ctx, time.Unix(1000, 0)); err == nil {
		t.Fatalf("expected an error from an already-cancelled context")
	}
}
