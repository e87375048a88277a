package chainsync

import (
	"context"
	"testing"
	"time"

	"github.com/tos-network/nekoyume/block"
	"github.com/tos-network/nekoyume/crypto/hashcash"
	"github.com/tos-network/nekoyume/move"
	"github.com/tos-network/nekoyume/store"
)

// fakeClient serves blocks from a fixed in-memory peer chain.
type fakeClient struct {
	chain []*block.Block // index i holds block with ID i+1
}

func (f *fakeClient) byID(id uint64) *block.Block {
	if id == 0 || int(id) > len(f.chain) {
		return nil
	}
	return f.chain[id-1]
}

func (f *fakeClient) FetchTip(ctx context.Context, peer Peer) (*block.Block, error) {
	if len(f.chain) == 0 {
		return nil, nil
	}
	return f.chain[len(f.chain)-1], nil
}

func (f *fakeClient) FetchBlockAt(ctx context.Context, peer Peer, id uint64) (*block.Block, error) {
	return f.byID(id), nil
}

func (f *fakeClient) FetchBlocksFrom(ctx context.Context, peer Peer, from uint64) ([]*block.Block, error) {
	var out []*block.Block
	for id := from; id <= uint64(len(f.chain)); id++ {
		if b := f.byID(id); b != nil {
			out = append(out, b)
		}
	}
	return out, nil
}

func mintBlock(t *testing.T, id uint64, prevHash string, createdAt time.Time) *block.Block {
	t.Helper()
	b := &block.Block{ID: id, PrevHash: prevHash, Creator: "peer-addr", CreatedAt: createdAt, RootHash: block.RootHash(nil)}
	suffix, err := hashcash.Mint(string(b.Canonical()), 0)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	b.Suffix = suffix
	b.Hash = b.ComputeHash()
	return b
}

func buildPeerChain(t *testing.T, n int) []*block.Block {
	t.Helper()
	var chain []*block.Block
	prevHash := ""
	for i := 1; i <= n; i++ {
		b := mintBlock(t, uint64(i), prevHash, time.Unix(int64(i)*10, 0))
		chain = append(chain, b)
		prevHash = b.Hash
	}
	return chain
}

func TestSyncAdoptsLongerPeerChain(t *testing.T) {
	peerChain := buildPeerChain(t, 3)
	s, err := store.Open(store.NewMemory())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	eng := New(s, &fakeClient{chain: peerChain})

	if err := eng.SyncWith(context.Background(), Peer{URL: "http://peer"}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if s.Height() != 3 {
		t.Fatalf("expected height 3 after sync, got %d", s.Height())
	}
	tip, err := s.Tip()
	if err != nil {
		t.Fatalf("tip: %v", err)
	}
	if tip.Hash != peerChain[2].Hash {
		t.Fatalf("expected local tip to match peer's, got %+v", tip)
	}
}

func TestSyncIsNoopWhenLocalIsLongerOrEqual(t *testing.T) {
	localChain := buildPeerChain(t, 3)
	s, err := store.Open(store.NewMemory())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, b := range localChain {
		if err := s.Update(func(tx store.Tx) error { return tx.PutBlock(b) }); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	shorterPeer := localChain[:2]
	eng := New(s, &fakeClient{chain: shorterPeer})

	if err := eng.SyncWith(context.Background(), Peer{URL: "http://peer"}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if s.Height() != 3 {
		t.Fatalf("expected local chain untouched at height 3, got %d", s.Height())
	}
}

func TestSyncRollsBackDivergentBlocks(t *testing.T) {
	s, err := store.Open(store.NewMemory())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	// Local chain: block 1 shared, then a divergent local block 2.
	shared := mintBlock(t, 1, "", time.Unix(10, 0))
	if err := s.Update(func(tx store.Tx) error { return tx.PutBlock(shared) }); err != nil {
		t.Fatalf("seed shared: %v", err)
	}
	localOnly := mintBlock(t, 2, shared.Hash, time.Unix(9999, 0)) // divergent timestamp -> different hash
	if err := s.Update(func(tx store.Tx) error { return tx.PutBlock(localOnly) }); err != nil {
		t.Fatalf("seed local-only: %v", err)
	}

	// Peer shares block 1 but has a different, longer chain from block 2 onward.
	peerChain := []*block.Block{shared}
	prevHash := shared.Hash
	for i := 2; i <= 4; i++ {
		b := mintBlock(t, uint64(i), prevHash, time.Unix(int64(i)*10, 0))
		peerChain = append(peerChain, b)
		prevHash = b.Hash
	}

	eng := New(s, &fakeClient{chain: peerChain})
	if err := eng.SyncWith(context.Background(), Peer{URL: "http://peer"}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if s.Height() != 4 {
		t.Fatalf("expected height 4 after adopting peer's longer branch, got %d", s.Height())
	}
	got, err := s.BlockByID(2)
	if err != nil {
		t.Fatalf("block 2: %v", err)
	}
	if got.Hash != peerChain[1].Hash {
		t.Fatalf("expected local block 2 to be replaced by the peer's, got %+v", got)
	}
}

// TestSyncReinstatesOrphanedMoveToMempool covers spec §4.7 step 5's
// "detach their moves ... preserving them for possible re-inclusion":
// a move confirmed only in a locally-mined block that gets rolled back
// during sync must resurface in the mempool, not be silently dropped.
func TestSyncReinstatesOrphanedMoveToMempool(t *testing.T) {
	s, err := store.Open(store.NewMemory())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	shared := mintBlock(t, 1, "", time.Unix(10, 0))
	if err := s.Update(func(tx store.Tx) error { return tx.PutBlock(shared) }); err != nil {
		t.Fatalf("seed shared: %v", err)
	}

	orphanBlockID := uint64(2)
	orphanMove := &move.Move{ID: "orphan1", User: "alice", Name: move.Say,
		Details: map[string]string{"content": "hi"}, BlockID: &orphanBlockID}
	localOnly := mintBlock(t, 2, shared.Hash, time.Unix(9999, 0))
	localOnly.Moves = []*move.Move{orphanMove}
	if err := s.Update(func(tx store.Tx) error { return tx.PutBlock(localOnly) }); err != nil {
		t.Fatalf("seed local-only: %v", err)
	}

	peerChain := []*block.Block{shared}
	prevHash := shared.Hash
	for i := 2; i <= 3; i++ {
		b := mintBlock(t, uint64(i), prevHash, time.Unix(int64(i)*10, 0))
		peerChain = append(peerChain, b)
		prevHash = b.Hash
	}

	eng := New(s, &fakeClient{chain: peerChain})
	if err := eng.SyncWith(context.Background(), Peer{URL: "http://peer"}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	mempool, err := s.MempoolMoves()
	if err != nil {
		t.Fatalf("mempool: %v", err)
	}
	if len(mempool) != 1 || mempool[0].ID != "orphan1" {
		t.Fatalf("expected the rolled-back move back in mempool, got %+v", mempool)
	}
}
