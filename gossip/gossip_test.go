package gossip

import (
	"context"
	"testing"
	"time"

	"github.com/tos-network/nekoyume/block"
	"github.com/tos-network/nekoyume/move"
	"github.com/tos-network/nekoyume/store"
)

type fakeSender struct {
	blockSends []string
	moveSends  []string
	failURL    string
}

func (f *fakeSender) SendBlock(ctx context.Context, peerURL string, b *block.Block, sentNode string) error {
	if peerURL == f.failURL {
		return context.DeadlineExceeded
	}
	f.blockSends = append(f.blockSends, peerURL)
	return nil
}

func (f *fakeSender) SendMove(ctx context.Context, peerURL string, m *move.Move, sentNode string) error {
	if peerURL == f.failURL {
		return context.DeadlineExceeded
	}
	f.moveSends = append(f.moveSends, peerURL)
	return nil
}

func seedPeers(t *testing.T, s *store.Database, urls ...string) {
	t.Helper()
	for _, u := range urls {
		if err := s.TouchNode(u, time.Unix(0, 0)); err != nil {
			t.Fatalf("seed peer %s: %v", u, err)
		}
	}
}

func TestBroadcastBlockSkipsSentNodeAndSelf(t *testing.T) {
	s, err := store.Open(store.NewMemory())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	seedPeers(t, s, "http://a", "http://b", "http://me")

	sender := &fakeSender{}
	b := New(s, sender, "http://me")
	b.BroadcastBlock(context.Background(), &block.Block{ID: 1}, "http://a")

	if len(sender.blockSends) != 1 || sender.blockSends[0] != "http://b" {
		t.Fatalf("expected only http://b to receive the block, got %v", sender.blockSends)
	}
}

func TestBroadcastMoveTouchesLastContacted(t *testing.T) {
	s, err := store.Open(store.NewMemory())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	seedPeers(t, s, "http://a")

	sender := &fakeSender{}
	b := New(s, sender, "http://me")
	b.BroadcastMove(context.Background(), &move.Move{ID: "m1"}, "")

	nodes, err := s.Nodes()
	if err != nil {
		t.Fatalf("nodes: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	if !nodes[0].LastContacted.After(time.Unix(0, 0)) {
		t.Fatalf("expected last-contacted to be refreshed, got %v", nodes[0].LastContacted)
	}
}

func TestBroadcastToleratesPeerFailure(t *testing.T) {
	s, err := store.Open(store.NewMemory())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	seedPeers(t, s, "http://down", "http://up")

	sender := &fakeSender{failURL: "http://down"}
	b := New(s, sender, "http://me")
	b.BroadcastBlock(context.Background(), &block.Block{ID: 1}, "")

	if len(sender.blockSends) != 1 || sender.blockSends[0] != "http://up" {
		t.Fatalf("expected the reachable peer to still be sent to, got %v", sender.blockSends)
	}
}
