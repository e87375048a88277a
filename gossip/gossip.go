// Package gossip implements spec §4.8: broadcasting a newly-minted or
// newly-received block or move to every peer this node knows about,
// skipping the node that just sent it, and tolerating per-peer
// transport failure so one unreachable peer never blocks the rest.
// Grounded on Node.broadcast in original_source/nekoyume/models.py
// (the "skip sent_node, stamp my url, update last-contacted" shape),
// reading the known-peer set through the PeerStore interface (the chain
// store's node namespace) instead of the original's direct session query.
package gossip

import (
	"context"
	"time"

	"github.com/tos-network/nekoyume/block"
	"github.com/tos-network/nekoyume/log"
	"github.com/tos-network/nekoyume/move"
	"github.com/tos-network/nekoyume/store"
)

// Sender is the outbound transport gossip needs, implemented by
// peerapi's HTTP client.
type Sender interface {
	SendBlock(ctx context.Context, peerURL string, b *block.Block, sentNode string) error
	SendMove(ctx context.Context, peerURL string, m *move.Move, sentNode string) error
}

// PeerStore tracks known peers and their last-contacted time, backed
// by the chain store's node namespace.
type PeerStore interface {
	Nodes() ([]store.NodeRecord, error)
	TouchNode(url string, at time.Time) error
}

// Broadcaster fans a block or move out to every known peer except the
// one it arrived from.
type Broadcaster struct {
	myURL  string
	sender Sender
	peers  PeerStore
}

// New returns a Broadcaster that announces itself as myURL (stamped
// into outgoing sent_node fields) and sends via sender.
func New(peers PeerStore, sender Sender, myURL string) *Broadcaster {
	return &Broadcaster{myURL: myURL, sender: sender, peers: peers}
}

// BroadcastBlock sends b to every known peer other than sentNode,
// tolerating per-peer failures (§4.8 "tolerate per-peer transport
// failure").
func (b *Broadcaster) BroadcastBlock(ctx context.Context, blk *block.Block, sentNode string) {
	peers, err := b.peers.Nodes()
	if err != nil {
		log.Error("gossip: listing peers failed", "err", err)
		return
	}
	for _, p := range peers {
		if sentNode != "" && p.URL == sentNode {
			continue
		}
		if p.URL == b.myURL {
			continue
		}
		if err := b.sender.SendBlock(ctx, p.URL, blk, b.myURL); err != nil {
			log.Error("gossip: sending block failed", "peer", p.URL, "block", blk.ID, "err", err)
			continue
		}
		if err := b.peers.TouchNode(p.URL, time.Now()); err != nil {
			log.Error("gossip: touching peer failed", "peer", p.URL, "err", err)
		}
	}
}

// BroadcastMove sends m to every known peer other than sentNode.
func (b *Broadcaster) BroadcastMove(ctx context.Context, m *move.Move, sentNode string) {
	peers, err := b.peers.Nodes()
	if err != nil {
		log.Error("gossip: listing peers failed", "err", err)
		return
	}
	for _, p := range peers {
		if sentNode != "" && p.URL == sentNode {
			continue
		}
		if p.URL == b.myURL {
			continue
		}
		if err := b.sender.SendMove(ctx, p.URL, m, b.myURL); err != nil {
			log.Error("gossip: sending move failed", "peer", p.URL, "move", m.ID, "err", err)
			continue
		}
		if err := b.peers.TouchNode(p.URL, time.Now()); err != nil {
			log.Error("gossip: touching peer failed", "peer", p.URL, "err", err)
		}
	}
}
