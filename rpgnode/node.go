// Package rpgnode is the process composition root: it wires the chain
// store, mempool admission, miner, sync engine, gossip broadcaster and
// peer HTTP surface into one running node, matching the role package
// node/ plays in the teacher (gtos's Node type owns the services and
// their lifecycle; this package does the same for the much smaller
// set of services this spec needs).
package rpgnode

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tos-network/nekoyume/avatar"
	"github.com/tos-network/nekoyume/block"
	"github.com/tos-network/nekoyume/chainsync"
	"github.com/tos-network/nekoyume/gossip"
	"github.com/tos-network/nekoyume/log"
	"github.com/tos-network/nekoyume/miner"
	"github.com/tos-network/nekoyume/move"
	"github.com/tos-network/nekoyume/peerapi"
	"github.com/tos-network/nekoyume/store"
)

// mineInterval bounds how often the node attempts to mint a block when
// idle; difficulty (miner.Miner.nextDifficulty) is what actually keeps
// block times near the target window, this is just the retry cadence.
const mineInterval = 2 * time.Second

// syncInterval is how often the node polls each known peer for a
// longer chain.
const syncInterval = 10 * time.Second

// Config configures a Node.
type Config struct {
	// ListenAddr is the address the peer HTTP server binds to, e.g. ":9000".
	ListenAddr string
	// SelfURL is how peers should reach this node, stamped into
	// outgoing gossip as sent_node.
	SelfURL string
	// Creator is the address credited with mined blocks.
	Creator string
	// Peers seeds the known-peer set each time New runs; every listed
	// peer's last-contacted time is written as the zero time.
	Peers []string
}

// Node owns the store and every service built on top of it.
type Node struct {
	cfg    Config
	st     *store.Database
	miner  *miner.Miner
	sync   *chainsync.Engine
	gossip *gossip.Broadcaster
	client *peerapi.Client
	server *http.Server
}

// New wires a Node against db, per Config.
func New(db store.KeyValueStore, cfg Config) (*Node, error) {
	st, err := store.Open(db)
	if err != nil {
		return nil, fmt.Errorf("rpgnode: opening store: %w", err)
	}
	for _, p := range cfg.Peers {
		if err := st.TouchNode(p, time.Time{}); err != nil {
			return nil, fmt.Errorf("rpgnode: seeding peer %s: %w", p, err)
		}
	}

	client := peerapi.NewClient()
	n := &Node{
		cfg:    cfg,
		st:     st,
		miner:  miner.New(st, cfg.Creator),
		sync:   chainsync.New(st, client),
		gossip: gossip.New(st, client, cfg.SelfURL),
		client: client,
	}

	httpServer := peerapi.NewServer(st, n, n)
	n.server = &http.Server{Addr: cfg.ListenAddr, Handler: httpServer}
	return n, nil
}

// SubmitMove implements peerapi.MoveSink: validate, admit to mempool,
// gossip onward unless it just arrived from a peer we'd echo it back to.
func (n *Node) SubmitMove(m *move.Move, sentNode string) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := n.st.Update(func(tx store.Tx) error {
		return tx.AddMempool(m)
	}); err != nil {
		return err
	}
	n.gossip.BroadcastMove(context.Background(), m, sentNode)
	return nil
}

// SubmitBlock implements peerapi.BlockSink: validate against the
// current tip and append, invalidating the avatar cache from this
// block's id forward, then gossip onward.
func (n *Node) SubmitBlock(b *block.Block, sentNode string) error {
	tip, err := n.st.Tip()
	if err != nil {
		return err
	}
	var prev block.PrevBlock
	if tip != nil {
		prev = tip
	}
	if err := b.Validate(prev); err != nil {
		return err
	}
	if tip != nil && b.ID != tip.ID+1 {
		return fmt.Errorf("%w: block %d does not chain onto tip %d", block.ErrInvalidBlock, b.ID, tip.ID)
	}
	if err := n.st.Update(func(tx store.Tx) error {
		for _, m := range b.Moves {
			if err := tx.RemoveMempool(m.ID); err != nil {
				return err
			}
		}
		return tx.PutBlock(b)
	}); err != nil {
		return err
	}
	avatar.InvalidateFrom(n.st, b.ID)
	n.gossip.BroadcastBlock(context.Background(), b, sentNode)
	return nil
}

// Run starts the peer HTTP server and the mining/sync loops, blocking
// until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	serverErrs := make(chan error, 1)
	go func() {
		if err := n.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrs <- err
		}
	}()

	mineTicker := time.NewTicker(mineInterval)
	defer mineTicker.Stop()
	syncTicker := time.NewTicker(syncInterval)
	defer syncTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return n.server.Shutdown(shutdownCtx)
		case err := <-serverErrs:
			return err
		case <-mineTicker.C:
			n.mineOnce(ctx)
		case <-syncTicker.C:
			n.syncOnce(ctx)
		}
	}
}

func (n *Node) mineOnce(ctx context.Context) {
	b, err := n.miner.MineNext(ctx, time.Now())
	if err != nil {
		if err != miner.ErrRaceLost {
			log.Error("mining attempt failed", "err", err)
		}
		return
	}
	avatar.InvalidateFrom(n.st, b.ID)
	n.gossip.BroadcastBlock(ctx, b, "")
}

func (n *Node) syncOnce(ctx context.Context) {
	peers, err := n.st.Nodes()
	if err != nil {
		log.Error("rpgnode: listing peers for sync failed", "err", err)
		return
	}
	for _, p := range peers {
		if p.URL == n.cfg.SelfURL {
			continue
		}
		if err := n.sync.SyncWith(ctx, chainsync.Peer{URL: p.URL}); err != nil {
			log.Error("rpgnode: sync with peer failed", "peer", p.URL, "err", err)
		}
	}
}

// Store exposes the underlying chain store, e.g. for avatar
// reconstruction from a CLI query command.
func (n *Node) Store() *store.Database { return n.st }

// Close releases the underlying database handle.
func (n *Node) Close() error { return n.st.Close() }
