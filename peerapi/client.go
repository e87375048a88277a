package peerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tos-network/nekoyume/block"
	"github.com/tos-network/nekoyume/chainsync"
	"github.com/tos-network/nekoyume/move"
)

// Client is an HTTP client over the routes of spec §6, implementing
// chainsync.Client and the send-side of gossip.Broadcaster.
type Client struct {
	hc *http.Client
}

// NewClient returns a Client with a bounded per-request timeout, since
// peers are untrusted and must never stall the miner/sync loop.
func NewClient() *Client {
	return &Client{hc: &http.Client{Timeout: 10 * time.Second}}
}

type lastBlockResponse struct {
	Block *wireBlock `json:"block"`
}

type blocksResponse struct {
	Blocks []wireBlock `json:"blocks"`
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("peerapi: GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("peerapi: GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(ctx context.Context, url string, body interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("peerapi: POST %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("peerapi: POST %s: status %d", url, resp.StatusCode)
	}
	return nil
}

// FetchTip implements chainsync.Client.
func (c *Client) FetchTip(ctx context.Context, peer chainsync.Peer) (*block.Block, error) {
	var resp lastBlockResponse
	if err := c.getJSON(ctx, peer.URL+"/blocks/last", &resp); err != nil {
		return nil, err
	}
	if resp.Block == nil {
		return nil, nil
	}
	return decodeBlock(*resp.Block)
}

// FetchBlockAt implements chainsync.Client.
func (c *Client) FetchBlockAt(ctx context.Context, peer chainsync.Peer, id uint64) (*block.Block, error) {
	var resp lastBlockResponse
	url := fmt.Sprintf("%s/blocks/%d", peer.URL, id)
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if resp.Block == nil {
		return nil, nil
	}
	return decodeBlock(*resp.Block)
}

// FetchBlocksFrom implements chainsync.Client.
func (c *Client) FetchBlocksFrom(ctx context.Context, peer chainsync.Peer, from uint64) ([]*block.Block, error) {
	var resp blocksResponse
	url := fmt.Sprintf("%s/blocks?from=%d", peer.URL, from)
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	out := make([]*block.Block, len(resp.Blocks))
	for i, wb := range resp.Blocks {
		b, err := decodeBlock(wb)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// SendBlock posts b to peerURL, stamping sentNode for loop suppression
// (spec §4.8 "stamp sent_node").
func (c *Client) SendBlock(ctx context.Context, peerURL string, b *block.Block, sentNode string) error {
	wb := encodeBlock(b)
	wb.SentNode = sentNode
	return c.postJSON(ctx, peerURL+"/blocks", wb)
}

// SendMove posts m to peerURL, stamping sentNode for loop suppression.
func (c *Client) SendMove(ctx context.Context, peerURL string, m *move.Move, sentNode string) error {
	wm := encodeMove(m)
	wm.SentNode = sentNode
	return c.postJSON(ctx, peerURL+"/moves", wm)
}
