// Command mudnode runs a peer node for the text RPG chain, and gives
// players a way to generate a keypair and submit moves against a
// running node, per spec §6. Built on github.com/urfave/cli/v2, the
// teacher's own CLI dependency (cmd/gtos, cmd/toskey).
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tos-network/nekoyume/crypto"
	"github.com/tos-network/nekoyume/move"
	"github.com/tos-network/nekoyume/peerapi"
	"github.com/tos-network/nekoyume/rpgnode"
	"github.com/tos-network/nekoyume/store"
)

func main() {
	app := &cli.App{
		Name:  "mudnode",
		Usage: "run a node or submit moves for the text RPG chain",
		Commands: []*cli.Command{
			commandRun,
			commandKeygen,
			commandMove,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "directory holding the node's leveldb chain store",
		Value: "./mudnode-data",
	}
	listenFlag = &cli.StringFlag{
		Name:  "listen",
		Usage: "address the peer HTTP server binds to",
		Value: ":9000",
	}
	selfURLFlag = &cli.StringFlag{
		Name:  "self-url",
		Usage: "URL other peers use to reach this node, stamped into gossip as sent_node",
		Required: true,
	}
	creatorFlag = &cli.StringFlag{
		Name:     "creator",
		Usage:    "address credited with blocks mined by this node",
		Required: true,
	}
	peersFlag = &cli.StringSliceFlag{
		Name:  "peer",
		Usage: "peer URL to seed the known-peer set with (repeatable)",
	}
)

var commandRun = &cli.Command{
	Name:  "run",
	Usage: "run a node: serve the peer API, mine, and sync with peers",
	Flags: []cli.Flag{dataDirFlag, listenFlag, selfURLFlag, creatorFlag, peersFlag},
	Action: func(c *cli.Context) error {
		db, err := store.OpenLevelDB(c.String(dataDirFlag.Name))
		if err != nil {
			return fmt.Errorf("opening chain store: %w", err)
		}
		n, err := rpgnode.New(db, rpgnode.Config{
			ListenAddr: c.String(listenFlag.Name),
			SelfURL:    c.String(selfURLFlag.Name),
			Creator:    c.String(creatorFlag.Name),
			Peers:      c.StringSlice(peersFlag.Name),
		})
		if err != nil {
			return err
		}
		defer n.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return n.Run(ctx)
	},
}

var commandKeygen = &cli.Command{
	Name:  "keygen",
	Usage: "derive a public key and address from a passphrase read on stdin",
	Action: func(c *cli.Context) error {
		fmt.Fprint(os.Stderr, "passphrase: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		seed := []byte(strings.TrimRight(line, "\r\n"))
		pub, err := crypto.PassphraseToPubkey(seed)
		if err != nil {
			return err
		}
		addr, err := crypto.Address(pub)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(map[string]string{
			"address": addr,
			"pubkey":  fmt.Sprintf("%x", pub),
		})
	},
}

var (
	nodeURLFlag = &cli.StringFlag{
		Name:     "node",
		Usage:    "URL of the node to submit the move to",
		Required: true,
	}
	taxFlag = &cli.Uint64Flag{
		Name:  "tax",
		Usage: "tax value to attach to the move",
	}
)

var commandMove = &cli.Command{
	Name:      "move",
	Usage:     "sign and submit a move",
	ArgsUsage: "<variant> [details key=value ...]",
	Flags:     []cli.Flag{nodeURLFlag, taxFlag},
	Description: `
Reads a passphrase from stdin, builds and signs a move of the given
variant with the remaining arguments as "key=value" details, and
POSTs it to --node.

Flags go before the variant. Example:
  mudnode move --node http://127.0.0.1:9000 create_novice name=hero \
  strength=10 dexterity=10 constitution=10 intelligence=10 wisdom=10 charisma=10
`,
	Action: func(c *cli.Context) error {
		args := c.Args().Slice()
		if len(args) == 0 {
			return fmt.Errorf("mudnode move: missing move variant")
		}
		variant := move.Name(args[0])
		details := make(map[string]string)
		for _, kv := range args[1:] {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("mudnode move: invalid detail %q, expected key=value", kv)
			}
			details[k] = v
		}

		fmt.Fprint(os.Stderr, "passphrase: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		seed := []byte(strings.TrimRight(line, "\r\n"))

		builder, err := move.NewBuilder(seed)
		if err != nil {
			return err
		}
		m, err := builder.Build(variant, details, c.Uint64(taxFlag.Name), time.Now())
		if err != nil {
			return err
		}

		client := peerapi.NewClient()
		if err := client.SendMove(context.Background(), c.String(nodeURLFlag.Name), m, ""); err != nil {
			return fmt.Errorf("submitting move: %w", err)
		}
		fmt.Println("move id:", m.ID)
		return nil
	},
}
