// Builder implements the client-side move creation workflow of spec
// §4.3: fill user/created_at/tax/name/details, sign, compute id,
// ready to submit. This supplements a feature the distilled spec names
// but leaves mechanical ("client side: ... sign ... compute id ...
// submit") — restored here from the original User class
// (original_source/nekoyume/models.py) in the idiom of the teacher's
// per-variant constructor helpers (sysaction.MakeSysAction).
package move

import (
	"fmt"
	"time"

	"github.com/tos-network/nekoyume/crypto"
)

// Builder signs moves on behalf of one address, derived from a seed via
// crypto.PassphraseToPubkey — the in-process client interface of spec §6.
type Builder struct {
	seed    []byte
	pubkey  []byte
	address string
}

// NewBuilder derives a signer keypair/address from seed.
func NewBuilder(seed []byte) (*Builder, error) {
	pub, err := crypto.PassphraseToPubkey(seed)
	if err != nil {
		return nil, err
	}
	addr, err := crypto.Address(pub)
	if err != nil {
		return nil, err
	}
	return &Builder{seed: seed, pubkey: pub, address: addr}, nil
}

// Address returns this builder's signer address.
func (b *Builder) Address() string { return b.address }

// Build fills, signs, and assigns the id of a new move of the given
// variant, tax, and details. now is injected by the caller (never
// time.Now() inside this package) so tests stay deterministic.
func (b *Builder) Build(name Name, details map[string]string, tax uint64, now time.Time) (*Move, error) {
	if !IsKnownName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	m := &Move{
		User:      b.address,
		Name:      name,
		Details:   details,
		Tax:       tax,
		CreatedAt: now,
	}
	sig, err := crypto.Sign(m.CanonicalForSigning(), b.seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMove, err)
	}
	m.Signature = Signature{Sig: sig, Pubkey: b.pubkey}
	m.ID = m.ComputeID()
	return m, nil
}

// Convenience constructors mirroring the original User class's
// per-variant helpers (hack_and_slash, sleep, send, sell, buy,
// create_novice, level_up, say, combine).

func (b *Builder) BuildCreateNovice(details map[string]string, now time.Time) (*Move, error) {
	return b.Build(CreateNovice, details, 0, now)
}

func (b *Builder) BuildHackAndSlash(spot string, now time.Time) (*Move, error) {
	return b.Build(HackAndSlash, map[string]string{"spot": spot}, 0, now)
}

func (b *Builder) BuildSleep(now time.Time) (*Move, error) {
	return b.Build(Sleep, map[string]string{}, 0, now)
}

func (b *Builder) BuildSend(itemName string, amount int, receiver string, now time.Time) (*Move, error) {
	return b.Build(Send, map[string]string{
		"item_name": itemName,
		"amount":    fmt.Sprintf("%d", amount),
		"receiver":  receiver,
	}, 0, now)
}

func (b *Builder) BuildSell(itemName, price string, now time.Time) (*Move, error) {
	return b.Build(Sell, map[string]string{"item_name": itemName, "price": price}, 0, now)
}

func (b *Builder) BuildBuy(moveID string, now time.Time) (*Move, error) {
	return b.Build(Buy, map[string]string{"move_id": moveID}, 0, now)
}

func (b *Builder) BuildLevelUp(newStatus string, now time.Time) (*Move, error) {
	return b.Build(LevelUp, map[string]string{"new_status": newStatus}, 0, now)
}

func (b *Builder) BuildSay(content string, now time.Time) (*Move, error) {
	return b.Build(Say, map[string]string{"content": content}, 0, now)
}

func (b *Builder) BuildCombine(item1, item2, item3 string, now time.Time) (*Move, error) {
	return b.Build(Combine, map[string]string{"item1": item1, "item2": item2, "item3": item3}, 0, now)
}
