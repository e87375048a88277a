package avatar

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/tos-network/nekoyume/move"
)

// ChainReader is the narrow read surface Reconstruct needs of the chain
// store. Kept here (rather than importing package store) so avatar has
// no dependency on store, while store.Database satisfies this
// interface structurally — mirroring agentidx.Indexer's read-only view
// of the underlying ledger.
type ChainReader interface {
	// LatestCreateMove returns the most recent create_* move for user at
	// or before ceiling, and the id of the block it was confirmed in.
	LatestCreateMove(user string, ceiling uint64) (m *move.Move, blockID uint64, err error)
	// MovesByUserAfter returns user's own confirmed moves with block id
	// in (afterBlockID, ceiling], in any order (Reconstruct sorts them by
	// block id then move id).
	MovesByUserAfter(user string, afterBlockID, ceiling uint64) ([]*move.Move, error)
	// ReceivedSendsAfter returns send moves addressed to user with block
	// id in (afterBlockID, ceiling], also in any order.
	ReceivedSendsAfter(user string, afterBlockID, ceiling uint64) ([]*move.Move, error)
	// BlockHash returns the hash of the block with the given id, needed
	// to re-derive each move's hash-random stream.
	BlockHash(blockID uint64) (string, error)
	// BlockDifficulty returns the difficulty of the block with the given id.
	BlockDifficulty(blockID uint64) (int, error)
	// BlockCountByCreator counts blocks with creator == user and id <= ceiling.
	BlockCountByCreator(user string, ceiling uint64) (int, error)
}

// ErrNoCreateMove is returned when a user has no create_* move to replay from.
var ErrNoCreateMove = fmt.Errorf("%w: no create move found for user", move.ErrInvalidMove)

// cacheKey scopes a cached reconstruction to the store that produced it
// (storeID is the ChainReader passed to Reconstruct, compared by its
// dynamic type and value) in addition to user and ceiling, so that two
// independent chain stores sharing a process never hand back each
// other's cached avatar state for a coincidentally-matching
// (user, ceiling) pair.
type cacheKey struct {
	storeID interface{}
	user    string
	ceiling uint64
}

var (
	cacheMu sync.Mutex
	cache   *lru.Cache
)

func init() {
	c, err := lru.New(1024)
	if err != nil {
		panic(err)
	}
	cache = c
}

// InvalidateFrom purges every cached reconstruction of storeID (the same
// ChainReader passed to Reconstruct) whose ceiling is greater than or
// equal to rolledBackBlockID, called by the sync engine after a rollback
// (spec §9 "Cached reconstruction").
func InvalidateFrom(storeID interface{}, rolledBackBlockID uint64) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	for _, k := range cache.Keys() {
		ck, ok := k.(cacheKey)
		if ok && ck.storeID == storeID && ck.ceiling >= rolledBackBlockID {
			cache.Remove(k)
		}
	}
}

// Reconstruct implements the avatar reconstructor of spec §4.9: find the
// latest create_* move at or before ceiling, execute it, credit the
// mining reward, then fold every applicable move confirmed afterwards
// (the user's own moves plus sends received by them) in block order.
func Reconstruct(r ChainReader, user string, ceiling uint64) (*State, error) {
	key := cacheKey{storeID: r, user: user, ceiling: ceiling}
	cacheMu.Lock()
	if v, ok := cache.Get(key); ok {
		cacheMu.Unlock()
		cached := v.(*State)
		clone := *cached
		clone.Items = make(map[string]int, len(cached.Items))
		for k, v := range cached.Items {
			clone.Items[k] = v
		}
		return &clone, nil
	}
	cacheMu.Unlock()

	createMove, createBlockID, err := r.LatestCreateMove(user, ceiling)
	if err != nil {
		return nil, err
	}
	if createMove == nil {
		return nil, ErrNoCreateMove
	}

	hash, err := r.BlockHash(createBlockID)
	if err != nil {
		return nil, fmt.Errorf("avatar: reading block %d hash: %w", createBlockID, err)
	}
	difficulty, err := r.BlockDifficulty(createBlockID)
	if err != nil {
		return nil, fmt.Errorf("avatar: reading block %d difficulty: %w", createBlockID, err)
	}

	s, _, err := Execute(createMove, BlockInfo{Hash: hash, Difficulty: difficulty}, nil)
	if err != nil {
		return nil, fmt.Errorf("avatar: replaying create move: %w", err)
	}

	blocks, err := r.BlockCountByCreator(user, ceiling)
	if err != nil {
		return nil, fmt.Errorf("avatar: counting mined blocks: %w", err)
	}
	s.GetGold(8 * blocks)

	own, err := r.MovesByUserAfter(user, createBlockID, ceiling)
	if err != nil {
		return nil, fmt.Errorf("avatar: listing own moves: %w", err)
	}
	received, err := r.ReceivedSendsAfter(user, createBlockID, ceiling)
	if err != nil {
		return nil, fmt.Errorf("avatar: listing received sends: %w", err)
	}

	var ops []pendingOp
	for _, m := range own {
		m := m
		ops = append(ops, pendingOp{blockID: *m.BlockID, id: m.ID, apply: func() error {
			h, err := r.BlockHash(*m.BlockID)
			if err != nil {
				return err
			}
			d, err := r.BlockDifficulty(*m.BlockID)
			if err != nil {
				return err
			}
			next, _, err := Execute(m, BlockInfo{Hash: h, Difficulty: d}, s)
			if err != nil {
				return err
			}
			s = next
			return nil
		}})
	}
	for _, m := range received {
		m := m
		ops = append(ops, pendingOp{blockID: *m.BlockID, id: m.ID, apply: func() error {
			next, _ := ApplyReceive(m, s)
			s = next
			return nil
		}})
	}
	sortPending(ops)
	for _, op := range ops {
		if err := op.apply(); err != nil {
			return nil, fmt.Errorf("avatar: applying move %s: %w", op.id, err)
		}
	}

	cacheMu.Lock()
	stored := *s
	stored.Items = make(map[string]int, len(s.Items))
	for k, v := range s.Items {
		stored.Items[k] = v
	}
	cache.Add(key, &stored)
	cacheMu.Unlock()

	return s, nil
}

// pendingOp is one deferred move application, ordered by block id then
// move id before being folded into the avatar (spec §4.9 step 4: "in
// block order").
type pendingOp struct {
	blockID uint64
	id      string
	apply   func() error
}

func sortPending(ops []pendingOp) {
	for i := 1; i < len(ops); i++ {
		j := i
		for j > 0 && pendingLess(ops[j], ops[j-1]) {
			ops[j], ops[j-1] = ops[j-1], ops[j]
			j--
		}
	}
}

func pendingLess(a, b pendingOp) bool {
	if a.blockID != b.blockID {
		return a.blockID < b.blockID
	}
	return a.id < b.id
}

// GetGold credits n gold to the avatar's balance (mining reward, spec §4.9 step 3).
func (s *State) GetGold(n int) {
	if s.Items == nil {
		s.Items = make(map[string]int)
	}
	s.Items["GOLD"] += n
}
