// Package store persists the chain — blocks, moves, and known peer
// nodes — behind a small transactional interface. Grounded on the
// tosdb.KeyValueStore role in the teacher (a thin Get/Put/Delete/Has
// surface wrapping LevelDB, per tosdb/leveldb/leveldb_test.go) and on
// kvstore's namespace-prefixed key convention
// (kvstore/codec.go's putPayloadPrefix idiom, generalized here to one
// short string prefix per record kind instead of one fixed envelope prefix).
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/tos-network/nekoyume/block"
	"github.com/tos-network/nekoyume/move"
)

// Namespace key prefixes (spec §3 storage detail in SPEC_FULL.md §3).
const (
	prefixBlockByID   = "b:"
	prefixHashIndex   = "h:"
	prefixMove        = "m:"
	prefixBlockMoves  = "mb:"
	prefixMoveDetail  = "md:"
	prefixDetailIndex = "mdv:"
	prefixNode        = "n:"
	prefixMempool     = "mempool:"
)

// ErrNotFound is returned when a lookup finds no matching record.
var ErrNotFound = errors.New("store: not found")

// NodeRecord is a known peer (spec §3 "Node").
type NodeRecord struct {
	URL           string
	LastContacted time.Time
}

// KeyValueStore is the minimal persistence surface this package needs
// from its backend — satisfied by both the LevelDB-backed Database and
// an in-memory double, mirroring tosdb.KeyValueStore's Get/Put/Delete/Has
// shape (teacher's tosdb/leveldb/leveldb_test.go).
type KeyValueStore interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	NewIteratorWithPrefix(prefix []byte) Iterator
	Close() error
}

// Iterator walks a KeyValueStore's keys in order, mirroring
// goleveldb's iterator.Iterator (Next/Key/Value/Release).
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
}

// blockEnvelope is the on-disk record for a block: every field of
// block.Block plus its move ids (the moves themselves are stored
// separately under prefixMove and re-attached on read). Storage uses
// encoding/json rather than the teacher's rlp codec: the rlp package in
// this corpus is Ethereum's reflective struct encoder and its full
// implementation (Encode/Decode) isn't present in the retrieval pack
// (only the nacl/js build-tagged safe.go helper survived distillation),
// so there is no usable third-party or in-pack codec for this internal
// storage envelope — canonical, cross-node-verifiable hashing already
// goes through package bencode; this envelope never leaves the local store.
type blockEnvelope struct {
	ID         uint64
	PrevHash   string
	Creator    string
	CreatedAt  time.Time
	RootHash   string
	Difficulty int
	Suffix     string
	Hash       string
	MoveIDs    []string
}

type moveEnvelope struct {
	ID        string
	User      string
	Name      string
	Details   map[string]string
	Sig       []byte
	Pubkey    []byte
	Tax       uint64
	CreatedAt time.Time
	BlockID   *uint64
}

func encodeBlock(b *block.Block) ([]byte, error) {
	env := blockEnvelope{
		ID: b.ID, PrevHash: b.PrevHash, Creator: b.Creator, CreatedAt: b.CreatedAt,
		RootHash: b.RootHash, Difficulty: b.Difficulty, Suffix: b.Suffix, Hash: b.Hash,
		MoveIDs: move.SortedIDs(b.Moves),
	}
	return json.Marshal(env)
}

func decodeBlockEnvelope(data []byte) (*blockEnvelope, error) {
	var env blockEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func encodeMove(m *move.Move) ([]byte, error) {
	env := moveEnvelope{
		ID: m.ID, User: m.User, Name: string(m.Name), Details: m.Details,
		Sig: m.Signature.Sig, Pubkey: m.Signature.Pubkey, Tax: m.Tax,
		CreatedAt: m.CreatedAt, BlockID: m.BlockID,
	}
	return json.Marshal(env)
}

func decodeMove(data []byte) (*move.Move, error) {
	var env moveEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &move.Move{
		ID: env.ID, User: env.User, Name: move.Name(env.Name), Details: env.Details,
		Signature: move.Signature{Sig: env.Sig, Pubkey: env.Pubkey},
		Tax:       env.Tax, CreatedAt: env.CreatedAt, BlockID: env.BlockID,
	}, nil
}

func blockIDKey(id uint64) []byte {
	return []byte(prefixBlockByID + strconv.FormatUint(id, 10))
}

func blockMoveKey(blockID uint64, moveID string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixBlockMoves, blockID, moveID))
}

// Database is the chain store over any KeyValueStore backend (LevelDB or
// Memory). One sync.RWMutex guards it: Update holds the write lock, so
// writers serialize, and readers take the read lock.
type Database struct {
	mu     sync.RWMutex
	db     KeyValueStore
	height uint64
}

// Open wraps an already-open KeyValueStore (typically this package's
// LevelDB, or the in-memory Memory implementation for tests) as a
// chain store, scanning existing block records to learn the height.
func Open(db KeyValueStore) (*Database, error) {
	s := &Database{db: db}
	it := db.NewIteratorWithPrefix([]byte(prefixBlockByID))
	defer it.Release()
	for it.Next() {
		env, err := decodeBlockEnvelope(it.Value())
		if err != nil {
			return nil, fmt.Errorf("store: corrupt block record: %w", err)
		}
		if env.ID > s.height {
			s.height = env.ID
		}
	}
	return s, nil
}

// Height returns the current chain height (0 for an empty chain).
func (s *Database) Height() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height
}

func (s *Database) loadBlock(env *blockEnvelope) (*block.Block, error) {
	moves := make([]*move.Move, 0, len(env.MoveIDs))
	for _, id := range env.MoveIDs {
		m, err := s.getMoveLocked(id)
		if err != nil {
			return nil, err
		}
		moves = append(moves, m)
	}
	return &block.Block{
		ID: env.ID, PrevHash: env.PrevHash, Creator: env.Creator, CreatedAt: env.CreatedAt,
		RootHash: env.RootHash, Difficulty: env.Difficulty, Suffix: env.Suffix, Hash: env.Hash,
		Moves: moves,
	}, nil
}

func (s *Database) getMoveLocked(id string) (*move.Move, error) {
	data, err := s.db.Get([]byte(prefixMove + id))
	if err != nil {
		return nil, fmt.Errorf("%w: move %s: %v", ErrNotFound, id, err)
	}
	return decodeMove(data)
}

// BlockByID returns the block at the given height.
func (s *Database) BlockByID(id uint64) (*block.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := s.db.Get(blockIDKey(id))
	if err != nil {
		return nil, fmt.Errorf("%w: block %d", ErrNotFound, id)
	}
	env, err := decodeBlockEnvelope(data)
	if err != nil {
		return nil, err
	}
	return s.loadBlock(env)
}

// BlockByHash resolves a block by its hash via the h: index.
func (s *Database) BlockByHash(hash string) (*block.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idBytes, err := s.db.Get([]byte(prefixHashIndex + hash))
	if err != nil {
		return nil, fmt.Errorf("%w: hash %s", ErrNotFound, hash)
	}
	id, err := strconv.ParseUint(string(idBytes), 10, 64)
	if err != nil {
		return nil, err
	}
	data, err := s.db.Get(blockIDKey(id))
	if err != nil {
		return nil, fmt.Errorf("%w: block %d", ErrNotFound, id)
	}
	env, err := decodeBlockEnvelope(data)
	if err != nil {
		return nil, err
	}
	return s.loadBlock(env)
}

// Tip returns the highest block, or (nil, nil) for an empty chain.
func (s *Database) Tip() (*block.Block, error) {
	s.mu.RLock()
	height := s.height
	s.mu.RUnlock()
	if height == 0 {
		return nil, nil
	}
	return s.BlockByID(height)
}

// BlocksFrom returns every block with id >= from, in ascending order,
// for serving spec §6's "GET /blocks?from=" catch-up route.
func (s *Database) BlocksFrom(from uint64) ([]*block.Block, error) {
	s.mu.RLock()
	height := s.height
	s.mu.RUnlock()
	if from == 0 {
		from = 1
	}
	var out []*block.Block
	for id := from; id <= height; id++ {
		b, err := s.BlockByID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// MoveByID returns a confirmed or mempool move by id.
func (s *Database) MoveByID(id string) (*move.Move, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getMoveLocked(id)
}

// MempoolMoves returns every unconfirmed move, ordered by move id (the
// key order of the mempool namespace).
func (s *Database) MempoolMoves() ([]*move.Move, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it := s.db.NewIteratorWithPrefix([]byte(prefixMempool))
	defer it.Release()
	var out []*move.Move
	for it.Next() {
		id := string(it.Value())
		m, err := s.getMoveLocked(id)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Nodes returns every known peer node.
func (s *Database) Nodes() ([]NodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it := s.db.NewIteratorWithPrefix([]byte(prefixNode))
	defer it.Release()
	var out []NodeRecord
	for it.Next() {
		var rec NodeRecord
		if err := json.Unmarshal(it.Value(), &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out, nil
}

// TouchNode records a successful contact with the peer at url, used by
// gossip to update last-contacted after a successful broadcast send.
func (s *Database) TouchNode(url string, at time.Time) error {
	return s.Update(func(tx Tx) error {
		return tx.PutNode(NodeRecord{URL: url, LastContacted: at})
	})
}

// allMoves returns every stored move, confirmed or still in the mempool
// (callers filter on BlockID), used by
// the avatar.ChainReader query helpers below. O(chain size); acceptable
// for the mudnode reference node (spec explicitly scopes out storage
// engine performance tuning).
func (s *Database) allMoves() ([]*move.Move, error) {
	it := s.db.NewIteratorWithPrefix([]byte(prefixMove))
	defer it.Release()
	var out []*move.Move
	for it.Next() {
		m, err := decodeMove(it.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// LatestCreateMove implements avatar.ChainReader.
func (s *Database) LatestCreateMove(user string, ceiling uint64) (*move.Move, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	moves, err := s.allMoves()
	if err != nil {
		return nil, 0, err
	}
	var best *move.Move
	var bestID uint64
	for _, m := range moves {
		if m.Name != move.CreateNovice || m.User != user || m.BlockID == nil || *m.BlockID > ceiling {
			continue
		}
		if best == nil || *m.BlockID > bestID {
			best, bestID = m, *m.BlockID
		}
	}
	return best, bestID, nil
}

// MovesByUserAfter implements avatar.ChainReader.
func (s *Database) MovesByUserAfter(user string, after, ceiling uint64) ([]*move.Move, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	moves, err := s.allMoves()
	if err != nil {
		return nil, err
	}
	var out []*move.Move
	for _, m := range moves {
		if m.User != user || m.Name == move.CreateNovice || m.BlockID == nil {
			continue
		}
		if *m.BlockID <= after || *m.BlockID > ceiling {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// ReceivedSendsAfter implements avatar.ChainReader.
func (s *Database) ReceivedSendsAfter(user string, after, ceiling uint64) ([]*move.Move, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	moves, err := s.allMoves()
	if err != nil {
		return nil, err
	}
	var out []*move.Move
	for _, m := range moves {
		if m.Name != move.Send || m.Details["receiver"] != user || m.BlockID == nil {
			continue
		}
		if *m.BlockID <= after || *m.BlockID > ceiling {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// BlockHash implements avatar.ChainReader.
func (s *Database) BlockHash(id uint64) (string, error) {
	b, err := s.BlockByID(id)
	if err != nil {
		return "", err
	}
	return b.Hash, nil
}

// BlockDifficulty implements avatar.ChainReader.
func (s *Database) BlockDifficulty(id uint64) (int, error) {
	b, err := s.BlockByID(id)
	if err != nil {
		return 0, err
	}
	return b.Difficulty, nil
}

// BlockCountByCreator implements avatar.ChainReader.
func (s *Database) BlockCountByCreator(user string, ceiling uint64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for id := uint64(1); id <= ceiling && id <= s.height; id++ {
		data, err := s.db.Get(blockIDKey(id))
		if err != nil {
			continue
		}
		env, err := decodeBlockEnvelope(data)
		if err != nil {
			return 0, err
		}
		if env.Creator == user {
			n++
		}
	}
	return n, nil
}

// Tx is the write surface exposed inside Update's callback (spec §5:
// "block-append and sync rollback/catch-up each commit atomically or
// not at all").
type Tx interface {
	PutBlock(b *block.Block) error
	PutMove(m *move.Move) error
	AddMempool(m *move.Move) error
	RemoveMempool(id string) error
	PutNode(rec NodeRecord) error
	Truncate(fromID uint64) error
	// BlockByID reads a previously-committed block without taking the
	// store's read lock (Update already holds the write lock for the
	// duration of the callback, and sync.RWMutex is not reentrant).
	BlockByID(id uint64) (*block.Block, error)
}

type txn struct {
	s       *Database
	writes  map[string][]byte
	deletes map[string]bool
	height  uint64
}

func (t *txn) put(key string, value []byte) { delete(t.deletes, key); t.writes[key] = value }
func (t *txn) del(key string)               { delete(t.writes, key); t.deletes[key] = true }

// BlockByID implements Tx.BlockByID, reading directly from the backend
// (bypassing Database's RWMutex, already held by the enclosing Update).
func (t *txn) BlockByID(id uint64) (*block.Block, error) {
	data, err := t.s.db.Get(blockIDKey(id))
	if err != nil {
		return nil, fmt.Errorf("%w: block %d", ErrNotFound, id)
	}
	env, err := decodeBlockEnvelope(data)
	if err != nil {
		return nil, err
	}
	moves := make([]*move.Move, 0, len(env.MoveIDs))
	for _, mid := range env.MoveIDs {
		m, err := t.s.getMoveLocked(mid)
		if err != nil {
			return nil, err
		}
		moves = append(moves, m)
	}
	return &block.Block{
		ID: env.ID, PrevHash: env.PrevHash, Creator: env.Creator, CreatedAt: env.CreatedAt,
		RootHash: env.RootHash, Difficulty: env.Difficulty, Suffix: env.Suffix, Hash: env.Hash,
		Moves: moves,
	}, nil
}

func (t *txn) PutBlock(b *block.Block) error {
	enc, err := encodeBlock(b)
	if err != nil {
		return err
	}
	t.put(string(blockIDKey(b.ID)), enc)
	t.put(prefixHashIndex+b.Hash, []byte(strconv.FormatUint(b.ID, 10)))
	for _, m := range b.Moves {
		if err := t.PutMove(m); err != nil {
			return err
		}
		t.put(string(blockMoveKey(b.ID, m.ID)), []byte(m.ID))
		t.del(prefixMempool + m.ID)
	}
	if b.ID > t.height {
		t.height = b.ID
	}
	return nil
}

func (t *txn) PutMove(m *move.Move) error {
	enc, err := encodeMove(m)
	if err != nil {
		return err
	}
	t.put(prefixMove+m.ID, enc)
	for k, v := range m.Details {
		t.put(prefixMoveDetail+m.ID+":"+k, []byte(v))
		t.put(prefixDetailIndex+k+":"+v+":"+m.ID, []byte{1})
	}
	return nil
}

func (t *txn) AddMempool(m *move.Move) error {
	if err := t.PutMove(m); err != nil {
		return err
	}
	t.put(prefixMempool+m.ID, []byte(m.ID))
	return nil
}

func (t *txn) RemoveMempool(id string) error {
	t.del(prefixMempool + id)
	return nil
}

func (t *txn) PutNode(rec NodeRecord) error {
	enc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	t.put(prefixNode+rec.URL, enc)
	return nil
}

// Truncate discards every block with id >= fromID (fromID itself is
// removed), used by the sync engine to drop divergent local blocks above
// the branch point before applying the peer's. Moves carried only by a truncated
// block are detached (block_id set back to nil) and re-admitted to the
// mempool rather than discarded, so a rolled-back move remains eligible
// for re-inclusion in a later block.
func (t *txn) Truncate(fromID uint64) error {
	for id := fromID; id <= t.height; id++ {
		data, err := t.s.db.Get(blockIDKey(id))
		if err != nil {
			continue
		}
		env, err := decodeBlockEnvelope(data)
		if err != nil {
			return err
		}
		t.del(string(blockIDKey(id)))
		t.del(prefixHashIndex + env.Hash)
		for _, mid := range env.MoveIDs {
			t.del(string(blockMoveKey(id, mid)))
			m, err := t.s.getMoveLocked(mid)
			if err != nil {
				return err
			}
			m.BlockID = nil
			if err := t.AddMempool(m); err != nil {
				return err
			}
		}
	}
	if fromID == 0 {
		t.height = 0
	} else {
		t.height = fromID - 1
	}
	return nil
}

// Update runs fn against a buffered transaction and commits it
// atomically only if fn returns nil, serializing with every other
// writer (spec §5 "a single chain-write lock").
func (s *Database) Update(fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &txn{s: s, writes: make(map[string][]byte), deletes: make(map[string]bool), height: s.height}
	if err := fn(t); err != nil {
		return err
	}
	for k := range t.deletes {
		if err := s.db.Delete([]byte(k)); err != nil {
			return fmt.Errorf("store: commit delete %q: %w", k, err)
		}
	}
	for k, v := range t.writes {
		if err := s.db.Put([]byte(k), v); err != nil {
			return fmt.Errorf("store: commit put %q: %w", k, err)
		}
	}
	s.height = t.height
	return nil
}

// Close releases the underlying backend.
func (s *Database) Close() error { return s.db.Close() }
