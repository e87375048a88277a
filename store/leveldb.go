package store

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB wraps a *leveldb.DB as a KeyValueStore, grounded on the shape
// exercised by tosdb/leveldb/leveldb_test.go's Database{db: db} literal
// (the teacher's own leveldb.go source was filtered from the retrieval
// pack, leaving only that test as a grounding source for the field
// layout).
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB opens (or creates) a LevelDB database at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	v, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return v, err
}

func (l *LevelDB) Put(key, value []byte) error { return l.db.Put(key, value, nil) }

func (l *LevelDB) Delete(key []byte) error {
	err := l.db.Delete(key, nil)
	if err == leveldb.ErrNotFound {
		return nil
	}
	return err
}

func (l *LevelDB) Has(key []byte) (bool, error) {
	ok, err := l.db.Has(key, nil)
	if err != nil && err != errors.ErrNotFound {
		return false, err
	}
	return ok, nil
}

func (l *LevelDB) NewIteratorWithPrefix(prefix []byte) Iterator {
	return &levelDBIterator{it: l.db.NewIterator(util.BytesPrefix(prefix), nil)}
}

func (l *LevelDB) Close() error { return l.db.Close() }

type levelDBIterator struct {
	it interface {
		Next() bool
		Key() []byte
		Value() []byte
		Release()
	}
}

func (i *levelDBIterator) Next() bool    { return i.it.Next() }
func (i *levelDBIterator) Key() []byte   { return i.it.Key() }
func (i *levelDBIterator) Value() []byte { return i.it.Value() }
func (i *levelDBIterator) Release()      { i.it.Release() }
