package state

import (
	"errors"

	"github.com/calehh/phishgov/store"
	"github.com/cosmos/iavl"
	"github.com/syndtr/goleveldb/leveldb"
)

var ErrReadOnly = errors.New("read only store")

type iterator interface {
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

func drain(it iterator, fn func(key, value []byte) (bool, error)) (err error) {
	defer func() {
		if cerr := it.Close(); err == nil {
			err = cerr
		}
	}()
	for ; it.Valid(); it.Next() {
		stop, err := fn(it.Key(), it.Value())
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return it.Error()
}

// treeKV exposes the working IAVL tree as a KVStore. Iteration reads the last saved
// version; writes reach the tree only when a block is flushed.
type treeKV struct {
	tree *iavl.MutableTree
}

var _ store.KVStore = treeKV{}

func (t treeKV) Get(key []byte) ([]byte, error) {
	val, err := t.tree.Get(key)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return val, nil
}

func (t treeKV) Has(key []byte) (bool, error) {
	ok, err := t.tree.Has(key)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

func (t treeKV) Set(key, value []byte) error {
	_, err := t.tree.Set(key, value)
	return err
}

func (t treeKV) Delete(key []byte) error {
	_, _, err := t.tree.Remove(key)
	return err
}

func (t treeKV) Iterate(prefix []byte, fn func(key, value []byte) (bool, error)) error {
	it, err := t.tree.Iterator(prefix, store.PrefixEndBytes(prefix), true)
	if err != nil {
		return err
	}
	return drain(it, fn)
}

// snapshotKV is a read-only view of one committed version.
type snapshotKV struct {
	tree *iavl.ImmutableTree
}

var _ store.KVStore = snapshotKV{}

func (s snapshotKV) Get(key []byte) ([]byte, error) {
	val, err := s.tree.Get(key)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return val, nil
}

func (s snapshotKV) Has(key []byte) (bool, error) {
	ok, err := s.tree.Has(key)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

func (s snapshotKV) Set(key, value []byte) error {
	return ErrReadOnly
}

func (s snapshotKV) Delete(key []byte) error {
	return ErrReadOnly
}

func (s snapshotKV) Iterate(prefix []byte, fn func(key, value []byte) (bool, error)) error {
	it, err := s.tree.Iterator(prefix, store.PrefixEndBytes(prefix), true)
	if err != nil {
		return err
	}
	return drain(it, fn)
}
