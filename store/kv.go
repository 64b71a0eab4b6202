package store

import (
	"bytes"
	"sort"
)

// KVStore is the byte-level storage the governance modules write through.
type KVStore interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	// Iterate visits keys with the given prefix in ascending order until fn returns stop.
	Iterate(prefix []byte, fn func(key, value []byte) (stop bool, err error)) error
}

type dirtyValue struct {
	value   []byte
	deleted bool
}

// CacheKV buffers writes on top of a parent store. Nothing reaches the parent until Write.
// A CacheKV with a nil parent is a plain in-memory store.
type CacheKV struct {
	parent KVStore
	dirty  map[string]dirtyValue
}

var _ KVStore = (*CacheKV)(nil)

func NewCacheKV(parent KVStore) *CacheKV {
	return &CacheKV{
		parent: parent,
		dirty:  make(map[string]dirtyValue),
	}
}

func NewMemKV() *CacheKV {
	return NewCacheKV(nil)
}

func (c *CacheKV) Get(key []byte) ([]byte, error) {
	if v, ok := c.dirty[string(key)]; ok {
		if v.deleted {
			return nil, nil
		}
		return v.value, nil
	}
	if c.parent == nil {
		return nil, nil
	}
	return c.parent.Get(key)
}

func (c *CacheKV) Has(key []byte) (bool, error) {
	v, err := c.Get(key)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

func (c *CacheKV) Set(key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	c.dirty[string(key)] = dirtyValue{value: bytes.Clone(value)}
	return nil
}

func (c *CacheKV) Delete(key []byte) error {
	c.dirty[string(key)] = dirtyValue{deleted: true}
	return nil
}

func (c *CacheKV) Iterate(prefix []byte, fn func(key, value []byte) (bool, error)) error {
	merged := make(map[string][]byte)
	if c.parent != nil {
		err := c.parent.Iterate(prefix, func(key, value []byte) (bool, error) {
			merged[string(key)] = value
			return false, nil
		})
		if err != nil {
			return err
		}
	}
	for k, v := range c.dirty {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if v.deleted {
			delete(merged, k)
		} else {
			merged[k] = v.value
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		stop, err := fn([]byte(k), merged[k])
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

// Write flushes buffered changes into the parent in ascending key order and clears the
// buffer. It is a no-op for a parentless store.
func (c *CacheKV) Write() error {
	if c.parent == nil {
		return nil
	}
	for _, k := range c.sortedDirtyKeys() {
		v := c.dirty[k]
		var err error
		if v.deleted {
			err = c.parent.Delete([]byte(k))
		} else {
			err = c.parent.Set([]byte(k), v.value)
		}
		if err != nil {
			return err
		}
	}
	c.Discard()
	return nil
}

// Discard drops every buffered change.
func (c *CacheKV) Discard() {
	c.dirty = make(map[string]dirtyValue)
}

func (c *CacheKV) Dirty() int {
	return len(c.dirty)
}

func (c *CacheKV) sortedDirtyKeys() []string {
	keys := make([]string, 0, len(c.dirty))
	for k := range c.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func PrefixEndBytes(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}

	end := make([]byte, len(prefix))
	copy(end, prefix)

	for {
		if end[len(end)-1] != byte(255) {
			end[len(end)-1]++
			break
		}

		end = end[:len(end)-1]

		if len(end) == 0 {
			end = nil
			break
		}
	}

	return end
}
