package blacklist

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/calehh/phishgov/store"
	"github.com/calehh/phishgov/types"
	"github.com/ethereum/go-ethereum/common"
)

var (
	KeyEntryPrefix = "bl/"
	KeyEntryURL    = "bl/u/%s"
	KeyEntryAddr   = "bl/a/%s"
)

// Registry is the authoritative blacklist. Reads are open; writes are accepted only from
// the engine identity held in the shared authority.
type Registry struct {
	kv   store.KVStore
	auth *types.Authority
}

func NewRegistry(kv store.KVStore, auth *types.Authority) *Registry {
	return &Registry{
		kv:   kv,
		auth: auth,
	}
}

func entryKey(et types.EntryType, value string) ([]byte, error) {
	switch et {
	case types.EntryTypeURL:
		return []byte(fmt.Sprintf(KeyEntryURL, value)), nil
	case types.EntryTypeAddress:
		return []byte(fmt.Sprintf(KeyEntryAddr, value)), nil
	default:
		return nil, fmt.Errorf("%w: unknown entry type %d", types.ErrValidation, et)
	}
}

func prefixFor(et types.EntryType) ([]byte, error) {
	return entryKey(et, "")
}

func isValidation(err error) bool {
	return errors.Is(err, types.ErrValidation)
}

// NormalizeValue canonicalises a blacklist key so that equivalent spellings collide.
func NormalizeValue(et types.EntryType, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", fmt.Errorf("%w: empty %s", types.ErrValidation, et)
	}
	switch et {
	case types.EntryTypeURL:
		if u, err := url.Parse(v); err == nil && u.Host != "" {
			u.Scheme = strings.ToLower(u.Scheme)
			u.Host = strings.ToLower(u.Host)
			v = u.String()
		}
		v = strings.TrimRight(v, "/")
		if v == "" {
			return "", fmt.Errorf("%w: empty url", types.ErrValidation)
		}
		return v, nil
	case types.EntryTypeAddress:
		if !common.IsHexAddress(v) {
			return "", fmt.Errorf("%w: invalid address %q", types.ErrValidation, value)
		}
		return types.AddressKey(common.HexToAddress(v)), nil
	default:
		return "", fmt.Errorf("%w: unknown entry type %d", types.ErrValidation, et)
	}
}

func (r *Registry) checkCaller(caller common.Address) error {
	if r.auth == nil || caller != r.auth.Engine {
		return types.ErrNotEngine
	}
	return nil
}

func (r *Registry) AddEntry(caller common.Address, et types.EntryType, value string, proposer common.Address, now int64) (*types.EventEntryChanged, error) {
	if err := r.checkCaller(caller); err != nil {
		return nil, err
	}
	v, err := NormalizeValue(et, value)
	if err != nil {
		return nil, err
	}
	key, err := entryKey(et, v)
	if err != nil {
		return nil, err
	}
	exist, err := r.kv.Has(key)
	if err != nil {
		return nil, err
	}
	if exist {
		return nil, fmt.Errorf("%w: %s %s", types.ErrAlreadyBlacklisted, et, v)
	}
	entry := types.BlacklistEntry{
		Type:      et,
		Value:     v,
		CreatedAt: now,
		Proposer:  proposer,
		Exists:    true,
	}
	bz, err := json.Marshal(&entry)
	if err != nil {
		return nil, err
	}
	if err = r.kv.Set(key, bz); err != nil {
		return nil, err
	}
	return &types.EventEntryChanged{
		Added:     true,
		EntryType: et,
		Value:     v,
		Timestamp: now,
		Actor:     proposer,
	}, nil
}

func (r *Registry) RemoveEntry(caller common.Address, et types.EntryType, value string, remover common.Address, now int64) (*types.EventEntryChanged, error) {
	if err := r.checkCaller(caller); err != nil {
		return nil, err
	}
	v, err := NormalizeValue(et, value)
	if err != nil {
		return nil, err
	}
	key, err := entryKey(et, v)
	if err != nil {
		return nil, err
	}
	exist, err := r.kv.Has(key)
	if err != nil {
		return nil, err
	}
	if !exist {
		return nil, fmt.Errorf("%w: %s %s", types.ErrNotBlacklisted, et, v)
	}
	if err = r.kv.Delete(key); err != nil {
		return nil, err
	}
	return &types.EventEntryChanged{
		Added:     false,
		EntryType: et,
		Value:     v,
		Timestamp: now,
		Actor:     remover,
	}, nil
}

func (r *Registry) IsBlacklisted(et types.EntryType, value string) (bool, error) {
	v, err := NormalizeValue(et, value)
	if err != nil {
		return false, err
	}
	key, err := entryKey(et, v)
	if err != nil {
		return false, err
	}
	return r.kv.Has(key)
}

// BatchCheck resolves every value independently and returns the answers in input order.
// Values that cannot be normalised are reported as not blacklisted.
func (r *Registry) BatchCheck(et types.EntryType, values []string) ([]bool, error) {
	if _, err := prefixFor(et); err != nil {
		return nil, err
	}
	res := make([]bool, len(values))
	for i, value := range values {
		ok, err := r.IsBlacklisted(et, value)
		if err != nil {
			if isValidation(err) {
				continue
			}
			return nil, err
		}
		res[i] = ok
	}
	return res, nil
}

func (r *Registry) GetEntry(et types.EntryType, value string) (*types.BlacklistEntry, error) {
	v, err := NormalizeValue(et, value)
	if err != nil {
		return nil, err
	}
	key, err := entryKey(et, v)
	if err != nil {
		return nil, err
	}
	bz, err := r.kv.Get(key)
	if err != nil {
		return nil, err
	}
	if bz == nil {
		return nil, fmt.Errorf("%w: %s %s", types.ErrNotFound, et, v)
	}
	entry := new(types.BlacklistEntry)
	if err = json.Unmarshal(bz, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *Registry) ListEntries(et types.EntryType) ([]types.BlacklistEntry, error) {
	prefix, err := prefixFor(et)
	if err != nil {
		return nil, err
	}
	entries := make([]types.BlacklistEntry, 0)
	err = r.kv.Iterate(prefix, func(key, value []byte) (bool, error) {
		var entry types.BlacklistEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			return true, err
		}
		entries = append(entries, entry)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *Registry) Count(et types.EntryType) (uint64, error) {
	prefix, err := prefixFor(et)
	if err != nil {
		return 0, err
	}
	var n uint64
	err = r.kv.Iterate(prefix, func(key, value []byte) (bool, error) {
		n++
		return false, nil
	})
	return n, err
}
