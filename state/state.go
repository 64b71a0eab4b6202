package state

import (
	"bytes"
	"errors"
	"time"

	"github.com/calehh/phishgov/store"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	KeyState = "s"
)

var (
	ErrStateHeightUnmatched = errors.New("state height unmatched")
)

// StateHeader is the chain bookkeeping stored under KeyState.
type StateHeader struct {
	ChainId  string
	Height   uint64
	Time     uint64
	Hash     []byte
	RootHash []byte
}

func (h *StateHeader) Clone() *StateHeader {
	return &StateHeader{
		ChainId:  h.ChainId,
		Height:   h.Height,
		Time:     h.Time,
		Hash:     bytes.Clone(h.Hash),
		RootHash: bytes.Clone(h.RootHash),
	}
}

// State is one block's view of the ledger. Transactions run on branches of the block cache,
// and the block cache reaches the tree only on Update.
type State struct {
	logger cmtlog.Logger
	db     *iavl.MutableTree
	dbVer  int64

	header *StateHeader
	block  *store.CacheKV
}

func newState(db *iavl.MutableTree, logger cmtlog.Logger) *State {
	return &State{
		logger: logger,
		db:     db,
		dbVer:  db.Version(),
		header: new(StateHeader),
		block:  store.NewCacheKV(treeKV{tree: db}),
	}
}

func (s *State) nextState() *State {
	n := &State{
		logger: s.logger,
		db:     s.db,
		dbVer:  s.dbVer,
		header: s.header.Clone(),
		block:  store.NewCacheKV(treeKV{tree: s.db}),
	}
	if s.header.Hash != nil {
		n.header.Height = s.header.Height + 1
	}
	return n
}

func (s *State) load() (err error) {
	val, err := treeKV{tree: s.db}.Get([]byte(KeyState))
	if err != nil {
		return err
	}
	if val == nil {
		return nil
	}
	if err = rlp.DecodeBytes(val, s.header); err != nil {
		return err
	}
	h := s.db.Hash()
	if h != nil {
		s.calcHash(h, true)
	}
	return nil
}

func (s *State) calcHash(rootHash []byte, update bool) (h common.Hash) {
	h = crypto.Keccak256Hash(rootHash)
	if update {
		s.header.RootHash = bytes.Clone(rootHash)
		s.header.Hash = bytes.Clone(h[:])
	}
	return
}

// Update flushes the block cache into the working tree and returns the resulting app hash.
func (s *State) Update() (h common.Hash, err error) {
	var hash []byte
	defer func() {
		if hash == nil {
			s.db.Rollback()
		}
	}()
	val, err := rlp.EncodeToBytes(s.header)
	if err != nil {
		return
	}
	if err = s.block.Set([]byte(KeyState), val); err != nil {
		return
	}
	if err = s.block.Write(); err != nil {
		return
	}
	hash = s.db.WorkingHash()
	h = s.calcHash(hash, false)
	return
}

func (s *State) save() (h common.Hash, err error) {
	hash, ver, err := s.db.SaveVersion()
	if err != nil {
		return h, err
	}
	s.dbVer = ver
	h = s.calcHash(hash, true)
	return
}

// Store is the block-level cache; writes are visible to later transactions of the block.
func (s *State) Store() store.KVStore {
	return s.block
}

// Branch opens a per-transaction cache. Call Write on it to keep the transaction's effects.
func (s *State) Branch() *store.CacheKV {
	return store.NewCacheKV(s.block)
}

func (s *State) Header() *StateHeader {
	return s.header
}

func (s *State) Hash() (h common.Hash) {
	if s.header.Hash != nil {
		copy(h[:], s.header.Hash)
	}
	return
}

func (s *State) SetChainId(chainId string) {
	s.header.ChainId = chainId
}

func (s *State) SetBlock(height uint64, t time.Time) error {
	if s.header.Height > 1 && height != s.header.Height {
		s.logger.Error("unexpected block height", "want", s.header.Height, "got", height)
		return ErrStateHeightUnmatched
	}
	s.header.Height = height
	s.header.Time = uint64(t.Unix())
	return nil
}

// BlockTime is the ledger clock in unix seconds.
func (s *State) BlockTime() int64 {
	return int64(s.header.Time)
}
