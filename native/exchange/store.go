package exchange

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"synthex/storage"
)

var (
	stateKey         = []byte("exchange/state")
	assetsListKey    = []byte("exchange/assets")
	accountKeyPrefix = []byte("exchange/account/")
)

func accountKey(owner common.Address) []byte {
	key := make([]byte, 0, len(accountKeyPrefix)+common.AddressLength)
	key = append(key, accountKeyPrefix...)
	return append(key, owner.Bytes()...)
}

// stateRecord carries the signed adjustment timestamp next to the rlp body
// of the state.
type stateRecord struct {
	State              *State
	LastDebtAdjustment uint64
}

// Store persists exchange records as rlp in a key/value database.
type Store struct {
	db storage.Database
}

// NewStore creates an exchange store backed by the provided database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

func (s *Store) get(key []byte, out interface{}) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("exchange store uninitialised")
	}
	raw, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// GetState returns the global state, or nil before genesis.
func (s *Store) GetState() (*State, error) {
	var record stateRecord
	found, err := s.get(stateKey, &record)
	if err != nil || !found {
		return nil, err
	}
	if record.State == nil {
		return nil, fmt.Errorf("decode state: empty record")
	}
	record.State.LastDebtAdjustment = int64(record.LastDebtAdjustment)
	return record.State, nil
}

// GetAssetsList returns the registry, or nil before genesis.
func (s *Store) GetAssetsList() (*AssetsList, error) {
	list := new(AssetsList)
	found, err := s.get(assetsListKey, list)
	if err != nil || !found {
		return nil, err
	}
	return list, nil
}

// GetExchangeAccount returns owner's position, or nil when none exists.
func (s *Store) GetExchangeAccount(owner common.Address) (*ExchangeAccount, error) {
	acc := new(ExchangeAccount)
	found, err := s.get(accountKey(owner), acc)
	if err != nil || !found {
		return nil, err
	}
	return acc, nil
}

// Commit writes the changeset in a single batch.
func (s *Store) Commit(cs *Changeset) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("exchange store uninitialised")
	}
	if cs == nil {
		return nil
	}
	batch := s.db.NewBatch()
	if cs.State != nil {
		encoded, err := rlp.EncodeToBytes(stateRecord{State: cs.State, LastDebtAdjustment: uint64(cs.State.LastDebtAdjustment)})
		if err != nil {
			return fmt.Errorf("encode state: %w", err)
		}
		batch.Put(stateKey, encoded)
	}
	if cs.AssetsList != nil {
		encoded, err := rlp.EncodeToBytes(cs.AssetsList)
		if err != nil {
			return fmt.Errorf("encode assets list: %w", err)
		}
		batch.Put(assetsListKey, encoded)
	}
	for _, acc := range cs.Accounts {
		if acc == nil {
			continue
		}
		encoded, err := rlp.EncodeToBytes(acc)
		if err != nil {
			return fmt.Errorf("encode account %s: %w", acc.Owner.Hex(), err)
		}
		batch.Put(accountKey(acc.Owner), encoded)
	}
	return batch.Write()
}

// Initialized reports whether genesis has been written.
func (s *Store) Initialized() (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("exchange store uninitialised")
	}
	return s.db.Has(stateKey)
}
