// Package state persists platform entities (accounts, sale records, investor
// deposits, staking entries) in a key-value store. It is the production implementation of the
// narrow state interfaces declared by the native engines.
package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/core/types"
	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/native/sale"
	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/native/staking"
	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/storage"
)

var (
	accountPrefix = []byte("acct/")
	salePrefix    = []byte("sale/")
	depositPrefix = []byte("deposit/")
	stakePrefix   = []byte("stake/")
	stakeIndexKey = []byte("stake/accounts")
)

// Manager wraps a storage backend with typed accessors. A single Manager is
// shared by all sale instances; records are namespaced by key prefixes.
type Manager struct {
	db storage.Database
}

// NewManager constructs a Manager over the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func accountKey(addr []byte) []byte {
	return append(append([]byte{}, accountPrefix...), addr...)
}

func saleKey(id [32]byte) []byte {
	return append(append([]byte{}, salePrefix...), id[:]...)
}

func depositKey(saleID [32]byte, account [20]byte) []byte {
	key := append(append([]byte{}, depositPrefix...), saleID[:]...)
	return append(key, account[:]...)
}

func stakeKey(account [20]byte) []byte {
	return append(append([]byte{}, stakePrefix...), account[:]...)
}

// GetAccount returns the stored account or nil when absent.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	raw, err := m.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	account := &types.Account{}
	if err := json.Unmarshal(raw, account); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	return account, nil
}

// PutAccount persists the account under its address.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	raw, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("state: encode account: %w", err)
	}
	return m.db.Put(accountKey(addr), raw)
}

// SaleGet loads a sale record by id.
func (m *Manager) SaleGet(id [32]byte) (*sale.Record, bool, error) {
	raw, err := m.db.Get(saleKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	record := &sale.Record{}
	if err := json.Unmarshal(raw, record); err != nil {
		return nil, false, fmt.Errorf("state: decode sale record: %w", err)
	}
	record.ID = id
	return record, true, nil
}

// SalePut persists a sale record under its id.
func (m *Manager) SalePut(record *sale.Record) error {
	if record == nil {
		return fmt.Errorf("state: nil sale record")
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("state: encode sale record: %w", err)
	}
	return m.db.Put(saleKey(record.ID), raw)
}

// DepositGet loads an investor deposit for a sale.
func (m *Manager) DepositGet(saleID [32]byte, account [20]byte) (*sale.Deposit, bool, error) {
	raw, err := m.db.Get(depositKey(saleID, account))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	deposit := &sale.Deposit{}
	if err := json.Unmarshal(raw, deposit); err != nil {
		return nil, false, fmt.Errorf("state: decode deposit: %w", err)
	}
	deposit.SaleID = saleID
	deposit.Account = account
	return deposit, true, nil
}

// DepositPut persists an investor deposit.
func (m *Manager) DepositPut(deposit *sale.Deposit) error {
	if deposit == nil {
		return fmt.Errorf("state: nil deposit")
	}
	raw, err := json.Marshal(deposit)
	if err != nil {
		return fmt.Errorf("state: encode deposit: %w", err)
	}
	return m.db.Put(depositKey(deposit.SaleID, deposit.Account), raw)
}

// StakeGet loads a persisted staking entry.
func (m *Manager) StakeGet(account [20]byte) (*staking.Stake, bool, error) {
	raw, err := m.db.Get(stakeKey(account))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	stake := &staking.Stake{}
	if err := json.Unmarshal(raw, stake); err != nil {
		return nil, false, fmt.Errorf("state: decode stake: %w", err)
	}
	stake.Account = account
	return stake, true, nil
}

// StakePut persists a staking entry and registers the account in the stake
// index so the pool can rebuild its ledger on restart.
func (m *Manager) StakePut(stake *staking.Stake) error {
	if stake == nil {
		return fmt.Errorf("state: nil stake")
	}
	raw, err := json.Marshal(stake)
	if err != nil {
		return fmt.Errorf("state: encode stake: %w", err)
	}
	if err := m.db.Put(stakeKey(stake.Account), raw); err != nil {
		return err
	}
	accounts, err := m.StakeAccounts()
	if err != nil {
		return err
	}
	for _, existing := range accounts {
		if existing == stake.Account {
			return nil
		}
	}
	accounts = append(accounts, stake.Account)
	raw, err = json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("state: encode stake index: %w", err)
	}
	return m.db.Put(stakeIndexKey, raw)
}

// StakeAccounts lists every account with a persisted staking entry.
func (m *Manager) StakeAccounts() ([][20]byte, error) {
	raw, err := m.db.Get(stakeIndexKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var accounts [][20]byte
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("state: decode stake index: %w", err)
	}
	return accounts, nil
}
