package state

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	solana "github.com/gagliardetto/solana-go"

	"rfqsettle/core/types"
	"rfqsettle/storage"
)

var (
	accountPrefix = []byte("account:")
	rootKey       = ethcrypto.Keccak256([]byte("state-root"))
)

func accountKey(addr solana.PublicKey) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

type cachedAccount struct {
	account *types.Account // nil when the account is absent or deleted
	dirty   bool
}

type journalEntry struct {
	addr solana.PublicKey
	prev *cachedAccount
}

// Manager caches account reads and writes on top of a key-value store. Writes
// stay in memory until Commit; every mutation is journaled so a transaction
// can roll back to a snapshot without touching the database.
//
// Manager is not safe for concurrent use.
type Manager struct {
	db      storage.Database
	cache   map[solana.PublicKey]*cachedAccount
	journal []journalEntry
	root    []byte
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("state: database required")
	}
	root, err := db.Get(rootKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("state: load root: %w", err)
	}
	return &Manager{
		db:    db,
		cache: make(map[solana.PublicKey]*cachedAccount),
		root:  append([]byte(nil), root...),
	}, nil
}

func (m *Manager) load(addr solana.PublicKey) (*cachedAccount, error) {
	if cached, ok := m.cache[addr]; ok {
		return cached, nil
	}
	data, err := m.db.Get(accountKey(addr))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			cached := &cachedAccount{}
			m.cache[addr] = cached
			return cached, nil
		}
		return nil, fmt.Errorf("state: read account %s: %w", addr, err)
	}
	acc := new(types.Account)
	if err := rlp.DecodeBytes(data, acc); err != nil {
		return nil, fmt.Errorf("state: decode account %s: %w", addr, err)
	}
	cached := &cachedAccount{account: acc}
	m.cache[addr] = cached
	return cached, nil
}

// Account returns a copy of the stored account. The boolean is false when no
// account exists at the address.
func (m *Manager) Account(addr solana.PublicKey) (*types.Account, bool, error) {
	cached, err := m.load(addr)
	if err != nil {
		return nil, false, err
	}
	if cached.account == nil {
		return nil, false, nil
	}
	return cached.account.Clone(), true, nil
}

// Lamports returns the native balance of the address, zero when absent.
func (m *Manager) Lamports(addr solana.PublicKey) (uint64, error) {
	acc, ok, err := m.Account(addr)
	if err != nil || !ok {
		return 0, err
	}
	return acc.Lamports, nil
}

// PutAccount stores a copy of acc. Empty accounts are removed, mirroring the
// garbage collection of zero-balance accounts at the end of a transaction.
func (m *Manager) PutAccount(addr solana.PublicKey, acc *types.Account) error {
	if acc.IsEmpty() {
		return m.DeleteAccount(addr)
	}
	return m.write(addr, acc.Clone())
}

// DeleteAccount removes the account at addr.
func (m *Manager) DeleteAccount(addr solana.PublicKey) error {
	return m.write(addr, nil)
}

func (m *Manager) write(addr solana.PublicKey, acc *types.Account) error {
	prev, err := m.load(addr)
	if err != nil {
		return err
	}
	m.journal = append(m.journal, journalEntry{addr: addr, prev: prev})
	m.cache[addr] = &cachedAccount{account: acc, dirty: true}
	return nil
}

// Snapshot returns an identifier for the current journal position.
func (m *Manager) Snapshot() int {
	return len(m.journal)
}

// RevertToSnapshot undoes every mutation recorded after the snapshot.
func (m *Manager) RevertToSnapshot(id int) {
	if id < 0 || id > len(m.journal) {
		return
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		entry := m.journal[i]
		m.cache[entry.addr] = entry.prev
	}
	m.journal = m.journal[:id]
}

// Commit flushes dirty accounts to the database in a single batch, advances
// the state root and clears the journal. It returns the new root.
func (m *Manager) Commit() ([]byte, error) {
	dirty := make([]solana.PublicKey, 0)
	for addr, cached := range m.cache {
		if cached.dirty {
			dirty = append(dirty, addr)
		}
	}
	sort.Slice(dirty, func(i, j int) bool { return bytes.Compare(dirty[i][:], dirty[j][:]) < 0 })

	batch := m.db.NewBatch()
	hashInput := append([]byte(nil), m.root...)
	for _, addr := range dirty {
		key := accountKey(addr)
		cached := m.cache[addr]
		if cached.account == nil {
			batch.Delete(key)
			hashInput = append(hashInput, key...)
			continue
		}
		encoded, err := rlp.EncodeToBytes(cached.account)
		if err != nil {
			return nil, fmt.Errorf("state: encode account %s: %w", addr, err)
		}
		batch.Put(key, encoded)
		hashInput = append(hashInput, key...)
		hashInput = append(hashInput, ethcrypto.Keccak256(encoded)...)
	}
	root := m.root
	if len(dirty) > 0 {
		root = ethcrypto.Keccak256(hashInput)
		batch.Put(rootKey, root)
	}
	if err := batch.Write(); err != nil {
		return nil, fmt.Errorf("state: commit: %w", err)
	}
	for _, addr := range dirty {
		m.cache[addr].dirty = false
	}
	m.journal = m.journal[:0]
	m.root = root
	return append([]byte(nil), root...), nil
}

// Discard drops every uncommitted mutation.
func (m *Manager) Discard() {
	m.RevertToSnapshot(0)
	for addr, cached := range m.cache {
		if cached.dirty {
			delete(m.cache, addr)
		}
	}
}

// Root returns the root produced by the last commit.
func (m *Manager) Root() []byte {
	return append([]byte(nil), m.root...)
}
