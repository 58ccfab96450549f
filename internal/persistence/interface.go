package persistence

import "errors"

var (
	// ErrKeyNotFound is returned by Txn.Get when the key does not exist.
	ErrKeyNotFound = errors.New("key not found")
	// ErrConflict is returned by Engine.Update when a concurrent transaction
	// committed a write to a key this transaction read.
	ErrConflict = errors.New("transaction conflict")
)

// Engine represents a transactional persistence backend
type Engine interface {
	// View runs fn in a read-only transaction.
	View(fn func(tx Txn) error) error
	// Update runs fn in a read-write transaction. Writes are committed only
	// if fn returns nil.
	Update(fn func(tx Txn) error) error

	// Management
	Close() error
	Backup(path string) error
}

// Txn is the view of the store inside a single transaction
type Txn interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
	// Scan calls fn for every key with the given prefix in ascending key order.
	Scan(prefix string, fn func(key string, value []byte) error) error
}

// Config holds persistence configuration
type Config struct {
	Type       string // "memory", "badger"
	DataDir    string
	BackupDir  string
	SyncWrites bool
}

// IsNotFound reports whether err means a missing key
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// IsConflict reports whether err is a transaction conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
