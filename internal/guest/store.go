// Package guest persists canvas state for users drawing without an account.
// Everything lives in a local Badger database under two fixed keys: the full
// element array and a generated guest identity.
package guest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/drawrhq/drawr/internal/shape"
)

var (
	canvasKey = []byte("guestCanvasData")
	userKey   = []byte("guestUser")
)

// Identity is the locally generated guest user.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Store is the guest-mode canvas persistence.
type Store struct {
	db *badger.DB
	lg *zap.Logger
}

// Open opens (or creates) the guest database at path.
func Open(path string, lg *zap.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open guest db: %w", err)
	}
	return &Store{db: db, lg: lg}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// User returns the guest identity, creating one on first use. Generated
// names look like GuestNNNN.
func (s *Store) User() (Identity, error) {
	var id Identity
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &id)
		})
	})
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return Identity{}, fmt.Errorf("load guest user: %w", err)
	}

	id = Identity{
		ID:       fmt.Sprintf("guest-%d", rand.Int63()),
		Username: fmt.Sprintf("Guest%04d", rand.Intn(10000)),
	}
	b, err := json.Marshal(id)
	if err != nil {
		return Identity{}, err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey, b)
	}); err != nil {
		return Identity{}, fmt.Errorf("save guest user: %w", err)
	}
	s.lg.Info("created guest identity", zap.String("username", id.Username))
	return id, nil
}

// Load returns the stored canvas, or an empty one when nothing was saved yet.
func (s *Store) Load() ([]shape.Element, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(canvasKey)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load guest canvas: %w", err)
	}

	var els []shape.Element
	if err := json.Unmarshal(raw, &els); err != nil {
		// A corrupt canvas should not brick guest mode. Start fresh.
		s.lg.Warn("guest canvas unreadable, resetting", zap.Error(err))
		return nil, nil
	}
	return els, nil
}

// Save overwrites the stored canvas with the full element array.
func (s *Store) Save(els []shape.Element) error {
	if els == nil {
		els = []shape.Element{}
	}
	b, err := json.Marshal(els)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(canvasKey, b)
	}); err != nil {
		return fmt.Errorf("save guest canvas: %w", err)
	}
	return nil
}

// Export returns every stored element serialized individually, ready to be
// posted to a room during account conversion.
func (s *Store) Export() ([]string, error) {
	els, err := s.Load()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		enc, err := shape.EncodeElement(el)
		if err != nil {
			return nil, err
		}
		out = append(out, enc)
	}
	return out, nil
}

// Clear drops the stored canvas, typically after a successful import.
func (s *Store) Clear() error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(canvasKey)
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("clear guest canvas: %w", err)
	}
	return nil
}
