package manifest

import (
	"fmt"
	"sort"
	"time"

	"remapper/internal/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const runPrefix = "run"

// Box is what the API and CLI need from run storage.
type Box interface {
	Create(r *Run) error
	Get(id string) (*Run, error)
	List() ([]*Run, error)
	Delete(id string) error
}

type Store struct {
	store *storage.BadgerStore
}

func NewStore(db *badger.DB) *Store {
	return &Store{store: storage.NewBadgerStore(db, runPrefix)}
}

// Create assigns an ID and timestamp when missing and persists the run.
func (s *Store) Create(r *Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if err := s.store.Create(r); err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	return nil
}

func (s *Store) Get(id string) (*Run, error) {
	var r Run
	if err := s.store.Get(id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// List returns runs newest first.
func (s *Store) List() ([]*Run, error) {
	var runs []*Run
	if err := s.store.List(&runs); err != nil {
		return nil, err
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

func (s *Store) Delete(id string) error {
	return s.store.Delete(id)
}
