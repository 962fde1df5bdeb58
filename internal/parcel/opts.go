package parcel

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// getDBOptions returns in-memory BadgerDB options for tests and one-shot runs.
// Nothing survives Close.
func getDBOptions() badger.Options {
	return badger.DefaultOptions("").
		WithInMemory(true).
		WithNumVersionsToKeep(1).
		WithLogger(nil)
}

// InitDB opens the database at path, or an in-memory one when inMemory is set.
func InitDB(path string, inMemory bool) (*badger.DB, error) {
	opts := getDBOptions()
	if !inMemory {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		opts = badger.DefaultOptions(path).
			WithLoggingLevel(badger.WARNING)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return db, nil
}
