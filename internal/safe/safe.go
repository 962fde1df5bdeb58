// internal/safe/safe.go
package safe

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrContentNotFound = errors.New("content not found")
	ErrInvalidHash     = errors.New("invalid content hash")
)

const metaPrefix = "content:"

// ContentMeta stores metadata about archived content
type ContentMeta struct {
	Hash       string    `json:"hash"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	RefCount   uint32    `json:"ref_count"`
	Compressed bool      `json:"compressed"`
	CreatedAt  time.Time `json:"created_at"`
	AccessedAt time.Time `json:"accessed_at"`
}

// Safe is a deduplicated, content-addressed archive of source texts. Blobs
// live on disk, metadata in badger.
type Safe struct {
	root       string
	db         *badger.DB
	cache      *lru.Cache[string, []byte]
	compressor *compressor
	mu         sync.Mutex // serializes ref count updates
}

// Options configures Safe behavior
type Options struct {
	Root        string
	CacheSize   int
	Compression CompressionOptions
}

func New(db *badger.DB, opts Options) (*Safe, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.Compression.Level == 0 {
		opts.Compression = DefaultCompressionOptions()
	}

	if err := os.MkdirAll(opts.Root, 0755); err != nil {
		return nil, fmt.Errorf("creating root directory: %w", err)
	}

	cache, err := lru.New[string, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	comp, err := newCompressor(opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("creating compressor: %w", err)
	}

	return &Safe{
		root:       opts.Root,
		db:         db,
		cache:      cache,
		compressor: comp,
	}, nil
}

// Store archives content under its sha256 and returns the hash. Storing the
// same content again only bumps its reference count. name picks the
// compression policy.
func (s *Safe) Store(name string, content []byte) (string, error) {
	if content == nil {
		content = []byte{}
	}
	hash := HashContent(content)

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.getMeta(hash)
	if err == nil {
		meta.RefCount++
		if err := s.storeMeta(meta); err != nil {
			return "", fmt.Errorf("incrementing ref count: %w", err)
		}
		return hash, nil
	}
	if !errors.Is(err, ErrContentNotFound) {
		return "", fmt.Errorf("checking existence: %w", err)
	}

	contentPath := s.contentPath(hash)
	if err := os.MkdirAll(filepath.Dir(contentPath), 0755); err != nil {
		return "", fmt.Errorf("creating content directory: %w", err)
	}

	data, compressed := s.compressor.compress(name, content)
	if err := os.WriteFile(contentPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing content file: %w", err)
	}

	now := time.Now()
	meta = ContentMeta{
		Hash:       hash,
		Name:       name,
		Size:       int64(len(content)),
		RefCount:   1,
		Compressed: compressed,
		CreatedAt:  now,
		AccessedAt: now,
	}
	if err := s.storeMeta(meta); err != nil {
		os.Remove(contentPath)
		return "", fmt.Errorf("storing metadata: %w", err)
	}

	s.cache.Add(hash, content)
	return hash, nil
}

// Get retrieves content by hash
func (s *Safe) Get(hash string) ([]byte, error) {
	if !isValidHash(hash) {
		return nil, ErrInvalidHash
	}

	if content, ok := s.cache.Get(hash); ok {
		return content, nil
	}

	meta, err := s.getMeta(hash)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(s.contentPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("reading content: %w", err)
	}

	if meta.Compressed {
		content, err = s.compressor.decompress(content)
		if err != nil {
			return nil, err
		}
	}

	if HashContent(content) != hash {
		return nil, fmt.Errorf("content hash mismatch for %s", hash)
	}

	s.cache.Add(hash, content)
	return content, nil
}

// Delete drops one reference; the blob goes away with the last one.
func (s *Safe) Delete(hash string) error {
	if !isValidHash(hash) {
		return ErrInvalidHash
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.getMeta(hash)
	if err != nil {
		return fmt.Errorf("getting metadata: %w", err)
	}

	meta.RefCount--
	if meta.RefCount > 0 {
		if err := s.storeMeta(meta); err != nil {
			return fmt.Errorf("updating metadata: %w", err)
		}
		return nil
	}

	if err := os.Remove(s.contentPath(hash)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing content file: %w", err)
	}
	if err := s.deleteMeta(hash); err != nil {
		return fmt.Errorf("deleting metadata: %w", err)
	}
	s.cache.Remove(hash)
	return nil
}

// HashContent returns the hex sha256 of content.
func HashContent(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func (s *Safe) contentPath(hash string) string {
	return filepath.Join(s.root, hash[:2], hash[2:])
}

func isValidHash(hash string) bool {
	if len(hash) != 64 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

func (s *Safe) storeMeta(meta ContentMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(metaPrefix+meta.Hash), data)
	})
}

func (s *Safe) getMeta(hash string) (ContentMeta, error) {
	var meta ContentMeta

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaPrefix + hash))
		if err == badger.ErrKeyNotFound {
			return ErrContentNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})

	return meta, err
}

func (s *Safe) deleteMeta(hash string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(metaPrefix + hash))
	})
}
