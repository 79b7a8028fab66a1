package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketRecords = []byte("records")
	bucketMeta    = []byte("meta")
	keyDimension  = []byte("dimension")
)

// collectionName restricts collection names to safe file names.
var collectionName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// lockTimeout bounds how long an operation waits for another process
// holding the collection file.
const lockTimeout = 5 * time.Second

// storedRecord is the JSON value kept under each record id.
type storedRecord struct {
	Vector   []float32         `json:"v"`
	Document string            `json:"d"`
	Metadata map[string]string `json:"m,omitempty"`
}

// LocalStore implements VectorStore on local bbolt files, one file per
// collection under a directory. Files are opened per operation (read-only
// for queries) so a long-running server never holds them between requests.
// Search is brute-force cosine similarity.
type LocalStore struct {
	// dir is the directory holding <collection>.db files.
	dir string

	// mu serialises writers against readers within this process; bbolt's
	// file lock covers other processes.
	mu sync.RWMutex
}

// NewLocalStore returns a LocalStore rooted at dir, creating it if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("localstore: directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("localstore: failed to create %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the directory the store persists into.
func (s *LocalStore) Dir() string { return s.dir }

// path returns the bbolt file for collection.
func (s *LocalStore) path(collection string) (string, error) {
	if !collectionName.MatchString(collection) {
		return "", fmt.Errorf("localstore: invalid collection name %q", collection)
	}
	return filepath.Join(s.dir, collection+".db"), nil
}

// open opens the collection file. When readOnly is set and the file does
// not exist, it returns (nil, nil).
func (s *LocalStore) open(collection string, readOnly bool) (*bbolt.DB, error) {
	p, err := s.path(collection)
	if err != nil {
		return nil, err
	}
	if readOnly {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
	}
	db, err := bbolt.Open(p, 0o600, &bbolt.Options{Timeout: lockTimeout, ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("localstore: failed to open %s: %w", p, err)
	}
	return db, nil
}

// Upsert writes docs with their embeddings into the collection in a single
// transaction. The first write fixes the collection's vector dimension.
func (s *LocalStore) Upsert(_ context.Context, collection string, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("localstore: %d documents but %d embeddings", len(docs), len(embeddings))
	}
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.open(collection, false)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx *bbolt.Tx) error {
		records, err := tx.CreateBucketIfNotExists(bucketRecords)
		if err != nil {
			return fmt.Errorf("localstore: failed to create records bucket: %w", err)
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return fmt.Errorf("localstore: failed to create meta bucket: %w", err)
		}

		dim, err := readDimension(meta)
		if err != nil {
			return err
		}
		if dim == 0 {
			dim = len(embeddings[0])
			if dim == 0 {
				return errors.New("localstore: empty embedding vector")
			}
			if err := meta.Put(keyDimension, []byte(strconv.Itoa(dim))); err != nil {
				return err
			}
		}

		for i, doc := range docs {
			if doc.ID == "" {
				return errors.New("localstore: document id must not be empty")
			}
			if len(embeddings[i]) != dim {
				return fmt.Errorf("localstore: vector dimension mismatch for %q: expected %d, got %d", doc.ID, dim, len(embeddings[i]))
			}
			data, err := json.Marshal(storedRecord{
				Vector:   embeddings[i],
				Document: doc.Content,
				Metadata: doc.Metadata,
			})
			if err != nil {
				return fmt.Errorf("localstore: failed to encode %q: %w", doc.ID, err)
			}
			if err := records.Put([]byte(doc.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Search scores every record of the collection against the query and
// returns the topK best, ties broken by id.
func (s *LocalStore) Search(_ context.Context, collection string, queryEmbedding []float32, topK int) ([]Document, error) {
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.open(collection, true)
	if err != nil || db == nil {
		return nil, err
	}
	defer db.Close()

	var scored []Document
	err = db.View(func(tx *bbolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		if records == nil {
			return nil
		}
		if meta := tx.Bucket(bucketMeta); meta != nil {
			dim, err := readDimension(meta)
			if err != nil {
				return err
			}
			if dim != 0 && dim != len(queryEmbedding) {
				return fmt.Errorf("localstore: query dimension mismatch: expected %d, got %d", dim, len(queryEmbedding))
			}
		}
		return records.ForEach(func(k, v []byte) error {
			var rec storedRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("localstore: corrupt record %q: %w", k, err)
			}
			scored = append(scored, Document{
				ID:       string(k),
				Content:  rec.Document,
				Metadata: rec.Metadata,
				Score:    float32(cosineSimilarity(queryEmbedding, rec.Vector)),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})
	if topK < len(scored) {
		scored = scored[:topK]
	}
	return scored, nil
}

// Delete removes records by id. Unknown ids are ignored.
func (s *LocalStore) Delete(_ context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.path(collection)
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	db, err := s.open(collection, false)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx *bbolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		if records == nil {
			return nil
		}
		for _, id := range ids {
			if err := records.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of records in the collection.
func (s *LocalStore) Count(_ context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.open(collection, true)
	if err != nil || db == nil {
		return 0, err
	}
	defer db.Close()

	n := 0
	err = db.View(func(tx *bbolt.Tx) error {
		if records := tx.Bucket(bucketRecords); records != nil {
			n = records.Stats().KeyN
		}
		return nil
	})
	return n, err
}

// Close is a no-op: files are closed after every operation.
func (s *LocalStore) Close() error { return nil }

// Name identifies the store in readiness reports.
func (s *LocalStore) Name() string { return "vectorstore" }

// Ping verifies the store directory is still present and is a directory.
func (s *LocalStore) Ping(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("localstore: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("localstore: %s is not a directory", s.dir)
	}
	return nil
}

// readDimension returns the stored vector dimension, or 0 when unset.
func readDimension(meta *bbolt.Bucket) (int, error) {
	raw := meta.Get(keyDimension)
	if raw == nil {
		return 0, nil
	}
	dim, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("localstore: corrupt dimension %q: %w", raw, err)
	}
	return dim, nil
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
