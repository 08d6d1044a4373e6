package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"

	docanalysis "github.com/MegaGrindStone/go-doc-analysis"
)

const boltChunksBucket = "chunks"

// Bolt provides a file-backed VectorStore implementation on BoltDB. Records
// are stored as JSON keyed by chunk hash and searched with a brute-force
// cosine scan, which is plenty for single-document indexes.
type Bolt struct {
	DB *bolt.DB
}

// NewBolt creates a new BoltDB store at the provided file path.
// It ensures the chunks bucket exists.
func NewBolt(path string) (Bolt, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return Bolt{}, fmt.Errorf("failed to open bolt database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltChunksBucket))
		return err
	}); err != nil {
		return Bolt{}, fmt.Errorf("failed to create chunks bucket: %w", err)
	}

	return Bolt{DB: db}, nil
}

// Insert creates or updates the chunk records, keyed by chunk hash.
func (b Bolt) Insert(_ context.Context, records []docanalysis.ChunkRecord) error {
	return b.DB.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(boltChunksBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found")
		}

		for _, rec := range records {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to marshal record: %w", err)
			}
			if err := bucket.Put([]byte(rec.ChunkHash), data); err != nil {
				return fmt.Errorf("failed to put record: %w", err)
			}
		}

		return nil
	})
}

// VectorSearch scans every stored record and returns up to limit of them
// ordered by ascending cosine distance from the query vector.
func (b Bolt) VectorSearch(_ context.Context, vector []float32, limit int) ([]docanalysis.SearchResult, error) {
	results := []docanalysis.SearchResult{}

	err := b.DB.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(boltChunksBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found")
		}

		return bucket.ForEach(func(_, v []byte) error {
			var rec docanalysis.ChunkRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal record: %w", err)
			}
			results = append(results, docanalysis.SearchResult{
				Record:   rec,
				Distance: cosineDistance(vector, rec.Vector),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Reset drops the chunks bucket and recreates it empty.
func (b Bolt) Reset(_ context.Context) error {
	return b.DB.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(boltChunksBucket)); err != nil {
			return fmt.Errorf("failed to delete chunks bucket: %w", err)
		}
		if _, err := tx.CreateBucket([]byte(boltChunksBucket)); err != nil {
			return fmt.Errorf("failed to recreate chunks bucket: %w", err)
		}
		return nil
	})
}

// Count returns the number of stored records.
func (b Bolt) Count(_ context.Context) (int, error) {
	count := 0
	err := b.DB.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(boltChunksBucket))
		if bucket == nil {
			return fmt.Errorf("bucket not found")
		}
		count = bucket.Stats().KeyN
		return nil
	})
	return count, err
}
