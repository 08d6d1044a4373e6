package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	docanalysis "github.com/MegaGrindStone/go-doc-analysis"
)

const redisChunkPrefix = "chunk:"

// Redis provides a VectorStore implementation on Redis. Records are stored as
// JSON values under a key prefix and searched with a SCAN plus client-side
// cosine ranking.
type Redis struct {
	Client *redis.Client
}

// NewRedis creates a new Redis client connection with the provided configuration.
// It returns an initialized Redis struct and any error encountered during connection setup.
func NewRedis(addr, password string, db int) (Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return Redis{}, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return Redis{
		Client: client,
	}, nil
}

// Insert creates or updates the chunk records, keyed by chunk hash.
func (r Redis) Insert(ctx context.Context, records []docanalysis.ChunkRecord) error {
	pipe := r.Client.Pipeline()

	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		pipe.Set(ctx, redisChunkPrefix+rec.ChunkHash, data, 0)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute pipeline: %w", err)
	}

	return nil
}

// VectorSearch scans every stored record and returns up to limit of them
// ordered by ascending cosine distance from the query vector.
func (r Redis) VectorSearch(ctx context.Context, vector []float32, limit int) ([]docanalysis.SearchResult, error) {
	results := []docanalysis.SearchResult{}

	err := r.scanKeys(ctx, func(key string) error {
		data, err := r.Client.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return fmt.Errorf("failed to get record: %w", err)
		}

		var rec docanalysis.ChunkRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return fmt.Errorf("failed to unmarshal record: %w", err)
		}

		results = append(results, docanalysis.SearchResult{
			Record:   rec,
			Distance: cosineDistance(vector, rec.Vector),
		})
		return nil
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

// Reset deletes every stored record.
func (r Redis) Reset(ctx context.Context) error {
	pipe := r.Client.Pipeline()

	err := r.scanKeys(ctx, func(key string) error {
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return err
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute pipeline: %w", err)
	}

	return nil
}

// Count returns the number of stored records.
func (r Redis) Count(ctx context.Context) (int, error) {
	count := 0
	err := r.scanKeys(ctx, func(string) error {
		count++
		return nil
	})
	return count, err
}

func (r Redis) scanKeys(ctx context.Context, fn func(key string) error) error {
	var cursor uint64
	for {
		keys, next, err := r.Client.Scan(ctx, cursor, redisChunkPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan keys: %w", err)
		}

		for _, key := range keys {
			if err := fn(key); err != nil {
				return err
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
