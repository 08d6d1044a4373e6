package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docanalysis "github.com/MegaGrindStone/go-doc-analysis"
)

var (
	recordAlpha = docanalysis.ChunkRecord{
		Text:         "Alpha content about vectors.",
		ChunkHash:    "hash-alpha",
		ChunkIndex:   0,
		Start:        0,
		End:          28,
		SectionTitle: "Alpha",
		Vector:       []float32{1, 0},
	}
	recordBeta = docanalysis.ChunkRecord{
		Text:       "Beta content about storage.",
		ChunkHash:  "hash-beta",
		ChunkIndex: 1,
		Start:      30,
		End:        57,
		Vector:     []float32{0, 1},
	}
	recordGamma = docanalysis.ChunkRecord{
		Text:       "Gamma content in between.",
		ChunkHash:  "hash-gamma",
		ChunkIndex: 2,
		Start:      59,
		End:        84,
		Vector:     []float32{0.9, 0.1},
	}
)

func setupBoltTestDB(t *testing.T) Bolt {
	t.Helper()

	store, err := NewBolt(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.DB.Close())
	})

	return store
}

func TestBolt_InsertAndCount(t *testing.T) {
	store := setupBoltTestDB(t)
	ctx := context.Background()

	err := store.Insert(ctx, []docanalysis.ChunkRecord{recordAlpha, recordBeta, recordGamma})
	require.NoError(t, err)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Re-inserting the same hash is an upsert, not a duplicate.
	err = store.Insert(ctx, []docanalysis.ChunkRecord{recordAlpha})
	require.NoError(t, err)

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestBolt_VectorSearch(t *testing.T) {
	store := setupBoltTestDB(t)
	ctx := context.Background()

	err := store.Insert(ctx, []docanalysis.ChunkRecord{recordAlpha, recordBeta, recordGamma})
	require.NoError(t, err)

	results, err := store.VectorSearch(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "hash-alpha", results[0].Record.ChunkHash)
	assert.Equal(t, "hash-gamma", results[1].Record.ChunkHash)
	assert.Less(t, results[0].Distance, results[1].Distance)

	// Record fields survive the JSON round trip.
	assert.Equal(t, recordAlpha.Text, results[0].Record.Text)
	assert.Equal(t, recordAlpha.SectionTitle, results[0].Record.SectionTitle)
	assert.Equal(t, recordAlpha.End, results[0].Record.End)
}

func TestBolt_VectorSearchEmpty(t *testing.T) {
	store := setupBoltTestDB(t)

	results, err := store.VectorSearch(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBolt_Reset(t *testing.T) {
	store := setupBoltTestDB(t)
	ctx := context.Background()

	err := store.Insert(ctx, []docanalysis.ChunkRecord{recordAlpha, recordBeta})
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// The store stays usable after a reset.
	err = store.Insert(ctx, []docanalysis.ChunkRecord{recordGamma})
	require.NoError(t, err)

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
