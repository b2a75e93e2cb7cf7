package vector

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Runs only against a real postgres with pgvector, e.g.
// PGVECTOR_TEST_DSN="host=localhost user=postgres password=postgres dbname=nebula_test sslmode=disable"
func openPGVector(t *testing.T) *PGVectorIndex {
	t.Helper()
	dsn := os.Getenv("PGVECTOR_TEST_DSN")
	if dsn == "" {
		t.Skip("PGVECTOR_TEST_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	idx, err := NewPGVectorIndex(context.Background(), db)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Exec("DELETE FROM memory_entries")
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return idx
}

func TestPGVectorIndex_QueryScopedAndOrdered(t *testing.T) {
	idx := openPGVector(t)
	ctx := context.Background()
	chat := uuid.New()
	near := entry(1, chat, "near", 1, 0.1, 0)
	far := entry(1, chat, "far", 0, 0, 1)
	other := entry(2, uuid.New(), "other user", 1, 0, 0)
	for _, e := range []Entry{near, far, other} {
		require.NoError(t, idx.Index(ctx, e))
	}

	got, err := idx.Query(ctx, []float32{1, 0, 0}, 5, Filter{UserID: 1})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, near.MessageID, got[0].MessageID)
	assert.Greater(t, got[0].Score, got[1].Score)

	got, err = idx.Query(ctx, []float32{1, 0, 0}, 5, Filter{UserID: 1, ExcludeMessageIDs: []uuid.UUID{near.MessageID}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, far.MessageID, got[0].MessageID)

	require.NoError(t, idx.DeleteByChat(ctx, 1, chat))
	got, err = idx.Query(ctx, []float32{1, 0, 0}, 5, Filter{UserID: 1})
	require.NoError(t, err)
	assert.Empty(t, got)
}
