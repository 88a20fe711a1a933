package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLStore_RoundTripAndClear(t *testing.T) {
	ctx := context.Background()
	p := filepath.Join(t.TempDir(), "memory.db")
	s, err := OpenSQLStore(p)
	require.NoError(t, err)

	require.NoError(t, s.Append(ctx, 10, User("Алиса", "вопрос"), Assistant("ответ")))
	require.NoError(t, s.Append(ctx, 11, User("", "другой чат")))
	require.NoError(t, s.Close())

	s, err = OpenSQLStore(p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	got, err := s.Get(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []Message{User("Алиса", "вопрос"), Assistant("ответ")}, got)

	require.NoError(t, s.Delete(ctx, 11))
	other, _ := s.Get(ctx, 11)
	assert.Empty(t, other)

	require.NoError(t, s.Clear(ctx))
	got, _ = s.Get(ctx, 10)
	assert.Empty(t, got)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "cassandra"})
	require.Error(t, err)
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), Options{Driver: DriverMemory})
	require.NoError(t, err)
	_, ok := s.(*MemoryStore)
	assert.True(t, ok)
}
