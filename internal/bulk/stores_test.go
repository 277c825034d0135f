package bulk

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tawthiq/tawthiq/internal/tabular"
)

func redisClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, mr
}

func TestProgressStoreRoundTrip(t *testing.T) {
	client, _ := redisClient(t)
	store := NewProgressStore(client)
	ctx := context.Background()

	require.NoError(t, store.Publish(ctx, "job-1", 3, 30))

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, Progress{Current: 3, Total: 30}, got)

	require.NoError(t, store.Publish(ctx, "job-1", 30, 30))
	got, err = store.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, Progress{Current: 30, Total: 30}, got)
}

func TestProgressStoreMissingJobIsZero(t *testing.T) {
	client, _ := redisClient(t)
	store := NewProgressStore(client)

	got, err := store.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.Equal(t, Progress{}, got)
}

func TestProgressStoreClear(t *testing.T) {
	client, _ := redisClient(t)
	store := NewProgressStore(client)
	ctx := context.Background()

	require.NoError(t, store.Publish(ctx, "job-1", 1, 2))
	require.NoError(t, store.Clear(ctx, "job-1"))

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, Progress{}, got)
}

func TestTableStoreRoundTrip(t *testing.T) {
	client, _ := redisClient(t)
	store := NewTableStore(client)
	ctx := context.Background()

	table := tabular.Table{
		Headers:   []string{"اسم الطالب", "الدرجة"},
		Rows:      []tabular.Row{{"اسم الطالب": "أحمد", "الدرجة": "95"}},
		TotalRows: 1,
	}
	token, err := store.Put(ctx, table)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := store.Get(ctx, token)
	require.NoError(t, err)
	require.Equal(t, table, got)
}

func TestTableStoreUnknownToken(t *testing.T) {
	client, _ := redisClient(t)
	store := NewTableStore(client)

	_, err := store.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrTableExpired)
}

func TestTableStoreExpiry(t *testing.T) {
	client, mr := redisClient(t)
	store := NewTableStore(client)
	ctx := context.Background()

	token, err := store.Put(ctx, tabular.Table{Headers: []string{"a"}, TotalRows: 0})
	require.NoError(t, err)

	mr.FastForward(3 * time.Hour)

	_, err = store.Get(ctx, token)
	require.ErrorIs(t, err, ErrTableExpired)
}
