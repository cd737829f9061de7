package index

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siftlog/sift/internal/errors"
	"github.com/siftlog/sift/internal/router"
	"github.com/siftlog/sift/internal/store"
	"github.com/siftlog/sift/pkg/types"
)

func openTestIndex(t *testing.T) (*Index, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "sift.db"), store.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ix, err := Open(context.Background(), db, nil)
	require.NoError(t, err)
	return ix, db
}

func rec(project, name string, ts int64) types.Record {
	return types.Record{
		ProjectID:  project,
		Name:       name,
		Timestamp:  ts,
		Attributes: map[string]string{"source": "test"},
	}
}

func TestIngest_UpdatesSummary(t *testing.T) {
	ix, _ := openTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.Ingest(ctx, rec("p1", "login", 100)))
	require.NoError(t, ix.Ingest(ctx, rec("p1", "login", 300)))
	require.NoError(t, ix.Ingest(ctx, rec("p1", "login", 200)))

	sum, ok := ix.Summary("p1", "login")
	require.True(t, ok)
	assert.Equal(t, int64(3), sum.Count)
	assert.Equal(t, int64(300), sum.LastSeen)
}

func TestIngest_Validation(t *testing.T) {
	ix, _ := openTestIndex(t)
	ctx := context.Background()

	cases := []types.Record{
		{ProjectID: "", Name: "login", Timestamp: 1},
		{ProjectID: "p1", Name: "", Timestamp: 1},
		{ProjectID: "p1", Name: "login", Timestamp: 0},
		{ProjectID: "p1", Name: "login", Timestamp: -5},
	}
	for _, r := range cases {
		err := ix.Ingest(ctx, r)
		require.Error(t, err)
		assert.Equal(t, errors.CodeInvalidRequest, errors.GetCode(err))
	}

	// Nothing reached the log.
	assert.Empty(t, ix.Summaries(ctx, "p1"))
}

func TestSummaries_EmptyProject(t *testing.T) {
	ix, _ := openTestIndex(t)
	assert.Empty(t, ix.Summaries(context.Background(), "p-missing"))
}

func TestSummaries_SortedByLastSeenDesc(t *testing.T) {
	ix, _ := openTestIndex(t)
	ctx := context.Background()

	// login: count=3, last_seen=T3; click: count=10, last_seen=T9.
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, ix.Ingest(ctx, rec("p1", "login", i)))
	}
	for i := int64(1); i <= 10; i++ {
		require.NoError(t, ix.Ingest(ctx, rec("p1", "click", i)))
	}
	require.NoError(t, ix.Ingest(ctx, rec("p1", "click", 9)))

	sums := ix.Summaries(ctx, "p1")
	require.Len(t, sums, 2)
	assert.Equal(t, "click", sums[0].Name)
	assert.Equal(t, "login", sums[1].Name)
}

func TestRecovery_RebuildsSummaries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sift.db")

	db, err := store.Open(path, store.DefaultOptions())
	require.NoError(t, err)
	ctx := context.Background()

	ix, err := Open(ctx, db, nil)
	require.NoError(t, err)
	require.NoError(t, ix.Ingest(ctx, rec("p1", "login", 100)))
	require.NoError(t, ix.Ingest(ctx, rec("p1", "login", 250)))
	require.NoError(t, ix.Ingest(ctx, rec("p2", "click", 75)))
	require.NoError(t, db.Close())

	// Reopen: summaries must be rebuilt from the log.
	db2, err := store.Open(path, store.DefaultOptions())
	require.NoError(t, err)
	defer db2.Close()

	ix2, err := Open(ctx, db2, nil)
	require.NoError(t, err)

	sum, ok := ix2.Summary("p1", "login")
	require.True(t, ok)
	assert.Equal(t, int64(2), sum.Count)
	assert.Equal(t, int64(250), sum.LastSeen)

	sum, ok = ix2.Summary("p2", "click")
	require.True(t, ok)
	assert.Equal(t, int64(1), sum.Count)
	assert.Equal(t, int64(75), sum.LastSeen)
}

func TestIngest_PublishesNotification(t *testing.T) {
	ix, _ := openTestIndex(t)
	ctx := context.Background()

	n := router.NewNotifier(4)
	ix.SetNotifier(n)
	ch := n.SubscribeAutoID()

	require.NoError(t, ix.Ingest(ctx, rec("p1", "login", 100)))

	select {
	case notif := <-ch:
		assert.Equal(t, router.EventAppended, notif.Type)
		assert.Equal(t, "p1", notif.ProjectID)
		assert.Equal(t, "login", notif.EventName)
		assert.Equal(t, int64(100), notif.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("ingest notification not delivered")
	}
}

func TestIngest_ConcurrentSameName(t *testing.T) {
	ix, _ := openTestIndex(t)
	ctx := context.Background()

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				errs <- ix.Ingest(ctx, rec("p1", "click", int64(w*perWorker+i+1)))
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	sum, ok := ix.Summary("p1", "click")
	require.True(t, ok)
	assert.Equal(t, int64(workers*perWorker), sum.Count)
	assert.Equal(t, int64(workers*perWorker), sum.LastSeen)
}
