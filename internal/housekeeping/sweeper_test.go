package housekeeping_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/serroba/shortlink/internal/analytics"
	"github.com/serroba/shortlink/internal/housekeeping"
	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/store"
	"github.com/serroba/shortlink/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type countingSnapshot struct {
	mu     sync.Mutex
	writes int
	fail   bool
}

func (c *countingSnapshot) Read(context.Context) ([]byte, error) {
	return nil, store.ErrNoSnapshot
}

func (c *countingSnapshot) Write(context.Context, []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fail {
		return errors.New("read-only filesystem")
	}

	c.writes++

	return nil
}

func (c *countingSnapshot) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.writes
}

func seed(t *testing.T, links *store.LinkStore, directory *users.Directory, code string, ttl time.Duration) shortener.UserID {
	t.Helper()

	owner := shortener.NewUserID()

	link, err := shortener.NewLink("https://example.com", shortener.Code(code), owner, now.Add(ttl), 5, now)
	require.NoError(t, err)
	require.NoError(t, links.Save(context.Background(), link))
	directory.AttachCode(owner, link.Code())

	return owner
}

// extendingStore lists the links and then lets the owner push one expiry
// forward, as a concurrent edit would between listing and eviction.
type extendingStore struct {
	*store.LinkStore
	code      shortener.Code
	expiresAt time.Time
}

func (e *extendingStore) FindAll(ctx context.Context) ([]*shortener.Link, error) {
	links, err := e.LinkStore.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	_, err = e.Update(ctx, e.code, func(l *shortener.Link) error {
		if !l.UpdateExpiration(e.expiresAt, e.expiresAt, now) {
			return errors.New("expiration rejected")
		}

		return nil
	})

	return links, err
}

func TestSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	later := func() time.Time { return now.Add(2 * time.Hour) }

	t.Run("counts without evicting", func(t *testing.T) {
		snapshot := &countingSnapshot{}
		links := store.NewLinkStore(snapshot, zap.NewNop())
		directory := users.NewDirectory()

		seed(t, links, directory, "old1", time.Hour)
		seed(t, links, directory, "new1", 24*time.Hour)

		writes := snapshot.count()
		sweeper := housekeeping.NewSweeper(links, directory, analytics.Publishers{}, time.Hour, false, zap.NewNop()).
			WithClock(later)

		result, err := sweeper.Sweep(ctx)
		require.NoError(t, err)

		assert.Equal(t, housekeeping.Result{Expired: 1}, result)

		count, err := links.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		assert.Equal(t, writes+1, snapshot.count())
	})

	t.Run("evicts expired links", func(t *testing.T) {
		links := store.NewLinkStore(&countingSnapshot{}, zap.NewNop())
		directory := users.NewDirectory()

		owner := seed(t, links, directory, "old1", time.Hour)
		seed(t, links, directory, "new1", 24*time.Hour)

		var deleted []*analytics.LinkDeletedEvent

		events := analytics.Publishers{Deleted: func(e *analytics.LinkDeletedEvent) error {
			deleted = append(deleted, e)

			return nil
		}}

		sweeper := housekeeping.NewSweeper(links, directory, events, time.Hour, true, zap.NewNop()).
			WithClock(later)

		result, err := sweeper.Sweep(ctx)
		require.NoError(t, err)

		assert.Equal(t, housekeeping.Result{Expired: 1, Evicted: 1}, result)

		exists, err := links.ExistsByCode(ctx, "old1")
		require.NoError(t, err)
		assert.False(t, exists)

		u, err := directory.FindByID(owner)
		require.NoError(t, err)
		assert.Zero(t, u.LinkCount())

		require.Len(t, deleted, 1)
		assert.Equal(t, "old1", deleted[0].Code)
		assert.Equal(t, analytics.DeleteReasonExpired, deleted[0].Reason)
	})

	t.Run("keeps a link extended after the listing", func(t *testing.T) {
		links := store.NewLinkStore(&countingSnapshot{}, zap.NewNop())
		directory := users.NewDirectory()

		owner := seed(t, links, directory, "old1", time.Hour)
		extending := &extendingStore{LinkStore: links, code: "old1", expiresAt: now.Add(48 * time.Hour)}

		var deleted int

		events := analytics.Publishers{Deleted: func(*analytics.LinkDeletedEvent) error {
			deleted++

			return nil
		}}

		sweeper := housekeeping.NewSweeper(extending, directory, events, time.Hour, true, zap.NewNop()).
			WithClock(later)

		result, err := sweeper.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, housekeeping.Result{Expired: 1}, result)

		link, err := links.FindByCode(ctx, "old1")
		require.NoError(t, err)
		assert.Equal(t, now.Add(48*time.Hour), link.ExpiresAt())

		u, err := directory.FindByID(owner)
		require.NoError(t, err)
		assert.Equal(t, 1, u.LinkCount())
		assert.Zero(t, deleted)
	})

	t.Run("persistence failure does not fail the sweep", func(t *testing.T) {
		snapshot := &countingSnapshot{}
		links := store.NewLinkStore(snapshot, zap.NewNop())
		directory := users.NewDirectory()

		seed(t, links, directory, "old1", time.Hour)

		snapshot.fail = true

		sweeper := housekeeping.NewSweeper(links, directory, analytics.Publishers{}, time.Hour, true, zap.NewNop()).
			WithClock(later)

		result, err := sweeper.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Evicted)

		count, err := links.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestSweeper_StartShutdown(t *testing.T) {
	snapshot := &countingSnapshot{}
	links := store.NewLinkStore(snapshot, zap.NewNop())

	sweeper := housekeeping.NewSweeper(links, users.NewDirectory(), analytics.Publishers{},
		10*time.Millisecond, false, zap.NewNop())

	require.NoError(t, sweeper.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return snapshot.count() >= 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, sweeper.Shutdown())
}

func TestSweeper_ShutdownWithoutStart(t *testing.T) {
	sweeper := housekeeping.NewSweeper(nil, nil, analytics.Publishers{}, time.Hour, false, zap.NewNop())

	assert.NoError(t, sweeper.Shutdown())
}
