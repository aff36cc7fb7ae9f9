package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/serroba/shortlink/internal/shortener"
	"github.com/serroba/shortlink/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type mockSnapshot struct {
	mu       sync.Mutex
	data     []byte
	writes   int
	readErr  error
	writeErr error
}

func (m *mockSnapshot) Read(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readErr != nil {
		return nil, m.readErr
	}

	if m.data == nil {
		return nil, store.ErrNoSnapshot
	}

	return m.data, nil
}

func (m *mockSnapshot) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		return m.writeErr
	}

	m.writes++
	m.data = append([]byte(nil), data...)

	return nil
}

func newLink(t *testing.T, code string, owner shortener.UserID, createdAt time.Time) *shortener.Link {
	t.Helper()

	link, err := shortener.NewLink(
		shortener.URL("https://example.com/"+code),
		shortener.Code(code),
		owner,
		createdAt.Add(24*time.Hour),
		10,
		createdAt,
	)
	require.NoError(t, err)

	return link
}

func newStore(snapshot store.Snapshotter) *store.LinkStore {
	return store.NewLinkStore(snapshot, zap.NewNop()).WithClock(func() time.Time { return now })
}

func TestLinkStore_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("saves and persists", func(t *testing.T) {
		snap := &mockSnapshot{}
		s := newStore(snap)
		link := newLink(t, "abc123", shortener.NewUserID(), now)

		err := s.Save(ctx, link)

		require.NoError(t, err)
		assert.Equal(t, 1, snap.writes)

		got, err := s.FindByCode(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, link.State(), got.State())
	})

	t.Run("upserts by code", func(t *testing.T) {
		s := newStore(nil)
		owner := shortener.NewUserID()
		link := newLink(t, "abc123", owner, now)
		require.NoError(t, s.Save(ctx, link))

		require.NoError(t, link.IncrementClicks(now))
		require.NoError(t, s.Save(ctx, link))

		got, err := s.FindByCode(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, 1, got.Clicks())

		count, _ := s.Count(ctx)
		assert.Equal(t, 1, count)
	})

	t.Run("returned links are copies", func(t *testing.T) {
		s := newStore(nil)
		require.NoError(t, s.Save(ctx, newLink(t, "abc123", shortener.NewUserID(), now)))

		got, _ := s.FindByCode(ctx, "abc123")
		require.NoError(t, got.IncrementClicks(now))

		again, _ := s.FindByCode(ctx, "abc123")
		assert.Equal(t, 0, again.Clicks())
	})

	t.Run("keeps the change when persisting fails", func(t *testing.T) {
		snap := &mockSnapshot{writeErr: errors.New("disk full")}
		s := newStore(snap)

		err := s.Save(ctx, newLink(t, "abc123", shortener.NewUserID(), now))

		require.ErrorIs(t, err, shortener.ErrPersistence)

		exists, _ := s.ExistsByCode(ctx, "abc123")
		assert.True(t, exists)
	})
}

func TestLinkStore_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects a taken code even for another owner", func(t *testing.T) {
		s := newStore(nil)
		first := newLink(t, "abc123", shortener.NewUserID(), now)
		require.NoError(t, s.Create(ctx, first))

		err := s.Create(ctx, newLink(t, "abc123", shortener.NewUserID(), now))

		require.ErrorIs(t, err, shortener.ErrCodeTaken)

		got, _ := s.FindByCode(ctx, "abc123")
		assert.Equal(t, first.Owner(), got.Owner())
	})
}

func TestLinkStore_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("applies the change atomically and persists", func(t *testing.T) {
		snap := &mockSnapshot{}
		s := newStore(snap)
		require.NoError(t, s.Save(ctx, newLink(t, "abc123", shortener.NewUserID(), now)))

		updated, err := s.Update(ctx, "abc123", func(l *shortener.Link) error {
			return l.IncrementClicks(now)
		})

		require.NoError(t, err)
		assert.Equal(t, 1, updated.Clicks())
		assert.Equal(t, 2, snap.writes)
	})

	t.Run("leaves the link untouched when fn fails", func(t *testing.T) {
		snap := &mockSnapshot{}
		s := newStore(snap)
		require.NoError(t, s.Save(ctx, newLink(t, "abc123", shortener.NewUserID(), now)))

		_, err := s.Update(ctx, "abc123", func(l *shortener.Link) error {
			_ = l.IncrementClicks(now)

			return errors.New("abort")
		})

		require.EqualError(t, err, "abort")

		got, _ := s.FindByCode(ctx, "abc123")
		assert.Equal(t, 0, got.Clicks())
		assert.Equal(t, 1, snap.writes)
	})

	t.Run("returns ErrNotFound for unknown codes", func(t *testing.T) {
		s := newStore(nil)

		_, err := s.Update(ctx, "nope99", func(*shortener.Link) error { return nil })

		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		s := newStore(&mockSnapshot{})
		link, err := shortener.NewLink("https://example.com", "abc123", shortener.NewUserID(), now.Add(time.Hour), 1000, now)
		require.NoError(t, err)
		require.NoError(t, s.Save(ctx, link))

		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				_, _ = s.Update(ctx, "abc123", func(l *shortener.Link) error { return l.IncrementClicks(now) })
			}()
		}

		wg.Wait()

		got, _ := s.FindByCode(ctx, "abc123")
		assert.Equal(t, 50, got.Clicks())
	})
}

func TestLinkStore_FindByOwner(t *testing.T) {
	ctx := context.Background()

	t.Run("returns newest first", func(t *testing.T) {
		s := newStore(nil)
		owner := shortener.NewUserID()
		require.NoError(t, s.Save(ctx, newLink(t, "old111", owner, now.Add(-2*time.Hour))))
		require.NoError(t, s.Save(ctx, newLink(t, "new333", owner, now)))
		require.NoError(t, s.Save(ctx, newLink(t, "mid222", owner, now.Add(-time.Hour))))
		require.NoError(t, s.Save(ctx, newLink(t, "other1", shortener.NewUserID(), now)))

		links, err := s.FindByOwner(ctx, owner)

		require.NoError(t, err)
		require.Len(t, links, 3)
		assert.Equal(t, shortener.Code("new333"), links[0].Code())
		assert.Equal(t, shortener.Code("mid222"), links[1].Code())
		assert.Equal(t, shortener.Code("old111"), links[2].Code())
	})

	t.Run("returns empty for an unknown owner", func(t *testing.T) {
		s := newStore(nil)

		links, err := s.FindByOwner(ctx, shortener.NewUserID())

		require.NoError(t, err)
		assert.Empty(t, links)
	})
}

func TestLinkStore_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes from both indices and persists", func(t *testing.T) {
		snap := &mockSnapshot{}
		s := newStore(snap)
		owner := shortener.NewUserID()
		require.NoError(t, s.Save(ctx, newLink(t, "abc123", owner, now)))

		require.NoError(t, s.Delete(ctx, "abc123"))

		_, err := s.FindByCode(ctx, "abc123")
		assert.ErrorIs(t, err, shortener.ErrNotFound)

		links, _ := s.FindByOwner(ctx, owner)
		assert.Empty(t, links)
		assert.Equal(t, 2, snap.writes)
	})

	t.Run("is a no-op for unknown codes", func(t *testing.T) {
		s := newStore(nil)

		assert.NoError(t, s.Delete(ctx, "nope99"))
	})
}

func TestLinkStore_DeleteIf(t *testing.T) {
	ctx := context.Background()
	expired := func(l *shortener.Link) bool { return l.IsExpired(now.Add(48 * time.Hour)) }

	t.Run("removes when the condition holds on current state", func(t *testing.T) {
		snap := &mockSnapshot{}
		s := newStore(snap)
		owner := shortener.NewUserID()
		require.NoError(t, s.Save(ctx, newLink(t, "abc123", owner, now)))

		removed, err := s.DeleteIf(ctx, "abc123", expired)
		require.NoError(t, err)
		assert.True(t, removed)

		links, _ := s.FindByOwner(ctx, owner)
		assert.Empty(t, links)
		assert.Equal(t, 2, snap.writes)
	})

	t.Run("keeps a link changed after it was read", func(t *testing.T) {
		snap := &mockSnapshot{}
		s := newStore(snap)
		require.NoError(t, s.Save(ctx, newLink(t, "abc123", shortener.NewUserID(), now)))

		_, err := s.Update(ctx, "abc123", func(l *shortener.Link) error {
			l.UpdateExpiration(now.Add(72*time.Hour), now.Add(72*time.Hour), now)

			return nil
		})
		require.NoError(t, err)

		removed, err := s.DeleteIf(ctx, "abc123", expired)
		require.NoError(t, err)
		assert.False(t, removed)

		exists, _ := s.ExistsByCode(ctx, "abc123")
		assert.True(t, exists)
		assert.Equal(t, 2, snap.writes, "an unchanged store is not rewritten")
	})

	t.Run("reports unknown codes as not removed", func(t *testing.T) {
		s := newStore(nil)

		removed, err := s.DeleteIf(ctx, "nope99", expired)
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("reports removal when persisting fails", func(t *testing.T) {
		snap := &mockSnapshot{}
		s := newStore(snap)
		require.NoError(t, s.Save(ctx, newLink(t, "abc123", shortener.NewUserID(), now)))

		snap.writeErr = errors.New("disk full")

		removed, err := s.DeleteIf(ctx, "abc123", expired)
		require.ErrorIs(t, err, shortener.ErrPersistence)
		assert.True(t, removed)
	})
}

func TestLinkStore_Counts(t *testing.T) {
	ctx := context.Background()
	s := newStore(nil)
	owner := shortener.NewUserID()

	require.NoError(t, s.Save(ctx, newLink(t, "live01", owner, now)))

	expired, err := shortener.RestoreLink(shortener.LinkState{
		URL: "https://example.com/e", Code: "dead01", Owner: owner,
		CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-time.Second),
		MaxClicks: 5, Active: true,
	})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, expired))

	exhausted, err := shortener.RestoreLink(shortener.LinkState{
		URL: "https://example.com/x", Code: "used01", Owner: owner,
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
		MaxClicks: 2, Clicks: 2,
	})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, exhausted))

	total, _ := s.Count(ctx)
	active, _ := s.CountActive(ctx, now)
	expiredCount, _ := s.CountExpired(ctx, now)
	all, _ := s.FindAll(ctx)
	owners, _ := s.CodeOwners(ctx)

	assert.Equal(t, 3, total)
	assert.Equal(t, 1, active)
	assert.Equal(t, 1, expiredCount)
	assert.Len(t, all, 3)
	assert.Len(t, owners, 3)
	assert.Equal(t, owner, owners["used01"])
}

func TestLinkStore_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trips every field", func(t *testing.T) {
		snap := &mockSnapshot{}
		s := newStore(snap)

		var saved []*shortener.Link

		for i := range 5 {
			link := newLink(t, fmt.Sprintf("code%02d", i), shortener.NewUserID(), now.Add(time.Duration(i)*time.Minute))
			for range i {
				require.NoError(t, link.IncrementClicks(now))
			}

			require.NoError(t, s.Save(ctx, link))
			saved = append(saved, link)
		}

		reloaded := newStore(snap)
		n, err := reloaded.Load(ctx)

		require.NoError(t, err)
		assert.Equal(t, 5, n)

		for _, want := range saved {
			got, err := reloaded.FindByCode(ctx, want.Code())
			require.NoError(t, err)

			ws, gs := want.State(), got.State()
			assert.Equal(t, ws.URL, gs.URL)
			assert.Equal(t, ws.Owner, gs.Owner)
			assert.Equal(t, ws.MaxClicks, gs.MaxClicks)
			assert.Equal(t, ws.Clicks, gs.Clicks)
			assert.Equal(t, ws.Active, gs.Active)
			assert.True(t, ws.CreatedAt.Equal(gs.CreatedAt))
			assert.True(t, ws.ExpiresAt.Equal(gs.ExpiresAt))
		}

		owned, _ := reloaded.FindByOwner(ctx, saved[2].Owner())
		assert.Len(t, owned, 1)
	})

	t.Run("writes the metadata block", func(t *testing.T) {
		snap := &mockSnapshot{}
		s := newStore(snap)
		require.NoError(t, s.Save(ctx, newLink(t, "abc123", shortener.NewUserID(), now)))

		var doc struct {
			URLs     []map[string]any `json:"urls"`
			Metadata struct {
				TotalURLs int       `json:"totalUrls"`
				SavedAt   time.Time `json:"savedAt"`
				Version   string    `json:"version"`
			} `json:"metadata"`
		}
		require.NoError(t, json.Unmarshal(snap.data, &doc))

		assert.Equal(t, 1, doc.Metadata.TotalURLs)
		assert.Equal(t, store.DocumentVersion, doc.Metadata.Version)
		assert.True(t, now.Equal(doc.Metadata.SavedAt))
		assert.Equal(t, "abc123", doc.URLs[0]["shortCode"])
		assert.Contains(t, doc.URLs[0], "currentClicks")
	})

	t.Run("skips malformed records", func(t *testing.T) {
		owner := shortener.NewUserID()
		snap := &mockSnapshot{data: []byte(fmt.Sprintf(`{
			"urls": [
				{"originalUrl": "https://example.com", "shortCode": "good01", "userId": %q,
				 "createdAt": "2026-03-01T10:00:00Z", "expiresAt": "2026-03-02T10:00:00Z",
				 "maxClicks": 5, "currentClicks": 1, "active": true},
				{"originalUrl": "https://example.com", "shortCode": "b!", "userId": %q,
				 "createdAt": "2026-03-01T10:00:00Z", "expiresAt": "2026-03-02T10:00:00Z",
				 "maxClicks": 5, "currentClicks": 0, "active": true},
				{"originalUrl": "https://example.com", "shortCode": "bad02", "userId": "nobody",
				 "createdAt": "2026-03-01T10:00:00Z", "expiresAt": "2026-03-02T10:00:00Z",
				 "maxClicks": 5, "currentClicks": 0, "active": true},
				"not an object"
			],
			"metadata": {"totalUrls": 4, "savedAt": "2026-03-01T10:00:00Z", "version": "2.0"}
		}`, owner, owner))}
		s := newStore(snap)

		n, err := s.Load(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := s.FindByCode(ctx, "good01")
		require.NoError(t, err)
		assert.Equal(t, 1, got.Clicks())
	})

	t.Run("starts empty when nothing is stored", func(t *testing.T) {
		s := newStore(&mockSnapshot{})

		n, err := s.Load(ctx)

		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("starts empty on read failure", func(t *testing.T) {
		s := newStore(&mockSnapshot{readErr: errors.New("permission denied")})

		n, err := s.Load(ctx)

		require.ErrorIs(t, err, shortener.ErrPersistence)
		assert.Zero(t, n)

		count, _ := s.Count(ctx)
		assert.Zero(t, count)
	})

	t.Run("starts empty on a corrupt document", func(t *testing.T) {
		s := newStore(&mockSnapshot{data: []byte("{not json")})

		_, err := s.Load(ctx)

		assert.ErrorIs(t, err, shortener.ErrPersistence)
	})
}

func TestLinkStore_Flush(t *testing.T) {
	snap := &mockSnapshot{}
	s := newStore(snap)

	require.NoError(t, s.Flush(context.Background()))

	assert.Equal(t, 1, snap.writes)
	assert.Contains(t, string(snap.data), `"totalUrls": 0`)
}
