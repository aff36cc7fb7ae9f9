package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// ErrNoSnapshot is returned by a Snapshotter that has nothing stored yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// errUnchanged aborts a mutation without touching the snapshot.
var errUnchanged = errors.New("unchanged")

// Snapshotter persists the serialized link document.
type Snapshotter interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

// LinkStore keeps links in memory, indexed by code and by owner, and writes
// the whole document through to a Snapshotter after every mutation.
type LinkStore struct {
	mu      sync.RWMutex
	links   map[shortener.Code]shortener.Link
	byOwner map[shortener.UserID]map[shortener.Code]struct{}

	// writeMu serializes snapshot writes. It is taken while mu is still
	// held so documents reach storage in mutation order.
	writeMu  sync.Mutex
	snapshot Snapshotter
	now      func() time.Time
	logger   *zap.Logger
}

// NewLinkStore creates an empty store. A nil snapshotter keeps data in memory only.
func NewLinkStore(snapshot Snapshotter, logger *zap.Logger) *LinkStore {
	return &LinkStore{
		links:    make(map[shortener.Code]shortener.Link),
		byOwner:  make(map[shortener.UserID]map[shortener.Code]struct{}),
		snapshot: snapshot,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock overrides the clock used for the document's savedAt stamp.
func (s *LinkStore) WithClock(now func() time.Time) *LinkStore {
	s.now = now

	return s
}

func (s *LinkStore) Save(ctx context.Context, link *shortener.Link) error {
	return s.mutate(ctx, func() error {
		s.put(*link)

		return nil
	})
}

func (s *LinkStore) Create(ctx context.Context, link *shortener.Link) error {
	return s.mutate(ctx, func() error {
		if _, ok := s.links[link.Code()]; ok {
			return fmt.Errorf("%w: %s", shortener.ErrCodeTaken, link.Code())
		}

		s.put(*link)

		return nil
	})
}

func (s *LinkStore) Update(
	ctx context.Context, code shortener.Code, fn func(*shortener.Link) error,
) (*shortener.Link, error) {
	var updated shortener.Link

	err := s.mutate(ctx, func() error {
		current, ok := s.links[code]
		if !ok {
			return shortener.ErrNotFound
		}

		if err := fn(&current); err != nil {
			return err
		}

		s.put(current)
		updated = current

		return nil
	})
	if err != nil && !errors.Is(err, shortener.ErrPersistence) {
		return nil, err
	}

	return &updated, err
}

func (s *LinkStore) FindByCode(_ context.Context, code shortener.Code) (*shortener.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[code]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	return &link, nil
}

func (s *LinkStore) FindByOwner(_ context.Context, owner shortener.UserID) ([]*shortener.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	codes := s.byOwner[owner]
	result := make([]*shortener.Link, 0, len(codes))

	for code := range codes {
		link := s.links[code]
		result = append(result, &link)
	}

	slices.SortFunc(result, func(a, b *shortener.Link) int {
		if c := b.CreatedAt().Compare(a.CreatedAt()); c != 0 {
			return c
		}

		return strings.Compare(string(a.Code()), string(b.Code()))
	})

	return result, nil
}

func (s *LinkStore) Delete(ctx context.Context, code shortener.Code) error {
	return s.mutate(ctx, func() error {
		s.remove(code)

		return nil
	})
}

// DeleteIf removes the link only when cond holds for its current state.
// It reports whether the link was removed; a removal whose snapshot write
// failed reports true along with the persistence error.
func (s *LinkStore) DeleteIf(
	ctx context.Context, code shortener.Code, cond func(*shortener.Link) bool,
) (bool, error) {
	err := s.mutate(ctx, func() error {
		current, ok := s.links[code]
		if !ok || !cond(&current) {
			return errUnchanged
		}

		s.remove(code)

		return nil
	})
	if errors.Is(err, errUnchanged) {
		return false, nil
	}

	if err != nil && !errors.Is(err, shortener.ErrPersistence) {
		return false, err
	}

	return true, err
}

func (s *LinkStore) ExistsByCode(_ context.Context, code shortener.Code) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.links[code]

	return ok, nil
}

func (s *LinkStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.links), nil
}

func (s *LinkStore) CountActive(_ context.Context, now time.Time) (int, error) {
	return s.countWhere(func(l *shortener.Link) bool { return l.CanBeAccessed(now) }), nil
}

func (s *LinkStore) CountExpired(_ context.Context, now time.Time) (int, error) {
	return s.countWhere(func(l *shortener.Link) bool { return l.IsExpired(now) }), nil
}

func (s *LinkStore) FindAll(_ context.Context) ([]*shortener.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*shortener.Link, 0, len(s.links))
	for _, link := range s.links {
		result = append(result, &link)
	}

	return result, nil
}

func (s *LinkStore) CodeOwners(_ context.Context) (map[shortener.Code]shortener.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owners := make(map[shortener.Code]shortener.UserID, len(s.links))
	for code, link := range s.links {
		owners[code] = link.Owner()
	}

	return owners, nil
}

// Flush rewrites the current document without changing any link.
func (s *LinkStore) Flush(ctx context.Context) error {
	return s.mutate(ctx, func() error { return nil })
}

// Load replaces the store contents with the persisted document. Malformed
// records are logged and skipped. If the document cannot be read at all the
// store is left empty and the error wraps ErrPersistence.
func (s *LinkStore) Load(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.links = make(map[shortener.Code]shortener.Link)
	s.byOwner = make(map[shortener.UserID]map[shortener.Code]struct{})

	if s.snapshot == nil {
		return 0, nil
	}

	data, err := s.snapshot.Read(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		s.logger.Info("no stored links, starting empty")

		return 0, nil
	}

	if err != nil {
		s.logger.Error("failed to read stored links", zap.Error(err))

		return 0, fmt.Errorf("%w: read: %w", shortener.ErrPersistence, err)
	}

	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Error("stored link document is corrupt", zap.Error(err))

		return 0, fmt.Errorf("%w: decode: %w", shortener.ErrPersistence, err)
	}

	for i, raw := range doc.URLs {
		link, err := fromRecord(raw)
		if err != nil {
			s.logger.Warn("skipping malformed link record", zap.Int("index", i), zap.Error(err))

			continue
		}

		if _, dup := s.links[link.Code()]; dup {
			s.logger.Warn("skipping duplicate link record",
				zap.Int("index", i),
				zap.String("code", string(link.Code())),
			)

			continue
		}

		s.put(*link)
	}

	s.logger.Info("loaded links",
		zap.Int("count", len(s.links)),
		zap.Int("skipped", len(doc.URLs)-len(s.links)),
		zap.String("version", doc.Metadata.Version),
	)

	return len(s.links), nil
}

// mutate applies fn under the write lock and then persists the resulting
// document. The memory change stays applied when persisting fails.
func (s *LinkStore) mutate(ctx context.Context, fn func() error) error {
	s.mu.Lock()

	if err := fn(); err != nil {
		s.mu.Unlock()

		return err
	}

	if s.snapshot == nil {
		s.mu.Unlock()

		return nil
	}

	doc := s.document()

	s.writeMu.Lock()
	s.mu.Unlock()
	defer s.writeMu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err == nil {
		err = s.snapshot.Write(ctx, data)
	}

	if err != nil {
		s.logger.Error("failed to persist links", zap.Int("count", len(doc.URLs)), zap.Error(err))

		return fmt.Errorf("%w: %w", shortener.ErrPersistence, err)
	}

	return nil
}

// document must be called with mu held.
func (s *LinkStore) document() document {
	records := make([]linkRecord, 0, len(s.links))
	for _, link := range s.links {
		records = append(records, toRecord(&link))
	}

	slices.SortFunc(records, func(a, b linkRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ShortCode, b.ShortCode)
	})

	return document{
		URLs: records,
		Metadata: metadata{
			TotalURLs: len(records),
			SavedAt:   s.now(),
			Version:   DocumentVersion,
		},
	}
}

// put and remove must be called with mu held.
func (s *LinkStore) put(link shortener.Link) {
	if previous, ok := s.links[link.Code()]; ok && previous.Owner() != link.Owner() {
		s.detach(previous.Owner(), link.Code())
	}

	s.links[link.Code()] = link

	codes, ok := s.byOwner[link.Owner()]
	if !ok {
		codes = make(map[shortener.Code]struct{})
		s.byOwner[link.Owner()] = codes
	}

	codes[link.Code()] = struct{}{}
}

func (s *LinkStore) remove(code shortener.Code) {
	link, ok := s.links[code]
	if !ok {
		return
	}

	delete(s.links, code)
	s.detach(link.Owner(), code)
}

func (s *LinkStore) detach(owner shortener.UserID, code shortener.Code) {
	codes := s.byOwner[owner]
	delete(codes, code)

	if len(codes) == 0 {
		delete(s.byOwner, owner)
	}
}

func (s *LinkStore) countWhere(pred func(*shortener.Link) bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0

	for _, link := range s.links {
		if pred(&link) {
			n++
		}
	}

	return n
}

// Compile-time check.
var _ shortener.Repository = (*LinkStore)(nil)
