package users

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/serroba/shortlink/internal/shortener"
)

var (
	ErrNotFound  = errors.New("user not found")
	ErrAmbiguous = errors.New("short id matches more than one user")
)

// User owns links. Its code set mirrors the link store's owner index.
type User struct {
	ID        shortener.UserID
	CreatedAt time.Time
	codes     map[shortener.Code]struct{}
}

func (u User) ShortID() string {
	return u.ID.ShortID()
}

// LinkCount is the number of codes currently owned.
func (u User) LinkCount() int {
	return len(u.codes)
}

// Owns reports whether code is attached to the user.
func (u User) Owns(code shortener.Code) bool {
	_, ok := u.codes[code]

	return ok
}

// Codes returns the owned codes in lexical order.
func (u User) Codes() []shortener.Code {
	codes := make([]shortener.Code, 0, len(u.codes))
	for code := range u.codes {
		codes = append(codes, code)
	}

	slices.Sort(codes)

	return codes
}

func (u User) clone() User {
	codes := make(map[shortener.Code]struct{}, len(u.codes))
	for code := range u.codes {
		codes[code] = struct{}{}
	}

	u.codes = codes

	return u
}

// Directory is a concurrency-safe in-memory registry of users.
type Directory struct {
	mu    sync.RWMutex
	users map[shortener.UserID]*User
	now   func() time.Time
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		users: make(map[shortener.UserID]*User),
		now:   time.Now,
	}
}

// WithClock overrides the clock used for CreatedAt.
func (d *Directory) WithClock(now func() time.Time) *Directory {
	d.now = now

	return d
}

// Create registers a user with a fresh random id.
func (d *Directory) Create() User {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := shortener.NewUserID()
	for d.users[id] != nil {
		id = shortener.NewUserID()
	}

	return d.insert(id, d.now()).clone()
}

// Ensure returns the user with id, registering it first if unknown.
// The flag reports whether the user was created.
func (d *Directory) Ensure(id shortener.UserID) (User, bool) {
	return d.EnsureAt(id, d.now())
}

// EnsureAt is Ensure with an explicit creation time for new users.
func (d *Directory) EnsureAt(id shortener.UserID, createdAt time.Time) (User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if u, ok := d.users[id]; ok {
		return u.clone(), false
	}

	return d.insert(id, createdAt).clone(), true
}

func (d *Directory) FindByID(id shortener.UserID) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return User{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return u.clone(), nil
}

// FindByShortID resolves a prefix of at least shortener.ShortIDLength
// characters. More than one match is ErrAmbiguous.
func (d *Directory) FindByShortID(prefix string) (User, error) {
	if len(prefix) < shortener.ShortIDLength {
		return User{}, fmt.Errorf("%w: short id needs at least %d characters",
			shortener.ErrValidation, shortener.ShortIDLength)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var match *User

	for _, u := range d.users {
		if !u.ID.MatchesShortID(prefix) {
			continue
		}

		if match != nil {
			return User{}, fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
		}

		match = u
	}

	if match == nil {
		return User{}, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	}

	return match.clone(), nil
}

// AttachCode records that id owns code, registering the user if needed.
func (d *Directory) AttachCode(id shortener.UserID, code shortener.Code) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		u = d.insert(id, d.now())
	}

	u.codes[code] = struct{}{}
}

// DetachCode forgets code for id. Unknown users are ignored.
func (d *Directory) DetachCode(id shortener.UserID, code shortener.Code) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if u, ok := d.users[id]; ok {
		delete(u.codes, code)
	}
}

func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.users)
}

// All returns every user, oldest first.
func (d *Directory) All() []User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	all := make([]User, 0, len(d.users))
	for _, u := range d.users {
		all = append(all, u.clone())
	}

	slices.SortFunc(all, func(a, b User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return slices.Compare(a.ID[:], b.ID[:])
	})

	return all
}

// insert must be called with mu held.
func (d *Directory) insert(id shortener.UserID, createdAt time.Time) *User {
	u := &User{
		ID:        id,
		CreatedAt: createdAt,
		codes:     make(map[shortener.Code]struct{}),
	}
	d.users[id] = u

	return u
}
