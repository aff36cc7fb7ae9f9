package shortener

import (
	"context"
	"time"
)

// Repository stores links indexed by code and by owner.
//
// Mutations persist before returning. When persisting fails the in-memory
// change is kept and the returned error wraps ErrPersistence.
type Repository interface {
	// Save upserts by code.
	Save(ctx context.Context, link *Link) error
	// Create inserts link, or returns ErrCodeTaken if the code is stored.
	Create(ctx context.Context, link *Link) error
	// Update applies fn to the stored link atomically. If fn fails nothing changes.
	Update(ctx context.Context, code Code, fn func(*Link) error) (*Link, error)
	FindByCode(ctx context.Context, code Code) (*Link, error)
	// FindByOwner returns the owner's links, newest first.
	FindByOwner(ctx context.Context, owner UserID) ([]*Link, error)
	// Delete is a no-op for unknown codes.
	Delete(ctx context.Context, code Code) error
	ExistsByCode(ctx context.Context, code Code) (bool, error)
	Count(ctx context.Context) (int, error)
	CountActive(ctx context.Context, now time.Time) (int, error)
	CountExpired(ctx context.Context, now time.Time) (int, error)
	FindAll(ctx context.Context) ([]*Link, error)
	// CodeOwners maps every stored code to its owner.
	CodeOwners(ctx context.Context) (map[Code]UserID, error)
}
