package ports

import (
	"context"

	"github.com/99minutos/create-admin/internal/core/domain"
)

// UserDirectory defines the operations over the persisted account collection.
type UserDirectory interface {
	Exists(ctx context.Context) (bool, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)

	// CreateInitial writes a collection holding only account.
	// Callers must have observed that the collection does not exist.
	CreateInitial(ctx context.Context, account domain.Account) error
	// Append adds account to an existing collection.
	Append(ctx context.Context, account domain.Account) error
	// UpsertAppend creates the collection or appends to it, whichever applies.
	UpsertAppend(ctx context.Context, account domain.Account) error
}
