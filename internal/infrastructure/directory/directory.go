// Package directory stores the panel's account collection as a single JSON
// array under one key of a KVStore.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/create-admin/internal/core/domain"
	"github.com/99minutos/create-admin/internal/core/ports"
	"github.com/99minutos/create-admin/internal/metrics"
)

const (
	DefaultKey         = "users"
	defaultMaxAttempts = 5
)

// Options tunes a Directory. Zero values select the defaults.
type Options struct {
	Key string
	// MaxAttempts bounds the compare-and-swap retries of UpsertAppend.
	MaxAttempts int
}

// Directory implements ports.UserDirectory on top of a KVStore.
//
// When the store also implements ports.Swapper, UpsertAppend replaces the
// collection only if it is unchanged since it was read, re-checking uniqueness
// on every attempt. Otherwise it falls back to a plain read-modify-write.
type Directory struct {
	store       ports.KVStore
	swapper     ports.Swapper
	key         string
	maxAttempts int
	log         zerolog.Logger
}

func New(store ports.KVStore, opts Options, log zerolog.Logger) *Directory {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	swapper, _ := store.(ports.Swapper)
	return &Directory{
		store:       store,
		swapper:     swapper,
		key:         opts.Key,
		maxAttempts: opts.MaxAttempts,
		log:         log,
	}
}

// load returns the decoded collection and its raw bytes.
// found is false when the key is absent.
func (d *Directory) load(ctx context.Context) (accounts []domain.Account, raw []byte, found bool, err error) {
	raw, err = d.store.Get(ctx, d.key)
	if errors.Is(err, ports.ErrKeyNotFound) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, nil, false, fmt.Errorf("%w: decode %s: %w", domain.ErrPersistence, d.key, err)
	}
	return accounts, raw, true, nil
}

func (d *Directory) save(ctx context.Context, accounts []domain.Account) error {
	raw, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", domain.ErrPersistence, d.key, err)
	}
	if err := d.store.Set(ctx, d.key, raw); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return nil
}

func (d *Directory) Exists(ctx context.Context) (bool, error) {
	_, _, found, err := d.load(ctx)
	return found, err
}

func (d *Directory) UsernameTaken(ctx context.Context, username string) (bool, error) {
	accounts, _, _, err := d.load(ctx)
	if err != nil {
		return false, err
	}
	return usernameIn(accounts, username), nil
}

func (d *Directory) EmailTaken(ctx context.Context, email string) (bool, error) {
	accounts, _, _, err := d.load(ctx)
	if err != nil {
		return false, err
	}
	return emailIn(accounts, email), nil
}

func (d *Directory) CreateInitial(ctx context.Context, account domain.Account) error {
	err := d.save(ctx, []domain.Account{account})
	recordWrite("create", err)
	return err
}

func (d *Directory) Append(ctx context.Context, account domain.Account) error {
	accounts, _, found, err := d.load(ctx)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrDirectoryMissing
	}
	err = d.save(ctx, append(accounts, account))
	recordWrite("append", err)
	return err
}

func (d *Directory) UpsertAppend(ctx context.Context, account domain.Account) error {
	if d.swapper == nil {
		exists, err := d.Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return d.CreateInitial(ctx, account)
		}
		return d.Append(ctx, account)
	}

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		accounts, raw, found, err := d.load(ctx)
		if err != nil {
			return err
		}
		if usernameIn(accounts, account.Username) || emailIn(accounts, account.Email) {
			return domain.ErrUserExists
		}

		mode := "append"
		if !found {
			mode = "create"
		}
		next, err := json.Marshal(append(accounts, account))
		if err != nil {
			return fmt.Errorf("%w: encode %s: %w", domain.ErrPersistence, d.key, err)
		}

		swapped, err := d.swapper.CompareAndSwap(ctx, d.key, raw, next)
		if err != nil {
			err = fmt.Errorf("%w: %w", domain.ErrPersistence, err)
			recordWrite(mode, err)
			return err
		}
		if swapped {
			recordWrite(mode, nil)
			return nil
		}

		metrics.DirectoryWritesTotal.WithLabelValues(mode, "conflict").Inc()
		d.log.Warn().
			Str("key", d.key).
			Int("attempt", attempt).
			Msg("users collection changed during write, retrying")
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistence, domain.ErrWriteConflict)
}

func usernameIn(accounts []domain.Account, username string) bool {
	for _, a := range accounts {
		if a.Username == username {
			return true
		}
	}
	return false
}

func emailIn(accounts []domain.Account, email string) bool {
	for _, a := range accounts {
		if a.Email == email {
			return true
		}
	}
	return false
}

func recordWrite(mode string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.DirectoryWritesTotal.WithLabelValues(mode, result).Inc()
}
