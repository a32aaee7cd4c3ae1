package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/99minutos/create-admin/internal/core/domain"
	"github.com/99minutos/create-admin/internal/core/ports"
	"github.com/99minutos/create-admin/internal/infrastructure/db/memory"
	"github.com/99minutos/create-admin/internal/infrastructure/db/sqlite"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

// plainStore hides the memory store's CompareAndSwap.
type plainStore struct {
	inner *memory.Store
}

func (s plainStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.inner.Get(ctx, key)
}

func (s plainStore) Set(ctx context.Context, key string, value []byte) error {
	return s.inner.Set(ctx, key, value)
}

func (s plainStore) Close() error { return nil }

// racingStore lets another writer slip in before each of the first n swaps.
type racingStore struct {
	*memory.Store
	n       int
	intrude func(ctx context.Context, s *memory.Store)
}

func (s *racingStore) CompareAndSwap(ctx context.Context, key string, old, value []byte) (bool, error) {
	if s.n > 0 {
		s.n--
		s.intrude(ctx, s.Store)
	}
	return s.Store.CompareAndSwap(ctx, key, old, value)
}

type failingStore struct {
	getErr error
	setErr error
}

func (s failingStore) Get(context.Context, string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return nil, ports.ErrKeyNotFound
}

func (s failingStore) Set(context.Context, string, []byte) error { return s.setErr }
func (s failingStore) Close() error                              { return nil }

func admin(n string) domain.Account {
	return domain.NewAdmin("id-"+n, n, n+"@example.com", "hash-"+n)
}

func stored(t *testing.T, store ports.KVStore, key string) []domain.Account {
	t.Helper()
	raw, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	var accounts []domain.Account
	if err := json.Unmarshal(raw, &accounts); err != nil {
		t.Fatalf("decode %s: %v", key, err)
	}
	return accounts
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestDirectory_EmptyStore(t *testing.T) {
	ctx := context.Background()
	d := New(memory.New(), Options{}, zerolog.Nop())

	exists, err := d.Exists(ctx)
	if err != nil || exists {
		t.Fatalf("expected no collection, got exists=%v err=%v", exists, err)
	}
	if taken, err := d.UsernameTaken(ctx, "alice"); err != nil || taken {
		t.Fatalf("expected username free, got taken=%v err=%v", taken, err)
	}
	if taken, err := d.EmailTaken(ctx, "alice@example.com"); err != nil || taken {
		t.Fatalf("expected email free, got taken=%v err=%v", taken, err)
	}
}

func TestDirectory_CreateInitialThenAppend(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	d := New(store, Options{Key: "accounts"}, zerolog.Nop())

	if err := d.CreateInitial(ctx, admin("alice")); err != nil {
		t.Fatalf("CreateInitial: %v", err)
	}
	if got := stored(t, store, "accounts"); len(got) != 1 || got[0].Username != "alice" {
		t.Fatalf("unexpected collection after create: %+v", got)
	}

	if err := d.Append(ctx, admin("bob")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got := stored(t, store, "accounts")
	if len(got) != 2 || got[0].Username != "alice" || got[1].Username != "bob" {
		t.Fatalf("unexpected collection after append: %+v", got)
	}

	if taken, _ := d.UsernameTaken(ctx, "bob"); !taken {
		t.Fatalf("expected bob to be taken")
	}
	if taken, _ := d.EmailTaken(ctx, "alice@example.com"); !taken {
		t.Fatalf("expected alice's email to be taken")
	}
	if taken, _ := d.UsernameTaken(ctx, "Bob"); taken {
		t.Fatalf("username comparison must be exact")
	}
}

func TestDirectory_AppendWithoutCollection(t *testing.T) {
	d := New(memory.New(), Options{}, zerolog.Nop())
	if err := d.Append(context.Background(), admin("alice")); !errors.Is(err, domain.ErrDirectoryMissing) {
		t.Fatalf("expected ErrDirectoryMissing, got %v", err)
	}
}

func TestDirectory_StoredFormat(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	d := New(store, Options{}, zerolog.Nop())

	if err := d.UpsertAppend(ctx, admin("alice")); err != nil {
		t.Fatalf("UpsertAppend: %v", err)
	}
	raw, _ := store.Get(ctx, DefaultKey)

	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	r := records[0]
	for _, field := range []string{"userId", "username", "email", "password", "accessTo", "admin", "verified"} {
		if _, ok := r[field]; !ok {
			t.Errorf("missing field %q in %s", field, raw)
		}
	}
	if list, ok := r["accessTo"].([]any); !ok || len(list) != 0 {
		t.Errorf("expected accessTo to be an empty array, got %v", r["accessTo"])
	}
}

func TestDirectory_UpsertAppend(t *testing.T) {
	stores := map[string]func() ports.KVStore{
		"swap":  func() ports.KVStore { return memory.New() },
		"plain": func() ports.KVStore { return plainStore{inner: memory.New()} },
	}
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore()
			d := New(store, Options{}, zerolog.Nop())

			for i, n := range []string{"alice", "bob", "carol"} {
				if err := d.UpsertAppend(ctx, admin(n)); err != nil {
					t.Fatalf("UpsertAppend(%s): %v", n, err)
				}
				if got := stored(t, store, DefaultKey); len(got) != i+1 || got[i].Username != n {
					t.Fatalf("unexpected collection after %s: %+v", n, got)
				}
			}
		})
	}
}

func TestDirectory_UpsertAppend_RetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{
		Store: memory.New(),
		n:     2,
		intrude: func(ctx context.Context, s *memory.Store) {
			cur, _ := s.Get(ctx, DefaultKey)
			var accounts []domain.Account
			_ = json.Unmarshal(cur, &accounts)
			accounts = append(accounts, admin("other"+string(rune('0'+len(accounts)))))
			raw, _ := json.Marshal(accounts)
			_ = s.Set(ctx, DefaultKey, raw)
		},
	}
	d := New(store, Options{}, zerolog.Nop())

	if err := d.UpsertAppend(ctx, admin("alice")); err != nil {
		t.Fatalf("UpsertAppend: %v", err)
	}
	got := stored(t, store, DefaultKey)
	if len(got) != 3 {
		t.Fatalf("expected both concurrent writes and ours to survive, got %+v", got)
	}
	if got[2].Username != "alice" {
		t.Fatalf("expected alice appended last, got %+v", got)
	}
}

func TestDirectory_UpsertAppend_ConcurrentDuplicate(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{
		Store: memory.New(),
		n:     1,
		intrude: func(ctx context.Context, s *memory.Store) {
			raw, _ := json.Marshal([]domain.Account{admin("alice")})
			_ = s.Set(ctx, DefaultKey, raw)
		},
	}
	d := New(store, Options{}, zerolog.Nop())

	if err := d.UpsertAppend(ctx, admin("alice")); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if got := stored(t, store, DefaultKey); len(got) != 1 {
		t.Fatalf("expected the concurrent write only, got %+v", got)
	}
}

func TestDirectory_UpsertAppend_GivesUp(t *testing.T) {
	ctx := context.Background()
	counter := 0
	store := &racingStore{
		Store: memory.New(),
		n:     10,
		intrude: func(ctx context.Context, s *memory.Store) {
			counter++
			raw, _ := json.Marshal([]domain.Account{admin("x" + string(rune('a'+counter)))})
			_ = s.Set(ctx, DefaultKey, raw)
		},
	}
	d := New(store, Options{MaxAttempts: 3}, zerolog.Nop())

	err := d.UpsertAppend(ctx, admin("alice"))
	if !errors.Is(err, domain.ErrWriteConflict) || !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrWriteConflict wrapped in ErrPersistence, got %v", err)
	}
	if counter != 3 {
		t.Fatalf("expected 3 attempts, got %d", counter)
	}
}

func TestDirectory_StoreErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	d := New(failingStore{getErr: boom}, Options{}, zerolog.Nop())
	if _, err := d.UsernameTaken(ctx, "alice"); !errors.Is(err, domain.ErrPersistence) || !errors.Is(err, boom) {
		t.Fatalf("expected ErrPersistence wrapping cause, got %v", err)
	}
	if _, err := d.Exists(ctx); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}

	d = New(failingStore{setErr: boom}, Options{}, zerolog.Nop())
	if err := d.UpsertAppend(ctx, admin("alice")); !errors.Is(err, domain.ErrPersistence) || !errors.Is(err, boom) {
		t.Fatalf("expected ErrPersistence wrapping cause, got %v", err)
	}
}

func TestDirectory_CorruptCollection(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	_ = store.Set(ctx, DefaultKey, []byte("{not json"))

	d := New(store, Options{}, zerolog.Nop())
	if _, err := d.EmailTaken(ctx, "a@b.co"); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestDirectory_UpsertAppend_ExpiredSQLiteCollection(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "panel.db")

	store, err := sqlite.Open(ctx, sqlite.Config{Path: path})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	// The panel left a users row whose envelope expired long ago.
	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer raw.Close()
	if _, err := raw.ExecContext(ctx, `INSERT INTO keyv (key, value) VALUES (?, ?)`,
		"keyv:users", `{"value":[],"expires":1000}`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	d := New(store, Options{}, zerolog.Nop())
	if exists, err := d.Exists(ctx); err != nil || exists {
		t.Fatalf("expected expired collection to read as absent, got exists=%v err=%v", exists, err)
	}
	if err := d.UpsertAppend(ctx, admin("alice")); err != nil {
		t.Fatalf("UpsertAppend: %v", err)
	}

	got := stored(t, store, DefaultKey)
	if len(got) != 1 || got[0].Username != "alice" {
		t.Fatalf("expected a fresh one-element collection, got %+v", got)
	}
}
