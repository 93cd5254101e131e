package storage

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/tripplanner/internal/repository"
)

type authRecord struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

func newTestStore(now *time.Time) (*TTLStore, *repository.MemoryKVRepo) {
	repo := repository.NewMemoryKVRepo()
	store := NewTTLStore(repo).WithClock(func() time.Time { return *now })
	return store, repo
}

func TestTTLStore_GetBeforeExpiry_ReturnsValue(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store, _ := newTestStore(&now)
	ctx := context.Background()

	if err := store.SetWithExpiry(ctx, AuthKey, authRecord{Token: "tok", Email: "a@example.com"}, time.Hour); err != nil {
		t.Fatalf("SetWithExpiry returned error: %v", err)
	}

	// 期限の直前
	now = now.Add(time.Hour - time.Millisecond)

	var got authRecord
	ok, err := store.GetWithExpiry(ctx, AuthKey, &got)
	if err != nil {
		t.Fatalf("GetWithExpiry returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected value before expiry")
	}
	if got.Token != "tok" || got.Email != "a@example.com" {
		t.Errorf("got %+v, want token=tok email=a@example.com", got)
	}
}

func TestTTLStore_GetAfterExpiry_ReturnsAbsentAndDeletes(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store, repo := newTestStore(&now)
	ctx := context.Background()

	if err := store.SetWithExpiry(ctx, AuthKey, authRecord{Token: "tok"}, time.Hour); err != nil {
		t.Fatalf("SetWithExpiry returned error: %v", err)
	}

	now = now.Add(time.Hour + time.Millisecond)

	var got authRecord
	ok, err := store.GetWithExpiry(ctx, AuthKey, &got)
	if err != nil {
		t.Fatalf("GetWithExpiry returned error: %v", err)
	}
	if ok {
		t.Fatal("expected absent after expiry")
	}

	if _, exists, _ := repo.Get(ctx, AuthKey); exists {
		t.Error("expired entry should be removed from the repository")
	}
}

func TestTTLStore_CorruptEntry_ReturnsAbsentAndDeletes(t *testing.T) {
	now := time.Now()
	store, repo := newTestStore(&now)
	ctx := context.Background()

	if err := repo.Set(ctx, AuthKey, "{not json"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	var got authRecord
	ok, err := store.GetWithExpiry(ctx, AuthKey, &got)
	if err != nil {
		t.Fatalf("GetWithExpiry returned error: %v", err)
	}
	if ok {
		t.Fatal("expected absent for corrupt entry")
	}
	if _, exists, _ := repo.Get(ctx, AuthKey); exists {
		t.Error("corrupt entry should be removed from the repository")
	}
}

func TestTTLStore_MissingKey_ReturnsAbsent(t *testing.T) {
	now := time.Now()
	store, _ := newTestStore(&now)

	var got authRecord
	ok, err := store.GetWithExpiry(context.Background(), "missing", &got)
	if err != nil {
		t.Fatalf("GetWithExpiry returned error: %v", err)
	}
	if ok {
		t.Error("expected absent for missing key")
	}
}

func TestTTLStore_StoredFormat(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	store, repo := newTestStore(&now)
	ctx := context.Background()

	if err := store.SetWithExpiry(ctx, "k", map[string]int{"a": 1}, time.Second); err != nil {
		t.Fatalf("SetWithExpiry returned error: %v", err)
	}

	raw, ok, _ := repo.Get(ctx, "k")
	if !ok {
		t.Fatal("expected raw entry in repository")
	}
	want := `{"value":{"a":1},"exp":1700000001000}`
	if raw != want {
		t.Errorf("stored = %s, want %s", raw, want)
	}

	exp, ok, err := store.ExpiresAt(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("ExpiresAt = (%v, %v, %v)", exp, ok, err)
	}
	if exp.UnixMilli() != 1_700_000_001_000 {
		t.Errorf("ExpiresAt = %d, want 1700000001000", exp.UnixMilli())
	}
}

func TestTTLStore_Remove(t *testing.T) {
	now := time.Now()
	store, _ := newTestStore(&now)
	ctx := context.Background()

	_ = store.SetWithExpiry(ctx, TravelWarningsPrefsKey, map[int64]bool{1: true}, time.Hour)
	if err := store.Remove(ctx, TravelWarningsPrefsKey); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}

	var got map[int64]bool
	if ok, _ := store.GetWithExpiry(ctx, TravelWarningsPrefsKey, &got); ok {
		t.Error("expected absent after Remove")
	}
}
