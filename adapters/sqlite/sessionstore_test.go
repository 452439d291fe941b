package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DromeProduto/DromeBoard/adapters/sqlite"
	"github.com/DromeProduto/DromeBoard/domain/auth"
)

func TestSessionStore_CreateAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	createUser(t, sqlite.NewUserStore(db), "user_123", "test@example.com")
	store := sqlite.NewSessionStore(db)
	ctx := context.Background()

	session := auth.Session{
		ID:        "sess_test123",
		UserID:    "user_123",
		Email:     "test@example.com",
		IPAddress: "192.168.1.1",
		UserAgent: "Mozilla/5.0",
		ExpiresAt: t0.Add(24 * time.Hour),
		CreatedAt: t0,
	}

	if err := store.Create(ctx, session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	retrieved, err := store.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.UserID != session.UserID {
		t.Errorf("UserID = %s, want %s", retrieved.UserID, session.UserID)
	}
	if retrieved.IPAddress != session.IPAddress {
		t.Errorf("IPAddress = %s, want %s", retrieved.IPAddress, session.IPAddress)
	}
	if retrieved.UserAgent != session.UserAgent {
		t.Errorf("UserAgent = %s, want %s", retrieved.UserAgent, session.UserAgent)
	}
	if !retrieved.ExpiresAt.Equal(session.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", retrieved.ExpiresAt, session.ExpiresAt)
	}
}

func TestSessionStore_UnknownUser(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	err := sqlite.NewSessionStore(db).Create(context.Background(), auth.Session{
		ID: "sess_x", UserID: "ghost", Email: "g@example.com", ExpiresAt: t0, CreatedAt: t0,
	})
	if !errors.Is(err, sqlite.ErrNotFound) {
		t.Errorf("Create() error = %v, want ErrNotFound", err)
	}
}

func TestSessionStore_Delete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	createUser(t, sqlite.NewUserStore(db), "user_del", "delete@example.com")
	store := sqlite.NewSessionStore(db)
	ctx := context.Background()

	session := auth.Session{
		ID:        "sess_delete",
		UserID:    "user_del",
		Email:     "delete@example.com",
		ExpiresAt: t0.Add(time.Hour),
		CreatedAt: t0,
	}
	if err := store.Create(ctx, session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Delete(ctx, session.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, session.ID); !errors.Is(err, sqlite.ErrNotFound) {
		t.Errorf("Get after delete error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, session.ID); !errors.Is(err, sqlite.ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
}

func TestSessionStore_DeleteExpired(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	createUser(t, sqlite.NewUserStore(db), "u", "u@example.com")
	store := sqlite.NewSessionStore(db)
	ctx := context.Background()

	for id, ttl := range map[string]time.Duration{
		"sess_old":   time.Minute,
		"sess_older": time.Second,
		"sess_fresh": 48 * time.Hour,
	} {
		err := store.Create(ctx, auth.Session{
			ID: id, UserID: "u", Email: "u@example.com", ExpiresAt: t0.Add(ttl), CreatedAt: t0,
		})
		if err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
	}

	n, err := store.DeleteExpired(ctx, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteExpired = %d, want 2", n)
	}
	if _, err := store.Get(ctx, "sess_fresh"); err != nil {
		t.Errorf("fresh session should remain, Get error = %v", err)
	}
}
