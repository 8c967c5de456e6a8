package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo *SQLiteRepository, id, email string) {
	t.Helper()
	u := core.User{
		ID:        id,
		Email:     email,
		Provider:  "password",
		CreatedAt: time.Now(),
	}
	if err := repo.CreateUser(context.Background(), u, "hash"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	repo := newTestRepo(t)
	seedUser(t, repo, "u1", "a@example.com")

	u := core.User{ID: "u2", Email: "A@Example.com", Provider: "password", CreatedAt: time.Now()}
	err := repo.CreateUser(context.Background(), u, "hash")
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestGetUserByEmail(t *testing.T) {
	repo := newTestRepo(t)
	seedUser(t, repo, "u1", "a@example.com")

	u, hash, err := repo.GetUserByEmail(context.Background(), "A@EXAMPLE.COM")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.ID != "u1" || hash != "hash" {
		t.Fatalf("unexpected user %+v hash %q", u, hash)
	}

	if _, _, err := repo.GetUserByEmail(context.Background(), "missing@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "a@example.com")

	tx := core.Transaction{
		ID:          "t1",
		OwnerID:     "u1",
		Description: "market",
		Amount:      core.Money{Cents: 1234},
		OccursAt:    core.NewDate(2026, 3, 10),
		Category:    "Food",
		Kind:        core.Expense,
		Status:      core.Pending,
		CreatedAt:   time.Now(),
	}
	if err := repo.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.ListTransactions(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(got))
	}
	if got[0].Status != core.Pending || got[0].Amount.Cents != 1234 {
		t.Fatalf("round-trip mismatch: %+v", got[0])
	}
	if !got[0].OccursAt.SameDay(core.NewDate(2026, 3, 10)) {
		t.Fatalf("date mismatch: %v", got[0].OccursAt)
	}

	newDesc := "supermarket"
	newStatus := core.Paid
	err = repo.UpdateTransaction(ctx, "u1", "t1", core.TransactionPatch{
		Description: &newDesc,
		Status:      &newStatus,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = repo.ListTransactions(ctx, "u1")
	if got[0].Description != "supermarket" || got[0].Status != core.Paid {
		t.Fatalf("patch not applied: %+v", got[0])
	}

	if err := repo.DeleteTransaction(ctx, "u1", "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = repo.ListTransactions(ctx, "u1")
	if len(got) != 0 {
		t.Fatalf("expected empty list after delete, got %d", len(got))
	}
}

func TestUpdateKindToExpenseRequiresStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "a@example.com")

	tx := core.Transaction{
		ID:          "t1",
		OwnerID:     "u1",
		Description: "salary",
		Amount:      core.Money{Cents: 5000},
		OccursAt:    core.NewDate(2026, 3, 1),
		Category:    "Work",
		Kind:        core.Income,
		CreatedAt:   time.Now(),
	}
	if err := repo.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}

	kind := core.Expense
	err := repo.UpdateTransaction(ctx, "u1", "t1", core.TransactionPatch{Kind: &kind})
	if !errors.Is(err, core.ErrMissingStatus) {
		t.Fatalf("expected ErrMissingStatus, got %v", err)
	}
	got, _ := repo.ListTransactions(ctx, "u1")
	if got[0].Kind != core.Income || got[0].Status != "" {
		t.Fatalf("rejected patch must leave the row untouched: %+v", got[0])
	}

	status := core.Pending
	err = repo.UpdateTransaction(ctx, "u1", "t1", core.TransactionPatch{Kind: &kind, Status: &status})
	if err != nil {
		t.Fatalf("kind flip with status: %v", err)
	}
	got, _ = repo.ListTransactions(ctx, "u1")
	if got[0].Kind != core.Expense || got[0].Status != core.Pending {
		t.Fatalf("patch not applied: %+v", got[0])
	}

	// once the row has a status, restating the kind alone is fine
	if err := repo.UpdateTransaction(ctx, "u1", "t1", core.TransactionPatch{Kind: &kind}); err != nil {
		t.Fatalf("redundant kind patch: %v", err)
	}

	err = repo.UpdateTransaction(ctx, "u1", "missing", core.TransactionPatch{Kind: &kind})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestDeleteUnknownTransaction(t *testing.T) {
	repo := newTestRepo(t)
	seedUser(t, repo, "u1", "a@example.com")

	err := repo.DeleteTransaction(context.Background(), "u1", "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOrderingAndOwnerScope(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "a@example.com")
	seedUser(t, repo, "u2", "b@example.com")

	mk := func(id, owner string, d core.Date) core.Transaction {
		return core.Transaction{
			ID: id, OwnerID: owner, Description: id,
			Amount: core.Money{Cents: 100}, OccursAt: d,
			Category: "X", Kind: core.Income, CreatedAt: time.Now(),
		}
	}
	for _, tx := range []core.Transaction{
		mk("b", "u1", core.NewDate(2026, 1, 10)),
		mk("a", "u1", core.NewDate(2026, 1, 10)), // same date as "b"
		mk("c", "u1", core.NewDate(2026, 2, 1)),
		mk("z", "u2", core.NewDate(2026, 6, 1)), // other owner
	} {
		if err := repo.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("create %s: %v", tx.ID, err)
		}
	}

	got, err := repo.ListTransactions(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, tx := range got {
		ids = append(ids, tx.ID)
	}
	want := []string{"c", "a", "b"} // newest date first, id ascending on ties
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestUpdateOtherOwnersTransactionFails(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "a@example.com")
	seedUser(t, repo, "u2", "b@example.com")

	tx := core.Transaction{
		ID: "t1", OwnerID: "u1", Description: "mine",
		Amount: core.Money{Cents: 100}, OccursAt: core.NewDate(2026, 1, 1),
		Category: "X", Kind: core.Income, CreatedAt: time.Now(),
	}
	if err := repo.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}

	desc := "stolen"
	err := repo.UpdateTransaction(ctx, "u2", "t1", core.TransactionPatch{Description: &desc})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign owner, got %v", err)
	}
	if err := repo.DeleteTransaction(ctx, "u2", "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign delete, got %v", err)
	}
}

func TestAuthTokenSingleUse(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "a@example.com")

	if err := repo.CreateAuthToken(ctx, "tok1", "u1", "verify_email", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("create token: %v", err)
	}

	userID, err := repo.ConsumeAuthToken(ctx, "tok1", "verify_email")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if userID != "u1" {
		t.Fatalf("got user %q, want u1", userID)
	}

	// second use must fail
	if _, err := repo.ConsumeAuthToken(ctx, "tok1", "verify_email"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid on reuse, got %v", err)
	}
}

func TestAuthTokenExpiredOrWrongPurpose(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "a@example.com")

	if err := repo.CreateAuthToken(ctx, "old", "u1", "reset_password", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("create token: %v", err)
	}
	if _, err := repo.ConsumeAuthToken(ctx, "old", "reset_password"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for expired token, got %v", err)
	}

	if err := repo.CreateAuthToken(ctx, "fresh", "u1", "reset_password", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("create token: %v", err)
	}
	if _, err := repo.ConsumeAuthToken(ctx, "fresh", "verify_email"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for wrong purpose, got %v", err)
	}
}

func TestSessionRevocation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	revoked, err := repo.IsSessionRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("fresh jti should not be revoked (revoked=%v err=%v)", revoked, err)
	}

	if err := repo.RevokeSession(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	// revoking twice is fine
	if err := repo.RevokeSession(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("double revoke: %v", err)
	}

	revoked, err = repo.IsSessionRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got revoked=%v err=%v", revoked, err)
	}

	// expired entries are purged
	if err := repo.RevokeSession(ctx, "jti-2", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("revoke expired: %v", err)
	}
	n, err := repo.PurgeExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged entry, got %d", n)
	}
}
