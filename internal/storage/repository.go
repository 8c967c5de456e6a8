package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrTokenInvalid   = errors.New("token invalid, expired or already used")
)

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- users ---

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User, passwordHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, display_name, cpf, provider, email_verified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, strings.ToLower(u.Email), passwordHash, u.DisplayName, u.CPF, u.Provider, u.EmailVerified, u.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "id", u.ID, "provider", u.Provider)
	return nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, string, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, display_name, cpf, provider, email_verified, created_at
		FROM users WHERE email = ?`, strings.ToLower(email))
	return scanUser(row)
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, display_name, cpf, provider, email_verified, created_at
		FROM users WHERE id = ?`, id)
	u, _, err := scanUser(row)
	return u, err
}

func scanUser(row *sql.Row) (core.User, string, error) {
	var u core.User
	var hash string
	err := row.Scan(&u.ID, &u.Email, &hash, &u.DisplayName, &u.CPF, &u.Provider, &u.EmailVerified, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, "", ErrNotFound
	}
	if err != nil {
		return core.User{}, "", fmt.Errorf("scan user: %w", err)
	}
	return u, hash, nil
}

func (r *SQLiteRepository) UpdateDisplayName(ctx context.Context, userID, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET display_name = ? WHERE id = ?`, name, userID)
	if err != nil {
		return fmt.Errorf("update display name: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) MarkEmailVerified(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET email_verified = 1 WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	return requireRow(res)
}

// --- transactions ---

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, owner_id, description, amount_cents, occurs_at, category, kind, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.Description, t.Amount.Cents, t.OccursAt.Calendar().Format(dateLayout),
		t.Category, string(t.Kind), nullableStatus(t), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"owner_id", t.OwnerID,
		"kind", string(t.Kind),
		"amount_cents", t.Amount.Cents)
	return nil
}

// UpdateTransaction applies a partial patch to one of the owner's
// transactions. Owner and id are both matched, so a user can never touch
// another user's records.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, ownerID, id string, p core.TransactionPatch) error {
	// Flipping a row to expense needs a status, either from the patch or
	// already on the row. Income rows carry NULL, so a bare kind flip
	// would otherwise persist an expense with no status.
	if p.Kind != nil && *p.Kind == core.Expense && p.Status == nil {
		var status sql.NullString
		err := r.db.QueryRowContext(ctx,
			`SELECT status FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read transaction status: %w", err)
		}
		if !status.Valid {
			return core.ErrMissingStatus
		}
	}

	sets := make([]string, 0, 6)
	args := make([]any, 0, 8)

	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *p.Description)
	}
	if p.AmountCents != nil {
		sets = append(sets, "amount_cents = ?")
		args = append(args, *p.AmountCents)
	}
	if p.OccursAt != nil {
		sets = append(sets, "occurs_at = ?")
		args = append(args, p.OccursAt.Calendar().Format(dateLayout))
	}
	if p.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *p.Category)
	}
	if p.Kind != nil {
		sets = append(sets, "kind = ?")
		args = append(args, string(*p.Kind))
		if *p.Kind == core.Income && p.Status == nil {
			// status has no meaning for income rows
			sets = append(sets, "status = NULL")
		}
	}
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*p.Status))
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id, ownerID)
	res, err := r.db.ExecContext(ctx,
		"UPDATE transactions SET "+strings.Join(sets, ", ")+" WHERE id = ? AND owner_id = ?", args...)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res)
}

// ListTransactions returns the owner's full transaction set ordered by
// recency: occurs_at descending, id ascending as the deterministic
// tie-break for records sharing a date.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, description, amount_cents, occurs_at, category, kind, status, created_at
		FROM transactions
		WHERE owner_id = ?
		ORDER BY occurs_at DESC, id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]core.Transaction, 0)
	for rows.Next() {
		var t core.Transaction
		var occursAt string
		var status sql.NullString
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Description, &t.Amount.Cents,
			&occursAt, &t.Category, (*string)(&t.Kind), &status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		day, err := time.Parse(dateLayout, occursAt)
		if err != nil {
			return nil, fmt.Errorf("parse occurs_at %q: %w", occursAt, err)
		}
		t.OccursAt = core.Date{Time: day}
		if status.Valid {
			t.Status = core.Status(status.String)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

// --- auth tokens ---

func (r *SQLiteRepository) CreateAuthToken(ctx context.Context, id, userID, purpose string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_tokens (id, user_id, purpose, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, userID, purpose, expiresAt, time.Now())
	if err != nil {
		return fmt.Errorf("insert auth token: %w", err)
	}
	return nil
}

// ConsumeAuthToken marks a single-use token as spent and returns its owner.
// Expired or already-consumed tokens fail with ErrTokenInvalid.
func (r *SQLiteRepository) ConsumeAuthToken(ctx context.Context, id, purpose string) (string, error) {
	var userID string
	row := r.db.QueryRowContext(ctx, `
		UPDATE auth_tokens SET consumed_at = ?
		WHERE id = ? AND purpose = ? AND consumed_at IS NULL AND expires_at > ?
		RETURNING user_id`,
		time.Now(), id, purpose, time.Now())
	if err := row.Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrTokenInvalid
		}
		return "", fmt.Errorf("consume auth token: %w", err)
	}
	return userID, nil
}

// --- session revocation ---

func (r *SQLiteRepository) RevokeSession(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO revoked_sessions (jti, expires_at) VALUES (?, ?)
		ON CONFLICT (jti) DO NOTHING`, jti, expiresAt)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) IsSessionRevoked(ctx context.Context, jti string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM revoked_sessions WHERE jti = ?`, jti).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check revoked session: %w", err)
	}
	return true, nil
}

// PurgeExpiredSessions drops revocation entries whose tokens have expired
// anyway. Called periodically from the server lifecycle.
func (r *SQLiteRepository) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM revoked_sessions WHERE expires_at <= ?`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("purge revoked sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func nullableStatus(t core.Transaction) any {
	if t.Kind == core.Expense {
		return string(t.Status)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
