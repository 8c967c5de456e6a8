package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/feed"
	"fintrack/internal/storage"
)

// TransactionService orchestrates transaction writes across SQLite, the
// live feed and AMQP. Validation always runs before the store is touched,
// and a failed write leaves the published feed untouched.
type TransactionService struct {
	storage    *storage.SQLiteRepository
	feed       *feed.Hub
	amqpClient *amqp.Client
}

func NewTransactionService(storage *storage.SQLiteRepository, feedHub *feed.Hub, amqpClient *amqp.Client) *TransactionService {
	return &TransactionService{
		storage:    storage,
		feed:       feedHub,
		amqpClient: amqpClient,
	}
}

// Create validates and persists a new transaction for the owner, then
// republishes the owner's feed. Returns the stored record with its
// generated id.
func (s *TransactionService) Create(ctx context.Context, ownerID string, t core.Transaction) (core.Transaction, error) {
	t.ID = uuid.NewString()
	t.OwnerID = ownerID
	t.CreatedAt = time.Now()
	if t.Kind == core.Income {
		t.Status = ""
	}

	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := s.storage.CreateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.republish(ctx, ownerID)
	s.publishEvent(ctx, amqp.EventCreated, t.ID, ownerID)
	return t, nil
}

// Update applies a partial change to an owned transaction. An unknown id
// or another owner's record fails with storage.ErrNotFound.
func (s *TransactionService) Update(ctx context.Context, ownerID, id string, p core.TransactionPatch) error {
	if err := p.Validate(); err != nil {
		return err
	}

	if err := s.storage.UpdateTransaction(ctx, ownerID, id, p); err != nil {
		return err
	}

	s.republish(ctx, ownerID)
	s.publishEvent(ctx, amqp.EventUpdated, id, ownerID)
	return nil
}

// Delete removes an owned transaction. Deleting an unknown id fails with
// storage.ErrNotFound and changes nothing.
func (s *TransactionService) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.storage.DeleteTransaction(ctx, ownerID, id); err != nil {
		return err
	}

	s.republish(ctx, ownerID)
	s.publishEvent(ctx, amqp.EventDeleted, id, ownerID)
	return nil
}

// List returns the owner's transactions, newest occurrence first.
func (s *TransactionService) List(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	return s.storage.ListTransactions(ctx, ownerID)
}

func (s *TransactionService) republish(ctx context.Context, ownerID string) {
	if err := s.feed.Invalidate(ctx, ownerID); err != nil {
		slog.ErrorContext(ctx, "Failed to republish feed",
			"owner_id", ownerID, "error", err)
		// Don't fail the request - the write itself succeeded
	}
}

func (s *TransactionService) publishEvent(ctx context.Context, op, id, ownerID string) {
	if s.amqpClient == nil {
		return
	}
	evt := amqp.NewTransactionEvent(op, id, ownerID)
	if err := s.amqpClient.PublishTransactionEvent(ctx, evt); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"op", op, "id", id, "error", err)
		// Don't fail the request - the write itself succeeded
	}
}
