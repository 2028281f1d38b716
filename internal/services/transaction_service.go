package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hisob/internal/amqp"
	"hisob/internal/core"
	"hisob/internal/currency"
	"hisob/internal/storage"
)

// TransactionService records transactions and announces them on the bus.
type TransactionService struct {
	store     storage.TransactionStore
	rates     RateProvider
	publisher Publisher
	now       Clock
}

func NewTransactionService(store storage.TransactionStore, rates RateProvider, publisher Publisher) *TransactionService {
	return &TransactionService{
		store:     store,
		rates:     rates,
		publisher: publisher,
		now:       time.Now,
	}
}

// Record validates tx, captures the exchange rate when none was given, saves
// it and publishes transaction.recorded. A taxable transaction without a tax
// amount gets the default rate of its currency. The returned transaction
// carries the assigned ID, rate and tax.
func (s *TransactionService) Record(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	tx.Tags = normalizeTags(tx.Tags)
	if tx.Status == "" || tx.Kind == core.Expense {
		tx.Status = core.StatusReceived
	}
	if tx.PaymentMethod == "" {
		tx.PaymentMethod = core.PaymentCash
	}
	if tx.IsTaxable && tx.TaxAmount.IsZero() && tx.Amount.IsPositive() {
		tx.TaxAmount = currency.CalculateTax(tx.Amount, nil, tx.Currency).TaxAmount
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}

	if !tx.ExchangeRate.IsPositive() {
		tx.ExchangeRate = s.captureRate(ctx, tx.Currency)
	}
	tx.CreatedAt = s.now().UTC()

	if err := s.store.SaveTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"id", tx.ID,
		"user_id", tx.UserID,
		"kind", tx.Kind,
		"amount", tx.Amount.String(),
		"currency", tx.Currency,
		"rate", tx.ExchangeRate.String())

	if err := s.publishRecorded(ctx, tx); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"id", tx.ID, "error", err)
	}
	return tx, nil
}

// captureRate returns the UZS value of one unit of c from the live table.
func (s *TransactionService) captureRate(ctx context.Context, c core.Currency) decimal.Decimal {
	if c == core.UZS {
		return decimal.NewFromInt(1)
	}
	table := s.rates.Rates(ctx)
	return currency.ConvertExact(decimal.NewFromInt(1), c, core.UZS, table)
}

func (s *TransactionService) publishRecorded(ctx context.Context, tx core.Transaction) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping transaction event")
		return nil
	}
	return s.publisher.PublishTransactionRecorded(ctx,
		amqp.NewTransactionRecordedMessage(tx.ID, tx.UserID, string(tx.Kind)))
}

// Get returns a transaction owned by userID.
func (s *TransactionService) Get(ctx context.Context, userID int64, id string) (core.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if tx.UserID != userID {
		return core.Transaction{}, storage.ErrNotFound
	}
	return tx, nil
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
