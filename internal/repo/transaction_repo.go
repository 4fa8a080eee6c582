// Package repo – transaction repository.
//
// Transactions form an append-only audit log of wallet activity and other
// notable events. Rows are never updated or deleted.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/nexoplatform/nexo-bot/internal/domain"
)

// DefaultTransactionLimit bounds history queries when the caller passes a
// non-positive limit.
const DefaultTransactionLimit = 10

// CreateTransaction appends one audit log entry for the given user.
// Amount sign convention: positive = credit, negative = debit, zero =
// non-monetary event.
func CreateTransaction(ctx context.Context, db *gorm.DB, telegramID int64, txType string, amount float64, description string) (*domain.Transaction, error) {
	t := &domain.Transaction{
		TelegramID:  telegramID,
		Type:        txType,
		Amount:      amount,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// ListTransactions returns up to limit transactions for a user, most recent
// first. A non-positive limit falls back to DefaultTransactionLimit.
func ListTransactions(ctx context.Context, db *gorm.DB, telegramID int64, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = DefaultTransactionLimit
	}
	var out []domain.Transaction
	err := db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountTransactions returns the total number of transactions for a user.
func CountTransactions(ctx context.Context, db *gorm.DB, telegramID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("telegram_id = ?", telegramID).
		Count(&total).Error
	return total, err
}
