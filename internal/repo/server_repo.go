// Package repo – linked server repository.
//
// Linked server rows are insert-only: they record which remote game servers
// were provisioned for a user through the store. Live status is always read
// from the server panel, never from these rows.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/nexoplatform/nexo-bot/internal/domain"
)

// CreateLinkedServer inserts a new linked server row for the given user.
// CreatedAt is set to UTC. On failure, the raw DB error is returned.
func CreateLinkedServer(ctx context.Context, db *gorm.DB, telegramID int64, serverID, name, productName string) (*domain.LinkedServer, error) {
	s := &domain.LinkedServer{
		TelegramID:  telegramID,
		ServerID:    serverID,
		Name:        name,
		ProductName: productName,
		Status:      "active",
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// ListLinkedServers returns all linked servers for a user, most recent first.
// It returns an empty slice if the user has none.
func ListLinkedServers(ctx context.Context, db *gorm.DB, telegramID int64) ([]domain.LinkedServer, error) {
	var out []domain.LinkedServer
	err := db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// CountLinkedServers returns the number of linked servers owned by the user.
func CountLinkedServers(ctx context.Context, db *gorm.DB, telegramID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.LinkedServer{}).
		Where("telegram_id = ?", telegramID).
		Count(&total).Error
	return total, err
}
