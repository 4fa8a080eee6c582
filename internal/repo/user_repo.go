// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a user is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nexoplatform/nexo-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the workflow layer.
var ErrNotFound = gorm.ErrRecordNotFound

// GetUser fetches a user row by Telegram id, or ErrNotFound if missing.
func GetUser(ctx context.Context, db *gorm.DB, telegramID int64) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertLogin creates or overwrites the user row after a successful login:
// email and credential are replaced, the logged-in flag is set, and LastLogin
// is stamped in UTC. The language tag seeds new rows only; on conflict the
// user's stored language survives re-login.
func UpsertLogin(ctx context.Context, db *gorm.DB, telegramID int64, email, apiKey, language string) (*domain.User, error) {
	if language == "" {
		language = "en"
	}
	now := time.Now().UTC()
	u := &domain.User{
		TelegramID: telegramID,
		Email:      email,
		APIKey:     apiKey,
		LoggedIn:   true,
		Language:   language,
		CreatedAt:  now,
		LastLogin:  &now,
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "api_key", "logged_in", "last_login"}),
		}).
		Create(u).Error
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Logout clears the credential and resets the logged-in flag, keeping the
// row for history. Returns ErrNotFound if the user does not exist.
func Logout(ctx context.Context, db *gorm.DB, telegramID int64) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("telegram_id = ?", telegramID).
		Updates(map[string]any{
			"api_key":    "",
			"logged_in":  false,
			"last_login": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateBalance stores the most recently observed panel balance for the user.
// The value is a cache of upstream truth, not an authoritative ledger.
func UpdateBalance(ctx context.Context, db *gorm.DB, telegramID int64, balance float64) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("telegram_id = ?", telegramID).
		Update("balance", balance)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
