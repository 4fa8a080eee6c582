// Package domain defines the persistence models for bot users, linked game
// servers, and wallet transactions. These types are mapped with GORM and form
// the core data layer of the Nexo Telegram bot.
package domain

import (
	"time"
)

// Transaction type tags. The transactions table is an append-only audit log,
// so new tags may be introduced without a schema migration.
const (
	TxCouponRedeem  = "coupon_redeem"
	TxPurchase      = "purchase"
	TxTicketCreated = "ticket_created"
)

// User represents a Telegram user's link to an upstream panel account.
// The row is created on first successful login and is never hard-deleted:
// logging out clears the credential and resets the logged-in flag, keeping
// the row for history.
//
// Fields:
//   - TelegramID: the Telegram user id, used as the primary key.
//   - Email: linked panel account email (may be empty after API-key login
//     against a panel that does not report it).
//   - APIKey: bearer credential for the upstream panels. Invariant: a row
//     with LoggedIn=true must carry a non-empty APIKey.
//   - LoggedIn: whether the credential is currently usable.
//   - Balance: last balance observed from the billing panel (a cache, not
//     the source of truth).
//   - Language: preferred language tag (BCP 47), defaulting from config.
//   - CreatedAt / LastLogin: timestamps; LastLogin is cleared on logout.
type User struct {
	TelegramID int64      `json:"telegram_id" gorm:"primaryKey"`
	Email      string     `json:"email"       gorm:"type:varchar(255)"`
	APIKey     string     `json:"-"           gorm:"type:varchar(255)"`
	LoggedIn   bool       `json:"logged_in"   gorm:"not null;default:false"`
	Balance    float64    `json:"balance"     gorm:"not null;default:0"`
	Language   string     `json:"language"    gorm:"type:varchar(16);not null;default:'en'"`
	CreatedAt  time.Time  `json:"created_at"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// LinkedServer ties a Telegram user to a game server provisioned through a
// store purchase. Rows are insert-only: live status is always fetched from
// the server panel and never written back here.
//
// Fields:
//   - ID: auto-incrementing primary key.
//   - TelegramID: owner, indexed for per-user listing.
//   - ServerID: the remote panel's server identifier.
//   - Name: display name (user-supplied at purchase time, else the product name).
//   - ProductName: the store product the server was provisioned from.
//   - Status: status label recorded at creation time.
type LinkedServer struct {
	ID          uint      `json:"id"           gorm:"primaryKey;autoIncrement"`
	TelegramID  int64     `json:"telegram_id"  gorm:"not null;index:idx_user_servers"`
	ServerID    string    `json:"server_id"    gorm:"type:varchar(64);not null"`
	Name        string    `json:"name"         gorm:"type:varchar(255);not null"`
	ProductName string    `json:"product_name" gorm:"type:varchar(255)"`
	Status      string    `json:"status"       gorm:"type:varchar(32);not null;default:'active'"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for LinkedServer.
func (LinkedServer) TableName() string { return "linked_servers" }

// Transaction is one entry of the per-user audit log. Amounts are signed:
// positive for credits (coupon redemptions), negative for debits (purchases),
// zero for non-monetary events (ticket creation). Rows are never mutated or
// deleted.
type Transaction struct {
	ID          uint      `json:"id"          gorm:"primaryKey;autoIncrement"`
	TelegramID  int64     `json:"telegram_id" gorm:"not null;index:idx_user_transactions,priority:1"`
	Type        string    `json:"type"        gorm:"type:varchar(32);not null"`
	Amount      float64   `json:"amount"      gorm:"not null;default:0"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"  gorm:"index:idx_user_transactions,priority:2"`
}

// TableName returns the database table name for Transaction.
func (Transaction) TableName() string { return "transactions" }
