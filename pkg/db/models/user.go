package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// User represents a library patron or staff member. The balance column is
// the prepaid ledger this core debits for borrowing fees and overdue fines;
// it never goes below zero.
type User struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Username     string          `gorm:"column:username;type:text;not null;uniqueIndex"`
	Name         string          `gorm:"column:name;type:text;not null"`
	PasswordHash string          `gorm:"column:password_hash;not null"`
	Roles        pq.StringArray  `gorm:"column:roles;type:text[];not null"`
	Balance      decimal.Decimal `gorm:"column:balance;type:numeric(12,2);not null;default:0"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// HasRole reports whether the user carries the named role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
