package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MilkCollection is one intake entry from a farmer. Once IsBilled flips to
// true the row must never contribute to another billing run.
type MilkCollection struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"index;not null" json:"user_id"`
	User   User `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Quantity      decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"quantity"`       // liters
	FatPercentage decimal.Decimal `gorm:"type:numeric(4,2);not null" json:"fat_percentage"`  // 0-10
	SNF           decimal.Decimal `gorm:"type:numeric(4,2);not null;default:8.5" json:"snf"` // 0-15

	IsBilled bool `gorm:"index;not null;default:false" json:"is_billed"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
