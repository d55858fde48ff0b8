package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
)

// Payment is one per-farmer payout generated by a billing run. The rate and
// rate version used at generation time are persisted so the amount stays
// reproducible even after the default rate changes.
type Payment struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"index;not null" json:"user_id"`
	User   User `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Amount       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	RatePerLiter decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"rate_per_liter"`
	RateVersion  string          `gorm:"size:60;not null" json:"rate_version"`

	PeriodStartDate time.Time     `gorm:"not null" json:"period_start_date"`
	PeriodEndDate   time.Time     `gorm:"not null" json:"period_end_date"`
	Status          PaymentStatus `gorm:"type:text;not null;default:'PENDING'" json:"status"`

	Collections []PaymentCollection `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PaymentCollection links a payment to the exact collections that funded it.
// The unique index on milk_collection_id doubles as a store-level guarantee
// that no collection is ever covered by two payments.
type PaymentCollection struct {
	ID               uint `gorm:"primaryKey" json:"id"`
	PaymentID        uint `gorm:"index;not null" json:"payment_id"`
	MilkCollectionID uint `gorm:"uniqueIndex;not null" json:"milk_collection_id"`

	CreatedAt time.Time `json:"created_at"`
}
