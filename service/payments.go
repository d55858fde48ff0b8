package service

import (
	"context"
	"errors"
	"time"

	"github.com/NandanNagane/dairy-sys/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Payments serves the read/update side of payment records. Billing is the
// only creator; this never inserts.
type Payments struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewPayments(db *gorm.DB, log *zap.Logger) *Payments {
	if log == nil {
		log = zap.NewNop()
	}
	return &Payments{db: db, log: log.Named("payments")}
}

type PaymentFilter struct {
	UserID    uint // 0 = all farmers
	Status    string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

type StatusBreakdown struct {
	Status models.PaymentStatus `json:"status"`
	Count  int64                `json:"count"`
	Amount decimal.Decimal      `json:"amount"`
}

type PaymentListSummary struct {
	TotalAmount  decimal.Decimal   `json:"total_amount"`
	TotalRecords int64             `json:"total_records"`
	ByStatus     []StatusBreakdown `json:"status_breakdown"`
}

type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int64 `json:"total_pages"`
	TotalCount  int64 `json:"total_count"`
}

type PaymentList struct {
	Payments   []models.Payment   `json:"payments"`
	Summary    PaymentListSummary `json:"summary"`
	Pagination Pagination         `json:"pagination"`
}

var paymentSortFields = map[string]string{
	"createdAt":       "created_at",
	"amount":          "amount",
	"periodStartDate": "period_start_date",
	"periodEndDate":   "period_end_date",
}

// List returns payments matching the filter plus totals and a per-status
// breakdown over the same filter.
func (s *Payments) List(ctx context.Context, f PaymentFilter) (*PaymentList, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 || f.PageSize > 100 {
		f.PageSize = 10
	}

	base := s.db.WithContext(ctx).Model(&models.Payment{})
	if f.UserID != 0 {
		base = base.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		switch models.PaymentStatus(f.Status) {
		case models.PaymentPending, models.PaymentPaid:
			base = base.Where("status = ?", f.Status)
		default:
			return nil, &ValidationError{Message: "status must be either PENDING or PAID"}
		}
	}
	if f.StartDate != nil {
		base = base.Where("created_at >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		base = base.Where("created_at <= ?", *f.EndDate)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	column, ok := paymentSortFields[f.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if f.SortOrder == "asc" {
		direction = "ASC"
	}

	var payments []models.Payment
	offset := (f.Page - 1) * f.PageSize
	if err := base.Session(&gorm.Session{}).
		Preload("User").
		Order(column + " " + direction).
		Offset(offset).
		Limit(f.PageSize).
		Find(&payments).Error; err != nil {
		return nil, err
	}

	var breakdown []StatusBreakdown
	if err := base.Session(&gorm.Session{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Group("status").
		Scan(&breakdown).Error; err != nil {
		return nil, err
	}
	summary := PaymentListSummary{
		TotalAmount:  decimal.Zero,
		TotalRecords: total,
		ByStatus:     breakdown,
	}
	for _, b := range breakdown {
		summary.TotalAmount = summary.TotalAmount.Add(b.Amount)
	}

	totalPages := (total + int64(f.PageSize) - 1) / int64(f.PageSize)
	return &PaymentList{
		Payments: payments,
		Summary:  summary,
		Pagination: Pagination{
			CurrentPage: f.Page,
			TotalPages:  totalPages,
			TotalCount:  total,
		},
	}, nil
}

func (s *Payments) Get(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).Preload("User").First(&payment, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "payment", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdateStatus moves a payment between PENDING and PAID. Amounts are never
// touched here.
func (s *Payments) UpdateStatus(ctx context.Context, id uint, status models.PaymentStatus) (*models.Payment, error) {
	if status != models.PaymentPending && status != models.PaymentPaid {
		return nil, &ValidationError{Message: "status must be either PENDING or PAID"}
	}
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(payment).Update("status", status).Error; err != nil {
		return nil, err
	}
	s.log.Info("payment status updated",
		zap.Uint("payment_id", id),
		zap.String("status", string(status)))
	return payment, nil
}
