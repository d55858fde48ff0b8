package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NandanNagane/dairy-sys/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Billing turns unbilled milk collections into per-farmer payments. The
// store handle is injected; there is no package-level connection.
type Billing struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewBilling(db *gorm.DB, log *zap.Logger) *Billing {
	if log == nil {
		log = zap.NewNop()
	}
	return &Billing{db: db, log: log.Named("billing")}
}

// BillingInput is the canonical billing request. Rate nil means the default
// rate policy applies.
type BillingInput struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Rate        *decimal.Decimal
}

// GeneratedPayment is one committed payment annotated with the figures that
// produced it.
type GeneratedPayment struct {
	Payment          models.Payment        `json:"payment"`
	Farmer           models.FarmerIdentity `json:"farmer"`
	TotalQuantity    decimal.Decimal       `json:"total_quantity"`
	RatePerLiter     decimal.Decimal       `json:"rate_per_liter"`
	CollectionsCount int                   `json:"collections_count"`
}

type BillingResult struct {
	Payments         []GeneratedPayment `json:"payments"`
	TotalFarmers     int                `json:"total_farmers"`
	TotalCollections int                `json:"total_collections"`
	TotalAmount      decimal.Decimal    `json:"total_amount"`
	PeriodStart      time.Time          `json:"period_start_date"`
	PeriodEnd        time.Time          `json:"period_end_date"`
	Rate             models.RatePolicy  `json:"rate"`
}

func validatePeriod(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return &ValidationError{Message: "periodStartDate and periodEndDate are required"}
	}
	if !start.Before(end) {
		return &ValidationError{Message: "periodStartDate must be before periodEndDate"}
	}
	return nil
}

// SelectUnbilled returns every collection in [start, end] that has not been
// billed yet, with the owning farmer preloaded. Read-only.
func (s *Billing) SelectUnbilled(ctx context.Context, start, end time.Time) ([]models.MilkCollection, error) {
	if err := validatePeriod(start, end); err != nil {
		return nil, err
	}
	var rows []models.MilkCollection
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("is_billed = ? AND created_at BETWEEN ? AND ?", false, start, end).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// farmerAggregate carries one farmer's share of a billing run before commit.
type farmerAggregate struct {
	farmer  models.FarmerIdentity
	records []models.MilkCollection
}

func (a *farmerAggregate) totalQuantity() decimal.Decimal {
	sum := decimal.Zero
	for _, r := range a.records {
		sum = sum.Add(r.Quantity)
	}
	return sum
}

// aggregateByFarmer groups records by owning farmer in order of first
// appearance, so payment order is reproducible for a given selection.
func aggregateByFarmer(records []models.MilkCollection) []*farmerAggregate {
	byFarmer := make(map[uint]*farmerAggregate, len(records))
	ordered := make([]*farmerAggregate, 0, len(records))
	for _, rec := range records {
		agg, ok := byFarmer[rec.UserID]
		if !ok {
			agg = &farmerAggregate{farmer: rec.User.Identity()}
			agg.farmer.ID = rec.UserID
			byFarmer[rec.UserID] = agg
			ordered = append(ordered, agg)
		}
		agg.records = append(agg.records, rec)
	}
	return ordered
}

// GenerateBilling runs the whole workflow: validate, select, aggregate, then
// commit one payment per farmer and flip every consumed collection to billed
// inside a single transaction. Zero unbilled collections is a success with
// empty payments. Any store error inside the transaction rolls everything
// back and surfaces as *TransactionFailure; the caller can safely retry.
func (s *Billing) GenerateBilling(ctx context.Context, in BillingInput) (*BillingResult, error) {
	rate := models.DefaultRatePolicy()
	if in.Rate != nil {
		rate = models.OverrideRatePolicy(*in.Rate)
		if !rate.Valid() {
			return nil, &ValidationError{Message: "ratePerLiter must be a positive number"}
		}
	}

	records, err := s.SelectUnbilled(ctx, in.PeriodStart, in.PeriodEnd)
	if err != nil {
		return nil, err
	}

	result := &BillingResult{
		Payments:    []GeneratedPayment{},
		TotalAmount: decimal.Zero,
		PeriodStart: in.PeriodStart,
		PeriodEnd:   in.PeriodEnd,
		Rate:        rate,
	}
	if len(records) == 0 {
		s.log.Info("no unbilled collections in period",
			zap.Time("period_start", in.PeriodStart),
			zap.Time("period_end", in.PeriodEnd))
		return result, nil
	}

	aggregates := aggregateByFarmer(records)
	if err := s.commit(ctx, in, rate, aggregates, result); err != nil {
		return nil, err
	}

	s.log.Info("billing run committed",
		zap.Int("farmers", result.TotalFarmers),
		zap.Int("collections", result.TotalCollections),
		zap.String("total_amount", result.TotalAmount.String()),
		zap.String("rate_version", rate.Version))
	return result, nil
}

// commit performs the all-or-nothing step: one payment per farmer, junction
// rows for traceability, and a single identifier-list update flipping the
// consumed collections to billed. Rolls back completely on any error.
func (s *Billing) commit(ctx context.Context, in BillingInput, rate models.RatePolicy, aggregates []*farmerAggregate, result *BillingResult) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-check under lock: a concurrent run may have claimed some of the
		// selected rows between our read and this transaction.
		candidateIDs := make([]uint, 0, len(aggregates))
		for _, agg := range aggregates {
			for _, rec := range agg.records {
				candidateIDs = append(candidateIDs, rec.ID)
			}
		}
		var claimedIDs []uint
		q := tx.Model(&models.MilkCollection{}).
			Where("id IN ? AND is_billed = ?", candidateIDs, false)
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.Pluck("id", &claimedIDs).Error; err != nil {
			return &TransactionFailure{Op: "lock collections", Err: err}
		}
		claimed := make(map[uint]bool, len(claimedIDs))
		for _, id := range claimedIDs {
			claimed[id] = true
		}

		billedIDs := make([]uint, 0, len(claimedIDs))
		for _, agg := range aggregates {
			survivors := agg.records[:0:0]
			for _, rec := range agg.records {
				if claimed[rec.ID] {
					survivors = append(survivors, rec)
				}
			}
			if len(survivors) == 0 {
				continue
			}
			agg.records = survivors

			quantity := agg.totalQuantity()
			payment := models.Payment{
				UserID:          agg.farmer.ID,
				Amount:          quantity.Mul(rate.RatePerLiter),
				RatePerLiter:    rate.RatePerLiter,
				RateVersion:     rate.Version,
				PeriodStartDate: in.PeriodStart,
				PeriodEndDate:   in.PeriodEnd,
				Status:          models.PaymentPending,
			}
			if err := tx.Create(&payment).Error; err != nil {
				return &TransactionFailure{Op: "create payment", Err: err}
			}

			links := make([]models.PaymentCollection, 0, len(survivors))
			for _, rec := range survivors {
				links = append(links, models.PaymentCollection{
					PaymentID:        payment.ID,
					MilkCollectionID: rec.ID,
				})
				billedIDs = append(billedIDs, rec.ID)
			}
			if err := tx.Create(&links).Error; err != nil {
				if isUniqueViolation(err) {
					return &TransactionFailure{Op: "link collections", Err: fmt.Errorf("collection already billed by a concurrent run: %w", err)}
				}
				return &TransactionFailure{Op: "link collections", Err: err}
			}

			result.Payments = append(result.Payments, GeneratedPayment{
				Payment:          payment,
				Farmer:           agg.farmer,
				TotalQuantity:    quantity,
				RatePerLiter:     rate.RatePerLiter,
				CollectionsCount: len(survivors),
			})
			result.TotalAmount = result.TotalAmount.Add(payment.Amount)
		}

		if len(billedIDs) == 0 {
			// Everything was claimed by a concurrent run; commit nothing.
			return nil
		}

		// Identifier-list update, never a re-evaluated predicate: only the
		// rows we locked and linked above may flip.
		res := tx.Model(&models.MilkCollection{}).
			Where("id IN ?", billedIDs).
			Update("is_billed", true)
		if res.Error != nil {
			return &TransactionFailure{Op: "mark billed", Err: res.Error}
		}
		if res.RowsAffected != int64(len(billedIDs)) {
			return &TransactionFailure{
				Op:  "mark billed",
				Err: fmt.Errorf("expected %d collections updated, got %d", len(billedIDs), res.RowsAffected),
			}
		}

		result.TotalFarmers = len(result.Payments)
		result.TotalCollections = len(billedIDs)
		return nil
	})
	if err != nil {
		// The transaction has rolled back; nothing was persisted.
		result.Payments = result.Payments[:0]
		result.TotalFarmers = 0
		result.TotalCollections = 0
		result.TotalAmount = decimal.Zero
		var txErr *TransactionFailure
		if !errors.As(err, &txErr) {
			err = &TransactionFailure{Op: "commit", Err: err}
		}
		s.log.Error("billing run aborted", zap.Error(err),
			zap.Time("period_start", in.PeriodStart),
			zap.Time("period_end", in.PeriodEnd))
		return err
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
