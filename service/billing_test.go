package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NandanNagane/dairy-sys/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	periodStart = time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC)
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every session on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.MilkCollection{},
		&models.Payment{},
		&models.PaymentCollection{},
	))
	return db
}

func createFarmer(t *testing.T, db *gorm.DB, name, email string) models.User {
	t.Helper()
	u := models.User{Name: name, Email: email, Role: models.RoleFarmer}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func createCollection(t *testing.T, db *gorm.DB, userID uint, quantity string, billed bool, createdAt time.Time) models.MilkCollection {
	t.Helper()
	mc := models.MilkCollection{
		UserID:        userID,
		Quantity:      decimal.RequireFromString(quantity),
		FatPercentage: decimal.RequireFromString("4.2"),
		SNF:           decimal.RequireFromString("8.5"),
		IsBilled:      billed,
		CreatedAt:     createdAt,
	}
	require.NoError(t, db.Create(&mc).Error)
	return mc
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestGenerateBilling_Scenario(t *testing.T) {
	db := newTestDB(t)
	b := NewBilling(db, nil)

	farmerA := createFarmer(t, db, "Rajesh Kumar", "rajesh@farmer.com")
	farmerB := createFarmer(t, db, "Priya Sharma", "priya@farmer.com")

	day := periodStart.Add(24 * time.Hour)
	createCollection(t, db, farmerA.ID, "15.5", false, day)
	createCollection(t, db, farmerA.ID, "18.0", false, day.Add(time.Hour))
	createCollection(t, db, farmerB.ID, "12.0", false, day.Add(2*time.Hour))

	result, err := b.GenerateBilling(context.Background(), BillingInput{
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})
	require.NoError(t, err)
	require.Len(t, result.Payments, 2)

	// Order of first appearance: farmer A collected first.
	pa, pb := result.Payments[0], result.Payments[1]
	assert.Equal(t, farmerA.ID, pa.Farmer.ID)
	assert.Equal(t, "Rajesh Kumar", pa.Farmer.Name)
	assert.True(t, pa.Payment.Amount.Equal(dec("1172.5")), "farmer A amount: %s", pa.Payment.Amount)
	assert.True(t, pa.TotalQuantity.Equal(dec("33.5")), "farmer A quantity: %s", pa.TotalQuantity)
	assert.Equal(t, 2, pa.CollectionsCount)

	assert.Equal(t, farmerB.ID, pb.Farmer.ID)
	assert.True(t, pb.Payment.Amount.Equal(dec("420")), "farmer B amount: %s", pb.Payment.Amount)
	assert.Equal(t, 1, pb.CollectionsCount)

	assert.Equal(t, 2, result.TotalFarmers)
	assert.Equal(t, 3, result.TotalCollections)
	assert.True(t, result.TotalAmount.Equal(dec("1592.5")), "total: %s", result.TotalAmount)
	assert.Equal(t, "base-2024", result.Rate.Version)

	for _, p := range result.Payments {
		assert.Equal(t, models.PaymentPending, p.Payment.Status)
		assert.True(t, p.Payment.PeriodStartDate.Equal(periodStart))
		assert.True(t, p.Payment.PeriodEndDate.Equal(periodEnd))
	}

	var unbilled int64
	require.NoError(t, db.Model(&models.MilkCollection{}).Where("is_billed = ?", false).Count(&unbilled).Error)
	assert.Zero(t, unbilled)

	var links int64
	require.NoError(t, db.Model(&models.PaymentCollection{}).Count(&links).Error)
	assert.EqualValues(t, 3, links)
}

func TestGenerateBilling_JunctionRowsMatchConsumedCollections(t *testing.T) {
	db := newTestDB(t)
	b := NewBilling(db, nil)

	farmer := createFarmer(t, db, "Amit Patel", "amit@farmer.com")
	c1 := createCollection(t, db, farmer.ID, "20.0", false, periodStart.Add(time.Hour))
	c2 := createCollection(t, db, farmer.ID, "22.5", false, periodStart.Add(2*time.Hour))
	outside := createCollection(t, db, farmer.ID, "9.0", false, periodEnd.Add(48*time.Hour))

	result, err := b.GenerateBilling(context.Background(), BillingInput{
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})
	require.NoError(t, err)
	require.Len(t, result.Payments, 1)

	var links []models.PaymentCollection
	require.NoError(t, db.Where("payment_id = ?", result.Payments[0].Payment.ID).Find(&links).Error)
	require.Len(t, links, 2)
	gotIDs := []uint{links[0].MilkCollectionID, links[1].MilkCollectionID}
	assert.ElementsMatch(t, []uint{c1.ID, c2.ID}, gotIDs)

	var stillUnbilled models.MilkCollection
	require.NoError(t, db.First(&stillUnbilled, outside.ID).Error)
	assert.False(t, stillUnbilled.IsBilled)
}

func TestGenerateBilling_BoundaryRejection(t *testing.T) {
	db := newTestDB(t)
	b := NewBilling(db, nil)

	_, err := b.GenerateBilling(context.Background(), BillingInput{
		PeriodStart: time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
	})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "periodStartDate must be before periodEndDate", vErr.Message)
}

func TestGenerateBilling_MissingPeriod(t *testing.T) {
	db := newTestDB(t)
	b := NewBilling(db, nil)

	_, err := b.GenerateBilling(context.Background(), BillingInput{})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "periodStartDate and periodEndDate are required", vErr.Message)
}

func TestGenerateBilling_NonPositiveRate(t *testing.T) {
	db := newTestDB(t)
	b := NewBilling(db, nil)

	for _, rate := range []string{"0", "-5"} {
		r := dec(rate)
		_, err := b.GenerateBilling(context.Background(), BillingInput{
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			Rate:        &r,
		})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr, "rate %s", rate)
		assert.Equal(t, "ratePerLiter must be a positive number", vErr.Message)
	}
}

func TestGenerateBilling_CustomRate(t *testing.T) {
	db := newTestDB(t)
	b := NewBilling(db, nil)

	farmer := createFarmer(t, db, "Rajesh Kumar", "rajesh@farmer.com")
	createCollection(t, db, farmer.ID, "10.0", false, periodStart.Add(time.Hour))

	rate := dec("42.5")
	result, err := b.GenerateBilling(context.Background(), BillingInput{
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Rate:        &rate,
	})
	require.NoError(t, err)
	require.Len(t, result.Payments, 1)
	assert.True(t, result.Payments[0].Payment.Amount.Equal(dec("425")), "amount: %s", result.Payments[0].Payment.Amount)
	assert.Equal(t, "admin-override", result.Payments[0].Payment.RateVersion)
	assert.True(t, result.Payments[0].Payment.RatePerLiter.Equal(rate))
}

func TestGenerateBilling_NoOpIdempotence(t *testing.T) {
	db := newTestDB(t)
	b := NewBilling(db, nil)

	farmer := createFarmer(t, db, "Priya Sharma", "priya@farmer.com")
	createCollection(t, db, farmer.ID, "14.5", false, periodStart.Add(time.Hour))

	in := BillingInput{PeriodStart: periodStart, PeriodEnd: periodEnd}

	first, err := b.GenerateBilling(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, first.Payments, 1)

	second, err := b.GenerateBilling(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, second.Payments)
	assert.Zero(t, second.TotalFarmers)
	assert.Zero(t, second.TotalCollections)
	assert.True(t, second.TotalAmount.IsZero())

	var payments int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&payments).Error)
	assert.EqualValues(t, 1, payments)
}

func TestGenerateBilling_SkipsAlreadyBilled(t *testing.T) {
	db := newTestDB(t)
	b := NewBilling(db, nil)

	farmer := createFarmer(t, db, "Amit Patel", "amit@farmer.com")
	createCollection(t, db, farmer.ID, "20.0", true, periodStart.Add(time.Hour))
	createCollection(t, db, farmer.ID, "19.0", false, periodStart.Add(2*time.Hour))

	result, err := b.GenerateBilling(context.Background(), BillingInput{
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})
	require.NoError(t, err)
	require.Len(t, result.Payments, 1)
	assert.True(t, result.Payments[0].TotalQuantity.Equal(dec("19")), "quantity: %s", result.Payments[0].TotalQuantity)
	assert.Equal(t, 1, result.TotalCollections)
}

func TestGenerateBilling_AtomicityOnMarkBilledFailure(t *testing.T) {
	db := newTestDB(t)
	b := NewBilling(db, nil)

	farmer := createFarmer(t, db, "Rajesh Kumar", "rajesh@farmer.com")
	createCollection(t, db, farmer.ID, "15.5", false, periodStart.Add(time.Hour))
	createCollection(t, db, farmer.ID, "18.0", false, periodStart.Add(2*time.Hour))

	// Fail the billed-flag update after payments have been inserted in the
	// same transaction.
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("force_mark_billed_failure", func(tx *gorm.DB) {
		if tx.Statement != nil && tx.Statement.Table == "milk_collections" {
			tx.AddError(errors.New("storage offline"))
		}
	}))
	defer func() {
		require.NoError(t, db.Callback().Update().Remove("force_mark_billed_failure"))
	}()

	_, err := b.GenerateBilling(context.Background(), BillingInput{
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	})
	var txErr *TransactionFailure
	require.ErrorAs(t, err, &txErr)

	var payments, links, billed int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&payments).Error)
	require.NoError(t, db.Model(&models.PaymentCollection{}).Count(&links).Error)
	require.NoError(t, db.Model(&models.MilkCollection{}).Where("is_billed = ?", true).Count(&billed).Error)
	assert.Zero(t, payments, "no payment may survive the rollback")
	assert.Zero(t, links, "no junction row may survive the rollback")
	assert.Zero(t, billed, "no billed flag may survive the rollback")
}

func TestCommit_FiltersConcurrentlyClaimedRecords(t *testing.T) {
	db := newTestDB(t)
	b := NewBilling(db, nil)

	farmer := createFarmer(t, db, "Priya Sharma", "priya@farmer.com")
	stolen := createCollection(t, db, farmer.ID, "10.0", false, periodStart.Add(time.Hour))
	kept := createCollection(t, db, farmer.ID, "5.0", false, periodStart.Add(2*time.Hour))

	records, err := b.SelectUnbilled(context.Background(), periodStart, periodEnd)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// A concurrent run claims one of the selected rows before our commit.
	require.NoError(t, db.Model(&models.MilkCollection{}).
		Where("id = ?", stolen.ID).
		Update("is_billed", true).Error)

	in := BillingInput{PeriodStart: periodStart, PeriodEnd: periodEnd}
	rate := models.DefaultRatePolicy()
	result := &BillingResult{Payments: []GeneratedPayment{}, TotalAmount: decimal.Zero, PeriodStart: periodStart, PeriodEnd: periodEnd, Rate: rate}
	require.NoError(t, b.commit(context.Background(), in, rate, aggregateByFarmer(records), result))

	require.Len(t, result.Payments, 1)
	assert.True(t, result.Payments[0].Payment.Amount.Equal(dec("175")), "amount: %s", result.Payments[0].Payment.Amount)
	assert.Equal(t, 1, result.TotalCollections)

	var links []models.PaymentCollection
	require.NoError(t, db.Find(&links).Error)
	require.Len(t, links, 1)
	assert.Equal(t, kept.ID, links[0].MilkCollectionID)
}

func TestCommit_AllRecordsClaimedCommitsNothing(t *testing.T) {
	db := newTestDB(t)
	b := NewBilling(db, nil)

	farmer := createFarmer(t, db, "Amit Patel", "amit@farmer.com")
	only := createCollection(t, db, farmer.ID, "20.0", false, periodStart.Add(time.Hour))

	records, err := b.SelectUnbilled(context.Background(), periodStart, periodEnd)
	require.NoError(t, err)
	require.Len(t, records, 1)

	require.NoError(t, db.Model(&models.MilkCollection{}).
		Where("id = ?", only.ID).
		Update("is_billed", true).Error)

	in := BillingInput{PeriodStart: periodStart, PeriodEnd: periodEnd}
	rate := models.DefaultRatePolicy()
	result := &BillingResult{Payments: []GeneratedPayment{}, TotalAmount: decimal.Zero, Rate: rate}
	require.NoError(t, b.commit(context.Background(), in, rate, aggregateByFarmer(records), result))

	assert.Empty(t, result.Payments)

	var payments int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&payments).Error)
	assert.Zero(t, payments)
}

func TestSelectUnbilled_WindowAndFlag(t *testing.T) {
	db := newTestDB(t)
	b := NewBilling(db, nil)

	farmer := createFarmer(t, db, "Rajesh Kumar", "rajesh@farmer.com")
	inWindow := createCollection(t, db, farmer.ID, "11.0", false, periodStart.Add(time.Hour))
	createCollection(t, db, farmer.ID, "12.0", true, periodStart.Add(time.Hour))
	createCollection(t, db, farmer.ID, "13.0", false, periodStart.Add(-48*time.Hour))

	records, err := b.SelectUnbilled(context.Background(), periodStart, periodEnd)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, inWindow.ID, records[0].ID)
	assert.Equal(t, "rajesh@farmer.com", records[0].User.Email)
}

func TestAggregateByFarmer(t *testing.T) {
	recs := []models.MilkCollection{
		{ID: 1, UserID: 7, Quantity: dec("1.5"), User: models.User{ID: 7, Name: "A"}},
		{ID: 2, UserID: 9, Quantity: dec("2.0"), User: models.User{ID: 9, Name: "B"}},
		{ID: 3, UserID: 7, Quantity: dec("0.5"), User: models.User{ID: 7, Name: "A"}},
	}

	aggs := aggregateByFarmer(recs)
	require.Len(t, aggs, 2)
	assert.Equal(t, uint(7), aggs[0].farmer.ID)
	assert.True(t, aggs[0].totalQuantity().Equal(dec("2")))
	assert.Len(t, aggs[0].records, 2)
	assert.Equal(t, uint(9), aggs[1].farmer.ID)
	assert.True(t, aggs[1].totalQuantity().Equal(dec("2")))

	assert.Empty(t, aggregateByFarmer(nil))
}
