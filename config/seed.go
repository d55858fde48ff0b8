package config

import (
	"github.com/NandanNagane/dairy-sys/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SeedDemoData loads the demo cooperative (one admin, three farmers, a mix
// of billed and unbilled collections) into an empty database. Idempotent:
// skips when any user already exists.
func SeedDemoData(db *gorm.DB) error {
	var cnt int64
	if err := db.Model(&models.User{}).Count(&cnt).Error; err != nil {
		return err
	}
	if cnt > 0 {
		return nil
	}

	users := []models.User{
		{Name: "Admin User", Email: "admin@example.com", Role: models.RoleAdmin},
		{Name: "Rajesh Kumar", Email: "farmer@example.com", Role: models.RoleFarmer},
		{Name: "Priya Sharma", Email: "priya@farmer.com", Role: models.RoleFarmer},
		{Name: "Amit Patel", Email: "amit@farmer.com", Role: models.RoleFarmer},
	}
	if err := db.Create(&users).Error; err != nil {
		return err
	}

	qty := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	collections := []models.MilkCollection{
		{UserID: users[1].ID, Quantity: qty("15.5"), FatPercentage: qty("4.2"), SNF: qty("8.5"), IsBilled: true},
		{UserID: users[1].ID, Quantity: qty("18.0"), FatPercentage: qty("4.5"), SNF: qty("8.7"), IsBilled: true},
		{UserID: users[1].ID, Quantity: qty("16.5"), FatPercentage: qty("4.3"), SNF: qty("8.6")},

		{UserID: users[2].ID, Quantity: qty("12.0"), FatPercentage: qty("3.8"), SNF: qty("8.4"), IsBilled: true},
		{UserID: users[2].ID, Quantity: qty("14.5"), FatPercentage: qty("4.0"), SNF: qty("8.5")},

		{UserID: users[3].ID, Quantity: qty("20.0"), FatPercentage: qty("4.6"), SNF: qty("8.8"), IsBilled: true},
		{UserID: users[3].ID, Quantity: qty("22.5"), FatPercentage: qty("4.7"), SNF: qty("8.9"), IsBilled: true},
		{UserID: users[3].ID, Quantity: qty("19.0"), FatPercentage: qty("4.5"), SNF: qty("8.7")},
	}
	return db.Create(&collections).Error
}
