package main

import (
	"github.com/NandanNagane/dairy-sys/config"
	"github.com/NandanNagane/dairy-sys/models"
	"github.com/NandanNagane/dairy-sys/routes"
	"github.com/NandanNagane/dairy-sys/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log := utils.MustLogger(utils.NewLogger())
	defer func() { _ = log.Sync() }()

	utils.SetSecret(cfg.JWTSecret)

	db, err := config.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.MilkCollection{},
		&models.Payment{},
		&models.PaymentCollection{},
	); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	if cfg.SeedDB {
		if err := config.SeedDemoData(db); err != nil {
			log.Fatal("seeding failed", zap.Error(err))
		}
		log.Info("demo data seeded")
	}

	r := gin.Default()
	routes.SetupRoutes(r, db, log)

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "Dairy cooperative API is running"})
	})

	log.Info("listening", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
