package routes

import (
	"github.com/NandanNagane/dairy-sys/controllers"
	"github.com/NandanNagane/dairy-sys/middlewares"
	"github.com/NandanNagane/dairy-sys/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func SetupRoutes(r *gin.Engine, db *gorm.DB, log *zap.Logger) {
	billing := service.NewBilling(db, log)
	paymentsSvc := service.NewPayments(db, log)

	paymentCtrl := controllers.NewPaymentController(billing, paymentsSvc, log)
	userCtrl := controllers.NewUserController(db)

	api := r.Group("/api")
	{
		auth := api.Group("/", middlewares.AuthMiddleware())

		payments := auth.Group("/payments")
		{
			payments.POST("/generate-billing", middlewares.AdminOnly(), paymentCtrl.GenerateBilling)
			payments.GET("", paymentCtrl.GetAllPayments)
			payments.GET("/:id", paymentCtrl.GetPaymentByID)
			payments.PATCH("/:id/status", middlewares.AdminOnly(), paymentCtrl.UpdatePaymentStatus)
		}

		auth.GET("/users/:id", middlewares.AdminOnly(), userCtrl.GetUser)
	}
}
