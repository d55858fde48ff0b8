package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/NandanNagane/dairy-sys/models"
	"github.com/NandanNagane/dairy-sys/service"
	"github.com/NandanNagane/dairy-sys/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PaymentController struct {
	billing  *service.Billing
	payments *service.Payments
	log      *zap.Logger
}

func NewPaymentController(billing *service.Billing, payments *service.Payments, log *zap.Logger) *PaymentController {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentController{billing: billing, payments: payments, log: log.Named("payment_controller")}
}

// GenerateBillingInput is the canonical billing request body. The legacy
// startDate/endDate spellings used by an older frontend are still accepted
// but are folded into the canonical fields right here, never deeper.
type GenerateBillingInput struct {
	PeriodStartDate string   `json:"periodStartDate"`
	PeriodEndDate   string   `json:"periodEndDate"`
	RatePerLiter    *float64 `json:"ratePerLiter"`

	// legacy spellings
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

func (in *GenerateBillingInput) normalize() {
	if in.PeriodStartDate == "" {
		in.PeriodStartDate = in.StartDate
	}
	if in.PeriodEndDate == "" {
		in.PeriodEndDate = in.EndDate
	}
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// GenerateBilling is the admin billing trigger: aggregates all unbilled
// collections in the period into per-farmer PENDING payments.
func (pc *PaymentController) GenerateBilling(c *gin.Context) {
	var in GenerateBillingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	in.normalize()

	start, err := parseDate(in.PeriodStartDate)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "periodStartDate must be a valid date", err)
		return
	}
	end, err := parseDate(in.PeriodEndDate)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "periodEndDate must be a valid date", err)
		return
	}

	input := service.BillingInput{PeriodStart: start, PeriodEnd: end}
	if in.RatePerLiter != nil {
		rate := decimal.NewFromFloat(*in.RatePerLiter)
		input.Rate = &rate
	}

	result, err := pc.billing.GenerateBilling(c.Request.Context(), input)
	if err != nil {
		pc.respondError(c, err, "Failed to generate billing")
		return
	}

	summary := gin.H{
		"total_farmers":     result.TotalFarmers,
		"total_collections": result.TotalCollections,
		"total_amount":      result.TotalAmount,
		"period_start_date": result.PeriodStart,
		"period_end_date":   result.PeriodEnd,
		"rate_per_liter":    result.Rate.RatePerLiter,
		"rate_version":      result.Rate.Version,
	}

	if len(result.Payments) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"message":            "No unbilled milk collections found for the specified period",
			"payments_generated": result.Payments,
			"summary":            summary,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":            fmt.Sprintf("Successfully generated %d payment records", len(result.Payments)),
		"payments_generated": result.Payments,
		"summary":            summary,
	})
}

// GetAllPayments lists payments. Farmers are pinned to their own records;
// admins may filter by any farmer.
func (pc *PaymentController) GetAllPayments(c *gin.Context) {
	filter := service.PaymentFilter{
		Status:    c.Query("status"),
		SortBy:    c.DefaultQuery("sortBy", "createdAt"),
		SortOrder: c.DefaultQuery("sortOrder", "desc"),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))

	if s := c.Query("startDate"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			utils.Error(c, http.StatusBadRequest, "startDate must be a valid date", err)
			return
		}
		filter.StartDate = &t
	}
	if s := c.Query("endDate"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			utils.Error(c, http.StatusBadRequest, "endDate must be a valid date", err)
			return
		}
		filter.EndDate = &t
	}

	if isAdmin(c) {
		if s := c.Query("userId"); s != "" {
			id, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				utils.Error(c, http.StatusBadRequest, "userId must be a number", err)
				return
			}
			filter.UserID = uint(id)
		}
	} else {
		uid, err := currentUserID(c)
		if err != nil {
			utils.Error(c, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}
		filter.UserID = uid
	}

	list, err := pc.payments.List(c.Request.Context(), filter)
	if err != nil {
		pc.respondError(c, err, "Failed to fetch payments")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (pc *PaymentController) GetPaymentByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "id must be a number", err)
		return
	}

	payment, err := pc.payments.Get(c.Request.Context(), uint(id))
	if err != nil {
		pc.respondError(c, err, "Failed to fetch payment")
		return
	}

	if !isAdmin(c) {
		uid, err := currentUserID(c)
		if err != nil || payment.UserID != uid {
			utils.Error(c, http.StatusForbidden, "Access denied", nil)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

type UpdatePaymentStatusInput struct {
	Status string `json:"status" binding:"required"`
}

func (pc *PaymentController) UpdatePaymentStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "id must be a number", err)
		return
	}

	var in UpdatePaymentStatusInput
	if err := c.ShouldBindJSON(&in); err != nil {
		utils.Error(c, http.StatusBadRequest, "status is required", err)
		return
	}

	payment, err := pc.payments.UpdateStatus(c.Request.Context(), uint(id), models.PaymentStatus(in.Status))
	if err != nil {
		pc.respondError(c, err, "Failed to update payment status")
		return
	}

	utils.Success(c, "Payment status updated successfully", payment)
}

// respondError maps the service error taxonomy onto HTTP statuses. Store
// errors never leak details to the client.
func (pc *PaymentController) respondError(c *gin.Context, err error, fallback string) {
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		utils.Error(c, http.StatusBadRequest, vErr.Message, nil)
		return
	}
	var nfErr *service.NotFoundError
	if errors.As(err, &nfErr) {
		utils.Error(c, http.StatusNotFound, nfErr.Error(), nil)
		return
	}
	pc.log.Error(fallback, zap.Error(err))
	utils.Error(c, http.StatusInternalServerError, fallback, nil)
}
