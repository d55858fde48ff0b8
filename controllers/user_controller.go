package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/NandanNagane/dairy-sys/models"
	"github.com/NandanNagane/dairy-sys/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserController covers the farmer-identity lookup consumed by billing
// responses. Full user management lives elsewhere.
type UserController struct {
	db *gorm.DB
}

func NewUserController(db *gorm.DB) *UserController {
	return &UserController{db: db}
}

func (uc *UserController) GetUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "id must be a number", err)
		return
	}

	var user models.User
	err = uc.db.WithContext(c.Request.Context()).First(&user, uint(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(c, http.StatusNotFound, "User not found", nil)
		return
	}
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, "Failed to fetch user", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": gin.H{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
		"role":  user.Role,
	}})
}
