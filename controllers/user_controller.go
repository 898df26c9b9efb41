package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vnkhanh/e-classroom-backend/models"
)

// GET /api/user/me - hồ sơ kèm môn đã ghi danh và môn đang chờ duyệt
func GetMe(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "user_id không hợp lệ"})
		return
	}

	var user models.User
	if err := db.
		Preload("Subjects").
		Preload("RequestedSubjects").
		First(&user, "id = ?", userUUID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Không tìm thấy người dùng"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}
