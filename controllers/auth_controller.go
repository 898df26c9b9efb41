package controllers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/vnkhanh/e-classroom-backend/models"
	"github.com/vnkhanh/e-classroom-backend/utils"
)

// POST /api/auth/register (multipart form: name, last_name, email, password, role, avatar)
func Register(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	store := c.MustGet("storage").(utils.FileStore)

	name := strings.TrimSpace(c.PostForm("name"))
	lastName := strings.TrimSpace(c.PostForm("last_name"))
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")

	if name == "" || lastName == "" || email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "name, last_name và email bắt buộc"})
		return
	}
	if len(password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Mật khẩu tối thiểu 6 ký tự"})
		return
	}

	role := models.RoleStudent
	if c.PostForm("role") == string(models.RoleTeacher) {
		role = models.RoleTeacher
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể mã hoá mật khẩu"})
		return
	}

	newUser := models.User{
		Name:     name,
		LastName: lastName,
		Email:    email,
		Password: string(hashed),
		Role:     role,
	}

	if avatar, err := c.FormFile("avatar"); err == nil {
		publicURL, err := store.UploadFile(avatar, "avatars", uuid.New().String())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Lỗi upload avatar"})
			return
		}
		newUser.AvatarURL = publicURL
	}

	if err := db.Create(&newUser).Error; err != nil {
		// Avatar đã upload cho một tài khoản không tạo được: dọn best-effort
		if newUser.AvatarURL != "" {
			if derr := store.DeleteFile(newUser.AvatarURL); derr != nil {
				log.Printf("Không xóa được avatar %s: %v", newUser.AvatarURL, derr)
			}
		}
		// Không SELECT trước rồi INSERT sau: hai request trùng email cùng lúc
		// sẽ đua nhau; unique index mới là trọng tài.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"message": "Email đã được sử dụng"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Lỗi khi tạo người dùng"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": newUser})
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// POST /api/auth/login
func Login(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email và mật khẩu bắt buộc"})
		return
	}

	var user models.User
	if err := db.Where("email = ?", input.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Email hoặc mật khẩu không đúng"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Email hoặc mật khẩu không đúng"})
		return
	}

	// Sinh JWT (truyền ID dạng string và Role)
	token, err := utils.GenerateToken(user.ID.String(), string(user.Role))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể tạo token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":         user.ID,
			"email":      user.Email,
			"name":       user.Name,
			"last_name":  user.LastName,
			"avatar_url": user.AvatarURL,
			"role":       user.Role,
		},
	})
}
