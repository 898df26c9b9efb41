package controllers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/vnkhanh/e-classroom-backend/models"
	"github.com/vnkhanh/e-classroom-backend/utils"
	"github.com/vnkhanh/e-classroom-backend/ws"
)

// POST /api/subject (multipart form: name, picture)
func CreateSubject(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	store := c.MustGet("storage").(utils.FileStore)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "user_id không hợp lệ"})
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Tên môn học bắt buộc"})
		return
	}

	// Trùng tên là conflict, không phải bad request
	var count int64
	db.Model(&models.Subject{}).Where("LOWER(name) = LOWER(?)", name).Count(&count)
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"message": "Tên môn học đã tồn tại"})
		return
	}

	subject := models.Subject{
		Name:      name,
		Slug:      slug.Make(name),
		TeacherID: userUUID,
	}

	if picture, err := c.FormFile("picture"); err == nil {
		publicURL, err := store.UploadFile(picture, "pictures", uuid.New().String())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Lỗi upload ảnh môn học"})
			return
		}
		subject.PictureURL = publicURL
	}

	if err := db.Create(&subject).Error; err != nil {
		// Tên khác nhau vẫn có thể sinh cùng slug ("Toán 1" / "Toan 1"),
		// hoặc hai request trùng tên đua qua bước check ở trên
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"message": "Tên môn học đã tồn tại"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể tạo môn học"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"subject": subject})
}

// GET /api/subject
func GetSubjects(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	var subjects []models.Subject
	if err := db.
		Preload("Teacher", func(db *gorm.DB) *gorm.DB {
			return db.Select("id, name, last_name, email")
		}).
		Order("created_at DESC").
		Find(&subjects).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể lấy danh sách môn học"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"subjects": subjects})
}

// GET /api/subject/teacher - các môn do giáo viên gọi phụ trách
func GetSubjectsByTeacher(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "user_id không hợp lệ"})
		return
	}

	var subjects []models.Subject
	if err := db.
		Where("teacher_id = ?", userUUID).
		Order("created_at DESC").
		Find(&subjects).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể lấy danh sách môn học"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"subjects": subjects})
}

// GET /api/subject/:id
func GetSubjectDetail(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	subjectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "ID không hợp lệ"})
		return
	}

	var subject models.Subject
	if err := db.
		Preload("Teacher", func(db *gorm.DB) *gorm.DB {
			return db.Select("id, name, last_name, email")
		}).
		First(&subject, "id = ?", subjectID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Không tìm thấy môn học"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"subject": subject})
}

// PATCH /api/subject/:id (multipart form: name, picture)
// Trường teacher không bao giờ đọc từ form: môn học không đổi chủ qua update.
func UpdateSubject(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	store := c.MustGet("storage").(utils.FileStore)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "user_id không hợp lệ"})
		return
	}

	subjectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "ID không hợp lệ"})
		return
	}

	var subject models.Subject
	if err := db.First(&subject, "id = ?", subjectID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Không tìm thấy môn học"})
		return
	}
	if subject.TeacherID != userUUID {
		c.JSON(http.StatusForbidden, gin.H{"message": "Bạn không phụ trách môn học này"})
		return
	}

	if name := strings.TrimSpace(c.PostForm("name")); name != "" {
		slugValue := slug.Make(name)
		var count int64
		db.Model(&models.Subject{}).
			Where("(LOWER(name) = LOWER(?) OR slug = ?) AND id <> ?", name, slugValue, subjectID).
			Count(&count)
		if count > 0 {
			c.JSON(http.StatusConflict, gin.H{"message": "Tên môn học đã tồn tại"})
			return
		}
		subject.Name = name
		subject.Slug = slugValue
	}

	if picture, err := c.FormFile("picture"); err == nil {
		// Xóa ảnh cũ best-effort trước khi thay
		if subject.PictureURL != "" {
			if err := store.DeleteFile(subject.PictureURL); err != nil {
				log.Printf("Không xóa được ảnh cũ %s: %v", subject.PictureURL, err)
			}
		}
		publicURL, err := store.UploadFile(picture, "pictures", uuid.New().String())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Lỗi upload ảnh môn học"})
			return
		}
		subject.PictureURL = publicURL
	}

	if err := db.Save(&subject).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Cập nhật môn học thất bại"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cập nhật thành công",
		"subject": subject,
	})
}

type DeleteSubjectInput struct {
	Password string `json:"password" binding:"required"`
}

// DELETE /api/subject/:id
// Yêu cầu giáo viên nhập lại mật khẩu. Xóa mọi bài tập của môn (bản gốc
// lẫn bản sao, kèm dọn file đã nộp), gỡ môn khỏi danh sách ghi danh và
// chờ duyệt của mọi người dùng, rồi xóa môn.
func DeleteSubject(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	store := c.MustGet("storage").(utils.FileStore)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "user_id không hợp lệ"})
		return
	}

	subjectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "ID không hợp lệ"})
		return
	}

	var input DeleteSubjectInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Mật khẩu bắt buộc"})
		return
	}

	var user models.User
	if err := db.First(&user, "id = ?", userUUID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Không tìm thấy người dùng"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Mật khẩu không đúng"})
		return
	}

	var subject models.Subject
	if err := db.First(&subject, "id = ?", subjectID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Không tìm thấy môn học"})
		return
	}
	if subject.TeacherID != userUUID {
		c.JSON(http.StatusForbidden, gin.H{"message": "Bạn không phụ trách môn học này"})
		return
	}

	// Gom URL file của mọi bài tập trong môn trước khi xóa bản ghi
	var fileURLs []string
	if err := db.Model(&models.Assignment{}).
		Where("subject_id = ? AND assignment_url IS NOT NULL", subjectID).
		Pluck("assignment_url", &fileURLs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể lấy danh sách file bài nộp"})
		return
	}
	if subject.PictureURL != "" {
		fileURLs = append(fileURLs, subject.PictureURL)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subject_id = ?", subjectID).Delete(&models.Assignment{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM user_subjects WHERE subject_id = ?", subjectID).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM user_requested_subjects WHERE subject_id = ?", subjectID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Subject{}, "id = ?", subjectID).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể xóa môn học"})
		return
	}

	if len(fileURLs) > 0 {
		go utils.CleanupStorageFiles(store, fileURLs)
	}

	ws.BroadcastAssignmentListChanged()

	c.JSON(http.StatusOK, gin.H{"message": "Đã xóa môn học"})
}

// GET /api/subject/:id/students - giáo viên phụ trách xem học sinh đã ghi danh
// và các yêu cầu đang chờ duyệt (nguồn student_id cho /approve).
func GetSubjectMembers(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "user_id không hợp lệ"})
		return
	}

	subjectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "ID không hợp lệ"})
		return
	}

	var subject models.Subject
	if err := db.First(&subject, "id = ?", subjectID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Không tìm thấy môn học"})
		return
	}
	if subject.TeacherID != userUUID {
		c.JSON(http.StatusForbidden, gin.H{"message": "Bạn không phụ trách môn học này"})
		return
	}

	var students []models.User
	if err := db.
		Joins("JOIN user_subjects ON user_subjects.user_id = users.id").
		Where("user_subjects.subject_id = ? AND users.role = ?", subjectID, models.RoleStudent).
		Order("users.last_name ASC").
		Find(&students).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể lấy danh sách học sinh"})
		return
	}

	var pending []models.User
	if err := db.
		Joins("JOIN user_requested_subjects ON user_requested_subjects.user_id = users.id").
		Where("user_requested_subjects.subject_id = ? AND users.role = ?", subjectID, models.RoleStudent).
		Order("users.last_name ASC").
		Find(&pending).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể lấy danh sách chờ duyệt"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"students":         students,
		"pending_students": pending,
	})
}

// POST /api/subject/:id/enroll - học sinh xin ghi danh, chờ giáo viên duyệt
func RequestEnrollment(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "user_id không hợp lệ"})
		return
	}

	subjectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "ID không hợp lệ"})
		return
	}

	var subject models.Subject
	if err := db.First(&subject, "id = ?", subjectID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Không tìm thấy môn học"})
		return
	}

	var student models.User
	if err := db.First(&student, "id = ?", userUUID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Không tìm thấy người dùng"})
		return
	}

	var enrolled int64
	db.Table("user_subjects").
		Where("user_id = ? AND subject_id = ?", userUUID, subjectID).
		Count(&enrolled)
	if enrolled > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Bạn đã ghi danh môn học này"})
		return
	}

	var pending int64
	db.Table("user_requested_subjects").
		Where("user_id = ? AND subject_id = ?", userUUID, subjectID).
		Count(&pending)
	if pending > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Bạn đã xin ghi danh môn học này rồi"})
		return
	}

	if err := db.Model(&student).Association("RequestedSubjects").Append(&subject); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể ghi nhận yêu cầu"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Đã gửi yêu cầu ghi danh, chờ giáo viên duyệt"})
}

type ApproveEnrollmentInput struct {
	StudentID string `json:"student_id" binding:"required"`
}

// POST /api/subject/:id/approve - giáo viên duyệt học sinh đang chờ.
// Học sinh được duyệt sau khi giao bài sẽ không có bản sao của các bài cũ.
func ApproveEnrollment(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "user_id không hợp lệ"})
		return
	}

	subjectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "ID không hợp lệ"})
		return
	}

	var input ApproveEnrollmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "student_id bắt buộc"})
		return
	}
	studentUUID, err := uuid.Parse(input.StudentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "student_id không hợp lệ"})
		return
	}

	var subject models.Subject
	if err := db.First(&subject, "id = ?", subjectID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Không tìm thấy môn học"})
		return
	}
	if subject.TeacherID != userUUID {
		c.JSON(http.StatusForbidden, gin.H{"message": "Bạn không phụ trách môn học này"})
		return
	}

	var student models.User
	if err := db.First(&student, "id = ? AND role = ?", studentUUID, models.RoleStudent).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Không tìm thấy học sinh"})
		return
	}

	var pending int64
	db.Table("user_requested_subjects").
		Where("user_id = ? AND subject_id = ?", studentUUID, subjectID).
		Count(&pending)
	if pending == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Học sinh chưa xin ghi danh môn học này"})
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			"DELETE FROM user_requested_subjects WHERE user_id = ? AND subject_id = ?",
			studentUUID, subjectID,
		).Error; err != nil {
			return err
		}
		return tx.Model(&student).Association("Subjects").Append(&subject)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể duyệt ghi danh"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Đã duyệt ghi danh"})
}
