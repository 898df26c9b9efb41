package controllers

import (
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vnkhanh/e-classroom-backend/models"
	"github.com/vnkhanh/e-classroom-backend/utils"
	"github.com/vnkhanh/e-classroom-backend/ws"
)

// parseSubmissionDate chấp nhận RFC3339 hoặc dạng ngắn "2006-01-02"
func parseSubmissionDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// ==================== TRUY VẤN ====================

// GET /api/assignment
// Trả về các bài tập liên quan tới người gọi: bài của chính mình,
// hoặc mọi bài thuộc môn mà người gọi là giáo viên phụ trách.
func GetAssignments(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "user_id không hợp lệ"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	query := db.Model(&models.Assignment{}).
		Joins("JOIN subjects ON subjects.id = assignments.subject_id").
		Where("assignments.author_id = ? OR subjects.teacher_id = ?", userUUID, userUUID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể đếm tổng số bài tập"})
		return
	}

	var assignments []models.Assignment
	if err := query.
		Preload("Author").
		Preload("Subject").
		Order("assignments.submission_date DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&assignments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể lấy danh sách bài tập"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"assignments": assignments,
		"total_count": total,
	})
}

// GET /api/assignment/root?subject_id=...
// Danh sách bản gốc do giáo viên gọi tạo cho một môn, sắp theo hạn nộp.
func GetRootAssignments(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "user_id không hợp lệ"})
		return
	}

	subjectID, err := uuid.Parse(c.Query("subject_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "subject_id bắt buộc"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	query := db.Model(&models.Assignment{}).
		Where("subject_id = ? AND author_id = ? AND root_assignment_id IS NULL", subjectID, userUUID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể đếm tổng số bài tập"})
		return
	}

	var assignments []models.Assignment
	if err := query.
		Preload("Subject").
		Order("submission_date ASC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&assignments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể lấy danh sách bài tập"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"assignments": assignments,
		"total_count": total,
	})
}

// GET /api/assignment/working?subject_id=...&sort=asc|desc
// Học sinh: bản sao của chính mình trong môn, lọc theo submitted=true|false.
// Giáo viên: mọi bản sao trong môn, lọc theo scored=true|false.
// Sắp theo hạn nộp, khóa phụ là họ của học sinh.
func GetWorkingAssignments(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	role := c.GetString("role")

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "user_id không hợp lệ"})
		return
	}

	subjectID, err := uuid.Parse(c.Query("subject_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "subject_id bắt buộc"})
		return
	}

	var subject models.Subject
	if err := db.First(&subject, "id = ?", subjectID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Không tìm thấy môn học"})
		return
	}

	dir := "ASC"
	if c.DefaultQuery("sort", "asc") == "desc" {
		dir = "DESC"
	}

	query := db.Model(&models.Assignment{}).
		Joins("JOIN users ON users.id = assignments.author_id").
		Where("assignments.subject_id = ? AND assignments.root_assignment_id IS NOT NULL", subjectID)

	if role == string(models.RoleStudent) {
		query = query.Where("assignments.author_id = ?", userUUID)
		switch c.Query("submitted") {
		case "true":
			query = query.Where("assignments.is_submitted = ?", true)
		case "false":
			query = query.Where("assignments.is_submitted = ?", false)
		}
	} else {
		// Điểm số và bài nộp chỉ dành cho giáo viên phụ trách môn
		if subject.TeacherID != userUUID {
			c.JSON(http.StatusForbidden, gin.H{"message": "Bạn không phụ trách môn học này"})
			return
		}
		switch c.Query("scored") {
		case "true":
			query = query.Where("assignments.score IS NOT NULL")
		case "false":
			query = query.Where("assignments.score IS NULL")
		}
	}

	var assignments []models.Assignment
	if err := query.
		Preload("Author").
		Preload("Subject").
		Order("assignments.submission_date " + dir).
		Order("users.last_name ASC").
		Find(&assignments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể lấy danh sách bài tập"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"assignments": assignments,
		"total_count": len(assignments),
	})
}

// GET /api/assignment/:id
func GetAssignment(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "ID không hợp lệ"})
		return
	}

	var assignment models.Assignment
	if err := db.
		Preload("Author").
		Preload("Subject").
		First(&assignment, "id = ?", assignmentID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Không tìm thấy bài tập"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"assignment": assignment})
}

// ==================== GIAO BÀI (FAN-OUT) ====================

// POST /api/assignment (multipart form: name, subject, submission_date, remarks)
//
// Tạo một bản gốc do giáo viên sở hữu và một bản sao cho mỗi học sinh
// đang ghi danh tại thời điểm giao bài (snapshot - học sinh ghi danh sau
// không nhận được bài). Toàn bộ chạy trong một transaction: hoặc đủ
// 1 root + n bản sao, hoặc không có gì.
func CreateAssignment(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "user_id không hợp lệ"})
		return
	}

	name := c.PostForm("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Tên bài tập bắt buộc"})
		return
	}

	subjectID, err := uuid.Parse(c.PostForm("subject"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "subject không hợp lệ"})
		return
	}

	submissionDate, err := parseSubmissionDate(c.PostForm("submission_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "submission_date không hợp lệ"})
		return
	}

	remarks := c.PostForm("remarks")

	var subject models.Subject
	if err := db.First(&subject, "id = ?", subjectID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Không tìm thấy môn học"})
		return
	}
	if subject.TeacherID != userUUID {
		c.JSON(http.StatusForbidden, gin.H{"message": "Bạn không phụ trách môn học này"})
		return
	}

	// Snapshot học sinh đang ghi danh tại thời điểm giao bài
	var students []models.User
	if err := db.
		Joins("JOIN user_subjects ON user_subjects.user_id = users.id").
		Where("user_subjects.subject_id = ? AND users.role = ?", subjectID, models.RoleStudent).
		Find(&students).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể lấy danh sách học sinh"})
		return
	}

	root := models.Assignment{
		Name:           name,
		SubjectID:      subjectID,
		AuthorID:       userUUID,
		SubmissionDate: submissionDate,
		Remarks:        remarks,
	}

	nbCreated := 0
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&root).Error; err != nil {
			return err
		}
		for _, student := range students {
			child := models.Assignment{
				Name:             name,
				SubjectID:        subjectID,
				AuthorID:         student.ID,
				SubmissionDate:   submissionDate,
				Remarks:          remarks,
				RootAssignmentID: &root.ID,
			}
			if err := tx.Create(&child).Error; err != nil {
				return err
			}
			nbCreated++
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể giao bài tập"})
		return
	}

	ws.BroadcastAssignmentListChanged()

	// Báo mail cho học sinh, chỉ khi đã cấu hình SMTP
	if os.Getenv("SMTP_EMAIL") != "" {
		for _, student := range students {
			go func(to string) {
				if err := utils.NotifyNewAssignment(to, subject.Name, root.Name, root.SubmissionDate); err != nil {
					log.Printf("Không gửi được mail cho %s: %v", to, err)
				}
			}(student.Email)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"assignment":                root,
		"nb_of_assignments_created": nbCreated,
	})
}

// ==================== CẬP NHẬT LAN TRUYỀN ====================

type UpdateRootInput struct {
	Name           *string `json:"name"`
	SubmissionDate *string `json:"submission_date"`
	Remarks        *string `json:"remarks"`
	// root_assignment_id là bất biến: client có gửi cũng bị loại bỏ,
	// không bao giờ được áp dụng.
	RootAssignmentID *string `json:"root_assignment_id"`
}

// PATCH /api/assignment/root/:id
// Áp cùng thay đổi {name, submission_date, remarks} cho bản gốc và mọi
// bản sao; các trường của học sinh / điểm số không bị đụng tới.
func UpdateRootAssignment(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "user_id không hợp lệ"})
		return
	}

	rootID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "ID không hợp lệ"})
		return
	}

	var input UpdateRootInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Dữ liệu không hợp lệ"})
		return
	}

	var root models.Assignment
	if err := db.First(&root, "id = ?", rootID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Không tìm thấy bài tập"})
		return
	}
	if !root.IsRoot() {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Bài tập này không phải bản gốc"})
		return
	}
	if root.AuthorID != userUUID {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Bạn không phải người giao bài tập này"})
		return
	}

	// Allow-list: chỉ các trường chung mới được lan truyền
	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.SubmissionDate != nil {
		t, err := parseSubmissionDate(*input.SubmissionDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "submission_date không hợp lệ"})
			return
		}
		updates["submission_date"] = t
	}
	if input.Remarks != nil {
		updates["remarks"] = *input.Remarks
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Không có trường hợp lệ để cập nhật"})
		return
	}

	var childrenUpdated int64
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Assignment{}).Where("id = ?", root.ID).Updates(updates).Error; err != nil {
			return err
		}
		result := tx.Model(&models.Assignment{}).Where("root_assignment_id = ?", root.ID).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		childrenUpdated = result.RowsAffected
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể cập nhật bài tập"})
		return
	}

	if err := db.Preload("Subject").First(&root, "id = ?", root.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể tải lại dữ liệu sau khi cập nhật"})
		return
	}

	ws.BroadcastAssignmentListChanged()

	c.JSON(http.StatusOK, gin.H{
		"assignment":       root,
		"children_updated": childrenUpdated,
	})
}

// ==================== HỌC SINH NỘP BÀI ====================

// PATCH /api/assignment/:id (multipart form: file, is_submitted)
// Chỉ học sinh sở hữu bản sao mới được nộp. File nộp trước đó (nếu có)
// được yêu cầu xóa best-effort trước khi ghi đè.
func SubmitAssignment(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	store := c.MustGet("storage").(utils.FileStore)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "user_id không hợp lệ"})
		return
	}

	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "ID không hợp lệ"})
		return
	}

	var assignment models.Assignment
	if err := db.First(&assignment, "id = ?", assignmentID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Không tìm thấy bài tập"})
		return
	}
	if assignment.IsRoot() {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Không thể nộp bài trên bản gốc"})
		return
	}
	if assignment.AuthorID != userUUID {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Bạn không phải chủ của bài tập này"})
		return
	}

	if file, err := c.FormFile("file"); err == nil {
		// Xóa file cũ trước khi ghi đè: best-effort, lỗi chỉ được log
		if assignment.AssignmentURL != nil {
			if err := store.DeleteFile(*assignment.AssignmentURL); err != nil {
				log.Printf("Không xóa được file cũ %s: %v", *assignment.AssignmentURL, err)
			}
		}

		publicURL, err := store.UploadFile(file, "submissions", uuid.New().String())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Lỗi upload file bài nộp"})
			return
		}
		assignment.AssignmentURL = &publicURL
		assignment.IsSubmitted = true
	}

	switch c.PostForm("is_submitted") {
	case "true":
		assignment.IsSubmitted = true
	case "false":
		assignment.IsSubmitted = false
	}

	if err := db.Save(&assignment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể cập nhật bài nộp"})
		return
	}

	ws.BroadcastAssignmentListChanged()

	c.JSON(http.StatusOK, gin.H{"assignment": assignment})
}

// ==================== GIÁO VIÊN CHẤM ĐIỂM ====================

type ScoreInput struct {
	Score *float64 `json:"score" binding:"required"`
}

// PATCH /api/assignment/score/:id
// Chỉ giáo viên phụ trách môn của bài tập mới được chấm; ngoài score
// không trường nào khác thay đổi qua đường này.
func ScoreAssignment(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "user_id không hợp lệ"})
		return
	}

	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "ID không hợp lệ"})
		return
	}

	var input ScoreInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "score bắt buộc"})
		return
	}

	var assignment models.Assignment
	if err := db.Preload("Subject").First(&assignment, "id = ?", assignmentID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Không tìm thấy bài tập"})
		return
	}
	if assignment.IsRoot() {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Không thể chấm điểm bản gốc"})
		return
	}
	if assignment.Subject.TeacherID != userUUID {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Bạn không phụ trách môn học của bài tập này"})
		return
	}

	if err := db.Model(&assignment).Update("score", *input.Score).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể chấm điểm"})
		return
	}

	ws.BroadcastAssignmentListChanged()

	c.JSON(http.StatusOK, gin.H{"assignment": assignment})
}

// ==================== XÓA LAN TRUYỀN ====================

// DELETE /api/assignment/:id
// Xóa bản gốc kèm toàn bộ bản sao trong một transaction; file đã nộp
// của các bản sao được dọn best-effort sau khi commit. Idempotent:
// xóa một id không còn tồn tại vẫn trả kết quả "đã xóa" với 0 bản ghi.
func DeleteAssignment(c *gin.Context) {
	db := c.MustGet("db").(*gorm.DB)
	store := c.MustGet("storage").(utils.FileStore)

	userUUID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "user_id không hợp lệ"})
		return
	}

	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "ID không hợp lệ"})
		return
	}

	var assignment models.Assignment
	if err := db.Preload("Subject").First(&assignment, "id = ?", assignmentID).Error; err != nil {
		// Đã bị xóa từ trước: vẫn là kết quả "đã xóa".
		// Lỗi khác (mất kết nối DB...) không được nhầm thành not-found.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, gin.H{
				"message":                   "Đã xóa bài tập",
				"nb_of_assignments_deleted": 0,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể xóa bài tập"})
		return
	}
	if assignment.Subject.TeacherID != userUUID {
		c.JSON(http.StatusForbidden, gin.H{"message": "Bạn không phụ trách môn học của bài tập này"})
		return
	}

	var children []models.Assignment
	if assignment.IsRoot() {
		if err := db.Where("root_assignment_id = ?", assignment.ID).Find(&children).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể lấy danh sách bản sao"})
			return
		}
	}

	// Gom URL file trước khi xóa bản ghi
	var fileURLs []string
	for _, child := range children {
		if child.AssignmentURL != nil {
			fileURLs = append(fileURLs, *child.AssignmentURL)
		}
	}
	if assignment.AssignmentURL != nil {
		fileURLs = append(fileURLs, *assignment.AssignmentURL)
	}

	var nbDeleted int64
	err = db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("root_assignment_id = ?", assignment.ID).Delete(&models.Assignment{})
		if result.Error != nil {
			return result.Error
		}
		nbDeleted = result.RowsAffected

		result = tx.Delete(&models.Assignment{}, "id = ?", assignment.ID)
		if result.Error != nil {
			return result.Error
		}
		nbDeleted += result.RowsAffected
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Không thể xóa bài tập"})
		return
	}

	// Dọn file sau khi commit, tách khỏi response của request
	if len(fileURLs) > 0 {
		go utils.CleanupStorageFiles(store, fileURLs)
	}

	ws.BroadcastAssignmentListChanged()

	c.JSON(http.StatusOK, gin.H{
		"message":                   "Đã xóa bài tập",
		"nb_of_assignments_deleted": nbDeleted,
	})
}
