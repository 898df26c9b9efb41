package routes

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vnkhanh/e-classroom-backend/config"
	"github.com/vnkhanh/e-classroom-backend/models"
	"github.com/vnkhanh/e-classroom-backend/utils"
)

type nullStore struct{}

func (nullStore) UploadFile(fileHeader *multipart.FileHeader, folder, fileID string) (string, error) {
	return "https://example.test/storage/v1/object/public/uploads/" + folder + "/" + fileID, nil
}

func (nullStore) DeleteFile(publicURL string) error { return nil }

// Đi qua router thật (AuthMiddleware + RequireRoles) thay vì stub:
// học sinh mang JWT hợp lệ không được tạo môn học, và không có bản ghi
// nào lọt vào DB trước khi guard chặn.
func TestSubjectRoutesEnforceTeacherRole(t *testing.T) {
	t.Setenv("JWT_SECRET", "bi-mat-test")
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Subject{}, &models.Assignment{}))

	config.DB = db
	t.Cleanup(func() { config.DB = nil })

	r := SetupRouter(gin.New(), db, nullStore{})

	student := models.User{Name: "An", LastName: "Tran", Email: "an@example.com", Password: "x", Role: models.RoleStudent}
	require.NoError(t, db.Create(&student).Error)
	teacher := models.User{Name: "Lan", LastName: "Nguyen", Email: "lan@example.com", Password: "x", Role: models.RoleTeacher}
	require.NoError(t, db.Create(&teacher).Error)

	studentToken, err := utils.GenerateToken(student.ID.String(), string(student.Role))
	require.NoError(t, err)
	teacherToken, err := utils.GenerateToken(teacher.ID.String(), string(teacher.Role))
	require.NoError(t, err)

	postSubject := func(token, name string) *httptest.ResponseRecorder {
		var b bytes.Buffer
		mw := multipart.NewWriter(&b)
		require.NoError(t, mw.WriteField("name", name))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/subject", &b)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	var count int64

	// Học sinh: 403, một JSON duy nhất, không persist gì
	w := postSubject(studentToken, "Toán 10")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"message":"Bạn không có quyền truy cập tài nguyên này"}`, w.Body.String())
	db.Model(&models.Subject{}).Count(&count)
	assert.Zero(t, count)

	// Không token
	w = postSubject("", "Toán 10")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	db.Model(&models.Subject{}).Count(&count)
	assert.Zero(t, count)

	// Giáo viên qua được guard
	w = postSubject(teacherToken, "Toán 10")
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	db.Model(&models.Subject{}).Count(&count)
	assert.Equal(t, int64(1), count)
}
