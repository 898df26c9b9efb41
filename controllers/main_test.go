package controllers

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vnkhanh/e-classroom-backend/middleware"
	"github.com/vnkhanh/e-classroom-backend/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// :memory: là mỗi connection một DB riêng, giới hạn về 1
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Subject{},
		&models.Assignment{},
	))
	return db
}

// fakeStore thay cho Supabase trong test, ghi lại các lần upload/delete.
type fakeStore struct {
	mu       sync.Mutex
	uploaded []string
	deleted  []string
}

func (f *fakeStore) UploadFile(fileHeader *multipart.FileHeader, folder, fileID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	url := fmt.Sprintf("https://fake.storage/storage/v1/object/public/uploads/%s/%s", folder, fileID)
	f.uploaded = append(f.uploaded, url)
	return url, nil
}

func (f *fakeStore) DeleteFile(publicURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, publicURL)
	return nil
}

func (f *fakeStore) deletedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// testAuth thay AuthMiddleware: lấy danh tính từ header thay vì JWT.
func testAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", c.GetHeader("X-Test-User"))
		c.Set("role", c.GetHeader("X-Test-Role"))
		c.Next()
	}
}

func newTestRouter(db *gorm.DB, store *fakeStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	api := r.Group("/api", middleware.DBMiddleware(db), middleware.StorageMiddleware(store), testAuth())

	api.POST("/auth/register", Register)
	api.POST("/auth/login", Login)
	api.GET("/user/me", GetMe)

	api.GET("/assignment", GetAssignments)
	api.GET("/assignment/root", GetRootAssignments)
	api.GET("/assignment/working", GetWorkingAssignments)
	api.GET("/assignment/:id", GetAssignment)
	api.POST("/assignment", CreateAssignment)
	api.PATCH("/assignment/root/:id", UpdateRootAssignment)
	api.PATCH("/assignment/score/:id", ScoreAssignment)
	api.PATCH("/assignment/:id", SubmitAssignment)
	api.DELETE("/assignment/:id", DeleteAssignment)

	api.GET("/subject", GetSubjects)
	api.GET("/subject/:id", GetSubjectDetail)
	api.POST("/subject", CreateSubject)
	api.PATCH("/subject/:id", UpdateSubject)
	api.DELETE("/subject/:id", DeleteSubject)
	api.GET("/subject/:id/students", GetSubjectMembers)
	api.POST("/subject/:id/enroll", RequestEnrollment)
	api.POST("/subject/:id/approve", ApproveEnrollment)

	return r
}

// fixture gom DB, store giả và router cho một test case.
type fixture struct {
	engine *gin.Engine
	db     *gorm.DB
	store  *fakeStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := setupTestDB(t)
	store := &fakeStore{}
	return fixture{engine: newTestRouter(db, store), db: db, store: store}
}

const testPassword = "secret123"

func createUser(t *testing.T, db *gorm.DB, role models.UserRole, name, lastName string) models.User {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{
		Name:     name,
		LastName: lastName,
		Email:    fmt.Sprintf("%s.%s@example.com", strings.ToLower(name), uuid.NewString()[:8]),
		Password: string(hashed),
		Role:     role,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createSubject(t *testing.T, db *gorm.DB, teacher models.User, name string) models.Subject {
	t.Helper()

	subject := models.Subject{
		Name:      name,
		Slug:      strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		TeacherID: teacher.ID,
	}
	require.NoError(t, db.Create(&subject).Error)
	return subject
}

func enrollStudent(t *testing.T, db *gorm.DB, student models.User, subject models.Subject) {
	t.Helper()
	require.NoError(t, db.Model(&student).Association("Subjects").Append(&subject))
}

func doRequest(r *gin.Engine, method, path string, body io.Reader, contentType string, as models.User) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Test-User", as.ID.String())
	req.Header.Set("X-Test-Role", string(as.Role))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, fileContent []byte) (*bytes.Buffer, string) {
	t.Helper()

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write(fileContent)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &b, w.FormDataContentType()
}
