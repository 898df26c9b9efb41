package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnkhanh/e-classroom-backend/models"
	"github.com/vnkhanh/e-classroom-backend/utils"
)

func TestRegister(t *testing.T) {
	f := newFixture(t)

	body, contentType := multipartBody(t, map[string]string{
		"name":      "Lan",
		"last_name": "Nguyen",
		"email":     "lan.nguyen@example.com",
		"password":  "matkhau123",
		"role":      "teacher",
	}, "", "", nil)

	w := doRequest(f.engine, http.MethodPost, "/api/auth/register", body, contentType, models.User{})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		User models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.RoleTeacher, resp.User.Role)
	assert.Equal(t, "lan.nguyen@example.com", resp.User.Email)
	// Password không bao giờ xuất hiện trong response
	assert.NotContains(t, w.Body.String(), "matkhau123")

	var stored models.User
	require.NoError(t, f.db.First(&stored, "email = ?", "lan.nguyen@example.com").Error)
	assert.NotEqual(t, "matkhau123", stored.Password)

	// Email trùng
	body, contentType = multipartBody(t, map[string]string{
		"name":      "Lan",
		"last_name": "Khac",
		"email":     "lan.nguyen@example.com",
		"password":  "matkhau456",
	}, "", "", nil)
	w = doRequest(f.engine, http.MethodPost, "/api/auth/register", body, contentType, models.User{})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Mật khẩu quá ngắn
	body, contentType = multipartBody(t, map[string]string{
		"name":      "An",
		"last_name": "Tran",
		"email":     "an.tran@example.com",
		"password":  "12345",
	}, "", "", nil)
	w = doRequest(f.engine, http.MethodPost, "/api/auth/register", body, contentType, models.User{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Role lạ rơi về student
	body, contentType = multipartBody(t, map[string]string{
		"name":      "An",
		"last_name": "Tran",
		"email":     "an.tran@example.com",
		"password":  "matkhau123",
		"role":      "admin",
	}, "", "", nil)
	w = doRequest(f.engine, http.MethodPost, "/api/auth/register", body, contentType, models.User{})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.RoleStudent, resp.User.Role)
}

func TestLogin(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	f := newFixture(t)

	user := createUser(t, f.db, models.RoleStudent, "An", "Tran")

	payload := `{"email":"` + user.Email + `","password":"` + testPassword + `"}`
	w := doRequest(f.engine, http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(payload), "application/json", models.User{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, user.ID.String(), resp.User.ID)
	assert.Equal(t, "student", resp.User.Role)

	// Token login ra phải verify được và mang đúng danh tính
	claims, err := utils.VerifyToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, "student", claims.Role)

	// Sai mật khẩu
	payload = `{"email":"` + user.Email + `","password":"sai-roi"}`
	w = doRequest(f.engine, http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(payload), "application/json", models.User{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Email không tồn tại
	payload = `{"email":"khong.co@example.com","password":"` + testPassword + `"}`
	w = doRequest(f.engine, http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(payload), "application/json", models.User{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetMe(t *testing.T) {
	f := newFixture(t)

	teacher := createUser(t, f.db, models.RoleTeacher, "Lan", "Nguyen")
	subject := createSubject(t, f.db, teacher, "Hình họa")
	student := createUser(t, f.db, models.RoleStudent, "An", "Tran")
	enrollStudent(t, f.db, student, subject)

	w := doRequest(f.engine, http.MethodGet, "/api/user/me", nil, "", student)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		User models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, student.ID, resp.User.ID)
	require.Len(t, resp.User.Subjects, 1)
	assert.Equal(t, subject.ID, resp.User.Subjects[0].ID)
	assert.Empty(t, resp.User.RequestedSubjects)
}
