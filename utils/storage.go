package utils

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	storage "github.com/supabase-community/storage-go"
)

// FileStore là collaborator lưu trữ file (bài nộp, ảnh môn học, avatar).
// Client được tạo một lần trong main và truyền xuống qua middleware,
// không dùng biến toàn cục.
type FileStore interface {
	UploadFile(fileHeader *multipart.FileHeader, folder, fileID string) (string, error)
	DeleteFile(publicURL string) error
}

type StorageClient struct {
	baseURL string
	apiKey  string
	client  *storage.Client
}

func NewStorageClient() *StorageClient {
	supabaseURL := strings.TrimRight(os.Getenv("SUPABASE_URL"), "/")
	supabaseKey := os.Getenv("SUPABASE_KEY")

	return &StorageClient{
		baseURL: supabaseURL,
		apiKey:  supabaseKey,
		client:  storage.NewClient(supabaseURL+"/storage/v1", supabaseKey, nil),
	}
}

// UploadFile đẩy file lên bucket 'uploads', path: <folder>/<fileID>.<ext>
// và trả về public URL của object.
func (s *StorageClient) UploadFile(fileHeader *multipart.FileHeader, folder, fileID string) (string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	ext := filepath.Ext(fileHeader.Filename)
	objectPath := fmt.Sprintf("%s/%s%s", folder, fileID, ext)

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		return "", err
	}

	contentType := fileHeader.Header.Get("Content-Type")
	options := storage.FileOptions{
		ContentType: &contentType,
	}

	if _, err := s.client.UploadFile("uploads", objectPath, &buf, options); err != nil {
		return "", err
	}

	publicURL := fmt.Sprintf("%s/storage/v1/object/public/uploads/%s", s.baseURL, objectPath)
	return publicURL, nil
}

// DeleteFile nhận public URL chứa "/storage/v1/object/" và gọi API
// Supabase Storage để xóa object tương ứng.
func (s *StorageClient) DeleteFile(publicURL string) error {
	if publicURL == "" {
		return nil
	}
	if s.baseURL == "" || s.apiKey == "" {
		return fmt.Errorf("SUPABASE_URL hoặc SUPABASE_KEY chưa cấu hình")
	}

	// Tìm phần "/storage/v1/object/" trong URL
	idx := strings.Index(publicURL, "/storage/v1/object/")
	if idx == -1 {
		return fmt.Errorf("không xác định được đường dẫn object trong URL: %s", publicURL)
	}

	rest := publicURL[idx+len("/storage/v1/object/"):]
	// Luôn bỏ prefix "public/" nếu có
	rest = strings.TrimPrefix(rest, "public/")

	// rest => "<bucket>/<path/to/object...>"
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) < 2 {
		return fmt.Errorf("không parse được bucket/object từ URL: %s", publicURL)
	}
	bucket := parts[0]
	object := parts[1]
	// bỏ query params nếu có
	if qIdx := strings.Index(object, "?"); qIdx != -1 {
		object = object[:qIdx]
	}
	if u, err := url.PathUnescape(object); err == nil {
		object = u
	}

	deleteURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, bucket, object)

	req, err := http.NewRequest("DELETE", deleteURL, nil)
	if err != nil {
		return err
	}
	// Supabase expects Authorization: Bearer <SERVICE_KEY> and apikey header
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("apikey", s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	// Supabase trả 200 hoặc 204 khi xóa thành công
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("xóa file Supabase thất bại: status=%d body=%s", resp.StatusCode, string(body))
	}
	return nil
}
