package utils

import "log"

// CleanupStorageFiles xóa best-effort các file đã lưu trên storage.
// Lỗi chỉ được log, không bao giờ làm hỏng request đã gọi nó; với các
// cascade delete, hàm này được gọi trong goroutine sau khi transaction commit.
func CleanupStorageFiles(store FileStore, urls []string) {
	for _, u := range urls {
		if u == "" {
			continue
		}
		if err := store.DeleteFile(u); err != nil {
			log.Printf("Không xóa được file %s: %v", u, err)
			continue
		}
		log.Printf("Đã xóa file %s", u)
	}
}
