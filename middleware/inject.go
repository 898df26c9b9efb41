package middleware

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vnkhanh/e-classroom-backend/utils"
)

func DBMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("db", db)
		c.Next()
	}
}

// StorageMiddleware đưa storage client (tạo một lần trong main) vào context.
func StorageMiddleware(store utils.FileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("storage", store)
		c.Next()
	}
}
