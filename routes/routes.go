package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vnkhanh/e-classroom-backend/controllers"
	"github.com/vnkhanh/e-classroom-backend/middleware"
	"github.com/vnkhanh/e-classroom-backend/utils"
	"github.com/vnkhanh/e-classroom-backend/ws"
)

func SetupRouter(r *gin.Engine, db *gorm.DB, store utils.FileStore) *gin.Engine {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/health", middleware.DBMiddleware(db), controllers.HealthCheck)

	api := r.Group("/api")
	api.Use(middleware.DBMiddleware(db), middleware.StorageMiddleware(store))

	auth := api.Group("/auth")
	{
		auth.POST("/register", controllers.Register)
		auth.POST("/login", controllers.Login)
	}

	user := api.Group("/user")
	{
		user.Use(middleware.AuthMiddleware())
		user.GET("/me", controllers.GetMe)
	}

	subject := api.Group("/subject")
	{
		subject.Use(middleware.AuthMiddleware())
		subject.GET("", controllers.GetSubjects)
		subject.GET("/teacher", middleware.RequireRoles("teacher"), controllers.GetSubjectsByTeacher)
		subject.GET("/:id", controllers.GetSubjectDetail)
		subject.POST("", middleware.RequireRoles("teacher"), controllers.CreateSubject)
		subject.PATCH("/:id", middleware.RequireRoles("teacher"), controllers.UpdateSubject)
		subject.DELETE("/:id", middleware.RequireRoles("teacher"), controllers.DeleteSubject)

		// Ghi danh
		subject.GET("/:id/students", middleware.RequireRoles("teacher"), controllers.GetSubjectMembers)
		subject.POST("/:id/enroll", middleware.RequireRoles("student"), controllers.RequestEnrollment)
		subject.POST("/:id/approve", middleware.RequireRoles("teacher"), controllers.ApproveEnrollment)
	}

	assignment := api.Group("/assignment")
	{
		assignment.Use(middleware.AuthMiddleware())
		assignment.GET("", controllers.GetAssignments)
		assignment.GET("/root", middleware.RequireRoles("teacher"), controllers.GetRootAssignments)
		assignment.GET("/working", controllers.GetWorkingAssignments)
		assignment.GET("/:id", controllers.GetAssignment)
		assignment.POST("", middleware.RequireRoles("teacher"), controllers.CreateAssignment)
		assignment.PATCH("/root/:id", middleware.RequireRoles("teacher"), controllers.UpdateRootAssignment)
		assignment.PATCH("/score/:id", middleware.RequireRoles("teacher"), controllers.ScoreAssignment)
		assignment.PATCH("/:id", middleware.RequireRoles("student"), controllers.SubmitAssignment)
		assignment.DELETE("/:id", middleware.RequireRoles("teacher"), controllers.DeleteAssignment)
	}

	r.GET("/ws/status", ws.HandleStatusWebSocket)

	return r
}
