package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string

const (
	RoleTeacher UserRole = "teacher" // Giáo viên (quản lý môn học, bài tập)
	RoleStudent UserRole = "student" // Học sinh
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"size:150;not null" json:"name"`
	LastName     string    `gorm:"size:150;not null" json:"last_name"` // họ, dùng làm khóa sắp xếp phụ
	Email        string    `gorm:"size:150;uniqueIndex;not null" json:"email"`
	Password     string    `gorm:"type:text;not null" json:"-"`
	AvatarURL    string    `gorm:"type:text" json:"avatar_url"`
	Role         UserRole  `gorm:"type:varchar(20);not null;default:'student'" json:"role"`
	CreationDate time.Time `gorm:"autoCreateTime" json:"creation_date"`

	// Quan hệ
	Subjects          []Subject `gorm:"many2many:user_subjects;" json:"subjects"`                     // môn đã ghi danh (hoặc phụ trách)
	RequestedSubjects []Subject `gorm:"many2many:user_requested_subjects;" json:"requested_subjects"` // môn đang chờ duyệt
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
