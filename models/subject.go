package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Subject struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string    `gorm:"size:255;not null;unique" json:"name"`
	Slug       string    `gorm:"size:255;uniqueIndex" json:"slug"` // slug cho URL thân thiện
	TeacherID  uuid.UUID `gorm:"type:uuid;not null" json:"teacher_id"`
	Teacher    User      `gorm:"foreignKey:TeacherID;references:ID" json:"teacher"`
	PictureURL string    `gorm:"type:text" json:"picture_url"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Subject) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
