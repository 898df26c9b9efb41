package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ASSIGNMENT (BÀI TẬP)
//
// Bản gốc (root): author là giáo viên ra đề, root_assignment_id = null.
// Bản sao (child): mỗi học sinh một bản, trỏ về bản gốc qua root_assignment_id.
// name / submission_date / remarks lan truyền từ root xuống các bản sao;
// is_submitted / assignment_url thuộc học sinh, score thuộc giáo viên.
type Assignment struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	SubjectID      uuid.UUID `gorm:"type:uuid;not null" json:"subject_id"`
	Subject        Subject   `gorm:"foreignKey:SubjectID;references:ID;constraint:OnDelete:CASCADE;" json:"subject"`
	AuthorID       uuid.UUID `gorm:"type:uuid;not null" json:"author_id"`
	Author         User      `gorm:"foreignKey:AuthorID;references:ID" json:"author"`
	CreationDate   time.Time `gorm:"autoCreateTime" json:"creation_date"`
	SubmissionDate time.Time `gorm:"not null;index" json:"submission_date"` // hạn nộp
	Remarks        string    `gorm:"type:text" json:"remarks"`

	IsSubmitted   bool     `gorm:"default:false" json:"is_submitted"`
	AssignmentURL *string  `gorm:"type:text" json:"assignment_url,omitempty"` // file học sinh đã nộp
	Score         *float64 `gorm:"type:numeric(5,2)" json:"score,omitempty"`

	RootAssignmentID *uuid.UUID `gorm:"type:uuid;index" json:"root_assignment_id,omitempty"`
}

func (a *Assignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// IsRoot cho biết đây có phải bản gốc do giáo viên tạo hay không.
func (a *Assignment) IsRoot() bool {
	return a.RootAssignmentID == nil
}
