package models

import (
	"time"

	"gorm.io/datatypes"
)

// Assessment is a graded quiz or exam made of ordered questions.
type Assessment struct {
	ID            uint                 `gorm:"primaryKey" json:"id"`
	Title         string               `gorm:"size:255;not null" json:"title"`
	Description   string               `gorm:"type:text" json:"description"`
	RetakeAllowed bool                 `gorm:"not null;default:false" json:"retake_allowed"`
	CreatedBy     *uint                `json:"created_by"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	Questions     []AssessmentQuestion `gorm:"foreignKey:AssessmentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions"`
}

// Question is a reusable question-bank entry.
type Question struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Type           string         `gorm:"size:32;not null" json:"type"`
	Prompt         string         `gorm:"type:text" json:"prompt"`
	Marks          int            `gorm:"not null" json:"marks"`
	Difficulty     string         `gorm:"size:32" json:"difficulty"`
	Payload        datatypes.JSON `gorm:"type:json" json:"payload"`
	OrganizationID *uint          `gorm:"index" json:"organization_id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// AssessmentQuestion places a question at a position inside an assessment.
// It either references a bank question or carries an inline definition.
type AssessmentQuestion struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	AssessmentID  uint           `gorm:"not null;index" json:"assessment_id"`
	QuestionID    *uint          `json:"question_id"`
	OrderPosition int            `gorm:"not null" json:"order_position"`
	Type          string         `gorm:"size:32" json:"type"`
	Prompt        string         `gorm:"type:text" json:"prompt"`
	Marks         int            `json:"marks"`
	Payload       datatypes.JSON `gorm:"type:json" json:"payload"`
	Question      *Question      `gorm:"foreignKey:QuestionID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"question,omitempty"`
}

// Definition returns the effective type, prompt, marks and payload, preferring
// the bank question when one is linked and loaded.
func (q AssessmentQuestion) Definition() (string, string, int, datatypes.JSON) {
	if q.Question != nil {
		return q.Question.Type, q.Question.Prompt, q.Question.Marks, q.Question.Payload
	}
	return q.Type, q.Prompt, q.Marks, q.Payload
}
