package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Content hierarchy: boards -> exams -> subjects -> question papers ->
// questions. Owned by the content service; read-only here.

type Board struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"not null;size:200"`
	Slug string `json:"slug" gorm:"uniqueIndex;size:200"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Exam struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	BoardID uint   `json:"board_id" gorm:"not null;index"`
	Name    string `json:"name" gorm:"not null;size:200"`
	Slug    string `json:"slug" gorm:"uniqueIndex;size:200"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Board Board `json:"-" gorm:"foreignKey:BoardID"`
}

type Subject struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	ExamID uint   `json:"exam_id" gorm:"not null;index"`
	Name   string `json:"name" gorm:"not null;size:200"`
	Slug   string `json:"slug" gorm:"index;size:200"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type QuestionPaper struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	ExamID    uint   `json:"exam_id" gorm:"not null;index"`
	SubjectID *uint  `json:"subject_id,omitempty" gorm:"index"`
	Title     string `json:"title" gorm:"not null;size:300"`
	Year      *int   `json:"year,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type QuestionStatus string

const (
	QuestionDraft     QuestionStatus = "draft"
	QuestionPublished QuestionStatus = "published"
)

// Question is a single-choice question. Options is a JSON array of strings;
// CorrectIndex points into it. Only published questions are eligible for
// attempt pools.
type Question struct {
	ID        uint  `json:"id" gorm:"primaryKey"`
	ExamID    *uint `json:"exam_id,omitempty" gorm:"index"`
	SubjectID *uint `json:"subject_id,omitempty" gorm:"index"`
	PaperID   *uint `json:"paper_id,omitempty" gorm:"index"`

	Text         string         `json:"text" gorm:"type:text;not null"`
	Options      datatypes.JSON `json:"options" gorm:"type:jsonb;not null"`
	CorrectIndex int            `json:"correct_index" gorm:"not null"`

	Status QuestionStatus `json:"status" gorm:"default:draft;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OptionList decodes the options column.
func (q *Question) OptionList() ([]string, error) {
	var options []string
	if err := json.Unmarshal(q.Options, &options); err != nil {
		return nil, err
	}
	return options, nil
}
