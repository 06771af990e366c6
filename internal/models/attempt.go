package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
)

// TestAttempt is the only mutable entity in this service. Status moves
// in_progress -> submitted exactly once; Version increases with every
// accepted mutation while in progress and backs the submit compare-and-swap.
type TestAttempt struct {
	ID      string  `json:"id" gorm:"primaryKey;size:128"`
	OwnerID *string `json:"owner_id,omitempty" gorm:"index;size:255"`

	// Content references captured at creation (exam or paper is always set)
	ExamID    *uint `json:"exam_id,omitempty" gorm:"index"`
	SubjectID *uint `json:"subject_id,omitempty"`
	PaperID   *uint `json:"paper_id,omitempty" gorm:"index"`

	Status      AttemptStatus `json:"status" gorm:"default:in_progress;index"`
	StartedAt   time.Time     `json:"started_at"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`

	// Scoring (null until submitted, immutable afterwards)
	Score          *float64       `json:"score,omitempty" gorm:"type:numeric(5,2)"`
	CorrectCount   *int           `json:"correct_count,omitempty"`
	TotalQuestions int            `json:"total_questions"`
	Results        datatypes.JSON `json:"results,omitempty" gorm:"type:jsonb"`

	Version int64 `json:"version" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Questions []AttemptQuestion `json:"questions,omitempty" gorm:"foreignKey:AttemptID"`
}

func (TestAttempt) TableName() string { return "test_attempts" }

// AttemptQuestion holds one frozen question of an attempt. Answer writes touch
// exactly this row; the snapshot never changes after creation.
type AttemptQuestion struct {
	AttemptID  string `json:"attempt_id" gorm:"primaryKey;size:128"`
	QuestionID uint   `json:"question_id" gorm:"primaryKey"`

	Position int            `json:"position" gorm:"not null"`
	Snapshot datatypes.JSON `json:"snapshot" gorm:"type:jsonb"`

	Answer  *int `json:"answer"`
	Flagged bool `json:"flagged"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (AttemptQuestion) TableName() string { return "attempt_questions" }

// QuestionSnapshot is the frozen copy stored in AttemptQuestion.Snapshot.
// Later edits to the question bank never reach an in-flight attempt.
type QuestionSnapshot struct {
	QuestionID   uint     `json:"question_id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
}

// QuestionResult is one entry of the results document written at submission.
type QuestionResult struct {
	QuestionID   uint `json:"question_id"`
	Answer       *int `json:"answer"`
	CorrectIndex int  `json:"correct_index"`
	Correct      bool `json:"correct"`
}
