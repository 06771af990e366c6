package services

import (
	"context"
	"time"

	"github.com/prepstack/practice-service/internal/models"
	"github.com/prepstack/practice-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type CreateAttemptRequest = validator.AttemptCreateRequest
type SaveAnswerRequest = validator.AnswerSaveRequest
type ListAttemptsRequest = validator.AttemptListRequest

// Caller identifies who is making a request. A zero UserID means the request
// carried no valid credentials.
type Caller struct {
	UserID string
}

func (c Caller) Authenticated() bool {
	return c.UserID != ""
}

// AttemptQuestionView is a question as shown to the test taker. The correct
// index is never part of this shape.
type AttemptQuestionView struct {
	QuestionID uint     `json:"question_id"`
	Position   int      `json:"position"`
	Text       string   `json:"text"`
	Options    []string `json:"options"`
	Answer     *int     `json:"answer"`
	Flagged    bool     `json:"flagged"`
}

type AttemptResponse struct {
	ID             string                  `json:"id"`
	Status         models.AttemptStatus    `json:"status"`
	ExamID         *uint                   `json:"exam_id,omitempty"`
	SubjectID      *uint                   `json:"subject_id,omitempty"`
	PaperID        *uint                   `json:"paper_id,omitempty"`
	StartedAt      time.Time               `json:"started_at"`
	SubmittedAt    *time.Time              `json:"submitted_at,omitempty"`
	Questions      []AttemptQuestionView   `json:"questions"`
	Score          *float64                `json:"score,omitempty"`
	CorrectCount   *int                    `json:"correct_count,omitempty"`
	TotalQuestions int                     `json:"total_questions"`
	Results        []models.QuestionResult `json:"results,omitempty"`
}

type SubmitResponse struct {
	AttemptID        string                  `json:"attempt_id"`
	Score            float64                 `json:"score"`
	CorrectCount     int                     `json:"correct_count"`
	TotalQuestions   int                     `json:"total_questions"`
	Results          []models.QuestionResult `json:"results"`
	SubmittedAt      time.Time               `json:"submitted_at"`
	AlreadySubmitted bool                    `json:"already_submitted"`
}

type AttemptSummary struct {
	ID             string               `json:"id"`
	Status         models.AttemptStatus `json:"status"`
	ExamID         *uint                `json:"exam_id,omitempty"`
	PaperID        *uint                `json:"paper_id,omitempty"`
	StartedAt      time.Time            `json:"started_at"`
	SubmittedAt    *time.Time           `json:"submitted_at,omitempty"`
	Score          *float64             `json:"score,omitempty"`
	TotalQuestions int                  `json:"total_questions"`
}

type AttemptListResponse struct {
	Attempts []*AttemptSummary `json:"attempts"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Size     int               `json:"size"`
}

// ===== SERVICE INTERFACES =====

type AttemptService interface {
	Create(ctx context.Context, req *CreateAttemptRequest, caller Caller) (*AttemptResponse, error)
	Get(ctx context.Context, attemptID string, caller Caller) (*AttemptResponse, error)
	SaveAnswer(ctx context.Context, attemptID string, questionID uint, req *SaveAnswerRequest, caller Caller) error
	Delete(ctx context.Context, attemptID string, caller Caller) error
	ListByOwner(ctx context.Context, req *ListAttemptsRequest, caller Caller) (*AttemptListResponse, error)
}

type SubmissionService interface {
	Submit(ctx context.Context, attemptID string, caller Caller) (*SubmitResponse, error)
}
