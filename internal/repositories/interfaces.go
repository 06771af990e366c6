package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/prepstack/practice-service/internal/models"
)

// AnswerUpdate is the field set of one autosave write. AnswerSet distinguishes
// "clear the answer" (Answer nil, AnswerSet true) from "leave it alone".
type AnswerUpdate struct {
	Answer    *int
	AnswerSet bool
	Flagged   *bool
}

// SubmissionWrite is the full status-transition field set applied by the
// submit compare-and-swap. It is written atomically or not at all.
type SubmissionWrite struct {
	SubmittedAt  time.Time
	Score        float64
	CorrectCount int
	Total        int
	Results      datatypes.JSON
}

type AttemptFilters struct {
	Status *models.AttemptStatus

	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

type AttemptRepository interface {
	// Create persists a new attempt together with its frozen question rows.
	Create(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt, questions []*models.AttemptQuestion) error

	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.TestAttempt, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id string) (*models.TestAttempt, error)
	GetByOwner(ctx context.Context, tx *gorm.DB, ownerID string, filters AttemptFilters) ([]*models.TestAttempt, int64, error)

	// UpdateAnswer applies one atomic partial update to a single question row
	// and bumps the attempt version, both guarded by status = in_progress.
	// Returns false when nothing matched (submitted, deleted, or unknown
	// question); the caller re-reads to tell those apart.
	UpdateAnswer(ctx context.Context, tx *gorm.DB, attemptID string, questionID uint, update AnswerUpdate) (bool, error)

	// SubmitCAS writes the submission field set iff the version is unchanged
	// from the caller's read and the attempt is still in progress. Returns
	// false when the conditional write lost.
	SubmitCAS(ctx context.Context, tx *gorm.DB, id string, observedVersion int64, write SubmissionWrite) (bool, error)

	Delete(ctx context.Context, tx *gorm.DB, id string) error
}

type QuestionRepository interface {
	GetPublishedByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Question, error)
	GetPublishedByPaper(ctx context.Context, tx *gorm.DB, paperID uint) ([]*models.Question, error)
	GetPublishedByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error)

	// GetCorrectIndexes returns the authoritative correct index for every
	// published question in ids. Questions deleted or unpublished since the
	// attempt snapshot was taken are simply absent from the map.
	GetCorrectIndexes(ctx context.Context, tx *gorm.DB, ids []uint) (map[uint]int, error)
}

type ContentRepository interface {
	GetExamByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetPaperByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionPaper, error)
}

type UserFilters struct {
	Query  string
	Limit  int
	Offset int
}

// UserRepository is read-only; users live in the identity service.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
}

// IsNotFoundError normalizes the storage layer's not-found signal.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
