package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/prepstack/practice-service/internal/events"
	"github.com/prepstack/practice-service/internal/models"
	"github.com/prepstack/practice-service/internal/repositories"
)

const (
	submitMaxAttempts = 3
	submitBackoffBase = 100 * time.Millisecond
)

type submissionService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	publisher events.EventPublisher
}

func NewSubmissionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, publisher events.EventPublisher) SubmissionService {
	return &submissionService{
		repo:      repo,
		db:        db,
		logger:    logger,
		publisher: publisher,
	}
}

// Submit grades an attempt and flips it to submitted exactly once. The write
// is a compare-and-swap on the attempt version: if an autosave or another
// submit raced us, we re-read and re-grade so the stored result always
// reflects the answers that were actually persisted.
func (s *submissionService) Submit(ctx context.Context, attemptID string, caller Caller) (*SubmitResponse, error) {
	for attemptNo := 1; attemptNo <= submitMaxAttempts; attemptNo++ {
		attempt, err := s.readGuarded(ctx, attemptID, caller)
		if err != nil {
			return nil, err
		}

		if attempt.Status == models.AttemptSubmitted {
			return storedSubmitResponse(attempt, true)
		}

		results, correctCount, err := s.grade(ctx, attempt)
		if err != nil {
			return nil, err
		}

		resultsJSON, err := json.Marshal(results)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal results: %w", err)
		}

		total := attempt.TotalQuestions
		score := roundScore(correctCount, total)
		submittedAt := time.Now().UTC()

		won, err := s.repo.Attempt().SubmitCAS(ctx, nil, attempt.ID, attempt.Version, repositories.SubmissionWrite{
			SubmittedAt:  submittedAt,
			Score:        score,
			CorrectCount: correctCount,
			Total:        total,
			Results:      datatypes.JSON(resultsJSON),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to submit attempt: %w", err)
		}

		if won {
			s.logger.Info("Test attempt submitted",
				"attempt_id", attempt.ID,
				"score", score,
				"correct_count", correctCount,
				"total_questions", total)

			s.publishSubmitted(ctx, attempt, score, correctCount, total, submittedAt)

			return &SubmitResponse{
				AttemptID:      attempt.ID,
				Score:          score,
				CorrectCount:   correctCount,
				TotalQuestions: total,
				Results:        results,
				SubmittedAt:    submittedAt,
			}, nil
		}

		s.logger.Debug("Submit lost version race, retrying",
			"attempt_id", attempt.ID,
			"observed_version", attempt.Version,
			"try", attemptNo)

		if err := s.backoff(ctx, attemptNo); err != nil {
			return nil, err
		}
	}

	// Retries exhausted. If someone else finished the submit in the
	// meantime, return their stored result instead of failing.
	attempt, err := s.readGuarded(ctx, attemptID, caller)
	if err != nil {
		return nil, err
	}
	if attempt.Status == models.AttemptSubmitted {
		return storedSubmitResponse(attempt, true)
	}

	return nil, ErrSubmitConflict
}

func (s *submissionService) readGuarded(ctx context.Context, attemptID string, caller Caller) (*models.TestAttempt, error) {
	attempt, err := s.repo.Attempt().GetByIDWithQuestions(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if err := guardAttempt(attempt, caller, "submit"); err != nil {
		return nil, err
	}

	return attempt, nil
}

// grade scores every question row against the current published correct
// index, falling back to the frozen snapshot for questions that were deleted
// or unpublished after the attempt started. A null answer is never correct.
func (s *submissionService) grade(ctx context.Context, attempt *models.TestAttempt) ([]models.QuestionResult, int, error) {
	ids := make([]uint, 0, len(attempt.Questions))
	for _, aq := range attempt.Questions {
		ids = append(ids, aq.QuestionID)
	}

	authoritative, err := s.repo.Question().GetCorrectIndexes(ctx, nil, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load correct answers: %w", err)
	}

	results := make([]models.QuestionResult, 0, len(attempt.Questions))
	correctCount := 0

	for _, aq := range attempt.Questions {
		correctIndex, ok := authoritative[aq.QuestionID]
		if !ok {
			var snapshot models.QuestionSnapshot
			if err := json.Unmarshal(aq.Snapshot, &snapshot); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal question snapshot: %w", err)
			}
			correctIndex = snapshot.CorrectIndex
		}

		correct := aq.Answer != nil && *aq.Answer == correctIndex
		if correct {
			correctCount++
		}

		results = append(results, models.QuestionResult{
			QuestionID:   aq.QuestionID,
			Answer:       aq.Answer,
			CorrectIndex: correctIndex,
			Correct:      correct,
		})
	}

	return results, correctCount, nil
}

func (s *submissionService) publishSubmitted(ctx context.Context, attempt *models.TestAttempt, score float64, correctCount, total int, submittedAt time.Time) {
	event := events.NewEvent(events.TypeAttemptSubmitted, events.AttemptSubmittedEvent{
		AttemptID:      attempt.ID,
		OwnerID:        attempt.OwnerID,
		Score:          score,
		CorrectCount:   correctCount,
		TotalQuestions: total,
		SubmittedAt:    submittedAt,
	})

	// Event delivery is best effort; the submission itself already committed.
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish submission event",
			"attempt_id", attempt.ID,
			"error", err)
	}
}

func (s *submissionService) backoff(ctx context.Context, attemptNo int) error {
	base := submitBackoffBase * time.Duration(attemptNo)
	delay := base/2 + time.Duration(rand.Int63n(int64(base)))

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// storedSubmitResponse rebuilds the response from the persisted submission
// fields, so a repeated submit returns exactly what the winning one did.
func storedSubmitResponse(attempt *models.TestAttempt, alreadySubmitted bool) (*SubmitResponse, error) {
	if attempt.Score == nil || attempt.CorrectCount == nil || attempt.SubmittedAt == nil {
		return nil, fmt.Errorf("submitted attempt %s is missing result fields", attempt.ID)
	}

	var results []models.QuestionResult
	if len(attempt.Results) > 0 {
		if err := json.Unmarshal(attempt.Results, &results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stored results: %w", err)
		}
	}

	return &SubmitResponse{
		AttemptID:        attempt.ID,
		Score:            *attempt.Score,
		CorrectCount:     *attempt.CorrectCount,
		TotalQuestions:   attempt.TotalQuestions,
		Results:          results,
		SubmittedAt:      *attempt.SubmittedAt,
		AlreadySubmitted: alreadySubmitted,
	}, nil
}

// roundScore computes the percentage score rounded to two decimal places
func roundScore(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(correct)/float64(total)*10000) / 100
}
