package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/prepstack/practice-service/internal/cache"
	"github.com/prepstack/practice-service/internal/models"
	"github.com/prepstack/practice-service/internal/repositories"
	"github.com/prepstack/practice-service/internal/validator"
)

type attemptService struct {
	repo        repositories.Repository
	db          *gorm.DB
	logger      *slog.Logger
	validator   *validator.Validator
	resultCache *cache.ResultCache
}

func NewAttemptService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, resultCache *cache.ResultCache) AttemptService {
	return &attemptService{
		repo:        repo,
		db:          db,
		logger:      logger,
		validator:   validator,
		resultCache: resultCache,
	}
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) Create(ctx context.Context, req *CreateAttemptRequest, caller Caller) (*AttemptResponse, error) {
	s.logger.Info("Creating test attempt",
		"exam_id", req.ExamID,
		"paper_id", req.PaperID,
		"question_count", len(req.QuestionIDs),
		"authenticated", caller.Authenticated())

	// Validate request
	if verrs := s.validator.ValidateAttemptCreate(req); len(verrs) > 0 {
		return nil, verrs
	}

	// Resolve the question pool and content references
	pool, refs, err := s.resolvePool(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, ErrEmptyQuestionPool
	}

	attemptID, err := newAttemptID()
	if err != nil {
		return nil, err
	}

	var ownerID *string
	if caller.Authenticated() {
		id := caller.UserID
		ownerID = &id
	}

	attempt := &models.TestAttempt{
		ID:             attemptID,
		OwnerID:        ownerID,
		ExamID:         refs.examID,
		SubjectID:      refs.subjectID,
		PaperID:        refs.paperID,
		Status:         models.AttemptInProgress,
		StartedAt:      time.Now().UTC(),
		TotalQuestions: len(pool),
		Version:        1,
	}

	// Freeze the pool into per-attempt snapshot rows so later edits to the
	// source questions never change what this attempt saw.
	questions, err := buildSnapshotRows(attemptID, pool)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Attempt().Create(ctx, nil, attempt, questions); err != nil {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	s.logger.Info("Test attempt created",
		"attempt_id", attempt.ID,
		"total_questions", attempt.TotalQuestions)

	rows := make([]models.AttemptQuestion, 0, len(questions))
	for _, q := range questions {
		rows = append(rows, *q)
	}
	return buildAttemptResponse(attempt, rows)
}

func (s *attemptService) Get(ctx context.Context, attemptID string, caller Caller) (*AttemptResponse, error) {
	// Submitted attempts are immutable, so a cache hit is authoritative.
	// Ownership still has to be checked against the stored row.
	attempt, err := s.repo.Attempt().GetByIDWithQuestions(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if err := guardAttempt(attempt, caller, "get"); err != nil {
		return nil, err
	}

	if attempt.Status == models.AttemptSubmitted {
		var cached AttemptResponse
		if s.resultCache.Get(ctx, attempt.ID, &cached) {
			return &cached, nil
		}

		resp, err := buildAttemptResponse(attempt, attempt.Questions)
		if err != nil {
			return nil, err
		}
		s.resultCache.Put(ctx, attempt.ID, resp)
		return resp, nil
	}

	return buildAttemptResponse(attempt, attempt.Questions)
}

func (s *attemptService) SaveAnswer(ctx context.Context, attemptID string, questionID uint, req *SaveAnswerRequest, caller Caller) error {
	if verrs := s.validator.ValidateAnswerSave(req); len(verrs) > 0 {
		return verrs
	}

	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("failed to get attempt: %w", err)
	}

	if err := guardAttempt(attempt, caller, "save_answer"); err != nil {
		return err
	}

	if attempt.Status == models.AttemptSubmitted {
		return ErrAttemptAlreadySubmitted
	}

	update := repositories.AnswerUpdate{
		Answer:    req.Answer,
		AnswerSet: true,
		Flagged:   req.Flagged,
	}

	applied, err := s.repo.Attempt().UpdateAnswer(ctx, nil, attemptID, questionID, update)
	if err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}
	if applied {
		return nil
	}

	// Nothing matched: either the question is not part of this attempt, or a
	// concurrent submit landed between our read and the write. Re-read to
	// report the right error.
	attempt, err = s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.Status == models.AttemptSubmitted {
		return ErrAttemptAlreadySubmitted
	}
	return ErrQuestionNotFound
}

func (s *attemptService) Delete(ctx context.Context, attemptID string, caller Caller) error {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("failed to get attempt: %w", err)
	}

	if err := guardAttempt(attempt, caller, "delete"); err != nil {
		return err
	}

	if err := s.repo.Attempt().Delete(ctx, nil, attemptID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("failed to delete attempt: %w", err)
	}

	s.resultCache.Drop(ctx, attemptID)

	s.logger.Info("Test attempt deleted", "attempt_id", attemptID)
	return nil
}

func (s *attemptService) ListByOwner(ctx context.Context, req *ListAttemptsRequest, caller Caller) (*AttemptListResponse, error) {
	// Anonymous attempts are reachable only by ID; there is no history to list.
	if !caller.Authenticated() {
		return nil, ErrUnauthorized
	}

	if verrs := s.validator.Validate(req); len(verrs) > 0 {
		return nil, verrs
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.Size
	if size < 1 {
		size = 20
	}

	filters := repositories.AttemptFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	if req.Status != nil {
		status := models.AttemptStatus(*req.Status)
		filters.Status = &status
	}

	attempts, total, err := s.repo.Attempt().GetByOwner(ctx, nil, caller.UserID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	summaries := make([]*AttemptSummary, 0, len(attempts))
	for _, attempt := range attempts {
		summaries = append(summaries, &AttemptSummary{
			ID:             attempt.ID,
			Status:         attempt.Status,
			ExamID:         attempt.ExamID,
			PaperID:        attempt.PaperID,
			StartedAt:      attempt.StartedAt,
			SubmittedAt:    attempt.SubmittedAt,
			Score:          attempt.Score,
			TotalQuestions: attempt.TotalQuestions,
		})
	}

	return &AttemptListResponse{
		Attempts: summaries,
		Total:    total,
		Page:     page,
		Size:     size,
	}, nil
}
