package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/prepstack/practice-service/internal/cache"
	"github.com/prepstack/practice-service/internal/events"
	"github.com/prepstack/practice-service/internal/models"
	"github.com/prepstack/practice-service/internal/validator"
)

type testEnv struct {
	repo       *memoryRepository
	attempts   AttemptService
	submission SubmissionService
	publisher  *events.MockEventPublisher
}

func newTestEnv() *testEnv {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	repo := newMemoryRepository()
	v := validator.New()
	publisher := events.NewMockEventPublisher(logger)
	resultCache := cache.NewResultCache(nil, logger)

	return &testEnv{
		repo:       repo,
		attempts:   NewAttemptService(repo, nil, logger, v, resultCache),
		submission: NewSubmissionService(repo, nil, logger, publisher),
		publisher:  publisher,
	}
}

// seedExam adds an exam with four published questions (correct indexes
// 0,1,2,3) and one draft question that must never appear in pools.
func (e *testEnv) seedExam() {
	e.repo.addExam(1, "Algebra")
	e.repo.addQuestion(10, 1, "Q10", []string{"a", "b", "c", "d"}, 0, models.QuestionPublished)
	e.repo.addQuestion(11, 1, "Q11", []string{"a", "b", "c", "d"}, 1, models.QuestionPublished)
	e.repo.addQuestion(12, 1, "Q12", []string{"a", "b", "c", "d"}, 2, models.QuestionPublished)
	e.repo.addQuestion(13, 1, "Q13", []string{"a", "b", "c", "d"}, 3, models.QuestionPublished)
	e.repo.addQuestion(99, 1, "Draft", []string{"a", "b"}, 0, models.QuestionDraft)
}

func uintPtr(v uint) *uint    { return &v }
func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

func TestAttemptService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("FromExam", func(t *testing.T) {
		env := newTestEnv()
		env.seedExam()

		attempt, err := env.attempts.Create(ctx, &CreateAttemptRequest{ExamID: uintPtr(1)}, Caller{})
		if err != nil {
			t.Fatalf("Failed to create attempt: %v", err)
		}

		if attempt.Status != models.AttemptInProgress {
			t.Errorf("Expected status in_progress, got %s", attempt.Status)
		}
		if attempt.TotalQuestions != 4 {
			t.Errorf("Expected 4 questions, got %d", attempt.TotalQuestions)
		}
		if attempt.ID == "" {
			t.Error("Attempt ID should not be empty")
		}

		// Pool order is creation order, positions are sequential
		for i, q := range attempt.Questions {
			if q.Position != i+1 {
				t.Errorf("Question %d: expected position %d, got %d", i, i+1, q.Position)
			}
			if i > 0 && attempt.Questions[i-1].QuestionID >= q.QuestionID {
				t.Errorf("Questions not in creation order: %d before %d", attempt.Questions[i-1].QuestionID, q.QuestionID)
			}
			if q.QuestionID == 99 {
				t.Error("Draft question leaked into the pool")
			}
		}
	})

	t.Run("ResponseNeverContainsCorrectIndex", func(t *testing.T) {
		env := newTestEnv()
		env.seedExam()

		attempt, err := env.attempts.Create(ctx, &CreateAttemptRequest{ExamID: uintPtr(1)}, Caller{})
		if err != nil {
			t.Fatalf("Failed to create attempt: %v", err)
		}

		payload, err := json.Marshal(attempt)
		if err != nil {
			t.Fatalf("Failed to marshal response: %v", err)
		}
		if strings.Contains(string(payload), "correct") {
			t.Errorf("Response leaks grading data: %s", payload)
		}
	})

	t.Run("FromPaper", func(t *testing.T) {
		env := newTestEnv()
		env.repo.addExam(1, "Algebra")
		env.repo.addPaper(5, 1, "2024 Paper")
		env.repo.addPaperQuestion(20, 5, "P20", []string{"x", "y"}, 0, models.QuestionPublished)
		env.repo.addPaperQuestion(21, 5, "P21", []string{"x", "y"}, 1, models.QuestionPublished)

		attempt, err := env.attempts.Create(ctx, &CreateAttemptRequest{PaperID: uintPtr(5)}, Caller{})
		if err != nil {
			t.Fatalf("Failed to create attempt: %v", err)
		}
		if attempt.TotalQuestions != 2 {
			t.Errorf("Expected 2 questions, got %d", attempt.TotalQuestions)
		}
		if attempt.PaperID == nil || *attempt.PaperID != 5 {
			t.Error("Attempt should reference the paper")
		}
		if attempt.ExamID == nil || *attempt.ExamID != 1 {
			t.Error("Attempt should reference the paper's exam")
		}
	})

	t.Run("FromExplicitQuestionIDs", func(t *testing.T) {
		env := newTestEnv()
		env.seedExam()

		attempt, err := env.attempts.Create(ctx, &CreateAttemptRequest{QuestionIDs: []uint{11, 13}}, Caller{})
		if err != nil {
			t.Fatalf("Failed to create attempt: %v", err)
		}
		if attempt.TotalQuestions != 2 {
			t.Errorf("Expected 2 questions, got %d", attempt.TotalQuestions)
		}
	})

	t.Run("ExplicitIDsRejectUnpublished", func(t *testing.T) {
		env := newTestEnv()
		env.seedExam()

		_, err := env.attempts.Create(ctx, &CreateAttemptRequest{QuestionIDs: []uint{10, 99}}, Caller{})
		if !errors.Is(err, ErrQuestionNotFound) {
			t.Errorf("Expected ErrQuestionNotFound, got %v", err)
		}
	})

	t.Run("EmptyPool", func(t *testing.T) {
		env := newTestEnv()
		env.repo.addExam(2, "Empty")

		_, err := env.attempts.Create(ctx, &CreateAttemptRequest{ExamID: uintPtr(2)}, Caller{})
		if !errors.Is(err, ErrEmptyQuestionPool) {
			t.Errorf("Expected ErrEmptyQuestionPool, got %v", err)
		}
	})

	t.Run("ExamNotFound", func(t *testing.T) {
		env := newTestEnv()

		_, err := env.attempts.Create(ctx, &CreateAttemptRequest{ExamID: uintPtr(404)}, Caller{})
		if !errors.Is(err, ErrExamNotFound) {
			t.Errorf("Expected ErrExamNotFound, got %v", err)
		}
	})

	t.Run("PaperNotFound", func(t *testing.T) {
		env := newTestEnv()

		_, err := env.attempts.Create(ctx, &CreateAttemptRequest{PaperID: uintPtr(404)}, Caller{})
		if !errors.Is(err, ErrPaperNotFound) {
			t.Errorf("Expected ErrPaperNotFound, got %v", err)
		}
	})

	t.Run("RequiresExactlyOneSource", func(t *testing.T) {
		env := newTestEnv()
		env.seedExam()

		var verrs validator.ValidationErrors

		_, err := env.attempts.Create(ctx, &CreateAttemptRequest{}, Caller{})
		if !errors.As(err, &verrs) {
			t.Errorf("Expected validation errors for empty request, got %v", err)
		}

		_, err = env.attempts.Create(ctx, &CreateAttemptRequest{ExamID: uintPtr(1), PaperID: uintPtr(5)}, Caller{})
		if !errors.As(err, &verrs) {
			t.Errorf("Expected validation errors for two sources, got %v", err)
		}
	})

	t.Run("OwnedAttemptRecordsOwner", func(t *testing.T) {
		env := newTestEnv()
		env.seedExam()

		created, err := env.attempts.Create(ctx, &CreateAttemptRequest{ExamID: uintPtr(1)}, Caller{UserID: "user-1"})
		if err != nil {
			t.Fatalf("Failed to create attempt: %v", err)
		}

		stored, _ := env.repo.Attempt().GetByID(ctx, nil, created.ID)
		if stored.OwnerID == nil || *stored.OwnerID != "user-1" {
			t.Error("Attempt should be owned by the authenticated caller")
		}
	})
}

func TestAttemptService_SaveAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("SaveAndClear", func(t *testing.T) {
		env := newTestEnv()
		env.seedExam()
		attempt, _ := env.attempts.Create(ctx, &CreateAttemptRequest{ExamID: uintPtr(1)}, Caller{})

		if err := env.attempts.SaveAnswer(ctx, attempt.ID, 10, &SaveAnswerRequest{Answer: intPtr(2)}, Caller{}); err != nil {
			t.Fatalf("Failed to save answer: %v", err)
		}

		got, _ := env.attempts.Get(ctx, attempt.ID, Caller{})
		if got.Questions[0].Answer == nil || *got.Questions[0].Answer != 2 {
			t.Error("Answer was not persisted")
		}

		// Null answer clears the stored choice
		if err := env.attempts.SaveAnswer(ctx, attempt.ID, 10, &SaveAnswerRequest{}, Caller{}); err != nil {
			t.Fatalf("Failed to clear answer: %v", err)
		}
		got, _ = env.attempts.Get(ctx, attempt.ID, Caller{})
		if got.Questions[0].Answer != nil {
			t.Error("Answer should have been cleared")
		}
	})

	t.Run("Flagging", func(t *testing.T) {
		env := newTestEnv()
		env.seedExam()
		attempt, _ := env.attempts.Create(ctx, &CreateAttemptRequest{ExamID: uintPtr(1)}, Caller{})

		if err := env.attempts.SaveAnswer(ctx, attempt.ID, 11, &SaveAnswerRequest{Answer: intPtr(1), Flagged: boolPtr(true)}, Caller{}); err != nil {
			t.Fatalf("Failed to save answer: %v", err)
		}

		got, _ := env.attempts.Get(ctx, attempt.ID, Caller{})
		if !got.Questions[1].Flagged {
			t.Error("Question should be flagged")
		}
	})

	t.Run("UnknownQuestion", func(t *testing.T) {
		env := newTestEnv()
		env.seedExam()
		attempt, _ := env.attempts.Create(ctx, &CreateAttemptRequest{ExamID: uintPtr(1)}, Caller{})

		err := env.attempts.SaveAnswer(ctx, attempt.ID, 777, &SaveAnswerRequest{Answer: intPtr(0)}, Caller{})
		if !errors.Is(err, ErrQuestionNotFound) {
			t.Errorf("Expected ErrQuestionNotFound, got %v", err)
		}
	})

	t.Run("UnknownAttempt", func(t *testing.T) {
		env := newTestEnv()

		err := env.attempts.SaveAnswer(ctx, "missing", 10, &SaveAnswerRequest{Answer: intPtr(0)}, Caller{})
		if !errors.Is(err, ErrAttemptNotFound) {
			t.Errorf("Expected ErrAttemptNotFound, got %v", err)
		}
	})

	t.Run("RejectedAfterSubmit", func(t *testing.T) {
		env := newTestEnv()
		env.seedExam()
		attempt, _ := env.attempts.Create(ctx, &CreateAttemptRequest{ExamID: uintPtr(1)}, Caller{})

		if _, err := env.submission.Submit(ctx, attempt.ID, Caller{}); err != nil {
			t.Fatalf("Failed to submit: %v", err)
		}

		err := env.attempts.SaveAnswer(ctx, attempt.ID, 10, &SaveAnswerRequest{Answer: intPtr(0)}, Caller{})
		if !errors.Is(err, ErrAttemptAlreadySubmitted) {
			t.Errorf("Expected ErrAttemptAlreadySubmitted, got %v", err)
		}
	})

	t.Run("NegativeAnswerRejected", func(t *testing.T) {
		env := newTestEnv()
		env.seedExam()
		attempt, _ := env.attempts.Create(ctx, &CreateAttemptRequest{ExamID: uintPtr(1)}, Caller{})

		var verrs validator.ValidationErrors
		err := env.attempts.SaveAnswer(ctx, attempt.ID, 10, &SaveAnswerRequest{Answer: intPtr(-1)}, Caller{})
		if !errors.As(err, &verrs) {
			t.Errorf("Expected validation errors, got %v", err)
		}
	})

	t.Run("ConcurrentSavesOnDistinctQuestions", func(t *testing.T) {
		env := newTestEnv()
		env.seedExam()
		attempt, _ := env.attempts.Create(ctx, &CreateAttemptRequest{ExamID: uintPtr(1)}, Caller{})

		questionIDs := []uint{10, 11, 12, 13}
		var wg sync.WaitGroup
		errs := make([]error, len(questionIDs))

		for i, qid := range questionIDs {
			wg.Add(1)
			go func(i int, qid uint) {
				defer wg.Done()
				errs[i] = env.attempts.SaveAnswer(ctx, attempt.ID, qid, &SaveAnswerRequest{Answer: intPtr(1)}, Caller{})
			}(i, qid)
		}
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				t.Errorf("Save %d failed: %v", i, err)
			}
		}

		got, _ := env.attempts.Get(ctx, attempt.ID, Caller{})
		for _, q := range got.Questions {
			if q.Answer == nil || *q.Answer != 1 {
				t.Errorf("Question %d lost its answer", q.QuestionID)
			}
		}

		stored, _ := env.repo.Attempt().GetByID(ctx, nil, attempt.ID)
		if stored.Version != 1+int64(len(questionIDs)) {
			t.Errorf("Expected version %d, got %d", 1+len(questionIDs), stored.Version)
		}
	})
}

func TestAttemptService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("DeleteThenGone", func(t *testing.T) {
		env := newTestEnv()
		env.seedExam()
		attempt, _ := env.attempts.Create(ctx, &CreateAttemptRequest{ExamID: uintPtr(1)}, Caller{})

		if err := env.attempts.Delete(ctx, attempt.ID, Caller{}); err != nil {
			t.Fatalf("Failed to delete attempt: %v", err)
		}

		_, err := env.attempts.Get(ctx, attempt.ID, Caller{})
		if !errors.Is(err, ErrAttemptNotFound) {
			t.Errorf("Expected ErrAttemptNotFound after delete, got %v", err)
		}
	})

	t.Run("UnknownAttempt", func(t *testing.T) {
		env := newTestEnv()

		err := env.attempts.Delete(ctx, "missing", Caller{})
		if !errors.Is(err, ErrAttemptNotFound) {
			t.Errorf("Expected ErrAttemptNotFound, got %v", err)
		}
	})
}

func TestAttemptService_ListByOwner(t *testing.T) {
	ctx := context.Background()

	t.Run("AnonymousCallerRejected", func(t *testing.T) {
		env := newTestEnv()

		_, err := env.attempts.ListByOwner(ctx, &ListAttemptsRequest{}, Caller{})
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("OnlyOwnAttemptsListed", func(t *testing.T) {
		env := newTestEnv()
		env.seedExam()

		for i := 0; i < 3; i++ {
			if _, err := env.attempts.Create(ctx, &CreateAttemptRequest{ExamID: uintPtr(1)}, Caller{UserID: "user-1"}); err != nil {
				t.Fatalf("Failed to create attempt: %v", err)
			}
		}
		env.attempts.Create(ctx, &CreateAttemptRequest{ExamID: uintPtr(1)}, Caller{UserID: "user-2"})
		env.attempts.Create(ctx, &CreateAttemptRequest{ExamID: uintPtr(1)}, Caller{})

		list, err := env.attempts.ListByOwner(ctx, &ListAttemptsRequest{}, Caller{UserID: "user-1"})
		if err != nil {
			t.Fatalf("Failed to list attempts: %v", err)
		}
		if list.Total != 3 {
			t.Errorf("Expected 3 attempts, got %d", list.Total)
		}
	})

	t.Run("StatusFilterAndPagination", func(t *testing.T) {
		env := newTestEnv()
		env.seedExam()

		var ids []string
		for i := 0; i < 5; i++ {
			attempt, _ := env.attempts.Create(ctx, &CreateAttemptRequest{ExamID: uintPtr(1)}, Caller{UserID: "user-1"})
			ids = append(ids, attempt.ID)
		}
		if _, err := env.submission.Submit(ctx, ids[0], Caller{UserID: "user-1"}); err != nil {
			t.Fatalf("Failed to submit: %v", err)
		}

		submitted := string(models.AttemptSubmitted)
		list, err := env.attempts.ListByOwner(ctx, &ListAttemptsRequest{Status: &submitted}, Caller{UserID: "user-1"})
		if err != nil {
			t.Fatalf("Failed to list attempts: %v", err)
		}
		if list.Total != 1 {
			t.Errorf("Expected 1 submitted attempt, got %d", list.Total)
		}

		page, err := env.attempts.ListByOwner(ctx, &ListAttemptsRequest{Page: 2, Size: 2}, Caller{UserID: "user-1"})
		if err != nil {
			t.Fatalf("Failed to list attempts: %v", err)
		}
		if page.Total != 5 {
			t.Errorf("Expected total 5, got %d", page.Total)
		}
		if len(page.Attempts) != 2 {
			t.Errorf("Expected 2 attempts on page 2, got %d", len(page.Attempts))
		}
	})
}

func TestAttemptService_Get_SubmittedIncludesResults(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.seedExam()

	attempt, _ := env.attempts.Create(ctx, &CreateAttemptRequest{ExamID: uintPtr(1)}, Caller{})
	env.attempts.SaveAnswer(ctx, attempt.ID, 10, &SaveAnswerRequest{Answer: intPtr(0)}, Caller{})

	if _, err := env.submission.Submit(ctx, attempt.ID, Caller{}); err != nil {
		t.Fatalf("Failed to submit: %v", err)
	}

	got, err := env.attempts.Get(ctx, attempt.ID, Caller{})
	if err != nil {
		t.Fatalf("Failed to get attempt: %v", err)
	}

	if got.Status != models.AttemptSubmitted {
		t.Errorf("Expected submitted status, got %s", got.Status)
	}
	if got.Score == nil {
		t.Fatal("Submitted attempt should expose a score")
	}
	if len(got.Results) != 4 {
		t.Errorf("Expected 4 results, got %d", len(got.Results))
	}
	if got.SubmittedAt == nil {
		t.Error("Submitted attempt should expose submitted_at")
	}
}
