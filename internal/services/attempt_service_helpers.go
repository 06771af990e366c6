package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/prepstack/practice-service/internal/models"
	"github.com/prepstack/practice-service/internal/repositories"
)

// contentRefs are the content identifiers an attempt is pinned to
type contentRefs struct {
	examID    *uint
	subjectID *uint
	paperID   *uint
}

// resolvePool loads the published question pool for the requested source.
// Pools come back in stable creation order from the repository.
func (s *attemptService) resolvePool(ctx context.Context, req *CreateAttemptRequest) ([]*models.Question, contentRefs, error) {
	var refs contentRefs

	switch {
	case req.PaperID != nil:
		paper, err := s.repo.Content().GetPaperByID(ctx, nil, *req.PaperID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, refs, ErrPaperNotFound
			}
			return nil, refs, fmt.Errorf("failed to get question paper: %w", err)
		}

		pool, err := s.repo.Question().GetPublishedByPaper(ctx, nil, paper.ID)
		if err != nil {
			return nil, refs, fmt.Errorf("failed to load question pool: %w", err)
		}

		refs.examID = &paper.ExamID
		refs.subjectID = paper.SubjectID
		refs.paperID = &paper.ID
		return pool, refs, nil

	case req.ExamID != nil:
		exam, err := s.repo.Content().GetExamByID(ctx, nil, *req.ExamID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, refs, ErrExamNotFound
			}
			return nil, refs, fmt.Errorf("failed to get exam: %w", err)
		}

		pool, err := s.repo.Question().GetPublishedByExam(ctx, nil, exam.ID)
		if err != nil {
			return nil, refs, fmt.Errorf("failed to load question pool: %w", err)
		}

		refs.examID = &exam.ID
		return pool, refs, nil

	default:
		pool, err := s.repo.Question().GetPublishedByIDs(ctx, nil, req.QuestionIDs)
		if err != nil {
			return nil, refs, fmt.Errorf("failed to load question pool: %w", err)
		}
		// Every requested question must exist and be published.
		if len(pool) != len(uniqueIDs(req.QuestionIDs)) {
			return nil, refs, ErrQuestionNotFound
		}
		return pool, refs, nil
	}
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// buildSnapshotRows freezes the pool into attempt question rows. Each row
// stores the full question content, including the correct index, so grading
// can fall back to it if the source question disappears.
func buildSnapshotRows(attemptID string, pool []*models.Question) ([]*models.AttemptQuestion, error) {
	rows := make([]*models.AttemptQuestion, 0, len(pool))
	now := time.Now().UTC()

	for i, question := range pool {
		options, err := question.OptionList()
		if err != nil {
			return nil, fmt.Errorf("question %d has malformed options: %w", question.ID, err)
		}

		snapshot := models.QuestionSnapshot{
			QuestionID:   question.ID,
			Text:         question.Text,
			Options:      options,
			CorrectIndex: question.CorrectIndex,
		}
		data, err := json.Marshal(snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal question snapshot: %w", err)
		}

		rows = append(rows, &models.AttemptQuestion{
			AttemptID:  attemptID,
			QuestionID: question.ID,
			Position:   i + 1,
			Snapshot:   datatypes.JSON(data),
			UpdatedAt:  now,
		})
	}

	return rows, nil
}

// buildAttemptResponse renders an attempt for the API. Question views are
// built from the frozen snapshots and never include the correct index; per
// question correctness appears only in the results of a submitted attempt.
func buildAttemptResponse(attempt *models.TestAttempt, questions []models.AttemptQuestion) (*AttemptResponse, error) {
	views := make([]AttemptQuestionView, 0, len(questions))
	for _, aq := range questions {
		var snapshot models.QuestionSnapshot
		if err := json.Unmarshal(aq.Snapshot, &snapshot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal question snapshot: %w", err)
		}

		views = append(views, AttemptQuestionView{
			QuestionID: aq.QuestionID,
			Position:   aq.Position,
			Text:       snapshot.Text,
			Options:    snapshot.Options,
			Answer:     aq.Answer,
			Flagged:    aq.Flagged,
		})
	}

	resp := &AttemptResponse{
		ID:             attempt.ID,
		Status:         attempt.Status,
		ExamID:         attempt.ExamID,
		SubjectID:      attempt.SubjectID,
		PaperID:        attempt.PaperID,
		StartedAt:      attempt.StartedAt,
		SubmittedAt:    attempt.SubmittedAt,
		Questions:      views,
		TotalQuestions: attempt.TotalQuestions,
	}

	if attempt.Status == models.AttemptSubmitted {
		resp.Score = attempt.Score
		resp.CorrectCount = attempt.CorrectCount

		if len(attempt.Results) > 0 {
			var results []models.QuestionResult
			if err := json.Unmarshal(attempt.Results, &results); err != nil {
				return nil, fmt.Errorf("failed to unmarshal stored results: %w", err)
			}
			resp.Results = results
		}
	}

	return resp, nil
}
