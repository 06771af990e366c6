package services

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/prepstack/practice-service/internal/models"
	"github.com/prepstack/practice-service/internal/repositories"
)

// memoryRepository is an in-memory Repository with the same atomicity
// semantics as the PostgreSQL implementation: answer writes and the submit
// compare-and-swap are serialized under one lock.
type memoryRepository struct {
	mu sync.Mutex

	attempts  map[string]*models.TestAttempt
	questions map[string][]*models.AttemptQuestion
	pool      map[uint]*models.Question
	exams     map[uint]*models.Exam
	papers    map[uint]*models.QuestionPaper
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		attempts:  make(map[string]*models.TestAttempt),
		questions: make(map[string][]*models.AttemptQuestion),
		pool:      make(map[uint]*models.Question),
		exams:     make(map[uint]*models.Exam),
		papers:    make(map[uint]*models.QuestionPaper),
	}
}

func (m *memoryRepository) addExam(id uint, name string) {
	m.exams[id] = &models.Exam{ID: id, Name: name}
}

func (m *memoryRepository) addPaper(id, examID uint, title string) {
	m.papers[id] = &models.QuestionPaper{ID: id, ExamID: examID, Title: title}
}

func (m *memoryRepository) addQuestion(id uint, examID uint, text string, options []string, correctIndex int, status models.QuestionStatus) {
	data, _ := json.Marshal(options)
	exam := examID
	m.pool[id] = &models.Question{
		ID:           id,
		ExamID:       &exam,
		Text:         text,
		Options:      data,
		CorrectIndex: correctIndex,
		Status:       status,
	}
}

func (m *memoryRepository) addPaperQuestion(id, paperID uint, text string, options []string, correctIndex int, status models.QuestionStatus) {
	data, _ := json.Marshal(options)
	paper := paperID
	m.pool[id] = &models.Question{
		ID:           id,
		PaperID:      &paper,
		Text:         text,
		Options:      data,
		CorrectIndex: correctIndex,
		Status:       status,
	}
}

func (m *memoryRepository) removeQuestion(id uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pool, id)
}

// Repository interface

func (m *memoryRepository) Attempt() repositories.AttemptRepository   { return (*memoryAttemptRepo)(m) }
func (m *memoryRepository) Question() repositories.QuestionRepository { return (*memoryQuestionRepo)(m) }
func (m *memoryRepository) Content() repositories.ContentRepository   { return (*memoryContentRepo)(m) }
func (m *memoryRepository) User() repositories.UserRepository         { return nil }

func (m *memoryRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}

func (m *memoryRepository) Ping(ctx context.Context) error { return nil }
func (m *memoryRepository) Close() error                   { return nil }

func copyAttempt(a *models.TestAttempt) *models.TestAttempt {
	cp := *a
	cp.Questions = nil
	return &cp
}

func copyQuestions(rows []*models.AttemptQuestion) []*models.AttemptQuestion {
	out := make([]*models.AttemptQuestion, 0, len(rows))
	for _, row := range rows {
		cp := *row
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func questionValues(rows []*models.AttemptQuestion) []models.AttemptQuestion {
	out := make([]models.AttemptQuestion, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// ===== ATTEMPT REPO =====

type memoryAttemptRepo memoryRepository

func (m *memoryAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt, questions []*models.AttemptQuestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts[attempt.ID] = copyAttempt(attempt)
	m.questions[attempt.ID] = copyQuestions(questions)
	return nil
}

func (m *memoryAttemptRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.TestAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	attempt, ok := m.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return copyAttempt(attempt), nil
}

func (m *memoryAttemptRepo) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id string) (*models.TestAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	attempt, ok := m.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}

	cp := copyAttempt(attempt)
	cp.Questions = questionValues(m.questions[id])
	return cp, nil
}

func (m *memoryAttemptRepo) GetByOwner(ctx context.Context, tx *gorm.DB, ownerID string, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*models.TestAttempt
	for _, attempt := range m.attempts {
		if attempt.OwnerID == nil || *attempt.OwnerID != ownerID {
			continue
		}
		if filters.Status != nil && attempt.Status != *filters.Status {
			continue
		}
		matched = append(matched, copyAttempt(attempt))
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].StartedAt.After(matched[j].StartedAt) })

	total := int64(len(matched))
	if filters.Offset > 0 {
		if filters.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[filters.Offset:]
	}
	if filters.Limit > 0 && filters.Limit < len(matched) {
		matched = matched[:filters.Limit]
	}

	return matched, total, nil
}

func (m *memoryAttemptRepo) UpdateAnswer(ctx context.Context, tx *gorm.DB, attemptID string, questionID uint, update repositories.AnswerUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	attempt, ok := m.attempts[attemptID]
	if !ok || attempt.Status != models.AttemptInProgress {
		return false, nil
	}

	for _, row := range m.questions[attemptID] {
		if row.QuestionID != questionID {
			continue
		}
		if update.AnswerSet {
			row.Answer = update.Answer
		}
		if update.Flagged != nil {
			row.Flagged = *update.Flagged
		}
		row.UpdatedAt = time.Now().UTC()
		attempt.Version++
		return true, nil
	}

	return false, nil
}

func (m *memoryAttemptRepo) SubmitCAS(ctx context.Context, tx *gorm.DB, id string, observedVersion int64, write repositories.SubmissionWrite) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	attempt, ok := m.attempts[id]
	if !ok || attempt.Status != models.AttemptInProgress || attempt.Version != observedVersion {
		return false, nil
	}

	submittedAt := write.SubmittedAt
	score := write.Score
	correct := write.CorrectCount

	attempt.Status = models.AttemptSubmitted
	attempt.SubmittedAt = &submittedAt
	attempt.Score = &score
	attempt.CorrectCount = &correct
	attempt.TotalQuestions = write.Total
	attempt.Results = write.Results
	attempt.Version = observedVersion + 1
	return true, nil
}

func (m *memoryAttemptRepo) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.attempts[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.attempts, id)
	delete(m.questions, id)
	return nil
}

// ===== QUESTION REPO =====

type memoryQuestionRepo memoryRepository

func (m *memoryQuestionRepo) published(filter func(*models.Question) bool) []*models.Question {
	var out []*models.Question
	for _, q := range m.pool {
		if q.Status == models.QuestionPublished && filter(q) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memoryQuestionRepo) GetPublishedByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published(func(q *models.Question) bool {
		return q.ExamID != nil && *q.ExamID == examID
	}), nil
}

func (m *memoryQuestionRepo) GetPublishedByPaper(ctx context.Context, tx *gorm.DB, paperID uint) ([]*models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published(func(q *models.Question) bool {
		return q.PaperID != nil && *q.PaperID == paperID
	}), nil
}

func (m *memoryQuestionRepo) GetPublishedByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[uint]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	return m.published(func(q *models.Question) bool { return wanted[q.ID] }), nil
}

func (m *memoryQuestionRepo) GetCorrectIndexes(ctx context.Context, tx *gorm.DB, ids []uint) (map[uint]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[uint]int)
	for _, id := range ids {
		if q, ok := m.pool[id]; ok && q.Status == models.QuestionPublished {
			out[id] = q.CorrectIndex
		}
	}
	return out, nil
}

// ===== CONTENT REPO =====

type memoryContentRepo memoryRepository

func (m *memoryContentRepo) GetExamByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exam, ok := m.exams[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return exam, nil
}

func (m *memoryContentRepo) GetPaperByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionPaper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	paper, ok := m.papers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return paper, nil
}
