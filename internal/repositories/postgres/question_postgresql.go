package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/prepstack/practice-service/internal/cache"
	"github.com/prepstack/practice-service/internal/models"
	"github.com/prepstack/practice-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// GetPublishedByExam returns the published pool for an exam in creation order.
func (q *QuestionPostgreSQL) GetPublishedByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Question, error) {
	db := q.getDB(tx)

	var questions []*models.Question
	cacheKey := fmt.Sprintf("pool:exam:%d", examID)

	err := q.cacheManager.Question.CacheOrExecute(ctx, cacheKey, &questions, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		var pool []*models.Question
		if err := db.WithContext(ctx).
			Where("exam_id = ? AND status = ?", examID, models.QuestionPublished).
			Order("id ASC").
			Find(&pool).Error; err != nil {
			return nil, err
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}

	return questions, nil
}

// GetPublishedByPaper returns the published pool for a question paper in
// creation order.
func (q *QuestionPostgreSQL) GetPublishedByPaper(ctx context.Context, tx *gorm.DB, paperID uint) ([]*models.Question, error) {
	db := q.getDB(tx)

	var questions []*models.Question
	cacheKey := fmt.Sprintf("pool:paper:%d", paperID)

	err := q.cacheManager.Question.CacheOrExecute(ctx, cacheKey, &questions, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		var pool []*models.Question
		if err := db.WithContext(ctx).
			Where("paper_id = ? AND status = ?", paperID, models.QuestionPublished).
			Order("id ASC").
			Find(&pool).Error; err != nil {
			return nil, err
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}

	return questions, nil
}

func (q *QuestionPostgreSQL) GetPublishedByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db := q.getDB(tx)

	var questions []*models.Question
	if err := db.WithContext(ctx).
		Where("id IN ? AND status = ?", ids, models.QuestionPublished).
		Order("id ASC").
		Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

// GetCorrectIndexes is a grading-time read; it deliberately skips the cache so
// scoring always uses the current published rows.
func (q *QuestionPostgreSQL) GetCorrectIndexes(ctx context.Context, tx *gorm.DB, ids []uint) (map[uint]int, error) {
	if len(ids) == 0 {
		return map[uint]int{}, nil
	}
	db := q.getDB(tx)

	var rows []struct {
		ID           uint
		CorrectIndex int
	}
	if err := db.WithContext(ctx).Model(&models.Question{}).
		Select("id", "correct_index").
		Where("id IN ? AND status = ?", ids, models.QuestionPublished).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	indexes := make(map[uint]int, len(rows))
	for _, row := range rows {
		indexes[row.ID] = row.CorrectIndex
	}
	return indexes, nil
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (q *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}
