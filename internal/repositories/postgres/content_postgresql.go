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

type ContentPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewContentPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ContentRepository {
	return &ContentPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (c *ContentPostgreSQL) GetExamByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := c.getDB(tx)

	var exam models.Exam
	cacheKey := fmt.Sprintf("exam:%d", id)

	err := c.cacheManager.Content.CacheOrExecute(ctx, cacheKey, &exam, cache.ContentCacheConfig.TTL, func() (interface{}, error) {
		var e models.Exam
		if err := db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
			return nil, err
		}
		return &e, nil
	})
	if err != nil {
		return nil, err
	}

	return &exam, nil
}

func (c *ContentPostgreSQL) GetPaperByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionPaper, error) {
	db := c.getDB(tx)

	var paper models.QuestionPaper
	cacheKey := fmt.Sprintf("paper:%d", id)

	err := c.cacheManager.Content.CacheOrExecute(ctx, cacheKey, &paper, cache.ContentCacheConfig.TTL, func() (interface{}, error) {
		var p models.QuestionPaper
		if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
			return nil, err
		}
		return &p, nil
	})
	if err != nil {
		return nil, err
	}

	return &paper, nil
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (c *ContentPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return c.db
}
