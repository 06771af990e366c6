package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/prepstack/practice-service/internal/cache"
	"github.com/prepstack/practice-service/internal/models"
	"github.com/prepstack/practice-service/internal/repositories"
)

type AttemptPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt, questions []*models.AttemptQuestion) error {
	db := a.getDB(tx)
	return db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		if err := txn.Create(attempt).Error; err != nil {
			return fmt.Errorf("failed to create attempt: %w", err)
		}
		if err := txn.CreateInBatches(questions, 100).Error; err != nil {
			return fmt.Errorf("failed to create attempt questions: %w", err)
		}
		return nil
	})
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.TestAttempt, error) {
	db := a.getDB(tx)
	var attempt models.TestAttempt
	if err := db.WithContext(ctx).Where("id = ?", id).First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id string) (*models.TestAttempt, error) {
	db := a.getDB(tx)
	var attempt models.TestAttempt
	if err := db.WithContext(ctx).
		Preload("Questions", func(q *gorm.DB) *gorm.DB {
			return q.Order("position ASC")
		}).
		Where("id = ?", id).
		First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByOwner(ctx context.Context, tx *gorm.DB, ownerID string, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	db := a.getDB(tx)
	var attempts []*models.TestAttempt
	var total int64

	// apply filter first
	query := db.WithContext(ctx).Model(&models.TestAttempt{}).Where("owner_id = ?", ownerID)
	query = a.helpers.ApplyAttemptFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then apply pagination and sorting
	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

// UpdateAnswer rewrites one question row and bumps the attempt version inside
// a single transaction. Both statements are guarded by status = in_progress,
// so a write racing a submit either lands before the submitter's read or fails
// the submitter's CAS.
func (a *AttemptPostgreSQL) UpdateAnswer(ctx context.Context, tx *gorm.DB, attemptID string, questionID uint, update repositories.AnswerUpdate) (bool, error) {
	db := a.getDB(tx)

	updates := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if update.AnswerSet {
		updates["answer"] = update.Answer
	}
	if update.Flagged != nil {
		updates["flagged"] = *update.Flagged
	}

	applied := false
	err := db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		res := txn.Model(&models.AttemptQuestion{}).
			Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
			Where("EXISTS (SELECT 1 FROM test_attempts WHERE test_attempts.id = ? AND test_attempts.status = ?)",
				attemptID, models.AttemptInProgress).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update answer: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		bump := txn.Model(&models.TestAttempt{}).
			Where("id = ? AND status = ?", attemptID, models.AttemptInProgress).
			Update("version", gorm.Expr("version + 1"))
		if bump.Error != nil {
			return fmt.Errorf("failed to bump attempt version: %w", bump.Error)
		}
		if bump.RowsAffected == 0 {
			// Status flipped between the two statements; roll the answer back.
			return gorm.ErrRecordNotFound
		}

		applied = true
		return nil
	})
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, nil
		}
		return false, err
	}

	return applied, nil
}

// SubmitCAS applies the whole submission field set iff the version is the one
// the caller observed. RowsAffected == 0 means another submit won the race.
func (a *AttemptPostgreSQL) SubmitCAS(ctx context.Context, tx *gorm.DB, id string, observedVersion int64, write repositories.SubmissionWrite) (bool, error) {
	db := a.getDB(tx)
	res := db.WithContext(ctx).Model(&models.TestAttempt{}).
		Where("id = ? AND version = ? AND status = ?", id, observedVersion, models.AttemptInProgress).
		Updates(map[string]interface{}{
			"status":          models.AttemptSubmitted,
			"submitted_at":    write.SubmittedAt,
			"score":           write.Score,
			"correct_count":   write.CorrectCount,
			"total_questions": write.Total,
			"results":         write.Results,
			"version":         observedVersion + 1,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to submit attempt: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (a *AttemptPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	db := a.getDB(tx)
	return db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		if err := txn.Where("attempt_id = ?", id).Delete(&models.AttemptQuestion{}).Error; err != nil {
			return fmt.Errorf("failed to delete attempt questions: %w", err)
		}

		res := txn.Where("id = ?", id).Delete(&models.TestAttempt{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete attempt: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}
