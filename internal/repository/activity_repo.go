package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-activity-timeline/internal/models"
)

// SubjectRef matches activities by polymorphic subject type and ids.
type SubjectRef struct {
	Type string
	IDs  []uint
}

// ActivityQuery narrows activity log queries to a set of subjects.
type ActivityQuery struct {
	Subjects []SubjectRef
	Offset   int
	Limit    int
	Scopes   []func(*gorm.DB) *gorm.DB
}

// ActivityRepository reads the append-only activity log.
type ActivityRepository interface {
	Create(ctx context.Context, entry *models.Activity) error
	List(ctx context.Context, query ActivityQuery) ([]models.Activity, error)
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository constructs the activity repository.
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(ctx context.Context, entry *models.Activity) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// List returns activities whose subject matches any of the refs, newest first.
// Refs without ids are ignored; no usable ref yields no rows.
func (r *activityRepository) List(ctx context.Context, query ActivityQuery) ([]models.Activity, error) {
	var subjects *gorm.DB
	for _, ref := range query.Subjects {
		if ref.Type == "" || len(ref.IDs) == 0 {
			continue
		}
		if subjects == nil {
			subjects = r.db.Where("subject_type = ? AND subject_id IN ?", ref.Type, ref.IDs)
			continue
		}
		subjects = subjects.Or("subject_type = ? AND subject_id IN ?", ref.Type, ref.IDs)
	}
	if subjects == nil {
		return []models.Activity{}, nil
	}

	tx := r.db.WithContext(ctx).
		Model(&models.Activity{}).
		Where(subjects).
		Scopes(query.Scopes...).
		Order("created_at DESC").
		Order("id DESC")

	if query.Offset > 0 {
		tx = tx.Offset(query.Offset)
	}
	if query.Limit > 0 {
		tx = tx.Limit(query.Limit)
	}

	var entries []models.Activity
	if err := tx.Find(&entries).Error; err != nil {
		return nil, err
	}

	return entries, nil
}
