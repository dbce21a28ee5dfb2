package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordRepository loads rows addressed through polymorphic references.
// Tables and columns come from configuration, never from requests.
type RecordRepository interface {
	Find(ctx context.Context, table string, id uint) (map[string]interface{}, error)
	FindMany(ctx context.Context, table string, ids []uint) (map[uint]map[string]interface{}, error)
	RelatedIDs(ctx context.Context, table, foreignKey string, parentID uint) ([]uint, error)
}

type recordRepository struct {
	db *gorm.DB
}

// NewRecordRepository constructs the record repository.
func NewRecordRepository(db *gorm.DB) RecordRepository {
	return &recordRepository{db: db}
}

// Find returns the row or nil when it does not exist.
func (r *recordRepository) Find(ctx context.Context, table string, id uint) (map[string]interface{}, error) {
	var rows []map[string]interface{}
	err := r.db.WithContext(ctx).
		Table(table).
		Where(clause.Eq{Column: clause.Column{Name: "id"}, Value: id}).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find %s row: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *recordRepository) FindMany(ctx context.Context, table string, ids []uint) (map[uint]map[string]interface{}, error) {
	result := make(map[uint]map[string]interface{}, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var rows []map[string]interface{}
	err := r.db.WithContext(ctx).
		Table(table).
		Where(clause.IN{Column: clause.Column{Name: "id"}, Values: toInterfaces(ids)}).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find %s rows: %w", table, err)
	}

	for _, row := range rows {
		if id, ok := toUint(row["id"]); ok {
			result[id] = row
		}
	}
	return result, nil
}

// RelatedIDs selects ids of rows pointing at parentID, soft-deleted rows
// included.
func (r *recordRepository) RelatedIDs(ctx context.Context, table, foreignKey string, parentID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Table(table).
		Where(clause.Eq{Column: clause.Column{Name: foreignKey}, Value: parentID}).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("select related %s ids: %w", table, err)
	}
	return ids, nil
}

func toInterfaces(ids []uint) []interface{} {
	values := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		values = append(values, id)
	}
	return values
}

func toUint(value interface{}) (uint, bool) {
	switch v := value.(type) {
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case int32:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case uint:
		return v, true
	case uint64:
		return uint(v), true
	case uint32:
		return uint(v), true
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	default:
		return 0, false
	}
}
