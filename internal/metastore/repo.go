package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/scanform-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a metadata gateway bound to the provided DB.
func NewRepository(db *gorm.DB) Store {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Store {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) BulkGet(ctx context.Context, orderIDs []int64, key string) (map[int64]string, error) {
	out := map[int64]string{}
	ids := uniqueIDs(orderIDs)
	if len(ids) == 0 {
		return out, nil
	}

	var rows []Row
	err := r.db.WithContext(ctx).
		Model(&models.OrderMeta{}).
		Select("order_id, meta_value").
		Where("meta_key = ? AND order_id IN ?", key, ids).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("bulk get %s: %w", key, err)
	}
	for _, row := range rows {
		out[row.OrderID] = row.Value
	}
	return out, nil
}

func (r *repository) ScanKey(ctx context.Context, key string) ([]Row, error) {
	var rows []Row
	err := r.db.WithContext(ctx).
		Model(&models.OrderMeta{}).
		Select("order_id, meta_value").
		Where("meta_key = ?", key).
		Order("order_id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", key, err)
	}
	return rows, nil
}

func (r *repository) ScanJoined(ctx context.Context, key, joinKey string) ([]JoinedRow, error) {
	var rows []JoinedRow
	err := r.db.WithContext(ctx).
		Table("order_meta AS m1").
		Select("m1.order_id AS order_id, m1.meta_value AS meta_value, m2.meta_value AS joined_value").
		Joins("INNER JOIN order_meta AS m2 ON m2.order_id = m1.order_id AND m2.meta_key = ?", joinKey).
		Where("m1.meta_key = ?", key).
		Order("m1.order_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("scan %s joined with %s: %w", key, joinKey, err)
	}
	return rows, nil
}

func (r *repository) Put(ctx context.Context, orderID int64, key string, value any) error {
	encoded, err := encode(value)
	if err != nil {
		return err
	}
	return upsert(r.db.WithContext(ctx), orderID, key, encoded)
}

func (r *repository) Mutate(ctx context.Context, orderID int64, key string, fn MutateFunc) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.OrderMeta
		found := true
		err := tx.Where("order_id = ? AND meta_key = ?", orderID, key).Take(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			found = false
		} else if err != nil {
			return fmt.Errorf("read %s for order %d: %w", key, orderID, err)
		}

		next, err := fn(current.MetaValue, found)
		if err != nil {
			return err
		}
		return upsert(tx, orderID, key, next)
	})
}

func upsert(db *gorm.DB, orderID int64, key, value string) error {
	row := models.OrderMeta{OrderID: orderID, MetaKey: key, MetaValue: value}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "meta_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"meta_value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("write %s for order %d: %w", key, orderID, err)
	}
	return nil
}

func encode(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case json.RawMessage:
		return string(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode meta value: %w", err)
	}
	return string(b), nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
