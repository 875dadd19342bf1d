package models

import "time"

// OrderMeta is one serialized value stored against an order under a key.
// Values are kept as text so that a malformed payload for one order can be
// loaded and skipped without failing the surrounding query.
type OrderMeta struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID   int64     `gorm:"column:order_id;not null;uniqueIndex:ux_order_meta_order_key,priority:1;index:ix_order_meta_key_order,priority:2"`
	MetaKey   string    `gorm:"column:meta_key;size:191;not null;uniqueIndex:ux_order_meta_order_key,priority:2;index:ix_order_meta_key_order,priority:1"`
	MetaValue string    `gorm:"column:meta_value;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (OrderMeta) TableName() string { return "order_meta" }

// All returns every model the schema owns, in dependency order.
func All() []any {
	return []any{&Order{}, &OrderMeta{}}
}
