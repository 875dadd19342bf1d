package metastore

import (
	"context"

	"gorm.io/gorm"
)

// Keys under which order-scoped shipping data is stored.
const (
	KeyLabels        = "shipping_labels"
	KeyOrigins       = "shipment_origins"
	KeyShipmentDates = "shipment_dates"
	KeyScanForms     = "scan_forms"
)

// Row is one raw stored value.
type Row struct {
	OrderID int64  `gorm:"column:order_id"`
	Value   string `gorm:"column:meta_value"`
}

// JoinedRow pairs two values stored on the same order.
type JoinedRow struct {
	OrderID     int64  `gorm:"column:order_id"`
	Value       string `gorm:"column:meta_value"`
	JoinedValue string `gorm:"column:joined_value"`
}

// MutateFunc receives the current raw value (found=false when absent) and
// returns the replacement.
type MutateFunc func(current string, found bool) (string, error)

// Store is the bulk key/value gateway over per-order metadata. Every read
// issues a single query regardless of how many orders are involved.
type Store interface {
	WithTx(tx *gorm.DB) Store
	// BulkGet returns the raw value per order for key. An empty id set
	// yields an empty map without touching the database.
	BulkGet(ctx context.Context, orderIDs []int64, key string) (map[int64]string, error)
	// ScanKey returns every order holding key, newest order first.
	ScanKey(ctx context.Context, key string) ([]Row, error)
	// ScanJoined returns orders holding both key and joinKey, ascending by order id.
	ScanJoined(ctx context.Context, key, joinKey string) ([]JoinedRow, error)
	Put(ctx context.Context, orderID int64, key string, value any) error
	// Mutate performs a read-modify-write of one value inside a transaction.
	Mutate(ctx context.Context, orderID int64, key string, fn MutateFunc) error
}
