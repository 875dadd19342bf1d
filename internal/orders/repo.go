package orders

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/scanform-backend/pkg/db/models"
)

// Summary is what label listings show about the owning order.
type Summary struct {
	ID           int64
	Number       string
	ShippingName string
}

// Repository resolves order display data in bulk.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByIDs(ctx context.Context, ids []int64) (map[int64]Summary, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByIDs(ctx context.Context, ids []int64) (map[int64]Summary, error) {
	out := map[int64]Summary{}
	if len(ids) == 0 {
		return out, nil
	}

	var rows []models.Order
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	for _, row := range rows {
		out[row.ID] = Summary{
			ID:           row.ID,
			Number:       orderNumber(row),
			ShippingName: ShippingFullName(row.ShippingFirstName, row.ShippingLastName),
		}
	}
	return out, nil
}

// ShippingFullName joins first and last name, dropping whichever is blank.
func ShippingFullName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

func orderNumber(o models.Order) string {
	if n := strings.TrimSpace(o.OrderNumber); n != "" {
		return n
	}
	return fmt.Sprintf("%d", o.ID)
}
