package models

import "time"

// Order is the slice of the shop's order record the manifest flows read:
// the customer-facing number and the shipping recipient.
type Order struct {
	ID                int64     `gorm:"column:id;primaryKey;autoIncrement"`
	OrderNumber       string    `gorm:"column:order_number;not null"`
	ShippingFirstName string    `gorm:"column:shipping_first_name;not null;default:''"`
	ShippingLastName  string    `gorm:"column:shipping_last_name;not null;default:''"`
	ShippingCompany   string    `gorm:"column:shipping_company;not null;default:''"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }
