// Package model holds the gorm row shapes for order persistence. Decimals
// are stored as strings to keep exact values across the SQLite round trip.
package model

import "time"

type OrderModel struct {
	ID              string `gorm:"column:id;primaryKey"`
	UserID          string `gorm:"column:user_id;index"`
	AccountID       string `gorm:"column:account_id;index"`
	Symbol          string `gorm:"column:symbol;index"`
	Exchange        string `gorm:"column:exchange"`
	Side            string `gorm:"column:side"`
	OrderType       string `gorm:"column:order_type"`
	TimeInForce     string `gorm:"column:time_in_force"`
	Quantity        int64  `gorm:"column:quantity"`
	FilledQuantity  int64  `gorm:"column:filled_quantity"`
	LimitPrice      string `gorm:"column:limit_price"`
	StopPrice       string `gorm:"column:stop_price"`
	ExpiryUnix      int64  `gorm:"column:expiry_unix"`
	Status          string `gorm:"column:status;index"`
	BrokerOrderID   string `gorm:"column:broker_order_id"`
	BrokerName      string `gorm:"column:broker_name"`
	RejectionReason string `gorm:"column:rejection_reason"`
	CreatedAtUnix   int64  `gorm:"column:created_at"`
	UpdatedAtUnix   int64  `gorm:"column:updated_at"`
}

func (OrderModel) TableName() string { return "orders" }

// OrderTransitionModel is one audit row per status change.
type OrderTransitionModel struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID    string    `gorm:"column:order_id;index"`
	FromStatus string    `gorm:"column:from_status"`
	ToStatus   string    `gorm:"column:to_status"`
	Note       string    `gorm:"column:note"`
	At         time.Time `gorm:"column:at"`
}

func (OrderTransitionModel) TableName() string { return "order_transitions" }
