// Package orders serves purchase orders and their line items.
package orders

import (
	"time"

	"github.com/fmc-ops/opsdash/internal/listing"
	"github.com/fmc-ops/opsdash/internal/result"
)

// Status values an order moves through.
const (
	StatusActive    = "Active"
	StatusCompleted = "Completed"
	StatusPending   = "Pending"
	StatusCancelled = "Cancelled"
)

// Source channels an order can arrive through.
const (
	SourceEmail    = "Email"
	SourceTelegram = "Telegram"
	SourceChat     = "Chat"
	SourceWeb      = "Web"
)

var (
	ErrNotFound    = result.Sentinel(result.KindNotFound, "Order not found")
	ErrNoSelection = result.Sentinel(result.KindValidation, "No orders selected")
)

// Order is one purchase order. OrderDate is YYYY-MM-DD.
type Order struct {
	ID            string    `json:"id"`
	Supplier      string    `json:"supplier"`
	OrderDate     string    `json:"order_date"`
	TotalAmount   float64   `json:"total_amount"`
	NetAmount     *float64  `json:"net_amount"`
	SourceChannel string    `json:"source_channel"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// Normalize fills the defaults a stored row may lack.
func (o Order) Normalize() Order {
	if o.SourceChannel == "" {
		o.SourceChannel = SourceEmail
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	return o
}

// Item is one order line.
type Item struct {
	ID          string  `json:"id"`
	OrderID     string  `json:"order_id"`
	ProductCode string  `json:"product_code"`
	Description string  `json:"description"`
	Units       float64 `json:"units"`
	UnitPrice   float64 `json:"unit_price"`
	BatchNumber string  `json:"batch_number"`
	Amount      float64 `json:"amount"`
}

// CreateInput is the payload accepted by POST /api/orders.
type CreateInput struct {
	Supplier      string   `json:"supplier" validate:"required,max=200"`
	OrderDate     string   `json:"order_date" validate:"required,datetime=2006-01-02"`
	TotalAmount   float64  `json:"total_amount" validate:"gte=0"`
	NetAmount     *float64 `json:"net_amount" validate:"omitempty,gte=0"`
	SourceChannel string   `json:"source_channel" validate:"omitempty,oneof=Email Telegram Chat Web"`
	Status        string   `json:"status" validate:"omitempty,oneof=Active Completed Pending Cancelled"`
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Supplier      *string  `json:"supplier" validate:"omitempty,min=1,max=200"`
	OrderDate     *string  `json:"order_date" validate:"omitempty,datetime=2006-01-02"`
	TotalAmount   *float64 `json:"total_amount" validate:"omitempty,gte=0"`
	NetAmount     *float64 `json:"net_amount" validate:"omitempty,gte=0"`
	SourceChannel *string  `json:"source_channel" validate:"omitempty,oneof=Email Telegram Chat Web"`
	Status        *string  `json:"status" validate:"omitempty,oneof=Active Completed Pending Cancelled"`
}

// Empty reports whether the patch changes nothing.
func (u UpdateInput) Empty() bool {
	return u.Supplier == nil && u.OrderDate == nil && u.TotalAmount == nil &&
		u.NetAmount == nil && u.SourceChannel == nil && u.Status == nil
}

func (u UpdateInput) apply(o Order) Order {
	if u.Supplier != nil {
		o.Supplier = *u.Supplier
	}
	if u.OrderDate != nil {
		o.OrderDate = *u.OrderDate
	}
	if u.TotalAmount != nil {
		o.TotalAmount = *u.TotalAmount
	}
	if u.NetAmount != nil {
		v := *u.NetAmount
		o.NetAmount = &v
	}
	if u.SourceChannel != nil {
		o.SourceChannel = *u.SourceChannel
	}
	if u.Status != nil {
		o.Status = *u.Status
	}
	return o
}

// Deleted reports the outcome of a delete.
type Deleted struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

// Fields exposes the filterable attributes of an order.
var Fields = listing.Fields[Order]{
	ID:       func(o Order) string { return o.ID },
	Supplier: func(o Order) string { return o.Supplier },
	Status:   func(o Order) string { return o.Status },
	Date:     func(o Order) string { return o.OrderDate },
	Amount:   func(o Order) float64 { return o.TotalAmount },
}

// IDs returns the ids of orders in order.
func IDs(list []Order) []string {
	ids := make([]string, len(list))
	for i, o := range list {
		ids[i] = o.ID
	}
	return ids
}
