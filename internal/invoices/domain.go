// Package invoices serves supplier invoices and their line items.
package invoices

import (
	"time"

	"github.com/fmc-ops/opsdash/internal/listing"
	"github.com/fmc-ops/opsdash/internal/result"
)

const (
	StatusPending = "Pending"
	StatusPaid    = "Paid"
	StatusOverdue = "Overdue"
)

const (
	FinancingCredit = "Credit"
	FinancingCash   = "Cash"
)

// DefaultExchangeRate applies when an invoice carries no rate.
const DefaultExchangeRate = 1.0

var (
	ErrNotFound    = result.Sentinel(result.KindNotFound, "Invoice not found")
	ErrNoSelection = result.Sentinel(result.KindValidation, "No invoices selected")
)

// Invoice is one supplier invoice. InvoiceDate is YYYY-MM-DD.
type Invoice struct {
	ID            string    `json:"id"`
	Supplier      string    `json:"supplier"`
	InvoiceDate   string    `json:"invoice_date"`
	TotalAmount   float64   `json:"total_amount"`
	NetAmount     *float64  `json:"net_amount"`
	ExchangeRate  float64   `json:"exchange_rate"`
	FinancingType string    `json:"financing_type"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// Normalize fills the defaults a stored row may lack.
func (i Invoice) Normalize() Invoice {
	if i.ExchangeRate == 0 {
		i.ExchangeRate = DefaultExchangeRate
	}
	if i.FinancingType == "" {
		i.FinancingType = FinancingCredit
	}
	if i.Status == "" {
		i.Status = StatusPending
	}
	return i
}

// Item is one invoice line. ItemID is the supplier's product code.
type Item struct {
	ID          string  `json:"id"`
	InvoiceID   string  `json:"invoice_id"`
	ItemID      string  `json:"item_id"`
	Description string  `json:"description"`
	Units       float64 `json:"units"`
	UnitPrice   float64 `json:"unit_price"`
	BatchNumber string  `json:"batch_number"`
	Amount      float64 `json:"amount"`
}

// CreateInput is the payload accepted by POST /api/invoices.
type CreateInput struct {
	Supplier      string   `json:"supplier" validate:"required,max=200"`
	InvoiceDate   string   `json:"invoice_date" validate:"required,datetime=2006-01-02"`
	TotalAmount   float64  `json:"total_amount" validate:"gte=0"`
	NetAmount     *float64 `json:"net_amount" validate:"omitempty,gte=0"`
	ExchangeRate  float64  `json:"exchange_rate" validate:"gte=0"`
	FinancingType string   `json:"financing_type" validate:"omitempty,oneof=Credit Cash"`
	Status        string   `json:"status" validate:"omitempty,oneof=Pending Paid Overdue"`
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Supplier      *string  `json:"supplier" validate:"omitempty,min=1,max=200"`
	InvoiceDate   *string  `json:"invoice_date" validate:"omitempty,datetime=2006-01-02"`
	TotalAmount   *float64 `json:"total_amount" validate:"omitempty,gte=0"`
	NetAmount     *float64 `json:"net_amount" validate:"omitempty,gte=0"`
	ExchangeRate  *float64 `json:"exchange_rate" validate:"omitempty,gt=0"`
	FinancingType *string  `json:"financing_type" validate:"omitempty,oneof=Credit Cash"`
	Status        *string  `json:"status" validate:"omitempty,oneof=Pending Paid Overdue"`
}

// Empty reports whether the patch changes nothing.
func (u UpdateInput) Empty() bool {
	return u.Supplier == nil && u.InvoiceDate == nil && u.TotalAmount == nil && u.NetAmount == nil &&
		u.ExchangeRate == nil && u.FinancingType == nil && u.Status == nil
}

func (u UpdateInput) apply(inv Invoice) Invoice {
	if u.Supplier != nil {
		inv.Supplier = *u.Supplier
	}
	if u.InvoiceDate != nil {
		inv.InvoiceDate = *u.InvoiceDate
	}
	if u.TotalAmount != nil {
		inv.TotalAmount = *u.TotalAmount
	}
	if u.NetAmount != nil {
		v := *u.NetAmount
		inv.NetAmount = &v
	}
	if u.ExchangeRate != nil {
		inv.ExchangeRate = *u.ExchangeRate
	}
	if u.FinancingType != nil {
		inv.FinancingType = *u.FinancingType
	}
	if u.Status != nil {
		inv.Status = *u.Status
	}
	return inv
}

// Deleted reports the outcome of a delete.
type Deleted struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

// Fields exposes the filterable attributes of an invoice.
var Fields = listing.Fields[Invoice]{
	ID:       func(i Invoice) string { return i.ID },
	Supplier: func(i Invoice) string { return i.Supplier },
	Status:   func(i Invoice) string { return i.Status },
	Date:     func(i Invoice) string { return i.InvoiceDate },
	Amount:   func(i Invoice) float64 { return i.TotalAmount },
}

// IDs returns the ids of invoices in order.
func IDs(list []Invoice) []string {
	ids := make([]string, len(list))
	for i, inv := range list {
		ids[i] = inv.ID
	}
	return ids
}
