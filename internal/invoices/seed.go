package invoices

import "time"

func amount(v float64) *float64 { return &v }

func mustTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// Seed returns a fresh copy of the demonstration invoices and items used in
// mock mode.
func Seed() ([]Invoice, []Item) {
	list := []Invoice{
		{ID: "44ac2333-2c7d-424e-998f-91c2be8207b3", Supplier: "TOKYO-YA, S.A.", InvoiceDate: "2024-12-20", TotalAmount: 62192, NetAmount: amount(56538), ExchangeRate: 1.0, FinancingType: FinancingCredit, Status: StatusPaid, CreatedAt: mustTime("2024-12-20T09:00:00Z")},
		{ID: "a1b2c3d4-5e6f-7a8b-9c0d-1e2f3a4b5c6d", Supplier: "TechCorp Inc", InvoiceDate: "2024-12-19", TotalAmount: 85000, NetAmount: amount(76500), ExchangeRate: 1.2, FinancingType: FinancingCash, Status: StatusPending, CreatedAt: mustTime("2024-12-19T11:30:00Z")},
		{ID: "b2c3d4e5-6f7a-8b9c-0d1e-2f3a4b5c6d7e", Supplier: "MegaDistributors", InvoiceDate: "2024-12-18", TotalAmount: 95000, NetAmount: amount(85500), ExchangeRate: 1.0, FinancingType: FinancingCredit, Status: StatusPaid, CreatedAt: mustTime("2024-12-18T14:20:00Z")},
		{ID: "c3d4e5f6-7a8b-9c0d-1e2f-3a4b5c6d7e8f", Supplier: "Global Supplies Ltd", InvoiceDate: "2024-12-17", TotalAmount: 110000, NetAmount: amount(99000), ExchangeRate: 1.1, FinancingType: FinancingCredit, Status: StatusOverdue, CreatedAt: mustTime("2024-12-17T10:45:00Z")},
		{ID: "d4e5f6a7-8b9c-0d1e-2f3a-4b5c6d7e8f9a", Supplier: "Acme Corporation", InvoiceDate: "2024-12-16", TotalAmount: 72000, NetAmount: amount(64800), ExchangeRate: 1.0, FinancingType: FinancingCash, Status: StatusPaid, CreatedAt: mustTime("2024-12-16T16:00:00Z")},
		{ID: "e5f6a7b8-9c0d-1e2f-3a4b-5c6d7e8f9a0b", Supplier: "Prime Vendors", InvoiceDate: "2024-12-15", TotalAmount: 58000, NetAmount: amount(52200), ExchangeRate: 1.15, FinancingType: FinancingCredit, Status: StatusPending, CreatedAt: mustTime("2024-12-15T12:30:00Z")},
	}
	items := []Item{
		{ID: "inv-item-001", InvoiceID: list[0].ID, ItemID: "0305", Description: "Kikkoman Shoyu (1L) NL", Units: 60, UnitPrice: 4.40, BatchNumber: "B2024-001", Amount: 264.00},
		{ID: "inv-item-002", InvoiceID: list[0].ID, ItemID: "0333", Description: "Kikkoman Gluten Free Shoyu (1L)", Units: 30, UnitPrice: 5.02, BatchNumber: "B2024-002", Amount: 150.60},
	}
	return list, items
}
