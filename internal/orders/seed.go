package orders

import "time"

func ptr(v float64) *float64 { return &v }

func at(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// Seed returns a fresh copy of the demonstration orders and items used in
// mock mode.
func Seed() ([]Order, []Item) {
	list := []Order{
		{ID: "559e3a6d-c6c2-4524-9b4d-061be438eeda", Supplier: "TechCorp Inc", OrderDate: "2024-12-20", TotalAmount: 45000, NetAmount: ptr(40500), SourceChannel: SourceEmail, Status: StatusActive, CreatedAt: at("2024-12-20T10:30:00Z")},
		{ID: "a2910330-4a3c-4c0f-8102-0dd53622efcc", Supplier: "MegaDistributors", OrderDate: "2024-12-19", TotalAmount: 75000, NetAmount: ptr(67500), SourceChannel: SourceTelegram, Status: StatusActive, CreatedAt: at("2024-12-19T14:45:00Z")},
		{ID: "35711826-7d3c-4ca1-9dda-5ba61f092882", Supplier: "QuickSupply Co", OrderDate: "2024-12-18", TotalAmount: 30000, NetAmount: ptr(27000), SourceChannel: SourceChat, Status: StatusCompleted, CreatedAt: at("2024-12-18T09:15:00Z")},
		{ID: "b4e5f678-9a1b-2c3d-4e5f-6789abcdef01", Supplier: "Global Supplies Ltd", OrderDate: "2024-12-17", TotalAmount: 120000, NetAmount: ptr(108000), SourceChannel: SourceEmail, Status: StatusActive, CreatedAt: at("2024-12-17T16:20:00Z")},
		{ID: "c5f6g789-0b1c-2d3e-4f5a-6789bcdef012", Supplier: "Acme Corporation", OrderDate: "2024-12-16", TotalAmount: 55000, NetAmount: ptr(49500), SourceChannel: SourceTelegram, Status: StatusPending, CreatedAt: at("2024-12-16T11:00:00Z")},
		{ID: "d6e7f890-1c2d-3e4f-5a6b-7890cdef1234", Supplier: "Prime Vendors", OrderDate: "2024-12-15", TotalAmount: 88000, NetAmount: ptr(79200), SourceChannel: SourceEmail, Status: StatusActive, CreatedAt: at("2024-12-15T08:30:00Z")},
		{ID: "e7f8g901-2d3e-4f5a-6b7c-8901def2345", Supplier: "FastTrack Solutions", OrderDate: "2024-12-14", TotalAmount: 42000, NetAmount: ptr(37800), SourceChannel: SourceChat, Status: StatusCompleted, CreatedAt: at("2024-12-14T13:45:00Z")},
		{ID: "f8g9h012-3e4f-5a6b-7c8d-9012ef3456", Supplier: "ValueFirst Inc", OrderDate: "2024-12-13", TotalAmount: 65000, NetAmount: ptr(58500), SourceChannel: SourceTelegram, Status: StatusPending, CreatedAt: at("2024-12-13T15:10:00Z")},
	}
	items := []Item{
		{ID: "item-001", OrderID: list[0].ID, ProductCode: "0305", Description: "Kikkoman Shoyu (1L) NL", Units: 60, UnitPrice: 4.40, BatchNumber: "B2024-001", Amount: 264.00},
		{ID: "item-002", OrderID: list[0].ID, ProductCode: "0333", Description: "Kikkoman Gluten Free Shoyu (1L)", Units: 30, UnitPrice: 5.02, BatchNumber: "B2024-002", Amount: 150.60},
		{ID: "item-003", OrderID: list[0].ID, ProductCode: "0390", Description: "Kikkoman Shoyu (250ml) NL", Units: 48, UnitPrice: 2.20, BatchNumber: "B2024-003", Amount: 105.60},
	}
	return list, items
}
