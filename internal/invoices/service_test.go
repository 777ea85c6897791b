package invoices

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmc-ops/opsdash/internal/listing"
	"github.com/fmc-ops/opsdash/internal/result"
)

type unreachableRepo struct {
	*MemoryRepository
}

func (unreachableRepo) List(context.Context, listing.Query) ([]Invoice, int, error) {
	return nil, 0, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
}

func TestInvoiceListAndFilters(t *testing.T) {
	svc := NewService(NewSeededRepository(), 0)
	ctx := context.Background()

	res := svc.List(ctx, listing.Query{Page: 1, PageSize: 5})
	require.True(t, res.IsOk())
	require.Len(t, res.Value().Items, 5)
	require.Equal(t, 6, res.Value().Total)
	require.Equal(t, "TOKYO-YA, S.A.", res.Value().Items[0].Supplier)

	res = svc.List(ctx, listing.Query{Filter: listing.Filter{Status: StatusOverdue}})
	require.Equal(t, 1, res.Value().Total)
	require.Equal(t, "Global Supplies Ltd", res.Value().Items[0].Supplier)

	res = svc.List(ctx, listing.Query{Filter: listing.Filter{Supplier: "TechCorp Inc"}})
	require.Equal(t, 1, res.Value().Total)
	require.Equal(t, 1.2, res.Value().Items[0].ExchangeRate)
}

func TestInvoiceCreateDefaults(t *testing.T) {
	svc := NewService(NewSeededRepository(), 0)
	var changed []string
	svc.OnChange(func(_ context.Context, table string) { changed = append(changed, table) })

	res := svc.Create(context.Background(), CreateInput{Supplier: "Acme", InvoiceDate: "2024-12-21", TotalAmount: 500})
	require.True(t, res.IsOk(), res.ErrorMessage())
	inv := res.Value()
	require.Equal(t, DefaultExchangeRate, inv.ExchangeRate)
	require.Equal(t, FinancingCredit, inv.FinancingType)
	require.Equal(t, StatusPending, inv.Status)
	require.Nil(t, inv.NetAmount)
	require.Equal(t, []string{Table}, changed)
}

func TestInvoiceDeleteCascadesAndBulkValidation(t *testing.T) {
	svc := NewService(NewSeededRepository(), 0)
	ctx := context.Background()
	id := "44ac2333-2c7d-424e-998f-91c2be8207b3"

	require.Len(t, svc.Items(ctx, id).Value(), 2)
	require.True(t, svc.Delete(ctx, id).IsOk())
	require.Empty(t, svc.Items(ctx, id).Value())

	res := svc.Delete(ctx, id)
	require.Equal(t, "Invoice not found", res.ErrorMessage())

	bulk := svc.DeleteMany(ctx, nil)
	require.Equal(t, "No invoices selected", bulk.ErrorMessage())
	require.Equal(t, result.KindValidation, bulk.Err().Kind)
}

func TestInvoiceNetworkFailure(t *testing.T) {
	svc := NewService(unreachableRepo{NewSeededRepository()}, 0)
	res := svc.List(context.Background(), listing.Query{})
	require.False(t, res.IsOk())
	require.Equal(t, result.KindNetwork, res.Err().Kind)
	require.Equal(t, result.MsgNetwork, res.ErrorMessage())
}

func TestInvoiceCountAndSuppliers(t *testing.T) {
	svc := NewService(NewSeededRepository(), 0)
	ctx := context.Background()
	require.Equal(t, 2, svc.Count(ctx, StatusPending).Value())
	require.Equal(t, 3, svc.Count(ctx, StatusPaid).Value())
	require.Len(t, svc.Suppliers(ctx).Value(), 6)

	inRange := svc.Range(ctx, "2024-12-18", "")
	require.Len(t, inRange.Value(), 3)
}
