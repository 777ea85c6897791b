package orders

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/fmc-ops/opsdash/internal/listing"
	"github.com/fmc-ops/opsdash/internal/result"
)

type faultyRepo struct {
	*MemoryRepository
	err   error
	calls int
}

func (f *faultyRepo) List(context.Context, listing.Query) ([]Order, int, error) {
	f.calls++
	return nil, 0, f.err
}

func (f *faultyRepo) DeleteMany(context.Context, []string) (int, error) {
	f.calls++
	return 0, f.err
}

func newTestService() (*Service, *[]string) {
	svc := NewService(NewSeededRepository(), 0)
	var changes []string
	svc.OnChange(func(_ context.Context, table string) { changes = append(changes, table) })
	return svc, &changes
}

func TestListPagesNewestFirst(t *testing.T) {
	svc, _ := newTestService()
	res := svc.List(context.Background(), listing.Query{Page: 1, PageSize: 5})
	require.True(t, res.IsOk())

	page := res.Value()
	require.Len(t, page.Items, 5)
	require.Equal(t, 8, page.Total)
	require.Equal(t, 2, page.TotalPages)
	require.Equal(t, "TechCorp Inc", page.Items[0].Supplier)
	require.Equal(t, "2024-12-16", page.Items[4].OrderDate)

	res = svc.List(context.Background(), listing.Query{Page: 2, PageSize: 5})
	require.Len(t, res.Value().Items, 3)
}

func TestListFilters(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	res := svc.List(ctx, listing.Query{Filter: listing.Filter{Search: "tech"}})
	require.Equal(t, 1, res.Value().Total)

	res = svc.List(ctx, listing.Query{Filter: listing.Filter{Status: StatusPending}})
	require.Equal(t, 2, res.Value().Total)

	res = svc.List(ctx, listing.Query{Filter: listing.Filter{DateFrom: "2024-12-17", DateTo: "2024-12-19"}})
	require.Equal(t, 3, res.Value().Total)
}

func TestCreateAppliesDefaults(t *testing.T) {
	svc, changes := newTestService()
	ctx := context.Background()

	res := svc.Create(ctx, CreateInput{Supplier: " Acme ", OrderDate: "2024-12-21", TotalAmount: 1200})
	require.True(t, res.IsOk(), res.ErrorMessage())
	o := res.Value()
	require.NotEmpty(t, o.ID)
	require.Equal(t, "Acme", o.Supplier)
	require.Equal(t, SourceWeb, o.SourceChannel)
	require.Equal(t, StatusPending, o.Status)
	require.Nil(t, o.NetAmount)
	require.Equal(t, []string{Table}, *changes)

	net := 1000.0
	res = svc.Create(ctx, CreateInput{Supplier: "Acme", OrderDate: "2024-12-21", TotalAmount: 1200, NetAmount: &net})
	require.Equal(t, 1000.0, *res.Value().NetAmount)

	count := svc.Count(ctx, "")
	require.Equal(t, 10, count.Value())
}

func TestUpdatePatchesFields(t *testing.T) {
	svc, changes := newTestService()
	status := StatusCompleted
	res := svc.Update(context.Background(), "559e3a6d-c6c2-4524-9b4d-061be438eeda", UpdateInput{Status: &status})
	require.True(t, res.IsOk())
	require.Equal(t, StatusCompleted, res.Value().Status)
	require.Equal(t, "TechCorp Inc", res.Value().Supplier)
	require.Len(t, *changes, 1)

	res = svc.Update(context.Background(), "missing", UpdateInput{Status: &status})
	require.Equal(t, result.KindNotFound, res.Err().Kind)
}

func TestDeleteCascadesItems(t *testing.T) {
	svc, changes := newTestService()
	ctx := context.Background()
	id := "559e3a6d-c6c2-4524-9b4d-061be438eeda"

	require.Len(t, svc.Items(ctx, id).Value(), 3)

	res := svc.Delete(ctx, id)
	require.True(t, res.IsOk())
	require.Equal(t, 1, res.Value().Count)
	require.Empty(t, svc.Items(ctx, id).Value())
	require.Equal(t, result.KindNotFound, svc.Get(ctx, id).Err().Kind)
	require.Len(t, *changes, 1)

	res = svc.Delete(ctx, id)
	require.False(t, res.IsOk())
	require.Equal(t, "Order not found", res.ErrorMessage())
	require.Len(t, *changes, 1)
}

func TestDeleteManyReportsActualCount(t *testing.T) {
	svc, _ := newTestService()
	res := svc.DeleteMany(context.Background(), []string{
		"559e3a6d-c6c2-4524-9b4d-061be438eeda",
		"a2910330-4a3c-4c0f-8102-0dd53622efcc",
		"does-not-exist",
	})
	require.True(t, res.IsOk())
	require.Equal(t, 2, res.Value().Count)
	require.Equal(t, 6, svc.Count(context.Background(), "").Value())
}

func TestDeleteManyRejectsEmptySelection(t *testing.T) {
	repo := &faultyRepo{MemoryRepository: NewSeededRepository()}
	svc := NewService(repo, 0)

	res := svc.DeleteMany(context.Background(), []string{" ", ""})
	require.False(t, res.IsOk())
	require.Equal(t, result.KindValidation, res.Err().Kind)
	require.Equal(t, "No orders selected", res.ErrorMessage())
	require.Zero(t, repo.calls)
}

func TestBackendErrorsAreClassified(t *testing.T) {
	repo := &faultyRepo{MemoryRepository: NewSeededRepository()}
	svc := NewService(repo, 0)
	ctx := context.Background()

	repo.err = &pgconn.PgError{Code: "42501", Message: "permission denied for table orders"}
	res := svc.List(ctx, listing.Query{})
	require.False(t, res.IsOk())
	require.Equal(t, result.MsgPermission, res.ErrorMessage())

	repo.err = &pgconn.PgError{Code: "42P01", Message: `relation "orders" does not exist`}
	res = svc.List(ctx, listing.Query{Page: 2})
	require.True(t, res.IsOk())
	require.NotNil(t, res.Value().Items)
	require.Empty(t, res.Value().Items)
	require.Equal(t, 2, res.Value().Page)

	repo.err = &pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"}
	del := svc.DeleteMany(ctx, []string{"x"})
	require.Equal(t, result.MsgForeignKey, del.ErrorMessage())
}

func TestSuppliersSortedDistinct(t *testing.T) {
	svc, _ := newTestService()
	res := svc.Suppliers(context.Background())
	require.True(t, res.IsOk())
	require.Len(t, res.Value(), 8)
	require.Equal(t, "Acme Corporation", res.Value()[0])
	require.Equal(t, "ValueFirst Inc", res.Value()[7])
}

func TestSeedReturnsFreshCopies(t *testing.T) {
	a, _ := Seed()
	a[0].Supplier = "changed"
	*a[0].NetAmount = 1
	b, _ := Seed()
	require.Equal(t, "TechCorp Inc", b[0].Supplier)
	require.Equal(t, 40500.0, *b[0].NetAmount)
}
