package shop

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printshop/internal/apperr"
	"printshop/internal/csvexport"
	"printshop/internal/docstore"
	"printshop/internal/idgen"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestService() (*Service, *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewService(docstore.NewMemory(), idgen.New(idgen.NewMemoryCounter(), nil), 96*time.Hour, time.UTC, nil)
	svc.now = clk.now
	return svc, clk
}

func vase() ProductInput {
	return ProductInput{Name: "Lattice Vase", Price: 499, Category: "Decor", Inventory: 20}
}

func orderFor(productID string, qty int) OrderInput {
	return OrderInput{
		FullName:      "Kabir Shah",
		Email:         "Kabir@Example.com",
		Phone:         "9876543210",
		ProductID:     productID,
		Quantity:      qty,
		PaymentMethod: "upi",
		Shipping: Address{
			Line1:   "12 MG Road",
			City:    "Pune",
			State:   "Maharashtra",
			Pincode: "411001",
		},
	}
}

func TestProductLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	p, err := svc.CreateProduct(ctx, vase())
	require.NoError(t, err)
	assert.Equal(t, "PROD001", p.ID)
	assert.Equal(t, ProductActive, p.Status)
	assert.Equal(t, civil.Date{Year: 2025, Month: 11, Day: 1}, p.CreatedDate)

	hidden := vase()
	hidden.Name = "Prototype"
	hidden.Status = ProductInactive
	_, err = svc.CreateProduct(ctx, hidden)
	require.NoError(t, err)

	public, err := svc.ListProducts(ctx, true)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "PROD001", public[0].ID)

	price := int64(549)
	updated, err := svc.UpdateProduct(ctx, "prod001", ProductPatch{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, int64(549), updated.Price)
	assert.Equal(t, "Lattice Vase", updated.Name)

	negative := -1
	_, err = svc.UpdateProduct(ctx, "PROD001", ProductPatch{Inventory: &negative})
	assert.True(t, apperr.IsValidation(err))

	require.NoError(t, svc.DeleteProduct(ctx, "PROD002"))
	assert.ErrorIs(t, svc.DeleteProduct(ctx, "PROD002"), apperr.ErrNotFound)

	all, err := svc.ListProducts(ctx, false)
	require.NoError(t, err)
	out, err := csvexport.Bytes(csvexport.Rows(all))
	require.NoError(t, err)
	assert.Equal(t, "id,name,price,category,inventory,status,createdDate\nPROD001,Lattice Vase,549,Decor,20,Active,2025-11-01\n", string(out))
}

func TestCreateProductValidation(t *testing.T) {
	svc, _ := newTestService()
	in := vase()
	in.Price = -10
	_, err := svc.CreateProduct(context.Background(), in)
	assert.True(t, apperr.IsValidation(err))

	in = vase()
	in.Category = ""
	_, err = svc.CreateProduct(context.Background(), in)
	assert.True(t, apperr.IsValidation(err))
}

func TestPlaceOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	_, err := svc.CreateProduct(ctx, vase())
	require.NoError(t, err)

	o, err := svc.PlaceOrder(ctx, orderFor("prod001", 3))
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "kabir@example.com", o.Email)
	assert.Equal(t, int64(1497), o.TotalAmount)
	assert.Equal(t, OrderDesigning, o.Status)
	assert.Equal(t, "India", o.Shipping.Country)
	assert.Equal(t, civil.Date{Year: 2025, Month: 11, Day: 1}, o.OrderDate)
	assert.Equal(t, civil.Date{Year: 2025, Month: 11, Day: 5}, o.TargetDate)
}

func TestPlaceOrderRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	_, err := svc.CreateProduct(ctx, vase())
	require.NoError(t, err)

	cases := map[string]OrderInput{
		"zero quantity":   orderFor("PROD001", 0),
		"unknown product": orderFor("PROD404", 1),
	}
	bad := orderFor("PROD001", 1)
	bad.PaymentMethod = "barter"
	cases["payment"] = bad
	bad = orderFor("PROD001", 1)
	bad.Shipping.Pincode = "12"
	cases["pincode"] = bad

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.PlaceOrder(ctx, in)
			assert.True(t, apperr.IsValidation(err), "got %v", err)
		})
	}

	inactive := ProductInactive
	_, err = svc.UpdateProduct(ctx, "PROD001", ProductPatch{Status: &inactive})
	require.NoError(t, err)
	_, err = svc.PlaceOrder(ctx, orderFor("PROD001", 1))
	assert.True(t, apperr.IsValidation(err))
}

func TestOrderStatusAndStats(t *testing.T) {
	ctx := context.Background()
	svc, clk := newTestService()
	_, err := svc.CreateProduct(ctx, vase())
	require.NoError(t, err)

	first, err := svc.PlaceOrder(ctx, orderFor("PROD001", 1))
	require.NoError(t, err)
	second, err := svc.PlaceOrder(ctx, orderFor("PROD001", 2))
	require.NoError(t, err)

	require.NoError(t, svc.SetOrderStatus(ctx, first.ID, OrderCompleted))
	assert.True(t, apperr.IsValidation(svc.SetOrderStatus(ctx, second.ID, "Shipped")))
	assert.ErrorIs(t, svc.SetOrderStatus(ctx, "missing", OrderPrinting), apperr.ErrNotFound)

	// Target date is 2025-11-05; a week later the open order is overdue.
	clk.t = time.Date(2025, 11, 8, 9, 0, 0, 0, time.UTC)
	st, err := svc.OrderStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, OrderStats{Total: 2, InProgress: 1, Completed: 1, Overdue: 1, Revenue: 1497}, st)

	views, err := svc.ListOrders(ctx)
	require.NoError(t, err)
	for _, v := range views {
		assert.Equal(t, v.ID == second.ID, v.Overdue)
	}
}

func TestPriceUpperBound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	in := vase()
	in.Price = MaxPrice + 1
	_, err := svc.CreateProduct(ctx, in)
	assert.True(t, apperr.IsValidation(err))

	in.Price = MaxPrice
	p, err := svc.CreateProduct(ctx, in)
	require.NoError(t, err)

	huge := int64(1) << 62
	_, err = svc.UpdateProduct(ctx, p.ID, ProductPatch{Price: &huge})
	assert.True(t, apperr.IsValidation(err))

	o, err := svc.PlaceOrder(ctx, orderFor(p.ID, 1000))
	require.NoError(t, err)
	assert.Equal(t, int64(MaxPrice)*1000, o.TotalAmount)
}

func TestCreateProductSkipsTakenIDs(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	require.NoError(t, store.Create(ctx, productsCollection, "PROD001", Product{ID: "PROD001", Name: "Old"}))

	svc := NewService(store, idgen.New(idgen.NewMemoryCounter(), nil), time.Hour, time.UTC, nil)
	p, err := svc.CreateProduct(ctx, vase())
	require.NoError(t, err)
	assert.Equal(t, "PROD002", p.ID)
}
