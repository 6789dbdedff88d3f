// Package shop manages the product catalogue and customer orders.
package shop

import (
	"context"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"printshop/internal/apperr"
	"printshop/internal/docstore"
	"printshop/internal/idgen"
)

// Service coordinates catalogue and order writes.
type Service struct {
	store    docstore.Store
	ids      *idgen.Generator
	leadTime time.Duration
	loc      *time.Location
	now      func() time.Time
	log      *zap.Logger
}

// NewService creates a shop service. leadTime sets each new order's target
// date.
func NewService(store docstore.Store, ids *idgen.Generator, leadTime time.Duration, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		ids:      ids,
		leadTime: leadTime,
		loc:      loc,
		now:      time.Now,
		log:      log.With(zap.String("component", "shop")),
	}
}

func (s *Service) today() civil.Date {
	return civil.DateOf(s.now().In(s.loc))
}

// MaxPrice is the highest accepted unit price in rupees. Together with the
// order quantity limit it keeps order totals far inside int64.
const MaxPrice = 10_000_000

// ProductInput is the admin form for a product.
type ProductInput struct {
	Name        string        `json:"name" validate:"required"`
	Description string        `json:"description"`
	Price       int64         `json:"price" validate:"gte=0,lte=10000000"`
	Category    string        `json:"category" validate:"required"`
	Inventory   int           `json:"inventory" validate:"gte=0"`
	Status      ProductStatus `json:"status" validate:"omitempty,oneof=Active Inactive"`
}

// CreateProduct stores a new product under the next PROD id.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if err := apperr.Validate(in); err != nil {
		return Product{}, err
	}
	if in.Status == "" {
		in.Status = ProductActive
	}
	now := s.now()
	p := Product{
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Category:    in.Category,
		Inventory:   in.Inventory,
		Status:      in.Status,
		CreatedDate: civil.DateOf(now.In(s.loc)),
		CreatedAt:   now.UTC(),
	}
	id, err := s.ids.Assign(ctx, idgen.Product, func(id string) error {
		p.ID = id
		return s.store.Create(ctx, productsCollection, id, p)
	})
	if err != nil {
		return Product{}, apperr.FromWrite("product "+p.ID, err)
	}
	s.log.Info("product created", zap.String("id", id))
	return p, nil
}

// ListProducts returns the catalogue; activeOnly hides inactive items.
func (s *Service) ListProducts(ctx context.Context, activeOnly bool) ([]Product, error) {
	all, err := docstore.ListAs[Product](ctx, s.store, productsCollection)
	if err != nil {
		return nil, apperr.FromRead(productsCollection, err)
	}
	if !activeOnly {
		return all, nil
	}
	out := []Product{}
	for _, p := range all {
		if p.Status == ProductActive {
			out = append(out, p)
		}
	}
	return out, nil
}

// ProductPatch holds editable product fields. Nil means unchanged.
type ProductPatch struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	Price       *int64         `json:"price"`
	Category    *string        `json:"category"`
	Inventory   *int           `json:"inventory"`
	Status      *ProductStatus `json:"status"`
}

func (s *Service) UpdateProduct(ctx context.Context, id string, patch ProductPatch) (Product, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	p, err := docstore.GetAs[Product](ctx, s.store, productsCollection, id)
	if err != nil {
		return Product{}, apperr.FromRead("product "+id, err)
	}
	fields := map[string]any{}
	if patch.Name != nil {
		if p.Name = strings.TrimSpace(*patch.Name); p.Name == "" {
			return Product{}, apperr.Invalid("name", "is required")
		}
		fields["name"] = p.Name
	}
	if patch.Description != nil {
		p.Description = strings.TrimSpace(*patch.Description)
		fields["description"] = p.Description
	}
	if patch.Price != nil {
		if *patch.Price < 0 || *patch.Price > MaxPrice {
			return Product{}, apperr.Invalid("price", "must be between 0 and %d", MaxPrice)
		}
		p.Price = *patch.Price
		fields["price"] = p.Price
	}
	if patch.Category != nil {
		if p.Category = strings.TrimSpace(*patch.Category); p.Category == "" {
			return Product{}, apperr.Invalid("category", "is required")
		}
		fields["category"] = p.Category
	}
	if patch.Inventory != nil {
		if *patch.Inventory < 0 {
			return Product{}, apperr.Invalid("inventory", "must be greater than or equal to 0")
		}
		p.Inventory = *patch.Inventory
		fields["inventory"] = p.Inventory
	}
	if patch.Status != nil {
		if *patch.Status != ProductActive && *patch.Status != ProductInactive {
			return Product{}, apperr.Invalid("status", "must be one of: Active, Inactive")
		}
		p.Status = *patch.Status
		fields["status"] = p.Status
	}
	if len(fields) == 0 {
		return p, nil
	}
	if err := s.store.Update(ctx, productsCollection, id, fields); err != nil {
		return Product{}, apperr.FromWrite("product "+id, err)
	}
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	id = strings.ToUpper(strings.TrimSpace(id))
	if err := s.store.Delete(ctx, productsCollection, id); err != nil {
		return apperr.FromWrite("product "+id, err)
	}
	s.log.Info("product deleted", zap.String("id", id))
	return nil
}

// OrderInput is the public order form.
type OrderInput struct {
	FullName            string   `json:"fullName" validate:"required"`
	Email               string   `json:"email" validate:"required,email"`
	Phone               string   `json:"phone" validate:"required,min=7,max=20"`
	ProductID           string   `json:"productId" validate:"required"`
	Quantity            int      `json:"quantity" validate:"gte=1,lte=1000"`
	Shipping            Address  `json:"shipping"`
	Billing             *Address `json:"billing"`
	PaymentMethod       string   `json:"paymentMethod" validate:"required,oneof=upi card netbanking wallet cod"`
	SpecialInstructions string   `json:"specialInstructions" validate:"max=2000"`
}

// PlaceOrder records an order for an Active product. The total is computed
// from the stored price, never taken from the client.
func (s *Service) PlaceOrder(ctx context.Context, in OrderInput) (Order, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.ProductID = strings.ToUpper(strings.TrimSpace(in.ProductID))
	if in.Shipping.Country == "" {
		in.Shipping.Country = "India"
	}
	if err := apperr.Validate(in); err != nil {
		return Order{}, err
	}

	p, err := docstore.GetAs[Product](ctx, s.store, productsCollection, in.ProductID)
	if err != nil {
		if err = apperr.FromRead("product "+in.ProductID, err); apperr.IsNotFound(err) {
			return Order{}, apperr.Invalid("productId", "no product with id %s", in.ProductID)
		}
		return Order{}, err
	}
	if p.Status != ProductActive || p.Price < 0 || p.Price > MaxPrice {
		return Order{}, apperr.Invalid("productId", "product %s is not available", p.ID)
	}

	now := s.now()
	o := Order{
		ID:                  uuid.NewString(),
		CustomerName:        in.FullName,
		Email:               in.Email,
		Phone:               strings.TrimSpace(in.Phone),
		Shipping:            in.Shipping,
		Billing:             in.Billing,
		ProductID:           p.ID,
		ProductName:         p.Name,
		Quantity:            in.Quantity,
		UnitPrice:           p.Price,
		TotalAmount:         p.Price * int64(in.Quantity),
		PaymentMethod:       in.PaymentMethod,
		SpecialInstructions: strings.TrimSpace(in.SpecialInstructions),
		Status:              OrderDesigning,
		OrderDate:           civil.DateOf(now.In(s.loc)),
		TargetDate:          civil.DateOf(now.Add(s.leadTime).In(s.loc)),
		CreatedAt:           now.UTC(),
	}
	if err := s.store.Create(ctx, ordersCollection, o.ID, o); err != nil {
		return Order{}, apperr.FromWrite("order "+o.ID, err)
	}
	s.log.Info("order placed", zap.String("id", o.ID), zap.String("product", p.ID), zap.Int64("total", o.TotalAmount))
	return o, nil
}

// OrderView is an order annotated for admin listings.
type OrderView struct {
	Order
	Overdue bool `json:"overdue"`
}

func (s *Service) ListOrders(ctx context.Context) ([]OrderView, error) {
	orders, err := docstore.ListAs[Order](ctx, s.store, ordersCollection)
	if err != nil {
		return nil, apperr.FromRead(ordersCollection, err)
	}
	today := s.today()
	out := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderView{Order: o, Overdue: o.Overdue(today)})
	}
	return out, nil
}

// SetOrderStatus moves an order to another production stage.
func (s *Service) SetOrderStatus(ctx context.Context, id string, status OrderStatus) error {
	if !slices.Contains(OrderStatuses, status) {
		return apperr.Invalid("status", "unknown order status %q", status)
	}
	if err := s.store.Update(ctx, ordersCollection, id, map[string]any{"status": status}); err != nil {
		return apperr.FromWrite("order "+id, err)
	}
	s.log.Info("order status changed", zap.String("id", id), zap.String("status", string(status)))
	return nil
}

// OrderStats summarises orders for the dashboard.
type OrderStats struct {
	Total      int   `json:"total"`
	InProgress int   `json:"inProgress"`
	Completed  int   `json:"completed"`
	Overdue    int   `json:"overdue"`
	Revenue    int64 `json:"revenue"`
}

func (s *Service) OrderStats(ctx context.Context) (OrderStats, error) {
	orders, err := s.ListOrders(ctx)
	if err != nil {
		return OrderStats{}, err
	}
	var st OrderStats
	for _, o := range orders {
		st.Total++
		st.Revenue += o.TotalAmount
		if o.Status == OrderCompleted {
			st.Completed++
		} else {
			st.InProgress++
		}
		if o.Overdue {
			st.Overdue++
		}
	}
	return st, nil
}
