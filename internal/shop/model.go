package shop

import (
	"strconv"
	"time"

	"cloud.google.com/go/civil"

	"printshop/internal/csvexport"
)

const (
	productsCollection = "products"
	ordersCollection   = "orders"
)

// ProductStatus controls catalogue visibility.
type ProductStatus string

const (
	ProductActive   ProductStatus = "Active"
	ProductInactive ProductStatus = "Inactive"
)

// Product is a catalogue item. Prices are whole rupees.
type Product struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Price       int64         `json:"price"`
	Category    string        `json:"category"`
	Inventory   int           `json:"inventory"`
	Status      ProductStatus `json:"status"`
	CreatedDate civil.Date    `json:"createdDate"`
	CreatedAt   time.Time     `json:"createdAt"`
}

func (p Product) Row() csvexport.Record {
	return csvexport.Record{
		{Name: "id", Value: p.ID},
		{Name: "name", Value: p.Name},
		{Name: "price", Value: strconv.FormatInt(p.Price, 10)},
		{Name: "category", Value: p.Category},
		{Name: "inventory", Value: strconv.Itoa(p.Inventory)},
		{Name: "status", Value: string(p.Status)},
		{Name: "createdDate", Value: p.CreatedDate.String()},
	}
}

// OrderStatus is a production stage.
type OrderStatus string

const (
	OrderDesigning      OrderStatus = "Designing"
	OrderPrinting       OrderStatus = "Printing"
	OrderPacking        OrderStatus = "Packing"
	OrderPreProcessing  OrderStatus = "Pre-processing"
	OrderPostProcessing OrderStatus = "Post-processing"
	OrderDelivery       OrderStatus = "Delivery"
	OrderCompleted      OrderStatus = "Completed"
)

// OrderStatuses lists every stage in display order.
var OrderStatuses = []OrderStatus{
	OrderDesigning, OrderPrinting, OrderPacking, OrderPreProcessing,
	OrderPostProcessing, OrderDelivery, OrderCompleted,
}

// Address is a postal address.
type Address struct {
	Line1   string `json:"line1" validate:"required"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Pincode string `json:"pincode" validate:"required,numeric,len=6"`
	Country string `json:"country"`
}

func (a Address) String() string {
	s := a.Line1
	for _, part := range []string{a.Line2, a.City, a.State, a.Pincode, a.Country} {
		if part != "" {
			s += ", " + part
		}
	}
	return s
}

// Order is a customer purchase of one product.
type Order struct {
	ID                  string      `json:"id"`
	CustomerName        string      `json:"customerName"`
	Email               string      `json:"email"`
	Phone               string      `json:"phone"`
	Shipping            Address     `json:"shipping"`
	Billing             *Address    `json:"billing,omitempty"`
	ProductID           string      `json:"productId"`
	ProductName         string      `json:"productName"`
	Quantity            int         `json:"quantity"`
	UnitPrice           int64       `json:"unitPrice"`
	TotalAmount         int64       `json:"totalAmount"`
	PaymentMethod       string      `json:"paymentMethod"`
	SpecialInstructions string      `json:"specialInstructions,omitempty"`
	Status              OrderStatus `json:"status"`
	OrderDate           civil.Date  `json:"orderDate"`
	TargetDate          civil.Date  `json:"targetDate"`
	CreatedAt           time.Time   `json:"createdAt"`
}

// Overdue reports whether the order missed its target date.
func (o Order) Overdue(today civil.Date) bool {
	return o.Status != OrderCompleted && o.TargetDate.Before(today)
}

func (o Order) Row() csvexport.Record {
	return csvexport.Record{
		{Name: "id", Value: o.ID},
		{Name: "customerName", Value: o.CustomerName},
		{Name: "email", Value: o.Email},
		{Name: "phone", Value: o.Phone},
		{Name: "productName", Value: o.ProductName},
		{Name: "quantity", Value: strconv.Itoa(o.Quantity)},
		{Name: "totalAmount", Value: strconv.FormatInt(o.TotalAmount, 10)},
		{Name: "status", Value: string(o.Status)},
		{Name: "orderDate", Value: o.OrderDate.String()},
		{Name: "targetDate", Value: o.TargetDate.String()},
		{Name: "address", Value: o.Shipping.String()},
	}
}
