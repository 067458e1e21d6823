package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                string
	CustomerID        string
	DeliveryAddressID *string
	Total             decimal.Decimal
	Status            Status // lihat status.go
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Items             []OrderLine

	// filled only by the privileged listing
	CustomerName  string
	CustomerEmail string
}

// OrderLine keeps the unit price the customer paid, independent of later
// catalog price changes.
type OrderLine struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// LineInput is one validated cart line handed to the builder.
type LineInput struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

type Draft struct {
	CustomerID        string
	DeliveryAddressID *string
	IdempotencyKey    string
	Lines             []LineInput
}

type TopProduct struct {
	Name      string `json:"name"`
	UnitsSold int64  `json:"units_sold"`
}

type Stats struct {
	CompletedSales decimal.Decimal
	TotalOrders    int64
	TotalCustomers int64
	TopProducts    []TopProduct
}
