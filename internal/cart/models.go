package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusCompleted Status = "completed"
)

type Cart struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

type Line struct {
	ID        string          `json:"id"`
	CartID    string          `json:"cart_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Subtotal is quantity * unit price.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ViewLine is a line joined with product display data.
type ViewLine struct {
	Line
	ProductName string `json:"product_name"`
	ImageURL    string `json:"image_url"`
}

// View is what getCart returns. Cart is nil when the customer has no open
// cart or it holds no lines.
type View struct {
	Cart  *Cart
	Items []ViewLine
	Total decimal.Decimal
}

func newView(c *Cart, items []ViewLine) View {
	v := View{Cart: c, Items: items, Total: decimal.Zero}
	if len(items) == 0 {
		v.Cart = nil
		v.Items = []ViewLine{}
		return v
	}
	for _, it := range items {
		v.Total = v.Total.Add(it.Subtotal())
	}
	return v
}
