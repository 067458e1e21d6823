package httpx

import (
	"time"

	"github.com/ariefcatur/go-cart-checkout/internal/cart"
	"github.com/ariefcatur/go-cart-checkout/internal/inventory"
	"github.com/ariefcatur/go-cart-checkout/internal/orders"
	"github.com/shopspring/decimal"
)

// Money goes out as a fixed two-decimal string.
func money(d decimal.Decimal) string { return d.StringFixed(2) }

type productJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Price       string `json:"price"`
	Stock       int    `json:"stock"`
}

func toProduct(p inventory.Product) productJSON {
	return productJSON{ID: p.ID, Name: p.Name, Description: p.Description, ImageURL: p.ImageURL, Price: money(p.Price), Stock: p.Stock}
}

type lineJSON struct {
	ID          string `json:"id"`
	CartID      string `json:"cart_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

func toLine(l cart.Line) lineJSON {
	return lineJSON{ID: l.ID, CartID: l.CartID, ProductID: l.ProductID, Quantity: l.Quantity,
		UnitPrice: money(l.UnitPrice), Subtotal: money(l.Subtotal())}
}

type cartJSON struct {
	Cart  *cart.Cart `json:"cart"`
	Items []lineJSON `json:"items"`
	Total string     `json:"total"`
}

func toCart(v cart.View) cartJSON {
	items := make([]lineJSON, 0, len(v.Items))
	for _, it := range v.Items {
		l := toLine(it.Line)
		l.ProductName, l.ImageURL = it.ProductName, it.ImageURL
		items = append(items, l)
	}
	return cartJSON{Cart: v.Cart, Items: items, Total: money(v.Total)}
}

type orderLineJSON struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

type orderJSON struct {
	ID                string          `json:"id"`
	CustomerID        string          `json:"customer_id"`
	CustomerName      string          `json:"customer_name,omitempty"`
	CustomerEmail     string          `json:"customer_email,omitempty"`
	DeliveryAddressID *string         `json:"delivery_address_id"`
	Total             string          `json:"total"`
	Status            orders.Status   `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Items             []orderLineJSON `json:"items,omitempty"`
}

func toOrder(o orders.Order) orderJSON {
	out := orderJSON{
		ID: o.ID, CustomerID: o.CustomerID, CustomerName: o.CustomerName, CustomerEmail: o.CustomerEmail,
		DeliveryAddressID: o.DeliveryAddressID, Total: money(o.Total), Status: o.Status,
		CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt,
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, orderLineJSON{ID: it.ID, ProductID: it.ProductID, ProductName: it.ProductName,
			Quantity: it.Quantity, UnitPrice: money(it.UnitPrice)})
	}
	return out
}

func toOrders(list []orders.Order) []orderJSON {
	out := make([]orderJSON, 0, len(list))
	for _, o := range list {
		out = append(out, toOrder(o))
	}
	return out
}

type statusJSON struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
	Cached    bool      `json:"cached"`
}

type statsJSON struct {
	CompletedSales string              `json:"completed_sales"`
	TotalOrders    int64               `json:"total_orders"`
	TotalCustomers int64               `json:"total_customers"`
	TopProducts    []orders.TopProduct `json:"top_products"`
}

func toStats(s orders.Stats) statsJSON {
	top := s.TopProducts
	if top == nil {
		top = []orders.TopProduct{}
	}
	return statsJSON{CompletedSales: money(s.CompletedSales), TotalOrders: s.TotalOrders, TotalCustomers: s.TotalCustomers, TopProducts: top}
}
