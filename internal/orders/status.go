package orders

import (
	"strings"

	"github.com/ariefcatur/go-cart-checkout/internal/apperr"
)

type Status string

const (
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

var known = map[string]Status{
	"processing": StatusProcessing,
	"shipped":    StatusShipped,
	"delivered":  StatusDelivered,
	"completed":  StatusCompleted,
	"cancelled":  StatusCancelled,
	"canceled":   StatusCancelled,
}

// ParseStatus is case-insensitive and returns the canonical spelling.
func ParseStatus(s string) (Status, error) {
	st, ok := known[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", apperr.Validation("unknown order status: " + s)
	}
	return st, nil
}
