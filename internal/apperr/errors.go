package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindEmptyCart
	KindInsufficientStock
	KindConflict
	KindIntegrity
	KindUnauthorized
	KindForbidden
	KindUnknownProduct
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindEmptyCart:
		return "empty_cart"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindConflict:
		return "conflict"
	case KindIntegrity:
		return "integrity"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindUnknownProduct:
		return "unknown_product"
	default:
		return "internal"
	}
}

// HTTPStatus is the status code a handler answers with for this kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindEmptyCart, KindInsufficientStock, KindUnknownProduct:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindIntegrity:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a Kind and a caller-safe message. Err holds the underlying
// cause and is never shown to clients.
type Error struct {
	Kind      Kind
	Msg       string
	ProductID string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrEmptyCart)
// works for freshly built errors too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrEmptyCart         = &Error{Kind: KindEmptyCart, Msg: "cart is empty"}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock, Msg: "insufficient stock"}
	ErrConflict          = &Error{Kind: KindConflict, Msg: "concurrent update, retry", Retryable: true}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized, Msg: "unauthorized"}
	ErrForbidden         = &Error{Kind: KindForbidden, Msg: "forbidden"}
	ErrUnknownProduct    = &Error{Kind: KindUnknownProduct, Msg: "product not found"}
)

func Validation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

func NotFound(what string) error {
	return &Error{Kind: KindNotFound, Msg: what + " not found"}
}

// UnknownProduct is a bad reference in the request body, so it is a 400 and
// not a missing resource.
func UnknownProduct(productID string) error {
	return &Error{Kind: KindUnknownProduct, Msg: "product not found: " + productID, ProductID: productID}
}

func InsufficientStock(productID string, requested, available int) error {
	return &Error{
		Kind:      KindInsufficientStock,
		Msg:       fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", productID, requested, available),
		ProductID: productID,
	}
}

func Conflict(cause error) error {
	return &Error{Kind: KindConflict, Msg: "concurrent update, retry", Retryable: true, Err: cause}
}

func Integrity(constraint string, cause error) error {
	return &Error{Kind: KindIntegrity, Msg: "constraint violated: " + constraint, Err: cause}
}

func Internal(cause error) error {
	return &Error{Kind: KindInternal, Msg: "internal error", Err: cause}
}

// KindOf returns KindInternal for anything that is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Public is the message a client may see. Internal errors are opaque.
func Public(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return "internal server error"
}
