package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-cart-checkout/internal/apperr"
	"github.com/dgrijalva/jwt-go"
)

type CustomerClaim struct {
	ID string `json:"id"`
}

type MerchantClaim struct {
	ID   string `json:"id"`
	Role string `json:"tipo"`
}

// Claims carries exactly one of Customer or Merchant.
type Claims struct {
	Customer *CustomerClaim `json:"customer,omitempty"`
	Merchant *MerchantClaim `json:"merchant,omitempty"`
	jwt.StandardClaims
}

// Identity is what the rest of the service knows about a caller.
type Identity struct {
	CustomerID string
	MerchantID string
	Role       Role
}

func (i Identity) IsCustomer() bool { return i.CustomerID != "" }
func (i Identity) IsMerchant() bool { return i.MerchantID != "" }

const (
	CustomerTTL = 7 * 24 * time.Hour
	MerchantTTL = 24 * time.Hour
)

// Oracle verifies and issues HS256 bearer tokens.
type Oracle struct {
	secret []byte
	now    func() time.Time
}

func NewOracle(secret string) (*Oracle, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &Oracle{secret: []byte(secret), now: time.Now}, nil
}

func (o *Oracle) IssueCustomer(customerID string) (string, error) {
	return o.sign(Claims{Customer: &CustomerClaim{ID: customerID}}, CustomerTTL)
}

func (o *Oracle) IssueMerchant(merchantID string, role Role) (string, error) {
	return o.sign(Claims{Merchant: &MerchantClaim{ID: merchantID, Role: string(role)}}, MerchantTTL)
}

func (o *Oracle) sign(c Claims, ttl time.Duration) (string, error) {
	now := o.now()
	c.IssuedAt = now.Unix()
	c.ExpiresAt = now.Add(ttl).Unix()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(o.secret)
}

// Verify parses a raw token into an Identity. Every failure is Unauthorized.
func (o *Oracle) Verify(raw string) (Identity, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return o.secret, nil
	})
	if err != nil || !tok.Valid {
		return Identity{}, apperr.ErrUnauthorized
	}

	switch {
	case claims.Customer != nil && claims.Customer.ID != "":
		return Identity{CustomerID: claims.Customer.ID}, nil
	case claims.Merchant != nil && claims.Merchant.ID != "":
		return Identity{MerchantID: claims.Merchant.ID, Role: ParseRole(claims.Merchant.Role)}, nil
	}
	return Identity{}, apperr.ErrUnauthorized
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
