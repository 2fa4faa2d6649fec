package purchase

import (
	"time"

	xerrors "billing-service/internal/pkg/errors"
)

// FreePurchase is the built-in free tier. It never expires, always
// renews, and leaves the free trial unconsumed.
type FreePurchase struct {
	productID string
}

func NewFreePurchase(productID string) (FreePurchase, error) {
	if productID == "" {
		return FreePurchase{}, xerrors.InvalidArgument("free purchase requires a product id")
	}
	return FreePurchase{productID: productID}, nil
}

func (p FreePurchase) Gateway() Gateway             { return GatewayFree }
func (p FreePurchase) ProductID() string            { return p.productID }
func (p FreePurchase) IsFreeTrialEligible() bool    { return true }
func (p FreePurchase) WillAutoRenew() bool          { return true }
func (p FreePurchase) IsInGracePeriod() bool        { return false }
func (p FreePurchase) ExpiresAt() *time.Time        { return nil }
func (p FreePurchase) IsExpired(now time.Time) bool { return expired(p.ExpiresAt(), now) }
func (p FreePurchase) IsEnded(now time.Time) bool   { return ended(p, now) }

// Equal compares by product id, the only carried field.
func (p FreePurchase) Equal(other FreePurchase) bool {
	return p.productID == other.productID
}

func (p FreePurchase) ToWire() map[string]interface{} {
	return map[string]interface{}{
		"productId": p.productID,
	}
}

func FreePurchaseFromWire(m map[string]interface{}) (FreePurchase, error) {
	productID, err := wireString(m, "productId")
	if err != nil {
		return FreePurchase{}, err
	}
	return FreePurchase{productID: productID}, nil
}
