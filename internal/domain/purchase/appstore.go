package purchase

import (
	"time"

	xerrors "billing-service/internal/pkg/errors"
)

// App Store auto-renew status as reported by receipt verification.
// Any value other than 1 means the user has turned renewal off.
const appStoreAutoRenewOn = 1

// AppStorePurchase is a purchase record verified against the App Store.
// A record with CancelledAt set must be treated by callers as if the
// purchase never existed; the verification service drops such records
// before they reach a subscription.
type AppStorePurchase struct {
	productID             string
	originalTransactionID string
	originalPurchasedAt   *time.Time
	isFreeTrialEligible   bool
	expiresAt             *time.Time
	cancelledAt           *time.Time
	expirationIntent      *int
	inBillingRetryPeriod  bool
	inFreeTrialPeriod     bool
	autoRenewStatus       int
	receipt               string
}

// AppStorePurchaseParams carries the constructor inputs for an
// AppStorePurchase. ProductID, OriginalTransactionID and Receipt are
// mandatory.
type AppStorePurchaseParams struct {
	ProductID             string
	OriginalTransactionID string
	OriginalPurchasedAt   *time.Time
	IsFreeTrialEligible   bool
	ExpiresAt             *time.Time
	CancelledAt           *time.Time
	ExpirationIntent      *int
	InBillingRetryPeriod  bool
	InFreeTrialPeriod     bool
	AutoRenewStatus       int
	Receipt               string
}

func NewAppStorePurchase(params AppStorePurchaseParams) (AppStorePurchase, error) {
	if params.ProductID == "" {
		return AppStorePurchase{}, xerrors.InvalidArgument("app store purchase requires a product id")
	}
	if params.OriginalTransactionID == "" {
		return AppStorePurchase{}, xerrors.InvalidArgument("app store purchase requires an original transaction id")
	}
	if params.Receipt == "" {
		return AppStorePurchase{}, xerrors.InvalidArgument("app store purchase requires a receipt")
	}
	return AppStorePurchase{
		productID:             params.ProductID,
		originalTransactionID: params.OriginalTransactionID,
		originalPurchasedAt:   params.OriginalPurchasedAt,
		isFreeTrialEligible:   params.IsFreeTrialEligible,
		expiresAt:             params.ExpiresAt,
		cancelledAt:           params.CancelledAt,
		expirationIntent:      params.ExpirationIntent,
		inBillingRetryPeriod:  params.InBillingRetryPeriod,
		inFreeTrialPeriod:     params.InFreeTrialPeriod,
		autoRenewStatus:       params.AutoRenewStatus,
		receipt:               params.Receipt,
	}, nil
}

func (p AppStorePurchase) Gateway() Gateway          { return GatewayAppStore }
func (p AppStorePurchase) ProductID() string         { return p.productID }
func (p AppStorePurchase) IsFreeTrialEligible() bool { return p.isFreeTrialEligible }

// WillAutoRenew is derived from the store's auto-renew status code.
func (p AppStorePurchase) WillAutoRenew() bool { return p.autoRenewStatus == appStoreAutoRenewOn }

// IsInGracePeriod maps the App Store's billing retry period onto the
// uniform grace-period flag.
func (p AppStorePurchase) IsInGracePeriod() bool { return p.inBillingRetryPeriod }

func (p AppStorePurchase) ExpiresAt() *time.Time        { return p.expiresAt }
func (p AppStorePurchase) IsExpired(now time.Time) bool { return expired(p.expiresAt, now) }
func (p AppStorePurchase) IsEnded(now time.Time) bool   { return ended(p, now) }

func (p AppStorePurchase) OriginalTransactionID() string { return p.originalTransactionID }
func (p AppStorePurchase) OriginalPurchasedAt() *time.Time {
	return p.originalPurchasedAt
}
func (p AppStorePurchase) CancelledAt() *time.Time { return p.cancelledAt }
func (p AppStorePurchase) ExpirationIntent() *int  { return p.expirationIntent }
func (p AppStorePurchase) InFreeTrialPeriod() bool { return p.inFreeTrialPeriod }
func (p AppStorePurchase) AutoRenewStatus() int    { return p.autoRenewStatus }

// Receipt returns the latest encoded receipt as returned by
// verification.
func (p AppStorePurchase) Receipt() string { return p.receipt }

// Equal compares all eleven carried fields.
func (p AppStorePurchase) Equal(other AppStorePurchase) bool {
	return p.productID == other.productID &&
		p.originalTransactionID == other.originalTransactionID &&
		timePtrEqual(p.originalPurchasedAt, other.originalPurchasedAt) &&
		p.isFreeTrialEligible == other.isFreeTrialEligible &&
		timePtrEqual(p.expiresAt, other.expiresAt) &&
		timePtrEqual(p.cancelledAt, other.cancelledAt) &&
		intPtrEqual(p.expirationIntent, other.expirationIntent) &&
		p.inBillingRetryPeriod == other.inBillingRetryPeriod &&
		p.inFreeTrialPeriod == other.inFreeTrialPeriod &&
		p.autoRenewStatus == other.autoRenewStatus &&
		p.receipt == other.receipt
}

func (p AppStorePurchase) ToWire() map[string]interface{} {
	var intent interface{}
	if p.expirationIntent != nil {
		intent = *p.expirationIntent
	}
	return map[string]interface{}{
		"productId":             p.productID,
		"originalTransactionId": p.originalTransactionID,
		"originalPurchasedAt":   formatWireTime(p.originalPurchasedAt),
		"isFreeTrialEligible":   p.isFreeTrialEligible,
		"expiresAt":             formatWireTime(p.expiresAt),
		"cancelledAt":           formatWireTime(p.cancelledAt),
		"expirationIntent":      intent,
		"inBillingRetryPeriod":  p.inBillingRetryPeriod,
		"inFreeTrialPeriod":     p.inFreeTrialPeriod,
		"autoRenewStatus":       p.autoRenewStatus,
		"receipt":               p.receipt,
	}
}

func AppStorePurchaseFromWire(m map[string]interface{}) (AppStorePurchase, error) {
	productID, err := wireString(m, "productId")
	if err != nil {
		return AppStorePurchase{}, err
	}
	originalTransactionID, err := wireString(m, "originalTransactionId")
	if err != nil {
		return AppStorePurchase{}, err
	}
	originalPurchasedAt, err := wireTime(m, "originalPurchasedAt")
	if err != nil {
		return AppStorePurchase{}, err
	}
	isFreeTrialEligible, err := wireBool(m, "isFreeTrialEligible")
	if err != nil {
		return AppStorePurchase{}, err
	}
	expiresAt, err := wireTime(m, "expiresAt")
	if err != nil {
		return AppStorePurchase{}, err
	}
	cancelledAt, err := wireTime(m, "cancelledAt")
	if err != nil {
		return AppStorePurchase{}, err
	}
	expirationIntent, err := wireOptionalInt(m, "expirationIntent")
	if err != nil {
		return AppStorePurchase{}, err
	}
	inBillingRetryPeriod, err := wireBool(m, "inBillingRetryPeriod")
	if err != nil {
		return AppStorePurchase{}, err
	}
	inFreeTrialPeriod, err := wireBool(m, "inFreeTrialPeriod")
	if err != nil {
		return AppStorePurchase{}, err
	}
	autoRenewStatus, err := wireInt(m, "autoRenewStatus")
	if err != nil {
		return AppStorePurchase{}, err
	}
	receipt, err := wireString(m, "receipt")
	if err != nil {
		return AppStorePurchase{}, err
	}
	return AppStorePurchase{
		productID:             productID,
		originalTransactionID: originalTransactionID,
		originalPurchasedAt:   originalPurchasedAt,
		isFreeTrialEligible:   isFreeTrialEligible,
		expiresAt:             expiresAt,
		cancelledAt:           cancelledAt,
		expirationIntent:      expirationIntent,
		inBillingRetryPeriod:  inBillingRetryPeriod,
		inFreeTrialPeriod:     inFreeTrialPeriod,
		autoRenewStatus:       autoRenewStatus,
		receipt:               receipt,
	}, nil
}
