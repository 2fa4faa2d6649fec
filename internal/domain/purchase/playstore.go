package purchase

import (
	"time"

	xerrors "billing-service/internal/pkg/errors"
)

// Play Store cancel reasons.
const (
	CancelReasonUser      = 0
	CancelReasonSystem    = 1
	CancelReasonReplaced  = 2
	CancelReasonDeveloper = 3
)

// Play Store payment states. Payment pending doubles as the grace
// period signal: the store is still retrying the charge.
const (
	PaymentStatePending  = 0
	PaymentStateReceived = 1
	PaymentStateTrial    = 2
)

// PlayStorePurchase is a purchase record verified against the Play
// Store. Free-trial eligibility is always false for this gateway: the
// store gives no reliable signal, so once purchased the trial counts as
// used.
type PlayStorePurchase struct {
	productID            string
	autoRenewing         bool
	cancelReason         int
	packageName          string
	purchaseToken        string
	purchaseTokenHistory []string
	paymentState         int
	startedAt            *time.Time
	userCanceledAt       *time.Time
	expiresAt            *time.Time
}

// PlayStorePurchaseParams carries the constructor inputs for a
// PlayStorePurchase. ProductID, PackageName and PurchaseToken are
// mandatory; a nil PurchaseTokenHistory becomes an empty sequence.
type PlayStorePurchaseParams struct {
	ProductID            string
	AutoRenewing         bool
	CancelReason         int
	PackageName          string
	PurchaseToken        string
	PurchaseTokenHistory []string
	PaymentState         int
	StartedAt            *time.Time
	UserCanceledAt       *time.Time
	ExpiresAt            *time.Time
}

func NewPlayStorePurchase(params PlayStorePurchaseParams) (PlayStorePurchase, error) {
	if params.ProductID == "" {
		return PlayStorePurchase{}, xerrors.InvalidArgument("play store purchase requires a product id")
	}
	if params.PackageName == "" {
		return PlayStorePurchase{}, xerrors.InvalidArgument("play store purchase requires a package name")
	}
	if params.PurchaseToken == "" {
		return PlayStorePurchase{}, xerrors.InvalidArgument("play store purchase requires a purchase token")
	}
	history := make([]string, len(params.PurchaseTokenHistory))
	copy(history, params.PurchaseTokenHistory)
	return PlayStorePurchase{
		productID:            params.ProductID,
		autoRenewing:         params.AutoRenewing,
		cancelReason:         params.CancelReason,
		packageName:          params.PackageName,
		purchaseToken:        params.PurchaseToken,
		purchaseTokenHistory: history,
		paymentState:         params.PaymentState,
		startedAt:            params.StartedAt,
		userCanceledAt:       params.UserCanceledAt,
		expiresAt:            params.ExpiresAt,
	}, nil
}

func (p PlayStorePurchase) Gateway() Gateway  { return GatewayPlayStore }
func (p PlayStorePurchase) ProductID() string { return p.productID }

// IsFreeTrialEligible is false by policy for the Play Store.
func (p PlayStorePurchase) IsFreeTrialEligible() bool { return false }

func (p PlayStorePurchase) WillAutoRenew() bool { return p.autoRenewing }

// IsInGracePeriod maps the pending payment state onto the uniform
// grace-period flag.
func (p PlayStorePurchase) IsInGracePeriod() bool { return p.paymentState == PaymentStatePending }

func (p PlayStorePurchase) ExpiresAt() *time.Time        { return p.expiresAt }
func (p PlayStorePurchase) IsExpired(now time.Time) bool { return expired(p.expiresAt, now) }
func (p PlayStorePurchase) IsEnded(now time.Time) bool   { return ended(p, now) }

func (p PlayStorePurchase) CancelReason() int      { return p.cancelReason }
func (p PlayStorePurchase) PackageName() string    { return p.packageName }
func (p PlayStorePurchase) PurchaseToken() string  { return p.purchaseToken }
func (p PlayStorePurchase) PaymentState() int      { return p.paymentState }
func (p PlayStorePurchase) StartedAt() *time.Time { return p.startedAt }
func (p PlayStorePurchase) UserCanceledAt() *time.Time {
	return p.userCanceledAt
}

// PurchaseTokenHistory returns the prior tokens in chronological order.
// The slice is a copy; mutating it does not affect the record.
func (p PlayStorePurchase) PurchaseTokenHistory() []string {
	out := make([]string, len(p.purchaseTokenHistory))
	copy(out, p.purchaseTokenHistory)
	return out
}

// AllPurchaseTokens returns the token history followed by the current
// token, i.e. every token ever seen for this purchase.
func (p PlayStorePurchase) AllPurchaseTokens() []string {
	out := make([]string, 0, len(p.purchaseTokenHistory)+1)
	out = append(out, p.purchaseTokenHistory...)
	out = append(out, p.purchaseToken)
	return out
}

// PlayStorePurchaseUpdate lists the fields CopyWith may override. A nil
// field keeps the current value. PackageName is fixed at construction
// and cannot be overridden.
type PlayStorePurchaseUpdate struct {
	ProductID            *string
	AutoRenewing         *bool
	CancelReason         *int
	PurchaseToken        *string
	PurchaseTokenHistory []string
	PaymentState         *int
	StartedAt            *time.Time
	UserCanceledAt       *time.Time
	ExpiresAt            *time.Time
}

// CopyWith produces a new record with the given overrides applied,
// leaving the receiver untouched.
func (p PlayStorePurchase) CopyWith(update PlayStorePurchaseUpdate) PlayStorePurchase {
	next := p
	next.purchaseTokenHistory = make([]string, len(p.purchaseTokenHistory))
	copy(next.purchaseTokenHistory, p.purchaseTokenHistory)

	if update.ProductID != nil {
		next.productID = *update.ProductID
	}
	if update.AutoRenewing != nil {
		next.autoRenewing = *update.AutoRenewing
	}
	if update.CancelReason != nil {
		next.cancelReason = *update.CancelReason
	}
	if update.PurchaseToken != nil {
		next.purchaseToken = *update.PurchaseToken
	}
	if update.PurchaseTokenHistory != nil {
		next.purchaseTokenHistory = make([]string, len(update.PurchaseTokenHistory))
		copy(next.purchaseTokenHistory, update.PurchaseTokenHistory)
	}
	if update.PaymentState != nil {
		next.paymentState = *update.PaymentState
	}
	if update.StartedAt != nil {
		next.startedAt = update.StartedAt
	}
	if update.UserCanceledAt != nil {
		next.userCanceledAt = update.UserCanceledAt
	}
	if update.ExpiresAt != nil {
		next.expiresAt = update.ExpiresAt
	}
	return next
}

// Equal compares all carried fields, token history in order.
func (p PlayStorePurchase) Equal(other PlayStorePurchase) bool {
	if p.productID != other.productID ||
		p.autoRenewing != other.autoRenewing ||
		p.cancelReason != other.cancelReason ||
		p.packageName != other.packageName ||
		p.purchaseToken != other.purchaseToken ||
		p.paymentState != other.paymentState ||
		!timePtrEqual(p.startedAt, other.startedAt) ||
		!timePtrEqual(p.userCanceledAt, other.userCanceledAt) ||
		!timePtrEqual(p.expiresAt, other.expiresAt) {
		return false
	}
	if len(p.purchaseTokenHistory) != len(other.purchaseTokenHistory) {
		return false
	}
	for i := range p.purchaseTokenHistory {
		if p.purchaseTokenHistory[i] != other.purchaseTokenHistory[i] {
			return false
		}
	}
	return true
}

func (p PlayStorePurchase) ToWire() map[string]interface{} {
	history := make([]interface{}, len(p.purchaseTokenHistory))
	for i, token := range p.purchaseTokenHistory {
		history[i] = token
	}
	return map[string]interface{}{
		"productId":            p.productID,
		"autoRenewing":         p.autoRenewing,
		"cancelReason":         p.cancelReason,
		"packageName":          p.packageName,
		"purchaseToken":        p.purchaseToken,
		"purchaseTokenHistory": history,
		"paymentState":         p.paymentState,
		"startedAt":            formatWireTime(p.startedAt),
		"userCanceledAt":       formatWireTime(p.userCanceledAt),
		"expiresAt":            formatWireTime(p.expiresAt),
	}
}

func PlayStorePurchaseFromWire(m map[string]interface{}) (PlayStorePurchase, error) {
	productID, err := wireString(m, "productId")
	if err != nil {
		return PlayStorePurchase{}, err
	}
	autoRenewing, err := wireBool(m, "autoRenewing")
	if err != nil {
		return PlayStorePurchase{}, err
	}
	cancelReason, err := wireInt(m, "cancelReason")
	if err != nil {
		return PlayStorePurchase{}, err
	}
	packageName, err := wireString(m, "packageName")
	if err != nil {
		return PlayStorePurchase{}, err
	}
	purchaseToken, err := wireString(m, "purchaseToken")
	if err != nil {
		return PlayStorePurchase{}, err
	}
	history, err := wireStringSlice(m, "purchaseTokenHistory")
	if err != nil {
		return PlayStorePurchase{}, err
	}
	paymentState, err := wireInt(m, "paymentState")
	if err != nil {
		return PlayStorePurchase{}, err
	}
	startedAt, err := wireTime(m, "startedAt")
	if err != nil {
		return PlayStorePurchase{}, err
	}
	userCanceledAt, err := wireTime(m, "userCanceledAt")
	if err != nil {
		return PlayStorePurchase{}, err
	}
	expiresAt, err := wireTime(m, "expiresAt")
	if err != nil {
		return PlayStorePurchase{}, err
	}
	return PlayStorePurchase{
		productID:            productID,
		autoRenewing:         autoRenewing,
		cancelReason:         cancelReason,
		packageName:          packageName,
		purchaseToken:        purchaseToken,
		purchaseTokenHistory: history,
		paymentState:         paymentState,
		startedAt:            startedAt,
		userCanceledAt:       userCanceledAt,
		expiresAt:            expiresAt,
	}, nil
}
