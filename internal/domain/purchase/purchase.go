package purchase

import (
	"time"

	xerrors "billing-service/internal/pkg/errors"
)

// Purchase is the read contract every gateway-specific purchase record
// satisfies. Records are immutable values; the lifecycle facts derived
// from them (IsExpired, IsEnded) take the current time as an explicit
// parameter and are recomputed on every call, never cached.
type Purchase interface {
	// Gateway names the back-end that produced this record.
	Gateway() Gateway

	ProductID() string
	IsFreeTrialEligible() bool
	WillAutoRenew() bool
	IsInGracePeriod() bool

	// ExpiresAt returns the nominal expiration time, or nil when the
	// purchase never expires.
	ExpiresAt() *time.Time

	// IsExpired reports whether the purchase is past its expiration at
	// the given instant. A purchase without an expiration never expires.
	IsExpired(now time.Time) bool

	// IsEnded reports the terminal non-active state: expired, not in a
	// grace period, and not renewing.
	IsEnded(now time.Time) bool

	// ToWire renders the record as its wire mapping. Every field is
	// emitted, optionals as null when unset.
	ToWire() map[string]interface{}
}

// FromWire decodes a gateway's wire payload into the matching purchase
// variant.
func FromWire(gateway Gateway, payload map[string]interface{}) (Purchase, error) {
	switch gateway {
	case GatewayFree:
		return FreePurchaseFromWire(payload)
	case GatewayAppStore:
		return AppStorePurchaseFromWire(payload)
	case GatewayPlayStore:
		return PlayStorePurchaseFromWire(payload)
	default:
		return nil, xerrors.Unimplemented("no purchase variant for gateway %q", gateway)
	}
}

func expired(expiresAt *time.Time, now time.Time) bool {
	if expiresAt == nil {
		return false
	}
	return now.UTC().After(expiresAt.UTC())
}

func ended(p Purchase, now time.Time) bool {
	return p.IsExpired(now) && !p.IsInGracePeriod() && !p.WillAutoRenew()
}
