package purchase

import (
	xerrors "billing-service/internal/pkg/errors"
)

// Gateway identifies the payment back-end that produced a purchase
// record. The set is closed: free tier, App Store and Play Store.
type Gateway string

const (
	GatewayFree      Gateway = "free"
	GatewayAppStore  Gateway = "appStore"
	GatewayPlayStore Gateway = "playStore"
)

// ParseGateway maps a wire string onto its canonical gateway value.
// Unrecognized strings fail with an invalid-argument error; there is no
// default or fallback.
func ParseGateway(value string) (Gateway, error) {
	switch Gateway(value) {
	case GatewayFree:
		return GatewayFree, nil
	case GatewayAppStore:
		return GatewayAppStore, nil
	case GatewayPlayStore:
		return GatewayPlayStore, nil
	default:
		return "", xerrors.InvalidArgument("unrecognized payment gateway %q", value).
			WithDetails(map[string]interface{}{"value": value})
	}
}

func (g Gateway) String() string {
	return string(g)
}

// Valid reports whether g belongs to the closed gateway set.
func (g Gateway) Valid() bool {
	switch g {
	case GatewayFree, GatewayAppStore, GatewayPlayStore:
		return true
	}
	return false
}
