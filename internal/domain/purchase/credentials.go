package purchase

import (
	xerrors "billing-service/internal/pkg/errors"
)

// Credentials is the gateway-tagged bundle of fields needed to submit a
// purchase for verification. Credentials are never stored on a
// subscription.
type Credentials interface {
	Gateway() Gateway
	wireCredentials() map[string]interface{}
}

// AppStoreCredentials identify an App Store transaction to verify.
type AppStoreCredentials struct {
	transactionID string
	receipt       string
}

func NewAppStoreCredentials(transactionID, receipt string) (AppStoreCredentials, error) {
	if transactionID == "" {
		return AppStoreCredentials{}, xerrors.InvalidArgument("app store credentials require a transaction id")
	}
	if receipt == "" {
		return AppStoreCredentials{}, xerrors.InvalidArgument("app store credentials require a receipt")
	}
	return AppStoreCredentials{transactionID: transactionID, receipt: receipt}, nil
}

func (c AppStoreCredentials) Gateway() Gateway      { return GatewayAppStore }
func (c AppStoreCredentials) TransactionID() string { return c.transactionID }
func (c AppStoreCredentials) Receipt() string       { return c.receipt }

func (c AppStoreCredentials) wireCredentials() map[string]interface{} {
	return map[string]interface{}{
		"transactionId": c.transactionID,
		"receipt":       c.receipt,
	}
}

// PlayStoreCredentials identify a Play Store purchase to verify.
type PlayStoreCredentials struct {
	productID     string
	packageName   string
	purchaseToken string
}

func NewPlayStoreCredentials(productID, packageName, purchaseToken string) (PlayStoreCredentials, error) {
	if productID == "" {
		return PlayStoreCredentials{}, xerrors.InvalidArgument("play store credentials require a product id")
	}
	if packageName == "" {
		return PlayStoreCredentials{}, xerrors.InvalidArgument("play store credentials require a package name")
	}
	if purchaseToken == "" {
		return PlayStoreCredentials{}, xerrors.InvalidArgument("play store credentials require a purchase token")
	}
	return PlayStoreCredentials{
		productID:     productID,
		packageName:   packageName,
		purchaseToken: purchaseToken,
	}, nil
}

func (c PlayStoreCredentials) Gateway() Gateway      { return GatewayPlayStore }
func (c PlayStoreCredentials) ProductID() string     { return c.productID }
func (c PlayStoreCredentials) PackageName() string   { return c.packageName }
func (c PlayStoreCredentials) PurchaseToken() string { return c.purchaseToken }

func (c PlayStoreCredentials) wireCredentials() map[string]interface{} {
	return map[string]interface{}{
		"productId":     c.productID,
		"packageName":   c.packageName,
		"purchaseToken": c.purchaseToken,
	}
}

// CredentialsToWire renders credentials as their gateway-tagged wire
// mapping.
func CredentialsToWire(c Credentials) map[string]interface{} {
	return map[string]interface{}{
		"gateway":     c.Gateway().String(),
		"credentials": c.wireCredentials(),
	}
}

// CredentialsFromWire decodes a gateway-tagged credentials payload. The
// free gateway carries no credentials; asking to verify it is an
// invalid argument.
func CredentialsFromWire(m map[string]interface{}) (Credentials, error) {
	gatewayValue, err := wireString(m, "gateway")
	if err != nil {
		return nil, err
	}
	gateway, err := ParseGateway(gatewayValue)
	if err != nil {
		return nil, err
	}
	raw, ok := m["credentials"]
	if !ok || raw == nil {
		return nil, xerrors.MalformedPayload("missing required field %q", "credentials")
	}
	fields, ok := raw.(map[string]interface{})
	if !ok {
		return nil, xerrors.MalformedPayload("field %q is not an object", "credentials")
	}

	switch gateway {
	case GatewayAppStore:
		transactionID, err := wireString(fields, "transactionId")
		if err != nil {
			return nil, err
		}
		receipt, err := wireString(fields, "receipt")
		if err != nil {
			return nil, err
		}
		return NewAppStoreCredentials(transactionID, receipt)
	case GatewayPlayStore:
		productID, err := wireString(fields, "productId")
		if err != nil {
			return nil, err
		}
		packageName, err := wireString(fields, "packageName")
		if err != nil {
			return nil, err
		}
		purchaseToken, err := wireString(fields, "purchaseToken")
		if err != nil {
			return nil, err
		}
		return NewPlayStoreCredentials(productID, packageName, purchaseToken)
	case GatewayFree:
		return nil, xerrors.InvalidArgument("the free gateway has no purchase credentials")
	default:
		return nil, xerrors.Unimplemented("no credentials variant for gateway %q", gateway)
	}
}
