package subscription

// VerifyPurchaseRequest is the gateway-tagged credentials payload
// submitted to have a store purchase verified and attached to the
// caller's subscription.
type VerifyPurchaseRequest struct {
	Gateway     string                 `json:"gateway" binding:"required"`
	Credentials map[string]interface{} `json:"credentials" binding:"required"`
}

// StartFreeRequest starts the built-in free tier for the caller.
type StartFreeRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}

// TrialEligibilityResponse answers a free-trial eligibility query for
// one store gateway.
type TrialEligibilityResponse struct {
	Gateway  string `json:"gateway"`
	Eligible bool   `json:"eligible"`
}

// StatusResponse is the derived lifecycle view of a subscription as
// served over HTTP.
type StatusResponse struct {
	Subscription  map[string]interface{} `json:"subscription"`
	ExpiresAt     interface{}            `json:"expires_at"`
	WillAutoRenew bool                   `json:"will_auto_renew"`
	InGracePeriod bool                   `json:"in_grace_period"`
	Expired       bool                   `json:"expired"`
	Ended         bool                   `json:"ended"`
}
