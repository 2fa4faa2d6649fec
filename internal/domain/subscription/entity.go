package subscription

import (
	"time"

	"billing-service/internal/domain/purchase"
	"billing-service/internal/pkg/dateutil"
	xerrors "billing-service/internal/pkg/errors"
)

// Subscription is the aggregate root for a user's subscription state.
// It owns at most one purchase record per gateway ever used and a
// currently selected gateway; every lifecycle fact reads through the
// active purchase. Values are immutable: updates go through CopyWith.
type Subscription struct {
	userID            string
	gateway           purchase.Gateway
	freePurchase      *purchase.FreePurchase
	appStorePurchase  *purchase.AppStorePurchase
	playStorePurchase *purchase.PlayStorePurchase
	createdAt         time.Time
	updatedAt         time.Time
}

// Params carries the constructor inputs for a Subscription.
type Params struct {
	UserID            string
	Gateway           purchase.Gateway
	FreePurchase      *purchase.FreePurchase
	AppStorePurchase  *purchase.AppStorePurchase
	PlayStorePurchase *purchase.PlayStorePurchase
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// New validates and builds a Subscription. The selected gateway must
// point at a stored purchase record; a subscription is never
// constructed with a dangling gateway.
func New(params Params) (Subscription, error) {
	if params.UserID == "" {
		return Subscription{}, xerrors.InvalidArgument("subscription requires a user id")
	}
	if !params.Gateway.Valid() {
		return Subscription{}, xerrors.InvalidArgument("subscription requires a valid gateway, got %q", params.Gateway)
	}
	if params.CreatedAt.IsZero() || params.UpdatedAt.IsZero() {
		return Subscription{}, xerrors.InvalidArgument("subscription requires createdAt and updatedAt")
	}
	s := Subscription{
		userID:            params.UserID,
		gateway:           params.Gateway,
		freePurchase:      params.FreePurchase,
		appStorePurchase:  params.AppStorePurchase,
		playStorePurchase: params.PlayStorePurchase,
		createdAt:         params.CreatedAt.UTC(),
		updatedAt:         params.UpdatedAt.UTC(),
	}
	if _, err := s.ActivePurchase(); err != nil {
		return Subscription{}, err
	}
	return s, nil
}

func (s Subscription) UserID() string            { return s.userID }
func (s Subscription) Gateway() purchase.Gateway { return s.gateway }
func (s Subscription) CreatedAt() time.Time      { return s.createdAt }
func (s Subscription) UpdatedAt() time.Time      { return s.updatedAt }

func (s Subscription) FreePurchase() *purchase.FreePurchase           { return s.freePurchase }
func (s Subscription) AppStorePurchase() *purchase.AppStorePurchase   { return s.appStorePurchase }
func (s Subscription) PlayStorePurchase() *purchase.PlayStorePurchase { return s.playStorePurchase }

// ActivePurchase dispatches on the selected gateway to the matching
// stored record. A gateway with no stored record is a contract
// violation and fails loudly; there is no silent fallback.
func (s Subscription) ActivePurchase() (purchase.Purchase, error) {
	switch s.gateway {
	case purchase.GatewayFree:
		if s.freePurchase == nil {
			return nil, xerrors.IllegalState("gateway is free but no free purchase is stored")
		}
		return *s.freePurchase, nil
	case purchase.GatewayAppStore:
		if s.appStorePurchase == nil {
			return nil, xerrors.IllegalState("gateway is appStore but no app store purchase is stored")
		}
		return *s.appStorePurchase, nil
	case purchase.GatewayPlayStore:
		if s.playStorePurchase == nil {
			return nil, xerrors.IllegalState("gateway is playStore but no play store purchase is stored")
		}
		return *s.playStorePurchase, nil
	default:
		return nil, xerrors.Unimplemented("active purchase is not implemented for gateway %q", s.gateway)
	}
}

// ExpiresAt delegates to the active purchase.
func (s Subscription) ExpiresAt() (*time.Time, error) {
	active, err := s.ActivePurchase()
	if err != nil {
		return nil, err
	}
	return active.ExpiresAt(), nil
}

// WillAutoRenew delegates to the active purchase.
func (s Subscription) WillAutoRenew() (bool, error) {
	active, err := s.ActivePurchase()
	if err != nil {
		return false, err
	}
	return active.WillAutoRenew(), nil
}

// IsInGracePeriod delegates to the active purchase.
func (s Subscription) IsInGracePeriod() (bool, error) {
	active, err := s.ActivePurchase()
	if err != nil {
		return false, err
	}
	return active.IsInGracePeriod(), nil
}

// IsExpired delegates to the active purchase at the given instant.
func (s Subscription) IsExpired(now time.Time) (bool, error) {
	active, err := s.ActivePurchase()
	if err != nil {
		return false, err
	}
	return active.IsExpired(now), nil
}

// IsEnded delegates to the active purchase at the given instant.
func (s Subscription) IsEnded(now time.Time) (bool, error) {
	active, err := s.ActivePurchase()
	if err != nil {
		return false, err
	}
	return active.IsEnded(now), nil
}

// IsFreeTrialEligible answers eligibility for a store gateway. A user
// who never purchased through that gateway is eligible; otherwise the
// stored record decides. The free gateway has no trial concept, so
// querying it is an illegal state, and anything outside the closed set
// is unimplemented.
func (s Subscription) IsFreeTrialEligible(gateway purchase.Gateway) (bool, error) {
	switch gateway {
	case purchase.GatewayAppStore:
		if s.appStorePurchase == nil {
			return true, nil
		}
		return s.appStorePurchase.IsFreeTrialEligible(), nil
	case purchase.GatewayPlayStore:
		if s.playStorePurchase == nil {
			return true, nil
		}
		return s.playStorePurchase.IsFreeTrialEligible(), nil
	case purchase.GatewayFree:
		return false, xerrors.IllegalState("the free gateway has no free trial")
	default:
		return false, xerrors.Unimplemented("free trial eligibility is not implemented for gateway %q", gateway)
	}
}

// Update lists the fields CopyWith may override. A nil field keeps the
// current value. UserID and CreatedAt are fixed at creation.
type Update struct {
	Gateway           *purchase.Gateway
	FreePurchase      *purchase.FreePurchase
	AppStorePurchase  *purchase.AppStorePurchase
	PlayStorePurchase *purchase.PlayStorePurchase
	UpdatedAt         *time.Time
}

// CopyWith produces a new aggregate with the overrides applied and the
// gateway/record invariant re-checked. Switching to a gateway with no
// stored record fails.
func (s Subscription) CopyWith(update Update) (Subscription, error) {
	next := s
	if update.Gateway != nil {
		next.gateway = *update.Gateway
	}
	if update.FreePurchase != nil {
		next.freePurchase = update.FreePurchase
	}
	if update.AppStorePurchase != nil {
		next.appStorePurchase = update.AppStorePurchase
	}
	if update.PlayStorePurchase != nil {
		next.playStorePurchase = update.PlayStorePurchase
	}
	if update.UpdatedAt != nil {
		next.updatedAt = update.UpdatedAt.UTC()
	}
	if !next.gateway.Valid() {
		return Subscription{}, xerrors.InvalidArgument("subscription requires a valid gateway, got %q", next.gateway)
	}
	if _, err := next.ActivePurchase(); err != nil {
		return Subscription{}, err
	}
	return next, nil
}

// Equal compares user id, gateway, all three purchase records and both
// timestamps.
func (s Subscription) Equal(other Subscription) bool {
	if s.userID != other.userID ||
		s.gateway != other.gateway ||
		!s.createdAt.Equal(other.createdAt) ||
		!s.updatedAt.Equal(other.updatedAt) {
		return false
	}
	if (s.freePurchase == nil) != (other.freePurchase == nil) {
		return false
	}
	if s.freePurchase != nil && !s.freePurchase.Equal(*other.freePurchase) {
		return false
	}
	if (s.appStorePurchase == nil) != (other.appStorePurchase == nil) {
		return false
	}
	if s.appStorePurchase != nil && !s.appStorePurchase.Equal(*other.appStorePurchase) {
		return false
	}
	if (s.playStorePurchase == nil) != (other.playStorePurchase == nil) {
		return false
	}
	if s.playStorePurchase != nil && !s.playStorePurchase.Equal(*other.playStorePurchase) {
		return false
	}
	return true
}

// ToWire renders the aggregate as its wire mapping. A purchase key is
// entirely absent, not null, when that gateway was never used.
func (s Subscription) ToWire() map[string]interface{} {
	m := map[string]interface{}{
		"userId":    s.userID,
		"gateway":   s.gateway.String(),
		"createdAt": s.createdAt.UTC().Format(time.RFC3339),
		"updatedAt": s.updatedAt.UTC().Format(time.RFC3339),
	}
	if s.freePurchase != nil {
		m["freePurchase"] = s.freePurchase.ToWire()
	}
	if s.appStorePurchase != nil {
		m["appStorePurchase"] = s.appStorePurchase.ToWire()
	}
	if s.playStorePurchase != nil {
		m["playStorePurchase"] = s.playStorePurchase.ToWire()
	}
	return m
}

// FromWire decodes a subscription payload. Each purchase key is decoded
// through its own variant only when present; a missing or null key
// leaves that record absent. The whole decode fails on the first
// malformed field, never yielding a partially built aggregate.
func FromWire(m map[string]interface{}) (Subscription, error) {
	userID, ok := m["userId"].(string)
	if !ok || userID == "" {
		return Subscription{}, xerrors.MalformedPayload("missing required field %q", "userId")
	}
	gatewayValue, ok := m["gateway"].(string)
	if !ok {
		return Subscription{}, xerrors.MalformedPayload("missing required field %q", "gateway")
	}
	gateway, err := purchase.ParseGateway(gatewayValue)
	if err != nil {
		return Subscription{}, err
	}

	createdAt, err := requiredWireTime(m, "createdAt")
	if err != nil {
		return Subscription{}, err
	}
	updatedAt, err := requiredWireTime(m, "updatedAt")
	if err != nil {
		return Subscription{}, err
	}

	var free *purchase.FreePurchase
	raw, present, err := wireObject(m, "freePurchase")
	if err != nil {
		return Subscription{}, err
	}
	if present {
		p, err := purchase.FreePurchaseFromWire(raw)
		if err != nil {
			return Subscription{}, err
		}
		free = &p
	}
	var appStore *purchase.AppStorePurchase
	raw, present, err = wireObject(m, "appStorePurchase")
	if err != nil {
		return Subscription{}, err
	}
	if present {
		p, err := purchase.AppStorePurchaseFromWire(raw)
		if err != nil {
			return Subscription{}, err
		}
		appStore = &p
	}
	var playStore *purchase.PlayStorePurchase
	raw, present, err = wireObject(m, "playStorePurchase")
	if err != nil {
		return Subscription{}, err
	}
	if present {
		p, err := purchase.PlayStorePurchaseFromWire(raw)
		if err != nil {
			return Subscription{}, err
		}
		playStore = &p
	}

	return New(Params{
		UserID:            userID,
		Gateway:           gateway,
		FreePurchase:      free,
		AppStorePurchase:  appStore,
		PlayStorePurchase: playStore,
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
	})
}

func requiredWireTime(m map[string]interface{}, key string) (time.Time, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return time.Time{}, xerrors.MalformedPayload("missing required field %q", key)
	}
	t, err := dateutil.ParseDate(raw)
	if err != nil {
		return time.Time{}, xerrors.MalformedPayload("field %q: unparseable timestamp", key).WithCause(err)
	}
	return *t, nil
}

// wireObject distinguishes "key missing" and "key present with null"
// (both mean no record) from a present nested object. Any other value
// under the key is malformed.
func wireObject(m map[string]interface{}, key string) (map[string]interface{}, bool, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil, false, nil
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, false, xerrors.MalformedPayload("field %q is not an object", key)
	}
	return obj, true, nil
}
