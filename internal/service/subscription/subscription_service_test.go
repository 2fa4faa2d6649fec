package subscription

import (
	"context"
	"testing"
	"time"

	"billing-service/internal/domain/purchase"
	"billing-service/internal/domain/subscription"
	xerrors "billing-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	subs     map[string]subscription.Subscription
	upserted int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{subs: map[string]subscription.Subscription{}}
}

func (r *fakeRepo) FindByUserID(_ context.Context, userID string) (*subscription.Subscription, error) {
	sub, ok := r.subs[userID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return &sub, nil
}

func (r *fakeRepo) FindByPurchaseToken(_ context.Context, token string) (*subscription.Subscription, error) {
	for _, sub := range r.subs {
		play := sub.PlayStorePurchase()
		if play == nil {
			continue
		}
		for _, t := range play.AllPurchaseTokens() {
			if t == token {
				found := sub
				return &found, nil
			}
		}
	}
	return nil, xerrors.ErrNotFound
}

func (r *fakeRepo) Upsert(_ context.Context, sub subscription.Subscription) error {
	r.subs[sub.UserID()] = sub
	r.upserted++
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, userID string) error {
	if _, ok := r.subs[userID]; !ok {
		return xerrors.ErrNotFound
	}
	delete(r.subs, userID)
	return nil
}

func (r *fakeRepo) ListExpiringBefore(_ context.Context, cutoff time.Time, limit int) ([]string, error) {
	var userIDs []string
	for userID, sub := range r.subs {
		if sub.Gateway() == purchase.GatewayFree {
			continue
		}
		expiresAt, err := sub.ExpiresAt()
		if err != nil || expiresAt == nil {
			continue
		}
		if expiresAt.Before(cutoff) {
			userIDs = append(userIDs, userID)
		}
		if len(userIDs) == limit {
			break
		}
	}
	return userIDs, nil
}

type fakeCache struct {
	entries    map[string]subscription.Subscription
	deletions  []string
	writes     int
	hitsServed int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]subscription.Subscription{}}
}

func (c *fakeCache) Get(_ context.Context, userID string) (*subscription.Subscription, error) {
	sub, ok := c.entries[userID]
	if !ok {
		return nil, nil
	}
	c.hitsServed++
	return &sub, nil
}

func (c *fakeCache) Set(_ context.Context, sub subscription.Subscription) {
	c.entries[sub.UserID()] = sub
	c.writes++
}

func (c *fakeCache) Delete(_ context.Context, userID string) {
	delete(c.entries, userID)
	c.deletions = append(c.deletions, userID)
}

type fakeVerifier struct {
	record map[string]interface{}
	err    error
	calls  int
}

func (v *fakeVerifier) Verify(_ context.Context, _ purchase.Credentials) (map[string]interface{}, error) {
	v.calls++
	return v.record, v.err
}

type fakeBroadcaster struct {
	updates []string
}

func (b *fakeBroadcaster) BroadcastSubscriptionUpdated(userID string, _ map[string]interface{}) {
	b.updates = append(b.updates, userID)
}

func newTestService(repo *fakeRepo, cache *fakeCache, verifier *fakeVerifier, events *fakeBroadcaster, now time.Time) *Service {
	svc := NewService(repo, cache, verifier, events, zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc
}

func appStoreRecord(expiresAt string) map[string]interface{} {
	return map[string]interface{}{
		"productId":             "premium.monthly",
		"originalTransactionId": "txn-1",
		"originalPurchasedAt":   nil,
		"isFreeTrialEligible":   false,
		"expiresAt":             expiresAt,
		"cancelledAt":           nil,
		"expirationIntent":      nil,
		"inBillingRetryPeriod":  false,
		"inFreeTrialPeriod":     false,
		"autoRenewStatus":       float64(1),
		"receipt":               "base64-receipt",
	}
}

func playStoreRecord(token string) map[string]interface{} {
	return map[string]interface{}{
		"productId":            "premium.monthly",
		"autoRenewing":         true,
		"cancelReason":         float64(0),
		"packageName":          "com.example.app",
		"purchaseToken":        token,
		"purchaseTokenHistory": []interface{}{},
		"paymentState":         float64(1),
		"startedAt":            "2026-01-01T00:00:00Z",
		"userCanceledAt":       nil,
		"expiresAt":            "2026-06-01T00:00:00Z",
	}
}

func TestVerifyPurchase_CreatesSubscription(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	cache := newFakeCache()
	verifier := &fakeVerifier{record: appStoreRecord("2026-06-01T00:00:00Z")}
	events := &fakeBroadcaster{}
	svc := newTestService(repo, cache, verifier, events, now)

	sub, err := svc.VerifyPurchase(context.Background(), "user-1", "appStore", map[string]interface{}{
		"transactionId": "txn-1",
		"receipt":       "base64-receipt",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, verifier.calls)
	assert.Equal(t, purchase.GatewayAppStore, sub.Gateway())
	require.NotNil(t, sub.AppStorePurchase())
	assert.Equal(t, "txn-1", sub.AppStorePurchase().OriginalTransactionID())
	assert.Equal(t, now, sub.CreatedAt())

	assert.Equal(t, 1, repo.upserted)
	assert.Equal(t, []string{"user-1"}, cache.deletions)
	assert.Equal(t, []string{"user-1"}, events.updates)
}

func TestVerifyPurchase_UpgradeKeepsFreeRecord(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	cache := newFakeCache()
	verifier := &fakeVerifier{record: playStoreRecord("token-1")}
	svc := newTestService(repo, cache, verifier, &fakeBroadcaster{}, now)

	_, err := svc.StartFreeTier(context.Background(), "user-1", "free.tier")
	require.NoError(t, err)

	sub, err := svc.VerifyPurchase(context.Background(), "user-1", "playStore", map[string]interface{}{
		"productId":     "premium.monthly",
		"packageName":   "com.example.app",
		"purchaseToken": "token-1",
	})
	require.NoError(t, err)
	assert.Equal(t, purchase.GatewayPlayStore, sub.Gateway())
	require.NotNil(t, sub.FreePurchase(), "prior free record survives an upgrade")
	require.NotNil(t, sub.PlayStorePurchase())
}

func TestVerifyPurchase_CancelledReceiptRejected(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	record := appStoreRecord("2026-06-01T00:00:00Z")
	record["cancelledAt"] = "2026-02-01T00:00:00Z"

	repo := newFakeRepo()
	svc := newTestService(repo, newFakeCache(), &fakeVerifier{record: record}, &fakeBroadcaster{}, now)

	_, err := svc.VerifyPurchase(context.Background(), "user-1", "appStore", map[string]interface{}{
		"transactionId": "txn-1",
		"receipt":       "base64-receipt",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrPurchaseCancelled)
	assert.Equal(t, 0, repo.upserted, "a cancelled receipt never reaches the aggregate")
}

func TestVerifyPurchase_FreeGatewayRejected(t *testing.T) {
	svc := newTestService(newFakeRepo(), newFakeCache(), &fakeVerifier{}, &fakeBroadcaster{}, time.Now())

	_, err := svc.VerifyPurchase(context.Background(), "user-1", "free", map[string]interface{}{})
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
}

func TestVerifyPurchase_VerifierFailurePropagates(t *testing.T) {
	verifier := &fakeVerifier{err: xerrors.ErrVerificationFailed}
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeCache(), verifier, &fakeBroadcaster{}, time.Now())

	_, err := svc.VerifyPurchase(context.Background(), "user-1", "appStore", map[string]interface{}{
		"transactionId": "txn-1",
		"receipt":       "base64-receipt",
	})
	assert.ErrorIs(t, err, xerrors.ErrVerificationFailed)
	assert.Equal(t, 0, repo.upserted)
}

func TestGetSubscription_ReadsThroughCache(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	cache := newFakeCache()
	svc := newTestService(repo, cache, &fakeVerifier{}, &fakeBroadcaster{}, now)

	_, err := svc.StartFreeTier(context.Background(), "user-1", "free.tier")
	require.NoError(t, err)

	first, err := svc.GetSubscription(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.writes, "a repo read populates the cache")

	second, err := svc.GetSubscription(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hitsServed)
	assert.True(t, first.Equal(*second))
}

func TestGetSubscription_NotFound(t *testing.T) {
	svc := newTestService(newFakeRepo(), newFakeCache(), &fakeVerifier{}, &fakeBroadcaster{}, time.Now())

	_, err := svc.GetSubscription(context.Background(), "nobody")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestStatus_DerivedFacts(t *testing.T) {
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	verifier := &fakeVerifier{record: appStoreRecord("2026-06-01T00:00:00Z")}
	svc := newTestService(newFakeRepo(), newFakeCache(), verifier, &fakeBroadcaster{}, now)

	_, err := svc.VerifyPurchase(context.Background(), "user-1", "appStore", map[string]interface{}{
		"transactionId": "txn-1",
		"receipt":       "base64-receipt",
	})
	require.NoError(t, err)

	status, err := svc.Status(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "2026-06-01T00:00:00Z", status.ExpiresAt)
	assert.True(t, status.WillAutoRenew)
	assert.False(t, status.InGracePeriod)
	assert.True(t, status.Expired)
	assert.False(t, status.Ended, "auto-renew keeps an expired subscription alive")
	assert.Equal(t, "appStore", status.Subscription["gateway"])
}

func TestTrialEligibility(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	verifier := &fakeVerifier{record: playStoreRecord("token-1")}
	svc := newTestService(newFakeRepo(), newFakeCache(), verifier, &fakeBroadcaster{}, now)

	eligible, err := svc.TrialEligibility(context.Background(), "fresh-user", purchase.GatewayAppStore)
	require.NoError(t, err)
	assert.True(t, eligible, "no subscription at all means eligible")

	_, err = svc.VerifyPurchase(context.Background(), "user-1", "playStore", map[string]interface{}{
		"productId":     "premium.monthly",
		"packageName":   "com.example.app",
		"purchaseToken": "token-1",
	})
	require.NoError(t, err)

	eligible, err = svc.TrialEligibility(context.Background(), "user-1", purchase.GatewayPlayStore)
	require.NoError(t, err)
	assert.False(t, eligible, "a play store purchase consumes the trial")

	eligible, err = svc.TrialEligibility(context.Background(), "user-1", purchase.GatewayAppStore)
	require.NoError(t, err)
	assert.True(t, eligible, "the other store is untouched")

	_, err = svc.TrialEligibility(context.Background(), "user-1", purchase.GatewayFree)
	assert.Equal(t, xerrors.CodeIllegalState, xerrors.CodeOf(err))
}

func TestRefreshByPurchaseToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	verifier := &fakeVerifier{record: playStoreRecord("token-1")}
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeCache(), verifier, &fakeBroadcaster{}, now)

	_, err := svc.VerifyPurchase(context.Background(), "user-1", "playStore", map[string]interface{}{
		"productId":     "premium.monthly",
		"packageName":   "com.example.app",
		"purchaseToken": "token-1",
	})
	require.NoError(t, err)

	verifier.record = playStoreRecord("token-2")
	sub, err := svc.RefreshByPurchaseToken(context.Background(), "token-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub.UserID())
	assert.Equal(t, "token-2", sub.PlayStorePurchase().PurchaseToken())

	_, err = svc.RefreshByPurchaseToken(context.Background(), "unknown-token")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestRefreshExpired_ReverifiesDueSubscriptions(t *testing.T) {
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	verifier := &fakeVerifier{record: playStoreRecord("token-1")}
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeCache(), verifier, &fakeBroadcaster{}, now)

	// Expired play store subscription plus a free one that must be left
	// alone.
	_, err := svc.VerifyPurchase(context.Background(), "user-1", "playStore", map[string]interface{}{
		"productId":     "premium.monthly",
		"packageName":   "com.example.app",
		"purchaseToken": "token-1",
	})
	require.NoError(t, err)
	_, err = svc.StartFreeTier(context.Background(), "user-2", "free.tier")
	require.NoError(t, err)

	renewed := playStoreRecord("token-1")
	renewed["expiresAt"] = "2026-12-01T00:00:00Z"
	verifier.record = renewed

	svc.refreshExpired(context.Background(), 10)

	assert.Equal(t, 2, verifier.calls, "only the expired store subscription is re-verified")

	sub, err := svc.GetSubscription(context.Background(), "user-1")
	require.NoError(t, err)
	expiresAt, err := sub.ExpiresAt()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), expiresAt.UTC())
}

func TestApplyUpdate_TimestampsSurviveWireRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 987654321, time.UTC)
	svc := newTestService(newFakeRepo(), newFakeCache(), &fakeVerifier{}, &fakeBroadcaster{}, now)

	sub, err := svc.StartFreeTier(context.Background(), "user-1", "free.tier")
	require.NoError(t, err)

	decoded, err := subscription.FromWire(sub.ToWire())
	require.NoError(t, err)
	assert.True(t, sub.Equal(decoded), "aggregate must survive serialization unchanged")
	assert.Equal(t, now.Truncate(time.Second), sub.CreatedAt())
}

func TestDeleteSubscription(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	cache := newFakeCache()
	svc := newTestService(repo, cache, &fakeVerifier{}, &fakeBroadcaster{}, now)

	_, err := svc.StartFreeTier(context.Background(), "user-1", "free.tier")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSubscription(context.Background(), "user-1"))
	_, err = svc.GetSubscription(context.Background(), "user-1")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteSubscription(context.Background(), "user-1"), xerrors.ErrNotFound)
}
