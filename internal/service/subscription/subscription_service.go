package subscription

import (
	"context"
	"math/rand"
	"time"

	"billing-service/internal/domain/purchase"
	"billing-service/internal/domain/subscription"
	xerrors "billing-service/internal/pkg/errors"
	"billing-service/internal/service/verification"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Repository is the persistence port for subscription aggregates.
type Repository interface {
	FindByUserID(ctx context.Context, userID string) (*subscription.Subscription, error)
	FindByPurchaseToken(ctx context.Context, token string) (*subscription.Subscription, error)
	Upsert(ctx context.Context, sub subscription.Subscription) error
	Delete(ctx context.Context, userID string) error
	ListExpiringBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

// Cache is the read-through cache port. Implementations absorb their
// own failures; a miss and an error look the same to the service.
type Cache interface {
	Get(ctx context.Context, userID string) (*subscription.Subscription, error)
	Set(ctx context.Context, sub subscription.Subscription)
	Delete(ctx context.Context, userID string)
}

// Broadcaster pushes subscription updates to connected clients.
type Broadcaster interface {
	BroadcastSubscriptionUpdated(userID string, payload map[string]interface{})
}

// Service owns the subscription lifecycle: verifying store purchases,
// starting the free tier and answering state queries.
type Service struct {
	repo     Repository
	cache    Cache
	verifier verification.Verifier
	events   Broadcaster
	logger   *zap.Logger
	now      func() time.Time
	entropy  *ulid.MonotonicEntropy
}

func NewService(
	repo Repository,
	cache Cache,
	verifier verification.Verifier,
	events Broadcaster,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		verifier: verifier,
		events:   events,
		logger:   logger,
		now:      time.Now,
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// attemptRef tags one verification attempt across log lines.
func (s *Service) attemptRef() string {
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}

// VerifyPurchase submits the credentials to the store, decodes the
// verified record and folds it into the user's subscription. A
// cancelled App Store receipt is treated as if the purchase never
// happened and is rejected before it can touch the aggregate.
func (s *Service) VerifyPurchase(ctx context.Context, userID string, gateway string, credentials map[string]interface{}) (*subscription.Subscription, error) {
	creds, err := purchase.CredentialsFromWire(map[string]interface{}{
		"gateway":     gateway,
		"credentials": credentials,
	})
	if err != nil {
		return nil, err
	}
	return s.verifyCredentials(ctx, userID, creds)
}

func (s *Service) verifyCredentials(ctx context.Context, userID string, creds purchase.Credentials) (*subscription.Subscription, error) {
	ref := s.attemptRef()

	s.logger.Info("verifying purchase",
		zap.String("ref", ref),
		zap.String("user_id", userID),
		zap.String("gateway", creds.Gateway().String()),
	)

	record, err := s.verifier.Verify(ctx, creds)
	if err != nil {
		s.logger.Warn("purchase verification failed",
			zap.String("ref", ref),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}

	update := subscription.Update{}
	switch creds.Gateway() {
	case purchase.GatewayAppStore:
		p, err := purchase.AppStorePurchaseFromWire(record)
		if err != nil {
			return nil, err
		}
		if p.CancelledAt() != nil {
			s.logger.Info("cancelled receipt dropped",
				zap.String("ref", ref),
				zap.String("user_id", userID),
			)
			return nil, xerrors.Newf(xerrors.CodeVerification,
				"the app store purchase was cancelled").WithCause(xerrors.ErrPurchaseCancelled)
		}
		update.AppStorePurchase = &p
	case purchase.GatewayPlayStore:
		p, err := purchase.PlayStorePurchaseFromWire(record)
		if err != nil {
			return nil, err
		}
		update.PlayStorePurchase = &p
	default:
		return nil, xerrors.Unimplemented("no purchase variant for gateway %q", creds.Gateway())
	}

	sub, err := s.applyUpdate(ctx, userID, creds.Gateway(), update)
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase verified",
		zap.String("ref", ref),
		zap.String("user_id", userID),
		zap.String("gateway", creds.Gateway().String()),
	)
	return sub, nil
}

// StartFreeTier places the user on the free gateway. The free record is
// created locally; there is nothing to verify.
func (s *Service) StartFreeTier(ctx context.Context, userID, productID string) (*subscription.Subscription, error) {
	free, err := purchase.NewFreePurchase(productID)
	if err != nil {
		return nil, err
	}
	return s.applyUpdate(ctx, userID, purchase.GatewayFree, subscription.Update{
		FreePurchase: &free,
	})
}

// applyUpdate folds a new purchase record into the user's aggregate,
// creating it on first contact, then persists, invalidates the cache
// and broadcasts the new state.
func (s *Service) applyUpdate(ctx context.Context, userID string, gateway purchase.Gateway, update subscription.Update) (*subscription.Subscription, error) {
	// Wire timestamps carry second precision; truncate so the aggregate
	// handed back equals the one re-read from storage.
	now := s.now().UTC().Truncate(time.Second)
	update.Gateway = &gateway
	update.UpdatedAt = &now

	existing, err := s.repo.FindByUserID(ctx, userID)
	if err != nil && !xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}

	var next subscription.Subscription
	if existing == nil {
		next, err = subscription.New(subscription.Params{
			UserID:            userID,
			Gateway:           gateway,
			FreePurchase:      update.FreePurchase,
			AppStorePurchase:  update.AppStorePurchase,
			PlayStorePurchase: update.PlayStorePurchase,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	} else {
		next, err = existing.CopyWith(update)
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.Upsert(ctx, next); err != nil {
		return nil, err
	}
	s.cache.Delete(ctx, userID)
	s.events.BroadcastSubscriptionUpdated(userID, next.ToWire())

	return &next, nil
}

// GetSubscription returns the user's subscription, reading through the
// cache.
func (s *Service) GetSubscription(ctx context.Context, userID string) (*subscription.Subscription, error) {
	if cached, err := s.cache.Get(ctx, userID); err == nil && cached != nil {
		return cached, nil
	}

	sub, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, *sub)
	return sub, nil
}

// Status renders the subscription together with its derived lifecycle
// facts at the current instant.
func (s *Service) Status(ctx context.Context, userID string) (*subscription.StatusResponse, error) {
	sub, err := s.GetSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt, err := sub.ExpiresAt()
	if err != nil {
		return nil, err
	}
	willAutoRenew, err := sub.WillAutoRenew()
	if err != nil {
		return nil, err
	}
	inGrace, err := sub.IsInGracePeriod()
	if err != nil {
		return nil, err
	}
	expired, err := sub.IsExpired(now)
	if err != nil {
		return nil, err
	}
	ended, err := sub.IsEnded(now)
	if err != nil {
		return nil, err
	}

	var expiresAtWire interface{}
	if expiresAt != nil {
		expiresAtWire = expiresAt.UTC().Format(time.RFC3339)
	}
	return &subscription.StatusResponse{
		Subscription:  sub.ToWire(),
		ExpiresAt:     expiresAtWire,
		WillAutoRenew: willAutoRenew,
		InGracePeriod: inGrace,
		Expired:       expired,
		Ended:         ended,
	}, nil
}

// TrialEligibility answers whether the user may start a free trial on
// the given store gateway. A user with no subscription at all has never
// purchased anything and is eligible on either store.
func (s *Service) TrialEligibility(ctx context.Context, userID string, gateway purchase.Gateway) (bool, error) {
	if gateway == purchase.GatewayFree {
		return false, xerrors.IllegalState("the free gateway has no free trial")
	}
	if !gateway.Valid() {
		return false, xerrors.InvalidArgument("trial eligibility requires a valid gateway, got %q", gateway)
	}

	sub, err := s.GetSubscription(ctx, userID)
	if xerrors.Is(err, xerrors.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return sub.IsFreeTrialEligible(gateway)
}

// RefreshByPurchaseToken re-verifies the Play Store subscription owning
// the given token. Store notifications carry only a token; the stored
// record supplies the rest of the credentials.
func (s *Service) RefreshByPurchaseToken(ctx context.Context, token string) (*subscription.Subscription, error) {
	sub, err := s.repo.FindByPurchaseToken(ctx, token)
	if err != nil {
		return nil, err
	}
	play := sub.PlayStorePurchase()
	if play == nil {
		return nil, xerrors.IllegalState("subscription matched a purchase token but has no play store record")
	}

	creds, err := purchase.NewPlayStoreCredentials(play.ProductID(), play.PackageName(), play.PurchaseToken())
	if err != nil {
		return nil, err
	}
	return s.verifyCredentials(ctx, sub.UserID(), creds)
}

// RunExpiryRefresh periodically re-verifies store subscriptions whose
// nominal expiry has passed, picking up renewals the stores have not
// pushed. Blocks until ctx is cancelled.
func (s *Service) RunExpiryRefresh(ctx context.Context, interval time.Duration, batch int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshExpired(ctx, batch)
		}
	}
}

func (s *Service) refreshExpired(ctx context.Context, batch int) {
	userIDs, err := s.repo.ListExpiringBefore(ctx, s.now().UTC(), batch)
	if err != nil {
		s.logger.Warn("failed to list expiring subscriptions", zap.Error(err))
		return
	}

	for _, userID := range userIDs {
		if err := s.refreshUser(ctx, userID); err != nil {
			s.logger.Warn("subscription refresh failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}
}

// refreshUser rebuilds the credentials from the stored record and runs
// a fresh verification for the user's active store gateway.
func (s *Service) refreshUser(ctx context.Context, userID string) error {
	sub, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return err
	}

	switch sub.Gateway() {
	case purchase.GatewayAppStore:
		record := sub.AppStorePurchase()
		creds, err := purchase.NewAppStoreCredentials(record.OriginalTransactionID(), record.Receipt())
		if err != nil {
			return err
		}
		_, err = s.verifyCredentials(ctx, userID, creds)
		return err
	case purchase.GatewayPlayStore:
		play := sub.PlayStorePurchase()
		creds, err := purchase.NewPlayStoreCredentials(play.ProductID(), play.PackageName(), play.PurchaseToken())
		if err != nil {
			return err
		}
		_, err = s.verifyCredentials(ctx, userID, creds)
		return err
	default:
		// the free tier never expires and has nothing to refresh
		return nil
	}
}

// DeleteSubscription removes all subscription state for the user.
func (s *Service) DeleteSubscription(ctx context.Context, userID string) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}
	s.cache.Delete(ctx, userID)
	return nil
}
