package purchase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFreePurchase(t *testing.T) {
	p, err := NewFreePurchase("premium.free")
	require.NoError(t, err)

	assert.Equal(t, GatewayFree, p.Gateway())
	assert.Equal(t, "premium.free", p.ProductID())
	assert.True(t, p.IsFreeTrialEligible())
	assert.True(t, p.WillAutoRenew())
	assert.False(t, p.IsInGracePeriod())
	assert.Nil(t, p.ExpiresAt())
}

func TestNewFreePurchaseRequiresProductID(t *testing.T) {
	_, err := NewFreePurchase("")
	assert.Error(t, err)
}

func TestFreePurchaseNeverExpires(t *testing.T) {
	p, err := NewFreePurchase("premium.free")
	require.NoError(t, err)

	instants := []time.Time{
		time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Now(),
		time.Date(2999, 12, 31, 23, 59, 59, 0, time.UTC),
	}
	for _, now := range instants {
		assert.False(t, p.IsExpired(now), "at %v", now)
		assert.False(t, p.IsEnded(now), "at %v", now)
	}
}

func TestFreePurchaseEqual(t *testing.T) {
	a, _ := NewFreePurchase("premium.free")
	b, _ := NewFreePurchase("premium.free")
	c, _ := NewFreePurchase("basic.free")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestFreePurchaseWireRoundTrip(t *testing.T) {
	p, err := NewFreePurchase("premium.free")
	require.NoError(t, err)

	decoded, err := FreePurchaseFromWire(p.ToWire())
	require.NoError(t, err)
	assert.True(t, p.Equal(decoded))
}

func TestFreePurchaseFromWireMissingProductID(t *testing.T) {
	_, err := FreePurchaseFromWire(map[string]interface{}{})
	assert.Error(t, err)
}
