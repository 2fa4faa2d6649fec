package purchase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "billing-service/internal/pkg/errors"
)

func TestAppStoreCredentials(t *testing.T) {
	c, err := NewAppStoreCredentials("txn-1", "receipt-data")
	require.NoError(t, err)
	assert.Equal(t, GatewayAppStore, c.Gateway())
	assert.Equal(t, "txn-1", c.TransactionID())
	assert.Equal(t, "receipt-data", c.Receipt())

	_, err = NewAppStoreCredentials("", "receipt-data")
	assert.Error(t, err)
	_, err = NewAppStoreCredentials("txn-1", "")
	assert.Error(t, err)
}

func TestPlayStoreCredentials(t *testing.T) {
	c, err := NewPlayStoreCredentials("premium.monthly", "com.example.app", "token-1")
	require.NoError(t, err)
	assert.Equal(t, GatewayPlayStore, c.Gateway())

	_, err = NewPlayStoreCredentials("", "com.example.app", "token-1")
	assert.Error(t, err)
	_, err = NewPlayStoreCredentials("premium.monthly", "", "token-1")
	assert.Error(t, err)
	_, err = NewPlayStoreCredentials("premium.monthly", "com.example.app", "")
	assert.Error(t, err)
}

func TestCredentialsWireRoundTrip(t *testing.T) {
	appStore, err := NewAppStoreCredentials("txn-1", "receipt-data")
	require.NoError(t, err)
	playStore, err := NewPlayStoreCredentials("premium.monthly", "com.example.app", "token-1")
	require.NoError(t, err)

	for _, creds := range []Credentials{appStore, playStore} {
		wire := CredentialsToWire(creds)
		decoded, err := CredentialsFromWire(wire)
		require.NoError(t, err)
		assert.Equal(t, creds, decoded)
	}
}

func TestCredentialsFromWireFailures(t *testing.T) {
	cases := []struct {
		name string
		wire map[string]interface{}
		code xerrors.Code
	}{
		{
			"unknown gateway",
			map[string]interface{}{"gateway": "bogus", "credentials": map[string]interface{}{}},
			xerrors.CodeInvalidArgument,
		},
		{
			"free gateway",
			map[string]interface{}{"gateway": "free", "credentials": map[string]interface{}{}},
			xerrors.CodeInvalidArgument,
		},
		{
			"missing credentials",
			map[string]interface{}{"gateway": "appStore"},
			xerrors.CodeMalformedPayload,
		},
		{
			"missing receipt",
			map[string]interface{}{
				"gateway":     "appStore",
				"credentials": map[string]interface{}{"transactionId": "txn-1"},
			},
			xerrors.CodeMalformedPayload,
		},
		{
			"missing purchase token",
			map[string]interface{}{
				"gateway": "playStore",
				"credentials": map[string]interface{}{
					"productId":   "premium.monthly",
					"packageName": "com.example.app",
				},
			},
			xerrors.CodeMalformedPayload,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CredentialsFromWire(tc.wire)
			require.Error(t, err)
			assert.Equal(t, tc.code, xerrors.CodeOf(err))
		})
	}
}
