package verification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"billing-service/internal/domain/purchase"
	xerrors "billing-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func appStoreCreds(t *testing.T) purchase.AppStoreCredentials {
	t.Helper()
	creds, err := purchase.NewAppStoreCredentials("txn-1", "base64-receipt")
	require.NoError(t, err)
	return creds
}

func playStoreCreds(t *testing.T) purchase.PlayStoreCredentials {
	t.Helper()
	creds, err := purchase.NewPlayStoreCredentials("premium.monthly", "com.example.app", "token-1")
	require.NoError(t, err)
	return creds
}

func TestVerify_AppStoreSuccess(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"productId":             "premium.monthly",
			"originalTransactionId": "txn-1",
		})
	}))
	defer server.Close()

	svc := NewService(Config{
		AppStoreURL:  server.URL,
		PlayStoreURL: "http://unused.invalid",
		Timeout:      2 * time.Second,
	}, zap.NewNop())

	record, err := svc.Verify(context.Background(), appStoreCreds(t))
	require.NoError(t, err)
	assert.Equal(t, "premium.monthly", record["productId"])

	assert.Equal(t, "appStore", got["gateway"])
	creds, ok := got["credentials"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "txn-1", creds["transactionId"])
	assert.Equal(t, "base64-receipt", creds["receipt"])
}

func TestVerify_PlayStoreRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	svc := NewService(Config{
		AppStoreURL:  "http://unused.invalid",
		PlayStoreURL: server.URL,
		Timeout:      2 * time.Second,
	}, zap.NewNop())

	_, err := svc.Verify(context.Background(), playStoreCreds(t))
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeVerification, xerrors.CodeOf(err))
	assert.ErrorIs(t, err, xerrors.ErrVerificationFailed)
}

func TestVerify_NonJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	svc := NewService(Config{
		AppStoreURL:  server.URL,
		PlayStoreURL: server.URL,
		Timeout:      2 * time.Second,
	}, zap.NewNop())

	_, err := svc.Verify(context.Background(), appStoreCreds(t))
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeMalformedPayload, xerrors.CodeOf(err))
}

func TestVerify_GatewayUnreachable(t *testing.T) {
	svc := NewService(Config{
		AppStoreURL:  "http://127.0.0.1:1",
		PlayStoreURL: "http://127.0.0.1:1",
		Timeout:      500 * time.Millisecond,
	}, zap.NewNop())

	_, err := svc.Verify(context.Background(), appStoreCreds(t))
	require.Error(t, err)
}
