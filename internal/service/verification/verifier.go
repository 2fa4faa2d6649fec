package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"billing-service/internal/domain/purchase"
	xerrors "billing-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// Verifier submits purchase credentials to the matching store gateway
// and returns the verified purchase record as its wire payload. It is a
// thin I/O shim: all interpretation of the payload happens in the
// domain layer.
type Verifier interface {
	Verify(ctx context.Context, creds purchase.Credentials) (map[string]interface{}, error)
}

type Config struct {
	AppStoreURL  string
	PlayStoreURL string
	Timeout      time.Duration
}

type Service struct {
	appStore  *client
	playStore *client
	logger    *zap.Logger
}

func NewService(cfg Config, logger *zap.Logger) *Service {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Service{
		appStore:  &client{baseURL: cfg.AppStoreURL, httpClient: httpClient, logger: logger},
		playStore: &client{baseURL: cfg.PlayStoreURL, httpClient: httpClient, logger: logger},
		logger:    logger,
	}
}

// Verify dispatches on the credentials' gateway. The free gateway has
// nothing to verify.
func (s *Service) Verify(ctx context.Context, creds purchase.Credentials) (map[string]interface{}, error) {
	switch creds.Gateway() {
	case purchase.GatewayAppStore, purchase.GatewayPlayStore:
		gw := s.appStore
		if creds.Gateway() == purchase.GatewayPlayStore {
			gw = s.playStore
		}
		return gw.verify(ctx, creds)
	case purchase.GatewayFree:
		return nil, xerrors.InvalidArgument("the free gateway has no purchases to verify")
	default:
		return nil, xerrors.Unimplemented("no verification gateway for %q", creds.Gateway())
	}
}

type client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// verify POSTs the gateway-tagged credentials payload and expects the
// purchase record's wire object back.
func (c *client) verify(ctx context.Context, creds purchase.Credentials) (map[string]interface{}, error) {
	body, err := json.Marshal(purchase.CredentialsToWire(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, xerrors.Wrap(err, "verification gateway unreachable")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read verification response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("verification rejected",
			zap.String("gateway", creds.Gateway().String()),
			zap.Int("status", resp.StatusCode),
		)
		return nil, xerrors.Newf(xerrors.CodeVerification,
			"gateway %s rejected the purchase (status %d)", creds.Gateway(), resp.StatusCode).
			WithCause(xerrors.ErrVerificationFailed)
	}

	var record map[string]interface{}
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, xerrors.MalformedPayload("verification response is not a JSON object").WithCause(err)
	}
	return record, nil
}
