package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// maxBodySize bounds how much of an authorization server response we read
const maxBodySize = 1 << 20

// DeviceClient requests device codes from the authorization server
type DeviceClient struct {
	httpClient HTTPClient
	clock      clock.PassiveClock
	endpoint   string
	logger     *zap.Logger
}

// NewDeviceClient creates a DeviceClient for the given device authorization endpoint.
// A nil httpClient, clk or logger falls back to a 30s http.Client, the real clock and a no-op logger.
func NewDeviceClient(httpClient HTTPClient, clk clock.PassiveClock, endpoint string, logger *zap.Logger) *DeviceClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceClient{
		httpClient: httpClient,
		clock:      clk,
		endpoint:   endpoint,
		logger:     logger,
	}
}

type deviceCodeResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// RequestDeviceCode starts a device authorization attempt.
// The returned authorization's ExpiresAt is computed from expires_in at receipt time.
func (c *DeviceClient) RequestDeviceCode(ctx context.Context, clientID, scope string) (*DeviceAuthorization, error) {
	data := url.Values{}
	data.Set("client_id", clientID)
	if scope != "" {
		data.Set("scope", scope)
	}

	c.logger.Debug("requesting device code", zap.String("endpoint", c.endpoint), zap.String("scope", scope))

	status, body, err := postForm(ctx, c.httpClient, c.endpoint, data)
	if err != nil {
		return nil, &AuthError{Kind: KindTransport, Phase: PhaseCodeRequest, Err: err}
	}
	if status != http.StatusOK {
		return nil, &AuthError{Kind: KindServerRejected, Phase: PhaseCodeRequest, Status: status}
	}

	var raw deviceCodeResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &AuthError{Kind: KindMalformedResponse, Phase: PhaseCodeRequest, Err: err}
	}
	if err := raw.validate(); err != nil {
		return nil, &AuthError{Kind: KindMalformedResponse, Phase: PhaseCodeRequest, Err: err}
	}

	interval := time.Duration(raw.Interval) * time.Second
	if interval <= 0 {
		interval = DefaultInterval
	}

	da := &DeviceAuthorization{
		DeviceCode:              raw.DeviceCode,
		UserCode:                raw.UserCode,
		VerificationURI:         raw.VerificationURI,
		VerificationURIComplete: raw.VerificationURIComplete,
		ExpiresAt:               c.clock.Now().Add(time.Duration(raw.ExpiresIn) * time.Second),
		Interval:                interval,
		AttemptID:               uuid.NewString(),
	}

	c.logger.Info("device code issued",
		zap.String("attempt", da.AttemptID),
		zap.String("device_code", redact(da.DeviceCode)),
		zap.String("verification_uri", da.VerificationURI),
		zap.Duration("interval", da.Interval),
		zap.Time("expires_at", da.ExpiresAt),
	)

	return da, nil
}

func (r deviceCodeResponse) validate() error {
	var missing []string
	if r.DeviceCode == "" {
		missing = append(missing, "device_code")
	}
	if r.UserCode == "" {
		missing = append(missing, "user_code")
	}
	if r.VerificationURI == "" {
		missing = append(missing, "verification_uri")
	}
	if r.ExpiresIn <= 0 {
		missing = append(missing, "expires_in")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}
	if r.ExpiresIn > maxServerSeconds {
		return fmt.Errorf("expires_in %d exceeds %d seconds", r.ExpiresIn, maxServerSeconds)
	}
	if r.Interval > maxServerSeconds {
		return fmt.Errorf("interval %d exceeds %d seconds", r.Interval, maxServerSeconds)
	}
	return nil
}

// postForm sends a form-encoded POST asking for JSON and returns status and body
func postForm(ctx context.Context, client HTTPClient, endpoint string, data url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
