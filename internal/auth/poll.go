package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// Provider error codes from RFC 8628 section 3.5
const (
	errCodeAuthorizationPending = "authorization_pending"
	errCodeSlowDown             = "slow_down"
	errCodeExpiredToken         = "expired_token"
	errCodeAccessDenied         = "access_denied"
)

var errEmptyPollResponse = errors.New("neither access_token nor error present")

// PollingEngine turns a DeviceAuthorization into an access token.
// It is the only place in the flow that blocks between network calls.
type PollingEngine struct {
	httpClient HTTPClient
	clock      clock.Clock
	tokenURL   string
	clientID   string
	logger     *zap.Logger
}

// NewPollingEngine creates a PollingEngine polling tokenURL on behalf of clientID
func NewPollingEngine(httpClient HTTPClient, clk clock.Clock, tokenURL, clientID string, logger *zap.Logger) *PollingEngine {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PollingEngine{
		httpClient: httpClient,
		clock:      clk,
		tokenURL:   tokenURL,
		clientID:   clientID,
		logger:     logger,
	}
}

// Poll polls the token endpoint until the attempt reaches a terminal state.
// Only authorization_pending and slow_down keep the loop going; every other response
// or failure is returned immediately. da.Interval is updated in place on slow_down.
func (e *PollingEngine) Poll(ctx context.Context, da *DeviceAuthorization) (string, error) {
	log := e.logger.With(zap.String("attempt", da.AttemptID))

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if da.Expired(e.clock.Now()) {
			log.Info("device code deadline passed", zap.Int("polls", attempt-1))
			return "", &AuthError{Kind: KindExpired, Phase: PhasePolling}
		}

		outcome, err := e.pollOnce(ctx, da)
		if err != nil {
			return "", err
		}
		log.Debug("poll response", zap.Int("poll", attempt), zap.Stringer("outcome", outcome.Kind))

		switch outcome.Kind {
		case OutcomeAccessToken:
			log.Info("device authorization granted", zap.Int("polls", attempt))
			return outcome.Token, nil
		case OutcomePending:
			e.clock.Sleep(da.Interval)
		case OutcomeSlowDown:
			interval := da.SlowDown()
			log.Info("server requested slow down", zap.Duration("interval", interval))
			e.clock.Sleep(interval)
		case OutcomeExpired:
			return "", &AuthError{Kind: KindExpired, Phase: PhasePolling, Code: outcome.Code, Description: outcome.Description}
		case OutcomeDenied:
			return "", &AuthError{Kind: KindDenied, Phase: PhasePolling, Code: outcome.Code, Description: outcome.Description}
		default:
			return "", &AuthError{Kind: KindPollRejected, Phase: PhasePolling, Code: outcome.Code, Description: outcome.Description}
		}
	}
}

func (e *PollingEngine) pollOnce(ctx context.Context, da *DeviceAuthorization) (PollOutcome, error) {
	data := url.Values{}
	data.Set("client_id", e.clientID)
	data.Set("device_code", da.DeviceCode)
	data.Set("grant_type", GrantTypeDeviceCode)

	status, body, err := postForm(ctx, e.httpClient, e.tokenURL, data)
	if err != nil {
		return PollOutcome{}, &AuthError{Kind: KindTransport, Phase: PhasePolling, Err: err}
	}
	if status != http.StatusOK {
		return PollOutcome{}, &AuthError{Kind: KindPollTransport, Phase: PhasePolling, Status: status}
	}
	return ClassifyPollResponse(body)
}

type tokenPollResponse struct {
	AccessToken      string `json:"access_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ClassifyPollResponse interprets the body of a 200 response from the token endpoint.
// An access token wins over any error field.
func ClassifyPollResponse(body []byte) (PollOutcome, error) {
	var raw tokenPollResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return PollOutcome{}, &AuthError{Kind: KindMalformedResponse, Phase: PhasePolling, Err: err}
	}

	if raw.AccessToken != "" {
		return PollOutcome{Kind: OutcomeAccessToken, Token: raw.AccessToken}, nil
	}

	outcome := PollOutcome{Code: raw.Error, Description: raw.ErrorDescription}
	switch raw.Error {
	case "":
		return PollOutcome{}, &AuthError{Kind: KindMalformedResponse, Phase: PhasePolling, Err: errEmptyPollResponse}
	case errCodeAuthorizationPending:
		outcome.Kind = OutcomePending
	case errCodeSlowDown:
		outcome.Kind = OutcomeSlowDown
	case errCodeExpiredToken:
		outcome.Kind = OutcomeExpired
	case errCodeAccessDenied:
		outcome.Kind = OutcomeDenied
	default:
		outcome.Kind = OutcomeOtherError
	}
	return outcome, nil
}
