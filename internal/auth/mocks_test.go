package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	testingclock "k8s.io/utils/clock/testing"
)

const (
	testDeviceURL = "https://github.test/login/device/code"
	testTokenURL  = "https://github.test/login/oauth/access_token"
	testUserURL   = "https://api.github.test/user"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		ClientID: "client-1",
		Scope:    "repo",
		Endpoint: oauth2.Endpoint{
			DeviceAuthURL: testDeviceURL,
			TokenURL:      testTokenURL,
		},
		UserInfoURL: testUserURL,
	}
}

// mockResponse is one scripted reply of MockHTTPClient
type mockResponse struct {
	Status int
	Body   string
	Err    error
}

// MockHTTPClient is a mock implementation of HTTPClient for testing.
// Routes are keyed by URL without query; each request pops the next scripted response.
type MockHTTPClient struct {
	mu sync.Mutex

	DoFunc func(req *http.Request) (*http.Response, error)
	Routes map[string][]mockResponse

	DoCalls []struct {
		Req  *http.Request
		Form url.Values
	}
}

// Do implements HTTPClient
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var form url.Values
	if req.Body != nil {
		body, _ := io.ReadAll(req.Body)
		form, _ = url.ParseQuery(string(body))
	}
	m.DoCalls = append(m.DoCalls, struct {
		Req  *http.Request
		Form url.Values
	}{
		Req:  req,
		Form: form,
	})

	if m.DoFunc != nil {
		return m.DoFunc(req)
	}

	key := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path
	queue := m.Routes[key]
	if len(queue) == 0 {
		return nil, fmt.Errorf("mock HTTP client: unexpected request to %s", key)
	}
	next := queue[0]
	m.Routes[key] = queue[1:]
	if next.Err != nil {
		return nil, next.Err
	}
	return &http.Response{
		StatusCode: next.Status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(next.Body)),
		Request:    req,
	}, nil
}

// CallsTo returns the recorded calls whose URL matches rawURL
func (m *MockHTTPClient) CallsTo(rawURL string) []url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()

	var forms []url.Values
	for _, c := range m.DoCalls {
		if c.Req.URL.Scheme+"://"+c.Req.URL.Host+c.Req.URL.Path == rawURL {
			forms = append(forms, c.Form)
		}
	}
	return forms
}

// Ensure MockHTTPClient implements HTTPClient
var _ HTTPClient = (*MockHTTPClient)(nil)

// MockNotifier is a mock implementation of Notifier for testing
type MockNotifier struct {
	mu sync.Mutex

	NotifyFunc  func(ctx context.Context, da *DeviceAuthorization) error
	NotifyCalls []*DeviceAuthorization
	FinishCalls []error
}

// Notify implements Notifier
func (m *MockNotifier) Notify(ctx context.Context, da *DeviceAuthorization) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *da
	m.NotifyCalls = append(m.NotifyCalls, &copied)
	if m.NotifyFunc != nil {
		return m.NotifyFunc(ctx, da)
	}
	return nil
}

// Finish implements Notifier
func (m *MockNotifier) Finish(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FinishCalls = append(m.FinishCalls, err)
}

// Ensure MockNotifier implements Notifier
var _ Notifier = (*MockNotifier)(nil)

// MockResolver is a mock implementation of IdentityResolver for testing
type MockResolver struct {
	Identity string
	Err      error
	Calls    []string
}

// ResolveIdentity implements IdentityResolver
func (m *MockResolver) ResolveIdentity(_ context.Context, token string) (string, error) {
	m.Calls = append(m.Calls, token)
	return m.Identity, m.Err
}

// recordingClock is a fake clock that records every Sleep; sleeping steps fake time
type recordingClock struct {
	*testingclock.FakeClock
	sleeps []time.Duration
}

func newRecordingClock() *recordingClock {
	return &recordingClock{FakeClock: testingclock.NewFakeClock(testEpoch)}
}

func (c *recordingClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.FakeClock.Sleep(d)
}

// Test response bodies
const (
	bodyPending  = `{"error":"authorization_pending","error_description":"waiting for user"}`
	bodySlowDown = `{"error":"slow_down","error_description":"too fast"}`
	bodyExpired  = `{"error":"expired_token","error_description":"the device code has expired"}`
	bodyDenied   = `{"error":"access_denied","error_description":"the user denied the request"}`
	bodyTokenABC = `{"access_token":"tok_abc","token_type":"bearer","scope":"repo"}`
	bodyDeviceD1 = `{"device_code":"D1","user_code":"ABCD-1234","verification_uri":"https://github.com/login/device","expires_in":900,"interval":5}`
	bodyOctocat  = `{"login":"octocat","id":1}`
)

func ok(body string) mockResponse {
	return mockResponse{Status: http.StatusOK, Body: body}
}

// testAuthorization returns an attempt issued at clk's current time
func testAuthorization(clk *recordingClock, expiresIn time.Duration) *DeviceAuthorization {
	return &DeviceAuthorization{
		DeviceCode:      "D1",
		UserCode:        "ABCD-1234",
		VerificationURI: "https://github.com/login/device",
		ExpiresAt:       clk.Now().Add(expiresIn),
		Interval:        DefaultInterval,
		AttemptID:       "attempt-1",
	}
}
