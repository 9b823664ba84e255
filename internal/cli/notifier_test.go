package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastertools/ghdevice/internal/auth"
)

func testDeviceAuthorization() *auth.DeviceAuthorization {
	return &auth.DeviceAuthorization{
		DeviceCode:              "D1",
		UserCode:                "ABCD-1234",
		VerificationURI:         "https://github.com/login/device",
		VerificationURIComplete: "https://github.com/login/device?user_code=ABCD-1234",
		ExpiresAt:               time.Now().Add(15 * time.Minute),
		Interval:                5 * time.Second,
	}
}

func newTestNotifier(t *testing.T, noBrowser bool, answer bool) (*terminalNotifier, *bytes.Buffer, *[]string, *int) {
	t.Helper()
	oldNoColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = oldNoColor })

	var out bytes.Buffer
	var opened []string
	prompts := 0

	n := newTerminalNotifier(&out, noBrowser, true)
	ask := MockSurveyAskOne(answer)
	n.askOne = func(p survey.Prompt, response interface{}, opts ...survey.AskOpt) error {
		prompts++
		return ask(p, response, opts...)
	}
	n.openURL = func(url string) error {
		opened = append(opened, url)
		return nil
	}
	return n, &out, &opened, &prompts
}

func TestTerminalNotifier_ShowsCodeAndOpensBrowser(t *testing.T) {
	n, out, opened, prompts := newTestNotifier(t, false, true)

	require.NoError(t, n.Notify(context.Background(), testDeviceAuthorization()))
	n.Finish(nil)

	assert.Contains(t, out.String(), "https://github.com/login/device")
	assert.Contains(t, out.String(), "ABCD-1234")
	assert.Contains(t, out.String(), "Authorization granted")
	assert.Equal(t, 1, *prompts)
	assert.Equal(t, []string{"https://github.com/login/device?user_code=ABCD-1234"}, *opened)
}

func TestTerminalNotifier_UserDeclinesBrowser(t *testing.T) {
	n, _, opened, prompts := newTestNotifier(t, false, false)

	require.NoError(t, n.Notify(context.Background(), testDeviceAuthorization()))
	n.Finish(nil)

	assert.Equal(t, 1, *prompts)
	assert.Empty(t, *opened)
}

func TestTerminalNotifier_NoBrowserSkipsPrompt(t *testing.T) {
	n, out, opened, prompts := newTestNotifier(t, true, true)

	require.NoError(t, n.Notify(context.Background(), testDeviceAuthorization()))
	n.Finish(errors.New("denied"))

	assert.Zero(t, *prompts)
	assert.Empty(t, *opened)
	assert.NotContains(t, out.String(), "Authorization granted")
}

func TestTerminalNotifier_BrowserFailureIsAWarning(t *testing.T) {
	n, out, _, _ := newTestNotifier(t, false, true)
	n.openURL = func(string) error { return errors.New("xdg-open not found") }

	require.NoError(t, n.Notify(context.Background(), testDeviceAuthorization()))
	n.Finish(nil)

	assert.Contains(t, out.String(), "Could not open browser: xdg-open not found")
}

func TestTerminalNotifier_NonInteractive(t *testing.T) {
	var out bytes.Buffer
	n := newTerminalNotifier(&out, false, false)

	err := n.Notify(context.Background(), testDeviceAuthorization())
	assert.ErrorIs(t, err, errNoTerminal)
	assert.Empty(t, out.String())
	n.Finish(err)
}
