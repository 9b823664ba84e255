package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
	"github.com/pkg/browser"

	"github.com/fastertools/ghdevice/internal/auth"
)

var errNoTerminal = errors.New("no cached token and no terminal to complete the device flow; set GH_TOKEN or run 'ghdevice auth login' interactively")

// isInteractive reports whether f is attached to a terminal
func isInteractive(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// terminalNotifier shows the user code, offers to open the browser and
// runs a spinner while the engine polls.
type terminalNotifier struct {
	out         io.Writer
	noBrowser   bool
	interactive bool

	askOne  func(p survey.Prompt, response interface{}, opts ...survey.AskOpt) error
	openURL func(url string) error
	spinner *spinner.Spinner
}

func newTerminalNotifier(out io.Writer, noBrowser, interactive bool) *terminalNotifier {
	return &terminalNotifier{
		out:         out,
		noBrowser:   noBrowser,
		interactive: interactive,
		askOne:      survey.AskOne,
		openURL:     browser.OpenURL,
	}
}

// Notify implements auth.Notifier
func (n *terminalNotifier) Notify(_ context.Context, da *auth.DeviceAuthorization) error {
	if !n.interactive {
		return errNoTerminal
	}

	_, _ = fmt.Fprintln(n.out, "🌐 To authorize ghdevice, visit:")
	_, _ = infoColor.Fprintf(n.out, "   %s\n", da.VerificationURI)
	_, _ = fmt.Fprintln(n.out)
	_, _ = fmt.Fprintln(n.out, "📋 And enter the code:")
	_, _ = codeColor.Fprintf(n.out, "   %s\n", da.UserCode)
	_, _ = fmt.Fprintln(n.out)
	_, _ = fmt.Fprintf(n.out, "The code expires at %s.\n", da.ExpiresAt.Local().Format(time.Kitchen))

	if !n.noBrowser && n.confirm("Open the verification page in your browser?") {
		if err := n.openURL(da.BrowseURL()); err != nil {
			_, _ = warnColor.Fprintf(n.out, "⚠ Could not open browser: %v\n", err)
		}
	}

	n.spinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(n.out))
	n.spinner.Suffix = " Waiting for authorization..."
	n.spinner.Start()
	return nil
}

// Finish implements auth.Notifier
func (n *terminalNotifier) Finish(err error) {
	if n.spinner != nil {
		n.spinner.Stop()
		n.spinner = nil
	}
	if err == nil {
		_, _ = successColor.Fprintln(n.out, "✓ Authorization granted")
	}
}

func (n *terminalNotifier) confirm(message string) bool {
	prompt := &survey.Confirm{
		Message: message,
		Default: true,
	}

	var result bool
	if err := n.askOne(prompt, &result, survey.WithStdio(os.Stdin, os.Stderr, os.Stderr)); err != nil {
		return false
	}
	return result
}
