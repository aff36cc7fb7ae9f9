package console

import (
	"io"

	"github.com/pkg/browser"
)

// Browser opens destinations with the desktop's default browser.
type Browser struct{}

// NewBrowser silences the launcher's own output so it does not garble the
// prompt.
func NewBrowser() Browser {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	return Browser{}
}

func (Browser) Open(url string) error {
	return browser.OpenURL(url)
}

var _ Opener = Browser{}
