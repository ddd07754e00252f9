// SPDX-License-Identifier: GPL-3.0-or-later
package photos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/mailpix/mailpix/log"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var Scopes = []string{
	"https://www.googleapis.com/auth/photoslibrary",
	"https://www.googleapis.com/auth/photoslibrary.appendonly",
}

// Authenticator holds the oauth2 client configuration and the persisted
// token of the photo library account.
type Authenticator struct {
	config    *oauth2.Config
	tokenFile string
	source    oauth2.TokenSource

	l *logrus.Logger
}

func NewAuthenticator(credentialsFile, tokenFile string) (*Authenticator, error) {
	credentials, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("could not read oauth client credentials: %w", err)
	}

	config, err := google.ConfigFromJSON(credentials, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("could not parse oauth client credentials: %w", err)
	}

	return &Authenticator{
		config:    config,
		tokenFile: tokenFile,
		l:         log.Logger(log.LOG_PHOTOS),
	}, nil
}

// Client returns an http client that injects and auto-refreshes the access
// token. The token file must exist, run Authorize once to create it.
func (a *Authenticator) Client(ctx context.Context) (*http.Client, error) {
	token, err := a.loadToken()
	if err != nil {
		return nil, fmt.Errorf("could not load token (run with -authorize first): %w", err)
	}

	a.source = oauth2.ReuseTokenSource(token, a.config.TokenSource(ctx, token))
	return oauth2.NewClient(ctx, a.source), nil
}

// Authorize runs the one-time interactive flow: print the consent url, read
// the authorization code from stdin, exchange and persist the token.
func (a *Authenticator) Authorize(ctx context.Context) error {
	a.config.RedirectURL = "urn:ietf:wg:oauth:2.0:oob"
	url := a.config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)

	fmt.Printf("Open the following url in a browser, authorize the app and paste the code here:\n%s\n\nCode: ", url)
	var code string
	_, err := fmt.Scan(&code)
	if err != nil {
		return fmt.Errorf("could not read authorization code: %w", err)
	}

	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("could not exchange authorization code: %w", err)
	}

	err = a.saveToken(token)
	if err != nil {
		return err
	}

	a.l.WithField("file", a.tokenFile).Info("Authorized and saved token")
	return nil
}

// PersistToken writes the current, possibly refreshed token back to disk so
// the next run does not need another refresh round-trip. Best-effort.
func (a *Authenticator) PersistToken() {
	if a.source == nil {
		return
	}

	token, err := a.source.Token()
	if err != nil {
		a.l.WithField("error", err).Warn("Could not read current token for persisting")
		return
	}

	err = a.saveToken(token)
	if err != nil {
		a.l.WithField("error", err).Warn("Could not persist refreshed token")
	}
}

func (a *Authenticator) loadToken() (*oauth2.Token, error) {
	content, err := os.ReadFile(a.tokenFile)
	if err != nil {
		return nil, fmt.Errorf("could not read token file: %w", err)
	}

	token := &oauth2.Token{}
	err = json.Unmarshal(content, token)
	if err != nil {
		return nil, fmt.Errorf("could not parse token file: %w", err)
	}

	return token, nil
}

func (a *Authenticator) saveToken(token *oauth2.Token) error {
	content, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("could not serialize token: %w", err)
	}

	err = os.WriteFile(a.tokenFile, content, 0600)
	if err != nil {
		return fmt.Errorf("could not write token file: %w", err)
	}

	return nil
}
