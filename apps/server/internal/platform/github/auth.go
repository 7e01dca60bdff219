// Package github provides authenticated GitHub API clients and the adapter
// that implements the gitrepo ports with the official go-github library.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gogithub "github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

const defaultAPIURL = "https://api.github.com"

// ClientFactory mints installation-scoped API clients. A fresh client (and
// therefore a fresh short-lived installation token) is produced per call;
// nothing is cached here.
type ClientFactory interface {
	InstallationClient(installationID int64) (*gogithub.Client, error)
}

// NewTokenClient creates a *github.Client authenticated with a personal
// access token. Used for local development. Pass baseURL="" for the real
// GitHub API, or a custom URL (e.g. "http://localhost:9090") for the mock.
func NewTokenClient(token, baseURL string) *gogithub.Client {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	c := gogithub.NewClient(httpClient)
	applyBaseURL(c, baseURL)
	return c
}

// AppFactory is a ClientFactory backed by a GitHub App private key. Each
// InstallationClient call builds a new installation transport, so tokens are
// minted per use and expire on GitHub's schedule (~1h) without local caching.
type AppFactory struct {
	apps    *ghinstallation.AppsTransport
	baseURL string
}

// Compile-time check: *AppFactory implements ClientFactory.
var _ ClientFactory = (*AppFactory)(nil)

// NewAppFactory creates an AppFactory from the app's PEM private key file.
func NewAppFactory(appID int64, privateKeyPath, baseURL string) (*AppFactory, error) {
	apps, err := ghinstallation.NewAppsTransportKeyFromFile(http.DefaultTransport, appID, privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("github app auth: %w", err)
	}
	base := baseURL
	if base == "" {
		base = defaultAPIURL
	}
	apps.BaseURL = base
	return &AppFactory{apps: apps, baseURL: baseURL}, nil
}

// AppClient returns a JWT-authenticated client for app-level endpoints such
// as installation lookup.
func (f *AppFactory) AppClient() *gogithub.Client {
	c := gogithub.NewClient(&http.Client{Transport: f.apps})
	applyBaseURL(c, f.baseURL)
	return c
}

// InstallationClient returns a client scoped to one installation.
func (f *AppFactory) InstallationClient(installationID int64) (*gogithub.Client, error) {
	tr := ghinstallation.NewFromAppsTransport(f.apps, installationID)
	c := gogithub.NewClient(&http.Client{Transport: tr})
	applyBaseURL(c, f.baseURL)
	return c, nil
}

// TokenFactory is a ClientFactory that ignores the installation and returns a
// token-authenticated client. Local development against the mock server.
type TokenFactory struct {
	Token   string
	BaseURL string
}

// Compile-time check: *TokenFactory implements ClientFactory.
var _ ClientFactory = (*TokenFactory)(nil)

// InstallationClient returns the token client regardless of installation.
func (f *TokenFactory) InstallationClient(int64) (*gogithub.Client, error) {
	return NewTokenClient(f.Token, f.BaseURL), nil
}

func applyBaseURL(c *gogithub.Client, baseURL string) {
	if baseURL == "" || baseURL == defaultAPIURL {
		return
	}
	u, err := url.Parse(baseURL + "/")
	if err != nil {
		return
	}
	c.BaseURL = u
}
