package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/unapproachable/fairgame-fork/internal/browser"
	"github.com/unapproachable/fairgame-fork/internal/browser/browsertest"
	"github.com/unapproachable/fairgame-fork/internal/config"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".fairgame", "credentials")
	s := NewFileStore(path)

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoCredentials)

	want := Credentials{Email: "me@example.com", Password: "hunter2"}
	require.NoError(t, s.Save(want))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.Delete())
	require.NoError(t, s.Delete())
	_, err = s.Load()
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	s := &Store{}
	s.once.Do(func() {})

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoCredentials)

	want := Credentials{Email: "me@example.com", Password: "hunter2"}
	require.NoError(t, s.Save(want))
	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Contains(t, s.Backend(), KeyringService)

	require.NoError(t, s.Delete())
	_, err = s.Load()
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestSaveRejectsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "c"))
	assert.Error(t, s.Save(Credentials{Email: "me@example.com"}))
}

func fastOptions() SignInOptions {
	return SignInOptions{FieldWait: 10 * time.Millisecond}
}

func signInPage(site config.SiteProfile) browsertest.Page {
	sel := site.Selectors
	return browsertest.Page{
		Title: "Amazon Sign-In",
		URL:   "https://www.amazon.com/ap/signin",
		Elements: map[string]string{
			sel.Email:      "",
			sel.Password:   "",
			sel.RememberMe: "",
		},
	}
}

func TestSignInFillsForm(t *testing.T) {
	site := config.DefaultSiteProfile()
	sel := site.Selectors
	d := browsertest.New(signInPage(site))

	s := NewSignIn(site, Credentials{Email: "me@example.com", Password: "hunter2"}, nil, nil, fastOptions())
	require.NoError(t, s.Run(context.Background(), d))

	assert.Equal(t, "me@example.com\r", d.Keys[sel.Email])
	assert.Equal(t, "hunter2\r", d.Keys[sel.Password])
	assert.Equal(t, 1, d.ClickCount(sel.RememberMe))
}

func TestSignInReportsAuthError(t *testing.T) {
	site := config.DefaultSiteProfile()
	page := signInPage(site)
	page.Elements[site.Selectors.AuthError] = "Your password is incorrect"
	d := browsertest.New(page)

	s := NewSignIn(site, Credentials{Email: "me@example.com", Password: "wrong"}, nil, nil, fastOptions())
	err := s.Run(context.Background(), d)
	require.ErrorIs(t, err, ErrLoginFailed)
	assert.Contains(t, err.Error(), "Your password is incorrect")
}

type captchaSpy struct{ calls int }

func (c *captchaSpy) Handle(context.Context, browser.Driver) error {
	c.calls++
	return nil
}

func TestSignInHandsCaptchaToSolver(t *testing.T) {
	site := config.DefaultSiteProfile()
	page := signInPage(site)
	page.Elements[site.Selectors.CaptchaForm] = ""
	d := browsertest.New(page)
	spy := &captchaSpy{}

	s := NewSignIn(site, Credentials{Email: "me@example.com", Password: "hunter2"}, spy, nil, fastOptions())
	require.NoError(t, s.Run(context.Background(), d))
	assert.Equal(t, 1, spy.calls)
	// the password is typed without submitting when a captcha is present
	assert.Equal(t, "hunter2", d.Keys[site.Selectors.Password])
}

func TestIsSignedIn(t *testing.T) {
	site := config.DefaultSiteProfile()
	link := site.Selectors.AccountLink

	d := browsertest.New(browsertest.Page{Elements: map[string]string{link: "Hello, Sign in\nAccount & Lists"}})
	assert.False(t, IsSignedIn(context.Background(), d, site))

	d.SetPage(browsertest.Page{Elements: map[string]string{link: "Hello, Pat\nAccount & Lists"}})
	assert.True(t, IsSignedIn(context.Background(), d, site))

	d.SetPage(browsertest.Page{})
	assert.False(t, IsSignedIn(context.Background(), d, site))
}
