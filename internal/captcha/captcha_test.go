package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unapproachable/fairgame-fork/internal/browser/browsertest"
	"github.com/unapproachable/fairgame-fork/internal/config"
	"github.com/unapproachable/fairgame-fork/internal/notify"
)

const captchaHTML = `<html><head><title>Amazon.com</title></head><body>
<form action="/errors/validateCaptcha" method="get">
  <img src="https://images-na.ssl-images-amazon.com/captcha/abc/Captcha_xyz.jpg">
  <input id="captchacharacters" name="field-keywords" type="text">
</form></body></html>`

type stubSolver struct {
	solution string
	err      error
	got      string
}

func (s *stubSolver) Solve(_ context.Context, img string) (string, error) {
	s.got = img
	return s.solution, s.err
}

func captchaPage(site config.SiteProfile) browsertest.Page {
	return browsertest.Page{
		Title: "Amazon.com",
		HTML:  captchaHTML,
		Elements: map[string]string{
			site.Selectors.CaptchaForm:  "",
			site.Selectors.CaptchaInput: "",
		},
	}
}

func newTestHandler(solver Solver, n notify.Sender, opts Options) *Handler {
	h := NewHandler(config.DefaultSiteProfile(), solver, n, nil, opts)
	h.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return h
}

func TestHandleSubmitsSolution(t *testing.T) {
	site := config.DefaultSiteProfile()
	d := browsertest.New(captchaPage(site))
	solver := &stubSolver{solution: "ABCDEF"}

	err := newTestHandler(solver, nil, DefaultOptions()).Handle(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "https://images-na.ssl-images-amazon.com/captcha/abc/Captcha_xyz.jpg", solver.got)
	assert.Equal(t, "ABCDEF\r", d.Keys[site.Selectors.CaptchaInput])
	assert.Zero(t, d.Refreshes)
}

func TestHandleWithoutFormIsNoop(t *testing.T) {
	d := browsertest.New(browsertest.Page{Title: "Amazon.com"})
	solver := &stubSolver{}
	err := newTestHandler(solver, nil, DefaultOptions()).Handle(context.Background(), d)
	require.NoError(t, err)
	assert.Empty(t, solver.got)
}

func TestHandleFailureRefreshes(t *testing.T) {
	site := config.DefaultSiteProfile()
	d := browsertest.New(captchaPage(site))

	err := newTestHandler(nil, nil, DefaultOptions()).Handle(context.Background(), d)
	assert.ErrorIs(t, err, ErrNotSolved)
	assert.Equal(t, 1, d.Refreshes)
}

func TestHandleFailureWaitsForHuman(t *testing.T) {
	site := config.DefaultSiteProfile()
	d := browsertest.New(captchaPage(site))

	var alerts []notify.Message
	n := notify.SenderFunc(func(_ context.Context, m notify.Message) error {
		alerts = append(alerts, m)
		// the operator solves it while we wait
		d.SetPage(browsertest.Page{Title: "Amazon.com Shopping Cart"})
		return nil
	})

	opts := DefaultOptions()
	opts.WaitOnFail = true
	opts.HumanWait = 2 * time.Second
	err := newTestHandler(&stubSolver{err: errors.New("unreadable")}, n, opts).Handle(context.Background(), d)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Alarm)
	assert.Zero(t, d.Refreshes)
}

func TestHTTPSolver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req solveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		switch req.ImageURL {
		case "good.jpg":
			_, _ = w.Write([]byte(`{"solution":" abcdef "}`))
		case "empty.jpg":
			_, _ = w.Write([]byte(`{"solution":"","error":"unreadable"}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	s := NewHTTPSolver(srv.URL, nil)
	got, err := s.Solve(context.Background(), "good.jpg")
	require.NoError(t, err)
	assert.Equal(t, "ABCDEF", got)

	_, err = s.Solve(context.Background(), "empty.jpg")
	assert.ErrorIs(t, err, ErrNotSolved)
	assert.Contains(t, err.Error(), "unreadable")

	_, err = s.Solve(context.Background(), "down.jpg")
	assert.ErrorIs(t, err, ErrNotSolved)
}
