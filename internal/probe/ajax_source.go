package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"

	"github.com/unapproachable/fairgame-fork/internal/browser"
	"github.com/unapproachable/fairgame-fork/internal/config"
	"github.com/unapproachable/fairgame-fork/internal/engine"
	"github.com/unapproachable/fairgame-fork/internal/ratelimit"
	"github.com/unapproachable/fairgame-fork/internal/retry"
	urlutil "github.com/unapproachable/fairgame-fork/internal/utils/url"
	"github.com/unapproachable/fairgame-fork/pkg/models"
)

// ErrEmptyPayload means the offers endpoint answered without offer markup.
var ErrEmptyPayload = errors.New("empty offer payload")

// CookieFunc returns the signed-in browser cookies.
type CookieFunc func(ctx context.Context) ([]browser.Cookie, error)

// AjaxOptions tune the HTTP offer source.
type AjaxOptions struct {
	UserAgent string
	Headers   http.Header // replace the defaults of the same name
	Timeout   time.Duration
	Retry     retry.Config
}

// DefaultAjaxOptions returns the stock settings.
func DefaultAjaxOptions() AjaxOptions {
	return AjaxOptions{Timeout: 10 * time.Second, Retry: retry.DefaultConfig()}
}

// AjaxSource fetches the offer flyout fragment over plain HTTP, reusing the
// browser's session cookies. It is much cheaper than a page load.
type AjaxSource struct {
	client  *resty.Client
	site    config.SiteProfile
	urls    urlutil.Site
	cookies CookieFunc
	limiter *ratelimit.HostLimiter
	opts    AjaxOptions

	mu         sync.Mutex
	lastStatus map[string]int
}

// NewAjaxSource builds the source with a cookie-jar resty client that
// passes the Cloudflare browser check. cookies and limiter may be nil.
func NewAjaxSource(site config.SiteProfile, cookies CookieFunc, limiter *ratelimit.HostLimiter, opts AjaxOptions) (*AjaxSource, error) {
	client := resty.New()
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	return NewAjaxSourceWithClient(client, site, cookies, limiter, opts), nil
}

// NewAjaxSourceWithClient uses client as is.
func NewAjaxSourceWithClient(client *resty.Client, site config.SiteProfile, cookies CookieFunc, limiter *ratelimit.HostLimiter, opts AjaxOptions) *AjaxSource {
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	client.SetHeader("Accept", "text/html,*/*")
	for key, values := range opts.Headers {
		client.Header.Del(key)
		for _, v := range values {
			client.Header.Add(key, v)
		}
	}
	return &AjaxSource{
		client:     client,
		site:       site,
		urls:       urlutil.NewSite(site.Domain),
		cookies:    cookies,
		limiter:    limiter,
		opts:       opts,
		lastStatus: make(map[string]int),
	}
}

func (s *AjaxSource) Fetch(ctx context.Context, item models.TrackedItem) (*Page, error) {
	target := s.urls.OffersAjax(item.ID)
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, target); err != nil {
			return nil, err
		}
	}
	s.syncCookies(ctx)

	var body string
	err := retry.WithRetry(ctx, s.opts.Retry, func() error {
		res, err := s.client.R().SetContext(ctx).Get(target)
		if err != nil {
			return err
		}
		s.trackStatus(item.ID, res.StatusCode())
		switch {
		case res.StatusCode() == http.StatusServiceUnavailable:
			return retry.Permanent(fmt.Errorf("%w: status %d", engine.ErrCaptcha, res.StatusCode()))
		case res.IsError():
			return retry.NewHTTPError(res.StatusCode(), res.Status(), "offer ajax")
		}
		body = res.String()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyPayload
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrParse, err)
	}
	if s.site.Selectors.CaptchaForm != "" && doc.Find(s.site.Selectors.CaptchaForm).Length() > 0 {
		return nil, fmt.Errorf("%w: captcha form in offer payload", engine.ErrCaptcha)
	}
	return &Page{HTML: body, URL: target, Source: "ajax"}, nil
}

func (s *AjaxSource) syncCookies(ctx context.Context) {
	if s.cookies == nil {
		return
	}
	jar := s.client.GetClient().Jar
	if jar == nil {
		return
	}
	cookies, err := s.cookies(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Could not read browser cookies")
		return
	}
	httpCookies := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		httpCookies = append(httpCookies, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}
	jar.SetCookies(&url.URL{Scheme: "https", Host: s.urls.Domain, Path: "/"}, httpCookies)
}

// trackStatus logs when an item's response status changes between polls.
func (s *AjaxSource) trackStatus(id string, status int) {
	s.mu.Lock()
	prev, seen := s.lastStatus[id]
	s.lastStatus[id] = status
	s.mu.Unlock()
	if seen && prev != status {
		log.Info().Str("asin", id).Int("from", prev).Int("to", status).Msg("Offer endpoint status changed")
	}
}

// LastStatus returns the last status seen for id.
func (s *AjaxSource) LastStatus(id string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.lastStatus[id]
	return st, ok
}
