// Package fetch performs outbound HTTP(S) requests for user-supplied URLs
// without letting them reach the operator's private network.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"tldr/internal/apperr"
	"tldr/internal/domain"
)

const (
	source = "fetch"

	DefaultTimeout      = 10 * time.Second
	DefaultMaxRedirects = 5
	DefaultMaxBodyBytes = 20 << 20

	// NoRedirects makes every redirect response fail with REDIRECT_LIMIT.
	NoRedirects = -1

	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

	acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf,image/*,*/*;q=0.8"
)

// Doer is satisfied by *http.Client. Implementations must not follow
// redirects on their own.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Options struct {
	// Timeout applies to each hop separately.
	Timeout time.Duration
	// MaxRedirects of zero means DefaultMaxRedirects, a negative value
	// allows none.
	MaxRedirects int
	Resolver     Resolver
	Client       Doer
	UserAgent    string
	MaxBodyBytes int64
	// Header is added to every request, e.g. Authorization for API hosts.
	Header http.Header
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	switch {
	case o.MaxRedirects == 0:
		o.MaxRedirects = DefaultMaxRedirects
	case o.MaxRedirects < 0:
		o.MaxRedirects = 0
	}
	if o.Resolver == nil {
		o.Resolver = DefaultResolver
	}
	if o.Client == nil {
		o.Client = NewHTTPClient(nil)
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return o
}

type Fetcher struct {
	opts Options
	log  *slog.Logger
}

func New(opts Options, log *slog.Logger) *Fetcher {
	if log == nil {
		log = slog.Default()
	}

	return &Fetcher{opts: opts.withDefaults(), log: log}
}

// SafeFetch is a one-shot convenience around New(opts).Fetch.
func SafeFetch(ctx context.Context, rawURL string, opts Options) (*domain.FetchResult, error) {
	return New(opts, nil).Fetch(ctx, rawURL)
}

// NewHTTPClient returns a client that hands redirects back to the caller so
// every hop goes through the address check. A nil transport gets one that
// refuses to connect to non-public addresses, so a host that resolves
// differently at dial time is still blocked.
func NewHTTPClient(transport http.RoundTripper) *http.Client {
	if transport == nil {
		transport = newGuardedTransport()
	}

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func newGuardedTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   dialControl,
	}

	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return transport
}

// dialControl runs after name resolution with the address about to be
// connected to.
func dialControl(_, address string, _ syscall.RawConn) error {
	addrPort, err := netip.ParseAddrPort(address)
	if err != nil {
		return apperr.Wrap(source, apperr.CodeSSRF, fmt.Sprintf("unexpected dial address %q", address), err)
	}

	if IsBlockedAddr(addrPort.Addr()) {
		return apperr.New(source, apperr.CodeSSRF,
			fmt.Sprintf("refusing to connect to non-public address %s", addrPort.Addr()))
	}

	return nil
}

// Fetch GETs rawURL. Non-2xx responses are returned, not treated as errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*domain.FetchResult, error) {
	if err := apperr.CheckAborted(ctx); err != nil {
		return nil, err
	}

	current, err := parseAllowedURL(rawURL)
	if err != nil {
		return nil, err
	}

	for redirects := 0; ; {
		if err = f.checkHost(ctx, current); err != nil {
			return nil, err
		}

		result, location, err := f.do(ctx, current)
		if err != nil {
			return nil, err
		}

		if location == nil {
			return result, nil
		}

		if redirects >= f.opts.MaxRedirects {
			return nil, apperr.New(source, apperr.CodeRedirectLimit,
				fmt.Sprintf("too many redirects (max %d) fetching %s", f.opts.MaxRedirects, rawURL))
		}
		redirects++

		f.log.DebugContext(ctx, "Following redirect",
			"from", current.String(),
			"to", location.String(),
			"hop", redirects)

		current = location
	}
}

func parseAllowedURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, apperr.Wrap(source, apperr.CodeInvalidURL, fmt.Sprintf("invalid URL %q", rawURL), err)
	}

	if err = checkScheme(u); err != nil {
		return nil, err
	}

	if u.Hostname() == "" {
		return nil, apperr.New(source, apperr.CodeInvalidURL, fmt.Sprintf("URL %q has no host", rawURL))
	}

	return u, nil
}

func checkScheme(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return apperr.New(source, apperr.CodeScheme,
			fmt.Sprintf("scheme %q is not allowed, only http and https", u.Scheme))
	}

	return nil
}

func (f *Fetcher) checkHost(ctx context.Context, u *url.URL) error {
	host := u.Hostname()

	addrs, err := f.opts.Resolver(ctx, host)
	if err != nil {
		if apperr.IsAborted(err) || ctx.Err() != nil {
			return apperr.Aborted(err)
		}
		return apperr.Wrap(source, apperr.CodeNetwork, fmt.Sprintf("resolve host %q", host), err)
	}

	if len(addrs) == 0 {
		return apperr.New(source, apperr.CodeNetwork, fmt.Sprintf("host %q has no addresses", host))
	}

	for _, addr := range addrs {
		if IsBlockedAddr(addr) {
			return apperr.New(source, apperr.CodeSSRF,
				fmt.Sprintf("host %q resolves to non-public address %s", host, addr))
		}
	}

	return nil
}

// do performs one hop. A non-nil location means the response was a redirect.
func (f *Fetcher) do(ctx context.Context, u *url.URL) (*domain.FetchResult, *url.URL, error) {
	hopCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(hopCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, apperr.Wrap(source, apperr.CodeInvalidURL, "create request", err)
	}

	for key, values := range f.opts.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", acceptHeader)
	}

	resp, err := f.opts.Client.Do(req) //nolint:gosec // Host is checked before every hop.
	if err != nil {
		return nil, nil, f.transportError(ctx, hopCtx, u, err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			f.log.WarnContext(ctx, "Failed to close response body",
				"error", err,
				"url", u.String())
		}
	}()

	if isRedirect(resp.StatusCode) {
		location := resp.Header.Get("Location")
		if location == "" {
			return nil, nil, apperr.New(source, apperr.CodeNetwork,
				fmt.Sprintf("redirect %d from %s without Location header", resp.StatusCode, u))
		}

		next, parseErr := u.Parse(location)
		if parseErr != nil {
			return nil, nil, apperr.Wrap(source, apperr.CodeNetwork,
				fmt.Sprintf("invalid redirect location %q", location), parseErr)
		}

		if err = checkScheme(next); err != nil {
			return nil, nil, err
		}

		return nil, next, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return nil, nil, f.transportError(ctx, hopCtx, u, err)
	}

	return &domain.FetchResult{
		Body:        string(body),
		ContentType: resp.Header.Get("Content-Type"),
		URL:         u.String(),
		Status:      resp.StatusCode,
	}, nil, nil
}

func (f *Fetcher) transportError(ctx, hopCtx context.Context, u *url.URL, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return apperr.Aborted(err)
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var netErr net.Error
	if errors.Is(hopCtx.Err(), context.DeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return apperr.Wrap(source, apperr.CodeTimeout,
			fmt.Sprintf("request to %s timed out after %s", u, f.opts.Timeout), err)
	}

	return apperr.Wrap(source, apperr.CodeNetwork, fmt.Sprintf("request to %s", u), err)
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

// MediaType returns the lowercased media type without parameters.
func MediaType(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}
