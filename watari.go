// Package watari is a typed client for the Watari streaming service REST
// API: authentication, content metadata and adaptive stream retrieval.
//
// The entry point is [New] plus one of the Login methods. Content entities
// ([Episode], [Movie], [MusicVideo], [Concert]) negotiate playback into a
// [Stream], which resolves into [Variant]s and finally [Segment]s that can
// be fetched and, for AES-encrypted HLS content, decrypted.
package watari

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultAPIBase      = "https://www.watari.tv"
	defaultPlaybackBase = "https://play.watari.tv"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"

	// Per-login-path Basic authorization values required by the token
	// endpoint.
	basicAuthAnonymous   = "Basic d2F0YXJpX3dlYjo="
	basicAuthCredentials = "Basic cms5bXozcXd2dTZ5eDJjYS10YjdlOnFoVjREa3l0QlNmekE3b251bEs4enFMc2E5d1RNU2dZ"
	basicAuthCookie      = "Basic eGRnaWhxZW5tXzdqemYxYjlyMHA6"
)

type refreshKind int

const (
	refreshAnonymous refreshKind = iota
	refreshToken
	refreshCookie
)

// session is the bearer-token state shared by every request. It is the
// only mutable state in the client and is guarded by Client.mu.
type session struct {
	tokenType   string
	accessToken string
	refreshKind refreshKind
	refreshWith string
	expires     time.Time
}

type account struct {
	id      string
	premium bool
}

// Client executes all authenticated requests against the Watari API and
// owns the bearer-token lifecycle. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	log        Logger

	apiBase      string
	playbackBase string

	locale   Locale
	deviceID string
	lenient  bool

	mu      sync.Mutex
	session session
	account account
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the default http.Client. Timeouts, proxies and
// TLS configuration belong there; this library adds none of its own.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger attaches a logger. See [NewLogger] and [WrapLogger].
func WithLogger(log Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithLocale sets the locale sent on metadata requests, which controls the
// language of human readable text in responses.
func WithLocale(locale Locale) Option {
	return func(c *Client) { c.locale = locale }
}

// WithLenientVariants accepts manifests with missing resolution, frame
// rate or codec data instead of failing; the affected fields are zero
// valued. Quality selection by resolution is unreliable in this mode.
func WithLenientVariants() Option {
	return func(c *Client) { c.lenient = true }
}

// WithAPIBase overrides the API base URL. Mostly useful for tests.
func WithAPIBase(base string) Option {
	return func(c *Client) { c.apiBase = base }
}

// WithPlaybackBase overrides the playback service base URL.
func WithPlaybackBase(base string) Option {
	return func(c *Client) { c.playbackBase = base }
}

// New creates an unauthenticated client. Call one of the Login methods
// before issuing requests.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		log:          nopLogger{},
		apiBase:      defaultAPIBase,
		playbackBase: defaultPlaybackBase,
		locale:       LocaleEnUS,
		deviceID:     uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoginAnonymously obtains a guest session. Some endpoints are
// unavailable without a user account.
func (c *Client) LoginAnonymously(ctx context.Context) error {
	resp, err := c.authenticate(ctx, basicAuthAnonymous, nil, map[string]string{
		"grant_type": "client_id",
		"scope":      "offline_access",
	})
	if err != nil {
		return err
	}
	c.installSession(resp, refreshAnonymous, "")
	return nil
}

// LoginWithCredentials logs in with username (or email) and password.
func (c *Client) LoginWithCredentials(ctx context.Context, user, password string) error {
	resp, err := c.authenticate(ctx, basicAuthCredentials, nil, map[string]string{
		"username":   user,
		"password":   password,
		"grant_type": "password",
		"scope":      "offline_access",
	})
	if err != nil {
		return err
	}
	c.installSession(resp, refreshToken, resp.RefreshToken)
	return nil
}

// LoginWithRefreshToken logs in with a refresh token obtained from an
// earlier credential login (see [Client.RefreshToken]).
func (c *Client) LoginWithRefreshToken(ctx context.Context, token string) error {
	resp, err := c.authenticate(ctx, basicAuthCredentials, nil, map[string]string{
		"refresh_token": token,
		"grant_type":    "refresh_token",
		"scope":         "offline_access",
	})
	if err != nil {
		return err
	}
	c.installSession(resp, refreshToken, resp.RefreshToken)
	return nil
}

// LoginWithSessionCookie logs in with the long-lived session cookie a
// browser login leaves behind. The cookie and the refresh token have the
// same shape but are not interchangeable upstream.
func (c *Client) LoginWithSessionCookie(ctx context.Context, cookie string) error {
	resp, err := c.authenticate(ctx, basicAuthCookie, map[string]string{"wt_rt": cookie}, map[string]string{
		"grant_type": "wt_rt_cookie",
		"scope":      "offline_access",
	})
	if err != nil {
		return err
	}
	c.installSession(resp, refreshCookie, resp.RefreshToken)
	return nil
}

// RefreshToken returns the current refresh credential. Store it to log in
// again later without credentials. Empty for anonymous sessions.
func (c *Client) RefreshToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.refreshWith
}

// AccountID returns the id of the logged in account, or "" for anonymous
// sessions.
func (c *Client) AccountID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.account.id
}

// Premium reports whether the logged in account has a premium
// subscription.
func (c *Client) Premium() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.account.premium
}

func (c *Client) installSession(resp *authResponse, kind refreshKind, refreshWith string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = session{
		tokenType:   resp.TokenType,
		accessToken: resp.AccessToken,
		refreshKind: kind,
		refreshWith: refreshWith,
		expires:     time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	c.account = account{id: resp.AccountID, premium: resp.hasPremium()}
}
