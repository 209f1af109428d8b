package watari

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// clientAttacher is implemented by response types that need to issue
// further authenticated calls. Decoding is two-phase: pure JSON decode
// first, then attachClient threads the shared client through the value and
// its nested fields.
type clientAttacher interface {
	attachClient(c *Client)
}

type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	Country      string `json:"country"`
	AccountID    string `json:"account_id"`
}

func (a *authResponse) hasPremium() bool {
	return strings.Contains(a.Scope, "premium")
}

// authenticate exchanges a credential for a bearer token. It does not
// touch client state; callers install or update the session themselves.
func (c *Client) authenticate(ctx context.Context, basic string, cookies, form map[string]string) (*authResponse, error) {
	endpoint := c.apiBase + "/auth/v1/token"

	values := url.Values{}
	for k, v := range form {
		values.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, &RequestError{Operation: "authenticate", URL: endpoint, Err: err}
	}
	req.Header.Set("Authorization", basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range cookies {
		req.AddCookie(&http.Cookie{Name: k, Value: v})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Operation: "authenticate", URL: endpoint, Err: err}
	}
	data, err := c.police("authenticate", endpoint, resp)
	if err != nil {
		return nil, err
	}
	if msg, ok := apiErrorMessage(data); ok {
		return nil, &RequestError{Operation: "authenticate", URL: endpoint, Status: resp.StatusCode, Err: errors.New(msg)}
	}
	if resp.StatusCode >= 400 {
		return nil, &RequestError{Operation: "authenticate", URL: endpoint, Status: resp.StatusCode}
	}

	var auth authResponse
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, &DecodeError{URL: endpoint, Raw: data, Err: err}
	}
	return &auth, nil
}

// bearer returns the Authorization header value, refreshing the session
// first if it has expired. Refresh is a critical section so concurrent
// callers cannot trigger redundant refreshes.
func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.accessToken == "" {
		return "", &RequestError{Operation: "bearer", Err: errors.New("not logged in")}
	}
	if !time.Now().Before(c.session.expires) {
		c.log.Debugf("session expired, refreshing")
		if err := c.refreshLocked(ctx); err != nil {
			return "", err
		}
	}

	tokenType := c.session.tokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return tokenType + " " + c.session.accessToken, nil
}

// refreshLocked re-authenticates with the stored refresh credential.
// Callers must hold c.mu.
func (c *Client) refreshLocked(ctx context.Context) error {
	var (
		resp *authResponse
		err  error
	)
	switch c.session.refreshKind {
	case refreshToken:
		resp, err = c.authenticate(ctx, basicAuthCredentials, nil, map[string]string{
			"refresh_token": c.session.refreshWith,
			"grant_type":    "refresh_token",
			"scope":         "offline_access",
		})
	case refreshCookie:
		resp, err = c.authenticate(ctx, basicAuthCookie, map[string]string{"wt_rt": c.session.refreshWith}, map[string]string{
			"grant_type": "wt_rt_cookie",
			"scope":      "offline_access",
		})
	default:
		resp, err = c.authenticate(ctx, basicAuthAnonymous, nil, map[string]string{
			"grant_type": "client_id",
			"scope":      "offline_access",
		})
	}
	if err != nil {
		return err
	}

	c.session.tokenType = resp.TokenType
	c.session.accessToken = resp.AccessToken
	c.session.expires = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	if resp.RefreshToken != "" {
		c.session.refreshWith = resp.RefreshToken
	}
	return nil
}

// request issues an authenticated JSON request. A nil out discards the
// response body after error policing. Structured API error bodies are
// surfaced as RequestError before any decode into out is attempted.
func (c *Client) request(ctx context.Context, method, rawURL string, query url.Values, body, out interface{}) error {
	token, err := c.bearer(ctx)
	if err != nil {
		return err
	}

	if len(query) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &DecodeError{URL: rawURL, Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return &RequestError{Operation: method, URL: rawURL, Err: err}
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.log.Debugf("%s %s", method, rawURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Operation: method, URL: rawURL, Err: err}
	}
	data, err := c.police(method, rawURL, resp)
	if err != nil {
		return err
	}

	// An empty success body decodes as an empty object.
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	if msg, ok := apiErrorMessage(data); ok {
		return &RequestError{Operation: method, URL: rawURL, Status: resp.StatusCode, Err: errors.New(msg)}
	}
	if resp.StatusCode >= 400 {
		return &RequestError{Operation: method, URL: rawURL, Status: resp.StatusCode}
	}
	if out == nil {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{URL: rawURL, Raw: data, Err: err}
	}
	if attacher, ok := out.(clientAttacher); ok {
		attacher.attachClient(c)
	}
	return nil
}

// fetchRaw issues a GET and returns the body bytes without JSON policing.
// Manifests go through here with a bearer token; segment and key fetches
// go out plain.
func (c *Client) fetchRaw(ctx context.Context, rawURL string, authenticated bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &RequestError{Operation: "fetch", URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	if authenticated {
		token, err := c.bearer(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", token)
	}

	c.log.Debugf("GET %s", rawURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Operation: "fetch", URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		io.Copy(io.Discard, resp.Body)
		return nil, &RequestError{Operation: "fetch", URL: rawURL, Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Operation: "fetch", URL: rawURL, Err: err}
	}
	return data, nil
}

// police reads the body and maps well-known failure statuses to
// RequestError. Remaining statuses are left for the caller, which may
// find a structured error body to report instead.
func (c *Client) police(op, rawURL string, resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Operation: op, URL: rawURL, Status: resp.StatusCode, Err: err}
	}

	switch resp.StatusCode {
	case http.StatusForbidden:
		// The CDN answers bot challenges with an HTML page, not JSON.
		if bytes.HasPrefix(data, []byte("<!DOCTYPE html>")) && bytes.Contains(data, []byte("<title>Just a moment...</title>")) {
			return nil, &RequestError{Operation: op, URL: rawURL, Status: resp.StatusCode, Err: errors.New("bot protection triggered")}
		}
	case http.StatusNotFound:
		return nil, &RequestError{Operation: op, URL: rawURL, Status: resp.StatusCode, Err: errors.New("resource not present")}
	case http.StatusTooManyRequests:
		retryAfter := 0
		if header := resp.Header.Get("Retry-After"); header != "" {
			retryAfter, _ = strconv.Atoi(header)
		}
		return nil, &RequestError{Operation: op, URL: rawURL, Status: resp.StatusCode, RetryAfter: retryAfter, Err: errors.New("rate limit hit")}
	}
	return data, nil
}

// apiErrorMessage recognizes the structured error bodies the API wraps
// failures in and flattens them into one readable message.
func apiErrorMessage(data []byte) (string, bool) {
	type messageType struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	}
	type codeFieldContext struct {
		Code  string `json:"code"`
		Field string `json:"field"`
	}
	type codeContextError struct {
		Code    string             `json:"code"`
		Context []codeFieldContext `json:"context"`
		Message string             `json:"message"`
		Error   string             `json:"error"`
	}

	var mt messageType
	if err := json.Unmarshal(data, &mt); err == nil && mt.Type != "" && mt.Message != "" {
		return fmt.Sprintf("%s - %s", mt.Type, mt.Message), true
	}

	var cc codeContextError
	if err := json.Unmarshal(data, &cc); err == nil && cc.Code != "" {
		details := make([]string, 0, len(cc.Context))
		for _, item := range cc.Context {
			details = append(details, fmt.Sprintf("%s: %s", item.Field, item.Code))
		}
		message := cc.Message
		if message == "" {
			message = cc.Error
		}
		if message != "" {
			return fmt.Sprintf("%s (%s) - %s", message, cc.Code, strings.Join(details, ", ")), true
		}
		return fmt.Sprintf("(%s) - %s", cc.Code, strings.Join(details, ", ")), true
	}

	return "", false
}
