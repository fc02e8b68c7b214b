package spacetrack

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/satcatalog/ingest/internal/ingesterr"
	"github.com/satcatalog/ingest/pkg/accountpool"
)

const (
	defaultTimeout = 120 * time.Second
	bulkTimeout    = 300 * time.Second
	authTimeout    = 30 * time.Second
	sessionMaxAge  = time.Hour

	initialBackoff = 2 * time.Second
)

// Pool is the subset of accountpool.Pool the client depends on. Defined
// as an interface here so the client can be exercised against a fake pool
// in unit tests without hitting real rate-limit timers.
type Pool interface {
	Acquire(queryType accountpool.QueryType, constellation string) (accountpool.Credential, error)
	Record(username string, queryType accountpool.QueryType, constellation string, success bool)
	MarkRateLimited(username string)
	MarkAuthFailed(username, reason string)
	MarkTransientError(username, reason string)
}

// session is one account's authenticated HTTP session.
type session struct {
	mu              sync.Mutex
	jar             http.CookieJar
	authenticatedAt time.Time
}

// Client is the Upstream Client: it delegates account selection to Pool,
// authenticates per account, issues queries, and normalizes responses.
type Client struct {
	baseURL    string
	httpClient *http.Client
	pool       Pool

	sessionsMu sync.Mutex
	sessions   map[string]*session

	credentials map[string]accountpool.Credential
	credsMu     sync.Mutex

	maxAttempts int
}

// New creates a Client against baseURL (e.g. "https://www.space-track.org"),
// backed by pool for account selection. accountCount bounds the number of
// rotate-and-retry attempts per logical query, per the spec's
// min(5, account_count) rule.
func New(baseURL string, pool Pool, accountCount int) *Client {
	attempts := accountCount
	if attempts > 5 {
		attempts = 5
	}
	if attempts < 1 {
		attempts = 1
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{},
		pool:        pool,
		sessions:    make(map[string]*session),
		credentials: make(map[string]accountpool.Credential),
		maxAttempts: attempts,
	}
}

// RegisterCredential makes password available to the client for
// authentication; the pool only ever hands back usernames plus passwords
// together via Credential, so this is populated from the same source that
// seeds the pool.
func (c *Client) RegisterCredential(cred accountpool.Credential) {
	c.credsMu.Lock()
	defer c.credsMu.Unlock()
	c.credentials[cred.Username] = cred
}

// Execute runs one logical query through the pool with retry-and-rotate,
// per the spec's execution loop: ask the pool for an account, authenticate
// if needed, issue the request, interpret the response, and on failure
// rotate to the next account.
func (c *Client) Execute(ctx context.Context, q Query, queryType accountpool.QueryType, constellation string) ([]Record, error) {
	timeout := defaultTimeout
	if q.Class == ClassGPHistory {
		timeout = bulkTimeout
	}

	var lastErr error
	backoffDelay := initialBackoff

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		cred, err := c.pool.Acquire(queryType, constellation)
		if err != nil {
			return nil, ingesterr.New("spacetrack.Execute", ingesterr.NoAvailableAccount, err)
		}
		c.RegisterCredential(cred)

		sess, err := c.ensureSession(ctx, cred)
		if err != nil {
			c.pool.MarkAuthFailed(cred.Username, err.Error())
			lastErr = ingesterr.New("spacetrack.Execute", ingesterr.AuthFailed, err)
			continue
		}

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		records, outcome, err := c.issue(reqCtx, sess, q)
		cancel()

		switch outcome {
		case outcomeSuccess:
			c.pool.Record(cred.Username, queryType, constellation, true)
			return records, nil
		case outcomeRateLimited:
			c.pool.MarkRateLimited(cred.Username)
			c.pool.Record(cred.Username, queryType, constellation, false)
			lastErr = ingesterr.New("spacetrack.Execute", ingesterr.RateLimited, err)
			sleepBackoff(ctx, backoffDelay)
			backoffDelay *= 2
		case outcomeAuthFailed:
			c.invalidateSession(cred.Username)
			c.pool.MarkAuthFailed(cred.Username, err.Error())
			c.pool.Record(cred.Username, queryType, constellation, false)
			lastErr = ingesterr.New("spacetrack.Execute", ingesterr.AuthFailed, err)
		case outcomeMalformed:
			c.pool.MarkTransientError(cred.Username, err.Error())
			c.pool.Record(cred.Username, queryType, constellation, false)
			lastErr = ingesterr.New("spacetrack.Execute", ingesterr.MalformedUpstreamResponse, err)
		default: // transient
			c.pool.MarkTransientError(cred.Username, err.Error())
			c.pool.Record(cred.Username, queryType, constellation, false)
			lastErr = ingesterr.New("spacetrack.Execute", ingesterr.TransientUpstream, err)
			sleepBackoff(ctx, time.Second)
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no attempts made")
	}
	return nil, fmt.Errorf("spacetrack: all %d attempts exhausted: %w", c.maxAttempts, lastErr)
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRateLimited
	outcomeAuthFailed
	outcomeMalformed
	outcomeTransient
)

// issue performs the HTTP GET and classifies the response.
func (c *Client) issue(ctx context.Context, sess *session, q Query) ([]Record, outcome, error) {
	httpClient := &http.Client{Jar: sess.jar}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+q.Path(), nil)
	if err != nil {
		return nil, outcomeTransient, fmt.Errorf("building request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, outcomeTransient, fmt.Errorf("issuing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, outcomeTransient, fmt.Errorf("reading response body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		if looksLikeHTML(body) {
			return nil, outcomeTransient, fmt.Errorf("server returned HTML sentinel body")
		}
		records, err := DecodeRecords(body)
		if err != nil {
			return nil, outcomeMalformed, err
		}
		return records, outcomeSuccess, nil
	case http.StatusTooManyRequests:
		return nil, outcomeRateLimited, fmt.Errorf("HTTP 429")
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, outcomeAuthFailed, fmt.Errorf("HTTP %d", resp.StatusCode)
	case http.StatusInternalServerError:
		bodyText := strings.ToLower(string(body))
		if strings.Contains(bodyText, "rate limit") || strings.Contains(bodyText, "violated your query") {
			return nil, outcomeRateLimited, fmt.Errorf("HTTP 500 rate-limit sentinel")
		}
		return nil, outcomeTransient, fmt.Errorf("HTTP 500")
	default:
		if resp.StatusCode >= 500 {
			return nil, outcomeTransient, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return nil, outcomeMalformed, fmt.Errorf("unexpected HTTP %d", resp.StatusCode)
	}
}

// looksLikeHTML treats an HTML response body as a server-side failure
// sentinel rather than attempting JSON decode.
func looksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return bytes.HasPrefix(trimmed, []byte("<"))
}

// ensureSession returns an authenticated session for cred, authenticating
// on first use or once the session exceeds sessionMaxAge. A per-account
// mutex prevents double-login.
func (c *Client) ensureSession(ctx context.Context, cred accountpool.Credential) (*session, error) {
	c.sessionsMu.Lock()
	sess, ok := c.sessions[cred.Username]
	if !ok {
		jar, err := cookiejar.New(nil)
		if err != nil {
			c.sessionsMu.Unlock()
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		sess = &session{jar: jar}
		c.sessions[cred.Username] = sess
	}
	c.sessionsMu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.authenticatedAt.IsZero() && time.Since(sess.authenticatedAt) < sessionMaxAge {
		return sess, nil
	}

	if err := c.authenticate(ctx, sess, cred); err != nil {
		return nil, err
	}
	sess.authenticatedAt = time.Now()
	return sess, nil
}

// invalidateSession discards username's cached session so the next use
// re-authenticates from scratch.
func (c *Client) invalidateSession(username string) {
	c.sessionsMu.Lock()
	defer c.sessionsMu.Unlock()
	delete(c.sessions, username)
}

// authenticate posts credentials to the login endpoint and persists the
// resulting session cookie in sess.jar.
func (c *Client) authenticate(ctx context.Context, sess *session, cred accountpool.Credential) error {
	reqCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	form := url.Values{
		"identity": {cred.Username},
		"password": {cred.Password},
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/ajaxauth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpClient := &http.Client{Jar: sess.jar}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading login response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || strings.Contains(strings.ToLower(string(body)), "error") {
		return fmt.Errorf("login rejected (status %d)", resp.StatusCode)
	}
	return nil
}

// sleepBackoff sleeps d or returns early if ctx is cancelled. It exists
// only to make the retry loop's delay cancellation-aware; the actual
// exponential schedule is tracked by the caller and mirrors the doubling
// policy of newExponentialBackoff.
func sleepBackoff(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// newExponentialBackoff returns a backoff policy doubling from 2s, matching
// the retry loop's documented schedule. It is unexported and nothing in the
// module calls it; the retry loop tracks its own delay.
func newExponentialBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialBackoff
	b.Multiplier = 2
	return b
}
