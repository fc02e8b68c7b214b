// Package accountpool owns the set of upstream credentials used to reach
// Space-Track. It hands out an eligible account for a given query type and
// constellation, tracks per-account request counters and cooldowns, and
// masks rotation/suspension damage from callers — a caller either gets an
// account or a clear "none available right now" signal, never an error
// that unwinds past the call.
package accountpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Rate-limiting constants. Named "conservative" in the upstream's own
// documentation: Space-Track's official limits are higher (30/min,
// 300/hour) but this pool deliberately stays under them.
const (
	MaxRequestsPerMinute = 25
	MaxRequestsPerHour   = 280

	MinRequestInterval   = 2 * time.Second
	AccountRotationDelay = 2 * time.Second

	RateLimitCooldown  = 1800 * time.Second
	AuthFailureCooldown = 3600 * time.Second

	MaxConsecutiveErrors = 5

	GPQueryCooldown      = 3600 * time.Second
	SATCATQueryCooldown  = 86400 * time.Second
	GPHistoryCooldown    = 604800 * time.Second
)

// QueryType tags a request for per-account, per-type cooldown tracking.
type QueryType string

const (
	QueryGP        QueryType = "gp"
	QueryGPHistory QueryType = "gp_history"
	QuerySATCAT    QueryType = "satcat"
	QueryDecay     QueryType = "decay"
	QueryTIP       QueryType = "tip"
	QueryOther     QueryType = "other"
)

// Status is an account's current eligibility state.
type Status string

const (
	StatusActive      Status = "active"
	StatusRateLimited Status = "rate_limited"
	StatusSuspended   Status = "suspended"
	StatusAuthFailed  Status = "auth_failed"
	StatusCooldown    Status = "cooldown"
)

// ErrNoAccountAvailable is returned when no account is currently eligible.
// It is not a failure of the pool — callers choose to wait or skip.
var ErrNoAccountAvailable = errors.New("accountpool: no account available")

// Credential is a username/password pair for one upstream account.
type Credential struct {
	Username string
	Password string
}

// account is the pool's internal mutable state for one credential.
type account struct {
	Credential

	status Status

	requestsThisMinute int
	requestsThisHour   int
	totalRequests      int

	minuteWindowStart time.Time
	hourWindowStart   time.Time
	cooldownUntil     time.Time

	lastGPQuery        map[string]time.Time
	lastSATCATQuery    time.Time
	lastGPHistoryQuery map[string]time.Time

	consecutiveErrors int
	lastError         string
}

// AccountSnapshot is a read-only, credential-masked view of one account.
type AccountSnapshot struct {
	Username               string
	Status                 Status
	IsAvailable            bool
	RequestsThisMinute     int
	RequestsThisHour       int
	TotalRequests          int
	LastError              string
	TimeUntilAvailable     time.Duration
}

// PoolSnapshot summarizes the whole pool's health.
type PoolSnapshot struct {
	TotalAccounts     int
	ActiveAccounts    int
	RateLimitedCount  int
	SuspendedCount    int
	AuthFailedCount   int
	CooldownCount     int
	TotalRequests     int
	Accounts          []AccountSnapshot
}

// Pool guards all account state behind a single mutex, matching the
// single-purpose-lock convention used by every other stateful component
// in this codebase.
type Pool struct {
	mu sync.Mutex

	order   []string // usernames, insertion order, for round robin
	byUser  map[string]*account
	cursor  int

	lastRequestTime time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// New creates an empty Pool. Use AddAccount to populate it.
func New() *Pool {
	return &Pool{
		byUser: make(map[string]*account),
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// NewWithClock creates a Pool with an injectable clock and sleep function,
// for deterministic tests.
func NewWithClock(now func() time.Time, sleep func(time.Duration)) *Pool {
	p := New()
	p.now = now
	p.sleep = sleep
	return p
}

// AddAccount registers a credential. Returns false if username already exists.
func (p *Pool) AddAccount(username, password string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byUser[username]; exists {
		return false
	}
	p.byUser[username] = &account{
		Credential:         Credential{Username: username, Password: password},
		status:             StatusActive,
		lastGPQuery:        make(map[string]time.Time),
		lastGPHistoryQuery: make(map[string]time.Time),
	}
	p.order = append(p.order, username)
	return true
}

// Acquire returns an eligible account for (queryType, constellation), or
// ErrNoAccountAvailable if none is eligible right now. On success it
// advances the round-robin cursor and, if the process-wide minimum
// request interval has not elapsed since the last request passed to
// Record, sleeps the caller for the remainder.
func (p *Pool) Acquire(queryType QueryType, constellation string) (Credential, error) {
	p.mu.Lock()

	if len(p.order) == 0 {
		p.mu.Unlock()
		return Credential{}, fmt.Errorf("accountpool: acquire: %w: no accounts configured", ErrNoAccountAvailable)
	}

	now := p.now()
	var wait time.Duration
	if !p.lastRequestTime.IsZero() {
		elapsed := now.Sub(p.lastRequestTime)
		if elapsed < MinRequestInterval {
			wait = MinRequestInterval - elapsed
		}
	}

	n := len(p.order)
	for i := 0; i < n; i++ {
		idx := (p.cursor + i) % n
		username := p.order[idx]
		a := p.byUser[username]

		if p.isAvailable(a, now) && p.canQuery(a, queryType, constellation, now) {
			p.cursor = (idx + 1) % n
			cred := a.Credential
			p.mu.Unlock()

			if wait > 0 {
				p.sleep(wait)
			}
			return cred, nil
		}
	}

	p.mu.Unlock()
	return Credential{}, ErrNoAccountAvailable
}

// WaitUntilAvailable polls Acquire every 5 seconds until an account is
// available or maxWait elapses.
func (p *Pool) WaitUntilAvailable(ctx context.Context, queryType QueryType, constellation string, maxWait time.Duration) (Credential, error) {
	deadline := p.now().Add(maxWait)

	for {
		cred, err := p.Acquire(queryType, constellation)
		if err == nil {
			return cred, nil
		}

		if p.now().After(deadline) {
			return Credential{}, fmt.Errorf("accountpool: wait_until_available: %w: timed out after %s", ErrNoAccountAvailable, maxWait)
		}

		select {
		case <-ctx.Done():
			return Credential{}, ctx.Err()
		default:
		}
		p.sleep(5 * time.Second)
	}
}

// isAvailable reports whether a holds eligible status and counters, lazily
// resetting expired cooldowns and rolling windows. Caller must hold p.mu.
func (p *Pool) isAvailable(a *account, now time.Time) bool {
	switch a.status {
	case StatusSuspended:
		return false
	case StatusAuthFailed, StatusRateLimited, StatusCooldown:
		if !a.cooldownUntil.IsZero() && now.Before(a.cooldownUntil) {
			return false
		}
		wasAuthFailed := a.status == StatusAuthFailed
		a.status = StatusActive
		if wasAuthFailed {
			a.consecutiveErrors = 0
		}
	}

	if a.minuteWindowStart.IsZero() || now.Sub(a.minuteWindowStart) >= time.Minute {
		a.requestsThisMinute = 0
		a.minuteWindowStart = now
	}
	if a.hourWindowStart.IsZero() || now.Sub(a.hourWindowStart) >= time.Hour {
		a.requestsThisHour = 0
		a.hourWindowStart = now
	}

	if a.requestsThisMinute >= MaxRequestsPerMinute {
		return false
	}
	if a.requestsThisHour >= MaxRequestsPerHour {
		return false
	}
	return true
}

// canQuery reports whether a query-type-specific cooldown blocks a.
// Caller must hold p.mu.
func (p *Pool) canQuery(a *account, queryType QueryType, constellation string, now time.Time) bool {
	switch queryType {
	case QueryGP:
		if constellation == "" {
			return true
		}
		if last, ok := a.lastGPQuery[constellation]; ok {
			if now.Sub(last) < GPQueryCooldown {
				return false
			}
		}
	case QuerySATCAT:
		if !a.lastSATCATQuery.IsZero() && now.Sub(a.lastSATCATQuery) < SATCATQueryCooldown {
			return false
		}
	case QueryGPHistory:
		if constellation == "" {
			return true
		}
		if last, ok := a.lastGPHistoryQuery[constellation]; ok {
			if now.Sub(last) < GPHistoryCooldown {
				return false
			}
		}
	}
	return true
}

// Record updates counters and, on success, the query-specific cooldown
// timestamps for username. Unknown usernames are ignored.
func (p *Pool) Record(username string, queryType QueryType, constellation string, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.byUser[username]
	if !ok {
		return
	}

	now := p.now()
	a.requestsThisMinute++
	a.requestsThisHour++
	a.totalRequests++
	p.lastRequestTime = now

	if !success {
		return
	}

	a.consecutiveErrors = 0
	switch queryType {
	case QueryGP:
		if constellation != "" {
			a.lastGPQuery[constellation] = now
		}
	case QuerySATCAT:
		a.lastSATCATQuery = now
	case QueryGPHistory:
		if constellation != "" {
			a.lastGPHistoryQuery[constellation] = now
		}
	}
}

// MarkRateLimited cools username down for RateLimitCooldown and bumps its
// consecutive error count, suspending the account once the threshold is hit.
func (p *Pool) MarkRateLimited(username string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.byUser[username]
	if !ok {
		return
	}
	now := p.now()
	a.status = StatusRateLimited
	a.cooldownUntil = now.Add(RateLimitCooldown)
	a.consecutiveErrors++
	a.lastError = "rate limited (429)"
	p.suspendIfExhausted(a)
}

// MarkAuthFailed cools username down for AuthFailureCooldown after an
// authentication rejection.
func (p *Pool) MarkAuthFailed(username, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.byUser[username]
	if !ok {
		return
	}
	now := p.now()
	a.status = StatusAuthFailed
	a.cooldownUntil = now.Add(AuthFailureCooldown)
	a.consecutiveErrors++
	if reason == "" {
		reason = "authentication failed"
	}
	a.lastError = reason
	p.suspendIfExhausted(a)
}

// MarkTransientError records a non-rate-limit, non-auth error against
// username, placing it in a short cooldown once the error threshold is hit.
func (p *Pool) MarkTransientError(username, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.byUser[username]
	if !ok {
		return
	}
	a.consecutiveErrors++
	a.lastError = reason
	if a.consecutiveErrors >= MaxConsecutiveErrors {
		a.status = StatusCooldown
		a.cooldownUntil = p.now().Add(5 * time.Minute)
	}
}

// suspendIfExhausted marks a suspended once it crosses MaxConsecutiveErrors.
// Caller must hold p.mu.
func (p *Pool) suspendIfExhausted(a *account) {
	if a.consecutiveErrors >= MaxConsecutiveErrors {
		a.status = StatusSuspended
	}
}

// ResetAccount clears username back to active status, for operator recovery
// from a suspended state.
func (p *Pool) ResetAccount(username string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.byUser[username]
	if !ok {
		return
	}
	a.status = StatusActive
	a.consecutiveErrors = 0
	a.cooldownUntil = time.Time{}
}

// StatusSnapshot returns a credential-masked view of every account.
func (p *Pool) StatusSnapshot() PoolSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	snap := PoolSnapshot{TotalAccounts: len(p.order)}

	for _, username := range p.order {
		a := p.byUser[username]
		available := p.isAvailable(a, now)

		switch {
		case a.status == StatusActive && available:
			snap.ActiveAccounts++
		case a.status == StatusRateLimited:
			snap.RateLimitedCount++
		case a.status == StatusSuspended:
			snap.SuspendedCount++
		case a.status == StatusAuthFailed:
			snap.AuthFailedCount++
		default:
			snap.CooldownCount++
		}
		snap.TotalRequests += a.totalRequests

		var timeUntil time.Duration
		if !a.cooldownUntil.IsZero() && now.Before(a.cooldownUntil) {
			timeUntil = a.cooldownUntil.Sub(now)
		}

		snap.Accounts = append(snap.Accounts, AccountSnapshot{
			Username:           maskUsername(username),
			Status:             a.status,
			IsAvailable:        available,
			RequestsThisMinute: a.requestsThisMinute,
			RequestsThisHour:   a.requestsThisHour,
			TotalRequests:      a.totalRequests,
			LastError:          a.lastError,
			TimeUntilAvailable: timeUntil,
		})
	}
	return snap
}

// maskUsername shows only the first 3 characters, for safe logging. An
// email domain is kept only when the local part is longer than 3 characters.
func maskUsername(username string) string {
	for i, r := range username {
		if r == '@' {
			local, domain := username[:i], username[i:]
			if len(local) > 3 {
				return local[:3] + "***" + domain
			}
			return username[:min(3, len(username))] + "***"
		}
	}
	if len(username) <= 3 {
		return username + "***"
	}
	return username[:3] + "***"
}
