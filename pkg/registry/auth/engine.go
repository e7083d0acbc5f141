// Package auth implements the registry's challenge/response authentication
// state machine: a single /v2/ ping per client discovers whether the
// registry requires Basic or Bearer auth, and a per-scope token cache
// with single-flight token fetches supplies Bearer credentials thereafter.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ociregistry/ociregistry/pkg/registry/regerr"
)

// clientID is sent as the token request's client_id parameter. §4.4 pins
// this exact wire value.
const clientID = "python_registry_client"

// tokenGrace is subtracted from a cached token's expiry when judging
// freshness, per §3's TokenCacheEntry.
const tokenGrace = 60 * time.Second

// cacheEntry is a single per-scope cached Bearer credential.
type cacheEntry struct {
	authHeader string
	expiresAt  time.Time
}

func (e *cacheEntry) fresh(now time.Time) bool {
	return now.Add(tokenGrace).Before(e.expiresAt)
}

// Engine owns one client's authentication state: the ping-discovered
// challenge and the per-scope token cache. The zero value is not usable;
// construct with New.
type Engine struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	now        func() time.Time

	pingOnce   sync.Once
	pingErr    error
	challengeMu sync.Mutex
	challenge  Challenge

	cacheMu sync.Mutex
	cache   map[string]*cacheEntry
	inflight map[string]chan struct{}
}

// Config supplies the credentials and base URL an Engine authenticates
// against.
type Config struct {
	HTTPClient *http.Client
	BaseURL    string
	Username   string
	Password   string
}

// New constructs an Engine with an empty token cache.
func New(cfg Config) *Engine {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Engine{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		now:        time.Now,
		cache:      make(map[string]*cacheEntry),
		inflight:   make(map[string]chan struct{}),
	}
}

// ping performs the single GET /v2/ probe, populating e.challenge. Only
// the first caller across all goroutines actually issues the request;
// concurrent callers block on sync.Once until it completes.
func (e *Engine) ping(ctx context.Context) error {
	e.pingOnce.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/v2/", nil)
		if err != nil {
			e.pingErr = fmt.Errorf("%w: building ping request: %w", regerr.ErrNetworkError, err)
			return
		}

		resp, err := e.httpClient.Do(req)
		if err != nil {
			e.pingErr = fmt.Errorf("%w: ping /v2/: %w", regerr.ErrNetworkError, err)
			return
		}
		defer resp.Body.Close()

		header := resp.Header.Get("WWW-Authenticate")
		if resp.StatusCode == http.StatusUnauthorized && header != "" {
			c, err := ParseChallenge(header)
			if err != nil {
				e.pingErr = err
				return
			}
			e.setChallenge(c)
			return
		}

		e.setChallenge(Challenge{Scheme: SchemeNone})
	})

	return e.pingErr
}

func (e *Engine) setChallenge(c Challenge) {
	e.challengeMu.Lock()
	defer e.challengeMu.Unlock()
	e.challenge = c
}

func (e *Engine) getChallenge() Challenge {
	e.challengeMu.Lock()
	defer e.challengeMu.Unlock()
	return e.challenge
}

// Authorize ensures req carries whatever Authorization header the
// registry's challenge requires for scope, fetching and caching a Bearer
// token if necessary.
func (e *Engine) Authorize(ctx context.Context, req *http.Request, scope Scope) error {
	if err := e.ping(ctx); err != nil {
		return err
	}

	switch c := e.getChallenge(); c.Scheme {
	case SchemeNone:
		return nil
	case SchemeBasic:
		if e.username != "" || e.password != "" {
			req.Header.Set("Authorization", basicHeader(e.username, e.password))
		}
		return nil
	case SchemeBearer:
		header, err := e.bearerHeader(ctx, c, scope)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", header)
		return nil
	default:
		return nil
	}
}

// Invalidate drops the cached token for scope, forcing the next Authorize
// call for that scope to fetch a fresh one. Used on a single 401 retry.
func (e *Engine) Invalidate(scope Scope) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	delete(e.cache, scope.String())
}

// bearerHeader returns a cached or freshly fetched "Bearer <token>" header
// value for scope. At most one token-endpoint request is in flight per
// scope at a time: concurrent callers for the same scope wait for the
// first to publish a cache entry (single-flight).
func (e *Engine) bearerHeader(ctx context.Context, c Challenge, scope Scope) (string, error) {
	key := scope.String()

	for {
		e.cacheMu.Lock()
		if entry, ok := e.cache[key]; ok && entry.fresh(e.now()) {
			e.cacheMu.Unlock()
			return entry.authHeader, nil
		}

		if wait, inflight := e.inflight[key]; inflight {
			e.cacheMu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %w", regerr.ErrCancelled, ctx.Err())
			}
		}

		done := make(chan struct{})
		e.inflight[key] = done
		e.cacheMu.Unlock()

		header, expiresAt, err := e.fetchToken(ctx, c, scope)

		e.cacheMu.Lock()
		delete(e.inflight, key)
		if err == nil {
			e.cache[key] = &cacheEntry{authHeader: header, expiresAt: expiresAt}
		}
		e.cacheMu.Unlock()
		close(done)

		if err != nil {
			return "", err
		}
		return header, nil
	}
}

type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	IssuedAt    string `json:"issued_at"`
}

// fetchToken issues the token-endpoint GET request described in §4.4 and
// §6 and parses its JSON response.
func (e *Engine) fetchToken(ctx context.Context, c Challenge, scope Scope) (string, time.Time, error) {
	q := url.Values{}
	q.Set("scope", scope.String())
	q.Set("service", c.Service)
	q.Set("client_id", clientID)
	q.Set("account", e.username)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Realm+"?"+q.Encode(), nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: building token request: %w", regerr.ErrAuthFailure, err)
	}

	if !(isDockerIOHost(c.Realm) && e.username == "" && e.password == "") {
		if e.username != "" || e.password != "" {
			req.Header.Set("Authorization", basicHeader(e.username, e.password))
		}
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: token request: %w", regerr.ErrAuthFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", time.Time{}, fmt.Errorf("%w: token endpoint returned status %d", regerr.ErrAuthFailure, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: decoding token response: %w", regerr.ErrAuthFailure, err)
	}

	token := tr.AccessToken
	if token == "" {
		token = tr.Token
	}
	if token == "" {
		return "", time.Time{}, fmt.Errorf("%w: token response had no token/access_token", regerr.ErrAuthFailure)
	}

	issuedAt := e.now()
	if tr.IssuedAt != "" {
		if parsed, err := time.Parse(time.RFC3339, tr.IssuedAt); err == nil {
			issuedAt = parsed
		}
	}

	expiresIn := time.Duration(tr.ExpiresIn) * time.Second
	if tr.ExpiresIn == 0 {
		expiresIn = 5 * time.Minute
	}

	return "Bearer " + token, issuedAt.Add(expiresIn), nil
}

func basicHeader(username, password string) string {
	raw := username + ":" + password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

func isDockerIOHost(realm string) bool {
	u, err := url.Parse(realm)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Hostname(), "docker.io")
}
