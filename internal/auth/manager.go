package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Vendor auth protocol constants, observed from the mobile app's traffic.
const (
	// tokenPath is the OAuth-shaped token endpoint, relative to the API base.
	tokenPath = "/auth/oauth/token"

	// basicAuthHeader is the fixed client credential the app sends
	// (base64 of "sigen:sigen"). It identifies the app, not the user.
	basicAuthHeader = "Basic c2lnZW46c2lnZW4="

	// scopeServer is the only scope the app ever requests.
	scopeServer = "server"

	// userAgent identifies this client on every auth request. The vendor
	// has been observed rejecting requests with no User-Agent at all.
	userAgent = "sigenflux/1.0"

	// maxAuthResponseBytes bounds how much of an auth response is read.
	maxAuthResponseBytes = 64 << 10
)

// Logger is the minimal logging surface the Manager needs. It is satisfied
// by *logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager owns the token lifecycle: it decides when the cached token is
// still usable, refreshes it ahead of expiry, and falls back to a full
// credential login when the refresh path fails.
//
// Thread Safety:
//   - EnsureValidToken and ForceRefresh are safe for concurrent use; a
//     mutex serialises issuance so concurrent callers cannot trigger
//     duplicate logins.
type Manager struct {
	baseURL string
	creds   Credentials
	store   *FileStore
	margin  time.Duration

	httpClient *http.Client
	log        Logger

	// now is replaceable in tests.
	now func() time.Time

	mu    sync.Mutex
	state *TokenState
}

// NewManager creates a token lifecycle manager.
//
// Parameters:
//   - baseURL: Sigen API base URL (no trailing slash)
//   - creds: Account credentials for password-grant login
//   - store: Persistent token state store
//   - margin: How long before nominal expiry a token is treated as expired
//   - timeout: Per-request HTTP timeout
func NewManager(baseURL string, creds Credentials, store *FileStore, margin, timeout time.Duration) *Manager {
	return &Manager{
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
		store:      store,
		margin:     margin,
		httpClient: &http.Client{Timeout: timeout},
		log:        noopLogger{},
		now:        time.Now,
	}
}

// SetLogger attaches a logger. Log lines describe lifecycle transitions
// only; token values and passwords are never logged.
func (m *Manager) SetLogger(log Logger) {
	if log != nil {
		m.log = log
	}
}

// EnsureValidToken returns an access token that is valid for at least the
// configured safety margin.
//
// The decision ladder, in order:
//  1. Cached or persisted token still valid: return it unchanged.
//  2. Expiring or expired with a refresh token: one refresh attempt.
//  3. Refresh failed, or no stored state: one credential login.
//
// Each step is attempted at most once per call. If the ladder bottoms out,
// the returned error wraps ErrAuthFailed.
//
// Returns:
//   - string: A usable access token
//   - error: Wrapping ErrAuthFailed when no token could be obtained
func (m *Manager) EnsureValidToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.state
	if state == nil {
		loaded, err := m.store.Load()
		if err != nil {
			return "", fmt.Errorf("loading token state: %w", err)
		}
		state = loaded
		m.state = loaded
	}

	if state.Valid(m.now(), m.margin) {
		return state.AccessToken, nil
	}

	if state != nil && state.RefreshToken != "" {
		m.log.Info("token expiring, refreshing", "expires_at", state.ExpiresAt().UTC())
		refreshed, err := m.refresh(ctx, state.RefreshToken)
		if err == nil {
			m.commit(refreshed)
			return refreshed.AccessToken, nil
		}
		m.log.Warn("token refresh failed, falling back to login", "error", err)
	} else {
		m.log.Info("no stored token, logging in")
	}

	issued, err := m.login(ctx)
	if err != nil {
		return "", err
	}
	m.commit(issued)
	return issued.AccessToken, nil
}

// ForceRefresh discards the cached token and obtains a fresh one, first by
// refresh and then by login. The collector calls this exactly once when a
// data request comes back 401/403 despite the token looking valid locally,
// which happens when the vendor invalidates sessions server-side.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log.Info("forcing token refresh after rejected request")

	if m.state != nil && m.state.RefreshToken != "" {
		refreshed, err := m.refresh(ctx, m.state.RefreshToken)
		if err == nil {
			m.commit(refreshed)
			return refreshed.AccessToken, nil
		}
		m.log.Warn("forced refresh failed, falling back to login", "error", err)
	}

	issued, err := m.login(ctx)
	if err != nil {
		return "", err
	}
	m.commit(issued)
	return issued.AccessToken, nil
}

// commit caches new state and persists it. A persistence failure is logged
// but does not discard the in-memory token; the current process keeps
// working and only a restart pays the cost.
func (m *Manager) commit(state *TokenState) {
	m.state = state
	if err := m.store.Save(state); err != nil {
		m.log.Error("persisting token state failed", "error", err, "path", m.store.Path())
	}
}

// login performs a password-grant token request with the stored credentials.
func (m *Manager) login(ctx context.Context) (*TokenState, error) {
	if m.creds.Username == "" || m.creds.TransformedPassword == "" {
		return nil, fmt.Errorf("%w: %w", ErrAuthFailed, ErrNoCredentials)
	}

	form := url.Values{}
	form.Set("username", m.creds.Username)
	form.Set("password", m.creds.TransformedPassword)
	form.Set("scope", scopeServer)
	form.Set("grant_type", "password")
	form.Set("userDeviceId", strconv.FormatInt(m.now().UnixMilli(), 10))

	state, err := m.tokenRequest(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("%w: login: %w", ErrAuthFailed, err)
	}

	m.log.Info("login succeeded", "expires_in", state.ExpiresIn)
	return state, nil
}

// refresh exchanges the refresh token for a new token pair. The vendor
// expects userDeviceId on refresh as well as on login.
func (m *Manager) refresh(ctx context.Context, refreshToken string) (*TokenState, error) {
	form := url.Values{}
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")
	form.Set("userDeviceId", strconv.FormatInt(m.now().UnixMilli(), 10))

	state, err := m.tokenRequest(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	m.log.Info("token refreshed", "expires_in", state.ExpiresIn)
	return state, nil
}

// tokenEnvelope is the vendor's auth response shape. Success means HTTP 200
// with code 0; any other combination is a failure even when the transport
// succeeded.
type tokenEnvelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	} `json:"data"`
}

// tokenRequest posts a form to the token endpoint and decodes the envelope.
//
// The form body is produced by url.Values.Encode exactly once. The
// transformed password contains characters that are already the product of
// the vendor's own transformation, and encoding it a second time is a known
// way to get a 200 response with a rejection code.
func (m *Manager) tokenRequest(ctx context.Context, form url.Values) (*TokenState, error) {
	requestedAt := m.now()

	body := strings.NewReader(form.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+tokenPath, body)
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", basicAuthHeader)
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAuthResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned HTTP %d", resp.StatusCode)
	}

	var envelope tokenEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	if envelope.Code != 0 {
		// msg is vendor-operator text and safe to surface; tokens never
		// appear in it.
		return nil, fmt.Errorf("token endpoint rejected request: code %d: %s", envelope.Code, envelope.Msg)
	}
	if envelope.Data.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned empty access token")
	}

	return &TokenState{
		AccessToken:  envelope.Data.AccessToken,
		RefreshToken: envelope.Data.RefreshToken,
		ExpiresIn:    envelope.Data.ExpiresIn,
		RetrievedAt:  requestedAt.Unix(),
	}, nil
}
