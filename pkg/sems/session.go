package sems

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/raterudder/semsledger/pkg/common"
	"github.com/raterudder/semsledger/pkg/log"
	"github.com/raterudder/semsledger/pkg/types"
)

const (
	// DefaultBaseURL is the global portal. Logins always go here and the
	// response may redirect later requests to a regional server.
	DefaultBaseURL = "https://www.semsportal.com/api/"

	semsLoginPath = "v2/Common/CrossLogin"

	// the portal only talks to its own mobile app
	semsUserAgent = "PVMaster/2.1.0 (iPhone; iOS 15.0; Scale/3.00)"
)

// codes sent with hasError when the token is missing or expired
var authErrorCodes = []string{"100001", "100002"}

type preLoginToken struct {
	Version  string `json:"version"`
	Client   string `json:"client"`
	Language string `json:"language"`
}

type sessionToken struct {
	UID       string          `json:"uid"`
	Timestamp json.RawMessage `json:"timestamp"`
	Token     string          `json:"token"`
	Client    string          `json:"client"`
	Version   string          `json:"version"`
	Language  string          `json:"language"`
}

var defaultTokenHeader = func() string {
	b, err := json.Marshal(preLoginToken{Version: "v2.1.0", Client: "ios", Language: "en"})
	if err != nil {
		panic(err)
	}
	return string(b)
}()

// Session holds the SEMS login state. All requests through a session are
// serialized so a re-login can never race with another request.
type Session struct {
	client  *http.Client
	baseURL string
	creds   types.Credentials

	mu sync.Mutex
	// the full Token header, empty until a login succeeds
	token string
	uid   string
	// regional base URL returned by the login, empty means baseURL
	apiURL string
}

// NewSession returns an unauthenticated session. An empty baseURL uses
// DefaultBaseURL and a nil client uses a client with a one minute timeout.
func NewSession(creds types.Credentials, baseURL string, client *http.Client) *Session {
	s := &Session{}
	s.init(creds, baseURL, client)
	return s
}

func (s *Session) init(creds types.Credentials, baseURL string, client *http.Client) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = common.HTTPClient(time.Minute, semsUserAgent)
	}
	s.creds = creds
	s.baseURL = baseURL
	s.client = client
}

// StationID returns the configured station.
func (s *Session) StationID() string {
	return s.creds.StationID
}

// Authenticated reports whether the session currently holds a token.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

// APIURL returns the base URL requests are currently sent to.
func (s *Session) APIURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiURLLocked()
}

func (s *Session) apiURLLocked() string {
	if s.apiURL != "" {
		return s.apiURL
	}
	return s.baseURL
}

// Login performs the login handshake even if a token is already held. On any
// failure the session is left exactly as it was.
func (s *Session) Login(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.login(ctx)
}

// EnsureAuthenticated logs in only if no token is held.
func (s *Session) EnsureAuthenticated(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		return nil
	}
	return s.login(ctx)
}

// Close drops the token and any regional redirect and releases idle
// connections. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.uid = ""
	s.apiURL = ""
	s.client.CloseIdleConnections()
	return nil
}

type loginRequest struct {
	Account string `json:"account"`
	Pwd     string `json:"pwd"`
}

type loginData struct {
	UID       flexString      `json:"uid"`
	Token     flexString      `json:"token"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// login must be called with mu held.
func (s *Session) login(ctx context.Context) error {
	if s.creds.Account == "" || s.creds.Password == "" {
		return ErrMissingCredentials
	}

	// login always goes to the global portal
	req, err := newPostJSONRequest(ctx, s.baseURL, semsLoginPath, loginRequest{
		Account: s.creds.Account,
		Pwd:     s.creds.Password,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	setHeaders(req, defaultTokenHeader)

	log.Ctx(ctx).DebugContext(ctx, "logging in to sems", slog.String("account", s.creds.Account))
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: login: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading login response: %w", ErrTransport, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: login status %d", ErrTransport, resp.StatusCode)
	}

	var env envelope
	if !isObject(body) {
		return fmt.Errorf("%w: status %d, body is not an object", ErrProtocolMismatch, resp.StatusCode)
	}
	if err := json.Unmarshal(body, &env); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to decode sems login response", slog.Any("error", err))
		return fmt.Errorf("%w: %w", ErrProtocolMismatch, err)
	}
	if env.HasError || !codeOK(env.Code) {
		msg := env.Msg
		if msg == "" {
			msg = "unknown error"
		}
		log.Ctx(ctx).WarnContext(ctx, "sems login rejected", slog.String("message", msg), slog.String("code", codeString(env.Code)))
		return fmt.Errorf("%w: %s (code: %s)", ErrRejected, msg, codeString(env.Code))
	}

	var keys map[string]json.RawMessage
	if !decodeObject(env.Data, &keys) {
		return fmt.Errorf("%w: data is not an object", ErrProtocolMismatch)
	}
	var data loginData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return fmt.Errorf("%w: %w", ErrProtocolMismatch, err)
	}
	uid := string(data.UID)
	if uid == "" {
		names := make([]string, 0, len(keys))
		for k := range keys {
			names = append(names, k)
		}
		slices.Sort(names)
		for _, k := range names {
			if strings.Contains(strings.ToLower(k), "agreement") {
				return ErrConsentRequired
			}
		}
		return fmt.Errorf("%w: missing uid, keys: %s", ErrProtocolMismatch, strings.Join(names, ", "))
	}

	apiURL := ""
	if env.API != "" {
		u, err := url.Parse(env.API)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: invalid regional api url %q", ErrProtocolMismatch, env.API)
		}
		apiURL = env.API
	}

	timestamp := data.Timestamp
	if len(timestamp) == 0 {
		timestamp = json.RawMessage(`""`)
	}
	header, err := json.Marshal(sessionToken{
		UID:       uid,
		Timestamp: timestamp,
		Token:     string(data.Token),
		Client:    "ios",
		Version:   "v2.0.4",
		Language:  "en",
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProtocolMismatch, err)
	}

	// an interrupted login is a failed login
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: login: %w", ErrTransport, err)
	}

	s.token = string(header)
	s.uid = uid
	if apiURL != "" {
		s.apiURL = apiURL
		log.Ctx(ctx).InfoContext(ctx, "using regional sems api", slog.String("url", apiURL))
	}
	log.Ctx(ctx).InfoContext(ctx, "sems login success", slog.String("uid", uid[:min(8, len(uid))]))
	return nil
}

// postForm sends a form request to the current API base URL and returns the
// envelope's data member. An unauthorized response clears the token, logs in
// again and retries exactly once.
func (s *Session) postForm(ctx context.Context, endpoint string, form url.Values) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		if err := s.login(ctx); err != nil {
			return nil, err
		}
	}

	// we try up to 2 times because the token might have expired
	for i := 0; ; i++ {
		data, err := s.doForm(ctx, endpoint, form)
		if err == nil {
			return data, nil
		}
		if i > 0 || !errors.Is(err, ErrUnauthorized) {
			return nil, err
		}
		log.Ctx(ctx).DebugContext(ctx, "sems token expired", slog.Any("error", err))
		// the rejected token is dropped even if the re-login below fails, so
		// the next request logs in first instead of replaying it
		s.token = ""
		if err := s.login(ctx); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}
	}
}

func (s *Session) doForm(ctx context.Context, endpoint string, form url.Values) (json.RawMessage, error) {
	req, err := newPostFormRequest(ctx, s.apiURLLocked(), endpoint, form)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	setHeaders(req, s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrTransport, endpoint, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s status %d", ErrUpstream, endpoint, resp.StatusCode)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyResponse, endpoint)
	}
	if !isObject(body) {
		log.Ctx(ctx).ErrorContext(ctx, "sems response is not an object", slog.String("body", truncate(body, 500)))
		return nil, fmt.Errorf("%w: %s: body is not an object", ErrMalformed, endpoint)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to decode sems response", slog.Any("error", err), slog.String("body", truncate(body, 500)))
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, endpoint, err)
	}
	if env.HasError {
		code := codeString(env.Code)
		if slices.Contains(authErrorCodes, code) {
			return nil, fmt.Errorf("%w: %s (code: %s)", ErrUnauthorized, env.Msg, code)
		}
		msg := env.Msg
		if msg == "" {
			msg = "unknown error"
		}
		log.Ctx(ctx).ErrorContext(ctx, "sems api error", slog.String("endpoint", endpoint), slog.String("message", msg), slog.String("code", code))
		return nil, fmt.Errorf("%w: %s", ErrUpstream, msg)
	}
	return env.Data, nil
}

func setHeaders(req *http.Request, token string) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", semsUserAgent)
	req.Header.Set("Token", token)
}

func joinURL(base, endpoint string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path, err = url.JoinPath(u.Path, endpoint)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func newPostFormRequest(ctx context.Context, base, endpoint string, data url.Values) (*http.Request, error) {
	u, err := joinURL(base, endpoint)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", u, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

func newPostJSONRequest(ctx context.Context, base, endpoint string, data interface{}) (*http.Request, error) {
	u, err := joinURL(base, endpoint)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
