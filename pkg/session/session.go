package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/getconsole/consolekit/pkg/logging"
)

// Session is the live HTTP implementation of Transport. It holds the base
// URL, credentials, and the session token obtained by Logon. All methods
// are synchronous and perform no retries.
type Session struct {
	baseURL    string
	userid     string
	password   string
	token      string
	httpClient *http.Client
	rt         RetryTimeoutConfig
	log        *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithRetryTimeoutConfig sets the transport retry/timeout configuration.
func WithRetryTimeoutConfig(rt RetryTimeoutConfig) Option {
	return func(s *Session) {
		s.rt = rt
	}
}

// WithHTTPClient replaces the underlying HTTP client (TLS, pooling).
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) {
		s.httpClient = c
	}
}

// WithToken seeds an existing session token, skipping Logon.
func WithToken(token string) Option {
	return func(s *Session) {
		s.token = token
	}
}

// WithLogger sets the logger. Secrets are blanked before logging.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

// New creates a session against baseURL with the given credentials.
// No request is issued until Logon or the first operation.
func New(baseURL, userid, password string, opts ...Option) *Session {
	s := &Session{
		baseURL:  baseURL,
		userid:   userid,
		password: password,
		rt:       DefaultRetryTimeoutConfig(),
		log:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: s.rt.OperationTimeout}
	}
	return s
}

// Userid returns the configured userid.
func (s *Session) Userid() string {
	return s.userid
}

// Token returns the current session token, "" before Logon.
func (s *Session) Token() string {
	return s.token
}

// RetryTimeoutConfig returns the configuration in force.
func (s *Session) RetryTimeoutConfig() RetryTimeoutConfig {
	return s.rt
}

// String renders the session for diagnostics with secrets blanked.
func (s *Session) String() string {
	return fmt.Sprintf("session(url=%s, userid=%s, password=********, token=********)", s.baseURL, s.userid)
}

// LogValue implements slog.LogValuer with secrets blanked.
func (s *Session) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", s.baseURL),
		slog.String("userid", s.userid),
		slog.String("password", "********"),
	)
}

// Logon establishes a session and stores the returned token.
// Missing credentials fail client-side with *ClientAuthError; rejected
// credentials fail with *ServerAuthError.
func (s *Session) Logon(ctx context.Context) error {
	if s.userid == "" || s.password == "" {
		return &ClientAuthError{Message: "userid and password are required"}
	}

	body, err := s.Post(ctx, "/api/sessions", map[string]string{
		"userid":   s.userid,
		"password": s.password,
	})
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && (httpErr.Status == http.StatusForbidden || httpErr.Status == http.StatusUnauthorized) {
			return &ServerAuthError{Message: httpErr.Message, HTTP: httpErr}
		}
		return err
	}

	var result struct {
		Token string `json:"api-session"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("decode logon response: %w", err)
	}
	s.token = result.Token
	s.log.Debug("session established", "session", s)
	return nil
}

// Logoff invalidates the session token on the server.
func (s *Session) Logoff(ctx context.Context) error {
	if s.token == "" {
		return nil
	}
	if err := s.Delete(ctx, "/api/sessions/this-session"); err != nil {
		return err
	}
	s.token = ""
	return nil
}

// Get implements Transport.
func (s *Session) Get(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return s.do(req, path)
}

// Post implements Transport. A nil body sends an empty request body.
func (s *Session) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, path)
}

// Delete implements Transport.
func (s *Session) Delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	_, err = s.do(req, path)
	return err
}

// BulkGet implements BulkGetter by submitting the batch to the server's
// aggregation endpoint. Per-item failures come back in the result list;
// only batch-level failures return an error.
func (s *Session) BulkGet(ctx context.Context, reqs []BulkRequest) ([]BulkResult, error) {
	type item struct {
		ID   string `json:"id"`
		URI  string `json:"uri"`
		Meth string `json:"method"`
	}
	batch := make([]item, len(reqs))
	for i, r := range reqs {
		batch[i] = item{ID: r.ID, URI: r.Path, Meth: http.MethodGet}
	}

	body, err := s.Post(ctx, "/api/services/aggregation/submit", map[string]any{"requests": batch})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Results []struct {
			ID     string          `json:"id"`
			Status int             `json:"status"`
			Body   json.RawMessage `json:"body"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode aggregation response: %w", err)
	}

	results := make([]BulkResult, len(parsed.Results))
	for i, r := range parsed.Results {
		res := BulkResult{ID: r.ID, Status: r.Status, Body: r.Body}
		if r.Status >= 400 {
			res.Err = parseErrorBody(http.MethodGet, reqs[i].Path, r.Status, r.Body)
			res.Body = nil
		}
		results[i] = res
	}
	return results, nil
}

func (s *Session) do(req *http.Request, path string) (json.RawMessage, error) {
	if s.token != "" {
		req.Header.Set("X-API-Session", s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectionError{Op: req.Method + " " + path, Err: err, Config: s.rt}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectionError{Op: req.Method + " " + path, Err: err, Config: s.rt}
	}

	if resp.StatusCode >= 400 {
		return nil, parseErrorBody(req.Method, path, resp.StatusCode, body)
	}
	return body, nil
}

// parseErrorBody builds the uniform HTTPError from a server error body of
// the form {"http-status": n, "reason": n, "message": s}. Bodies that do
// not parse still produce an HTTPError with the response status.
func parseErrorBody(method, path string, status int, body []byte) *HTTPError {
	e := &HTTPError{Method: method, Path: path, Status: status}
	var parsed struct {
		Status  int    `json:"http-status"`
		Reason  int    `json:"reason"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		e.Reason = parsed.Reason
		e.Message = parsed.Message
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}
