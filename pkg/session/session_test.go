package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockServer creates a test server and a session pointed at it.
func mockServer(t *testing.T, handler http.HandlerFunc, opts ...Option) *Session {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return New(ts.URL, "user", "secret", opts...)
}

func jsonHandler(t *testing.T, statusCode int, body any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if body != nil {
			require.NoError(t, json.NewEncoder(w).Encode(body))
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New("http://localhost:6794", "user", "secret")
	assert.Equal(t, "user", s.Userid())
	assert.Empty(t, s.Token())
	assert.Equal(t, DefaultRetryTimeoutConfig(), s.RetryTimeoutConfig())
}

func TestNew_WithRetryTimeoutConfig(t *testing.T) {
	rt := RetryTimeoutConfig{
		ConnectTimeout:   time.Second,
		ConnectRetries:   5,
		OperationTimeout: 2 * time.Second,
		StatusTimeout:    3 * time.Second,
	}
	s := New("http://localhost:6794", "user", "secret", WithRetryTimeoutConfig(rt))
	assert.Equal(t, rt, s.RetryTimeoutConfig())
	assert.Equal(t, 2*time.Second, s.httpClient.Timeout)
}

func TestSession_Get(t *testing.T) {
	s := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/cpcs", r.URL.Path)
		_, _ = w.Write([]byte(`{"cpcs":[]}`))
	})

	body, err := s.Get(context.Background(), "/api/cpcs")
	require.NoError(t, err)
	assert.JSONEq(t, `{"cpcs":[]}`, string(body))
}

func TestSession_Post_SendsJSON(t *testing.T) {
	s := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var got map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "CPC1", got["name"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"object-uri":"/api/cpcs/1"}`))
	})

	body, err := s.Post(context.Background(), "/api/cpcs", map[string]string{"name": "CPC1"})
	require.NoError(t, err)
	assert.Contains(t, string(body), "/api/cpcs/1")
}

func TestSession_ErrorBodyParsing(t *testing.T) {
	s := mockServer(t, jsonHandler(t, http.StatusNotFound, map[string]any{
		"http-status": 404,
		"reason":      1,
		"message":     "no such object",
	}))

	_, err := s.Get(context.Background(), "/api/cpcs/nope")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
	assert.Equal(t, 1, httpErr.Reason)
	assert.Equal(t, "no such object", httpErr.Message)
	assert.Equal(t, "/api/cpcs/nope", httpErr.Path)
}

func TestSession_ErrorWithoutBody(t *testing.T) {
	s := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := s.Get(context.Background(), "/api/cpcs")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
	assert.Equal(t, 0, httpErr.Reason)
	assert.NotEmpty(t, httpErr.Message)
}

func TestSession_ConnectionError(t *testing.T) {
	// Closed port: the request never produces a response.
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	s := New(url, "user", "secret")
	_, err := s.Get(context.Background(), "/api/cpcs")

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, DefaultRetryTimeoutConfig(), connErr.Config)
}

func TestSession_Logon(t *testing.T) {
	s := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sessions", r.URL.Path)
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "user", creds["userid"])
		assert.Equal(t, "secret", creds["password"])
		_, _ = w.Write([]byte(`{"api-session":"tok-123"}`))
	})

	require.NoError(t, s.Logon(context.Background()))
	assert.Equal(t, "tok-123", s.Token())
}

func TestSession_Logon_MissingCredentials(t *testing.T) {
	s := New("http://localhost:6794", "", "")
	err := s.Logon(context.Background())

	var authErr *ClientAuthError
	require.ErrorAs(t, err, &authErr)
}

func TestSession_Logon_Rejected(t *testing.T) {
	s := mockServer(t, jsonHandler(t, http.StatusForbidden, map[string]any{
		"http-status": 403,
		"reason":      0,
		"message":     "bad credentials",
	}))

	err := s.Logon(context.Background())
	var authErr *ServerAuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "bad credentials", authErr.Message)

	var httpErr *HTTPError
	assert.True(t, errors.As(err, &httpErr), "ServerAuthError should unwrap to HTTPError")
}

func TestSession_TokenHeaderSent(t *testing.T) {
	s := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-456", r.Header.Get("X-API-Session"))
		_, _ = w.Write([]byte(`{}`))
	}, WithToken("tok-456"))

	_, err := s.Get(context.Background(), "/api/cpcs")
	require.NoError(t, err)
}

func TestSession_SecretsBlanked(t *testing.T) {
	s := New("http://localhost:6794", "user", "hunter2", WithToken("tok-789"))

	rendered := s.String()
	assert.NotContains(t, rendered, "hunter2")
	assert.NotContains(t, rendered, "tok-789")
	assert.Contains(t, rendered, "user")

	logged := s.LogValue().String()
	assert.NotContains(t, logged, "hunter2")
	assert.NotContains(t, logged, "tok-789")
}

func TestSession_BulkGet(t *testing.T) {
	s := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/services/aggregation/submit", r.URL.Path)
		var req struct {
			Requests []struct {
				ID  string `json:"id"`
				URI string `json:"uri"`
			} `json:"requests"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Requests, 2)

		_, _ = w.Write([]byte(`{"results":[
			{"id":"a","status":200,"body":{"name":"A"}},
			{"id":"b","status":404,"body":{"http-status":404,"reason":1,"message":"gone"}}
		]}`))
	})

	results, err := s.BulkGet(context.Background(), []BulkRequest{
		{ID: "a", Path: "/api/cpcs/a"},
		{ID: "b", Path: "/api/cpcs/b"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, http.StatusOK, results[0].Status)
	assert.Nil(t, results[0].Err)
	assert.True(t, strings.Contains(string(results[0].Body), `"A"`))

	assert.Equal(t, http.StatusNotFound, results[1].Status)
	require.NotNil(t, results[1].Err)
	assert.Equal(t, 1, results[1].Err.Reason)
	assert.Nil(t, results[1].Body)
}
